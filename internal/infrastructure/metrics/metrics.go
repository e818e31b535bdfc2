// Package metrics counts permission outcomes per capability kind.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/reglet-dev/rtperm/internal/application/ports"
	"github.com/reglet-dev/rtperm/internal/domain/permissions"
	"github.com/reglet-dev/rtperm/internal/infrastructure/capabilities"
)

// Metrics defines counters for permission requests.
type Metrics interface {
	IncGranted(kind string)
	IncDenied(kind string)
	IncRationaleShown(kind string)
	IncRationaleDismissed()
}

// Noop implements Metrics without emitting anything.
type Noop struct{}

func (Noop) IncGranted(string)        {}
func (Noop) IncDenied(string)         {}
func (Noop) IncRationaleShown(string) {}
func (Noop) IncRationaleDismissed()   {}

// Prom implements Metrics backed by Prometheus counters.
type Prom struct {
	granted            *prometheus.CounterVec
	denied             *prometheus.CounterVec
	rationaleShown     *prometheus.CounterVec
	rationaleDismissed prometheus.Counter
}

// NewProm creates the counters and registers them on reg.
func NewProm(namespace string, reg prometheus.Registerer) (*Prom, error) {
	p := &Prom{
		granted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "granted_total",
			Help:      "Capabilities granted by kind",
		}, []string{"kind"}),
		denied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "denied_total",
			Help:      "Capabilities denied by kind",
		}, []string{"kind"}),
		rationaleShown: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rationale_shown_total",
			Help:      "Capabilities presented on a rationale surface by kind",
		}, []string{"kind"}),
		rationaleDismissed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rationale_dismissed_total",
			Help:      "Rationale surfaces dismissed",
		}),
	}
	for _, c := range []prometheus.Collector{p.granted, p.denied, p.rationaleShown, p.rationaleDismissed} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}
	return p, nil
}

func (p *Prom) IncGranted(kind string)        { p.granted.WithLabelValues(kind).Inc() }
func (p *Prom) IncDenied(kind string)         { p.denied.WithLabelValues(kind).Inc() }
func (p *Prom) IncRationaleShown(kind string) { p.rationaleShown.WithLabelValues(kind).Inc() }
func (p *Prom) IncRationaleDismissed()        { p.rationaleDismissed.Inc() }

// Instrument wraps client so every callback also updates m.
func Instrument(client ports.RequestClient, m Metrics) ports.RequestClient {
	if m == nil {
		m = Noop{}
	}
	return &instrumented{next: client, m: m}
}

type instrumented struct {
	next ports.RequestClient
	m    Metrics
}

func (c *instrumented) OnGranted(code permissions.Code, names []string) {
	for _, name := range names {
		c.m.IncGranted(capabilities.Kind(name))
	}
	c.next.OnGranted(code, names)
}

func (c *instrumented) OnDenied(code permissions.Code, names []string) {
	for _, name := range names {
		c.m.IncDenied(capabilities.Kind(name))
	}
	c.next.OnDenied(code, names)
}

func (c *instrumented) OnRationaleDismissed(code permissions.Code) {
	c.m.IncRationaleDismissed()
	c.next.OnRationaleDismissed(code)
}

func (c *instrumented) ShowRationale(code permissions.Code, names []string, decide ports.RationaleDecision) ports.RationaleHandle {
	for _, name := range names {
		c.m.IncRationaleShown(capabilities.Kind(name))
	}
	return c.next.ShowRationale(code, names, decide)
}

// WriteTextfile writes everything g gathers to path in the text exposition
// format read by the node exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("failed to write metrics textfile %s: %w", path, err)
	}
	return nil
}
