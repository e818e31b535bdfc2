// Package console provides a RequestClient that reports permission outcomes
// on a writer and asks for rationale confirmation through a prompter.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/reglet-dev/rtperm/internal/application/ports"
	"github.com/reglet-dev/rtperm/internal/domain/permissions"
	"github.com/reglet-dev/rtperm/internal/infrastructure/capabilities"
)

// Outcome is what the client observed for the expected request.
type Outcome struct {
	Granted []string
	Denied  []string
}

// Client implements ports.RequestClient for a terminal session.
type Client struct {
	out      io.Writer
	prompter ports.Prompter

	mu       sync.Mutex
	code     permissions.Code
	waiting  permissions.Set
	granted  permissions.Set
	denied   permissions.Set
	done     chan struct{}
	expected bool
}

// NewClient creates a console client writing to out.
func NewClient(out io.Writer, prompter ports.Prompter) *Client {
	return &Client{
		out:      out,
		prompter: prompter,
		done:     make(chan struct{}),
	}
}

// Expect starts tracking a request. Wait returns once every name has been
// reported granted or denied.
func (c *Client) Expect(code permissions.Code, names []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.code = code
	c.waiting = permissions.NewSet(names...)
	c.granted = permissions.NewSet()
	c.denied = permissions.NewSet()
	c.done = make(chan struct{})
	c.expected = true
	if c.waiting.Len() == 0 {
		close(c.done)
	}
}

// Wait blocks until the expected request is fully answered or ctx ends. On
// cancellation the partial outcome is returned with the context error.
func (c *Client) Wait(ctx context.Context) (Outcome, error) {
	c.mu.Lock()
	if !c.expected {
		c.mu.Unlock()
		return Outcome{}, errors.New("no request expected")
	}
	done := c.done
	c.mu.Unlock()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return Outcome{Granted: c.granted.Sorted(), Denied: c.denied.Sorted()}, err
}

// OnGranted implements ports.RequestClient.
func (c *Client) OnGranted(code permissions.Code, names []string) {
	for _, name := range names {
		fmt.Fprintf(c.out, "  ✓ %s (granted)\n", capabilities.Describe(name))
	}
	c.report(code, names, true)
}

// OnDenied implements ports.RequestClient.
func (c *Client) OnDenied(code permissions.Code, names []string) {
	for _, name := range names {
		fmt.Fprintf(c.out, "  ✗ %s (denied)\n", capabilities.Describe(name))
	}
	c.report(code, names, false)
}

// OnRationaleDismissed implements ports.RequestClient.
func (c *Client) OnRationaleDismissed(code permissions.Code) {
	slog.Debug("rationale dismissed", "code", code)
}

// ShowRationale asks for confirmation on a separate goroutine and hands the
// answer to decide. Dismissing the handle cancels the prompt.
func (c *Client) ShowRationale(code permissions.Code, names []string, decide ports.RationaleDecision) ports.RationaleHandle {
	ctx, cancel := context.WithCancel(context.Background())
	names = append([]string{}, names...)

	go func() {
		defer cancel()
		accepted, err := c.prompter.ConfirmRationale(ctx, names)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			slog.Warn("rationale prompt failed, treating as declined", "code", code, "error", err)
			accepted = false
		}
		if err := decide(accepted); err != nil {
			slog.Debug("rationale decision not applied", "code", code, "error", err)
		}
	}()

	return dismissFunc(cancel)
}

func (c *Client) report(code permissions.Code, names []string, granted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.expected || code != c.code {
		slog.Debug("outcome for unexpected request", "code", code, "names", names)
		return
	}
	for _, name := range names {
		if !c.waiting.Has(name) {
			continue
		}
		c.waiting.Remove(name)
		if granted {
			c.granted.Add(name)
		} else {
			c.denied.Add(name)
		}
	}
	if c.waiting.Len() == 0 {
		select {
		case <-c.done:
		default:
			close(c.done)
		}
	}
}

type dismissFunc context.CancelFunc

func (f dismissFunc) Dismiss() { f() }
