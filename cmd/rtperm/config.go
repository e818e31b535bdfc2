package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/reglet-dev/rtperm/internal/infrastructure/system"
)

// configFlags maps system config keys to the flags that override them.
// Each key can also be set from RTPERM_<KEY>, dots replaced by underscores.
var configFlags = map[string]string{
	"grants.file":         "grants-file",
	"host.runtime_grants": "runtime-grants",
	"host.version":        "host-version",
	"host.auto_grant":     "auto-grant",
	"rationale.policy":    "rationale-policy",
	"metrics.textfile":    "metrics-textfile",
}

func registerConfigFlags(flags *pflag.FlagSet) {
	flags.String("grants-file", "", "grants ledger (default is $HOME/.rtperm/grants.yaml)")
	flags.Bool("runtime-grants", true, "force the runtime grant model on or off")
	flags.String("host-version", "", "host version, selects the grant model when --runtime-grants is unset")
	flags.Bool("auto-grant", false, "grant every requested capability without prompting (use with caution)")
	flags.String("rationale-policy", "", `expression deciding when to explain a request (default "denials > 0")`)
	flags.String("metrics-textfile", "", "write Prometheus metrics to this file after each check")
}

func bindConfig(v *viper.Viper, flags *pflag.FlagSet) error {
	v.SetEnvPrefix("RTPERM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, name := range configFlags {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

// applyOverrides copies every flag or environment value that was set onto cfg.
func applyOverrides(cfg *system.Config, v *viper.Viper) {
	if v.IsSet("grants.file") {
		cfg.Grants.File = v.GetString("grants.file")
	}
	if v.IsSet("host.runtime_grants") {
		enabled := v.GetBool("host.runtime_grants")
		cfg.Host.RuntimeGrants = &enabled
	}
	if v.IsSet("host.version") {
		cfg.Host.Version = v.GetString("host.version")
	}
	if v.IsSet("host.auto_grant") {
		cfg.Host.AutoGrant = v.GetBool("host.auto_grant")
	}
	if v.IsSet("rationale.policy") {
		cfg.Rationale.Policy = v.GetString("rationale.policy")
	}
	if v.IsSet("metrics.textfile") {
		cfg.Metrics.Textfile = v.GetString("metrics.textfile")
	}
}

// loadConfig reads the system config file and applies overrides from v.
func loadConfig(path string, v *viper.Viper) (*system.Config, error) {
	cfg, err := system.NewConfigLoader().Load(path)
	if err != nil {
		return nil, err
	}
	applyOverrides(cfg, v)
	slog.Debug("configuration loaded",
		"grants_file", cfg.Grants.File,
		"host_version", cfg.Host.Version,
		"auto_grant", cfg.Host.AutoGrant)
	return cfg, nil
}
