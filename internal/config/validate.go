package config

import (
	"errors"
	"fmt"
	"strings"
)

// knownChronicOptions are the resolver options the time-scope parser reads.
var knownChronicOptions = map[string]bool{"hours24": true}

// Validate checks the structural validity of a Config. All problems are
// reported together.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if cfg.Schedule == "" {
		errs = append(errs, errors.New("config: schedule path is required"))
	}

	if _, err := cfg.Settings.JobListSettings(); err != nil {
		errs = append(errs, err)
	}
	for key := range cfg.Settings.ChronicOptions {
		if !knownChronicOptions[key] {
			errs = append(errs, fmt.Errorf("config: settings.chronic_options: unknown option %q", key))
		}
	}

	errs = append(errs, validateNormalize(cfg)...)

	if ep := cfg.Telemetry.OTLPEndpoint; ep != "" && strings.Contains(ep, "://") {
		errs = append(errs, fmt.Errorf("config: telemetry.otlp_endpoint must be host:port, got %q", ep))
	}

	if a := cfg.Serve.Auth; (a.BasicUser == "") != (a.BasicPass == "") {
		errs = append(errs, errors.New("config: serve.auth needs both basic_user and basic_pass"))
	}

	return errors.Join(errs...)
}

func validateNormalize(cfg *Config) []error {
	if cfg.Normalize == nil {
		return nil
	}
	var errs []error
	for i, s := range cfg.Normalize.Strip {
		if s == "" {
			errs = append(errs, fmt.Errorf("config: normalize.strip[%d]: empty string", i))
		}
	}
	if m := cfg.Normalize.Marker; m != nil {
		if m.Variable == "" {
			errs = append(errs, errors.New("config: normalize.marker.variable is required"))
		} else if strings.ContainsAny(m.Variable, "= \t") {
			errs = append(errs, fmt.Errorf("config: normalize.marker.variable %q is not a variable name", m.Variable))
		}
	}
	return errs
}
