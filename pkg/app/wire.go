package app

import (
	"log/slog"

	"github.com/flemzord/crongen/internal/config"
	"github.com/flemzord/crongen/internal/joblist"
	"github.com/flemzord/crongen/internal/normalize"
	"github.com/flemzord/crongen/internal/timescope"
)

// newJobList builds an empty JobList from the configuration and the
// per-run parameters.
func newJobList(cfg *config.Config, p Params, logger *slog.Logger) (*joblist.JobList, error) {
	settings, err := cfg.Settings.JobListSettings()
	if err != nil {
		return nil, &Error{Kind: KindDefinition, Err: err}
	}

	var norm *normalize.Normalizer
	if cfg.Normalize != nil {
		norm = normalize.New(*cfg.Normalize)
	}

	resolver := p.Resolver
	if resolver == nil {
		resolver = timescope.NewDefault()
	}

	return joblist.New(joblist.Options{
		PreSet:     p.PreSet,
		Roles:      p.Roles,
		Resolver:   resolver,
		Normalizer: norm,
		Settings:   settings,
		Logger:     logger,
	}), nil
}

// yamlPath picks the structured output path: the run parameter, then the
// configuration, then the library default.
func yamlPath(cfg *config.Config, p Params) string {
	switch {
	case p.YAMLPath != "":
		return p.YAMLPath
	case cfg.YAMLPath != "":
		return cfg.YAMLPath
	default:
		return joblist.DefaultYAMLPath
	}
}
