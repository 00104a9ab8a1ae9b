package app

import (
	"github.com/flemzord/crongen/internal/config"
)

// LoadConfig resolves, loads and validates the configuration. An empty path
// searches the standard locations and falls back to the defaults.
func LoadConfig(path string) (*config.Config, error) {
	cfg, err := config.Resolve(path)
	if err != nil {
		return nil, classify(err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, &Error{Kind: KindDefinition, Err: err}
	}
	return cfg, nil
}
