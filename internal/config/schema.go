// Package config handles crongen.yaml loading, environment variable
// expansion, and structural validation.
package config

import (
	"fmt"

	"github.com/flemzord/crongen/internal/joblist"
	"github.com/flemzord/crongen/internal/normalize"
	"github.com/flemzord/crongen/internal/server"
	"gopkg.in/yaml.v3"
)

// DefaultSchedule is the schedule definition read when no file is named.
const DefaultSchedule = "config/schedule.yaml"

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// Schedule is the definition file compiled when none is given on the
	// command line. Relative paths are resolved against the config file.
	Schedule string `yaml:"schedule,omitempty"`

	// YAMLPath is where the structured job list is written.
	YAMLPath string `yaml:"yaml_path,omitempty"`

	Settings Settings `yaml:"settings"`

	// Normalize cleans commands in the structured job list.
	Normalize *normalize.Table `yaml:"normalize,omitempty"`

	Metrics   MetricsConfig   `yaml:"metrics"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	History   HistoryConfig   `yaml:"history"`

	// Serve configures "crongen serve".
	Serve server.Config `yaml:"serve"`
}

// Settings are compilation defaults that schedule variables override.
//
// Output and CronLog are kept as nodes so that an explicit null, which
// discards job output, is told apart from an absent key.
type Settings struct {
	Output         yaml.Node      `yaml:"output"`
	CronLog        yaml.Node      `yaml:"cron_log"`
	ChronicOptions map[string]any `yaml:"chronic_options,omitempty"`
}

// MetricsConfig configures the Prometheus textfile export.
type MetricsConfig struct {
	// Textfile is the .prom file written after each compile. Empty disables
	// the export.
	Textfile string `yaml:"textfile,omitempty"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	// OTLPEndpoint is a host:port accepting OTLP over HTTP. Empty disables
	// tracing.
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty"`

	// Insecure disables TLS towards the collector.
	Insecure bool `yaml:"insecure,omitempty"`
}

// HistoryConfig configures the compilation ledger.
type HistoryConfig struct {
	// Path is the SQLite database. Empty disables the ledger.
	Path string `yaml:"path,omitempty"`
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	return &Config{Version: "1", Schedule: DefaultSchedule, YAMLPath: joblist.DefaultYAMLPath}
}

// JobListSettings converts the settings for a JobList.
func (s Settings) JobListSettings() (joblist.Settings, error) {
	output, err := optional(&s.Output)
	if err != nil {
		return joblist.Settings{}, fmt.Errorf("config: settings.output: %w", err)
	}
	cronLog, err := optional(&s.CronLog)
	if err != nil {
		return joblist.Settings{}, fmt.Errorf("config: settings.cron_log: %w", err)
	}
	return joblist.Settings{Output: output, CronLog: cronLog, ChronicOptions: s.ChronicOptions}, nil
}

func optional(node *yaml.Node) (joblist.Optional, error) {
	if node.Kind == 0 {
		return joblist.Optional{}, nil
	}
	var v any
	if err := node.Decode(&v); err != nil {
		return joblist.Optional{}, err
	}
	return joblist.Some(v), nil
}
