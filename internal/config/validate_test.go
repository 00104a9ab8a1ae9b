package config

import (
	"strings"
	"testing"

	"github.com/flemzord/crongen/internal/normalize"
)

func TestValidate_Valid(t *testing.T) {
	t.Parallel()
	if err := Validate(Default()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_MissingVersion(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.Version = ""
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for missing version")
	}
	if !strings.Contains(err.Error(), "version") {
		t.Errorf("error should mention version: %v", err)
	}
}

func TestValidate_UnsupportedVersion(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.Version = "99"
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for unsupported version")
	}
	if !strings.Contains(err.Error(), "unsupported") {
		t.Errorf("error should mention unsupported: %v", err)
	}
}

func TestValidate_UnknownChronicOption(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.Settings.ChronicOptions = map[string]any{"hours24": true, "guess": false}
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), `"guess"`) {
		t.Fatalf("expected unknown option error, got %v", err)
	}
}

func TestValidate_Normalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		table normalize.Table
		want  string
	}{
		{"empty strip", normalize.Table{Strip: []string{"x", ""}}, "normalize.strip[1]"},
		{"marker without variable", normalize.Table{Marker: &normalize.Marker{Field: "F"}}, "marker.variable is required"},
		{"marker with assignment", normalize.Table{Marker: &normalize.Marker{Variable: "A=B"}}, "not a variable name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			cfg.Normalize = &tt.table
			err := Validate(cfg)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestValidate_TelemetryEndpoint(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.Telemetry.OTLPEndpoint = "http://collector:4318"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for URL endpoint")
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()
	cfg := &Config{
		Normalize: &normalize.Table{Marker: &normalize.Marker{}},
		Settings:  Settings{ChronicOptions: map[string]any{"nope": 1}},
	}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected errors")
	}
	msg := err.Error()
	for _, want := range []string{"version", "schedule", "nope", "marker"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error should mention %q: %v", want, msg)
		}
	}
}

func TestValidate_ServeBasicAuthPair(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.Serve.Auth.BasicUser = "admin"
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "serve.auth") {
		t.Fatalf("expected serve.auth error, got %v", err)
	}
}
