package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/flemzord/crongen/internal/config"
	"github.com/flemzord/crongen/internal/metrics"
	"github.com/flemzord/crongen/internal/vars"
)

const fixture = "testdata/schedule.yaml"

const fixtureCron = "PATH=/usr/local/bin:/usr/bin\n\n" +
	"0 3,4 * * * run-report\n\n" +
	"@reboot start-worker\n\n" +
	"MAILTO=ops@example.com\n\n" +
	"0 * * * * cd /srv/app && bundle exec bin/rails runner -e production 'Feed.refresh'\n\n"

func params(t *testing.T) Params {
	t.Helper()
	return Params{Schedule: fixture, Path: "/srv/app"}
}

func TestCron_EndToEnd(t *testing.T) {
	t.Parallel()

	got, err := Cron(context.Background(), params(t))
	if err != nil {
		t.Fatalf("Cron: %v", err)
	}
	if got != fixtureCron {
		t.Errorf("got:\n%q\nwant:\n%q", got, fixtureCron)
	}
}

func TestCron_RoleFilter(t *testing.T) {
	t.Parallel()

	p := params(t)
	p.Roles = []string{"db"}
	got, err := Cron(context.Background(), p)
	if err != nil {
		t.Fatalf("Cron: %v", err)
	}
	if strings.Contains(got, "MAILTO") || strings.Contains(got, "Feed.refresh") {
		t.Errorf("app-only job should be filtered out:\n%s", got)
	}
	if !strings.Contains(got, "run-report") {
		t.Errorf("jobs without roles should always render:\n%s", got)
	}
}

func TestCron_PreSet(t *testing.T) {
	t.Parallel()

	p := params(t)
	p.PreSet = "environment=staging&job_template=nice :job"
	got, err := Cron(context.Background(), p)
	if err != nil {
		t.Fatalf("Cron: %v", err)
	}
	if !strings.Contains(got, "nice cd /srv/app && bundle exec bin/rails runner -e staging") {
		t.Errorf("pre-set variables should win:\n%s", got)
	}
}

func TestCron_Stdin(t *testing.T) {
	t.Parallel()

	p := Params{
		Schedule: "-",
		Stdin:    strings.NewReader("schedule:\n  - set: {job_template: ':job'}\n  - every: day\n    do:\n      - job: {type: command, task: hello}\n"),
	}
	got, err := Cron(context.Background(), p)
	if err != nil {
		t.Fatalf("Cron: %v", err)
	}
	if got != "0 0 * * * hello\n\n" {
		t.Errorf("got %q", got)
	}
}

func TestCron_EmptySchedule(t *testing.T) {
	t.Parallel()

	got, err := Cron(context.Background(), Params{Source: []byte{}})
	if err != nil {
		t.Fatalf("Cron: %v", err)
	}
	if got != "" {
		t.Errorf("expected empty output, got %q", got)
	}
}

func TestCron_ErrorKinds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		p    Params
		kind Kind
	}{
		{"missing schedule", Params{Schedule: filepath.Join(t.TempDir(), "absent.yaml")}, KindIO},
		{"syntax", Params{Source: []byte("schedule:\n  - bogus: 1\n")}, KindDefinition},
		{"unknown job type", Params{Source: []byte("schedule:\n  - every: day\n    do:\n      - job: {type: deploy, task: x}\n")}, KindDefinition},
		{"job outside scope", Params{Source: []byte("schedule:\n  - job: {type: command, task: x}\n")}, KindDefinition},
		{"unresolvable scope", Params{Source: []byte("schedule:\n  - every: fortnightly\n    do:\n      - job: {type: command, task: x}\n")}, KindResolution},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Cron(context.Background(), tt.p)
			var ae *Error
			if !errors.As(err, &ae) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if ae.Kind != tt.kind {
				t.Errorf("kind = %s, want %s (%v)", ae.Kind, tt.kind, err)
			}
			if ExitCode(err) != tt.kind.ExitCode() {
				t.Errorf("exit code = %d, want %d", ExitCode(err), tt.kind.ExitCode())
			}
		})
	}
}

func TestCron_UnresolvedVariable(t *testing.T) {
	t.Parallel()

	p := Params{Source: []byte("schedule:\n  - every: day\n    do:\n      - job: {type: command, task: \"${nope}\"}\n")}
	_, err := Cron(context.Background(), p)
	if !errors.Is(err, vars.ErrUnresolvedVariable) {
		t.Fatalf("expected ErrUnresolvedVariable, got %v", err)
	}
	if ExitCode(err) != 2 {
		t.Errorf("exit code = %d, want 2", ExitCode(err))
	}
}

func TestYAML_WritesRecords(t *testing.T) {
	t.Parallel()

	p := params(t)
	p.YAMLPath = filepath.Join(t.TempDir(), "crontab.yaml")
	res, err := YAML(context.Background(), p)
	if err != nil {
		t.Fatalf("YAML: %v", err)
	}
	if !res.Written || res.Records != 4 || res.Path != p.YAMLPath {
		t.Fatalf("result = %+v", res)
	}

	data, err := os.ReadFile(p.YAMLPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "cronjobs:\n") {
		t.Errorf("unexpected document:\n%s", data)
	}
	if strings.Count(string(data), "id: ") != 4 {
		t.Errorf("expected 4 records:\n%s", data)
	}
}

func TestYAML_NoJobsWritesNothing(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "crontab.yaml")
	res, err := YAML(context.Background(), Params{Source: []byte("schedule: []\n"), YAMLPath: path})
	if err != nil {
		t.Fatalf("YAML: %v", err)
	}
	if res.Written {
		t.Error("expected nothing written")
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("file should not exist: %v", err)
	}
}

func TestYAML_WriteFailureIsIO(t *testing.T) {
	t.Parallel()

	p := params(t)
	p.YAMLPath = filepath.Join(t.TempDir(), "missing", "crontab.yaml")
	_, err := YAML(context.Background(), p)
	if ExitCode(err) != KindIO.ExitCode() {
		t.Fatalf("expected io error, got %v", err)
	}
}

func TestCheck_Summary(t *testing.T) {
	t.Parallel()

	got, err := Check(context.Background(), params(t))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	want := Summary{Jobs: 4, Lines: 3, Merged: 1, Records: 4}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestNext_Previews(t *testing.T) {
	t.Parallel()

	p := params(t)
	p.Now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	got, err := Next(context.Background(), p, 2)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("got %d records, want 4", len(got))
	}

	first := got[0]
	if first.Time != "0 3 * * *" || len(first.Next) != 2 {
		t.Fatalf("first = %+v", first)
	}
	if want := time.Date(2026, 1, 1, 3, 0, 0, 0, time.UTC); !first.Next[0].Equal(want) {
		t.Errorf("next = %v, want %v", first.Next[0], want)
	}
	if reboot := got[2]; reboot.Time != "@reboot" || len(reboot.Next) != 0 {
		t.Errorf("reboot = %+v", reboot)
	}
}

func TestCron_ExportsMetrics(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Metrics.Textfile = filepath.Join(t.TempDir(), "crongen.prom")

	p := params(t)
	p.Config = cfg
	p.Schedule = fixture
	p.Metrics = metrics.New()
	if _, err := Cron(context.Background(), p); err != nil {
		t.Fatalf("Cron: %v", err)
	}

	data, err := os.ReadFile(cfg.Metrics.Textfile)
	if err != nil {
		t.Fatalf("reading textfile: %v", err)
	}
	if !strings.Contains(string(data), "crongen_cron_lines_merged 1") {
		t.Errorf("unexpected metrics:\n%s", data)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("version: \"99\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(bad); ExitCode(err) != 2 {
		t.Errorf("invalid config: exit code %d (%v), want 2", ExitCode(err), err)
	}

	broken := filepath.Join(dir, "broken.yaml")
	if err := os.WriteFile(broken, []byte("not: valid: yaml: ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(broken); ExitCode(err) != 2 {
		t.Errorf("broken config: exit code %d (%v), want 2", ExitCode(err), err)
	}

	if _, err := LoadConfig(filepath.Join(dir, "absent.yaml")); ExitCode(err) != 4 {
		t.Errorf("missing config: exit code %d (%v), want 4", ExitCode(err), err)
	}
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	if ExitCode(nil) != 0 {
		t.Error("nil should exit 0")
	}
	if ExitCode(errors.New("usage")) != 1 {
		t.Error("unclassified errors should exit 1")
	}
}

func TestCron_CancelledContextIsNotClassified(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Cron(ctx, params(t))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	var ae *Error
	if errors.As(err, &ae) {
		t.Errorf("cancellation should not carry a kind, got %s", ae.Kind)
	}
	if got := ExitCode(err); got != 1 {
		t.Errorf("exit code = %d, want 1", got)
	}
}
