package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/flemzord/crongen/internal/joblist"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder_Observe(t *testing.T) {
	t.Parallel()

	r := New()
	r.Observe(joblist.Stats{Jobs: 3, Lines: 2, Merged: 1, Records: 4}, time.Unix(1700000000, 0))

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"jobs", testutil.ToFloat64(r.jobs), 3},
		{"lines", testutil.ToFloat64(r.lines), 2},
		{"merged", testutil.ToFloat64(r.merged), 1},
		{"records", testutil.ToFloat64(r.records), 4},
		{"last", testutil.ToFloat64(r.last), 1700000000},
		{"success", testutil.ToFloat64(r.compiles.WithLabelValues("success")), 1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestRecorder_FailedKeepsGauges(t *testing.T) {
	t.Parallel()

	r := New()
	r.Observe(joblist.Stats{Jobs: 5}, time.Now())
	r.Failed()

	if got := testutil.ToFloat64(r.jobs); got != 5 {
		t.Errorf("jobs = %v, want 5", got)
	}
	if got := testutil.ToFloat64(r.compiles.WithLabelValues("error")); got != 1 {
		t.Errorf("error compiles = %v, want 1", got)
	}
}

func TestRecorder_WriteTextfile(t *testing.T) {
	t.Parallel()

	r := New()
	r.Observe(joblist.Stats{Jobs: 2, Lines: 1, Merged: 1, Records: 2}, time.Unix(42, 0))

	path := filepath.Join(t.TempDir(), "crongen.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"crongen_jobs 2",
		"crongen_cron_lines 1",
		"crongen_cron_lines_merged 1",
		"crongen_records 2",
		"crongen_last_compile_timestamp_seconds 42",
		`crongen_compiles_total{result="success"} 1`,
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("textfile missing %q:\n%s", want, data)
		}
	}
}

func TestRecorder_WriteTextfileFailure(t *testing.T) {
	t.Parallel()

	r := New()
	err := r.WriteTextfile(filepath.Join(t.TempDir(), "missing", "crongen.prom"))
	if err == nil || !strings.Contains(err.Error(), "metrics: writing") {
		t.Fatalf("expected write error, got %v", err)
	}
}
