package joblist

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/crongen/internal/job"
	"github.com/flemzord/crongen/internal/joblist/joblisttest"
	"github.com/flemzord/crongen/internal/normalize"
)

func decodeDocument(t *testing.T, data []byte) []Record {
	t.Helper()
	var doc struct {
		CronJobs []Record `yaml:"cronjobs"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decoding %q: %v", data, err)
	}
	return doc.CronJobs
}

func TestRecords_FlattensAllBuckets(t *testing.T) {
	t.Parallel()

	r := &joblisttest.MockResolver{Timings: map[string][]string{
		"day":  {"0 0 * * *"},
		"hour": {"0 * * * *"},
		"twice": {"0 1 * * *", "0 2 * * *"},
	}}
	l := newTestList(t, Options{}, r)
	every(t, l, "day", nil, func() {
		mustInvoke(t, l, "command", "alerts", job.Options{"mailto": "ops@example.com"})
		mustInvoke(t, l, "command", "daily", nil)
	})
	every(t, l, "hour", nil, func() { mustInvoke(t, l, "command", "hourly", nil) })
	every(t, l, "twice", nil, func() { mustInvoke(t, l, "command", "split", nil) })

	got, err := l.Records()
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	want := []Record{
		{ID: 1, Command: "daily", Time: "0 0 * * *"},
		{ID: 2, Command: "hourly", Time: "0 * * * *"},
		{ID: 3, Command: "split", Time: "0 1 * * *"},
		{ID: 3, Command: "split", Time: "0 2 * * *"},
		{ID: 4, Command: "alerts", Time: "0 0 * * *"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d records, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestYAMLOutput_NoJobs(t *testing.T) {
	t.Parallel()

	l := newTestList(t, Options{}, &joblisttest.MockResolver{})
	data, err := l.YAMLOutput()
	if err != nil || data != nil {
		t.Fatalf("got (%q, %v), want (nil, nil)", data, err)
	}

	path := filepath.Join(t.TempDir(), "crontab.yaml")
	written, err := l.WriteYAML(path)
	if err != nil || written {
		t.Fatalf("WriteYAML = (%v, %v), want (false, nil)", written, err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("file should not exist, stat err = %v", err)
	}
}

func TestYAMLOutput_AllFilteredIsEmptyList(t *testing.T) {
	t.Parallel()

	r := &joblisttest.MockResolver{Timings: map[string][]string{"day": {"0 0 * * *"}}}
	l := newTestList(t, Options{Roles: []string{"web"}}, r)
	every(t, l, "day", nil, func() {
		mustInvoke(t, l, "command", "db", job.Options{"roles": "db"})
	})

	data, err := l.YAMLOutput()
	if err != nil {
		t.Fatalf("YAMLOutput: %v", err)
	}
	if got := decodeDocument(t, data); len(got) != 0 {
		t.Errorf("got %+v, want no records", got)
	}
	if !strings.Contains(string(data), "cronjobs: []") {
		t.Errorf("expected an empty list, got %q", data)
	}
}

func TestYAMLOutput_MarkerRecord(t *testing.T) {
	t.Parallel()

	r := &joblisttest.MockResolver{Timings: map[string][]string{"day": {"30 2 * * *"}}}
	n := normalize.New(normalize.Table{
		Strip:  []string{"bash -c 'cd /srv/app && "},
		Marker: &normalize.Marker{Variable: "RUNNER_NAME", Field: "RUNNER"},
	})
	l := New(Options{Resolver: r, Normalizer: n})
	l.JobType("runner", "cd /srv/app && RUNNER_NAME=':task' bin/run ':task'")
	l.Set("job_template", "bash -c ':job'")
	every(t, l, "day", nil, func() { mustInvoke(t, l, "runner", "Feed.refresh", nil) })

	data, err := l.YAMLOutput()
	if err != nil {
		t.Fatalf("YAMLOutput: %v", err)
	}
	got := decodeDocument(t, data)
	want := Record{ID: 1, Command: "Feed.refresh", Time: "30 2 * * *", MarkerField: "RUNNER", MarkerValue: "Feed.refresh"}
	if len(got) != 1 || got[0] != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}

	text := string(data)
	order := []string{"id:", "command:", "time:", "RUNNER:"}
	last := -1
	for _, key := range order {
		idx := strings.Index(text, key)
		if idx <= last {
			t.Fatalf("key %q out of order in %q", key, text)
		}
		last = idx
	}
}

func TestWriteYAML_Idempotent(t *testing.T) {
	t.Parallel()

	r := &joblisttest.MockResolver{Timings: map[string][]string{"day": {"0 4 * * *"}}}
	l := newTestList(t, Options{}, r)
	every(t, l, "day", nil, func() {
		mustInvoke(t, l, "command", "backup", nil)
		mustInvoke(t, l, "command", "report", job.Options{"mailto": "ops@example.com"})
	})

	path := filepath.Join(t.TempDir(), "crontab.yaml")
	if _, err := l.WriteYAML(path); err != nil {
		t.Fatalf("first write: %v", err)
	}
	first, _ := os.ReadFile(path)
	if _, err := l.WriteYAML(path); err != nil {
		t.Fatalf("second write: %v", err)
	}
	second, _ := os.ReadFile(path)

	if !bytes.Equal(first, second) {
		t.Errorf("outputs differ:\n%s\n%s", first, second)
	}
	if got := decodeDocument(t, first); len(got) != 2 {
		t.Errorf("got %d records, want 2", len(got))
	}
}

func TestWriteYAML_Failure(t *testing.T) {
	t.Parallel()

	r := &joblisttest.MockResolver{Timings: map[string][]string{"day": {"0 4 * * *"}}}
	l := newTestList(t, Options{}, r)
	every(t, l, "day", nil, func() { mustInvoke(t, l, "command", "backup", nil) })

	path := filepath.Join(t.TempDir(), "missing", "crontab.yaml")
	if _, err := l.WriteYAML(path); err == nil {
		t.Fatal("expected an error writing into a missing directory")
	} else if !strings.Contains(err.Error(), "write failed") {
		t.Errorf("error should wrap ErrWrite: %v", err)
	}
}

func TestWriteYAMLData_WritesGivenDocument(t *testing.T) {
	t.Parallel()

	r := &joblisttest.MockResolver{Timings: map[string][]string{"day": {"0 0 * * *"}}}
	l := newTestList(t, Options{}, r)
	every(t, l, "day", nil, func() { mustInvoke(t, l, "command", "backup", nil) })

	data, err := l.YAMLOutput()
	if err != nil {
		t.Fatalf("YAMLOutput: %v", err)
	}
	calls := r.CallCount()

	path := filepath.Join(t.TempDir(), "crontab.yaml")
	written, err := l.WriteYAMLData(path, data)
	if err != nil || !written {
		t.Fatalf("WriteYAMLData = %v, %v", written, err)
	}
	if r.CallCount() != calls {
		t.Errorf("writing should not resolve again: %d calls, want %d", r.CallCount(), calls)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("file = %q, want %q", got, data)
	}

	empty := filepath.Join(t.TempDir(), "none.yaml")
	if written, err := l.WriteYAMLData(empty, nil); err != nil || written {
		t.Fatalf("nil document: written=%v err=%v", written, err)
	}
	if _, err := os.Stat(empty); !os.IsNotExist(err) {
		t.Errorf("nil document should create no file, stat err = %v", err)
	}
}
