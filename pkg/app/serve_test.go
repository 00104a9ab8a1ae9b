package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/flemzord/crongen/internal/history"
	"github.com/flemzord/crongen/internal/metrics"
)

func TestNewServer_Routes(t *testing.T) {
	t.Parallel()

	p := params(t)
	p.Metrics = metrics.New()
	h := NewServer(p).Handler()

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/cron", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /cron status = %d: %s", rr.Code, rr.Body.String())
	}
	if rr.Body.String() != fixtureCron {
		t.Errorf("GET /cron body:\n%q\nwant:\n%q", rr.Body.String(), fixtureCron)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/cronjobs", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /cronjobs status = %d", rr.Code)
	}
	if !strings.HasPrefix(rr.Body.String(), "cronjobs:") {
		t.Errorf("GET /cronjobs body:\n%s", rr.Body.String())
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rr.Body.String(), "crongen_jobs 4") {
		t.Errorf("metrics should reflect the served compile:\n%s", rr.Body.String())
	}
}

func TestNewServer_DefinitionErrorIs422(t *testing.T) {
	t.Parallel()

	h := NewServer(Params{Source: []byte("schedule:\n  - bogus: 1\n")}).Handler()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/cron", nil))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rr.Code)
	}
}

func TestStatusCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{&Error{Kind: KindDefinition, Err: errors.New("x")}, http.StatusUnprocessableEntity},
		{&Error{Kind: KindResolution, Err: errors.New("x")}, http.StatusUnprocessableEntity},
		{&Error{Kind: KindIO, Err: errors.New("x")}, http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusCode(tt.err); got != tt.want {
			t.Errorf("StatusCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestCron_RecordsHistory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, err := history.Open(ctx, filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	p := params(t)
	p.History = store
	for range 2 {
		if _, err := Cron(ctx, p); err != nil {
			t.Fatalf("Cron: %v", err)
		}
	}

	entries, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Changed {
		t.Error("identical recompile should not be marked changed")
	}
	if !entries[1].Changed {
		t.Error("first compile should be marked changed")
	}
	if entries[0].Output != "cron" || entries[0].Schedule != fixture || entries[0].Jobs != 4 {
		t.Errorf("entry = %+v", entries[0])
	}
	if entries[0].Digest != history.Digest([]byte(fixtureCron)) {
		t.Error("digest should hash the rendered crontab")
	}
}

func TestYAMLDocument_DoesNotWrite(t *testing.T) {
	src, err := os.ReadFile(fixture)
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	t.Chdir(dir)

	data, err := YAMLDocument(context.Background(), Params{Source: src, Path: "/srv/app"})
	if err != nil {
		t.Fatalf("YAMLDocument: %v", err)
	}
	if !strings.Contains(string(data), "run-report") {
		t.Errorf("document:\n%s", data)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if len(matches) != 0 {
		t.Errorf("no file should be written, found %v", matches)
	}
}
