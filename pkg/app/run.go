// Package app provides the compile operations behind the crongen CLI.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/flemzord/crongen/internal/config"
	"github.com/flemzord/crongen/internal/definition"
	"github.com/flemzord/crongen/internal/history"
	"github.com/flemzord/crongen/internal/joblist"
	"github.com/flemzord/crongen/internal/metrics"
	"github.com/flemzord/crongen/internal/telemetry"
	"github.com/flemzord/crongen/internal/timescope"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Params configures one compilation.
type Params struct {
	// Config defaults to config.Default().
	Config *config.Config

	// Schedule is the definition file. Empty uses Config.Schedule; "-"
	// reads standard input.
	Schedule string

	// Source, when non-nil, is compiled instead of reading Schedule.
	Source []byte

	// Stdin is read for Schedule "-". Defaults to os.Stdin.
	Stdin io.Reader

	// PreSet is a "key=value&key=value" string of immutable variables.
	PreSet string

	// Roles restricts rendering to jobs carrying one of these roles.
	Roles []string

	// YAMLPath overrides where the structured output is written.
	YAMLPath string

	// Path is the default of the path variable. Empty uses the working
	// directory.
	Path string

	// Resolver defaults to timescope.NewDefault().
	Resolver timescope.Resolver

	// Metrics, when set, records statistics after each successful render
	// and writes them to Config.Metrics.Textfile if configured.
	Metrics *metrics.Recorder

	// History, when set, records every successful cron and yaml render.
	History *history.Store

	// Tracer defaults to telemetry.Tracer().
	Tracer trace.Tracer

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

func (p Params) withDefaults() Params {
	if p.Config == nil {
		p.Config = config.Default()
	}
	if p.Schedule == "" {
		p.Schedule = p.Config.Schedule
	}
	if p.Stdin == nil {
		p.Stdin = os.Stdin
	}
	if p.Tracer == nil {
		p.Tracer = telemetry.Tracer()
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return p
}

// Evaluate reads and evaluates the schedule definition and returns the
// populated JobList.
func Evaluate(ctx context.Context, p Params) (*joblist.JobList, error) {
	p = p.withDefaults()
	l, err := evaluate(ctx, p)
	return l, classify(err)
}

func evaluate(ctx context.Context, p Params) (*joblist.JobList, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, err := readSchedule(p)
	if err != nil {
		return nil, err
	}

	l, err := newJobList(p.Config, p, p.Logger)
	if err != nil {
		return nil, err
	}

	err = telemetry.Run(ctx, p.Tracer, "evaluate", func(context.Context) error {
		f, err := definition.Parse(src)
		if err != nil {
			return fmt.Errorf("%s: %w", p.Schedule, err)
		}
		if err := definition.Evaluate(l, f, definition.EvalOptions{Path: p.Path}); err != nil {
			return fmt.Errorf("%s: %w", p.Schedule, err)
		}
		return nil
	}, attribute.String("crongen.schedule", p.Schedule))
	if err != nil {
		return nil, err
	}

	p.Logger.Debug("schedule evaluated", "schedule", p.Schedule, "jobs", l.Len())
	return l, nil
}

func readSchedule(p Params) ([]byte, error) {
	if p.Source != nil {
		return p.Source, nil
	}
	if p.Schedule == "-" {
		data, err := io.ReadAll(p.Stdin)
		if err != nil {
			return nil, fmt.Errorf("reading schedule from stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(p.Schedule)
	if err != nil {
		return nil, fmt.Errorf("reading schedule: %w", err)
	}
	return data, nil
}

// Cron compiles the schedule into crontab text.
func Cron(ctx context.Context, p Params) (string, error) {
	p = p.withDefaults()
	out, err := renderCron(ctx, p)
	if err != nil {
		p.failed()
		return "", classify(err)
	}
	return out, nil
}

func renderCron(ctx context.Context, p Params) (string, error) {
	l, err := evaluate(ctx, p)
	if err != nil {
		return "", err
	}

	var out string
	err = telemetry.Run(ctx, p.Tracer, "render_cron", func(context.Context) error {
		out, err = l.CronOutput()
		return err
	})
	if err != nil {
		return "", err
	}
	if err := p.observe(ctx, "cron", []byte(out), l.Stats()); err != nil {
		return "", err
	}
	return out, nil
}

// YAMLResult describes a structured-output compilation.
type YAMLResult struct {
	// Path is where the records were written.
	Path string

	// Written is false when the schedule defined no job.
	Written bool

	Records int
}

// YAML compiles the schedule and writes the structured job list.
func YAML(ctx context.Context, p Params) (YAMLResult, error) {
	p = p.withDefaults()
	res, err := renderYAML(ctx, p)
	if err != nil {
		p.failed()
		return YAMLResult{}, classify(err)
	}
	return res, nil
}

func renderYAML(ctx context.Context, p Params) (YAMLResult, error) {
	l, err := evaluate(ctx, p)
	if err != nil {
		return YAMLResult{}, err
	}

	res := YAMLResult{Path: yamlPath(p.Config, p)}
	var data []byte
	err = telemetry.Run(ctx, p.Tracer, "render_yaml", func(context.Context) error {
		if data, err = l.YAMLOutput(); err != nil || data == nil {
			return err
		}
		res.Written, err = l.WriteYAMLData(res.Path, data)
		return err
	}, attribute.String("crongen.yaml_path", res.Path))
	if err != nil {
		return YAMLResult{}, err
	}
	res.Records = l.Stats().Records
	if err := p.observe(ctx, "yaml", data, l.Stats()); err != nil {
		return YAMLResult{}, err
	}
	return res, nil
}

// YAMLDocument compiles the schedule into the structured document without
// writing it. It returns nil when no job is defined.
func YAMLDocument(ctx context.Context, p Params) ([]byte, error) {
	p = p.withDefaults()
	l, err := evaluate(ctx, p)
	if err != nil {
		p.failed()
		return nil, classify(err)
	}
	var data []byte
	err = telemetry.Run(ctx, p.Tracer, "render_yaml", func(context.Context) error {
		data, err = l.YAMLOutput()
		return err
	})
	if err != nil {
		p.failed()
		return nil, classify(err)
	}
	if p.Metrics != nil {
		p.Metrics.Observe(l.Stats(), p.Now())
	}
	return data, nil
}

// Summary is the outcome of Check.
type Summary struct {
	Jobs    int
	Lines   int
	Merged  int
	Records int
}

// Check compiles both outputs in memory without writing anything.
func Check(ctx context.Context, p Params) (Summary, error) {
	p = p.withDefaults()
	l, err := evaluate(ctx, p)
	if err != nil {
		return Summary{}, classify(err)
	}
	if _, err := l.CronOutput(); err != nil {
		return Summary{}, classify(err)
	}
	if _, err := l.Records(); err != nil {
		return Summary{}, classify(err)
	}
	s := l.Stats()
	return Summary{Jobs: s.Jobs, Lines: s.Lines, Merged: s.Merged, Records: s.Records}, nil
}

// Upcoming lists the next activations of one structured record.
type Upcoming struct {
	joblist.Record
	Next []time.Time
}

// Next compiles the schedule and previews the next n activations of every
// record.
func Next(ctx context.Context, p Params, n int) ([]Upcoming, error) {
	p = p.withDefaults()
	l, err := evaluate(ctx, p)
	if err != nil {
		return nil, classify(err)
	}
	records, err := l.Records()
	if err != nil {
		return nil, classify(err)
	}

	from := p.Now()
	out := make([]Upcoming, 0, len(records))
	for _, r := range records {
		times, err := timescope.Next(r.Time, from, n)
		if err != nil {
			return nil, classify(err)
		}
		out = append(out, Upcoming{Record: r, Next: times})
	}
	return out, nil
}

// WriteFile writes compiled output to path as an I/O-classified operation.
func WriteFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &Error{Kind: KindIO, Err: fmt.Errorf("writing %s: %w", path, err)}
	}
	return nil
}

func (p Params) observe(ctx context.Context, output string, data []byte, s joblist.Stats) error {
	if p.History != nil {
		_, err := p.History.Record(ctx, history.Entry{
			At:       p.Now(),
			Output:   output,
			Schedule: p.Schedule,
			Digest:   history.Digest(data),
			Jobs:     s.Jobs,
			Lines:    s.Lines,
			Merged:   s.Merged,
			Records:  s.Records,
		})
		if err != nil {
			return err
		}
	}
	if p.Metrics == nil {
		return nil
	}
	p.Metrics.Observe(s, p.Now())
	return p.flushMetrics()
}

func (p Params) failed() {
	if p.Metrics == nil {
		return
	}
	p.Metrics.Failed()
	if err := p.flushMetrics(); err != nil {
		p.Logger.Warn("metrics export failed", "error", err)
	}
}

func (p Params) flushMetrics() error {
	if p.Config.Metrics.Textfile == "" {
		return nil
	}
	return p.Metrics.WriteTextfile(p.Config.Metrics.Textfile)
}
