// Package joblist collects job definitions under (mail target, time scope)
// buckets and renders them as crontab text or as a structured job list.
package joblist

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"

	"github.com/flemzord/crongen/internal/job"
	"github.com/flemzord/crongen/internal/normalize"
	"github.com/flemzord/crongen/internal/timescope"
	"github.com/flemzord/crongen/internal/vars"
)

var (
	// ErrInvalidJob is returned for a job without task and template, or one
	// declared outside an Every block.
	ErrInvalidJob = job.ErrInvalidJob

	// ErrUnknownJobType is returned when invoking an undefined job type.
	ErrUnknownJobType = errors.New("joblist: unknown job type")

	// ErrWrite wraps failures writing the structured output.
	ErrWrite = errors.New("joblist: write failed")
)

// Optional is a setting that may be absent. A present nil Value is
// meaningful: an output of nil discards the job's output.
type Optional struct {
	Value any
	Set   bool
}

// Some returns a present Optional.
func Some(v any) Optional { return Optional{Value: v, Set: true} }

// Settings are instance-wide defaults. A set call on the same key during
// evaluation overrides them.
type Settings struct {
	// Output is the redirection applied to jobs that specify none.
	Output Optional

	// CronLog is the legacy form of Output. When present it takes
	// precedence over a job's own output option.
	CronLog Optional

	// ChronicOptions is handed to the time-scope resolver.
	ChronicOptions map[string]any
}

// Options configures a JobList.
type Options struct {
	// PreSet is a "key=value&key=value" string of immutable variables.
	PreSet string

	// Roles restricts rendering to jobs carrying at least one of these
	// roles. Empty renders every job.
	Roles []string

	// Resolver defaults to timescope.NewDefault().
	Resolver timescope.Resolver

	// Normalizer cleans commands in the structured output. Nil leaves
	// commands unchanged.
	Normalizer *normalize.Normalizer

	Settings Settings

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

type scopeBucket struct {
	scope string
	jobs  []*job.Job
}

type mailBucket struct {
	target    string
	isDefault bool
	scopes    []*scopeBucket
	index     map[string]*scopeBucket
}

func (b *mailBucket) scopeBucket(scope string) *scopeBucket {
	if sb, ok := b.index[scope]; ok {
		return sb
	}
	sb := &scopeBucket{scope: scope}
	b.scopes = append(b.scopes, sb)
	b.index[scope] = sb
	return sb
}

// JobList aggregates jobs for one compilation. It is not safe for
// concurrent use.
type JobList struct {
	vars       *vars.Store
	types      map[string]string
	roles      []string
	resolver   timescope.Resolver
	normalizer *normalize.Normalizer
	settings   Settings
	logger     *slog.Logger

	scope     string
	scopeOpts job.Options
	inScope   bool

	defaultBucket *mailBucket
	targets       []*mailBucket
	byTarget      map[string]*mailBucket
	count         int

	stats Stats
}

// New creates an empty JobList and applies opts.PreSet.
func New(opts Options) *JobList {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	resolver := opts.Resolver
	if resolver == nil {
		resolver = timescope.NewDefault()
	}

	l := &JobList{
		vars:       vars.NewStore(),
		types:      make(map[string]string),
		roles:      opts.Roles,
		resolver:   resolver,
		normalizer: opts.Normalizer,
		settings:   opts.Settings,
		logger:     logger,
		byTarget:   make(map[string]*mailBucket),
	}
	l.vars.PreSet(opts.PreSet)
	return l
}

// Vars exposes the variable store.
func (l *JobList) Vars() *vars.Store { return l.vars }

// Roles returns the active role filter.
func (l *JobList) Roles() []string { return l.roles }

// Set stores a script variable. Pre-set variables are left untouched.
func (l *JobList) Set(key string, value any) {
	if l.vars.IsPreSet(key) {
		l.logger.Debug("joblist: ignoring set of pre-set variable", "key", key)
	}
	l.vars.Set(key, value)
}

// Env records an environment line for the crontab header.
func (l *JobList) Env(key, value string) {
	l.vars.Env(key, value)
}

// JobType defines, or redefines, a job type bound to template.
func (l *JobList) JobType(name, template string) {
	l.types[name] = template
}

// HasJobType reports whether name is a defined job type.
func (l *JobList) HasJobType(name string) bool {
	_, ok := l.types[name]
	return ok
}

// Every runs body with scope and opts as the current time-scope context and
// restores the previous context when body returns.
func (l *JobList) Every(scope string, opts job.Options, body func() error) error {
	prevScope, prevOpts, prevIn := l.scope, l.scopeOpts, l.inScope
	l.scope, l.scopeOpts, l.inScope = scope, maps.Clone(opts), true
	defer func() {
		l.scope, l.scopeOpts, l.inScope = prevScope, prevOpts, prevIn
	}()

	if body == nil {
		return nil
	}
	return body()
}

// Invoke builds one job of the named type under the current time scope.
//
// Options are merged with increasing precedence: time-scope options, script
// variables, call-site options. The mail target comes from the call site,
// then the time scope, then the default target.
func (l *JobList) Invoke(typeName, task string, opts job.Options) error {
	tmpl, ok := l.types[typeName]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownJobType, typeName)
	}
	if !l.inScope {
		return fmt.Errorf("%w: %s %q declared outside an every block", ErrInvalidJob, typeName, task)
	}

	call := job.Merge(job.Options{job.KeyTask: task, job.KeyTemplate: tmpl}, opts)

	target, hasTarget := mailTarget(call, l.scopeOpts)

	// cron_log is the legacy redirection option and wins over output.
	cronLog, hasCronLog := l.ambient(job.KeyCronLog)
	if hasCronLog || call.Has(job.KeyCronLog) {
		v := call[job.KeyCronLog]
		if isFalsy(v) {
			v = cronLog
		}
		call[job.KeyOutput] = v
	}
	if out, ok := l.ambient(job.KeyOutput); ok && !call.Has(job.KeyOutput) {
		call[job.KeyOutput] = out
	}

	merged := job.Merge(l.scopeOpts, l.vars.Snapshot(), call)
	if hasTarget {
		merged[job.KeyMailto] = target
	} else {
		delete(merged, job.KeyMailto)
	}

	j, err := job.New(merged)
	if err != nil {
		return fmt.Errorf("joblist: %s %q: %w", typeName, task, err)
	}

	bucket := l.mailBucket(target, hasTarget)
	sb := bucket.scopeBucket(l.scope)
	sb.jobs = append(sb.jobs, j)
	l.count++

	l.logger.Debug("joblist: job added",
		"type", typeName,
		"task", task,
		"scope", l.scope,
		"mailto", target,
	)
	return nil
}

// Len returns the number of jobs added, before role filtering.
func (l *JobList) Len() int { return l.count }

func (l *JobList) mailBucket(target string, hasTarget bool) *mailBucket {
	if !hasTarget {
		if l.defaultBucket == nil {
			l.defaultBucket = &mailBucket{isDefault: true, index: make(map[string]*scopeBucket)}
		}
		return l.defaultBucket
	}
	if b, ok := l.byTarget[target]; ok {
		return b
	}
	b := &mailBucket{target: target, index: make(map[string]*scopeBucket)}
	l.targets = append(l.targets, b)
	l.byTarget[target] = b
	return b
}

// buckets returns the default bucket first, then the others in first-seen
// order.
func (l *JobList) buckets() []*mailBucket {
	out := make([]*mailBucket, 0, len(l.targets)+1)
	if l.defaultBucket != nil {
		out = append(out, l.defaultBucket)
	}
	return append(out, l.targets...)
}

// ambient returns a setting from a set call or, failing that, from Settings.
func (l *JobList) ambient(key string) (any, bool) {
	if v, ok := l.vars.Get(key); ok {
		return v, true
	}
	switch key {
	case job.KeyOutput:
		return l.settings.Output.Value, l.settings.Output.Set
	case job.KeyCronLog:
		return l.settings.CronLog.Value, l.settings.CronLog.Set
	case timescope.KeyChronicOptions:
		return l.settings.ChronicOptions, l.settings.ChronicOptions != nil
	}
	return nil, false
}

// selected applies the role filter.
func (l *JobList) selected(j *job.Job) bool {
	if len(l.roles) == 0 {
		return true
	}
	for _, r := range l.roles {
		if j.HasRole(r) {
			return true
		}
	}
	return false
}

func (l *JobList) timings(scope string, j *job.Job) ([]string, error) {
	opts := job.Options{timescope.KeyAt: j.At()}
	if chronic, ok := l.ambient(timescope.KeyChronicOptions); ok {
		opts[timescope.KeyChronicOptions] = chronic
	}
	timings, err := l.resolver.Resolve(scope, opts)
	if err != nil {
		return nil, fmt.Errorf("joblist: %q: %w", j.Task(), err)
	}
	return timings, nil
}

func mailTarget(call, scopeOpts job.Options) (string, bool) {
	if v, ok := call[job.KeyMailto]; ok && v != nil {
		return call.String(job.KeyMailto), true
	}
	if v, ok := scopeOpts[job.KeyMailto]; ok && v != nil {
		return scopeOpts.String(job.KeyMailto), true
	}
	return "", false
}

func isFalsy(v any) bool {
	if v == nil {
		return true
	}
	b, ok := v.(bool)
	return ok && !b
}
