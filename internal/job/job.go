// Package job defines the immutable record of one scheduled task and renders
// its shell command from a template and the merged option bag.
package job

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// ErrInvalidJob is returned when a job has neither a task nor a template.
var ErrInvalidJob = errors.New("job: invalid job")

// Reserved option keys consumed at construction time.
const (
	KeyTask        = "task"
	KeyTemplate    = "template"
	KeyMailto      = "mailto"
	KeyOutput      = "output"
	KeyCronLog     = "cron_log"
	KeyRoles       = "roles"
	KeyAt          = "at"
	KeyJobTemplate = "job_template"
	KeyPath        = "path"
)

// Options is an arbitrary key/value bag attached to a job.
type Options map[string]any

// Merge returns a new bag holding every layer, later layers overriding
// earlier ones on key collision. Nil layers are skipped.
func Merge(layers ...Options) Options {
	out := make(Options)
	for _, layer := range layers {
		maps.Copy(out, layer)
	}
	return out
}

// Has reports whether key is present, even with a nil value.
func (o Options) Has(key string) bool {
	_, ok := o[key]
	return ok
}

// String returns the value of key formatted for a command line. Missing
// keys and nil values render as "".
func (o Options) String(key string) string {
	v, ok := o[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Job is one scheduled task. It is never mutated after New returns.
type Job struct {
	task        string
	template    string
	jobTemplate string
	mailTarget  string
	hasMail     bool
	at          any
	roles       []string
	options     Options
}

// New builds a Job from a fully merged option bag. The task, template,
// job_template, at and roles keys are consumed; output is turned into a
// shell redirection and path is shell-escaped.
func New(opts Options) (*Job, error) {
	o := maps.Clone(opts)
	if o == nil {
		o = make(Options)
	}

	j := &Job{
		task:        o.String(KeyTask),
		template:    o.String(KeyTemplate),
		jobTemplate: o.String(KeyJobTemplate),
		at:          o[KeyAt],
		roles:       toStrings(o[KeyRoles]),
	}
	if j.task == "" && j.template == "" {
		return nil, fmt.Errorf("%w: task and template are both empty", ErrInvalidJob)
	}
	if j.jobTemplate == "" {
		j.jobTemplate = ":job"
	}
	if v, ok := o[KeyMailto]; ok && v != nil {
		j.mailTarget, j.hasMail = o.String(KeyMailto), true
	}

	delete(o, KeyTemplate)
	delete(o, KeyJobTemplate)
	delete(o, KeyAt)
	delete(o, KeyRoles)

	if o.Has(KeyOutput) {
		o[KeyOutput] = Redirection(o[KeyOutput])
	} else {
		o[KeyOutput] = ""
	}
	if o.String("environment_variable") == "" {
		o["environment_variable"] = "RAILS_ENV"
	}
	if o.String("environment") == "" {
		o["environment"] = "production"
	}
	if o.Has(KeyPath) {
		o[KeyPath] = ShellEscape(o.String(KeyPath))
	}

	j.options = o
	return j, nil
}

// Task returns the task identifier.
func (j *Job) Task() string { return j.task }

// Template returns the command template.
func (j *Job) Template() string { return j.template }

// MailTarget returns the mail target and false when the job uses the
// default target.
func (j *Job) MailTarget() (string, bool) { return j.mailTarget, j.hasMail }

// At returns the raw "at" option handed to the time-scope resolver.
func (j *Job) At() any { return j.at }

// Roles returns a copy of the job's role tags.
func (j *Job) Roles() []string { return slices.Clone(j.roles) }

// Option returns a single value of the merged option bag.
func (j *Job) Option(key string) (any, bool) {
	v, ok := j.options[key]
	return v, ok
}

// HasRole reports whether the job runs on role. A job without roles runs
// everywhere.
func (j *Job) HasRole(role string) bool {
	return len(j.roles) == 0 || slices.Contains(j.roles, role)
}

// Command renders the crontab command: the template interpolated with the
// options, wrapped in the job template, with '%' escaped for cron.
func (j *Job) Command() string {
	inner := interpolate(j.template, j.options)
	wrapped := interpolate(j.jobTemplate, Merge(j.options, Options{"job": inner}))
	return escapePercent(wrapped)
}

func toStrings(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []string:
		return slices.Clone(t)
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if item == nil {
				continue
			}
			out = append(out, fmt.Sprint(item))
		}
		return out
	default:
		return []string{fmt.Sprint(t)}
	}
}
