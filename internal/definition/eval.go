package definition

import (
	"fmt"
	"os"
	"regexp"

	"github.com/flemzord/crongen/internal/job"
	"github.com/flemzord/crongen/internal/joblist"
	"github.com/flemzord/crongen/internal/vars"
)

// DefaultJobTemplate wraps every command unless job_template is overridden.
const DefaultJobTemplate = "/bin/bash -l -c ':job'"

// EvalOptions tunes Evaluate.
type EvalOptions struct {
	// Path is the default value of the path variable. Empty uses the
	// working directory.
	Path string

	// SkipPreamble evaluates the file without the built-in statements.
	SkipPreamble bool
}

// Preamble returns the built-in statements evaluated before every
// definition: default variables and the command, rake, script and runner
// job types.
func Preamble(path string) []Statement {
	return NewProgram().
		Set(job.KeyJobTemplate, DefaultJobTemplate).
		Set(job.KeyPath, path).
		Set("environment_variable", "RAILS_ENV").
		Set("environment", "production").
		Set("bundle_command", "bundle exec").
		Set("runner_command", "bin/rails runner").
		JobType("command", ":task :output").
		JobType("rake", "cd :path && :environment_variable=:environment :bundle_command rake :task --silent :output").
		JobType("script", "cd :path && :environment_variable=:environment :bundle_command script/:task :output").
		JobType("runner", "cd :path && :bundle_command :runner_command -e :environment ':task' :output").
		Statements()
}

// Evaluate runs the preamble and then f against l.
func Evaluate(l *joblist.JobList, f *File, opts EvalOptions) error {
	if !opts.SkipPreamble {
		path := opts.Path
		if path == "" {
			wd, err := os.Getwd()
			if err != nil {
				wd = "."
			}
			path = wd
		}
		if err := Run(l, Preamble(path)); err != nil {
			return err
		}
	}
	if f == nil {
		return nil
	}
	return Run(l, f.Schedule)
}

// Run evaluates stmts in order and stops at the first error.
func Run(l *joblist.JobList, stmts []Statement) error {
	for i := range stmts {
		if err := run(l, &stmts[i]); err != nil {
			if stmts[i].Line > 0 {
				return fmt.Errorf("line %d: %w", stmts[i].Line, err)
			}
			return err
		}
	}
	return nil
}

func run(l *joblist.JobList, st *Statement) error {
	store := l.Vars()
	switch {
	case st.Set != nil:
		for _, p := range st.Set {
			v, err := expand(store, p.Value)
			if err != nil {
				return err
			}
			l.Set(p.Key, v)
		}
	case st.Env != nil:
		for _, p := range st.Env {
			v, err := expand(store, p.Value)
			if err != nil {
				return err
			}
			l.Env(p.Key, str(v))
		}
	case st.JobType != nil:
		tmpl, err := expandString(store, st.JobType.Template)
		if err != nil {
			return err
		}
		l.JobType(st.JobType.Name, str(tmpl))
	case st.Every != nil:
		scope, err := expandString(store, st.Every.Scope)
		if err != nil {
			return err
		}
		opts, err := expandOptions(store, st.Every.Options)
		if err != nil {
			return err
		}
		body := st.Every.Do
		return l.Every(str(scope), opts, func() error {
			return Run(l, body)
		})
	case st.Job != nil:
		task, err := expandString(store, st.Job.Task)
		if err != nil {
			return err
		}
		opts, err := expandOptions(store, st.Job.Options)
		if err != nil {
			return err
		}
		return l.Invoke(st.Job.Type, str(task), opts)
	default:
		return fmt.Errorf("%w: empty statement", ErrSyntax)
	}
	return nil
}

var refPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandString resolves ${name} references in s. A string that is exactly
// one reference yields the variable's value unchanged, keeping its type.
func expandString(store *vars.Store, s string) (any, error) {
	if m := refPattern.FindStringSubmatchIndex(s); m != nil && m[0] == 0 && m[1] == len(s) {
		return store.Lookup(s[m[2]:m[3]])
	}

	var firstErr error
	out := refPattern.ReplaceAllStringFunc(s, func(ref string) string {
		name := refPattern.FindStringSubmatch(ref)[1]
		v, err := store.Lookup(name)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return ref
		}
		return str(v)
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

func expand(store *vars.Store, v any) (any, error) {
	switch val := v.(type) {
	case string:
		return expandString(store, val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			e, err := expand(store, item)
			if err != nil {
				return nil, err
			}
			out[k] = e
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			e, err := expand(store, item)
			if err != nil {
				return nil, err
			}
			out[i] = e
		}
		return out, nil
	default:
		return v, nil
	}
}

func expandOptions(store *vars.Store, opts map[string]any) (job.Options, error) {
	if opts == nil {
		return nil, nil
	}
	v, err := expand(store, opts)
	if err != nil {
		return nil, err
	}
	return job.Options(v.(map[string]any)), nil
}

func str(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
