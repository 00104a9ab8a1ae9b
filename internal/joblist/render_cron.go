package joblist

import (
	"strings"

	"github.com/flemzord/crongen/internal/combine"
)

const lineEnd = "\n\n"

// Stats describes the last rendering.
type Stats struct {
	// Jobs is the number of jobs that passed the role filter.
	Jobs int

	// Lines is the number of crontab lines emitted.
	Lines int

	// Merged is the number of lines folded away by the combiner.
	Merged int

	// Records is the number of structured records produced.
	Records int
}

// Stats returns the counters of the last CronOutput and Records calls. Jobs
// is set by both.
func (l *JobList) Stats() Stats { return l.stats }

// CronOutput renders the environment block followed by the crontab entries.
// Jobs with the default mail target come first and carry no header; other
// targets get a MAILTO line when they produce output.
func (l *JobList) CronOutput() (string, error) {
	jobs, err := l.cronJobs()
	if err != nil {
		return "", err
	}
	return l.vars.EnvBlock() + jobs, nil
}

func (l *JobList) cronJobs() (string, error) {
	l.stats.Jobs, l.stats.Lines, l.stats.Merged = 0, 0, 0
	if l.count == 0 {
		return "", nil
	}

	var b strings.Builder
	for _, bucket := range l.buckets() {
		var section strings.Builder
		for _, sb := range bucket.scopes {
			out, err := l.cronOfScope(sb)
			if err != nil {
				return "", err
			}
			section.WriteString(out)
		}
		if section.Len() == 0 {
			continue
		}
		if !bucket.isDefault {
			b.WriteString("MAILTO=" + bucket.target + lineEnd)
		}
		b.WriteString(section.String())
	}
	return b.String(), nil
}

// cronOfScope renders one time scope: shortcut lines first, in order, then
// the combined regular lines.
func (l *JobList) cronOfScope(sb *scopeBucket) (string, error) {
	var shortcuts, regular []string
	for _, j := range sb.jobs {
		if !l.selected(j) {
			continue
		}
		l.stats.Jobs++

		timings, err := l.timings(sb.scope, j)
		if err != nil {
			return "", err
		}
		command := j.Command()
		for _, t := range timings {
			line := t + " " + command
			if combine.IsShortcut(line) {
				shortcuts = append(shortcuts, line)
			} else {
				regular = append(regular, line)
			}
		}
	}

	res := combine.Lines(regular)
	if res.Merged > 0 {
		l.logger.Debug("joblist: combined cron lines",
			"scope", sb.scope,
			"merged", res.Merged,
		)
	}
	l.stats.Merged += res.Merged
	l.stats.Lines += len(shortcuts) + len(res.Lines)

	var b strings.Builder
	for _, line := range shortcuts {
		b.WriteString(line + lineEnd)
	}
	for _, line := range res.Lines {
		b.WriteString(line + lineEnd)
	}
	return b.String(), nil
}
