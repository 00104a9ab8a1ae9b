// Package timescope turns the frequency token of an "every" block plus the
// job's "at" option into concrete crontab time specifications.
package timescope

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/flemzord/crongen/internal/job"
)

// ErrUnresolvable is returned when a time scope or "at" value cannot be
// turned into cron time fields.
var ErrUnresolvable = errors.New("timescope: unresolvable time scope")

// Resolver renders a time scope into one or more crontab time
// specifications, either five fields or an @-shortcut.
type Resolver interface {
	Resolve(scope string, opts job.Options) ([]string, error)
}

// Option keys read by the default resolver.
const (
	KeyAt             = job.KeyAt
	KeyChronicOptions = "chronic_options"
)

// keywords are the crontab @-shortcuts accepted as bare words.
var keywords = []string{"reboot", "yearly", "annually", "monthly", "weekly", "daily", "midnight", "hourly"}

// Default is the built-in resolver.
type Default struct {
	parser cron.Parser
}

// Compile-time interface check.
var _ Resolver = (*Default)(nil)

// NewDefault creates the built-in resolver.
func NewDefault() *Default {
	return &Default{
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// Resolve implements Resolver. Supported scopes are raw cron expressions,
// @-shortcuts and their bare keywords, frequencies ("day", "2.hours", "30m")
// and day names ("monday", "weekday", "weekend", comma lists). Every
// (scope part, at value) pair yields one timing.
func (d *Default) Resolve(scope string, opts job.Options) ([]string, error) {
	s := strings.TrimSpace(scope)
	if s == "" {
		return nil, fmt.Errorf("%w: empty scope", ErrUnresolvable)
	}

	clock := clockOptions{hours24: hours24(opts[KeyChronicOptions])}
	ats, err := parseAts(opts[KeyAt], clock)
	if err != nil {
		return nil, err
	}

	parts := []string{s}
	if !d.isCron(s) && strings.Contains(s, ",") {
		parts = splitList(s)
	}

	var out []string
	for _, part := range parts {
		for _, at := range ats {
			timing, err := d.resolveOne(part, at)
			if err != nil {
				return nil, fmt.Errorf("%w: %q: %w", ErrUnresolvable, scope, err)
			}
			out = append(out, timing)
		}
	}
	return out, nil
}

func (d *Default) resolveOne(s string, at atValue) (string, error) {
	low := strings.ToLower(s)

	if strings.HasPrefix(low, "@") {
		return d.shortcut(low, at)
	}
	for _, kw := range keywords {
		if low == kw {
			return d.shortcut("@"+kw, at)
		}
	}
	if d.isCron(s) {
		return strings.Join(strings.Fields(s), " "), nil
	}
	if secs, ok := parseFrequency(low); ok {
		return fromFrequency(secs, at)
	}
	return fromDayName(low, at)
}

func (d *Default) shortcut(s string, at atValue) (string, error) {
	if at.given() {
		return "", errors.New("an 'at' cannot be combined with a shortcut")
	}
	if s == "@reboot" {
		return s, nil
	}
	if strings.HasPrefix(s, "@every") {
		return "", errors.New("@every is not a crontab shortcut")
	}
	if _, err := d.parser.Parse(s); err != nil {
		return "", err
	}
	return s, nil
}

// isCron reports whether s is a valid five-field cron expression.
func (d *Default) isCron(s string) bool {
	if len(strings.Fields(s)) != 5 {
		return false
	}
	_, err := d.parser.Parse(s)
	return err == nil
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func hours24(v any) bool {
	switch t := v.(type) {
	case map[string]any:
		b, _ := t["hours24"].(bool)
		return b
	case job.Options:
		b, _ := t["hours24"].(bool)
		return b
	default:
		return false
	}
}
