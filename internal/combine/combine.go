// Package combine compacts crontab lines that differ in exactly one time
// field. For example a job that runs at 3:02 and 4:02 becomes a single
// "2 3,4 * * *" entry.
package combine

import (
	"slices"
	"strings"
)

// timeFields is the number of leading time fields in a crontab line.
const timeFields = 5

// Wildcard never absorbs, nor is absorbed into, another value.
const Wildcard = "*"

// Result is the outcome of one Lines call.
type Result struct {
	// Lines holds the combined entries in order.
	Lines []string

	// Merged counts the input lines folded into another line.
	Merged int
}

// IsShortcut reports whether line uses an @-alias such as @reboot.
func IsShortcut(line string) bool {
	return strings.HasPrefix(line, "@")
}

// Lines merges entries whose command and other four time fields are equal.
// Fields are processed minute, hour, day of month, month, day of week; within
// a pass, later entries are folded into the nearest earlier match. Callers
// must not pass shortcut lines.
func Lines(lines []string) Result {
	entries := make([][]string, 0, len(lines))
	for _, line := range lines {
		entries = append(entries, split(line))
	}

	merged := 0
	for f := range timeFields {
		for i := len(entries) - 1; i >= 1; i-- {
			if !mergeable(entries[i], f) {
				continue
			}
			for j := i - 1; j >= 0; j-- {
				if !mergeable(entries[j], f) {
					continue
				}
				if equalExcept(entries[i], entries[j], f) {
					entries[j][f] += "," + entries[i][f]
					entries = slices.Delete(entries, i, i+1)
					merged++
					break
				}
			}
		}
	}

	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, strings.Join(e, " "))
	}
	return Result{Lines: out, Merged: merged}
}

func mergeable(entry []string, f int) bool {
	return len(entry) == timeFields+1 && entry[f] != Wildcard
}

func equalExcept(a, b []string, f int) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if k != f && a[k] != b[k] {
			return false
		}
	}
	return true
}

// split breaks line into at most six parts on runs of spaces: five time
// fields and the command.
func split(line string) []string {
	parts := make([]string, 0, timeFields+1)
	rest := line
	for len(parts) < timeFields {
		idx := strings.IndexByte(rest, ' ')
		if idx < 0 {
			break
		}
		parts = append(parts, rest[:idx])
		rest = strings.TrimLeft(rest[idx:], " ")
	}
	return append(parts, rest)
}
