package job

import (
	"regexp"
	"strings"
)

var (
	placeholder = regexp.MustCompile(`:\w+`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// interpolate replaces every :name placeholder with the option of that name.
// A placeholder with no option, or a nil one, is left as written, so ports
// and clock times in a template survive. A placeholder wrapped in single
// (double) quotes has its single (double) quotes escaped for the shell.
func interpolate(tmpl string, opts Options) string {
	var b strings.Builder
	last := 0
	for _, loc := range placeholder.FindAllStringIndex(tmpl, -1) {
		start, end := loc[0], loc[1]
		b.WriteString(tmpl[last:start])
		last = end

		key := tmpl[start+1 : end]
		if v, ok := opts[key]; !ok || v == nil {
			b.WriteString(tmpl[start:end])
			continue
		}
		value := opts.String(key)
		switch quote := surroundingQuote(tmpl, start, end); quote {
		case '\'':
			value = strings.ReplaceAll(value, "'", `'\''`)
		case '"':
			value = strings.ReplaceAll(value, `"`, `\"`)
		}
		b.WriteString(value)
	}
	b.WriteString(tmpl[last:])

	return strings.TrimSpace(whitespace.ReplaceAllString(b.String(), " "))
}

func surroundingQuote(s string, start, end int) byte {
	if start == 0 || end >= len(s) {
		return 0
	}
	before, after := s[start-1], s[end]
	if before == after && (before == '\'' || before == '"') {
		return before
	}
	return 0
}

func escapePercent(s string) string {
	return strings.ReplaceAll(s, "%", `\%`)
}

// ShellEscape quotes s so it is passed to a POSIX shell as a single word.
func ShellEscape(s string) string {
	if s == "" {
		return "''"
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '\n':
			b.WriteString("'\n'")
		case isShellSafe(r):
			b.WriteRune(r)
		default:
			b.WriteByte('\\')
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isShellSafe(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	return strings.ContainsRune("_-.,:+/@", r)
}
