// Package normalize strips deployment-specific wrapper text from rendered
// cron commands so the structured job list shows what actually runs.
package normalize

import "strings"

// DefaultQuote is the escaped single quote the default job template leaves
// around values quoted inside a "bash -c '...'" wrapper.
const DefaultQuote = `'\''`

// Marker describes an environment assignment whose value is lifted out of the
// command into its own record field.
type Marker struct {
	// Variable is the environment variable name to look for.
	Variable string `yaml:"variable"`

	// Field is the record key that receives the extracted value.
	Field string `yaml:"field"`

	// Quote is removed from the end of the extracted value.
	// Defaults to DefaultQuote.
	Quote string `yaml:"quote,omitempty"`
}

// Table is the configuration of a Normalizer.
type Table struct {
	// Strip lists exact substrings removed from a command, first occurrence
	// only, in order.
	Strip []string `yaml:"strip,omitempty"`

	// Marker is optional.
	Marker *Marker `yaml:"marker,omitempty"`
}

// Result is a normalized command.
type Result struct {
	Command string

	// Field and Value are set when the marker was detected.
	Field string
	Value string
}

// HasMarker reports whether a marker value was extracted.
func (r Result) HasMarker() bool { return r.Field != "" }

// Normalizer applies a Table. The zero value returns commands unchanged.
type Normalizer struct {
	table Table
}

// New creates a Normalizer from a table.
func New(table Table) *Normalizer {
	return &Normalizer{table: table}
}

// Normalize cleans command. When the marker variable is present the value
// following its assignment becomes the command and the marker field.
func (n *Normalizer) Normalize(command string) Result {
	if n == nil {
		return Result{Command: command}
	}
	for _, s := range n.table.Strip {
		if s == "" {
			continue
		}
		command = strings.Replace(command, s, "", 1)
	}

	m := n.table.Marker
	if m == nil || m.Variable == "" || !strings.Contains(command, m.Variable) {
		return Result{Command: command}
	}
	value, ok := extract(command, m)
	if !ok {
		return Result{Command: command}
	}
	field := m.Field
	if field == "" {
		field = m.Variable
	}
	return Result{Command: value, Field: field, Value: value}
}

// extract returns the last word of the value assigned to the marker
// variable, without its quotes. A quoted value may span several tokens.
func extract(command string, m *Marker) (string, bool) {
	quote := m.Quote
	if quote == "" {
		quote = DefaultQuote
	}
	prefix := m.Variable + "="
	tokens := strings.Fields(command)
	for i, tok := range tokens {
		if !strings.HasPrefix(tok, prefix) {
			continue
		}
		value := strings.TrimPrefix(tok, prefix)
		if !strings.HasPrefix(value, quote) {
			return value, value != ""
		}

		words := append([]string{strings.TrimPrefix(value, quote)}, tokens[i+1:]...)
		for _, w := range words {
			if strings.HasSuffix(w, quote) {
				v := strings.TrimSuffix(w, quote)
				return v, v != ""
			}
		}
		return "", false
	}
	return "", false
}
