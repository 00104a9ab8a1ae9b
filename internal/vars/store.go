// Package vars holds the two variable tiers of a schedule definition and the
// environment lines emitted at the top of a crontab.
package vars

import (
	"errors"
	"fmt"
	"maps"
	"strings"
)

// ErrUnresolvedVariable is returned when a definition references a variable
// that was never set.
var ErrUnresolvedVariable = errors.New("vars: unresolved variable")

// Store keeps pre-set variables (supplied before evaluation) and script-set
// variables (from set calls). A pre-set key can never be overwritten.
type Store struct {
	preSet    map[string]string
	scriptSet map[string]any

	envKeys []string
	env     map[string]string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		preSet:    make(map[string]string),
		scriptSet: make(map[string]any),
		env:       make(map[string]string),
	}
}

// PreSet parses a "key=value&key=value" string and installs every valid pair
// as an immutable variable. Pairs without '=' or with an empty key or value
// are skipped.
func (s *Store) PreSet(raw string) {
	if raw == "" {
		return
	}
	for pair := range strings.SplitSeq(raw, "&") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		s.Set(key, value)
		s.preSet[key] = value
	}
}

// Set stores value under key unless key was pre-set.
func (s *Store) Set(key string, value any) {
	if _, ok := s.preSet[key]; ok {
		return
	}
	s.scriptSet[key] = value
}

// IsPreSet reports whether key was supplied through PreSet.
func (s *Store) IsPreSet(key string) bool {
	_, ok := s.preSet[key]
	return ok
}

// Get returns the script-set value of key.
func (s *Store) Get(key string) (any, bool) {
	v, ok := s.scriptSet[key]
	return v, ok
}

// Lookup resolves key as a variable reference. It returns an error wrapping
// ErrUnresolvedVariable when the key was never set.
func (s *Store) Lookup(key string) (any, error) {
	v, ok := s.scriptSet[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnresolvedVariable, key)
	}
	return v, nil
}

// Snapshot returns a copy of the script-set variables.
func (s *Store) Snapshot() map[string]any {
	return maps.Clone(s.scriptSet)
}

// Env records an environment variable for the crontab header. A key keeps
// the position of its first assignment.
func (s *Store) Env(key, value string) {
	if _, ok := s.env[key]; !ok {
		s.envKeys = append(s.envKeys, key)
	}
	s.env[key] = value
}

// EnvBlock renders the environment lines followed by a blank line, or ""
// when no environment variable was recorded.
func (s *Store) EnvBlock() string {
	if len(s.envKeys) == 0 {
		return ""
	}
	var b strings.Builder
	for _, key := range s.envKeys {
		value := s.env[key]
		if value == "" {
			value = `""`
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(value)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return b.String()
}
