// Package definition parses schedule definitions and evaluates them against
// a joblist.JobList.
//
// A definition is an ordered list of statements under a "schedule" key:
//
//	schedule:
//	  - set: {path: /srv/app}
//	  - env: {PATH: /usr/bin:/bin}
//	  - job_type: {name: backup, template: "cd :path && ./backup :task"}
//	  - every: 1.day
//	    options: {at: "4:30am"}
//	    do:
//	      - job: {type: backup, task: db}
//
// String values may reference script variables as ${name}.
package definition

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrSyntax is returned for malformed definitions.
var ErrSyntax = errors.New("definition: syntax error")

// File is a parsed schedule definition.
type File struct {
	Schedule []Statement `yaml:"schedule"`
}

// Pair is one ordered key/value of a set or env statement.
type Pair struct {
	Key   string
	Value any
}

// JobTypeDef defines a job type.
type JobTypeDef struct {
	Name     string `yaml:"name"`
	Template string `yaml:"template"`
}

// JobCall invokes a job type.
type JobCall struct {
	Type    string         `yaml:"type"`
	Task    string         `yaml:"task"`
	Options map[string]any `yaml:"options,omitempty"`
}

// EveryBlock groups statements under one time scope.
type EveryBlock struct {
	Scope   string
	Options map[string]any
	Do      []Statement
}

// Statement is exactly one of Set, Env, JobType, Every or Job.
type Statement struct {
	Set     []Pair
	Env     []Pair
	JobType *JobTypeDef
	Every   *EveryBlock
	Job     *JobCall

	// Line is the source line, zero for statements built in Go.
	Line int
}

// Parse decodes a definition document. An empty document is an empty
// schedule.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		if errors.Is(err, ErrSyntax) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrSyntax, err)
	}
	return &f, nil
}

func syntaxError(node *yaml.Node, format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s", ErrSyntax, node.Line, fmt.Sprintf(format, args...))
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Statement) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return syntaxError(node, "statement must be a mapping")
	}

	*s = Statement{Line: node.Line}
	var verbs []string
	var hasOptions, hasDo bool
	every := func() *EveryBlock {
		if s.Every == nil {
			s.Every = &EveryBlock{}
		}
		return s.Every
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i].Value, node.Content[i+1]
		var err error
		switch key {
		case "set":
			verbs = append(verbs, key)
			s.Set, err = decodePairs(val)
		case "env":
			verbs = append(verbs, key)
			s.Env, err = decodePairs(val)
		case "job_type":
			verbs = append(verbs, key)
			var jt JobTypeDef
			if err = val.Decode(&jt); err == nil && jt.Name == "" {
				err = syntaxError(val, "job_type needs a name")
			}
			s.JobType = &jt
		case "job":
			verbs = append(verbs, key)
			var jc JobCall
			if err = val.Decode(&jc); err == nil && jc.Type == "" {
				err = syntaxError(val, "job needs a type")
			}
			s.Job = &jc
		case "every":
			verbs = append(verbs, key)
			every().Scope, err = decodeScope(val)
		case "options":
			hasOptions = true
			err = val.Decode(&every().Options)
		case "do":
			hasDo = true
			err = val.Decode(&every().Do)
		default:
			err = syntaxError(node.Content[i], "unknown statement key %q", key)
		}
		if err != nil {
			return err
		}
	}

	switch {
	case len(verbs) == 0:
		return syntaxError(node, "statement has no verb (set, env, job_type, every, job)")
	case len(verbs) > 1:
		return syntaxError(node, "statement mixes %s", strings.Join(verbs, ", "))
	case (hasOptions || hasDo) && verbs[0] != "every":
		return syntaxError(node, "options and do belong to an every statement")
	}
	return nil
}

func decodePairs(node *yaml.Node) ([]Pair, error) {
	if node.Kind != yaml.MappingNode {
		return nil, syntaxError(node, "expected a mapping")
	}
	pairs := make([]Pair, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var v any
		if err := node.Content[i+1].Decode(&v); err != nil {
			return nil, err
		}
		pairs = append(pairs, Pair{Key: node.Content[i].Value, Value: v})
	}
	return pairs, nil
}

// decodeScope accepts a scalar or a list of scalars, joined with commas.
func decodeScope(node *yaml.Node) (string, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Value == "" {
			return "", syntaxError(node, "every needs a time scope")
		}
		return node.Value, nil
	case yaml.SequenceNode:
		parts := make([]string, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return "", syntaxError(item, "time scope list items must be scalars")
			}
			parts = append(parts, item.Value)
		}
		if len(parts) == 0 {
			return "", syntaxError(node, "every needs a time scope")
		}
		return strings.Join(parts, ", "), nil
	default:
		return "", syntaxError(node, "every needs a scalar time scope")
	}
}
