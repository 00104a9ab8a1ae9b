package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/flemzord/crongen/internal/config"
	"github.com/flemzord/crongen/internal/definition"
	"github.com/flemzord/crongen/internal/joblist"
	"github.com/flemzord/crongen/internal/timescope"
	"github.com/flemzord/crongen/internal/vars"
)

// Kind classifies a compilation failure.
type Kind string

const (
	// KindDefinition covers malformed definitions and configuration.
	KindDefinition Kind = "definition"

	// KindResolution covers time scopes that cannot be turned into cron
	// expressions.
	KindResolution Kind = "resolution"

	// KindIO covers reading inputs and writing outputs.
	KindIO Kind = "io"
)

// ExitCode is the process exit status for the kind.
func (k Kind) ExitCode() int {
	switch k {
	case KindDefinition:
		return 2
	case KindResolution:
		return 3
	case KindIO:
		return 4
	default:
		return 1
	}
}

// Error is a classified compilation failure.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ExitCode maps err to a process exit status: 0 for nil, the kind's status
// for an *Error and 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind.ExitCode()
	}
	return 1
}

var definitionErrors = []error{
	definition.ErrSyntax,
	vars.ErrUnresolvedVariable,
	joblist.ErrInvalidJob,
	joblist.ErrUnknownJobType,
	config.ErrParse,
}

// classify wraps err in an *Error. Errors that match no known sentinel are
// treated as I/O failures, which is what remains once definitions and time
// scopes are accounted for. Context cancellation is returned unwrapped.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	// Cancellation is not a compilation failure and keeps the generic exit
	// status.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, timescope.ErrUnresolvable) {
		return &Error{Kind: KindResolution, Err: err}
	}
	for _, target := range definitionErrors {
		if errors.Is(err, target) {
			return &Error{Kind: KindDefinition, Err: err}
		}
	}
	return &Error{Kind: KindIO, Err: err}
}
