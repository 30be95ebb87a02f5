// Package errdefs defines the structured error taxonomy for compression jobs.
//
// Errors are tagged with a Kind at the point of origin (extraction, engine
// call, transport) so the degradation engine can decide recoverability
// without inspecting message text. Substring classification exists only as a
// fallback for errors that cross the worker process boundary without a code.
package errdefs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies an error category for degradation decisions.
type Kind string

const (
	KindInvalidInput     Kind = "invalid_input"
	KindOutOfMemory      Kind = "out_of_memory"
	KindEngineLoadFailed Kind = "engine_load_failed"
	KindExecutionUnit    Kind = "execution_unit_error"
	KindTimeout          Kind = "timeout"
	KindTransport        Kind = "transport_error"
	KindValidationFailed Kind = "validation_failed"
	KindUnknown          Kind = "unknown"
)

// Error is a kind-carrying error. Phase records where in the job the error
// originated (planning, compressing, merging).
type Error struct {
	Kind  Kind
	Phase string
	Err   error
}

func (e *Error) Error() string {
	if e.Phase != "" {
		return fmt.Sprintf("%s (%s): %v", e.Kind, e.Phase, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a kinded error wrapping a message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Wrap tags err with a kind. Returns nil if err is nil.
func Wrap(kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// WithPhase returns a copy of the error annotated with a job phase.
func (e *Error) WithPhase(phase string) *Error {
	return &Error{Kind: e.Kind, Phase: phase, Err: e.Err}
}

// KindOf extracts the Kind from err. Errors without an explicit kind fall
// back to Classify's message heuristic.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Classify(err)
}

// PhaseOf returns the phase annotation on err, or "" if none.
func PhaseOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Phase
	}
	return ""
}

// Recoverable reports whether a failure of this kind may succeed under a
// milder preset. InvalidInput, EngineLoadFailed and ValidationFailed will
// fail identically on retry and propagate immediately.
func Recoverable(kind Kind) bool {
	switch kind {
	case KindOutOfMemory, KindTimeout, KindExecutionUnit, KindTransport, KindUnknown:
		return true
	default:
		return false
	}
}

// ParseKind maps a wire code back to a Kind. Unrecognized codes become
// KindUnknown.
func ParseKind(code string) Kind {
	switch Kind(code) {
	case KindInvalidInput, KindOutOfMemory, KindEngineLoadFailed,
		KindExecutionUnit, KindTimeout, KindTransport, KindValidationFailed:
		return Kind(code)
	default:
		return KindUnknown
	}
}

// Classify infers a Kind from an error's message. Last-resort heuristic for
// errors originating outside this module (engine output, crashed workers);
// anything produced in-process should carry an explicit Kind instead.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "out of memory"), strings.Contains(msg, "oom"),
		strings.Contains(msg, "cannot allocate"):
		return KindOutOfMemory
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"),
		strings.Contains(msg, "deadline exceeded"):
		return KindTimeout
	case strings.Contains(msg, "invalid pdf"), strings.Contains(msg, "malformed"),
		strings.Contains(msg, "empty document"):
		return KindInvalidInput
	case strings.Contains(msg, "engine load"), strings.Contains(msg, "module load"):
		return KindEngineLoadFailed
	case strings.Contains(msg, "broken pipe"), strings.Contains(msg, "exit status"),
		strings.Contains(msg, "unexpected eof"):
		return KindTransport
	default:
		return KindUnknown
	}
}
