// Package errs defines the error taxonomy shared by the engine and the API
// layer: NotFound, Conflict, ValidationError and ResolutionFailure. The API
// maps the first three onto HTTP status codes; ResolutionFailure never reaches
// the API, it is converted into a failed Work plus an Execution record inside
// the assignment path.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the API boundary.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindConflict
	KindValidation
	KindResolution
)

// Error is a classified error carrying an API-safe message.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// Is lets errors.Is match any two errors of the same kind.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// Sentinels for errors.Is checks.
var (
	ErrNotFound   = &Error{Kind: KindNotFound, Msg: "not found"}
	ErrConflict   = &Error{Kind: KindConflict, Msg: "conflict"}
	ErrValidation = &Error{Kind: KindValidation, Msg: "validation error"}
	ErrResolution = &Error{Kind: KindResolution, Msg: "resolution failure"}
)

func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// ResolutionError reports a template parameter that could not be resolved at
// assignment time. Reason is the short label recorded as the Execution action
// name ("Missing metadata key", "Missing cred from store").
type ResolutionError struct {
	Reason string
	Token  string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Token)
}

func (e *ResolutionError) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == KindResolution
	}
	return false
}
