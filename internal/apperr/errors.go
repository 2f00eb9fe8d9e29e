package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindConfig    Kind = "config"
	KindUpload    Kind = "upload"
	KindDecode    Kind = "decode"
	KindReference Kind = "reference"
	KindModel     Kind = "model"
	KindRender    Kind = "render"
	KindUnknown   Kind = "unknown"
)

// Error carries the failure class, the operation and the flow state that was
// reached when the request aborted.
type Error struct {
	Kind    Kind
	Op      string
	State   string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Kind, e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Kind, e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Wrap returns nil for a nil err. An err that is already an *Error is returned
// as is so the innermost classification wins.
func Wrap(kind Kind, op, message string, err error) error {
	if err == nil {
		return nil
	}

	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}

	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
		Cause:   err,
	}
}

func New(kind Kind, op, message string) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
	}
}

// WithState records the flow state on the first *Error in the chain.
func WithState(err error, state string) error {
	var typed *Error
	if errors.As(err, &typed) && typed.State == "" {
		typed.State = state
	}
	return err
}

// IsKind checks whether any error in the chain matches the provided kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

func KindOf(err error) Kind {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind
	}
	return KindUnknown
}

func StateOf(err error) string {
	var target *Error
	if errors.As(err, &target) {
		return target.State
	}
	return ""
}
