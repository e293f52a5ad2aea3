package lifecycle

import (
	"errors"
	"fmt"
)

var (
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrOutOfRange   = errors.New("out of range")
	ErrInvalidInput = errors.New("invalid input")
)

// TransitionError reports a rejected transition. Kind is one of the sentinels above.
type TransitionError struct {
	Kind error
	Msg  string
}

func (e *TransitionError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *TransitionError) Unwrap() error { return e.Kind }

func conflictf(format string, args ...any) error {
	return &TransitionError{Kind: ErrConflict, Msg: fmt.Sprintf(format, args...)}
}

func invalidStatef(format string, args ...any) error {
	return &TransitionError{Kind: ErrInvalidState, Msg: fmt.Sprintf(format, args...)}
}

func outOfRangef(format string, args ...any) error {
	return &TransitionError{Kind: ErrOutOfRange, Msg: fmt.Sprintf(format, args...)}
}

func invalidInputf(format string, args ...any) error {
	return &TransitionError{Kind: ErrInvalidInput, Msg: fmt.Sprintf(format, args...)}
}
