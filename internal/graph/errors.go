package graph

import (
	"errors"
	"fmt"
)

// Sentinel errors classifying graph failures. Every error returned by this
// package (and by build realization) wraps exactly one of these, so callers
// can classify with errors.Is and recover the offending stage, action index,
// or argument name with errors.As on [*Error].
var (
	ErrUndeclaredBase  = errors.New("undeclared base")
	ErrCycle           = errors.New("stage graph cycle")
	ErrMissingArgument = errors.New("missing argument")
	ErrActionFailed    = errors.New("action failed")
)

// A graph failure with its location.
//
// Stage names the offending stage. Action is the 1-based action index for
// [ErrActionFailed] and zero otherwise. Argument names the unresolvable
// argument for [ErrMissingArgument].
type Error struct {
	Kind     error  // One of the package sentinel errors.
	Stage    string // Offending stage name.
	Action   int    // 1-based action index (ActionFailed only).
	Argument string // Unresolvable argument name (MissingArgument only).
	Err      error  // Underlying cause, if any.
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	switch {
	case e.Kind == ErrActionFailed:
		msg = fmt.Sprintf("%s: stage %q action %d", msg, e.Stage, e.Action)
	case e.Kind == ErrMissingArgument:
		msg = fmt.Sprintf("%s: stage %q argument %q", msg, e.Stage, e.Argument)
	case e.Stage != "":
		msg = fmt.Sprintf("%s: stage %q", msg, e.Stage)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Exposes both the sentinel kind and the underlying cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// Builds an [ErrActionFailed] error for the given stage and 1-based action
// index.
func ActionError(stage string, action int, cause error) *Error {
	return &Error{Kind: ErrActionFailed, Stage: stage, Action: action, Err: cause}
}
