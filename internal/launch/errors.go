package launch

import (
	"errors"
	"fmt"
)

// Sentinel errors classifying merge failures. Distinct from the graph
// package's build-time taxonomy; a caller can tell a launch configuration
// problem from a build problem with errors.Is.
var (
	ErrNoUser         = errors.New("no launch user")
	ErrInvalidSetting = errors.New("invalid setting")
)

// A merge failure, naming the offending setting for [ErrInvalidSetting].
type Error struct {
	Kind    error  // One of the package sentinel errors.
	Setting string // Offending descriptor setting, if any.
	Err     error  // Underlying cause, if any.
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Setting != "" {
		msg = fmt.Sprintf("%s: %q", msg, e.Setting)
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
