package require

import (
	"errors"
	"fmt"
)

// ErrPending is returned by a Resolver's Load when the module is being
// loaded asynchronously. The caller must suspend and later complete the
// require through the returned Suspension.
var ErrPending = errors.New("require: load pending")

// Kind groups require failures.
type Kind int

const (
	// KindPath is a malformed or unsupported require path.
	KindPath Kind = iota + 1
	// KindNavigation is a parent, child or jump step that was not found
	// or was ambiguous.
	KindNavigation
	// KindAlias is an unknown alias or an alias cycle.
	KindAlias
	// KindContract is a resolver or loader that broke its contract.
	KindContract
	// KindLoad is an error returned by the loader itself.
	KindLoad
)

func (k Kind) String() string {
	switch k {
	case KindPath:
		return "path"
	case KindNavigation:
		return "navigation"
	case KindAlias:
		return "alias"
	case KindContract:
		return "contract"
	case KindLoad:
		return "load"
	default:
		return "unknown"
	}
}

// Error is a failed require. Error() returns the bare message so it can be
// raised verbatim at the script level.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr.Kind
	}
	return 0
}

func ambiguousSuffix(o Outcome) string {
	if o == Ambiguous {
		return " (ambiguous)"
	}
	return ""
}
