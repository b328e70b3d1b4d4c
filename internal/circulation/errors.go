package circulation

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an engine failure for the caller.
type Kind int

// Failure kinds.
const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindInvalidState
	KindDataUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation error"
	case KindNotFound:
		return "not found"
	case KindInvalidState:
		return "invalid state"
	case KindDataUnavailable:
		return "data unavailable"
	}
	return "unknown error"
}

// Error is a tagged engine failure. Entity and ID name the record involved
// when there is one.
type Error struct {
	Kind   Kind
	Entity string
	ID     int64
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	var subject string
	switch {
	case e.Entity != "" && e.ID != 0:
		subject = fmt.Sprintf("%s %d", e.Entity, e.ID)
	case e.Entity != "":
		subject = e.Entity
	}

	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if subject != "" {
		msg = subject + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Message is the short text safe to show a user. Storage details are left
// out.
func (e *Error) Message() string {
	if e.Kind == KindDataUnavailable {
		if e.Entity != "" {
			return e.Entity + " data is unavailable"
		}
		return "data is unavailable"
	}
	inner := *e
	inner.Err = nil
	return inner.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// AsError returns the first *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

func validationError(entity string, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Entity: entity, Msg: fmt.Sprintf(format, args...)}
}

func notFound(entity string, id int64) *Error {
	return &Error{Kind: KindNotFound, Entity: entity, ID: id}
}

func invalidState(entity string, id int64, format string, args ...any) *Error {
	return &Error{Kind: KindInvalidState, Entity: entity, ID: id, Msg: fmt.Sprintf(format, args...)}
}

// unavailable tags a storage failure. op describes the call that failed.
func unavailable(err error, entity string, id int64, op string) *Error {
	return &Error{Kind: KindDataUnavailable, Entity: entity, ID: id, Err: errors.Wrap(err, op)}
}
