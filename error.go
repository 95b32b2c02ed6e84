package klaxon

import (
	"errors"
	"fmt"
)

type errorCode string

// Error codes. Commands print them and the scheduler logs them; tests match
// on them instead of on message text.
const (
	// ErrInternal covers storage and D-Bus failures. The alarm itself
	// may be fine.
	ErrInternal errorCode = "internal"
	// ErrInvalid rejects a definition or command argument, such as a bad
	// time of day or an unknown weekday. It also marks stored alarms that
	// can no longer be decoded.
	ErrInvalid errorCode = "invalid"
	// ErrNotFound means no saved alarm has the given id.
	ErrNotFound errorCode = "not_found"
)

// Error carries a code along with a message meant for the user.
type Error struct {
	Code        errorCode
	Description string
}

func (e *Error) Error() string {
	return "klaxon: " + string(e.Code) + ": " + e.Description
}

func Errorf(code errorCode, format string, args ...any) error {
	return &Error{code, fmt.Sprintf(format, args...)}
}

// ErrorCode finds the first *Error in err's chain, including wrapped and
// multierror lists, and returns its code. Anything else is ErrInternal.
func ErrorCode(err error) errorCode {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Code != "" {
		return e.Code
	}
	return ErrInternal
}

// ErrorDescription is the user-facing text of err. Failures that carry no
// code are reported as "internal error" so driver details stay in the logs.
func ErrorDescription(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Description != "" {
		return e.Description
	}
	return "internal error"
}
