package response

import (
	"errors"
)

// Error carries the HTTP status and a stable machine-readable key.
type Error struct {
	Code int
	Key  string
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Is(target error) bool {
	var t *Error
	ok := errors.As(target, &t)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Err.Error() == t.Err.Error()
}

func NewError(code int, err string) error {
	return &Error{Code: code, Err: errors.New(err)}
}

func NewKeyedError(code int, key string, err string) error {
	return &Error{Code: code, Key: key, Err: errors.New(err)}
}
