package cqldata

import (
	"errors"
	"fmt"
)

type ErrorCode int

const (
	Unknown ErrorCode = iota
	// NotFound is returned when a file, folder or log item does not exist.
	NotFound
	// PreconditionFailed covers missing destination folders, invalid cache keys,
	// expirations in the past and filters the adapter can't serve.
	PreconditionFailed
	// ConfigurationError is returned for invalid settings, e.g. an unknown log level.
	ConfigurationError
	// NotImplemented is returned by operations a given backend doesn't support.
	NotImplemented
	// ReadOnly is returned when a write targets a read only namespace.
	ReadOnly
)

func (c ErrorCode) String() string {
	switch c {
	case NotFound:
		return "not found"
	case PreconditionFailed:
		return "precondition failed"
	case ConfigurationError:
		return "configuration error"
	case NotImplemented:
		return "not implemented"
	case ReadOnly:
		return "read only"
	}
	return "unknown"
}

// Error is the domain error returned by the adapters.
type Error struct {
	Code     ErrorCode
	Err      error
	UserData any
}

func (e Error) Error() string {
	if e.UserData != nil {
		return fmt.Sprintf("%s: %v, user data: %v", e.Code, e.Err, e.UserData)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e Error) Unwrap() error {
	return e.Err
}

// Errorf creates an Error with the given code and a formatted message.
func Errorf(code ErrorCode, format string, args ...any) error {
	return Error{
		Code: code,
		Err:  fmt.Errorf(format, args...),
	}
}

// HasCode reports whether err (or anything it wraps) is an Error with the given code.
func HasCode(err error, code ErrorCode) bool {
	var e Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsNotFound reports whether err signifies a missing file, folder or log item.
func IsNotFound(err error) bool {
	return HasCode(err, NotFound)
}
