package errs

import (
	"errors"
	"fmt"
	"net/http"

	"relaychat/internal/pkg/logx"
)

// Kind groups error codes by how the relay reacts to them.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindConflict    Kind = "conflict"
	KindAuth        Kind = "auth"
	KindNotFound    Kind = "not_found"
	KindPersistence Kind = "persistence"
	KindMalformed   Kind = "malformed"
	KindInternal    Kind = "internal"
)

// CustomError is the error type shared by every layer of the relay.
type CustomError struct {
	// Code is the business error code.
	Code int

	// Message is the client-facing description.
	Message string

	// Status is the HTTP status used when the error is returned over HTTP.
	Status int
}

// Error implements the error interface.
func (e *CustomError) Error() string {
	return fmt.Sprintf("error code %d (HTTP %d): %s", e.Code, e.Status, e.Message)
}

// Is reports whether target is a CustomError with the same code, so errors.Is
// works against values built by NewError.
func (e *CustomError) Is(target error) bool {
	var other *CustomError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// Kind returns the taxonomy group of the error.
func (e *CustomError) Kind() Kind {
	return KindOf(e.Code)
}

// NewError builds a CustomError from the code table. Unknown codes collapse to ErrUnknown.
func NewError(code int) *CustomError {
	tmpl, ok := errorMap[code]
	if !ok {
		logx.Error(errors.New("unknown error code"), "error code missing from errorMap", "requested_code", code)
		tmpl = errorMap[ErrUnknown]
	}

	if tmpl.Status == 0 {
		tmpl.Status = http.StatusOK
	}
	return &tmpl
}

// HasCode reports whether err is, or wraps, a CustomError with the given code.
func HasCode(err error, code int) bool {
	var customErr *CustomError
	return errors.As(err, &customErr) && customErr.Code == code
}

// KindOf maps a code to its taxonomy group.
func KindOf(code int) Kind {
	switch code {
	case ErrMalformedFrame:
		return KindMalformed
	case ErrNicknameTaken:
		return KindConflict
	case ErrPersistenceFailed:
		return KindPersistence
	case ErrUserNotFound, ErrUnknownRecipient:
		return KindNotFound
	}

	switch code / 1000 {
	case 1, 2:
		return KindValidation
	case 3:
		return KindAuth
	case 4:
		return KindNotFound
	default:
		return KindInternal
	}
}
