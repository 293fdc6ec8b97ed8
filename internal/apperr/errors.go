package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Code identifies a user-facing failure. Codes follow the identity
// provider's "area/reason" convention so one lookup table can localize all
// of them.
type Code string

const (
	CodeEmailInUse        Code = "auth/email-already-in-use"
	CodeInvalidEmail      Code = "auth/invalid-email"
	CodeOperationNotAllow Code = "auth/operation-not-allowed"
	CodeWeakPassword      Code = "auth/weak-password"
	CodeUserDisabled      Code = "auth/user-disabled"
	CodeUserNotFound      Code = "auth/user-not-found"
	CodeWrongPassword     Code = "auth/wrong-password"
	CodeInvalidCredential Code = "auth/invalid-credential"
	CodeTooManyRequests   Code = "auth/too-many-requests"
	CodeUnauthenticated   Code = "auth/unauthenticated"
	CodeExpiredResetToken Code = "auth/expired-action-code"
	CodePasswordMismatch  Code = "validation/password-mismatch"
	CodePasswordTooShort  Code = "validation/password-too-short"
	CodeInvalidInput      Code = "validation/invalid-input"
	CodeUnknownCategory   Code = "validation/unknown-category"
	CodeShieldMissing     Code = "validation/shield-missing-fields"
	CodeShieldFullWeight  Code = "validation/shield-full-weight"
	CodeInvalidImport     Code = "validation/invalid-import"
	CodeNoCourses         Code = "courses/empty"
	CodeCourseNotFound    Code = "courses/not-found"
	CodeInternal          Code = "internal"
)

// Error couples a Code with the underlying cause.
type Error struct {
	Code   Code
	Detail string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Detail != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Detail, e.Err)
	case e.Detail != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns an Error carrying code and a short detail for logs.
func New(code Code, detail string) error {
	return &Error{Code: code, Detail: detail}
}

// Wrap attaches code to err. A nil err stays nil.
func Wrap(code Code, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Err: err}
}

// CodeOf extracts the code from anywhere in err's chain, CodeInternal if
// there is none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// Is reports whether err carries code.
func Is(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// IsValidation reports whether err is a local input validation failure,
// raised before any collaborator call.
func IsValidation(err error) bool {
	return strings.HasPrefix(string(CodeOf(err)), "validation/")
}
