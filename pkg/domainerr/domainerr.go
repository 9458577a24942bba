package domainerr

import (
	"errors"
	"fmt"
)

// Code is a stable machine-readable domain error code. Transport maps each
// code to a fixed HTTP status; callers branch on codes, never on messages.
type Code string

const (
	CodeDuplicateCode           Code = "DUPLICATE_CODE"
	CodeConflict                Code = "CONFLICT"
	CodeAlreadyActive           Code = "ORGANIZATION_ALREADY_ACTIVE"
	CodeAlreadySuspended        Code = "ORGANIZATION_ALREADY_SUSPENDED"
	CodeEffectiveDateBackdated  Code = "EFFECTIVE_DATE_BACKDATED"
	CodeOrganizationDeleted     Code = "ORGANIZATION_DELETED"
	CodeOrganizationNotFound    Code = "ORGANIZATION_NOT_FOUND"
	CodeValidationFailed        Code = "VALIDATION_FAILED"
	CodeStoreTimeout            Code = "STORE_TIMEOUT"
	CodeInsufficientPermissions Code = "INSUFFICIENT_PERMISSIONS"
)

type Error struct {
	Code    Code
	Message string

	// CurrentRecordID is set on CONFLICT so the caller can re-read and
	// retry with a fresh If-Match token.
	CurrentRecordID string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NewConflict carries the now-current record id so the caller can retry
// correctly.
func NewConflict(message string, currentRecordID string) *Error {
	return &Error{Code: CodeConflict, Message: message, CurrentRecordID: currentRecordID}
}

func NewValidation(message string) *Error {
	return &Error{Code: CodeValidationFailed, Message: message}
}

func CodeOf(err error) (Code, bool) {
	e, ok := errors.AsType[*Error](err)
	if !ok {
		return "", false
	}
	return e.Code, true
}

func HasCode(err error, code Code) bool {
	got, ok := CodeOf(err)
	return ok && got == code
}
