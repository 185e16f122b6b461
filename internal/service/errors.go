package service

import (
	"errors"
	"net/http"
)

// Code identifies a business-rule failure. Codes are stable API
// surface: clients branch on them (TOKEN_EXPIRED in particular
// triggers automatic refresh-and-retry).
type Code string

const (
	CodeValidation             Code = "VALIDATION_ERROR"
	CodeEmailExists            Code = "EMAIL_ALREADY_EXISTS"
	CodeEmailInvalid           Code = "EMAIL_INVALID"
	CodePasswordWeak           Code = "PASSWORD_WEAK"
	CodeInvalidCredentials     Code = "INVALID_CREDENTIALS"
	CodeAccountDisabled        Code = "ACCOUNT_DISABLED"
	CodeAccountLocked          Code = "ACCOUNT_LOCKED"
	CodeInvalidRefreshToken    Code = "INVALID_REFRESH_TOKEN"
	CodeSessionExpired         Code = "SESSION_EXPIRED"
	CodeTokenRequired          Code = "TOKEN_REQUIRED"
	CodeTokenExpired           Code = "TOKEN_EXPIRED"
	CodeInvalidToken           Code = "INVALID_TOKEN"
	CodeUserNotFound           Code = "USER_NOT_FOUND"
	CodeRoleNotFound           Code = "ROLE_NOT_FOUND"
	CodeRoleAssigned           Code = "ROLE_ALREADY_ASSIGNED"
	CodeRoleExists             Code = "ROLE_ALREADY_EXISTS"
	CodeRoleHasUsers           Code = "ROLE_HAS_USERS"
	CodeInsufficientPermission Code = "INSUFFICIENT_PERMISSIONS"
	CodeAccessDenied           Code = "ACCESS_DENIED"
	CodeUserHasDependencies    Code = "USER_HAS_DEPENDENCIES"
	CodeInvalidCurrentPassword Code = "INVALID_CURRENT_PASSWORD"
	CodeInternal               Code = "INTERNAL_ERROR"
)

var codeStatus = map[Code]int{
	CodeValidation:             http.StatusBadRequest,
	CodeEmailExists:            http.StatusConflict,
	CodeEmailInvalid:           http.StatusBadRequest,
	CodePasswordWeak:           http.StatusBadRequest,
	CodeInvalidCredentials:     http.StatusUnauthorized,
	CodeAccountDisabled:        http.StatusForbidden,
	CodeAccountLocked:          http.StatusForbidden,
	CodeInvalidRefreshToken:    http.StatusUnauthorized,
	CodeSessionExpired:         http.StatusUnauthorized,
	CodeTokenRequired:          http.StatusUnauthorized,
	CodeTokenExpired:           http.StatusUnauthorized,
	CodeInvalidToken:           http.StatusUnauthorized,
	CodeUserNotFound:           http.StatusNotFound,
	CodeRoleNotFound:           http.StatusNotFound,
	CodeRoleAssigned:           http.StatusConflict,
	CodeRoleExists:             http.StatusConflict,
	CodeRoleHasUsers:           http.StatusConflict,
	CodeInsufficientPermission: http.StatusForbidden,
	CodeAccessDenied:           http.StatusForbidden,
	CodeUserHasDependencies:    http.StatusConflict,
	CodeInvalidCurrentPassword: http.StatusBadRequest,
	CodeInternal:               http.StatusInternalServerError,
}

// Error is a business-rule violation: an expected outcome mapped to a
// machine-readable code, never an unstructured 500. Reasons carries
// the complete rule list for validation-style failures.
type Error struct {
	Code    Code
	Message string
	Reasons []string
}

func (e *Error) Error() string { return string(e.Code) + ": " + e.Message }

// Status returns the HTTP status the code maps to.
func (e *Error) Status() int {
	if s, ok := codeStatus[e.Code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// NewError builds a coded business error.
func NewError(code Code, message string, reasons ...string) *Error {
	return &Error{Code: code, Message: message, Reasons: reasons}
}

// AsError extracts a coded error, if err carries one.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// internalErr wraps an unexpected persistence failure as the catch-all
// code. The underlying message is surfaced to clients only outside
// production mode; logging happens at the call site.
func internalErr() *Error {
	return NewError(CodeInternal, "internal error")
}
