// Package httpx defines the JSON envelopes every endpoint responds
// with, and the mapping from coded business errors onto them.
package httpx

import (
	"net/http"
	"sort"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/auth-service/internal/service"
)

// FieldError describes one violated validation rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

type successEnvelope struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type errorEnvelope struct {
	Success   bool         `json:"success"`
	Message   string       `json:"message"`
	Code      service.Code `json:"code"`
	Timestamp time.Time    `json:"timestamp"`
	Errors    []FieldError `json:"errors,omitempty"`
}

// OK writes the success envelope.
func OK(c echo.Context, status int, message string, data any) error {
	return c.JSON(status, successEnvelope{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

// Fail writes the error envelope with an explicit code and status.
func Fail(c echo.Context, status int, code service.Code, message string, fieldErrs ...FieldError) error {
	return c.JSON(status, errorEnvelope{
		Success:   false,
		Message:   message,
		Code:      code,
		Timestamp: time.Now().UTC(),
		Errors:    fieldErrs,
	})
}

// FailErr maps a service error onto the envelope. Anything without a
// code is an unexpected failure and is reported as INTERNAL_ERROR with
// the message text suppressed in production mode.
func FailErr(c echo.Context, err error, production bool) error {
	if e, ok := service.AsError(err); ok {
		var fieldErrs []FieldError
		if e.Code == service.CodePasswordWeak {
			for _, r := range e.Reasons {
				fieldErrs = append(fieldErrs, FieldError{Field: "password", Message: r})
			}
		}
		return Fail(c, e.Status(), e.Code, e.Message, fieldErrs...)
	}
	msg := "internal error"
	if !production && err != nil {
		msg = err.Error()
	}
	return Fail(c, http.StatusInternalServerError, service.CodeInternal, msg)
}

// FailValidation converts ozzo validation errors into the envelope,
// reporting the complete list of violated field rules.
func FailValidation(c echo.Context, err error) error {
	var fieldErrs []FieldError
	if verrs, ok := err.(validation.Errors); ok {
		fields := make([]string, 0, len(verrs))
		for f := range verrs {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		for _, f := range fields {
			fieldErrs = append(fieldErrs, FieldError{Field: f, Message: verrs[f].Error()})
		}
	}
	return Fail(c, http.StatusBadRequest, service.CodeValidation, "request validation failed", fieldErrs...)
}
