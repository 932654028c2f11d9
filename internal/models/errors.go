package models

import "fmt"

// AppError is a structured application error with HTTP status code.
type AppError struct {
	Code    string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Status  int    `json:"-"`
}

func (e *AppError) Error() string { return e.Message }

// Error constructors.
var (
	ErrUnauthorized = &AppError{Code: "UNAUTHORIZED", Message: "access key required", Status: 401}
	ErrInternal     = func(msg string) *AppError {
		return &AppError{Code: "INTERNAL", Message: msg, Status: 500}
	}
)

// Validation failure reasons.
const (
	ReasonMissing        = "missing"
	ReasonEmpty          = "empty"
	ReasonInvalidAddress = "invalid-address"
	ReasonInvalidText    = "invalid-text"
)

// ValidationError reports the first field of a settings update that failed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Message returns the text shown to the client for this failure.
func (e *ValidationError) Message() string {
	label := FieldLabel(e.Field)
	switch e.Reason {
	case ReasonMissing:
		return label + " parameter is required"
	case ReasonEmpty:
		return label + " value is required"
	case ReasonInvalidAddress, ReasonInvalidText:
		return label + " is not valid"
	}
	return label + " is invalid"
}

// AppError converts the validation failure to a 400 response error.
func (e *ValidationError) AppError() *AppError {
	return &AppError{Code: "BAD_REQUEST", Message: e.Message(), Field: e.Field, Status: 400}
}
