// Package apperr defines the user-facing error taxonomy of the service.
package apperr

import (
	"errors"
	"net/http"
)

// Error is a user-facing failure with a stable response shape.
type Error struct {
	Status  int
	Reason  string
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches errors by reason so copies made with WithDetails still
// satisfy errors.Is against the sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Reason == t.Reason
}

// WithDetails returns a copy of e carrying details.
func (e *Error) WithDetails(details map[string]any) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// WithMessage returns a copy of e with a different message.
func (e *Error) WithMessage(msg string) *Error {
	cp := *e
	cp.Message = msg
	return &cp
}

var (
	// ErrIdentityEmailExists means the identity provider already has the email.
	ErrIdentityEmailExists = &Error{
		Status:  http.StatusBadRequest,
		Reason:  "identity_email_exists",
		Message: "Email already exists in identity provider",
	}
	// ErrProfileEmailExists means the profile store already has the email.
	ErrProfileEmailExists = &Error{
		Status:  http.StatusBadRequest,
		Reason:  "profile_email_exists",
		Message: "Email already exists in database",
	}
	ErrNotFound = &Error{
		Status:  http.StatusNotFound,
		Reason:  "not_found",
		Message: "User not found",
	}
	ErrUnauthorized = &Error{
		Status:  http.StatusUnauthorized,
		Reason:  "unauthorized",
		Message: "Invalid Credentials",
	}
	ErrValidation = &Error{
		Status:  http.StatusUnprocessableEntity,
		Reason:  "validation_failed",
		Message: "Invalid request",
	}
	ErrInternal = &Error{
		Status:  http.StatusInternalServerError,
		Reason:  "internal",
		Message: "Internal Server Error",
	}
)

// IsAlreadyExists reports whether either store rejected a duplicate email.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrIdentityEmailExists) || errors.Is(err, ErrProfileEmailExists)
}

// From extracts the *Error in err's chain, falling back to ErrInternal.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return ErrInternal
}

// Body is the JSON shape of every error response.
type Body struct {
	Status  string         `json:"status"`
	Code    int            `json:"code"`
	Reason  string         `json:"reason"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ToBody renders err as a response body.
func ToBody(err error) Body {
	e := From(err)
	return Body{
		Status:  "error",
		Code:    e.Status,
		Reason:  e.Reason,
		Message: e.Message,
		Details: e.Details,
	}
}
