// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package errors defines the error taxonomy of the interaction controller.
//
// Every error carries an HTTP status code and a flag telling the top-level
// renderer whether its message may be shown to the end user.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error types
const (
	// ErrSessionExpired is returned when the paused interaction is missing or mismatched.
	ErrSessionExpired = "session_expired"

	// ErrUnknownClient is returned when the requesting client cannot be resolved.
	ErrUnknownClient = "unknown_client"

	// ErrIdentityRejected is returned when domain policy rejects an upstream identity.
	ErrIdentityRejected = "identity_rejected"

	// ErrUpstreamFailure is returned when the directory or identity provider fails.
	ErrUpstreamFailure = "upstream_failure"

	// ErrConsentDenied is returned when the end user refuses consent.
	ErrConsentDenied = "consent_denied"

	// ErrInvalidArgument is returned for malformed input.
	ErrInvalidArgument = "invalid_argument"

	// ErrInternal is returned for everything else.
	ErrInternal = "internal"
)

// Error represents an error in the application
type Error struct {
	// Type is the error type
	Type string

	// Message is the error message
	Message string

	// Code is the HTTP status used when the error reaches the error page.
	Code int

	// Exposed marks the message as safe to show to the end user.
	Exposed bool

	// Cause is the underlying error
	Cause error
}

// Error returns the error message
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error of the same type, so sentinels like
// errors.Is(err, &Error{Type: ErrSessionExpired}) work.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Type == e.Type
}

// NewError creates a new error
func NewError(errorType, message string, code int, exposed bool, cause error) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Code:    code,
		Exposed: exposed,
		Cause:   cause,
	}
}

// NewSessionExpiredError creates the 401 returned by the session guard.
func NewSessionExpiredError() *Error {
	return NewError(ErrSessionExpired, "Session expired", http.StatusUnauthorized, true, nil)
}

// NewUnknownClientError creates an unknown client error
func NewUnknownClientError(clientID string) *Error {
	return NewError(ErrUnknownClient, fmt.Sprintf("unknown client %q", clientID), http.StatusBadRequest, false, nil)
}

// NewIdentityRejectedError creates an error carrying a user-facing rejection reason.
func NewIdentityRejectedError(reason string) *Error {
	return NewError(ErrIdentityRejected, reason, http.StatusForbidden, true, nil)
}

// NewUpstreamFailureError creates an upstream failure error
func NewUpstreamFailureError(message string, cause error) *Error {
	return NewError(ErrUpstreamFailure, message, http.StatusBadGateway, false, cause)
}

// NewConsentDeniedError creates a consent denied error
func NewConsentDeniedError() *Error {
	return NewError(ErrConsentDenied, "End-User refused to consent", http.StatusForbidden, true, nil)
}

// NewInvalidArgumentError creates a new invalid argument error
func NewInvalidArgumentError(message string, cause error) *Error {
	return NewError(ErrInvalidArgument, message, http.StatusBadRequest, true, cause)
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *Error {
	return NewError(ErrInternal, message, http.StatusInternalServerError, false, cause)
}

// Code returns the HTTP status of the first *Error in err's chain, or 500.
func Code(err error) int {
	var e *Error
	if errors.As(err, &e) && e.Code != 0 {
		return e.Code
	}
	return http.StatusInternalServerError
}

// IsExposed reports whether the first *Error in err's chain is user-facing.
func IsExposed(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Exposed
}

// Message returns the user-facing message of the first *Error in err's chain.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsType reports whether err's chain contains an *Error of the given type.
func IsType(err error, errorType string) bool {
	return errors.Is(err, &Error{Type: errorType})
}

// TypeOf returns the type of the first *Error in err's chain, or ErrInternal.
func TypeOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Type != "" {
		return e.Type
	}
	return ErrInternal
}
