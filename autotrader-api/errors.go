package main

import (
	"encoding/json"
	"fmt"
	"net/http"
)

type errKind string

const (
	errKindValidation   errKind = "VALIDATION"
	errKindMalformedID  errKind = "MALFORMED_ID"
	errKindUnauthorized errKind = "UNAUTHORIZED"
	errKindForbidden    errKind = "FORBIDDEN"
	errKindNotFound     errKind = "NOT_FOUND"
	errKindConflict     errKind = "CONFLICT"
	errKindUpstream     errKind = "UPSTREAM"
	errKindInternal     errKind = "INTERNAL"
)

// apiError is the one failure currency inside handlers. Every error that
// reaches the response boundary is either one of these or gets wrapped into
// an internal one.
type apiError struct {
	Kind    errKind
	Message string
	Cause   error

	// Upstream failures carry the third-party status and raw body so the
	// caller sees the registry's answer, not a synthesized one.
	UpstreamStatus int
	UpstreamBody   json.RawMessage
}

func (e *apiError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *apiError) Unwrap() error { return e.Cause }

func errValidation(msg string) *apiError {
	return &apiError{Kind: errKindValidation, Message: msg}
}

func errMalformedID(msg string) *apiError {
	return &apiError{Kind: errKindMalformedID, Message: msg}
}

func errUnauthorized(msg string) *apiError {
	return &apiError{Kind: errKindUnauthorized, Message: msg}
}

func errForbidden(msg string) *apiError {
	return &apiError{Kind: errKindForbidden, Message: msg}
}

func errNotFound(msg string) *apiError {
	return &apiError{Kind: errKindNotFound, Message: msg}
}

func errConflict(msg string) *apiError {
	return &apiError{Kind: errKindConflict, Message: msg}
}

func errUpstream(status int, body []byte) *apiError {
	return &apiError{
		Kind:           errKindUpstream,
		Message:        "vehicle lookup failed",
		UpstreamStatus: status,
		UpstreamBody:   body,
	}
}

func errInternal(msg string, cause error) *apiError {
	return &apiError{Kind: errKindInternal, Message: msg, Cause: cause}
}

func (e *apiError) httpStatus() int {
	switch e.Kind {
	case errKindValidation, errKindMalformedID:
		return http.StatusBadRequest
	case errKindUnauthorized:
		return http.StatusUnauthorized
	case errKindForbidden:
		return http.StatusForbidden
	case errKindNotFound:
		return http.StatusNotFound
	case errKindConflict:
		return http.StatusConflict
	case errKindUpstream:
		if e.UpstreamStatus != 0 {
			return e.UpstreamStatus
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
