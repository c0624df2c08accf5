// Package errs defines the error taxonomy shared by every function: each error
// carries a code and the HTTP status the function layer answers with.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a class of failure.
type Code string

const (
	CodeInvalidRequest       Code = "INVALID_REQUEST"       // 400
	CodeAuthRequired         Code = "AUTH_REQUIRED"         // 401
	CodeMethodNotAllowed     Code = "METHOD_NOT_ALLOWED"    // 405
	CodeStructureMissing     Code = "STRUCTURE_MISSING"     // 409
	CodeUpstreamUnavailable  Code = "UPSTREAM_UNAVAILABLE"  // 500
	CodeClassificationFailed Code = "CLASSIFICATION_FAILED" // 500, per file
	CodeParseFailure         Code = "PARSE_FAILURE"         // recovered locally
	CodeInternal             Code = "INTERNAL"              // 500
)

var statusByCode = map[Code]int{
	CodeInvalidRequest:       http.StatusBadRequest,
	CodeAuthRequired:         http.StatusUnauthorized,
	CodeMethodNotAllowed:     http.StatusMethodNotAllowed,
	CodeStructureMissing:     http.StatusConflict,
	CodeUpstreamUnavailable:  http.StatusInternalServerError,
	CodeClassificationFailed: http.StatusInternalServerError,
	CodeParseFailure:         http.StatusInternalServerError,
	CodeInternal:             http.StatusInternalServerError,
}

// Error is a coded error. Err, when set, is the underlying cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Status returns the HTTP status for the error's code.
func (e *Error) Status() int {
	if s, ok := statusByCode[e.Code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// New creates a coded error without a cause.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Wrap creates a coded error around err. A nil err yields nil.
func Wrap(code Code, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// InvalidRequest reports a missing or malformed parameter.
func InvalidRequest(msg string) *Error { return New(CodeInvalidRequest, msg) }

// AuthRequired reports that the user has to log in again.
func AuthRequired(msg string) *Error { return New(CodeAuthRequired, msg) }

// Upstream wraps a storage or inference API failure.
func Upstream(msg string, err error) error { return Wrap(CodeUpstreamUnavailable, msg, err) }

// Is reports whether err, or anything it wraps, is an *Error with the given code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf returns the code of the first *Error in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// StatusOf maps err to an HTTP status code.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status()
	}
	return http.StatusInternalServerError
}
