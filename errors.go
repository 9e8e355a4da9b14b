package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for request construction and response finalization.
var (
	ErrMalformedRequest = errors.New("relay: malformed request")
	ErrRequestTooLarge  = errors.New("relay: request body too large")
	ErrInvalidStatus    = errors.New("relay: invalid status code")
	ErrInvalidHeader    = errors.New("relay: invalid header field")
	ErrBodyLength       = errors.New("relay: body length out of range")
	ErrChunkSize        = errors.New("relay: chunk size out of range")
)

// StatusCoder is implemented by errors or responses that carry an HTTP status code.
type StatusCoder interface {
	StatusCode() int
}

// ProblemDetail is an RFC 9457 problem details response.
//
//nolint:errname // RFC 9457 standard name
type ProblemDetail struct {
	Type     string `json:"type,omitempty" xml:"type,omitempty" yaml:"type,omitempty"`
	Title    string `json:"title,omitempty" xml:"title,omitempty" yaml:"title,omitempty"`
	Status   int    `json:"status" xml:"status" yaml:"status"`
	Detail   string `json:"detail,omitempty" xml:"detail,omitempty" yaml:"detail,omitempty"`
	Instance string `json:"instance,omitempty" xml:"instance,omitempty" yaml:"instance,omitempty"`
}

// Error returns the detail message (or title if detail is empty).
func (p *ProblemDetail) Error() string {
	if p.Detail != "" {
		return p.Detail
	}
	return p.Title
}

// StatusCode returns the HTTP status code.
func (p *ProblemDetail) StatusCode() int { return p.Status }

// HTTPError is an error with an HTTP status code.
type HTTPError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error returns the error message.
func (e *HTTPError) Error() string { return e.Message }

// StatusCode returns the HTTP status code.
func (e *HTTPError) StatusCode() int { return e.Status }

// Unwrap returns the cause, if any.
func (e *HTTPError) Unwrap() error { return e.Err }

// Error returns an error with the given HTTP status code and message.
func Error(status int, message string) error {
	return &HTTPError{Status: status, Message: message}
}

// Errorf returns a formatted error with the given HTTP status code.
// A %w verb is honored: the wrapped error is reachable through errors.Is.
func Errorf(status int, format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	he := &HTTPError{Status: status, Message: err.Error()}
	switch err.(type) {
	case interface{ Unwrap() error }, interface{ Unwrap() []error }:
		he.Err = err
	}
	return he
}

// ErrorStatus extracts the HTTP status code from an error. An expired
// context deadline without a StatusCoder is 503. Anything else is
// http.StatusInternalServerError.
func ErrorStatus(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// problemFor converts any error into a ProblemDetail.
func problemFor(err error) *ProblemDetail {
	var pd *ProblemDetail
	if errors.As(err, &pd) {
		return pd
	}
	status := ErrorStatus(err)
	return &ProblemDetail{
		Type:   "about:blank",
		Title:  http.StatusText(status),
		Status: status,
		Detail: err.Error(),
	}
}

// PhaseError is the panic value raised when a Pair operation is called
// out of order. It marks a defect in the calling code.
type PhaseError struct {
	Op    string
	Phase Phase
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("relay: %s called in phase %s", e.Op, e.Phase)
}

func violation(op string, ph Phase) {
	panic(&PhaseError{Op: op, Phase: ph})
}
