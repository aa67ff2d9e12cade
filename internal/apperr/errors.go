// Package apperr implements the two-level domain error model: a typed
// error kind carried through the core, translated to HTTP shape only at
// the (out-of-scope) transport boundary.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"time"
)

// Code classifies an error into one of the three boundary categories
// plus the finer-grained kinds the core distinguishes internally.
type Code string

const (
	CodeBadRequest      Code = "BAD_REQUEST"
	CodeValidation      Code = "VALIDATION_FAILED"
	CodeDuplicateProof  Code = "DUPLICATE_PROOF"
	CodeWrongScheme     Code = "WRONG_SCHEME"
	CodeNotFound        Code = "NOT_FOUND"
	CodeCircuitNotFound Code = "CIRCUIT_NOT_FOUND"
	CodeProofNotFound   Code = "PROOF_NOT_FOUND"
	CodeNotVerified     Code = "PROOF_NOT_VERIFIED"
	CodeInternal        Code = "INTERNAL"
	CodePersistence     Code = "PERSISTENCE"
	CodeExternalService Code = "EXTERNAL_SERVICE"
	CodeInvariant       Code = "INVARIANT_VIOLATION"
)

// Error is a structured error carrying a code, a human message, optional
// details, free-form context, a capture of the call stack, and the
// underlying cause if any.
type Error struct {
	Code       Code
	Message    string
	Details    string
	Context    map[string]any
	Timestamp  time.Time
	StackTrace string
	Cause      error
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// HTTPStatus maps the error kind to the status the HTTP transport
// (internal/httpapi) returns for it. The rest of the core never
// constructs an HTTP response itself.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeBadRequest, CodeValidation, CodeDuplicateProof, CodeWrongScheme, CodeNotVerified:
		return http.StatusBadRequest
	case CodeNotFound, CodeCircuitNotFound, CodeProofNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// New creates an Error with a captured stack trace.
func New(code Code, message string) *Error {
	return (&Error{
		Code:      code,
		Message:   message,
		Context:   make(map[string]any),
		Timestamp: time.Now(),
	}).withStackTrace()
}

// Newf is New with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap attaches code/message context to an existing error.
func Wrap(err error, code Code, message string) *Error {
	e := New(code, message)
	e.Cause = err
	return e
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

func (e *Error) WithDetails(details string) *Error {
	e.Details = details
	return e
}

func (e *Error) WithDetailsf(format string, args ...any) *Error {
	e.Details = fmt.Sprintf(format, args...)
	return e
}

func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

func (e *Error) withStackTrace() *Error {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])
	var trace string
	for {
		frame, more := frames.Next()
		trace += fmt.Sprintf("%s:%d %s\n", frame.File, frame.Line, frame.Function)
		if !more {
			break
		}
	}
	e.StackTrace = trace
	return e
}

// As extracts an *Error from err, following the chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// HasCode reports whether err is an *Error with the given code.
func HasCode(err error, code Code) bool {
	if e, ok := As(err); ok {
		return e.Code == code
	}
	return false
}

// BadRequest builds a CodeBadRequest error.
func BadRequest(message string) *Error { return New(CodeBadRequest, message) }

// NotFound builds a CodeNotFound error.
func NotFound(message string) *Error { return New(CodeNotFound, message) }

// Internal wraps err under CodeInternal, for operations whose failure
// indicates a bug or environment fault rather than bad caller input.
func Internal(err error, operation string) *Error {
	return Wrapf(err, CodeInternal, "internal error during %s", operation).WithContext("operation", operation)
}

// Recovery bounds retryable-error handling the way external-service
// transients are retried per the spec's error-handling design.
type Recovery struct {
	MaxRetries     int
	BackoffFactor  time.Duration
	RetryableCodes []Code
}

// DefaultRecovery retries external-service failures three times.
func DefaultRecovery() *Recovery {
	return &Recovery{
		MaxRetries:    3,
		BackoffFactor: time.Second,
		RetryableCodes: []Code{
			CodeExternalService,
		},
	}
}

func (r *Recovery) IsRetryable(err error) bool {
	e, ok := As(err)
	if !ok {
		return false
	}
	for _, c := range r.RetryableCodes {
		if e.Code == c {
			return true
		}
	}
	return false
}

func (r *Recovery) BackoffDuration(attempt int) time.Duration {
	return r.BackoffFactor * time.Duration(1<<uint(attempt))
}
