package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"
)

// AppError is the error type crossing module boundaries. It carries a
// stable Code for callers and the HTTP status the API should answer with.
type AppError struct {
	Code       Code      `json:"code"`
	Message    string    `json:"message"`
	StatusCode int       `json:"statusCode"`
	Context    string    `json:"context,omitempty"`
	TraceID    string    `json:"traceId,omitempty"`
	Timestamp  time.Time `json:"timestamp"`

	cause error
	pcs   []uintptr
}

// New builds an error for code with the catalog's status and message.
func New(code Code, opts ...Option) *AppError {
	e := &AppError{
		Code:       code,
		Message:    code.Message(),
		StatusCode: code.Status(),
		Timestamp:  time.Now().UTC(),
		pcs:        callers(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Context != "" {
		b.WriteString(" [")
		b.WriteString(e.Context)
		b.WriteString("]")
	}
	if e.cause != nil {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	return b.String()
}

func (e *AppError) Unwrap() error { return e.cause }

// Is matches any *AppError with the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

func (e *AppError) WithTraceID(id string) *AppError {
	e.TraceID = id
	return e
}

// ErrorBody is the "error" member of an API error response.
type ErrorBody struct {
	Code      Code   `json:"code"`
	Message   string `json:"message"`
	Context   string `json:"context,omitempty"`
	TraceID   string `json:"traceId,omitempty"`
	Timestamp string `json:"timestamp"`
}

func (e *AppError) ToResponse() map[string]ErrorBody {
	return map[string]ErrorBody{"error": {
		Code:      e.Code,
		Message:   e.Message,
		Context:   e.Context,
		TraceID:   e.TraceID,
		Timestamp: e.Timestamp.Format(time.RFC3339),
	}}
}

// ToLog flattens the error, cause and origin stack for a structured logger.
func (e *AppError) ToLog() map[string]any {
	fields := map[string]any{
		"code":       e.Code,
		"message":    e.Message,
		"statusCode": e.StatusCode,
		"timestamp":  e.Timestamp.Format(time.RFC3339),
	}
	for k, v := range map[string]string{"context": e.Context, "traceId": e.TraceID} {
		if v != "" {
			fields[k] = v
		}
	}
	if e.cause != nil {
		fields["cause"] = e.cause.Error()
	}
	if stack := e.stack(); len(stack) > 0 {
		fields["stack"] = stack
	}
	return fields
}

func (e *AppError) stack() []string {
	if len(e.pcs) == 0 {
		return nil
	}
	var out []string
	frames := runtime.CallersFrames(e.pcs)
	for {
		f, more := frames.Next()
		if !strings.HasPrefix(f.Function, "runtime.") {
			out = append(out, fmt.Sprintf("%s (%s:%d)", f.Function, f.File, f.Line))
		}
		if !more {
			return out
		}
	}
}

// callers skips itself, New and runtime.Callers.
func callers() []uintptr {
	pcs := make([]uintptr, 32)
	return pcs[:runtime.Callers(3, pcs)]
}

// Option customizes New.
type Option func(*AppError)

func WithMessage(msg string) Option {
	return func(e *AppError) { e.Message = msg }
}

// WithContext attaches the detail that identifies the failing input, such
// as a vault address or a symbol list.
func WithContext(ctx string) Option {
	return func(e *AppError) { e.Context = ctx }
}

func WithStatusCode(status int) Option {
	return func(e *AppError) { e.StatusCode = status }
}

func WithCause(err error) Option {
	return func(e *AppError) { e.cause = err }
}

// Wrap returns err as an AppError. An AppError already in the chain is
// returned as is, gaining context if it had none; anything else becomes a
// 500 with code.
func Wrap(err error, code Code, context string) *AppError {
	if err == nil {
		return nil
	}
	var existing *AppError
	if errors.As(err, &existing) {
		if existing.Context == "" {
			existing.Context = context
		}
		return existing
	}
	return New(code,
		WithContext(context),
		WithCause(err),
		WithStatusCode(http.StatusInternalServerError))
}

func IsAppError(err error) bool {
	var e *AppError
	return errors.As(err, &e)
}

// GetCode is CodeUnknownError for errors outside this package.
func GetCode(err error) Code {
	var e *AppError
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknownError
}

func IsCode(err error, code Code) bool {
	return GetCode(err) == code
}

// StatusCodeOf is the HTTP status for any error, 500 when unknown.
func StatusCodeOf(err error) int {
	var e *AppError
	if errors.As(err, &e) && e.StatusCode != 0 {
		return e.StatusCode
	}
	return http.StatusInternalServerError
}
