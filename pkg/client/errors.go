package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/agent-matrix/matrix-system/pkg/validation"
	"github.com/tidwall/gjson"
)

// Error kinds. Every *APIError wraps exactly one of these, so callers can
// branch with errors.Is.
var (
	ErrAuth          = errors.New("authentication failed")
	ErrTimeout       = errors.New("request timed out")
	ErrConnection    = errors.New("connection failed")
	ErrNotFound      = errors.New("resource not found")
	ErrConflict      = errors.New("conflicting resource state")
	ErrUnprocessable = errors.New("request validation failed")
	ErrRateLimited   = errors.New("rate limit exceeded")
	ErrServer        = errors.New("server error")
	ErrRequest       = errors.New("request rejected")
	ErrDecode        = errors.New("malformed response body")
)

// APIError is returned for every failed call
type APIError struct {
	Kind       error
	Service    string
	Method     string
	Path       string
	StatusCode int
	Message    string
	Body       []byte
	Attempts   int
	RetryAfter time.Duration
	Err        error
}

func (e *APIError) Error() string {
	var b strings.Builder
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, "[%d] ", e.StatusCode)
	}
	if e.Service != "" {
		b.WriteString(e.Service)
		b.WriteString(": ")
	}
	fmt.Fprintf(&b, "%s %s: ", e.Method, e.Path)
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = e.Kind.Error()
	} else {
		msg = fmt.Sprintf("%s (%s)", msg, e.Kind)
	}
	b.WriteString(msg)
	if e.Attempts > 1 {
		fmt.Fprintf(&b, " after %d attempts", e.Attempts)
	}
	return b.String()
}

func (e *APIError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Retryable reports whether the failure is transient.
func (e *APIError) Retryable() bool {
	switch e.Kind {
	case ErrTimeout, ErrConnection, ErrServer, ErrRateLimited:
		return true
	}
	return false
}

// Kind names the category of err for operator facing output.
func Kind(err error) string {
	var verr *validation.Error
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr):
		return "validation"
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, ErrConnection):
		return "connection"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrUnprocessable):
		return "unprocessable"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrDecode):
		return "decode"
	case errors.Is(err, ErrServer), errors.Is(err, ErrRequest):
		return "api"
	default:
		return "error"
	}
}

func transportError(err error) error {
	if isTimeout(err) {
		return ErrTimeout
	}
	return ErrConnection
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func statusKind(code int) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrAuth
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusConflict:
		return ErrConflict
	case code == http.StatusUnprocessableEntity:
		return ErrUnprocessable
	case code == http.StatusTooManyRequests:
		return ErrRateLimited
	case code >= 500:
		return ErrServer
	default:
		return ErrRequest
	}
}

// errorMessage extracts a human readable message from an error body.
func errorMessage(code int, body []byte) string {
	if gjson.ValidBytes(body) {
		for _, key := range []string{"detail", "message", "error"} {
			v := gjson.GetBytes(body, key)
			if !v.Exists() {
				continue
			}
			if v.Type == gjson.String {
				return v.String()
			}
			if v.IsObject() && v.Get("message").Exists() {
				return v.Get("message").String()
			}
			return v.Raw
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" && len(text) <= 200 {
		return text
	}
	return http.StatusText(code)
}

// parseRetryAfter accepts delta seconds or an HTTP date.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
