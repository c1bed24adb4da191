package forecastapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// Kind classifies a failed call.
type Kind int

const (
	// KindConnection means the service could not be reached.
	KindConnection Kind = iota + 1
	// KindService means the service answered with a non-success status.
	KindService
	// KindDecode means a success response could not be decoded.
	KindDecode
	// KindCanceled means the caller's context was canceled. It is not a failure.
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindService:
		return "service"
	case KindDecode:
		return "decode"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// ConnectionMessage is shown when the service is unreachable.
const ConnectionMessage = "Unable to reach the forecast service. Check that it is running and try again."

// Error is the uniform failure value returned by every call. Error()
// returns the human-readable message only, so it can be shown verbatim.
type Error struct {
	Kind       Kind
	Endpoint   string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsCanceled reports whether err stems from a canceled request.
func IsCanceled(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Kind == KindCanceled {
		return true
	}
	return errors.Is(err, context.Canceled)
}

// KindOf returns the Kind of err, or 0 when err did not come from this package.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return 0
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func transportError(ctx context.Context, endpoint string, err error) *Error {
	if errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled) {
		return &Error{
			Kind:     KindCanceled,
			Endpoint: endpoint,
			Message:  "request canceled",
			Err:      err,
		}
	}
	return &Error{
		Kind:     KindConnection,
		Endpoint: endpoint,
		Message:  ConnectionMessage,
		Err:      err,
	}
}

func serviceError(endpoint string, code int, status string, body []byte) *Error {
	msg := extractMessage(body)
	if msg == "" {
		msg = statusText(code, status)
	}
	return &Error{
		Kind:       KindService,
		Endpoint:   endpoint,
		StatusCode: code,
		Message:    msg,
	}
}

// messageFields are checked in order for a human-readable error.
var messageFields = []string{"detail", "message", "error"}

// extractMessage pulls the first usable message out of a structured error
// body. FastAPI puts strings, string lists or {msg} object lists in detail.
func extractMessage(body []byte) string {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return ""
	}
	for _, field := range messageFields {
		raw, ok := doc[field]
		if !ok {
			continue
		}
		if msg := messageFrom(raw); msg != "" {
			return msg
		}
	}
	return ""
}

func messageFrom(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		parts := make([]string, 0, len(list))
		for _, item := range list {
			var str string
			if err := json.Unmarshal(item, &str); err == nil {
				if str = strings.TrimSpace(str); str != "" {
					parts = append(parts, str)
				}
				continue
			}
			var obj struct {
				Msg     string `json:"msg"`
				Message string `json:"message"`
			}
			if err := json.Unmarshal(item, &obj); err == nil {
				if m := strings.TrimSpace(obj.Msg); m != "" {
					parts = append(parts, m)
				} else if m := strings.TrimSpace(obj.Message); m != "" {
					parts = append(parts, m)
				}
			}
		}
		return strings.Join(parts, "; ")
	}

	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return strings.TrimSpace(obj.Message)
	}
	return ""
}

func statusText(code int, status string) string {
	if text := http.StatusText(code); text != "" {
		return text
	}
	if status != "" {
		return status
	}
	return "Request failed"
}
