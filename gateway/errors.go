package gateway

import (
	"fmt"
	"net/http"

	"github.com/jrsteele09/go-brief-portal/internal/errors"
	"github.com/jrsteele09/go-brief-portal/model"
)

// Kind classifies a failed call. It is decided once, where the response is read.
type Kind int

const (
	KindUnknown      Kind = iota
	KindNetwork           // Connection failed or was reset
	KindTimeout           // No response within the request timeout
	KindUnauthorized      // 401 that refresh could not repair
	KindForbidden         // 403
	KindNotFound          // 404
	KindValidation        // 400 and 422
	KindServer            // 5xx
	KindAPI               // Any other status, or a 2xx envelope with success=false
	KindDecode            // Response body was not the expected JSON
)

var kindNames = map[Kind]string{
	KindUnknown:      "unknown",
	KindNetwork:      "network",
	KindTimeout:      "timeout",
	KindUnauthorized: "unauthorized",
	KindForbidden:    "forbidden",
	KindNotFound:     "not found",
	KindValidation:   "validation",
	KindServer:       "server",
	KindAPI:          "api",
	KindDecode:       "decode",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is returned for every failed gateway call.
type Error struct {
	Kind    Kind
	Status  int             // HTTP status, zero for transport failures
	Code    model.ErrorCode // Code from the response envelope, when present
	Message string          // Server supplied message, or a description of the failure
	Err     error           // Underlying cause
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s error (%d): %s", e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsTransport reports whether the request never produced an HTTP response.
func (e *Error) IsTransport() bool {
	return e.Kind == KindNetwork || e.Kind == KindTimeout
}

// Retryable reports whether repeating the call could succeed.
func (e *Error) Retryable() bool {
	return e.IsTransport() || e.Kind == KindServer
}

func asError(err error) (*Error, bool) {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr, true
	}
	return nil, false
}

// KindOf returns the Kind of err, or KindUnknown when err did not come from the gateway.
func KindOf(err error) Kind {
	if gwErr, ok := asError(err); ok {
		return gwErr.Kind
	}
	return KindUnknown
}

// StatusOf returns the HTTP status behind err, or zero.
func StatusOf(err error) int {
	if gwErr, ok := asError(err); ok {
		return gwErr.Status
	}
	return 0
}

// CodeOf returns the envelope error code behind err, or "".
func CodeOf(err error) model.ErrorCode {
	if gwErr, ok := asError(err); ok {
		return gwErr.Code
	}
	return ""
}

// MessageOf returns the server supplied message behind err, or "".
func MessageOf(err error) string {
	if gwErr, ok := asError(err); ok {
		return gwErr.Message
	}
	return ""
}

// IsTransport reports whether err is a timeout or network failure.
func IsTransport(err error) bool {
	gwErr, ok := asError(err)
	return ok && gwErr.IsTransport()
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return KindValidation
	case status >= http.StatusInternalServerError:
		return KindServer
	}
	return KindAPI
}
