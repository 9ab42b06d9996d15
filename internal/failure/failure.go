// Package failure classifies failed outbound requests.
package failure

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

type Kind string

const (
	KindUnreachable  Kind = "unreachable"
	KindBadRequest   Kind = "bad_request"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindServerError  Kind = "server_error"
	KindUnexpected   Kind = "unexpected"
)

// Classify maps a response status to a failure kind. A zero status means no
// response was received.
func Classify(status int) Kind {
	switch status {
	case 0:
		return KindUnreachable
	case http.StatusBadRequest:
		return KindBadRequest
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusInternalServerError:
		return KindServerError
	default:
		return KindUnexpected
	}
}

// StatusError is the underlying error of a non-2xx response.
type StatusError struct {
	Status     int
	StatusText string
}

func (e *StatusError) Error() string {
	if e.StatusText != "" {
		return "unexpected response status: " + e.StatusText
	}
	return fmt.Sprintf("unexpected response status: %d", e.Status)
}

type RequestFailure struct {
	Kind   Kind
	Status int
	// Message and ErrorMessages come from the error body, if any.
	Message       string
	ErrorMessages []string

	Method string
	Path   string

	Err error
}

func (f *RequestFailure) Error() string {
	var sb strings.Builder
	sb.WriteString(f.Method)
	sb.WriteString(" ")
	sb.WriteString(f.Path)
	sb.WriteString(": ")
	sb.WriteString(string(f.Kind))
	if f.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(f.Message)
	} else if f.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(f.Err.Error())
	}
	return sb.String()
}

func (f *RequestFailure) Unwrap() error {
	return f.Err
}

// Details returns the server supplied error list, or the message alone when
// no list was sent.
func (f *RequestFailure) Details() []string {
	if len(f.ErrorMessages) > 0 {
		return f.ErrorMessages
	}
	if f.Message != "" {
		return []string{f.Message}
	}
	return nil
}

type errorEnvelope struct {
	Message       string   `json:"message"`
	ErrorMessages []string `json:"ErrorMessages"`
}

// FromResponse builds a failure from a non-2xx response. The body is parsed
// for a {"message", "ErrorMessages"} envelope; anything else is ignored.
func FromResponse(method, path string, status int, statusText string, body []byte) *RequestFailure {
	f := &RequestFailure{
		Kind:   Classify(status),
		Status: status,
		Method: method,
		Path:   path,
		Err:    &StatusError{Status: status, StatusText: statusText},
	}

	var envelope errorEnvelope
	if len(body) > 0 && json.Unmarshal(body, &envelope) == nil {
		f.Message = envelope.Message
		f.ErrorMessages = envelope.ErrorMessages
	}

	return f
}

// FromTransport builds a failure for a request that got no response.
func FromTransport(method, path string, err error) *RequestFailure {
	return &RequestFailure{
		Kind:   KindUnreachable,
		Method: method,
		Path:   path,
		Err:    err,
	}
}
