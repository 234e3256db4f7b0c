package abillio

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// ErrorKind classifies the failures returned by the client.
type ErrorKind string

const (
	KindConfiguration ErrorKind = "configuration" // credentials missing, no request attempted
	KindRequest       ErrorKind = "request"       // caller supplied an unusable method or payload
	KindTransport     ErrorKind = "transport"     // the upstream could not be reached
	KindUpstream      ErrorKind = "upstream"      // the upstream answered with a non-2xx status
	KindDecode        ErrorKind = "decode"        // the upstream answered with something that is not JSON
)

// sentinels for use with errors.Is
var (
	ErrConfiguration = errors.New("abillio: configuration error")
	ErrRequest       = errors.New("abillio: invalid request")
	ErrTransport     = errors.New("abillio: transport error")
	ErrUpstream      = errors.New("abillio: upstream error")
	ErrDecode        = errors.New("abillio: decode error")
)

// maximum number of body bytes quoted in an upstream error message
const maxQuotedBody = 256

// Error is returned by every client operation.
// StatusCode 0 = no HTTP response was received, >0 = the status sent by the upstream.
type Error struct {
	Kind        ErrorKind
	StatusCode  int
	Body        []byte
	UserMessage string
	LogMessage  string
	Err         error
}

func (e *Error) Error() string {
	return e.LogMessage
}

// UserError returns a message that is safe to show to end users
func (e *Error) UserError() string {
	return e.UserMessage
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrConfiguration:
		return e.Kind == KindConfiguration
	case ErrRequest:
		return e.Kind == KindRequest
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrUpstream:
		return e.Kind == KindUpstream
	case ErrDecode:
		return e.Kind == KindDecode
	}
	return false
}

// NewConfigurationError reports missing or unusable client configuration
func NewConfigurationError(msg string) *Error {
	return &Error{
		Kind:        KindConfiguration,
		UserMessage: "The service is not configured. Please contact the site administrator.",
		LogMessage:  fmt.Sprintf("abillio configuration error: %s", msg),
	}
}

// NewRequestError reports a request that was rejected before it was sent
func NewRequestError(err error, while string) *Error {
	return &Error{
		Kind:        KindRequest,
		UserMessage: "Invalid request. Please check your input and try again.",
		LogMessage:  fmt.Sprintf("abillio request error: %v while %s", err, while),
		Err:         err,
	}
}

// NewTransportError reports network/connection failures. The request is not retried.
func NewTransportError(err error) *Error {
	return &Error{
		Kind:        KindTransport,
		UserMessage: "Unable to reach the billing service. Please try again later.",
		LogMessage:  fmt.Sprintf("abillio network error: %v", err),
		Err:         err,
	}
}

// NewUpstreamError creates an Error from a non-2xx response. The body is kept verbatim.
func NewUpstreamError(statusCode int, body []byte) *Error {
	var userMsg string
	switch statusCode {
	case http.StatusUnauthorized:
		userMsg = "The billing service rejected the request credentials."
	case http.StatusForbidden:
		userMsg = "You don't have permission to access this resource."
	case http.StatusNotFound:
		userMsg = "The requested resource was not found."
	case http.StatusBadRequest:
		userMsg = "Invalid request. Please check your input and try again."
	case http.StatusTooManyRequests:
		userMsg = "Too many requests. Please try again in a few moments."
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		userMsg = "The billing service is temporarily unavailable. Please try again later."
	default:
		userMsg = "An error occurred. Please try again."
	}

	logMsg := fmt.Sprintf("abillio status %d", statusCode)
	if detail := upstreamMessage(body); detail != "" {
		logMsg += fmt.Sprintf(" - %s", detail)
	}

	return &Error{
		Kind:        KindUpstream,
		StatusCode:  statusCode,
		Body:        body,
		UserMessage: userMsg,
		LogMessage:  logMsg,
	}
}

// NewDecodeError reports a response body that could not be parsed
func NewDecodeError(err error, statusCode int, body []byte) *Error {
	return &Error{
		Kind:        KindDecode,
		StatusCode:  statusCode,
		Body:        body,
		UserMessage: "The billing service returned an unexpected response. Please try again later.",
		LogMessage:  fmt.Sprintf("abillio decode error: %v", err),
		Err:         err,
	}
}

// upstreamMessage picks a human readable message out of an error body.
// Non-JSON bodies are quoted (truncated) as is.
func upstreamMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if gjson.ValidBytes(body) {
		for _, path := range []string{"error.message", "error", "message", "detail"} {
			if res := gjson.GetBytes(body, path); res.Exists() && res.Type == gjson.String && res.String() != "" {
				return res.String()
			}
		}
	}
	if len(body) > maxQuotedBody {
		return string(body[:maxQuotedBody]) + "..."
	}
	return string(body)
}
