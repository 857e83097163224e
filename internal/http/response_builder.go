// Package http provides HTTP server and handler implementations.
//
// This file implements the Builder Pattern for API responses: JSON bodies
// for successes and short plain-text bodies for errors.

package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	applog "expenses/internal/log"
)

// Error bodies sent by the API.
const (
	MsgMissingFields = "Missing fields"
	MsgInvalidJSON   = "Invalid JSON"
	MsgBodyTooLarge  = "Request body too large"
	MsgNotFound      = "Not found"
	MsgStoreError    = "Store error"
)

// ResponseBuilder provides a fluent API for building responses.
type ResponseBuilder struct {
	statusCode int
	body       []byte
	headers    map[string]string
	err        error
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets v, encoded as JSON, as the body.
func (b *ResponseBuilder) JSON(v interface{}) *ResponseBuilder {
	b.headers["Content-Type"] = "application/json; charset=utf-8"
	b.body, b.err = json.Marshal(v)
	return b
}

// Text sets a plain-text body.
func (b *ResponseBuilder) Text(msg string) *ResponseBuilder {
	b.headers["Content-Type"] = "text/plain; charset=utf-8"
	b.body = []byte(msg)
	return b
}

// Write sends the built response. An encoding failure becomes a 500.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	if b.err != nil {
		slog.Error("Failed to encode response",
			applog.FieldError, b.err,
			applog.FieldErrorType, applog.ErrorTypeInternal,
			applog.FieldComponent, applog.ComponentHTTP)
		InternalServerError().Write(w)
		return
	}

	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("X-Content-Type-Options", "nosniff")

	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// OKResponse is the acknowledgement body of mutations.
type OKResponse struct {
	OK bool  `json:"ok"`
	ID int64 `json:"id,omitempty"`
}

// ErrorResponse creates a plain-text error response.
func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	return NewResponse().Status(statusCode).Text(message)
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError() *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, MsgNotFound)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError() *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, MsgStoreError)
}

// MethodNotAllowedError creates a 405 Method Not Allowed error response.
func MethodNotAllowedError() *ResponseBuilder {
	return ErrorResponse(http.StatusMethodNotAllowed, "Method not allowed")
}

// TooManyRequestsError creates the 429 response sent by the rate limiter.
func TooManyRequestsError() *ResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.").
		Header("Retry-After", "60")
}
