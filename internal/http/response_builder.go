package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"fambudget/internal/core"
	applog "fambudget/internal/log"
)

// HeaderInvalidate lists the views a client must refetch after a write.
const HeaderInvalidate = "X-Invalidate"

// Views named in X-Invalidate.
const (
	ViewBalance    = "balance"
	ViewMovements  = "movements"
	ViewGoals      = "goals"
	ViewCategories = "categories"
	ViewFamily     = "family"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	views      map[string]struct{}
	headers    map[string]string
	body       any
	noBody     bool
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		views:      make(map[string]struct{}),
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Invalidate adds views to the X-Invalidate header.
func (b *JSONResponseBuilder) Invalidate(views ...string) *JSONResponseBuilder {
	for _, v := range views {
		b.views[v] = struct{}{}
	}
	return b
}

// Header sets a custom header.
func (b *JSONResponseBuilder) Header(key, value string) *JSONResponseBuilder {
	b.headers[key] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	b.noBody = false
	return b
}

// NoContent answers 204 with no body.
func (b *JSONResponseBuilder) NoContent() *JSONResponseBuilder {
	b.statusCode = http.StatusNoContent
	b.noBody = true
	return b
}

// Write sends the response.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for k, v := range b.headers {
		w.Header().Set(k, v)
	}
	if len(b.views) > 0 {
		views := make([]string, 0, len(b.views))
		for v := range b.views {
			views = append(views, v)
		}
		sort.Strings(views)
		w.Header().Set(HeaderInvalidate, strings.Join(views, ","))
	}

	if b.noBody {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	if err := json.NewEncoder(w).Encode(b.body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// ErrorResponse builds an error response.
func ErrorResponse(status int, code, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(status).Body(ErrorBody{Error: code, Message: message})
}

// BadRequest is for bodies and query strings that cannot be decoded.
func BadRequest(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, "bad_request", message)
}

// TooManyRequests is sent by the rate limiter.
func TooManyRequests(retryAfter string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "rate_limited", "Too many requests, retry later").
		Header("Retry-After", retryAfter)
}

// errorMapping is one row of the error to status table, checked in order.
type errorMapping struct {
	target  error
	status  int
	code    string
	logType string
}

var errorMappings = []errorMapping{
	{core.ErrNotFound, http.StatusNotFound, "not_found", applog.ErrorTypeNotFound},
	{core.ErrDuplicateName, http.StatusConflict, "duplicate_name", applog.ErrorTypeConflict},
	{core.ErrInsufficientFunds, http.StatusUnprocessableEntity, "insufficient_funds", applog.ErrorTypeInsufficient},
	{core.ErrGoalOverflow, http.StatusUnprocessableEntity, "goal_overflow", applog.ErrorTypeValidation},
	{core.ErrInvalidParameters, http.StatusUnprocessableEntity, "invalid_parameters", applog.ErrorTypeValidation},
	{core.ErrUnauthorized, http.StatusUnauthorized, "unauthorized", applog.ErrorTypeAuth},
	{core.ErrForbidden, http.StatusForbidden, "forbidden", applog.ErrorTypeAuth},
}

// FromError maps an operation error to its response. Backend failures are
// logged and answered with a generic 500 so internals do not leak.
func FromError(r *http.Request, err error) *JSONResponseBuilder {
	logger := applog.FromContext(r.Context())
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			logger.Info("Request rejected", applog.FieldError, err, applog.FieldErrorType, m.logType)
			return ErrorResponse(m.status, m.code, err.Error())
		}
	}
	logger.Error("Request failed", applog.FieldError, err, applog.FieldErrorType, applog.ErrorTypeInternal)
	return ErrorResponse(http.StatusInternalServerError, "internal", "Internal server error")
}
