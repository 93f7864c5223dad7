// Package httputil centralizes JSON encoding and domain-error mapping for the
// HTTP surface. Handlers never pick status codes themselves: the domain error
// code decides, which keeps the external representation of each error kind
// stable across endpoints.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	dErrors "vaxtrack/pkg/domain-errors"
)

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteError maps a domain error code onto an HTTP status. Internal errors
// deliberately omit the description so infrastructure details never leak.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)

	status := http.StatusInternalServerError
	switch code {
	case dErrors.CodeNotFound:
		status = http.StatusNotFound
	case dErrors.CodeInvalidState, dErrors.CodeInventoryExhausted, dErrors.CodeInsufficientStock:
		status = http.StatusUnprocessableEntity
	case dErrors.CodeConcurrentConflict, dErrors.CodeDuplicate:
		status = http.StatusConflict
	case dErrors.CodeInvalidInput, dErrors.CodeBadRequest:
		status = http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		status = http.StatusUnauthorized
	case dErrors.CodeTimeout:
		status = http.StatusGatewayTimeout
	}

	body := errorBody{Error: string(code)}
	if code != dErrors.CodeInternal {
		var de *dErrors.Error
		if errors.As(err, &de) {
			body.ErrorDescription = de.Message
		}
	}
	WriteJSON(w, status, body)
}

// DecodeAndPrepare decodes a JSON request body into T, writing a bad_request
// response and logging on failure. The bool result tells the handler whether
// to continue.
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "malformed request body",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed JSON body"))
		return req, false
	}
	return req, true
}
