package web

// errors.go maps the engine's error taxonomy onto HTTP responses.
//
// Row-scoped errors never reach this file: they travel inside result
// payloads. Only operation-level failures become error responses.

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/aurelio-data/cartera/internal/core"
	"github.com/aurelio-data/cartera/internal/logging"
)

// ErrorResponse is the JSON body returned for failed operations.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// respondError logs the technical error and writes the mapped JSON response.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classifyError(err)

	logging.FromContext(r.Context()).Error("request error",
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"code", code,
		"error", err.Error(),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: err.Error(), Code: code})
}

// classifyError maps an operation-level error to an HTTP status and a
// machine-readable code.
func classifyError(err error) (int, string) {
	switch {
	case core.IsConfigurationError(err):
		return http.StatusBadRequest, "configuration"
	case core.IsSchemaGuardError(err):
		return http.StatusConflict, "schema_guard"
	case core.IsFormatOverrideError(err):
		return http.StatusUnprocessableEntity, "format_override"
	case core.IsFatalStorageError(err):
		return http.StatusInternalServerError, "storage"
	}
	return http.StatusInternalServerError, "internal"
}

// writeJSON encodes v as JSON with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already sent; nothing to do but record it.
		slog.Error("json encode error", "error", err)
	}
}

// badRequest writes a 400 with a plain message for malformed requests that
// never reached the engine.
func badRequest(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message, Code: "bad_request"})
}
