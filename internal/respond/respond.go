// Package respond writes JSON responses and apperr-mapped error bodies.
package respond

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/pizzaflow/internal/apperr"
)

const maxBodyBytes = 1 << 20

func JSON(w http.ResponseWriter, logger *slog.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

// Error writes the caller-safe body for err. Server-side kinds are logged
// with their cause.
func Error(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "error", err, "kind", kind, "method", r.Method, "path", r.URL.Path)
	}
	JSON(w, logger, status, apperr.BodyOf(err))
}

// Decode reads a JSON body into v, rejecting unknown fields.
func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.New(apperr.KindInvalidRequest, "missing request body")
		}
		return apperr.Wrap(apperr.KindInvalidRequest, "invalid request body", err)
	}
	return nil
}
