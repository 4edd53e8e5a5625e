// Package handlers implements the HTTP endpoints of the finance assistant.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/finance-assistant/internal/api/middleware"
	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/logger"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

const dateFormat = "2006-01-02"

// decodeJSON reads one JSON value from the request body into v. Decoding
// problems come back as validation errors on the "body" field.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.NewValidationError("body", "request body is required")
		}
		return domain.NewValidationError("body", "invalid JSON: "+err.Error())
	}
	return nil
}

// parseDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates.
func parseDate(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(dateFormat, value)
	if err != nil {
		return time.Time{}, domain.NewValidationError(field, fmt.Sprintf("must be a date (%s) or RFC 3339 timestamp", dateFormat))
	}
	return t, nil
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, domain.NewValidationError(name, "must be a non-negative integer")
	}
	return n, nil
}

// respond writes value with status on success. When err is a storage error
// and the change was applied locally (kept), the client gets 503 together
// with value under key, since the mutation stands and only persistence
// failed. Other errors map through middleware.WriteDomainError.
func respond(w http.ResponseWriter, r *http.Request, status int, key string, value any, kept bool, err error) {
	if err == nil {
		middleware.WriteJSON(w, status, value)
		return
	}
	if kept && domain.IsStorage(err) {
		log := logger.FromContext(r.Context())
		log.Warn().Err(err).Msg("Change applied locally but not persisted")
		middleware.WriteJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"error": "applied locally but not persisted",
			key:     value,
		})
		return
	}
	middleware.WriteDomainError(r.Context(), w, err)
}
