// internal/handlers/respond.go
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/binwise/binwise-be/internal/core/domain"
)

// organizationHeader carries the acting organization. Auth lives at the edge
// proxy; by the time a request reaches this service the header is trusted.
const organizationHeader = "X-Organization-ID"

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response",
			slog.String("error", err.Error()))
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondDomainError maps core sentinel errors onto HTTP status codes and
// falls back to 500 for everything else.
func respondDomainError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidArgument):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrConflict):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInsufficientStock):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, fallback)
	}
}

// organizationID resolves the acting organization from the request header,
// with a query parameter fallback for tooling.
func organizationID(r *http.Request) (uuid.UUID, error) {
	raw := r.Header.Get(organizationHeader)
	if raw == "" {
		raw = r.URL.Query().Get("organization_id")
	}
	return uuid.Parse(raw)
}
