package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ballotd/ballotd/internal/core/domain"
)

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

// respondError maps the core error taxonomy onto HTTP statuses: validation
// and capacity problems are the caller's fault, persistence failures are
// ours.
func respondError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	var capacityErr *domain.CapacityError

	switch {
	case errors.As(err, &validationErr):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &capacityErr):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrPollClosed):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrPollNotFound), errors.Is(err, domain.ErrOptionNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
