package http

import (
	"net/http"
	"strconv"

	"github.com/ballotd/ballotd/internal/core/ports"
	"github.com/go-chi/chi/v5"
)

type VoteHandler struct {
	service ports.PollService
}

func NewVoteHandler(service ports.PollService) *VoteHandler {
	return &VoteHandler{
		service: service,
	}
}

// ToggleVote adds the caller's vote to the option, or removes it if already
// present. This is the only vote entry point.
func (h *VoteHandler) ToggleVote(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		http.Error(w, "Unauthorized: missing user context", http.StatusUnauthorized)
		return
	}

	optionID, err := strconv.ParseInt(chi.URLParam(r, "optionID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid option id", http.StatusBadRequest)
		return
	}

	added, err := h.service.ToggleVote(r.Context(), optionID, caller)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"voted": added})
}
