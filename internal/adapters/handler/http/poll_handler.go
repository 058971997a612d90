package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/ballotd/ballotd/internal/core/domain"
	"github.com/ballotd/ballotd/internal/core/ports"
	"github.com/go-chi/chi/v5"
)

type PollHandler struct {
	service ports.PollService
	status  func() string
}

func NewPollHandler(service ports.PollService, status func() string) *PollHandler {
	return &PollHandler{
		service: service,
		status:  status,
	}
}

type createPollRequest struct {
	Question           string     `json:"question"`
	Options            []string   `json:"options"`
	Expires            *time.Time `json:"expires,omitempty"`
	AllowMultipleVotes bool       `json:"allow_multiple_votes"`
	AllowedVoteViewers string     `json:"allowed_vote_viewers,omitempty"`
	AllowedEditors     string     `json:"allowed_editors,omitempty"`
	AllowedVoters      string     `json:"allowed_voters,omitempty"`
	ChannelID          int64      `json:"channel_id,omitempty"`
	MessageID          int64      `json:"message_id,omitempty"`
	RepeatEverySeconds int64      `json:"repeat_every_seconds,omitempty"`
	RepeatCount        int        `json:"repeat_count,omitempty"`
}

func (h *PollHandler) CreatePoll(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		http.Error(w, "Unauthorized: missing user context", http.StatusUnauthorized)
		return
	}

	var req createPollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	options := req.Options
	if len(options) == 0 {
		options = []string{"Yes", "No"}
	}

	input := ports.CreatePollInput{
		Question:           req.Question,
		Options:            options,
		Expires:            req.Expires,
		AllowMultipleVotes: req.AllowMultipleVotes,
		AllowedVoteViewers: domain.ParseMentions(req.AllowedVoteViewers),
		AllowedEditors:     domain.ParseMentions(req.AllowedEditors),
		AllowedVoters:      domain.ParseMentions(req.AllowedVoters),
		ChannelID:          req.ChannelID,
		MessageID:          req.MessageID,
		CreatorID:          caller.UserID,
		RepeatEvery:        time.Duration(req.RepeatEverySeconds) * time.Second,
		RepeatCount:        req.RepeatCount,
	}

	poll, err := h.service.Create(r.Context(), input)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, renderPoll(poll, caller))
}

func (h *PollHandler) GetPoll(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		http.Error(w, "Unauthorized: missing user context", http.StatusUnauthorized)
		return
	}

	pollID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid poll id", http.StatusBadRequest)
		return
	}

	poll, err := h.service.Get(r.Context(), pollID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, renderPoll(poll, caller))
}

type addOptionRequest struct {
	Label string `json:"label"`
}

func (h *PollHandler) AddOption(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		http.Error(w, "Unauthorized: missing user context", http.StatusUnauthorized)
		return
	}

	pollID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid poll id", http.StatusBadRequest)
		return
	}

	var req addOptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if _, err := h.service.AddOption(r.Context(), pollID, req.Label, caller); err != nil {
		respondError(w, err)
		return
	}

	poll, err := h.service.Get(r.Context(), pollID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, renderPoll(poll, caller))
}

func (h *PollHandler) ClosePoll(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		http.Error(w, "Unauthorized: missing user context", http.StatusUnauthorized)
		return
	}

	pollID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid poll id", http.StatusBadRequest)
		return
	}

	if err := h.service.Close(r.Context(), pollID, caller); err != nil {
		respondError(w, err)
		return
	}

	poll, err := h.service.Get(r.Context(), pollID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, renderPoll(poll, caller))
}

// Status reports the presence line derived from the live poll collection.
func (h *PollHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": h.status()})
}
