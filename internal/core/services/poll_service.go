package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ballotd/ballotd/internal/core/domain"
	"github.com/ballotd/ballotd/internal/core/ports"
)

// PollService orchestrates the poll aggregate for the presentation adapter:
// creation (one-shot or repeating), vote toggling, option addition and manual
// closure. All instances flow through the registry so every caller sees the
// same canonical poll.
type PollService struct {
	store     domain.Store
	registry  *Registry
	scheduler *Scheduler
	notifier  ports.Notifier
	cache     ports.ResultsCache
	events    ports.EventPublisher
	logger    *slog.Logger
}

// NewPollService wires the service. notifier, cache and events may be nil;
// the corresponding fan-outs are skipped.
func NewPollService(
	store domain.Store,
	registry *Registry,
	scheduler *Scheduler,
	notifier ports.Notifier,
	cache ports.ResultsCache,
	events ports.EventPublisher,
	logger *slog.Logger,
) *PollService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &PollService{
		store:     store,
		registry:  registry,
		scheduler: scheduler,
		notifier:  notifier,
		cache:     cache,
		events:    events,
		logger:    logger,
	}
	scheduler.OnClosed = func(ctx context.Context, poll *domain.Poll) {
		s.announce(ctx, poll, ports.NewEvent(ports.EventPollClosed, poll.ID()))
	}
	return s
}

// LoadAll restores every persisted poll into the registry and schedules close
// tasks for the ones still open. Called once at startup.
func (s *PollService) LoadAll(ctx context.Context) error {
	start := time.Now()
	polls, err := domain.FetchAllPolls(ctx, s.store)
	if err != nil {
		return fmt.Errorf("failed to load polls: %w", err)
	}
	for _, poll := range polls {
		poll = s.registry.Register(poll)
		s.scheduler.WatchClose(poll)
	}
	stats := s.registry.Stats()
	s.logger.Info("finished loading polls",
		"total", stats.Total,
		"active", stats.Active,
		"elapsed", time.Since(start),
	)
	return nil
}

// Create validates and creates a poll. A repeat configuration additionally
// starts the repeat loop; the first poll of the sequence is returned
// synchronously. A repeat count without a repeat interval is rejected before
// anything is persisted.
func (s *PollService) Create(ctx context.Context, input ports.CreatePollInput) (*domain.Poll, error) {
	if input.RepeatCount > 0 && input.RepeatEvery == 0 {
		return nil, &domain.ValidationError{
			Field:  "repeat_count",
			Reason: "a repeat interval is required when a repeat count is set",
		}
	}
	if input.RepeatEvery > 0 && input.Expires == nil {
		return nil, &domain.ValidationError{
			Field:  "repeat_every",
			Reason: "a repeating poll needs an expiry to know when to repeat",
		}
	}

	poll, err := s.createOne(ctx, input, input.Expires)
	if err != nil {
		return nil, err
	}

	if input.RepeatEvery > 0 {
		s.scheduler.RunRepeat(poll, input, func(ctx context.Context, expires *time.Time) (*domain.Poll, error) {
			return s.createOne(ctx, input, expires)
		})
	} else {
		s.scheduler.WatchClose(poll)
	}
	return poll, nil
}

func (s *PollService) createOne(ctx context.Context, input ports.CreatePollInput, expires *time.Time) (*domain.Poll, error) {
	spec := domain.PollSpec{
		Question:           input.Question,
		Options:            input.Options,
		Expires:            expires,
		AllowMultipleVotes: input.AllowMultipleVotes,
		AllowedVoteViewers: input.AllowedVoteViewers,
		AllowedEditors:     input.AllowedEditors,
		AllowedVoters:      input.AllowedVoters,
		ChannelID:          input.ChannelID,
		MessageID:          input.MessageID,
		CreatorID:          input.CreatorID,
	}
	poll, err := domain.CreatePoll(ctx, s.store, spec)
	if err != nil {
		return nil, err
	}
	poll = s.registry.Register(poll)
	s.logger.Info("poll created", "poll_id", poll.ID(), "question", poll.Question(), "expires", poll.Expires())
	s.announce(ctx, poll, ports.NewEvent(ports.EventPollCreated, poll.ID()))
	return poll, nil
}

// Get returns the canonical instance of a poll.
func (s *PollService) Get(_ context.Context, pollID int64) (*domain.Poll, error) {
	poll, ok := s.registry.Poll(pollID)
	if !ok {
		return nil, domain.ErrPollNotFound
	}
	return poll, nil
}

// ToggleVote toggles the caller's vote on an option, enforcing the poll's
// voters list.
func (s *PollService) ToggleVote(ctx context.Context, optionID int64, caller ports.Caller) (bool, error) {
	opt, ok := s.registry.Option(optionID)
	if !ok {
		return false, domain.ErrOptionNotFound
	}
	poll := opt.Poll()
	if !poll.VoterCanVote(caller.UserID, caller.RoleIDs) {
		return false, &domain.ValidationError{Field: "voter", Reason: "you are not allowed to vote on this poll"}
	}

	added, err := opt.ToggleVote(ctx, caller.UserID)
	if err != nil {
		return false, err
	}
	event := ports.NewEvent(ports.EventVoteToggled, poll.ID())
	event.OptionID = optionID
	event.VoterID = caller.UserID
	s.announce(ctx, poll, event)
	return added, nil
}

// AddOption appends an option to an open poll on behalf of an editor.
func (s *PollService) AddOption(ctx context.Context, pollID int64, label string, caller ports.Caller) (*domain.Option, error) {
	poll, ok := s.registry.Poll(pollID)
	if !ok {
		return nil, domain.ErrPollNotFound
	}
	if !poll.UserCanEdit(caller.UserID, caller.RoleIDs) {
		return nil, &domain.ValidationError{Field: "editor", Reason: "you are not allowed to add options to this poll"}
	}

	opt, err := poll.NewOption(ctx, label, caller.UserID)
	if err != nil {
		return nil, err
	}
	s.registry.Reindex(poll)
	event := ports.NewEvent(ports.EventOptionAdded, pollID)
	event.OptionID = opt.ID()
	s.announce(ctx, poll, event)
	return opt, nil
}

// Close closes a poll ahead of its expiry. The running close task, if any, is
// cancelled so its timer does not linger until the original expiry.
func (s *PollService) Close(ctx context.Context, pollID int64, caller ports.Caller) error {
	poll, ok := s.registry.Poll(pollID)
	if !ok {
		return domain.ErrPollNotFound
	}
	if !poll.UserCanEdit(caller.UserID, caller.RoleIDs) {
		return &domain.ValidationError{Field: "editor", Reason: "you are not allowed to close this poll"}
	}

	if cancel, ok := s.registry.TakeCloseCancel(pollID); ok {
		cancel()
	}
	if err := poll.Close(ctx); err != nil {
		return err
	}
	s.logger.Info("poll closed manually", "poll_id", pollID, "user_id", caller.UserID)
	s.announce(ctx, poll, ports.NewEvent(ports.EventPollClosed, pollID))
	return nil
}

// StatusLine renders the presence text from registry stats.
func (s *PollService) StatusLine() string {
	stats := s.registry.Stats()
	return fmt.Sprintf("/poll. %d active, %d total.", stats.Active, stats.Total)
}

// announce pushes the change to the notifier, the results cache and the event
// stream. All three are best effort: a failure is logged, never propagated.
func (s *PollService) announce(ctx context.Context, poll *domain.Poll, event ports.Event) {
	if s.notifier != nil {
		s.notifier.PollChanged(ctx, poll)
	}
	if s.cache != nil {
		counts := make(map[int64]int)
		for _, opt := range poll.Options() {
			counts[opt.ID()] = opt.VoteCount()
		}
		if err := s.cache.UpdateCounts(ctx, poll.ID(), counts); err != nil {
			s.logger.Warn("failed to update results cache", "poll_id", poll.ID(), "error", err)
		}
	}
	if s.events != nil {
		if err := s.events.Publish(ctx, event); err != nil {
			s.logger.Warn("failed to publish poll event", "poll_id", poll.ID(), "kind", event.Kind, "error", err)
		}
	}
}
