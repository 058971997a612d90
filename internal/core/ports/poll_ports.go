package ports

import (
	"context"
	"time"

	"github.com/ballotd/ballotd/internal/core/domain"
)

// CreatePollInput is the request to create a poll, possibly on a repeating
// schedule.
type CreatePollInput struct {
	Question           string
	Options            []string
	Expires            *time.Time
	AllowMultipleVotes bool
	AllowedVoteViewers []domain.Mention
	AllowedEditors     []domain.Mention
	AllowedVoters      []domain.Mention
	ChannelID          int64
	MessageID          int64
	CreatorID          int64

	// RepeatEvery spaces out successor polls; zero means no repetition.
	RepeatEvery time.Duration
	// RepeatCount caps the number of polls created; zero with a non-zero
	// RepeatEvery means repeat until shutdown.
	RepeatCount int
}

// Caller identifies the user behind a mutating request for access checks.
type Caller struct {
	UserID  int64
	RoleIDs []int64
}

// PollService is the mutating surface the presentation adapter drives.
type PollService interface {
	Create(ctx context.Context, input CreatePollInput) (*domain.Poll, error)
	Get(ctx context.Context, pollID int64) (*domain.Poll, error)
	ToggleVote(ctx context.Context, optionID int64, caller Caller) (added bool, err error)
	AddOption(ctx context.Context, pollID int64, label string, caller Caller) (*domain.Option, error)
	Close(ctx context.Context, pollID int64, caller Caller) error
}
