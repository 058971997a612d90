package ports

import (
	"context"
	"time"

	"github.com/ballotd/ballotd/internal/core/domain"
	"github.com/google/uuid"
)

// Notifier is told after any observable poll change so the presentation
// adapter can re-render. Delivery is best effort; failures are logged and
// swallowed by the caller.
type Notifier interface {
	PollChanged(ctx context.Context, poll *domain.Poll)
}

// Event kinds published on poll state changes.
const (
	EventPollCreated = "poll_created"
	EventPollClosed  = "poll_closed"
	EventOptionAdded = "option_added"
	EventVoteToggled = "vote_toggled"
)

// Event is a poll state change fanned out to external consumers.
type Event struct {
	ID       uuid.UUID `json:"id"`
	Kind     string    `json:"kind"`
	PollID   int64     `json:"poll_id"`
	OptionID int64     `json:"option_id,omitempty"`
	VoterID  int64     `json:"voter_id,omitempty"`
	At       time.Time `json:"at"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(kind string, pollID int64) Event {
	return Event{ID: uuid.New(), Kind: kind, PollID: pollID, At: time.Now().UTC()}
}

// EventPublisher fans poll events out to a broker.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}
