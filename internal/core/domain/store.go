package domain

import (
	"context"
	"time"
)

// PollRow is the persisted shape of a poll, with access lists in their
// formatted mention form.
type PollRow struct {
	ID                 int64
	Question           string
	Expires            *time.Time
	AllowMultipleVotes bool
	VoteViewers        []string
	Editors            []string
	Voters             []string
	ChannelID          int64
	MessageID          int64
	CreatorID          int64
	Closed             bool
}

// OptionRow is the persisted shape of an option, without its voter set.
type OptionRow struct {
	ID       int64
	Label    string
	AuthorID *int64
}

// Store is the persistence contract the aggregate requires. The backing
// database is the single source of truth; the in-memory aggregate is a cache
// kept consistent with it on every mutation.
type Store interface {
	// InsertPoll persists a poll row and returns its assigned id.
	InsertPoll(ctx context.Context, row PollRow) (int64, error)

	// InsertOptions persists one option row per label, in order, and returns
	// the assigned rows.
	InsertOptions(ctx context.Context, pollID int64, labels []string, authorID *int64) ([]OptionRow, error)

	// SelectOptions returns all option rows of a poll in creation order.
	SelectOptions(ctx context.Context, pollID int64) ([]OptionRow, error)

	// SelectVoters returns the voter ids recorded for an option.
	SelectVoters(ctx context.Context, optionID int64) (map[int64]struct{}, error)

	// InsertVote records a vote. Inserting an already recorded vote is a no-op.
	InsertVote(ctx context.Context, optionID, voterID int64) error

	// DeleteVote removes a vote if it exists.
	DeleteVote(ctx context.Context, optionID, voterID int64) error

	// SelectAllPolls returns every persisted poll row, open and closed.
	SelectAllPolls(ctx context.Context) ([]PollRow, error)

	// UpdatePollClosed marks a poll closed with the given expiry.
	UpdatePollClosed(ctx context.Context, pollID int64, expires time.Time) error
}
