package domain

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const (
	// MaxOptions is the most options a single poll may hold.
	MaxOptions = 23

	// MaxQuestionLength bounds the poll question.
	MaxQuestionLength = 254

	// MaxLabelLength bounds each option label.
	MaxLabelLength = 253
)

// PollSpec carries everything needed to create a poll.
type PollSpec struct {
	Question           string
	Options            []string
	Expires            *time.Time
	AllowMultipleVotes bool
	AllowedVoteViewers []Mention
	AllowedEditors     []Mention
	AllowedVoters      []Mention
	ChannelID          int64
	MessageID          int64
	CreatorID          int64
}

// Poll is the aggregate root for a question, its ordered options and their
// votes. A single mutex scoped to the poll serializes every vote mutation, so
// the single-vote invariant holds under concurrent toggles.
type Poll struct {
	mu sync.RWMutex

	id                 int64
	question           string
	options            []*Option
	expires            *time.Time
	allowMultipleVotes bool
	allowedVoteViewers []Mention
	allowedEditors     []Mention
	allowedVoters      []Mention
	channelID          int64
	messageID          int64
	creatorID          int64
	closed             bool

	store Store
}

// Validate checks the spec's bounds without touching the store.
func (s PollSpec) Validate() error {
	if s.Question == "" {
		return &ValidationError{Field: "question", Reason: "must not be empty"}
	}
	if len(s.Question) > MaxQuestionLength {
		return &ValidationError{Field: "question", Reason: fmt.Sprintf("longer than %d characters", MaxQuestionLength)}
	}
	if len(s.Options) == 0 {
		return &ValidationError{Field: "options", Reason: "at least one option is required"}
	}
	if len(s.Options) > MaxOptions {
		return &ValidationError{Field: "options", Reason: fmt.Sprintf("more than the maximum of %d options", MaxOptions)}
	}
	for _, label := range s.Options {
		if label == "" {
			return &ValidationError{Field: "options", Reason: "option labels must not be empty"}
		}
		if len(label) > MaxLabelLength {
			return &ValidationError{Field: "options", Reason: fmt.Sprintf("label %q longer than %d characters", label, MaxLabelLength)}
		}
	}
	return nil
}

// CreatePoll validates the spec, persists the poll row and its option rows,
// and returns the fully wired aggregate. Every returned option already holds
// its poll back-reference; a creation failure leaves no poll addressable by
// callers.
func CreatePoll(ctx context.Context, store Store, spec PollSpec) (*Poll, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	row := PollRow{
		Question:           spec.Question,
		Expires:            spec.Expires,
		AllowMultipleVotes: spec.AllowMultipleVotes,
		VoteViewers:        formatMentions(spec.AllowedVoteViewers),
		Editors:            formatMentions(spec.AllowedEditors),
		Voters:             formatMentions(spec.AllowedVoters),
		ChannelID:          spec.ChannelID,
		MessageID:          spec.MessageID,
		CreatorID:          spec.CreatorID,
	}
	id, err := store.InsertPoll(ctx, row)
	if err != nil {
		return nil, fmt.Errorf("failed to insert poll: %w", err)
	}
	row.ID = id

	optionRows, err := store.InsertOptions(ctx, id, spec.Options, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to insert options: %w", err)
	}

	poll := fromRow(row, store)
	for _, optRow := range optionRows {
		poll.attach(newOption(optRow, nil))
	}
	return poll, nil
}

// FetchAllPolls loads every persisted poll with its options and voter sets.
// It is used for startup recovery, so closed polls are included.
func FetchAllPolls(ctx context.Context, store Store) ([]*Poll, error) {
	rows, err := store.SelectAllPolls(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to select polls: %w", err)
	}

	polls := make([]*Poll, 0, len(rows))
	for _, row := range rows {
		poll := fromRow(row, store)
		optionRows, err := store.SelectOptions(ctx, row.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to select options of poll %d: %w", row.ID, err)
		}
		for _, optRow := range optionRows {
			votes, err := store.SelectVoters(ctx, optRow.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to select voters of option %d: %w", optRow.ID, err)
			}
			poll.attach(newOption(optRow, votes))
		}
		polls = append(polls, poll)
	}
	return polls, nil
}

func fromRow(row PollRow, store Store) *Poll {
	return &Poll{
		id:                 row.ID,
		question:           row.Question,
		expires:            row.Expires,
		allowMultipleVotes: row.AllowMultipleVotes,
		allowedVoteViewers: parseMentionList(row.VoteViewers),
		allowedEditors:     parseMentionList(row.Editors),
		allowedVoters:      parseMentionList(row.Voters),
		channelID:          row.ChannelID,
		messageID:          row.MessageID,
		creatorID:          row.CreatorID,
		closed:             row.Closed,
		store:              store,
	}
}

func (p *Poll) attach(opt *Option) {
	opt.poll = p
	p.options = append(p.options, opt)
}

func (p *Poll) ID() int64 { return p.id }

func (p *Poll) Question() string { return p.question }

// Options returns the poll's options in display order.
func (p *Poll) Options() []*Option {
	p.mu.RLock()
	defer p.mu.RUnlock()
	opts := make([]*Option, len(p.options))
	copy(opts, p.options)
	return opts
}

// Option returns the poll's option with the given id.
func (p *Poll) Option(optionID int64) (*Option, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, opt := range p.options {
		if opt.id == optionID {
			return opt, true
		}
	}
	return nil, false
}

// Expires returns the time after which the poll no longer accepts votes, or
// nil if the poll never expires on its own.
func (p *Poll) Expires() *time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.expires
}

func (p *Poll) AllowMultipleVotes() bool { return p.allowMultipleVotes }

func (p *Poll) AllowedVoteViewers() []Mention { return p.allowedVoteViewers }

func (p *Poll) AllowedEditors() []Mention { return p.allowedEditors }

func (p *Poll) AllowedVoters() []Mention { return p.allowedVoters }

func (p *Poll) ChannelID() int64 { return p.channelID }

func (p *Poll) MessageID() int64 { return p.messageID }

func (p *Poll) CreatorID() int64 { return p.creatorID }

// IsExpired reports whether the poll's expiry has passed or Close has been
// called. A poll with no expiry is never time-expired.
func (p *Poll) IsExpired() bool {
	return !p.IsOpen()
}

// IsOpen reports whether the poll still accepts votes and new options.
func (p *Poll) IsOpen() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.isOpenLocked()
}

func (p *Poll) isOpenLocked() bool {
	if p.closed {
		return false
	}
	return p.expires == nil || time.Now().UTC().Before(*p.expires)
}

// WasClosed reports whether Close has been called, as opposed to the expiry
// merely having passed. Close tasks use it to tell a stale wakeup apart from
// a genuine expiry.
func (p *Poll) WasClosed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}

// Close marks the poll closed and persists the state so recovery after a
// restart reflects it. Closing an already closed poll is a no-op. A poll
// never reopens.
func (p *Poll) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}

	expires := time.Now().UTC()
	if p.expires != nil && p.expires.Before(expires) {
		expires = *p.expires
	}
	if err := p.store.UpdatePollClosed(ctx, p.id, expires); err != nil {
		return fmt.Errorf("failed to close poll: %w", err)
	}
	p.closed = true
	p.expires = &expires
	return nil
}

// NewOption persists and appends a new option added by the given user. It
// fails with a CapacityError when the poll is full and ErrPollClosed when the
// poll no longer accepts changes.
func (p *Poll) NewOption(ctx context.Context, label string, authorID int64) (*Option, error) {
	if label == "" {
		return nil, &ValidationError{Field: "label", Reason: "must not be empty"}
	}
	if len(label) > MaxLabelLength {
		return nil, &ValidationError{Field: "label", Reason: fmt.Sprintf("longer than %d characters", MaxLabelLength)}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.isOpenLocked() {
		return nil, ErrPollClosed
	}
	if len(p.options) >= MaxOptions {
		return nil, &CapacityError{PollID: p.id, Limit: MaxOptions}
	}

	rows, err := p.store.InsertOptions(ctx, p.id, []string{label}, &authorID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert option: %w", err)
	}
	opt := newOption(rows[0], nil)
	opt.poll = p
	p.options = append(p.options, opt)
	return opt, nil
}

// RemoveVotesFrom removes the given user's vote from every option of the
// poll. Options use it internally to enforce single-vote exclusivity before
// adding a vote.
func (p *Poll) RemoveVotesFrom(ctx context.Context, voterID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.removeVotesFromLocked(ctx, voterID)
}

func (p *Poll) removeVotesFromLocked(ctx context.Context, voterID int64) error {
	for _, opt := range p.options {
		if err := opt.removeVoteLocked(ctx, voterID); err != nil {
			return err
		}
	}
	return nil
}

// VoterCanVote reports whether the given user, holding the given roles, is on
// the poll's voters list. An empty list means everyone may vote.
func (p *Poll) VoterCanVote(userID int64, roleIDs []int64) bool {
	return mentionsAllow(p.allowedVoters, userID, roleIDs, true)
}

// UserCanEdit reports whether the given user may add options. The creator may
// always edit; an empty editors list grants no one else.
func (p *Poll) UserCanEdit(userID int64, roleIDs []int64) bool {
	if userID == p.creatorID {
		return true
	}
	return mentionsAllow(p.allowedEditors, userID, roleIDs, false)
}

// UserCanSeeVotes reports whether the given user may see who voted. The
// default is no one but the creator.
func (p *Poll) UserCanSeeVotes(userID int64, roleIDs []int64) bool {
	if userID == p.creatorID {
		return true
	}
	return mentionsAllow(p.allowedVoteViewers, userID, roleIDs, false)
}

func mentionsAllow(mentions []Mention, userID int64, roleIDs []int64, emptyAllows bool) bool {
	if len(mentions) == 0 {
		return emptyAllows
	}
	for _, m := range mentions {
		if m.Matches(userID, roleIDs) {
			return true
		}
	}
	return false
}
