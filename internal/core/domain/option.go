package domain

import (
	"context"
	"fmt"
)

// Option is one choice within a poll, holding the set of voters who picked it.
// Options are only ever built by their owning Poll, which wires the poll
// back-reference before handing them out.
type Option struct {
	id       int64
	label    string
	authorID *int64
	poll     *Poll
	votes    map[int64]struct{}
}

func newOption(row OptionRow, votes map[int64]struct{}) *Option {
	if votes == nil {
		votes = make(map[int64]struct{})
	}
	return &Option{
		id:       row.ID,
		label:    row.Label,
		authorID: row.AuthorID,
		votes:    votes,
	}
}

func (o *Option) ID() int64 { return o.id }

func (o *Option) Label() string { return o.label }

// AuthorID returns the id of the user who added the option, or nil if the
// option existed from poll creation.
func (o *Option) AuthorID() *int64 { return o.authorID }

// Poll returns the poll that the option belongs to.
func (o *Option) Poll() *Poll { return o.poll }

// VoteCount returns the number of votes for this option.
func (o *Option) VoteCount() int {
	o.poll.mu.RLock()
	defer o.poll.mu.RUnlock()
	return len(o.votes)
}

// Voters returns a copy of the ids of the users who voted on this option.
func (o *Option) Voters() []int64 {
	o.poll.mu.RLock()
	defer o.poll.mu.RUnlock()
	voters := make([]int64, 0, len(o.votes))
	for id := range o.votes {
		voters = append(voters, id)
	}
	return voters
}

// HasVote reports whether the given user currently has a vote on this option.
func (o *Option) HasVote(voterID int64) bool {
	o.poll.mu.RLock()
	defer o.poll.mu.RUnlock()
	_, ok := o.votes[voterID]
	return ok
}

// AddVote records a vote from the given user on this option. If such a vote
// already exists nothing happens. If the poll does not allow multiple votes,
// the user's votes on every sibling option are removed first.
func (o *Option) AddVote(ctx context.Context, voterID int64) error {
	o.poll.mu.Lock()
	defer o.poll.mu.Unlock()
	return o.addVoteLocked(ctx, voterID)
}

// RemoveVote removes the given user's vote on this option. If no such vote
// exists, nothing happens.
func (o *Option) RemoveVote(ctx context.Context, voterID int64) error {
	o.poll.mu.Lock()
	defer o.poll.mu.Unlock()
	return o.removeVoteLocked(ctx, voterID)
}

// ToggleVote removes the user's vote on this option if present, otherwise adds
// it. The whole sequence holds the poll's lock, so two toggles racing on the
// same poll can never interleave into zero or duplicate votes.
func (o *Option) ToggleVote(ctx context.Context, voterID int64) (added bool, err error) {
	o.poll.mu.Lock()
	defer o.poll.mu.Unlock()
	if !o.poll.isOpenLocked() {
		return false, ErrPollClosed
	}
	if _, ok := o.votes[voterID]; ok {
		return false, o.removeVoteLocked(ctx, voterID)
	}
	return true, o.addVoteLocked(ctx, voterID)
}

func (o *Option) addVoteLocked(ctx context.Context, voterID int64) error {
	if !o.poll.allowMultipleVotes {
		if err := o.poll.removeVotesFromLocked(ctx, voterID); err != nil {
			return err
		}
	}
	if err := o.poll.store.InsertVote(ctx, o.id, voterID); err != nil {
		return fmt.Errorf("failed to insert vote: %w", err)
	}
	o.votes[voterID] = struct{}{}
	return nil
}

func (o *Option) removeVoteLocked(ctx context.Context, voterID int64) error {
	if err := o.poll.store.DeleteVote(ctx, o.id, voterID); err != nil {
		return fmt.Errorf("failed to delete vote: %w", err)
	}
	delete(o.votes, voterID)
	return nil
}
