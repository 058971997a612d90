package domain_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ballotd/ballotd/internal/adapters/memory"
	"github.com/ballotd/ballotd/internal/core/domain"
)

func newTestPoll(t *testing.T, store *memory.Store, spec domain.PollSpec) *domain.Poll {
	t.Helper()
	if spec.Question == "" {
		spec.Question = "What's for lunch?"
	}
	if len(spec.Options) == 0 {
		spec.Options = []string{"Pizza", "Sushi"}
	}
	poll, err := domain.CreatePoll(context.Background(), store, spec)
	require.NoError(t, err)
	return poll
}

func TestCreatePollWiresOptions(t *testing.T) {
	store := memory.NewStore()
	poll := newTestPoll(t, store, domain.PollSpec{Options: []string{"A", "B", "C"}})

	options := poll.Options()
	require.Len(t, options, 3)
	labels := make([]string, len(options))
	for i, opt := range options {
		labels[i] = opt.Label()
		assert.Same(t, poll, opt.Poll(), "option must carry its poll back-reference")
		assert.Nil(t, opt.AuthorID(), "creation-time options have no author")
	}
	assert.Equal(t, []string{"A", "B", "C"}, labels, "insertion order is display order")
}

func TestCreatePollTooManyOptions(t *testing.T) {
	store := memory.NewStore()
	labels := make([]string, domain.MaxOptions+1)
	for i := range labels {
		labels[i] = fmt.Sprintf("option %d", i)
	}

	_, err := domain.CreatePoll(context.Background(), store, domain.PollSpec{
		Question: "Too many?",
		Options:  labels,
	})

	var validationErr *domain.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Zero(t, store.PollCount(), "nothing may be persisted on a rejected create")
}

func TestCreatePollValidation(t *testing.T) {
	store := memory.NewStore()
	longLabel := make([]byte, domain.MaxLabelLength+1)
	for i := range longLabel {
		longLabel[i] = 'x'
	}

	cases := []struct {
		name string
		spec domain.PollSpec
	}{
		{"empty question", domain.PollSpec{Options: []string{"A"}}},
		{"no options", domain.PollSpec{Question: "Q"}},
		{"empty label", domain.PollSpec{Question: "Q", Options: []string{""}}},
		{"long label", domain.PollSpec{Question: "Q", Options: []string{string(longLabel)}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := domain.CreatePoll(context.Background(), store, tc.spec)
			var validationErr *domain.ValidationError
			assert.ErrorAs(t, err, &validationErr)
		})
	}
	assert.Zero(t, store.PollCount())
}

func TestCreatePollStoreFailure(t *testing.T) {
	store := memory.NewStore()
	store.FailNext = errors.New("connection reset")

	_, err := domain.CreatePoll(context.Background(), store, domain.PollSpec{
		Question: "Q",
		Options:  []string{"A"},
	})
	require.Error(t, err)
	assert.Zero(t, store.PollCount())
}

func TestToggleVoteIsItsOwnInverse(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	poll := newTestPoll(t, store, domain.PollSpec{})
	opt := poll.Options()[0]

	added, err := opt.ToggleVote(ctx, 42)
	require.NoError(t, err)
	assert.True(t, added)
	assert.True(t, opt.HasVote(42))
	assert.True(t, store.HasVote(opt.ID(), 42), "vote row must exist alongside the set entry")

	added, err = opt.ToggleVote(ctx, 42)
	require.NoError(t, err)
	assert.False(t, added)
	assert.False(t, opt.HasVote(42))
	assert.False(t, store.HasVote(opt.ID(), 42))
	assert.Zero(t, opt.VoteCount())
}

func TestSingleVoteExclusivity(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	poll := newTestPoll(t, store, domain.PollSpec{Options: []string{"A", "B"}})
	a, b := poll.Options()[0], poll.Options()[1]

	_, err := a.ToggleVote(ctx, 7)
	require.NoError(t, err)
	_, err = b.ToggleVote(ctx, 7)
	require.NoError(t, err)

	assert.False(t, a.HasVote(7), "voting B must displace the vote on A")
	assert.True(t, b.HasVote(7))
	assert.False(t, store.HasVote(a.ID(), 7))
	assert.True(t, store.HasVote(b.ID(), 7))

	// Toggling B again removes the voter's only remaining vote.
	_, err = b.ToggleVote(ctx, 7)
	require.NoError(t, err)
	assert.Zero(t, a.VoteCount()+b.VoteCount())
}

func TestMultiVotePollKeepsAllVotes(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	poll := newTestPoll(t, store, domain.PollSpec{
		Options:            []string{"A", "B"},
		AllowMultipleVotes: true,
	})
	a, b := poll.Options()[0], poll.Options()[1]

	_, err := a.ToggleVote(ctx, 7)
	require.NoError(t, err)
	_, err = b.ToggleVote(ctx, 7)
	require.NoError(t, err)

	assert.True(t, a.HasVote(7))
	assert.True(t, b.HasVote(7))
}

func TestRemoveVoteWithoutVoteIsNoop(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	poll := newTestPoll(t, store, domain.PollSpec{})
	opt := poll.Options()[0]

	require.NoError(t, opt.RemoveVote(ctx, 99))
	assert.Zero(t, opt.VoteCount())
}

func TestConcurrentTogglesStaySingleVote(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	poll := newTestPoll(t, store, domain.PollSpec{Options: []string{"A", "B"}})
	a, b := poll.Options()[0], poll.Options()[1]

	const voterID = 3

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := a.ToggleVote(ctx, voterID)
		assert.NoError(t, err)
	}()
	go func() {
		defer wg.Done()
		_, err := b.ToggleVote(ctx, voterID)
		assert.NoError(t, err)
	}()
	wg.Wait()

	votes := 0
	if a.HasVote(voterID) {
		votes++
	}
	if b.HasVote(voterID) {
		votes++
	}
	assert.Equal(t, 1, votes, "racing toggles must leave exactly one vote, never zero or two")
}

func TestVoteOnClosedPoll(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	poll := newTestPoll(t, store, domain.PollSpec{})
	require.NoError(t, poll.Close(ctx))

	_, err := poll.Options()[0].ToggleVote(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrPollClosed)
}

func TestNewOption(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	poll := newTestPoll(t, store, domain.PollSpec{})

	opt, err := poll.NewOption(ctx, "Tacos", 55)
	require.NoError(t, err)
	require.NotNil(t, opt.AuthorID())
	assert.Equal(t, int64(55), *opt.AuthorID())
	assert.Same(t, poll, opt.Poll())
	assert.Len(t, poll.Options(), 3)
}

func TestNewOptionCapacity(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	labels := make([]string, domain.MaxOptions)
	for i := range labels {
		labels[i] = fmt.Sprintf("option %d", i)
	}
	poll := newTestPoll(t, store, domain.PollSpec{Options: labels})

	_, err := poll.NewOption(ctx, "one too many", 1)
	var capacityErr *domain.CapacityError
	require.ErrorAs(t, err, &capacityErr)
	assert.Equal(t, domain.MaxOptions, capacityErr.Limit)
}

func TestNewOptionOnClosedPoll(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	poll := newTestPoll(t, store, domain.PollSpec{})
	require.NoError(t, poll.Close(ctx))

	_, err := poll.NewOption(ctx, "too late", 1)
	assert.ErrorIs(t, err, domain.ErrPollClosed)
}

func TestCloseIsIdempotentAndMonotonic(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	poll := newTestPoll(t, store, domain.PollSpec{})

	require.NoError(t, poll.Close(ctx))
	firstExpiry := poll.Expires()
	require.NotNil(t, firstExpiry)

	require.NoError(t, poll.Close(ctx), "closing a closed poll is a no-op")
	assert.Equal(t, firstExpiry, poll.Expires())
	assert.False(t, poll.IsOpen())
	assert.True(t, poll.IsExpired())
	assert.True(t, poll.WasClosed())
}

func TestExpiryByWallClock(t *testing.T) {
	store := memory.NewStore()
	past := time.Now().UTC().Add(-time.Minute)
	poll := newTestPoll(t, store, domain.PollSpec{Expires: &past})

	assert.True(t, poll.IsExpired())
	assert.False(t, poll.IsOpen())
	assert.False(t, poll.WasClosed(), "time expiry is not an explicit close")

	future := time.Now().UTC().Add(time.Hour)
	open := newTestPoll(t, store, domain.PollSpec{Expires: &future})
	assert.True(t, open.IsOpen())
}

func TestFetchAllPollsRestoresVotes(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	poll := newTestPoll(t, store, domain.PollSpec{Options: []string{"A", "B"}})
	_, err := poll.Options()[0].ToggleVote(ctx, 11)
	require.NoError(t, err)
	_, err = poll.Options()[1].ToggleVote(ctx, 12)
	require.NoError(t, err)
	require.NoError(t, poll.Close(ctx))

	restored, err := domain.FetchAllPolls(ctx, store)
	require.NoError(t, err)
	require.Len(t, restored, 1)

	got := restored[0]
	assert.Equal(t, poll.ID(), got.ID())
	assert.False(t, got.IsOpen(), "persisted closure must survive recovery")
	require.Len(t, got.Options(), 2)
	assert.True(t, got.Options()[0].HasVote(11))
	assert.True(t, got.Options()[1].HasVote(12))
	for _, opt := range got.Options() {
		assert.Same(t, got, opt.Poll())
	}
}

func TestAccessLists(t *testing.T) {
	store := memory.NewStore()
	poll := newTestPoll(t, store, domain.PollSpec{
		CreatorID:      1,
		AllowedVoters:  []domain.Mention{{Kind: domain.MentionRole, ID: 100}},
		AllowedEditors: []domain.Mention{{Kind: domain.MentionUser, ID: 2}},
	})

	assert.True(t, poll.VoterCanVote(5, []int64{100}))
	assert.False(t, poll.VoterCanVote(5, []int64{200}))

	assert.True(t, poll.UserCanEdit(1, nil), "creator may always edit")
	assert.True(t, poll.UserCanEdit(2, nil))
	assert.False(t, poll.UserCanEdit(3, nil))

	assert.True(t, poll.UserCanSeeVotes(1, nil), "creator may always see votes")
	assert.False(t, poll.UserCanSeeVotes(2, nil), "vote viewers default to no one")
}

func TestOpenPollWithoutExpiry(t *testing.T) {
	store := memory.NewStore()
	poll := newTestPoll(t, store, domain.PollSpec{})
	assert.Nil(t, poll.Expires())
	assert.True(t, poll.IsOpen(), "a poll with no expiry is never time-expired")
}
