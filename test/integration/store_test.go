package integration

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ballotd/ballotd/internal/adapters/repository/postgres"
	"github.com/ballotd/ballotd/internal/core/domain"
)

func setupStore(t *testing.T) (*postgres.Store, *sql.DB) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, connStr, err := setupPostgresContainer(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, applyMigrations(db))
	return postgres.NewStore(db), db
}

func TestInsertAndSelectPoll(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	expires := time.Now().UTC().Add(time.Hour).Truncate(time.Microsecond)
	pollID, err := store.InsertPoll(ctx, domain.PollRow{
		Question:           "Integration?",
		Expires:            &expires,
		AllowMultipleVotes: true,
		VoteViewers:        []string{"<@1>", "<@&2>"},
		Editors:            []string{"<@3>"},
		ChannelID:          77,
		MessageID:          88,
		CreatorID:          1,
	})
	require.NoError(t, err)
	assert.Positive(t, pollID)

	polls, err := store.SelectAllPolls(ctx)
	require.NoError(t, err)
	require.Len(t, polls, 1)

	row := polls[0]
	assert.Equal(t, pollID, row.ID)
	assert.Equal(t, "Integration?", row.Question)
	require.NotNil(t, row.Expires)
	assert.WithinDuration(t, expires, *row.Expires, time.Millisecond)
	assert.True(t, row.AllowMultipleVotes)
	assert.Equal(t, []string{"<@1>", "<@&2>"}, row.VoteViewers)
	assert.Equal(t, []string{"<@3>"}, row.Editors)
	assert.Empty(t, row.Voters)
	assert.False(t, row.Closed)
}

func TestInsertOptionsAssignsIDs(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	pollID, err := store.InsertPoll(ctx, domain.PollRow{Question: "Opts?", CreatorID: 1})
	require.NoError(t, err)

	author := int64(42)
	inserted, err := store.InsertOptions(ctx, pollID, []string{"A", "B", "C"}, &author)
	require.NoError(t, err)
	require.Len(t, inserted, 3)
	for i, opt := range inserted {
		assert.Positive(t, opt.ID)
		require.NotNil(t, opt.AuthorID)
		assert.Equal(t, author, *opt.AuthorID)
		if i > 0 {
			assert.Greater(t, opt.ID, inserted[i-1].ID)
		}
	}

	selected, err := store.SelectOptions(ctx, pollID)
	require.NoError(t, err)
	assert.Equal(t, inserted, selected)
}

func TestVoteRoundTrip(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	pollID, err := store.InsertPoll(ctx, domain.PollRow{Question: "Votes?", CreatorID: 1})
	require.NoError(t, err)
	options, err := store.InsertOptions(ctx, pollID, []string{"Only"}, nil)
	require.NoError(t, err)
	optionID := options[0].ID

	require.NoError(t, store.InsertVote(ctx, optionID, 7))
	// A duplicate insert is absorbed, not an error.
	require.NoError(t, store.InsertVote(ctx, optionID, 7))
	require.NoError(t, store.InsertVote(ctx, optionID, 8))

	voters, err := store.SelectVoters(ctx, optionID)
	require.NoError(t, err)
	assert.Equal(t, map[int64]struct{}{7: {}, 8: {}}, voters)

	require.NoError(t, store.DeleteVote(ctx, optionID, 7))
	voters, err = store.SelectVoters(ctx, optionID)
	require.NoError(t, err)
	assert.Equal(t, map[int64]struct{}{8: {}}, voters)
}

func TestUpdatePollClosed(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	future := time.Now().UTC().Add(time.Hour)
	pollID, err := store.InsertPoll(ctx, domain.PollRow{Question: "Close?", Expires: &future, CreatorID: 1})
	require.NoError(t, err)

	closedAt := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, store.UpdatePollClosed(ctx, pollID, closedAt))

	polls, err := store.SelectAllPolls(ctx)
	require.NoError(t, err)
	require.Len(t, polls, 1)
	assert.True(t, polls[0].Closed)
	require.NotNil(t, polls[0].Expires)
	assert.WithinDuration(t, closedAt, *polls[0].Expires, time.Millisecond)
}

func TestDeletingPollCascades(t *testing.T) {
	store, db := setupStore(t)
	ctx := context.Background()

	pollID, err := store.InsertPoll(ctx, domain.PollRow{Question: "Cascade?", CreatorID: 1})
	require.NoError(t, err)
	options, err := store.InsertOptions(ctx, pollID, []string{"Gone"}, nil)
	require.NoError(t, err)
	require.NoError(t, store.InsertVote(ctx, options[0].ID, 9))

	_, err = db.Exec("DELETE FROM polls WHERE id = $1", pollID)
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM votes").Scan(&count))
	assert.Zero(t, count)
}

func TestFetchAllPollsAgainstPostgres(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	created, err := domain.CreatePoll(ctx, store, domain.PollSpec{
		Question:  "Full stack?",
		Options:   []string{"Yes", "No"},
		CreatorID: 5,
	})
	require.NoError(t, err)

	_, err = created.Options()[0].ToggleVote(ctx, 5)
	require.NoError(t, err)

	restored, err := domain.FetchAllPolls(ctx, store)
	require.NoError(t, err)
	require.Len(t, restored, 1)

	poll := restored[0]
	assert.Equal(t, created.ID(), poll.ID())
	require.Len(t, poll.Options(), 2)
	assert.Equal(t, 1, poll.Options()[0].VoteCount())
	assert.True(t, poll.Options()[0].HasVote(5))
}
