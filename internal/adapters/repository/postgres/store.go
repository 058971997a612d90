package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ballotd/ballotd/internal/core/domain"
	"github.com/lib/pq"
)

// Store implements the poll persistence contract on postgres. It is the
// single source of truth; the in-memory aggregates mirror it.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// orEmpty maps a nil slice to an empty one, so the NOT NULL array columns
// never receive NULL.
func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (s *Store) InsertPoll(ctx context.Context, row domain.PollRow) (int64, error) {
	query := `
		INSERT INTO polls (question, expires, allow_multiple_votes, vote_viewers, editors, voters, channel_id, message_id, creator_id, closed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	var id int64
	err := s.db.QueryRowContext(ctx, query,
		row.Question,
		row.Expires,
		row.AllowMultipleVotes,
		pq.Array(orEmpty(row.VoteViewers)),
		pq.Array(orEmpty(row.Editors)),
		pq.Array(orEmpty(row.Voters)),
		row.ChannelID,
		row.MessageID,
		row.CreatorID,
		row.Closed,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert poll: %w", err)
	}
	return id, nil
}

func (s *Store) InsertOptions(ctx context.Context, pollID int64, labels []string, authorID *int64) ([]domain.OptionRow, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO options (poll_id, label, author)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare option statement: %w", err)
	}
	defer stmt.Close()

	rows := make([]domain.OptionRow, 0, len(labels))
	for _, label := range labels {
		var id int64
		if err := stmt.QueryRowContext(ctx, pollID, label, authorID).Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to insert option: %w", err)
		}
		rows = append(rows, domain.OptionRow{ID: id, Label: label, AuthorID: authorID})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return rows, nil
}

func (s *Store) SelectOptions(ctx context.Context, pollID int64) ([]domain.OptionRow, error) {
	query := `
		SELECT id, label, author
		FROM options
		WHERE poll_id = $1
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to select options: %w", err)
	}
	defer rows.Close()

	var options []domain.OptionRow
	for rows.Next() {
		var opt domain.OptionRow
		if err := rows.Scan(&opt.ID, &opt.Label, &opt.AuthorID); err != nil {
			return nil, fmt.Errorf("failed to scan option: %w", err)
		}
		options = append(options, opt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating options: %w", err)
	}
	return options, nil
}

func (s *Store) SelectVoters(ctx context.Context, optionID int64) (map[int64]struct{}, error) {
	query := `SELECT voter_id FROM votes WHERE option_id = $1`
	rows, err := s.db.QueryContext(ctx, query, optionID)
	if err != nil {
		return nil, fmt.Errorf("failed to select voters: %w", err)
	}
	defer rows.Close()

	voters := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan voter: %w", err)
		}
		voters[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating voters: %w", err)
	}
	return voters, nil
}

func (s *Store) InsertVote(ctx context.Context, optionID, voterID int64) error {
	query := `
		INSERT INTO votes (option_id, voter_id)
		VALUES ($1, $2)
		ON CONFLICT (option_id, voter_id) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, query, optionID, voterID); err != nil {
		return fmt.Errorf("failed to insert vote: %w", err)
	}
	return nil
}

func (s *Store) DeleteVote(ctx context.Context, optionID, voterID int64) error {
	query := `DELETE FROM votes WHERE option_id = $1 AND voter_id = $2`
	if _, err := s.db.ExecContext(ctx, query, optionID, voterID); err != nil {
		return fmt.Errorf("failed to delete vote: %w", err)
	}
	return nil
}

func (s *Store) SelectAllPolls(ctx context.Context) ([]domain.PollRow, error) {
	query := `
		SELECT id, question, expires, allow_multiple_votes, vote_viewers, editors, voters, channel_id, message_id, creator_id, closed
		FROM polls
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select polls: %w", err)
	}
	defer rows.Close()

	var polls []domain.PollRow
	for rows.Next() {
		var row domain.PollRow
		if err := rows.Scan(
			&row.ID,
			&row.Question,
			&row.Expires,
			&row.AllowMultipleVotes,
			pq.Array(&row.VoteViewers),
			pq.Array(&row.Editors),
			pq.Array(&row.Voters),
			&row.ChannelID,
			&row.MessageID,
			&row.CreatorID,
			&row.Closed,
		); err != nil {
			return nil, fmt.Errorf("failed to scan poll: %w", err)
		}
		polls = append(polls, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating polls: %w", err)
	}
	return polls, nil
}

func (s *Store) UpdatePollClosed(ctx context.Context, pollID int64, expires time.Time) error {
	query := `UPDATE polls SET closed = TRUE, expires = $2 WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, pollID, expires); err != nil {
		return fmt.Errorf("failed to mark poll closed: %w", err)
	}
	return nil
}
