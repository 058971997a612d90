// Package memory provides an in-process implementation of the poll store,
// used by unit tests and local development.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ballotd/ballotd/internal/core/domain"
)

// Store keeps poll, option and vote rows in process memory. It assigns ids
// the way the relational store does and honors the idempotent vote insert
// contract.
type Store struct {
	mu         sync.Mutex
	nextPollID int64
	nextOptID  int64
	polls      map[int64]domain.PollRow
	pollOrder  []int64
	options    map[int64][]domain.OptionRow
	votes      map[int64]map[int64]struct{}

	// FailNext makes the next store call return the given error, for
	// exercising persistence failure paths.
	FailNext error
}

func NewStore() *Store {
	return &Store{
		polls:   make(map[int64]domain.PollRow),
		options: make(map[int64][]domain.OptionRow),
		votes:   make(map[int64]map[int64]struct{}),
	}
}

func (s *Store) failure() error {
	err := s.FailNext
	s.FailNext = nil
	return err
}

func (s *Store) InsertPoll(_ context.Context, row domain.PollRow) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(); err != nil {
		return 0, err
	}
	s.nextPollID++
	row.ID = s.nextPollID
	s.polls[row.ID] = row
	s.pollOrder = append(s.pollOrder, row.ID)
	return row.ID, nil
}

func (s *Store) InsertOptions(_ context.Context, pollID int64, labels []string, authorID *int64) ([]domain.OptionRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(); err != nil {
		return nil, err
	}
	rows := make([]domain.OptionRow, 0, len(labels))
	for _, label := range labels {
		s.nextOptID++
		row := domain.OptionRow{ID: s.nextOptID, Label: label, AuthorID: authorID}
		s.options[pollID] = append(s.options[pollID], row)
		s.votes[row.ID] = make(map[int64]struct{})
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *Store) SelectOptions(_ context.Context, pollID int64) ([]domain.OptionRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(); err != nil {
		return nil, err
	}
	rows := make([]domain.OptionRow, len(s.options[pollID]))
	copy(rows, s.options[pollID])
	return rows, nil
}

func (s *Store) SelectVoters(_ context.Context, optionID int64) (map[int64]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(); err != nil {
		return nil, err
	}
	voters := make(map[int64]struct{}, len(s.votes[optionID]))
	for id := range s.votes[optionID] {
		voters[id] = struct{}{}
	}
	return voters, nil
}

func (s *Store) InsertVote(_ context.Context, optionID, voterID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(); err != nil {
		return err
	}
	if s.votes[optionID] == nil {
		s.votes[optionID] = make(map[int64]struct{})
	}
	s.votes[optionID][voterID] = struct{}{}
	return nil
}

func (s *Store) DeleteVote(_ context.Context, optionID, voterID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(); err != nil {
		return err
	}
	delete(s.votes[optionID], voterID)
	return nil
}

func (s *Store) SelectAllPolls(_ context.Context) ([]domain.PollRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(); err != nil {
		return nil, err
	}
	rows := make([]domain.PollRow, 0, len(s.pollOrder))
	for _, id := range s.pollOrder {
		rows = append(rows, s.polls[id])
	}
	return rows, nil
}

func (s *Store) UpdatePollClosed(_ context.Context, pollID int64, expires time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(); err != nil {
		return err
	}
	row, ok := s.polls[pollID]
	if !ok {
		return domain.ErrPollNotFound
	}
	row.Closed = true
	row.Expires = &expires
	s.polls[pollID] = row
	return nil
}

// PollCount reports how many poll rows are persisted; tests use it to assert
// that failed creations persist nothing addressable.
func (s *Store) PollCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.polls)
}

// HasVote reports whether a vote row exists for the given option and voter.
func (s *Store) HasVote(optionID, voterID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.votes[optionID][voterID]
	return ok
}
