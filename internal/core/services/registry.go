package services

import (
	"context"
	"sync"

	"github.com/ballotd/ballotd/internal/core/domain"
)

// Registry holds the one canonical in-memory Poll per id for the lifetime of
// the process. The scheduler and the presentation adapter always operate on
// the instance registered here, so two Poll objects for the same id can never
// diverge. It also tracks the cancel handle of each poll's close task.
type Registry struct {
	mu       sync.RWMutex
	polls    map[int64]*domain.Poll
	byOption map[int64]*domain.Option
	cancels  map[int64]context.CancelFunc
}

func NewRegistry() *Registry {
	return &Registry{
		polls:    make(map[int64]*domain.Poll),
		byOption: make(map[int64]*domain.Option),
		cancels:  make(map[int64]context.CancelFunc),
	}
}

// Register adds a poll and indexes its options. If a poll with the same id is
// already registered, the existing instance wins and is returned.
func (r *Registry) Register(poll *domain.Poll) *domain.Poll {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.polls[poll.ID()]; ok {
		return existing
	}
	r.polls[poll.ID()] = poll
	for _, opt := range poll.Options() {
		r.byOption[opt.ID()] = opt
	}
	return poll
}

// Reindex picks up options added to a registered poll after registration.
func (r *Registry) Reindex(poll *domain.Poll) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, opt := range poll.Options() {
		r.byOption[opt.ID()] = opt
	}
}

func (r *Registry) Poll(id int64) (*domain.Poll, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	poll, ok := r.polls[id]
	return poll, ok
}

func (r *Registry) Option(id int64) (*domain.Option, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	opt, ok := r.byOption[id]
	return opt, ok
}

// All returns every registered poll; order is unspecified.
func (r *Registry) All() []*domain.Poll {
	r.mu.RLock()
	defer r.mu.RUnlock()
	polls := make([]*domain.Poll, 0, len(r.polls))
	for _, p := range r.polls {
		polls = append(polls, p)
	}
	return polls
}

// SetCloseCancel records the cancel handle of a poll's running close task,
// replacing (and releasing) any previous one.
func (r *Registry) SetCloseCancel(pollID int64, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.cancels[pollID]; ok {
		prev()
	}
	r.cancels[pollID] = cancel
}

// TakeCloseCancel removes and returns the close task cancel handle for a
// poll, if one is running.
func (r *Registry) TakeCloseCancel(pollID int64) (context.CancelFunc, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cancel, ok := r.cancels[pollID]
	if ok {
		delete(r.cancels, pollID)
	}
	return cancel, ok
}

// Stats are recomputed from the registered collection on every call, rather
// than kept as ad hoc counters that could drift.
type Stats struct {
	Total  int
	Active int
	Closed int
}

func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stats := Stats{Total: len(r.polls)}
	for _, p := range r.polls {
		if p.IsOpen() {
			stats.Active++
		} else {
			stats.Closed++
		}
	}
	return stats
}
