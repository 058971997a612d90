package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ballotd/ballotd/internal/core/domain"
	"github.com/ballotd/ballotd/internal/core/ports"
)

// Scheduler drives each open poll from OPEN to CLOSED at its expiry and runs
// repeat loops that spawn successor polls. Every task carries a cancel handle
// tied to process shutdown and to early manual closure, so no stale timer
// outlives its poll.
type Scheduler struct {
	registry *Registry
	logger   *slog.Logger

	// OnClosed runs after a close task has transitioned a poll; the service
	// uses it to notify the presentation adapter and fan out events.
	OnClosed func(ctx context.Context, poll *domain.Poll)

	mu      sync.Mutex
	baseCtx context.Context
	wg      sync.WaitGroup
}

func NewScheduler(registry *Registry, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{registry: registry, logger: logger}
}

// Start binds the scheduler's background tasks to the given context. Tasks
// spawned before Start use context.Background.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseCtx = ctx
}

func (s *Scheduler) base() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.baseCtx != nil {
		return s.baseCtx
	}
	return context.Background()
}

// Wait blocks until every scheduled task has drained, for graceful shutdown.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// WatchClose spawns the close task for a poll with an expiry. Polls without
// one never close on their own and get no task.
func (s *Scheduler) WatchClose(poll *domain.Poll) {
	if poll.Expires() == nil || !poll.IsOpen() {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.closeTask(s.base(), poll)
	}()
}

// closeTask sleeps until the poll's expiry, then closes it. The sleep is
// recomputed from the wall clock at task start, so tasks restored after a
// restart fire at the persisted expiry. Blocks until the poll is closed or
// the context is cancelled.
func (s *Scheduler) closeTask(ctx context.Context, poll *domain.Poll) {
	expires := poll.Expires()
	if expires == nil {
		return
	}

	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.registry.SetCloseCancel(poll.ID(), cancel)
	defer s.registry.TakeCloseCancel(poll.ID())

	timer := time.NewTimer(time.Until(*expires))
	defer timer.Stop()

	select {
	case <-taskCtx.Done():
		return
	case <-timer.C:
	}

	if poll.WasClosed() {
		// Closed by another path while we slept; nothing to announce.
		s.logger.Debug("stale close timer fired", "poll_id", poll.ID())
		return
	}
	if err := poll.Close(ctx); err != nil {
		s.logger.Error("failed to close expired poll", "poll_id", poll.ID(), "error", err)
		return
	}
	s.logger.Info("poll closed on expiry", "poll_id", poll.ID(), "question", poll.Question())
	if s.OnClosed != nil {
		s.OnClosed(ctx, poll)
	}
}

// createFunc creates and registers one poll of a repeat sequence.
type createFunc func(ctx context.Context, expires *time.Time) (*domain.Poll, error)

// RunRepeat continues a repeat sequence after its first poll. It awaits each
// poll's natural closure, then creates the successor with the expiry advanced
// by one interval from the previous poll's expiry, until the count is
// exhausted or the context ends.
func (s *Scheduler) RunRepeat(first *domain.Poll, input ports.CreatePollInput, create createFunc) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx := s.base()
		current := first
		expires := current.Expires()
		for created := 1; ; created++ {
			s.closeTask(ctx, current)
			if ctx.Err() != nil {
				return
			}
			if input.RepeatCount > 0 && created >= input.RepeatCount {
				s.logger.Info("repeat sequence finished", "poll_id", current.ID(), "count", created)
				return
			}

			next := expires.Add(input.RepeatEvery)
			expires = &next
			poll, err := create(ctx, expires)
			if err != nil {
				s.logger.Error("failed to create repeat poll", "question", input.Question, "error", err)
				return
			}
			current = poll
		}
	}()
}
