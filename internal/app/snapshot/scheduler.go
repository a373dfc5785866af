package snapshot

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"relaychat/internal/pkg/logx"
)

const (
	// DefaultInterval is the time between snapshot ticks.
	DefaultInterval = 5 * time.Second

	saveTimeout = 30 * time.Second
)

// Source produces consistent copies of the live state.
type Source interface {
	// Snapshot copies the state and returns it with the revision it reflects.
	Snapshot() (*State, uint64)

	// Revision returns a counter bumped on every mutation.
	Revision() uint64
}

// Scheduler saves the Source to a Backend on a fixed interval. A tick with no
// mutation since the last successful save writes nothing. Failures are logged
// and retried by the next tick.
type Scheduler struct {
	backend  Backend
	source   Source
	interval time.Duration
	logger   zerolog.Logger

	mu        sync.Mutex
	lastSaved uint64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler returns a stopped scheduler. A non-positive interval means DefaultInterval.
func NewScheduler(backend Backend, source Source, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		backend:  backend,
		source:   source,
		interval: interval,
		logger:   logx.Component("snapshot").With().Str("backend", backend.Name()).Logger(),
	}
}

// Start launches the ticker goroutine. Whatever the source holds right now is
// treated as already saved.
func (s *Scheduler) Start() {
	s.mu.Lock()
	s.lastSaved = s.source.Revision()
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go s.run(ctx)

	s.logger.Info().Dur("interval", s.interval).Msg("snapshot scheduler started")
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			saveCtx, cancel := context.WithTimeout(ctx, saveTimeout)
			_ = s.Flush(saveCtx)
			cancel()
		}
	}
}

// Flush saves the current state if it changed since the last successful save.
func (s *Scheduler) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.source.Revision() == s.lastSaved {
		return nil
	}

	state, revision := s.source.Snapshot()
	started := time.Now()

	if err := s.backend.Save(ctx, state); err != nil {
		s.logger.Error().Err(err).Uint64("revision", revision).Msg("snapshot save failed")
		return err
	}

	s.lastSaved = revision
	s.logger.Debug().
		Uint64("revision", revision).
		Int("users", len(state.Users)).
		Int("chats", len(state.Chats)).
		Dur("took", time.Since(started)).
		Msg("snapshot saved")
	return nil
}

// Stop ends the ticker and performs a final flush bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
		s.wg.Wait()
	}

	err := s.Flush(ctx)
	s.logger.Info().Msg("snapshot scheduler stopped")
	return err
}
