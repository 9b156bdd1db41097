package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"blockeditor/internal/domain"
	"blockeditor/internal/editor"
)

// ─────────────────────────────────────────────────────────────
// Autosave Service: snapshot persistence and pruning
// ─────────────────────────────────────────────────────────────

// AutosaveService stores autosave snapshots and keeps their number bounded.
// It implements editor.AutosaveWriter.
type AutosaveService struct {
	store   domain.AutosaveStore
	keep    int
	maxAge  time.Duration
	clock   clockwork.Clock
	emitter EventEmitter
	log     *zap.Logger

	// Post IDs with a write in flight, across every session of the process.
	inFlightMu sync.Mutex
	inFlight   map[string]struct{}
	writes     sync.WaitGroup

	cronMu    sync.Mutex
	cronSched *cron.Cron
}

// AutosaveOptions configures retention.
type AutosaveOptions struct {
	Keep   int           // snapshots kept per post after each write
	MaxAge time.Duration // age past which scheduled pruning deletes snapshots
}

// NewAutosaveService creates an AutosaveService.
func NewAutosaveService(store domain.AutosaveStore, opts AutosaveOptions, clk clockwork.Clock, emitter EventEmitter, log *zap.Logger) *AutosaveService {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AutosaveService{
		store:    store,
		keep:     opts.Keep,
		maxAge:   opts.MaxAge,
		clock:    clk,
		emitter:  emitter,
		log:      log.Named("autosave"),
		inFlight: make(map[string]struct{}),
	}
}

// WriteAutosave stores a snapshot and prunes the post's history down to the
// configured count. Only one write per post runs at a time, even when two
// sessions edit the same post; a concurrent write fails with
// editor.ErrAutosaveInFlight.
func (s *AutosaveService) WriteAutosave(ctx context.Context, a *domain.Autosave) error {
	if !s.beginWrite(a.PostID) {
		return fmt.Errorf("autosave %s: %w", a.PostID, editor.ErrAutosaveInFlight)
	}
	defer s.endWrite(a.PostID)

	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.clock.Now()
	}
	if err := s.store.CreateAutosave(a); err != nil {
		return fmt.Errorf("write autosave: %w", err)
	}
	if s.keep > 0 {
		n, err := s.store.PruneAutosaves(a.PostID, s.keep)
		if err != nil {
			s.log.Warn("prune after autosave failed", zap.String("post", a.PostID), zap.Error(err))
		} else if n > 0 {
			s.log.Debug("pruned autosaves", zap.String("post", a.PostID), zap.Int("deleted", n))
		}
	}
	s.emitter.Emit(ctx, EventPostAutosaved, a.PostID)
	return nil
}

func (s *AutosaveService) beginWrite(postID string) bool {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()
	if _, ok := s.inFlight[postID]; ok {
		return false
	}
	s.inFlight[postID] = struct{}{}
	s.writes.Add(1)
	return true
}

func (s *AutosaveService) endWrite(postID string) {
	s.inFlightMu.Lock()
	delete(s.inFlight, postID)
	s.inFlightMu.Unlock()
	s.writes.Done()
}

// Latest returns the newest snapshot of a post, or domain.ErrNotFound.
func (s *AutosaveService) Latest(postID string) (*domain.Autosave, error) {
	return s.store.LatestAutosave(postID)
}

// List returns a post's snapshots, newest first.
func (s *AutosaveService) List(postID string) ([]domain.Autosave, error) {
	return s.store.ListAutosaves(postID)
}

// PruneExpired deletes snapshots older than the configured max age. The
// newest snapshot of every post survives.
func (s *AutosaveService) PruneExpired() (int, error) {
	if s.maxAge <= 0 {
		return 0, nil
	}
	cutoff := s.clock.Now().Add(-s.maxAge)
	n, err := s.store.PruneAutosavesOlderThan(cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune expired autosaves: %w", err)
	}
	return n, nil
}

// ── Schedule ───────────────────────────────────────────────

// StartSchedule runs PruneExpired on the cron expression spec. A previous
// schedule is replaced.
func (s *AutosaveService) StartSchedule(spec string) error {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		n, err := s.PruneExpired()
		if err != nil {
			s.log.Warn("scheduled prune failed", zap.Error(err))
			return
		}
		s.log.Info("scheduled prune", zap.Int("deleted", n))
	})
	if err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", spec, err)
	}

	s.stopSchedule()
	s.cronMu.Lock()
	s.cronSched = c
	s.cronMu.Unlock()
	c.Start()
	s.log.Info("prune scheduled", zap.String("schedule", spec))
	return nil
}

func (s *AutosaveService) stopSchedule() {
	s.cronMu.Lock()
	c := s.cronSched
	s.cronSched = nil
	s.cronMu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

// WaitRunning blocks until all in-flight writes finish or ctx is cancelled.
// Used for graceful shutdown.
func (s *AutosaveService) WaitRunning(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.writes.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// Stop tears down the prune schedule, waiting for a running prune.
func (s *AutosaveService) Stop() {
	s.stopSchedule()
}
