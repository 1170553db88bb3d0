package approval

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/almatymeetups/join_request_bot/internal/db"
	"github.com/almatymeetups/join_request_bot/internal/logging"
)

// Sweeper errors.
var (
	ErrSweeperAlreadyRunning = errors.New("sweeper already running")
	ErrSweeperNotRunning     = errors.New("sweeper not running")
)

// SweeperConfig contains configuration for the timeout sweeper.
type SweeperConfig struct {
	// Timeout is how long a request may stay pending.
	// Default: 24h
	Timeout time.Duration

	// Interval is how often to scan for timed-out requests.
	// Default: Timeout / 96, clamped to [1m, 15m]
	Interval time.Duration
}

// DefaultSweeperConfig returns sensible defaults.
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Timeout:  24 * time.Hour,
		Interval: 15 * time.Minute,
	}
}

// Sweeper periodically expires pending requests that outlived the timeout.
// Expiry goes through the same guarded transition as admin actions, so a
// race with an admin click resolves to exactly one winner.
type Sweeper struct {
	cfg      SweeperConfig
	machine  *Machine
	requests *db.RequestRepository
	logger   zerolog.Logger

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewSweeper(cfg SweeperConfig, machine *Machine, requests *db.RequestRepository) *Sweeper {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSweeperConfig().Timeout
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSweeperConfig().Interval
	}

	return &Sweeper{
		cfg:      cfg,
		machine:  machine,
		requests: requests,
		logger:   logging.Component("sweeper"),
	}
}

// Start begins the sweep loop.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrSweeperAlreadyRunning
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	s.logger.Info().
		Dur("timeout", s.cfg.Timeout).
		Dur("interval", s.cfg.Interval).
		Msg("timeout sweeper starting")

	s.wg.Add(1)
	go s.runLoop()

	return nil
}

// Stop halts the sweep loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSweeperNotRunning
	}

	s.cancel()
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info().Msg("timeout sweeper stopped")
	return nil
}

// IsRunning returns true if the sweeper is running.
func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Sweeper) runLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := s.RunOnce(s.ctx); err != nil {
				s.logger.Error().Err(err).Msg("sweep failed")
			}
		}
	}
}

// RunOnce performs a single scan-and-expire pass.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	cutoff := time.Now().Add(-s.cfg.Timeout)

	reqs, err := s.requests.ListPendingOlderThan(cutoff)
	if err != nil {
		return fmt.Errorf("Sweeper.RunOnce: %w", err)
	}

	for _, req := range reqs {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := s.machine.Expire(ctx, req.ID)
		switch {
		case err == nil:
			s.logger.Info().Int64("request_id", req.ID).Time("created_at", req.CreatedAt).Msg("expired stale request")
		case IsAlreadyResolved(err):
			// Lost the race to an admin click between the scan and the
			// transition. Nothing to do.
			s.logger.Debug().Int64("request_id", req.ID).Msg("request resolved before expiry")
		default:
			var extErr *ExternalActionError
			if errors.As(err, &extErr) {
				// Transition committed, only a notification failed.
				s.logger.Warn().Err(err).Int64("request_id", req.ID).Msg("expiry side effect failed")
				continue
			}

			s.logger.Error().Err(err).Int64("request_id", req.ID).Msg("failed to expire request")
		}
	}

	return nil
}
