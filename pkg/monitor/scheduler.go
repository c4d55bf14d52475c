package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"pricewatch-go/pkg/logger"
)

const (
	// firstSweepDelay keeps startup cheap: the first full pass runs
	// shortly after boot, not immediately.
	firstSweepDelay      = 60 * time.Second
	defaultRetryInterval = 10 * time.Minute
)

// Scheduler drives the engine's periodic sweeps and retry passes. It
// owns two independent timers and can be rescheduled at runtime when
// settings change.
type Scheduler struct {
	engine *Engine

	mu            sync.Mutex
	base          context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	firstDelay    time.Duration
	retryInterval time.Duration

	log *logger.Logger
}

func NewScheduler(engine *Engine) *Scheduler {
	return &Scheduler{
		engine:        engine,
		firstDelay:    firstSweepDelay,
		retryInterval: defaultRetryInterval,
		log:           logger.GetLogger().WithComponent("scheduler"),
	}
}

// Start launches the sweep and retry loops. ctx is the scheduler's
// lifetime and is retained across reschedules, so it must be a
// process-scoped context, never a request one. Starting twice restarts
// the timers. When auto-check is off only the retry loop runs.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.base = ctx
	s.startLocked()
}

// Reschedule restarts the timers with the engine's current settings,
// used after ApplySettings changed the interval or auto-check flag.
// The loops keep the base context from Start.
func (s *Scheduler) Reschedule() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.base == nil {
		s.base = context.Background()
	}
	s.startLocked()
}

func (s *Scheduler) startLocked() {
	s.stopLocked()

	runCtx, cancel := context.WithCancel(s.base)
	s.cancel = cancel

	settings := s.engine.Settings()

	if settings.AutoCheck {
		s.wg.Add(1)
		go s.sweepLoop(runCtx, settings.CheckInterval)
	}

	s.wg.Add(1)
	go s.retryLoop(runCtx)

	s.log.WithFields(map[string]interface{}{
		"interval":   settings.CheckInterval.String(),
		"auto_check": settings.AutoCheck,
	}).Info("scheduler started")
}

// Stop halts both loops and waits for them to drain.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopLocked()
	s.mu.Unlock()
}

func (s *Scheduler) stopLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.cancel = nil
	s.wg.Wait()
}

func (s *Scheduler) sweepLoop(ctx context.Context, interval time.Duration) {
	defer s.wg.Done()

	first := time.NewTimer(s.firstDelay)
	defer first.Stop()

	select {
	case <-first.C:
		s.runSweep(ctx)
	case <-ctx.Done():
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runSweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) retryLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.retryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			result := s.engine.RunRetryPass(ctx)
			if result.Retried > 0 || result.Dropped > 0 {
				s.log.WithFields(map[string]interface{}{
					"retried":   result.Retried,
					"recovered": result.Recovered,
					"dropped":   result.Dropped,
				}).Info("retry pass finished")
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) runSweep(ctx context.Context) {
	if _, err := s.engine.RunSweep(ctx); err != nil {
		if errors.Is(err, ErrSweepInFlight) || errors.Is(err, context.Canceled) {
			return
		}
		s.log.WithError(err).Warn("scheduled sweep failed")
	}
}
