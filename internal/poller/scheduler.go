package poller

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TriggerFunc is called on every tick of a [Scheduler].
//
// The context is cancelled when the scheduler stops. Triggers should return
// quickly; a slow trigger delays the next tick.
type TriggerFunc func(ctx context.Context)

// Scheduler fires a trigger on a fixed period.
//
// The scheduler does not fire on start; the first trigger happens one
// interval after [Scheduler.Start]. Callers that need an immediate refresh
// perform it themselves before starting the scheduler.
//
// All lifecycle methods (Start, Stop) are safe for concurrent use.
type Scheduler struct {
	interval time.Duration
	trigger  TriggerFunc
	logger   *slog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool
	ticks   int
}

// NewScheduler creates a new [Scheduler].
//
// Parameters:
//   - interval: Time between triggers
//   - trigger: Function called on each tick
//   - logger: Logger for scheduler events (panic recovery, etc.)
//
// The scheduler must be started with [Scheduler.Start] and stopped with
// [Scheduler.Stop].
func NewScheduler(interval time.Duration, trigger TriggerFunc, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		interval: interval,
		trigger:  trigger,
		logger:   logger,
	}
}

// Start begins the tick loop in a background goroutine.
//
// Start is non-blocking and returns immediately. The loop runs until
// [Scheduler.Stop] is called or the context is cancelled.
//
// If ctx is nil, context.Background() is used as the parent context.
// Start is idempotent; subsequent calls after the first are no-ops.
// If Stop was called before Start, Start is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true

	if ctx == nil {
		ctx = context.Background()
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	tickCtx := s.ctx // capture under lock to avoid race
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-tickCtx.Done():
				return
			case <-ticker.C:
				// a stop racing with the tick wins
				if tickCtx.Err() != nil {
					return
				}
				s.mu.Lock()
				s.ticks++
				s.mu.Unlock()
				s.safeTrigger(tickCtx)
			}
		}
	}()
}

// Stop halts the scheduler and waits for the tick loop to exit, including
// a trigger that is currently running.
//
// Stop is idempotent and safe to call multiple times. Calling Stop before
// Start is a safe no-op. Stop must not be called from inside the trigger.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		if s.cancel != nil {
			s.cancel()
		}
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// Ticks returns how many times the trigger has fired.
func (s *Scheduler) Ticks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticks
}

// safeTrigger calls the trigger with panic recovery.
// A panic is logged with its stack trace and a correlation ID; the loop
// keeps running.
func (s *Scheduler) safeTrigger(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("poll trigger panic",
				"correlation_id", uuid.NewString(),
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	s.trigger(ctx)
}
