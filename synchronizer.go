package creditpulse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/creditpulse/internal/cache"
	"github.com/jpalmerr/creditpulse/internal/poller"
	"github.com/jpalmerr/creditpulse/internal/retry"
)

// Fetcher retrieves the raw, untyped payload of the synchronized resource.
//
// Fetch must honor ctx cancellation where it can. A Fetcher that ignores ctx
// is still bounded: the synchronizer stops waiting at the fetch timeout and
// ignores whatever the call returns later.
type Fetcher interface {
	Fetch(ctx context.Context) (any, error)
}

// FetchFunc adapts a function to the [Fetcher] interface.
type FetchFunc func(ctx context.Context) (any, error)

// Fetch implements [Fetcher].
func (f FetchFunc) Fetch(ctx context.Context) (any, error) {
	return f(ctx)
}

// Validator converts a raw payload into a typed value, or rejects it.
// A rejected payload never reaches the cache.
type Validator[T any] func(raw any) (T, error)

// Synchronizer keeps one remote resource available to consumers with
// bounded staleness.
//
// A Synchronizer owns the cached value, the current request, the retry
// state of the current fetch cycle, and the staleness and polling timers.
// Polling runs while at least one consumer holds a [Handle] from
// [Synchronizer.Subscribe]. The cached value survives unsubscription, so a
// later subscriber is served from cache while a refresh runs.
//
// Only the most recently issued request can change the cache or the error
// state; results of superseded requests are dropped when they arrive.
//
// All methods are safe for concurrent use.
type Synchronizer[T any] struct {
	fetcher  Fetcher
	validate Validator[T]
	policy   RetryPolicy
	cfg      syncConfig
	logger   *slog.Logger
	cache    *cache.Store[T]

	mu            sync.Mutex
	subs          int
	active        bool
	closed        bool
	epoch         uint64
	ctx           context.Context
	cancel        context.CancelFunc
	poll          *poller.Scheduler
	generation    uint64
	current       *cycle
	cancelAttempt context.CancelFunc
	retryTimer    *time.Timer
	staleTimer    *time.Timer
	staleToken    uint64
	loading       bool
	err           error
	stale         bool

	// attempts tracks running attempt goroutines so Close can wait for them.
	attempts sync.WaitGroup
}

// cycle is one logical fetch: the first attempt plus its retries.
type cycle struct {
	id       string
	blocking bool
	failures int
	done     chan struct{}
	err      error
}

// NewSynchronizer creates a [Synchronizer] for the resource produced by
// fetcher and checked by validate.
//
// Defaults:
//   - Cache TTL: 30 seconds
//   - Poll interval: 60 seconds
//   - Fetch timeout: 10 seconds
//   - Max retries: 3, with a linear 2s, 4s, 6s ramp
//
// Returns an error if fetcher or validate is nil or if any option is invalid.
func NewSynchronizer[T any](fetcher Fetcher, validate Validator[T], opts ...Option) (*Synchronizer[T], error) {
	if fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if validate == nil {
		return nil, errors.New("validator is required")
	}

	cfg := defaultSyncConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	policy := cfg.retryPolicy
	if policy == nil {
		policy = retry.NewLinear(cfg.retryBaseDelay, cfg.maxRetries)
	}

	return &Synchronizer[T]{
		fetcher:  fetcher,
		validate: validate,
		policy:   policy,
		cfg:      *cfg,
		logger:   logger,
		cache:    cache.New[T](),
	}, nil
}

// Handle is a consumer's subscription to a [Synchronizer].
type Handle struct {
	once    sync.Once
	release func()
}

// Unsubscribe ends the subscription. When the last subscription ends, the
// poll timer, staleness timer, pending retry and in-flight request are all
// cancelled. Unsubscribe is idempotent.
func (h *Handle) Unsubscribe() {
	if h == nil {
		return
	}
	h.once.Do(h.release)
}

// Subscribe registers a consumer and returns its [Handle].
//
// The first subscription starts synchronization: a cached value that is
// still fresh is served immediately, and a fetch starts right away either
// way (in the background when a value is cached). After that a background
// refresh runs every poll interval. Further subscriptions share the running
// synchronization.
//
// Returns [ErrClosed] after [Synchronizer.Close].
func (s *Synchronizer[T]) Subscribe() (*Handle, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.subs++
	first := s.subs == 1
	if first {
		s.startLocked()
	}
	s.mu.Unlock()

	if first {
		s.notify()
	}
	return &Handle{release: s.release}, nil
}

// GetState returns a snapshot of the consumer-visible state. It never blocks
// on network activity.
func (s *Synchronizer[T]) GetState() State[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State[T]{
		Loading: s.loading,
		Err:     s.err,
	}
	if entry, ok := s.cache.Read(); ok {
		value := entry.Value
		if c, ok := any(value).(cloner[T]); ok {
			value = c.Clone()
		}
		st.Data = &value
		st.FetchedAt = entry.FetchedAt
		st.IsStale = s.stale
		if !s.active {
			// no staleness timer runs without subscribers
			st.IsStale = !s.cache.IsFresh(s.cfg.now(), s.cfg.cacheTTL)
		}
	}
	return st
}

// Refetch starts a new fetch cycle, bypassing the freshness check, and waits
// for it to settle. The cycle has its own retry budget. When a value is
// cached the refresh runs in the background and Loading is not raised.
//
// Refetch returns nil when the cycle succeeds or is superseded by a newer
// one, the terminal error when it fails, or ctx.Err() if ctx ends first (the
// cycle keeps running). Returns [ErrNotSubscribed] if nobody is subscribed.
func (s *Synchronizer[T]) Refetch(ctx context.Context) error {
	return s.refetch(ctx, false)
}

// RefetchBlocking is like [Synchronizer.Refetch] but raises Loading for the
// whole cycle, even when a value is cached.
func (s *Synchronizer[T]) RefetchBlocking(ctx context.Context) error {
	return s.refetch(ctx, true)
}

// Close tears down synchronization regardless of outstanding handles and
// waits for running fetch attempts to return. Subscribe fails afterwards.
// Close is idempotent.
func (s *Synchronizer[T]) Close() {
	s.mu.Lock()
	s.closed = true
	var poll *poller.Scheduler
	wasActive := s.active
	if s.active {
		s.subs = 0
		poll = s.stopLocked()
	}
	s.mu.Unlock()

	if poll != nil {
		poll.Stop()
	}
	s.attempts.Wait()
	if wasActive {
		s.notify()
	}
}

// CacheTTL returns the configured cache TTL.
func (s *Synchronizer[T]) CacheTTL() time.Duration {
	return s.cfg.cacheTTL
}

// PollInterval returns the configured interval between background refreshes.
func (s *Synchronizer[T]) PollInterval() time.Duration {
	return s.cfg.pollInterval
}

func (s *Synchronizer[T]) refetch(ctx context.Context, blocking bool) error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return ErrNotSubscribed
	}
	c := s.startCycleLocked(blocking)
	s.mu.Unlock()
	s.notify()

	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Synchronizer[T]) release() {
	s.mu.Lock()
	if s.subs == 0 {
		s.mu.Unlock()
		return
	}
	s.subs--
	if s.subs > 0 || !s.active {
		s.mu.Unlock()
		return
	}
	poll := s.stopLocked()
	s.mu.Unlock()

	poll.Stop()
	s.notify()
}

// startLocked begins synchronization for the first subscriber.
func (s *Synchronizer[T]) startLocked() {
	s.active = true
	s.epoch++
	s.ctx, s.cancel = context.WithCancel(context.Background())

	now := s.cfg.now()
	if entry, ok := s.cache.Read(); ok {
		if s.cache.IsFresh(now, s.cfg.cacheTTL) {
			age := entry.Age(now)
			s.stale = false
			s.armStaleLocked(s.cfg.cacheTTL - age)
			s.logger.Debug("serving fresh cached value", "age", age.String())
		} else {
			s.stale = true
		}
	}

	s.startCycleLocked(false)

	epoch := s.epoch
	s.poll = poller.NewScheduler(s.cfg.pollInterval, func(context.Context) {
		s.tick(epoch)
	}, s.logger)
	s.poll.Start(s.ctx)
}

// stopLocked tears down timers and in-flight work and returns the poll
// scheduler, which the caller must stop after releasing the lock.
func (s *Synchronizer[T]) stopLocked() *poller.Scheduler {
	s.active = false
	s.supersedeLocked()
	s.generation++ // drop any result still on its way
	if s.staleTimer != nil {
		s.staleTimer.Stop()
		s.staleTimer = nil
	}
	s.staleToken++
	s.loading = false
	s.cancel()

	poll := s.poll
	s.poll = nil
	return poll
}

func (s *Synchronizer[T]) tick(epoch uint64) {
	s.mu.Lock()
	if !s.active || s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	s.startCycleLocked(false)
	s.mu.Unlock()
	s.notify()
}

// startCycleLocked supersedes the current cycle, if any, and issues the
// first attempt of a new one.
func (s *Synchronizer[T]) startCycleLocked(blocking bool) *cycle {
	s.supersedeLocked()

	c := &cycle{
		id:       uuid.NewString(),
		blocking: blocking,
		done:     make(chan struct{}),
	}
	s.current = c
	s.issueLocked(c)
	return c
}

// supersedeLocked abandons the current cycle: its in-flight request is
// cancelled, its pending retry is stopped, and its waiters are released
// without an error.
func (s *Synchronizer[T]) supersedeLocked() {
	if s.cancelAttempt != nil {
		s.cancelAttempt()
		s.cancelAttempt = nil
	}
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
	if s.current != nil {
		s.logger.Debug("fetch cycle superseded", "cycle_id", s.current.id)
		s.finishLocked(s.current, nil)
	}
}

func (s *Synchronizer[T]) finishLocked(c *cycle, err error) {
	c.err = err
	close(c.done)
	if s.current == c {
		s.current = nil
	}
}

// issueLocked starts one attempt of cycle c under a new generation.
func (s *Synchronizer[T]) issueLocked(c *cycle) {
	s.generation++
	gen := s.generation

	_, hasData := s.cache.Read()
	s.loading = c.blocking || !hasData

	ctx, cancel := context.WithCancel(s.ctx)
	s.cancelAttempt = cancel

	s.attempts.Add(1)
	go s.runAttempt(ctx, gen, c)
}

func (s *Synchronizer[T]) runAttempt(ctx context.Context, gen uint64, c *cycle) {
	defer s.attempts.Done()

	start := time.Now()
	raw, err := s.fetchWithTimeout(ctx)

	var value T
	if err == nil {
		value, err = s.safeValidate(raw)
	} else {
		err = classify(err)
	}

	s.settle(gen, c, value, err, time.Since(start))
}

type fetchResult struct {
	raw any
	err error
}

// fetchWithTimeout races the fetcher against the fetch timeout. Whichever
// settles first wins; the loser is ignored.
func (s *Synchronizer[T]) fetchWithTimeout(ctx context.Context) (any, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.fetchTimeout)
	defer cancel()

	results := make(chan fetchResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				correlationID := uuid.NewString()
				s.logger.Error("fetcher panic",
					"correlation_id", correlationID,
					"panic", fmt.Sprintf("%v", r),
					"stack", string(debug.Stack()),
				)
				results <- fetchResult{err: fmt.Errorf("fetcher panic (correlation_id: %s)", correlationID)}
			}
		}()
		raw, err := s.fetcher.Fetch(fetchCtx)
		results <- fetchResult{raw: raw, err: err}
	}()

	select {
	case r := <-results:
		if r.err != nil && ctx.Err() == nil && errors.Is(fetchCtx.Err(), context.DeadlineExceeded) {
			return nil, &TimeoutError{After: s.cfg.fetchTimeout}
		}
		return r.raw, r.err
	case <-fetchCtx.Done():
		if ctx.Err() != nil {
			return nil, ErrCancelled
		}
		return nil, &TimeoutError{After: s.cfg.fetchTimeout}
	}
}

// safeValidate runs the validator with panic recovery. A panicking
// validator rejects the payload.
func (s *Synchronizer[T]) safeValidate(raw any) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			s.logger.Error("validator panic",
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			var zero T
			value = zero
			err = &ValidationError{Err: fmt.Errorf("validator panic (correlation_id: %s)", correlationID)}
		}
	}()

	value, err = s.validate(raw)
	if err != nil {
		var zero T
		return zero, &ValidationError{Err: err}
	}
	return value, nil
}

// settle applies the outcome of one attempt, unless a newer request has
// been issued since.
func (s *Synchronizer[T]) settle(gen uint64, c *cycle, value T, err error, latency time.Duration) {
	s.mu.Lock()
	if !s.active || gen != s.generation {
		s.mu.Unlock()
		s.logger.Debug("discarding superseded result", "cycle_id", c.id)
		return
	}
	if s.cancelAttempt != nil {
		s.cancelAttempt()
		s.cancelAttempt = nil
	}

	if err == nil {
		s.acceptLocked(c, value)
		s.mu.Unlock()
		s.logger.Debug("fetch succeeded", "cycle_id", c.id, "latency_ms", latency.Milliseconds())
		s.notify()
		return
	}

	c.failures++
	if delay, ok := s.policy.NextDelay(c.failures); ok {
		s.logger.Warn("fetch attempt failed, retrying",
			"cycle_id", c.id,
			"attempt", c.failures,
			"delay", delay.String(),
			"kind", ErrorKind(err),
			"error", err.Error(),
		)
		s.retryTimer = time.AfterFunc(delay, func() { s.retry(c) })
		s.mu.Unlock()
		return
	}

	s.loading = false
	_, hasData := s.cache.Read()
	if hasData {
		s.logger.Warn("fetch cycle failed, keeping cached value",
			"cycle_id", c.id,
			"attempts", c.failures,
			"kind", ErrorKind(err),
			"error", err.Error(),
		)
	} else {
		s.err = err
		s.logger.Error("fetch cycle failed",
			"cycle_id", c.id,
			"attempts", c.failures,
			"kind", ErrorKind(err),
			"error", err.Error(),
		)
	}
	s.finishLocked(c, err)
	s.mu.Unlock()
	s.notify()
}

// acceptLocked writes a validated value and restarts the staleness timer.
func (s *Synchronizer[T]) acceptLocked(c *cycle, value T) {
	s.cache.Write(value, s.cfg.now())
	s.err = nil
	s.loading = false
	s.stale = false
	s.armStaleLocked(s.cfg.cacheTTL)
	s.finishLocked(c, nil)
}

func (s *Synchronizer[T]) retry(c *cycle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active || s.current != c {
		s.logger.Debug("abandoning retry of superseded cycle", "cycle_id", c.id)
		return
	}
	s.retryTimer = nil
	s.issueLocked(c)
}

func (s *Synchronizer[T]) armStaleLocked(after time.Duration) {
	if s.staleTimer != nil {
		s.staleTimer.Stop()
	}
	s.staleToken++
	token := s.staleToken
	s.staleTimer = time.AfterFunc(after, func() { s.markStale(token) })
}

func (s *Synchronizer[T]) markStale(token uint64) {
	s.mu.Lock()
	if !s.active || token != s.staleToken || s.stale {
		s.mu.Unlock()
		return
	}
	s.stale = true
	s.mu.Unlock()
	s.notify()
}

func (s *Synchronizer[T]) notify() {
	for _, hook := range s.cfg.changeHooks {
		s.invokeHookSafe(hook)
	}
}

// invokeHookSafe calls a change hook with panic recovery.
// Panics are logged but do not propagate.
func (s *Synchronizer[T]) invokeHookSafe(hook func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("change hook panicked", "panic", r)
		}
	}()
	hook()
}
