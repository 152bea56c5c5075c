// Package resilience provides a retrying, circuit-breaking call wrapper
// used by the scheduler, agent loop, and memory summarizer to guard calls
// to flaky external collaborators (LLM providers, search APIs, wallets).
package resilience

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// State is the circuit breaker's state.
type State string

const (
	StateClosed State = "closed"
	StateOpen   State = "open"
)

// ErrCircuitOpen is returned when a call is rejected because the breaker is open.
var ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

// Config controls retry and breaker behavior for one Executor.
type Config struct {
	// Name identifies the operation for logging and metrics.
	Name string

	// MaxRetries bounds retry attempts per Call (0 means no retry, call once).
	MaxRetries int

	// BaseDelay is the first retry backoff; later attempts double it with jitter.
	BaseDelay time.Duration

	// MaxDelay caps the backoff interval.
	MaxDelay time.Duration

	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold int

	// OpenDuration is how long the breaker stays open before probing again.
	OpenDuration time.Duration

	// IsRetryable classifies an error as retryable. Defaults to DefaultIsRetryable.
	IsRetryable func(error) bool

	Logger zerolog.Logger
}

// Metrics is a narrow snapshot of an Executor's counters, read with RLock held internally.
type Metrics struct {
	Attempts       int64
	Successes      int64
	Failures       int64
	Retries        int64
	CircuitOpens   int64
	CircuitRejects int64
}

// Executor wraps calls with retry + exponential backoff + jitter and a
// consecutive-failure circuit breaker. One Executor instance is meant to be
// shared by every call site for a single logical operation (e.g. "anthropic-call",
// "scheduler-tick", "memory-summarize") so the breaker state is operation-scoped.
type Executor struct {
	cfg Config

	mu               sync.Mutex
	state            State
	consecutiveFails int
	openedAt         time.Time

	metricsMu sync.RWMutex
	metrics   Metrics
}

// New creates an Executor, filling in defaults for zero-valued Config fields.
func New(cfg Config) *Executor {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenDuration <= 0 {
		cfg.OpenDuration = 30 * time.Second
	}
	if cfg.IsRetryable == nil {
		cfg.IsRetryable = DefaultIsRetryable
	}
	return &Executor{cfg: cfg, state: StateClosed}
}

// Do runs fn, retrying on retryable errors with jittered exponential backoff,
// subject to the circuit breaker. It returns ErrCircuitOpen without calling fn
// when the breaker is open and the cooldown has not elapsed.
func (e *Executor) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if !e.allowAttempt() {
		e.metricsMu.Lock()
		e.metrics.CircuitRejects++
		e.metricsMu.Unlock()
		return fmt.Errorf("%s: %w", e.cfg.Name, ErrCircuitOpen)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.cfg.BaseDelay
	b.MaxInterval = e.cfg.MaxDelay
	b.Multiplier = 2.0
	b.RandomizationFactor = 0.5

	var withMax backoff.BackOff = b
	if e.cfg.MaxRetries > 0 {
		withMax = backoff.WithMaxRetries(b, uint64(e.cfg.MaxRetries))
	} else {
		// MaxRetries == 0: run fn once, no retries.
		withMax = backoff.WithMaxRetries(b, 0)
	}
	withMax = backoff.WithContext(withMax, ctx)

	attempt := 0
	var lastErr error

	operation := func() error {
		attempt++
		e.metricsMu.Lock()
		e.metrics.Attempts++
		e.metricsMu.Unlock()

		err := fn(ctx)
		if err == nil {
			lastErr = nil
			return nil
		}
		lastErr = err

		if !e.cfg.IsRetryable(err) {
			return backoff.Permanent(err)
		}

		e.metricsMu.Lock()
		e.metrics.Retries++
		e.metricsMu.Unlock()
		e.cfg.Logger.Info().
			Str("operation", e.cfg.Name).
			Int("attempt", attempt).
			Err(err).
			Msg("resilience: retrying after error")
		return err
	}

	err := backoff.Retry(operation, withMax)
	if err != nil {
		if perr, ok := err.(*backoff.PermanentError); ok {
			err = perr.Unwrap()
		} else if lastErr != nil {
			err = fmt.Errorf("%s: max retries exceeded: %w", e.cfg.Name, lastErr)
		}
		e.recordFailure()
		e.metricsMu.Lock()
		e.metrics.Failures++
		e.metricsMu.Unlock()
		return err
	}

	e.recordSuccess()
	e.metricsMu.Lock()
	e.metrics.Successes++
	e.metricsMu.Unlock()
	return nil
}

// State returns the breaker's current state.
func (e *Executor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentStateLocked()
}

// Metrics returns a snapshot of call counters.
func (e *Executor) Metrics() Metrics {
	e.metricsMu.RLock()
	defer e.metricsMu.RUnlock()
	return e.metrics
}

func (e *Executor) allowAttempt() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentStateLocked() == StateClosed
}

// currentStateLocked transitions Open -> Closed once OpenDuration has elapsed,
// letting the next call through as a probe. Caller must hold e.mu.
func (e *Executor) currentStateLocked() State {
	if e.state == StateOpen && time.Since(e.openedAt) >= e.cfg.OpenDuration {
		e.state = StateClosed
		e.consecutiveFails = 0
	}
	return e.state
}

func (e *Executor) recordFailure() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.consecutiveFails++
	if e.consecutiveFails >= e.cfg.FailureThreshold && e.state == StateClosed {
		e.state = StateOpen
		e.openedAt = time.Now()
		e.metricsMu.Lock()
		e.metrics.CircuitOpens++
		e.metricsMu.Unlock()
		e.cfg.Logger.Warn().
			Str("operation", e.cfg.Name).
			Int("consecutive_failures", e.consecutiveFails).
			Msg("resilience: circuit breaker opened")
	}
}

func (e *Executor) recordSuccess() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.consecutiveFails = 0
	e.state = StateClosed
}

// DefaultIsRetryable classifies network, timeout, rate-limit, and 5xx-style
// errors as retryable. It mirrors the substring heuristics used elsewhere in
// this codebase for LLM provider errors, generalized for any operation.
func DefaultIsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	msg := strings.ToLower(err.Error())
	retryableSubstrings := []string{
		"econnreset",
		"etimedout",
		"econnrefused",
		"timeout",
		"rate limit",
		"too many requests",
		"429",
		"500",
		"502",
		"503",
		"504",
		"temporarily unavailable",
		"connection reset",
	}
	for _, s := range retryableSubstrings {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
