// Package faulttolerance wraps fallible remote calls with bounded-attempt
// exponential backoff.
package faulttolerance

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
)

// RetryConfig holds configuration for the retry mechanism.
type RetryConfig struct {
	MaxAttempts   int           // Maximum number of attempts, first try included
	BaseDelay     time.Duration // Base delay for exponential backoff
	MaxDelay      time.Duration // Cap on the exponential component
	BackoffFactor float64       // Multiplier for exponential backoff
	Name          string        // Name for logging

	// IsTerminal reports whether an error must not be retried.
	// Terminal errors propagate immediately without sleeping; retrying
	// a confirmed-absent resource only wastes quota and delays the run.
	IsTerminal func(error) bool
}

// DefaultRetryConfig returns the retry configuration used for origin
// fetches: 5 attempts, 1s base wait, doubling backoff.
func DefaultRetryConfig(name string) RetryConfig {
	return RetryConfig{
		MaxAttempts:   5,
		BaseDelay:     1 * time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		Name:          name,
	}
}

// RetryableFunc is a function that can be retried.
type RetryableFunc func() error

// Retryer handles retry logic with exponential backoff and jitter.
// A single Retryer is shared by all pool workers, so it holds no
// per-call mutable state.
type Retryer struct {
	config RetryConfig
	logger *logrus.Logger
}

// NewRetryer creates a new retryer, filling in sane defaults for any
// zero-valued configuration field.
func NewRetryer(config RetryConfig, logger *logrus.Logger) *Retryer {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 5
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = 1 * time.Second
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.BackoffFactor <= 1.0 {
		config.BackoffFactor = 2.0
	}
	if config.Name == "" {
		config.Name = "Retryer"
	}

	return &Retryer{
		config: config,
		logger: logger,
	}
}

// Execute runs fn up to MaxAttempts times. Terminal errors (per
// IsTerminal) and context cancellation return immediately; any other
// error is retried after a backoff sleep. After exhausting the attempt
// budget the last error is returned wrapped, so callers can record it
// as a failed outcome instead of crashing the batch.
func (r *Retryer) Execute(ctx context.Context, fn RetryableFunc) error {
	var lastErr error

	for attempt := 0; attempt < r.config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			if attempt > 0 {
				r.logger.Infof("[%s] Operation succeeded on attempt %d", r.config.Name, attempt+1)
			}
			return nil
		}

		if r.config.IsTerminal != nil && r.config.IsTerminal(err) {
			r.logger.Errorf("[%s] Terminal error, not retrying: %v", r.config.Name, err)
			return err
		}

		lastErr = err

		if attempt == r.config.MaxAttempts-1 {
			r.logger.Errorf("[%s] All %d attempts failed, last error: %v", r.config.Name, r.config.MaxAttempts, err)
			break
		}

		delay := r.calculateDelay(attempt)
		r.logger.Warnf("[%s] Attempt %d/%d failed: %v. Retrying in %v...",
			r.config.Name, attempt+1, r.config.MaxAttempts, err, delay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("max retry attempts (%d) exceeded: %w", r.config.MaxAttempts, lastErr)
}

// calculateDelay computes the wait before the retry following attempt
// (0-indexed): BaseDelay * BackoffFactor^attempt, capped at MaxDelay,
// plus uniform jitter in [0, 0.25*BaseDelay). Jitter comes from the
// global rand source, which is safe for concurrent workers.
func (r *Retryer) calculateDelay(attempt int) time.Duration {
	delay := float64(r.config.BaseDelay) * math.Pow(r.config.BackoffFactor, float64(attempt))

	if delay > float64(r.config.MaxDelay) {
		delay = float64(r.config.MaxDelay)
	}

	jitter := rand.Float64() * 0.25 * float64(r.config.BaseDelay)

	return time.Duration(delay + jitter)
}
