package persistence

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/lib/pq"
)

const (
	// DefaultMaxAttempts bounds how often a transient storage failure is retried
	DefaultMaxAttempts = 4

	defaultBaseDelay = 100 * time.Millisecond
)

// Retrier re-runs a persistence step a bounded number of times when the
// storage layer fails transiently. Each attempt draws a fresh session from
// the pool while the caller's in-memory entities are reused unchanged, so a
// dead connection never loses constructed state. Business-rule violations are
// never retried.
type Retrier struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// NewRetrier creates a Retrier with the default bounds
func NewRetrier() *Retrier {
	return &Retrier{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   defaultBaseDelay,
	}
}

// Run executes fn, retrying transient storage errors up to MaxAttempts with a
// small randomized sleep between attempts to desynchronize competing retries.
// Non-transient errors are returned immediately.
func (r *Retrier) Run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= r.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}

		lastErr = err
		log.Printf("[ERROR] %s attempt %d/%d failed transiently: %v", op, attempt, r.MaxAttempts, err)

		if attempt < r.MaxAttempts {
			jitter := time.Duration(rand.Int63n(int64(r.BaseDelay)))
			select {
			case <-time.After(r.BaseDelay + jitter):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", op, r.MaxAttempts, lastErr)
}

// IsTransient reports whether the error is a storage failure worth retrying:
// a lost connection or a lock/serialization conflict. Everything else,
// including business-rule violations, is permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", // serialization_failure
			"40P01", // deadlock_detected
			"55P03", // lock_not_available
			"57P01": // admin_shutdown
			return true
		}
		// Class 08: connection exceptions
		if pqErr.Code.Class() == "08" {
			return true
		}
	}

	return false
}
