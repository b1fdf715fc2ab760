package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"
)

// ErrStoreUnavailable is the terminal error after the retry budget for
// transient store failures is exhausted. Callers match with errors.Is and may
// retry the whole cycle at their own cadence.
var ErrStoreUnavailable = errors.New("store unavailable")

// RetryPolicy is an explicit retry contract passed to store call sites: max
// attempts with a fixed backoff between them. Only transient connectivity and
// operational errors are retried; anything else surfaces on first occurrence.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: 10 * time.Second}
}

// Do runs fn until it succeeds, fails with a non-transient error, or the
// attempt budget runs out. Exhausting the budget wraps the last error in
// ErrStoreUnavailable.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Backoff):
		}
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// Server-side error numbers that indicate a condition worth retrying rather
// than a logic error in the statement.
var retryableMySQLErrors = map[uint16]bool{
	1040: true, // ER_CON_COUNT_ERROR: too many connections
	1053: true, // ER_SERVER_SHUTDOWN
	1205: true, // ER_LOCK_WAIT_TIMEOUT
	1213: true, // ER_LOCK_DEADLOCK
}

// IsTransient reports whether err is a connectivity or operational failure.
// A logic error (constraint violation, bad SQL, data error) is never transient
// and must not be masked by retries.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	// Connection dropped mid-exchange surfaces as a bare EOF from the driver.
	if errors.Is(err, io.EOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return retryableMySQLErrors[myErr.Number]
	}
	return false
}
