package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
)

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"bad conn", driver.ErrBadConn, true},
		{"invalid conn", mysql.ErrInvalidConn, true},
		{"eof", io.EOF, true},
		{"net timeout", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, true},
		{"deadlock", &mysql.MySQLError{Number: 1213, Message: "Deadlock found"}, true},
		{"lock wait timeout", &mysql.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"}, true},
		{"duplicate key", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, false},
		{"syntax error", &mysql.MySQLError{Number: 1064, Message: "You have an error in your SQL syntax"}, false},
		{"wrapped transient", fmt.Errorf("commit window: %w", driver.ErrBadConn), true},
		{"plain logic error", errors.New("invalid posting state"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsTransient(tc.err); got != tc.want {
				t.Fatalf("IsTransient(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestRetryPolicy_EventualSuccess(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 4, Backoff: time.Millisecond}

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return driver.ErrBadConn
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned %v, want nil", err)
	}
	if calls != 3 {
		t.Fatalf("fn called %d times, want 3", calls)
	}
}

func TestRetryPolicy_BudgetExhausted(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond}

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		return &mysql.MySQLError{Number: 1213, Message: "Deadlock found"}
	})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Do returned %v, want ErrStoreUnavailable", err)
	}
	if calls != 3 {
		t.Fatalf("fn called %d times, want 3", calls)
	}
}

func TestRetryPolicy_FatalNotRetried(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 5, Backoff: time.Millisecond}

	logicErr := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		return logicErr
	})
	if !errors.Is(err, logicErr) {
		t.Fatalf("Do returned %v, want the logic error unchanged", err)
	}
	if errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("logic error must not be reported as store unavailability")
	}
	if calls != 1 {
		t.Fatalf("fn called %d times, want 1 (no retry on logic errors)", calls)
	}
}

func TestRetryPolicy_ContextCancelledBetweenAttempts(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 10, Backoff: time.Minute}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- policy.Do(ctx, func() error {
			calls++
			return driver.ErrBadConn
		})
	}()

	// Let the first attempt fail, then cancel while Do waits out the backoff.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Do returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Do did not return after context cancellation")
	}
	if calls != 1 {
		t.Fatalf("fn called %d times, want 1", calls)
	}
}
