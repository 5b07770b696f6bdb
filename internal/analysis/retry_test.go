package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"Connection", &ErrDatabaseConnection{Msg: "x"}, true},
		{"Query", &ErrQueryExecution{Msg: "x"}, true},
		{"Timeout", &ErrTimeout{Msg: "x"}, true},
		{"Unavailable", &ErrUnavailable{Msg: "x"}, true},
		{"Invalid input", &ErrInvalidInput{Msg: "x"}, false},
		{"Cancelled", &ErrCancelled{Msg: "x"}, false},
		{"Plain", errors.New("x"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryableError(tt.err))
		})
	}
}

func TestClassifyModelError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(t *testing.T, err error)
	}{
		{"Nil", nil, func(t *testing.T, err error) { assert.NoError(t, err) }},
		{"Unavailable", status.Error(codes.Unavailable, "down"), func(t *testing.T, err error) {
			var e *ErrUnavailable
			assert.ErrorAs(t, err, &e)
		}},
		{"Deadline", status.Error(codes.DeadlineExceeded, "slow"), func(t *testing.T, err error) {
			var e *ErrTimeout
			assert.ErrorAs(t, err, &e)
		}},
		{"Unauthenticated", status.Error(codes.Unauthenticated, "key"), func(t *testing.T, err error) {
			var e *ErrInvalidInput
			assert.ErrorAs(t, err, &e)
		}},
		{"Context cancelled", context.Canceled, func(t *testing.T, err error) {
			var e *ErrCancelled
			assert.ErrorAs(t, err, &e)
			assert.ErrorIs(t, err, context.Canceled)
		}},
		{"Unknown", errors.New("boom"), func(t *testing.T, err error) {
			assert.EqualError(t, err, "boom")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, classifyModelError(tt.err))
		})
	}
}

func TestErrorMessagesAndUnwrap(t *testing.T) {
	cause := errors.New("refused")
	err := &ErrDatabaseConnection{Msg: "ping failed", Err: cause}
	assert.Equal(t, "database connection error: ping failed: refused", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "invalid input error: table name is required", (&ErrInvalidInput{Msg: "table name is required"}).Error())
}

func TestWithRetry(t *testing.T) {
	opts := RetryOptions{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, BackoffMultiplier: 2}

	t.Run("Succeeds after transient errors", func(t *testing.T) {
		calls := 0
		got, err := withRetry(context.Background(), opts, zap.NewNop(), func(context.Context) (int, error) {
			calls++
			if calls < 3 {
				return 0, &ErrTimeout{Msg: "slow"}
			}
			return 42, nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 42, got)
		assert.Equal(t, 3, calls)
	})

	t.Run("Stops on permanent error", func(t *testing.T) {
		calls := 0
		_, err := withRetry(context.Background(), opts, zap.NewNop(), func(context.Context) (int, error) {
			calls++
			return 0, &ErrInvalidInput{Msg: "bad"}
		})
		var inv *ErrInvalidInput
		assert.ErrorAs(t, err, &inv)
		assert.Equal(t, 1, calls)
	})

	t.Run("Cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		calls := 0
		_, err := withRetry(ctx, opts, zap.NewNop(), func(context.Context) (int, error) {
			calls++
			return 0, nil
		})
		var c *ErrCancelled
		assert.ErrorAs(t, err, &c)
		assert.Zero(t, calls)
	})

	t.Run("Zero attempts still runs once", func(t *testing.T) {
		calls := 0
		_, err := withRetry(context.Background(), RetryOptions{}, zap.NewNop(), func(context.Context) (int, error) {
			calls++
			return 1, nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 1, calls)
	})
}
