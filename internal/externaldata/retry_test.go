package externaldata

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"non-FetchError", errors.New("boom"), true},
		{"status 0 (network error)", &FetchError{StatusCode: 0, Err: errors.New("timeout")}, true},
		{"status 429", &FetchError{StatusCode: 429, Err: errors.New("rate limited")}, true},
		{"status 500", &FetchError{StatusCode: 500, Err: errors.New("server error")}, true},
		{"status 503", &FetchError{StatusCode: 503, Err: errors.New("unavailable")}, true},
		{"status 404", &FetchError{StatusCode: 404, Err: errors.New("not found")}, false},
		{"status 400", &FetchError{StatusCode: 400, Err: errors.New("bad request")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRetryPolicy_Run_SucceedsFirstTry(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}

	calls := 0
	err := p.Run(context.Background(), "test-provider", func(ctx context.Context) error {
		calls++
		return nil
	})

	if err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryPolicy_Run_RetriesOnRetryableError(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}

	calls := 0
	err := p.Run(context.Background(), "test-provider", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &FetchError{StatusCode: 503, Err: errors.New("unavailable")}
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Run() error = %v, want nil after eventual success", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryPolicy_Run_StopsOnTerminalError(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}

	calls := 0
	terminal := &FetchError{StatusCode: 404, Err: errors.New("not found")}
	err := p.Run(context.Background(), "test-provider", func(ctx context.Context) error {
		calls++
		return terminal
	})

	if !errors.Is(err, terminal) {
		t.Errorf("Run() error = %v, want the terminal error unwrapped", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retries on terminal error)", calls)
	}
}

func TestRetryPolicy_Run_ExhaustsAttempts(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}

	calls := 0
	err := p.Run(context.Background(), "test-provider", func(ctx context.Context) error {
		calls++
		return &FetchError{StatusCode: 500, Err: errors.New("server error")}
	})

	if err == nil {
		t.Fatal("Run() should return an error once attempts are exhausted")
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2 (MaxAttempts)", calls)
	}
}

func TestRetryPolicy_Run_CancelledContext(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := p.Run(ctx, "test-provider", func(ctx context.Context) error {
		calls++
		return nil
	})

	if err == nil {
		t.Fatal("Run() should return an error for an already-cancelled context")
	}
	if calls != 0 {
		t.Errorf("calls = %d, want 0 (operation should not run on cancelled context)", calls)
	}
}
