package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewTimeout_Defaults(t *testing.T) {
	timeout := NewTimeout(TimeoutConfig{})

	if timeout.Config().Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", timeout.Config().Timeout)
	}
}

func TestTimeout_ExecuteSuccess(t *testing.T) {
	timeout := NewTimeout(TimeoutConfig{Timeout: time.Second})

	executed := false
	err := timeout.Execute(context.Background(), func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("operation context carries no deadline")
		}
		executed = true
		return nil
	})

	if err != nil {
		t.Errorf("Execute() error = %v", err)
	}
	if !executed {
		t.Error("operation was not executed")
	}
}

func TestTimeout_ExecuteError(t *testing.T) {
	timeout := NewTimeout(TimeoutConfig{Timeout: time.Second})

	want := errors.New("generation failed")
	if err := timeout.Execute(context.Background(), func(context.Context) error { return want }); err != want {
		t.Errorf("Execute() error = %v, want %v", err, want)
	}
}

func TestTimeout_DeadlineExceeded(t *testing.T) {
	timeout := NewTimeout(TimeoutConfig{Timeout: 10 * time.Millisecond})

	err := timeout.Execute(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Execute() error = %v, want ErrTimeout", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Execute() error = %v, want to wrap DeadlineExceeded", err)
	}
}

func TestTimeout_ParentCanceled(t *testing.T) {
	timeout := NewTimeout(TimeoutConfig{Timeout: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := timeout.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })
	if errors.Is(err, ErrTimeout) {
		t.Fatal("parent cancellation reported as timeout")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Execute() error = %v, want context.Canceled", err)
	}
}

// TestTimeout_RunsOnCallerGoroutine verifies a late success is returned as is.
func TestTimeout_RunsOnCallerGoroutine(t *testing.T) {
	timeout := NewTimeout(TimeoutConfig{Timeout: time.Millisecond})

	result := 0
	err := timeout.Execute(context.Background(), func(context.Context) error {
		time.Sleep(5 * time.Millisecond)
		result = 42
		return nil
	})

	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result != 42 {
		t.Fatalf("result = %d, want 42", result)
	}
}
