package util

import (
	"context"
	"errors"
	"os"
	"syscall"
	"testing"
	"time"
)

func fastRetry() *RetryConfig {
	return &RetryConfig{
		MaxAttempts: 3,
		InitialWait: 5 * time.Millisecond,
		MaxWait:     20 * time.Millisecond,
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"EAGAIN", syscall.EAGAIN, true},
		{"EBUSY", syscall.EBUSY, true},
		{"EIO", syscall.EIO, true},
		{"ENOENT", syscall.ENOENT, false},
		{"EACCES", syscall.EACCES, false},
		{"timeout in message", errors.New("read: connection timeout"), true},
		{"busy in message", errors.New("device or resource busy"), true},
		{"plain error", errors.New("invalid frame"), false},
		{"PathError with EBUSY", &os.PathError{Op: "open", Path: "/a.mp3", Err: syscall.EBUSY}, true},
		{"PathError with ENOENT", &os.PathError{Op: "open", Path: "/a.mp3", Err: syscall.ENOENT}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryableError(tt.err); got != tt.expected {
				t.Errorf("IsRetryableError(%v) = %v, expected %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestRetryWithBackoff_SuccessAfterRetries(t *testing.T) {
	attempts := 0
	result, err := RetryWithBackoff(context.Background(), fastRetry(), "write", func() (string, error) {
		attempts++
		if attempts < 3 {
			return "", syscall.EBUSY
		}
		return "done", nil
	})

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result != "done" {
		t.Errorf("Expected result 'done', got: %s", result)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got: %d", attempts)
	}
}

func TestRetryWithBackoff_NonRetryableError(t *testing.T) {
	attempts := 0
	_, err := RetryWithBackoff(context.Background(), fastRetry(), "write", func() (int, error) {
		attempts++
		return 0, syscall.ENOENT
	})

	if !errors.Is(err, syscall.ENOENT) {
		t.Errorf("Expected ENOENT, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got: %d", attempts)
	}
}

func TestRetryWithBackoff_MaxAttempts(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), fastRetry(), "write", func() error {
		attempts++
		return syscall.EAGAIN
	})

	if !errors.Is(err, syscall.EAGAIN) {
		t.Errorf("Expected wrapped EAGAIN, got: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got: %d", attempts)
	}
}

func TestRetryWithBackoff_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := &RetryConfig{MaxAttempts: 5, InitialWait: time.Second, MaxWait: time.Second}

	attempts := 0
	err := Retry(ctx, cfg, "write", func() error {
		attempts++
		cancel()
		return syscall.EAGAIN
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got: %d", attempts)
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()
	if cfg.MaxAttempts != 3 {
		t.Errorf("Expected MaxAttempts=3, got: %d", cfg.MaxAttempts)
	}
	if cfg.InitialWait != 100*time.Millisecond {
		t.Errorf("Expected InitialWait=100ms, got: %v", cfg.InitialWait)
	}
}
