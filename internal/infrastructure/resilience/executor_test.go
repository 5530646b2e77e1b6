package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

func TestExecuteRunsExactlyOnce(t *testing.T) {
	exec := NewExecutor(Config{BreakerEnabled: false})

	attempts := 0
	errTemp := errors.New("temporary")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		return errTemp
	}, nil)
	if !errors.Is(err, errTemp) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestExecuteOpensCircuitAfterFailures(t *testing.T) {
	exec := NewExecutor(Config{
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      50 * time.Millisecond,
		BreakerHalfOpenMaxCalls: 1,
	})

	var transitions []string
	exec.OnStateChange(func(op, from, to string) {
		transitions = append(transitions, op+":"+from+"->"+to)
	})

	errTemp := errors.New("temporary")
	classifier := func(error) ErrorClassification {
		return ErrorClassification{RecordFailure: true}
	}

	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "op", func(context.Context) error {
			return errTemp
		}, classifier)
		if !errors.Is(err, errTemp) {
			t.Fatalf("expected temporary error on iteration %d, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		t.Fatalf("circuit should be open and must not call operation")
		return nil
	}, classifier)
	if !errors.Is(err, gobreaker.ErrOpenState) || !IsCircuitOpen(err) {
		t.Fatalf("expected open state error, got %v", err)
	}
	if len(transitions) != 1 || transitions[0] != "op:closed->open" {
		t.Fatalf("unexpected transitions %v", transitions)
	}
}

func TestExecuteIgnoresUnrecordedFailures(t *testing.T) {
	exec := NewExecutor(Config{
		BreakerEnabled:      true,
		BreakerMinRequests:  1,
		BreakerFailureRatio: 0.1,
	})

	errClient := errors.New("bad request")
	for i := 0; i < 5; i++ {
		err := exec.Execute(context.Background(), "op", func(context.Context) error {
			return errClient
		}, func(error) ErrorClassification {
			return ErrorClassification{RecordFailure: false}
		})
		if !errors.Is(err, errClient) {
			t.Fatalf("iteration %d: expected client error, got %v", i, err)
		}
	}
}

func TestExecuteHonoursRateLimit(t *testing.T) {
	exec := NewExecutor(Config{RateLimit: 20, RateBurst: 1})

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := exec.Execute(context.Background(), "op", func(context.Context) error { return nil }, nil); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Fatalf("expected limiter to space calls, took %v", elapsed)
	}
}

func TestExecuteStopsWaitingWhenContextEnds(t *testing.T) {
	exec := NewExecutor(Config{RateLimit: 0.01, RateBurst: 1})
	_ = exec.Execute(context.Background(), "op", func(context.Context) error { return nil }, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	called := false
	err := exec.Execute(ctx, "op", func(context.Context) error {
		called = true
		return nil
	}, nil)
	if err == nil || called {
		t.Fatalf("expected rate limit error without calling, got err=%v called=%v", err, called)
	}
}
