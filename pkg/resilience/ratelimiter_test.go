package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLimiterBurst(t *testing.T) {
	l := NewLimiter(LimiterOpts{Rate: 1, Burst: 2})
	if !l.Allow() || !l.Allow() {
		t.Fatal("burst of 2 should be allowed")
	}
	if l.Allow() {
		t.Fatal("third call should be limited")
	}
	err := l.Call(context.Background(), func(context.Context) error { return nil })
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestLimiterUnlimited(t *testing.T) {
	l := NewLimiter(LimiterOpts{})
	for i := 0; i < 100; i++ {
		if !l.Allow() {
			t.Fatal("unlimited limiter rejected a call")
		}
	}
	var nilLimiter *Limiter
	if !nilLimiter.Allow() {
		t.Fatal("nil limiter should allow")
	}
	if err := nilLimiter.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestLimiterWaitHonoursContext(t *testing.T) {
	l := NewLimiter(LimiterOpts{Rate: 0.001, Burst: 1})
	l.Allow()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := l.CallWait(ctx, func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected wait to fail")
	}
}

func TestLimiterCallWait(t *testing.T) {
	l := NewLimiter(LimiterOpts{Rate: 1000, Burst: 1})
	called := 0
	for i := 0; i < 3; i++ {
		if err := l.CallWait(context.Background(), func(context.Context) error { called++; return nil }); err != nil {
			t.Fatal(err)
		}
	}
	if called != 3 {
		t.Fatalf("called = %d", called)
	}
}
