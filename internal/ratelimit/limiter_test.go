package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestBucketAllowAndRefill(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	b := newBucket(Config{RequestsPerSecond: 2, BurstSize: 3}, clock.now)

	for i := 0; i < 3; i++ {
		if !b.Allow() {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	if b.Allow() {
		t.Fatal("request after burst should be denied")
	}

	clock.advance(500 * time.Millisecond)
	if !b.Allow() {
		t.Error("one token should refill after 500ms at 2/s")
	}
	if b.Allow() {
		t.Error("only one token should have refilled")
	}

	clock.advance(time.Hour)
	if got := b.Tokens(); got != 3 {
		t.Errorf("tokens = %v, want capped at 3", got)
	}
}

func TestBucketReserveReportsWait(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	b := newBucket(Config{RequestsPerSecond: 4, BurstSize: 1}, clock.now)

	if wait := b.reserve(); wait != 0 {
		t.Fatalf("first reserve wait = %v", wait)
	}
	if wait := b.reserve(); wait != 250*time.Millisecond {
		t.Errorf("wait = %v, want 250ms", wait)
	}
}

func TestBucketWait(t *testing.T) {
	b := NewBucket(Config{RequestsPerSecond: 100, BurstSize: 1})
	ctx := context.Background()
	if err := b.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	start := time.Now()
	if err := b.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 5*time.Millisecond {
		t.Errorf("second Wait returned after %v, expected to block", elapsed)
	}
}

func TestBucketWaitCancelled(t *testing.T) {
	b := NewBucket(Config{RequestsPerSecond: 0.001, BurstSize: 1})
	b.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := b.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want deadline exceeded", err)
	}
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	l := NewLimiter(Config{RequestsPerSecond: 1, BurstSize: 1, Enabled: true})
	if !l.Allow("a") || l.Allow("a") {
		t.Fatal("key a should allow exactly one")
	}
	if !l.Allow("b") {
		t.Error("key b should be unaffected by a")
	}
	l.Reset("a")
	if !l.Allow("a") {
		t.Error("reset key should start full")
	}
}

func TestLimiterDisabled(t *testing.T) {
	l := NewLimiter(Config{RequestsPerSecond: 1, BurstSize: 1})
	for i := 0; i < 10; i++ {
		if !l.Allow("k") {
			t.Fatal("disabled limiter should always allow")
		}
	}
	if err := l.Wait(context.Background(), "k"); err != nil {
		t.Errorf("Wait() error = %v", err)
	}

	var nilLimiter *Limiter
	if !nilLimiter.Allow("k") {
		t.Error("nil limiter should allow")
	}
}

func TestLimiterPrunesIdleKeys(t *testing.T) {
	l := NewLimiter(Config{RequestsPerSecond: 1, BurstSize: 5, Enabled: true})
	l.maxKeys = 3
	for i := 0; i < 3; i++ {
		l.bucket(fmt.Sprintf("idle-%d", i))
	}
	l.Allow("new")
	if got := l.Len(); got != 1 {
		t.Errorf("Len() = %d, want idle keys pruned", got)
	}
}
