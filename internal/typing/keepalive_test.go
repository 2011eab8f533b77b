package typing

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestKeepaliveSendsImmediatelyAndRepeats(t *testing.T) {
	var calls atomic.Int32
	k := Start(context.Background(), func(context.Context) error {
		calls.Add(1)
		return nil
	}, Config{Interval: 10 * time.Millisecond})

	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	k.Stop()

	if calls.Load() < 3 {
		t.Fatalf("calls = %d, want at least 3", calls.Load())
	}
	after := calls.Load()
	time.Sleep(30 * time.Millisecond)
	if calls.Load() != after {
		t.Errorf("send after Stop: %d -> %d", after, calls.Load())
	}
}

func TestKeepaliveStopIsIdempotent(t *testing.T) {
	k := Start(context.Background(), func(context.Context) error { return nil }, Config{})
	k.Stop()
	k.Stop()
}

func TestKeepaliveIgnoresSendErrors(t *testing.T) {
	var calls atomic.Int32
	k := Start(context.Background(), func(context.Context) error {
		calls.Add(1)
		return errors.New("chat not found")
	}, Config{Interval: 5 * time.Millisecond})

	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	k.Stop()
	if calls.Load() < 2 {
		t.Errorf("calls = %d, loop should keep going after errors", calls.Load())
	}
}

func TestKeepaliveEndsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	k := Start(ctx, func(context.Context) error { return nil }, Config{Interval: time.Hour})
	cancel()

	select {
	case <-k.doneCh:
	case <-time.After(2 * time.Second):
		t.Fatal("keepalive did not exit after cancel")
	}
	k.Stop()
}

func TestKeepaliveEndsAfterTTL(t *testing.T) {
	k := Start(context.Background(), func(context.Context) error { return nil }, Config{
		Interval: time.Hour,
		TTL:      10 * time.Millisecond,
	})
	select {
	case <-k.doneCh:
	case <-time.After(2 * time.Second):
		t.Fatal("keepalive did not expire")
	}
}
