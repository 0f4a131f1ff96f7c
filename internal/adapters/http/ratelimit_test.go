package http

import (
	"testing"
	"time"
)

func TestOfferRateLimiter_SlidingWindow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rl := NewOfferRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatalf("first two attempts must pass")
	}
	if rl.Allow("a") {
		t.Fatalf("third attempt inside the window must fail")
	}
	if !rl.Allow("b") {
		t.Fatalf("keys are limited independently")
	}

	now = now.Add(61 * time.Second)
	if !rl.Allow("a") {
		t.Fatalf("attempt after the window must pass")
	}
}

func TestOfferRateLimiter_ForgetsIdleKeys(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rl := NewOfferRateLimiter(5, time.Minute)
	rl.now = func() time.Time { return now }

	rl.Allow("idle")
	now = now.Add(2 * time.Minute)
	rl.Allow("busy")

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.history["idle"]; ok {
		t.Fatalf("idle key kept")
	}
}

func TestOfferRateLimiter_Disabled(t *testing.T) {
	rl := NewOfferRateLimiter(0, time.Minute)
	for i := 0; i < 100; i++ {
		if !rl.Allow("a") {
			t.Fatalf("disabled limiter refused attempt %d", i)
		}
	}
}
