package http

import (
	"testing"
	"time"
)

func TestRateLimiterDisabled(t *testing.T) {
	var nilLimiter *rateLimiter
	if !nilLimiter.allow() {
		t.Fatal("nil limiter must allow")
	}
	r := newRateLimiter(0)
	for range 1000 {
		if !r.allow() {
			t.Fatal("disabled limiter must allow")
		}
	}
}

func TestRateLimiterResetsEachWindow(t *testing.T) {
	r := newRateLimiterWindow(2, 20*time.Millisecond)
	stop := make(chan struct{})
	defer close(stop)
	r.startReset(stop)

	if !r.allow() || !r.allow() {
		t.Fatal("first two calls must pass")
	}
	if r.allow() {
		t.Fatal("third call must be limited")
	}

	deadline := time.Now().Add(2 * time.Second)
	for !r.allow() {
		if time.Now().After(deadline) {
			t.Fatal("limiter never reset")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
