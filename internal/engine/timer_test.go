package engine

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestTimerExpiresExactlyOnce(t *testing.T) {
	var expires int32
	timer := NewTimer(50*time.Millisecond, 5*time.Millisecond, nil, func() {
		atomic.AddInt32(&expires, 1)
	})
	timer.Start()

	waitFor(t, "expiry", func() bool { return atomic.LoadInt32(&expires) > 0 })

	// Further observations must not refire.
	timer.Expired()
	timer.Expired()
	time.Sleep(30 * time.Millisecond)

	if n := atomic.LoadInt32(&expires); n != 1 {
		t.Fatalf("onExpire fired %d times, want 1", n)
	}
}

func TestTimerTicksReportRemaining(t *testing.T) {
	var mu sync.Mutex
	var ticks []int64
	timer := NewTimer(80*time.Millisecond, 10*time.Millisecond, func(remaining int64) {
		mu.Lock()
		ticks = append(ticks, remaining)
		mu.Unlock()
	}, nil)
	timer.Start()
	defer timer.Stop()

	waitFor(t, "ticks", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(ticks) >= 3
	})

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(ticks); i++ {
		if ticks[i] > ticks[i-1] {
			t.Fatalf("remaining increased between ticks: %v", ticks)
		}
	}
}

func TestTimerRemainingNeverNegative(t *testing.T) {
	timer := NewTimer(-time.Second, time.Millisecond, nil, nil)
	if got := timer.Remaining(); got != 0 {
		t.Fatalf("Remaining() = %d, want 0", got)
	}
}

func TestTimerExpiredFiresOnSuspendedResume(t *testing.T) {
	// A deadline already in the past must expire on first observation,
	// not tick down from the original duration.
	var expires int32
	timer := NewTimer(-time.Minute, time.Second, nil, func() {
		atomic.AddInt32(&expires, 1)
	})

	if !timer.Expired() {
		t.Fatal("Expired() = false for past deadline")
	}
	if n := atomic.LoadInt32(&expires); n != 1 {
		t.Fatalf("onExpire fired %d times, want 1", n)
	}
}

func TestTimerStopIsIdempotentAndSuppressesExpiry(t *testing.T) {
	var expires int32
	timer := NewTimer(30*time.Millisecond, 5*time.Millisecond, nil, func() {
		atomic.AddInt32(&expires, 1)
	})
	timer.Start()
	timer.Stop()
	timer.Stop()

	time.Sleep(60 * time.Millisecond)
	if n := atomic.LoadInt32(&expires); n != 0 {
		t.Fatalf("onExpire fired %d times after Stop, want 0", n)
	}
}
