package engine

import (
	"sync"
	"time"
)

// Timer is the single authoritative countdown for one session. Remaining
// time is always derived from a fixed deadline, never from counting ticks,
// so a process that was suspended past the deadline expires immediately on
// the next observation instead of catching up second by second.
type Timer struct {
	deadline time.Time
	interval time.Duration

	onTick   func(remaining int64)
	onExpire func()

	expireOnce sync.Once
	stopOnce   sync.Once
	stop       chan struct{}

	mu   sync.Mutex
	last int64 // last reported remaining, for monotonicity
}

// NewTimer creates a countdown that expires after d. onTick (optional)
// receives the remaining whole seconds once per interval; onExpire fires
// exactly once when the deadline passes. Call Start to begin ticking.
func NewTimer(d, interval time.Duration, onTick func(remaining int64), onExpire func()) *Timer {
	if interval <= 0 {
		interval = time.Second
	}
	return &Timer{
		deadline: time.Now().Add(d),
		interval: interval,
		onTick:   onTick,
		onExpire: onExpire,
		stop:     make(chan struct{}),
		last:     int64(d / time.Second),
	}
}

// Start launches the tick loop. Safe to call once per timer instance.
func (t *Timer) Start() {
	go t.loop()
}

func (t *Timer) loop() {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			remaining := t.Remaining()
			if t.onTick != nil {
				t.onTick(remaining)
			}
			if remaining <= 0 {
				t.fireExpire()
				return
			}
		}
	}
}

// Remaining returns the whole seconds left, floored at zero and
// non-increasing across calls.
func (t *Timer) Remaining() int64 {
	remaining := int64(time.Until(t.deadline) / time.Second)
	if remaining < 0 {
		remaining = 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if remaining > t.last {
		remaining = t.last
	}
	t.last = remaining
	return remaining
}

// Expired reports whether the deadline has passed. Observing an expired
// timer fires onExpire immediately; this is the resume-after-suspend path.
func (t *Timer) Expired() bool {
	if time.Now().Before(t.deadline) {
		return false
	}
	t.fireExpire()
	return true
}

// Deadline returns the fixed expiry instant.
func (t *Timer) Deadline() time.Time {
	return t.deadline
}

// Stop halts ticking without firing onExpire. Idempotent.
func (t *Timer) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}

// fireExpire invokes onExpire at most once per timer instance, regardless
// of how many tick loops, observers, or re-subscriptions exist.
func (t *Timer) fireExpire() {
	t.expireOnce.Do(func() {
		if t.onExpire != nil {
			t.onExpire()
		}
	})
}
