package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a manually advanced Clock for tests. Timers fire synchronously
// inside Advance, in deadline order.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock    *Fake
	deadline time.Time
	fn       func()
	stopped  bool
	fired    bool
}

// NewFake returns a Fake clock pinned at the given instant.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{clock: f, deadline: f.now.Add(d), fn: fn}
	f.timers = append(f.timers, t)
	return t
}

// Set jumps the clock to the given instant, firing due timers on the way.
func (f *Fake) Set(to time.Time) {
	for {
		f.mu.Lock()
		if to.Before(f.now) {
			f.now = to
			f.mu.Unlock()
			return
		}
		next := f.nextDueLocked(to)
		if next == nil {
			f.now = to
			f.mu.Unlock()
			return
		}
		f.now = next.deadline
		next.fired = true
		fn := next.fn
		f.mu.Unlock()
		fn()
	}
}

// Advance moves the clock forward, firing due timers in deadline order.
func (f *Fake) Advance(d time.Duration) {
	f.Set(f.Now().Add(d))
}

func (f *Fake) nextDueLocked(limit time.Time) *fakeTimer {
	pending := f.timers[:0]
	for _, t := range f.timers {
		if !t.stopped && !t.fired {
			pending = append(pending, t)
		}
	}
	f.timers = pending
	sort.SliceStable(f.timers, func(i, j int) bool {
		return f.timers[i].deadline.Before(f.timers[j].deadline)
	})
	for _, t := range f.timers {
		if !t.deadline.After(limit) {
			return t
		}
	}
	return nil
}

// PendingTimers reports how many timers are armed and unfired.
func (f *Fake) PendingTimers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}
