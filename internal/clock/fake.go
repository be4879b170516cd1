package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a manually advanced Scheduler. Callbacks run synchronously inside
// Advance, in due order, on the caller's goroutine.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*fakeTimer
}

// NewFake returns a Fake whose clock starts at now.
func NewFake(now time.Time) *Fake {
	return &Fake{now: now}
}

type fakeTimer struct {
	fake     *Fake
	seq      int
	due      time.Time
	interval time.Duration
	fn       func()
	stopped  bool
}

func (t *fakeTimer) Stop() bool {
	t.fake.mu.Lock()
	defer t.fake.mu.Unlock()
	if t.stopped {
		return false
	}
	t.stopped = true
	t.fake.removeLocked(t)
	return true
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) After(d time.Duration, fn func()) Timer {
	return f.schedule(d, 0, fn)
}

func (f *Fake) Every(d time.Duration, fn func()) Timer {
	return f.schedule(d, d, fn)
}

func (f *Fake) schedule(d, interval time.Duration, fn func()) *fakeTimer {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	t := &fakeTimer{fake: f, seq: f.seq, due: f.now.Add(d), interval: interval, fn: fn}
	f.timers = append(f.timers, t)
	return t
}

// Set moves the clock to now without firing anything.
func (f *Fake) Set(now time.Time) {
	f.mu.Lock()
	f.now = now
	f.mu.Unlock()
}

// Advance moves the clock forward by d, firing every callback that becomes
// due along the way with Now() reporting its due time.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for {
		f.mu.Lock()
		next := f.nextDueLocked(target)
		if next == nil {
			f.now = target
			f.mu.Unlock()
			return
		}
		f.now = next.due
		if next.interval > 0 {
			next.due = next.due.Add(next.interval)
		} else {
			next.stopped = true
			f.removeLocked(next)
		}
		fn := next.fn
		f.mu.Unlock()

		fn()
	}
}

// Pending returns the number of scheduled, unstopped timers.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.timers)
}

func (f *Fake) nextDueLocked(target time.Time) *fakeTimer {
	sort.SliceStable(f.timers, func(i, j int) bool {
		if !f.timers[i].due.Equal(f.timers[j].due) {
			return f.timers[i].due.Before(f.timers[j].due)
		}
		return f.timers[i].seq < f.timers[j].seq
	})
	if len(f.timers) == 0 || f.timers[0].due.After(target) {
		return nil
	}
	return f.timers[0]
}

func (f *Fake) removeLocked(t *fakeTimer) {
	for i, candidate := range f.timers {
		if candidate == t {
			f.timers = append(f.timers[:i], f.timers[i+1:]...)
			return
		}
	}
}
