// Package clock abstracts wall time and deferred execution so schedulers can
// be driven by virtual time in tests.
package clock

import (
	"sync"
	"time"
)

// Timer is a handle to a scheduled callback.
type Timer interface {
	// Stop prevents future runs. It reports whether a run was still pending.
	Stop() bool
}

// Scheduler supplies the current time and runs callbacks later.
type Scheduler interface {
	Now() time.Time
	// After runs fn once, d from now, on its own goroutine.
	After(d time.Duration, fn func()) Timer
	// Every runs fn each d until the returned timer is stopped.
	Every(d time.Duration, fn func()) Timer
}

// Real returns a Scheduler backed by the runtime timers.
func Real() Scheduler {
	return realScheduler{}
}

type realScheduler struct{}

func (realScheduler) Now() time.Time { return time.Now() }

func (realScheduler) After(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

func (realScheduler) Every(d time.Duration, fn func()) Timer {
	t := &ticker{ticker: time.NewTicker(d), done: make(chan struct{})}
	go func() {
		for {
			select {
			case <-t.ticker.C:
				fn()
			case <-t.done:
				return
			}
		}
	}()
	return t
}

type ticker struct {
	ticker *time.Ticker
	once   sync.Once
	done   chan struct{}
}

func (t *ticker) Stop() bool {
	stopped := false
	t.once.Do(func() {
		t.ticker.Stop()
		close(t.done)
		stopped = true
	})
	return stopped
}
