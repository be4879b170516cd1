package clock

import (
	"testing"
	"time"
)

func TestFakeAfterFiresOnceWhenDue(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := NewFake(start)

	var firedAt []time.Time
	f.After(10*time.Second, func() { firedAt = append(firedAt, f.Now()) })

	f.Advance(9 * time.Second)
	if len(firedAt) != 0 {
		t.Fatalf("fired early")
	}
	f.Advance(time.Minute)
	if len(firedAt) != 1 {
		t.Fatalf("expected one run, got %d", len(firedAt))
	}
	if !firedAt[0].Equal(start.Add(10 * time.Second)) {
		t.Fatalf("expected Now at due time, got %v", firedAt[0])
	}
	if f.Pending() != 0 {
		t.Fatalf("expected no pending timers")
	}
}

func TestFakeEveryRepeatsUntilStopped(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	runs := 0
	timer := f.Every(time.Minute, func() { runs++ })

	f.Advance(3*time.Minute + 30*time.Second)
	if runs != 3 {
		t.Fatalf("expected 3 runs, got %d", runs)
	}
	if !timer.Stop() {
		t.Fatalf("expected stop to report pending timer")
	}
	f.Advance(time.Hour)
	if runs != 3 {
		t.Fatalf("expected no runs after stop, got %d", runs)
	}
}

func TestFakeOrdersByDueThenSchedulingOrder(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	var order []string
	f.After(2*time.Second, func() { order = append(order, "b") })
	f.After(time.Second, func() { order = append(order, "a") })
	f.After(2*time.Second, func() { order = append(order, "c") })

	f.Advance(5 * time.Second)
	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Fatalf("unexpected order %v", order)
	}
}
