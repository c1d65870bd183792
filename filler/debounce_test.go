package filler

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncerCoalescesBurst(t *testing.T) {
	var fires atomic.Int32
	d := newDebouncer(50*time.Millisecond, func() { fires.Add(1) })
	defer d.Stop()

	for i := 0; i < 10; i++ {
		d.Trigger()
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(150 * time.Millisecond)
	if got := fires.Load(); got != 1 {
		t.Fatalf("fires = %d, want 1", got)
	}
}

func TestDebouncerFiresPerQuietPeriod(t *testing.T) {
	var fires atomic.Int32
	d := newDebouncer(30*time.Millisecond, func() { fires.Add(1) })
	defer d.Stop()

	d.Trigger()
	time.Sleep(100 * time.Millisecond)
	d.Trigger()
	time.Sleep(100 * time.Millisecond)

	if got := fires.Load(); got != 2 {
		t.Fatalf("fires = %d, want 2", got)
	}
}

func TestDebouncerStopCancelsPending(t *testing.T) {
	var fires atomic.Int32
	d := newDebouncer(50*time.Millisecond, func() { fires.Add(1) })

	d.Trigger()
	d.Stop()

	time.Sleep(120 * time.Millisecond)
	if got := fires.Load(); got != 0 {
		t.Fatalf("fires = %d, want 0 after Stop", got)
	}
}
