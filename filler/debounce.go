package filler

import "time"

const defaultDebounceWindow = 250 * time.Millisecond

// debouncer coalesces bursts of triggers into a single fire once the
// window has passed without a new trigger. Triggers never block.
type debouncer struct {
	window time.Duration
	trig   chan struct{}
	stop   chan struct{}
	fire   func()
}

func newDebouncer(window time.Duration, fire func()) *debouncer {
	if window <= 0 {
		window = defaultDebounceWindow
	}
	d := &debouncer{
		window: window,
		trig:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		fire:   fire,
	}
	go d.loop()
	return d
}

// Trigger starts or restarts the debounce window.
func (d *debouncer) Trigger() {
	select {
	case d.trig <- struct{}{}:
	default:
	}
}

// Stop cancels any pending fire.
func (d *debouncer) Stop() {
	close(d.stop)
}

func (d *debouncer) loop() {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-d.trig:
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(d.window)
			timerC = timer.C

		case <-timerC:
			timer = nil
			timerC = nil
			d.fire()

		case <-d.stop:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}
