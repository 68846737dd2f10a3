package timectrl

import (
	"sync"
	"time"
)

// SimClock exposes simulation time to components that should not depend
// on the concrete controller type.
type SimClock interface {
	// Now returns the current simulation time.
	Now() time.Time
}

// Mode describes how the TimeController advances simulation time.
type Mode int

const (
	// RealTime waits one wall-clock tick between steps.
	RealTime Mode = iota
	// Accelerated steps as fast as the listeners can run, still
	// advancing simulation time by Tick per step.
	Accelerated
)

// TimeController drives simulation time and notifies registered
// listeners once per tick. Listeners run synchronously in registration
// order, so a slow listener stretches the effective tick in RealTime
// mode rather than skipping steps.
type TimeController struct {
	StartTime time.Time
	Tick      time.Duration
	Mode      Mode

	mu          sync.RWMutex
	currentTime time.Time

	listeners []func(time.Time)
}

// NewTimeController constructs a controller.
func NewTimeController(start time.Time, tick time.Duration, mode Mode) *TimeController {
	return &TimeController{
		StartTime:   start,
		Tick:        tick,
		Mode:        mode,
		currentTime: start,
	}
}

// Now returns the current simulation time. Implements SimClock.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// AddListener registers a callback invoked on every tick. Must be
// called before Start.
func (tc *TimeController) AddListener(fn func(time.Time)) {
	tc.listeners = append(tc.listeners, fn)
}

// Start runs the controller for the specified simulated duration in a
// separate goroutine and returns a channel closed when it finishes.
// A zero duration runs forever.
func (tc *TimeController) Start(duration time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		tc.mu.Lock()
		simTime := tc.StartTime
		tc.currentTime = simTime
		tc.mu.Unlock()

		var ticker *time.Ticker
		if tc.Mode == RealTime {
			ticker = time.NewTicker(tc.Tick)
			defer ticker.Stop()
		}

		elapsed := time.Duration(0)
		for {
			if duration > 0 && elapsed >= duration {
				return
			}
			if ticker != nil {
				<-ticker.C
			}

			simTime = simTime.Add(tc.Tick)
			elapsed += tc.Tick

			tc.mu.Lock()
			tc.currentTime = simTime
			tc.mu.Unlock()

			for _, fn := range tc.listeners {
				fn(simTime)
			}
		}
	}()
	return done
}
