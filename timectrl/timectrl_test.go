package timectrl

import (
	"testing"
	"time"
)

func TestAcceleratedRunsAllTicks(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 250 * time.Millisecond
	tc := NewTimeController(start, tick, Accelerated)

	var seen []time.Time
	tc.AddListener(func(simTime time.Time) {
		seen = append(seen, simTime)
	})

	select {
	case <-tc.Start(time.Second):
	case <-time.After(5 * time.Second):
		t.Fatal("accelerated run did not finish")
	}

	if len(seen) != 4 {
		t.Fatalf("listener calls = %d, want 4", len(seen))
	}
	for i, got := range seen {
		want := start.Add(time.Duration(i+1) * tick)
		if !got.Equal(want) {
			t.Errorf("tick %d sim time = %v, want %v", i, got, want)
		}
	}
	if now := tc.Now(); !now.Equal(seen[len(seen)-1]) {
		t.Errorf("Now() = %v, want %v", now, seen[len(seen)-1])
	}
}

func TestNowBeforeStart(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, time.Second, Accelerated)
	if now := tc.Now(); !now.Equal(start) {
		t.Errorf("Now() before Start = %v, want %v", now, start)
	}
}

func TestRealTimeWaitsBetweenTicks(t *testing.T) {
	start := time.Now().UTC()
	tc := NewTimeController(start, 20*time.Millisecond, RealTime)

	ticks := 0
	tc.AddListener(func(time.Time) { ticks++ })

	began := time.Now()
	<-tc.Start(60 * time.Millisecond)
	elapsed := time.Since(began)

	if ticks != 3 {
		t.Fatalf("ticks = %d, want 3", ticks)
	}
	if elapsed < 50*time.Millisecond {
		t.Errorf("real-time run finished in %v, expected at least ~60ms", elapsed)
	}
}
