package live_test

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/robertof/go-miband-heartrate/device"
	"github.com/robertof/go-miband-heartrate/live"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

func newStore(t *testing.T, clock *fakeClock) *live.Store {
	t.Helper()

	s, err := live.New(live.DefaultConfig, clock.Now)

	if err != nil {
		t.Fatalf("live.New(%+v) got error: %v", live.DefaultConfig, err)
	}

	return s
}

func reading(clock *fakeClock, v uint8) device.Reading {
	return device.Reading{
		Value:             v,
		DeviceName:        "Mi Smart Band 4",
		HasDeviceName:     true,
		SignalStrength:    -60,
		HasSignalStrength: true,
		ObservedAt:        clock.Now(),
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	for _, cfg := range []live.Config{
		{HistoryCapacity: 0, StaleAfter: time.Second},
		{HistoryCapacity: 60, StaleAfter: 0},
	} {
		if _, err := live.New(cfg, nil); err == nil {
			t.Fatalf("live.New(%+v): expected error", cfg)
		}
	}
}

func TestSnapshot_Empty(t *testing.T) {
	clock := newFakeClock()
	s := newStore(t, clock)

	got := s.Snapshot()

	if got.HasReading || got.Generation != 0 || len(got.History) != 0 {
		t.Fatalf("Snapshot() on empty store: got %v", got)
	}

	if got.Fresh() {
		t.Fatalf("Snapshot() on empty store: got fresh, wanted stale")
	}
}

func TestUpdate_Snapshot(t *testing.T) {
	clock := newFakeClock()
	s := newStore(t, clock)

	s.Update(reading(clock, 72))
	got := s.Snapshot()

	want := live.Snapshot{
		HasReading:        true,
		Value:             72,
		DeviceName:        "Mi Smart Band 4",
		SignalStrength:    -60,
		HasSignalStrength: true,
		LastUpdate:        clock.Now(),
		Elapsed:           0,
		Freshness:         live.Fresh,
		History:           []uint8{72},
		Generation:        1,
	}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Snapshot(): got %+#v, wanted %+#v", got, want)
	}
}

func TestUpdate_ZeroObservedAtUsesClock(t *testing.T) {
	clock := newFakeClock()
	s := newStore(t, clock)

	clock.Advance(3 * time.Second)
	s.Update(device.Reading{Value: 80})

	if got := s.Snapshot(); !got.LastUpdate.Equal(clock.Now()) {
		t.Fatalf("Snapshot().LastUpdate: got %v, wanted %v", got.LastUpdate, clock.Now())
	}
}

func TestUpdate_OlderReadingPanics(t *testing.T) {
	clock := newFakeClock()
	s := newStore(t, clock)

	clock.Advance(time.Second)
	s.Update(reading(clock, 70))

	stale := reading(clock, 71)
	stale.ObservedAt = stale.ObservedAt.Add(-time.Millisecond)

	defer func() {
		if recover() == nil {
			t.Fatalf("Update() with an older reading did not panic")
		}

		if got := s.Generation(); got != 1 {
			t.Fatalf("Generation() after rejected update: got %d, wanted 1", got)
		}
	}()

	s.Update(stale)
}

func TestHistory_InOrder(t *testing.T) {
	clock := newFakeClock()
	s := newStore(t, clock)

	var want []uint8

	for v := uint8(1); v <= 60; v++ {
		s.Update(reading(clock, v))
		want = append(want, v)
	}

	if got := s.Snapshot().History; !reflect.DeepEqual(got, want) {
		t.Fatalf("History after 60 updates: got %v, wanted %v", got, want)
	}
}

func TestHistory_EvictsOldest(t *testing.T) {
	clock := newFakeClock()
	s := newStore(t, clock)

	for v := uint8(1); v <= 61; v++ {
		s.Update(reading(clock, v))
	}

	var want []uint8

	for v := uint8(2); v <= 61; v++ {
		want = append(want, v)
	}

	got := s.Snapshot()

	if !reflect.DeepEqual(got.History, want) {
		t.Fatalf("History after 61 updates: got %v, wanted %v", got.History, want)
	}

	if got.Generation != 61 {
		t.Fatalf("Generation after 61 updates: got %d, wanted 61", got.Generation)
	}
}

func TestSnapshot_IsACopy(t *testing.T) {
	clock := newFakeClock()
	s := newStore(t, clock)

	s.Update(reading(clock, 60))
	snap := s.Snapshot()
	snap.History[0] = 0

	if got := s.Snapshot().History[0]; got != 60 {
		t.Fatalf("mutating a snapshot leaked into the store: got %d, wanted 60", got)
	}
}

func TestSnapshot_Elapsed(t *testing.T) {
	clock := newFakeClock()
	s := newStore(t, clock)

	s.Update(reading(clock, 65))

	if got := s.Snapshot().ElapsedSeconds(); got != 0 {
		t.Fatalf("ElapsedSeconds() right after update: got %d, wanted 0", got)
	}

	var prev int64

	for i := 1; i <= 12; i++ {
		clock.Advance(time.Second)

		got := s.Snapshot()

		if got.ElapsedSeconds() <= prev {
			t.Fatalf("ElapsedSeconds() did not increase: got %d after %d", got.ElapsedSeconds(), prev)
		}

		prev = got.ElapsedSeconds()

		if wantFresh := i < 10; got.Fresh() != wantFresh {
			t.Fatalf("Fresh() at %ds: got %v, wanted %v", i, got.Fresh(), wantFresh)
		}
	}

	s.Update(reading(clock, 66))

	if got := s.Snapshot(); got.ElapsedSeconds() != 0 || !got.Fresh() {
		t.Fatalf("Snapshot() after a new update: got %v, wanted elapsed 0 and fresh", got)
	}
}

func TestWaitForChange_ReturnsImmediatelyWhenBehind(t *testing.T) {
	clock := newFakeClock()
	s := newStore(t, clock)

	s.Update(reading(clock, 70))
	s.Update(reading(clock, 71))

	got, err := s.WaitForChange(context.Background(), 0)

	if err != nil {
		t.Fatalf("WaitForChange(0) got error: %v", err)
	}

	// coalesced: only the latest generation is visible.
	if got.Generation != 2 || got.Value != 71 {
		t.Fatalf("WaitForChange(0): got %v, wanted generation 2 with value 71", got)
	}
}

func TestWaitForChange_BroadcastsToAllWaiters(t *testing.T) {
	clock := newFakeClock()
	s := newStore(t, clock)

	const waiters = 8

	var wg sync.WaitGroup
	results := make(chan live.Snapshot, waiters)

	for i := 0; i < waiters; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			snap, err := s.WaitForChange(context.Background(), 0)

			if err != nil {
				t.Errorf("WaitForChange(0) got error: %v", err)
				return
			}

			results <- snap
		}()
	}

	// nothing may be delivered before the update.
	select {
	case snap := <-results:
		t.Fatalf("WaitForChange(0) returned before any update: %v", snap)
	case <-time.After(50 * time.Millisecond):
	}

	s.Update(reading(clock, 88))
	wg.Wait()
	close(results)

	n := 0

	for snap := range results {
		n++

		if snap.Generation != 1 || snap.Value != 88 || !reflect.DeepEqual(snap.History, []uint8{88}) {
			t.Fatalf("waiter got %v, wanted generation 1 with value 88", snap)
		}
	}

	if n != waiters {
		t.Fatalf("got %d results, wanted %d", n, waiters)
	}
}

func TestWaitForChange_OnlyNewerGenerations(t *testing.T) {
	clock := newFakeClock()
	s := newStore(t, clock)

	s.Update(reading(clock, 70))

	done := make(chan live.Snapshot)

	go func() {
		snap, _ := s.WaitForChange(context.Background(), 1)
		done <- snap
	}()

	select {
	case snap := <-done:
		t.Fatalf("WaitForChange(1) returned without a new update: %v", snap)
	case <-time.After(50 * time.Millisecond):
	}

	s.Update(reading(clock, 75))

	select {
	case snap := <-done:
		if snap.Generation <= 1 {
			t.Fatalf("WaitForChange(1): got generation %d", snap.Generation)
		}
	case <-time.After(time.Second):
		t.Fatalf("WaitForChange(1) did not return after update")
	}
}

func TestWaitForChange_Cancelled(t *testing.T) {
	clock := newFakeClock()
	s := newStore(t, clock)

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := s.WaitForChange(ctx, 0)

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("WaitForChange() after cancel: got %v, wanted %v", err, context.Canceled)
	}
}

func TestConcurrentReadersNeverSeeTornState(t *testing.T) {
	clock := newFakeClock()
	s := newStore(t, clock)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	for i := 0; i < 4; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			var gen uint64

			for {
				snap, err := s.WaitForChange(ctx, gen)

				if err != nil {
					return
				}

				if len(snap.History) > live.DefaultHistoryCapacity {
					t.Errorf("snapshot history too long: %d", len(snap.History))
					return
				}

				// every update pushes its value, so the newest history entry is the current value.
				if snap.History[len(snap.History)-1] != snap.Value {
					t.Errorf("torn snapshot: value %d, history tail %d", snap.Value, snap.History[len(snap.History)-1])
					return
				}

				gen = snap.Generation
			}
		}()
	}

	for i := 0; i < 500; i++ {
		s.Update(reading(clock, uint8(i)))
	}

	cancel()
	wg.Wait()
}
