package live

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robertof/go-miband-heartrate/device"
)

const (
	DefaultHistoryCapacity = 60
	DefaultStaleAfter      = 10 * time.Second
)

type Config struct {
	HistoryCapacity int
	// Readings older than this are reported as Stale.
	StaleAfter time.Duration
}

var DefaultConfig = Config{
	HistoryCapacity: DefaultHistoryCapacity,
	StaleAfter:      DefaultStaleAfter,
}

type Clock func() time.Time

// Snapshot is a consistent copy of the store at one generation. It shares no memory
// with the store.
type Snapshot struct {
	HasReading        bool
	Value             uint8
	DeviceName        string
	SignalStrength    int
	HasSignalStrength bool

	LastUpdate time.Time
	Elapsed    time.Duration
	Freshness  Freshness

	History    []uint8
	Generation uint64
}

func (s Snapshot) ElapsedSeconds() int64 {
	return int64(s.Elapsed / time.Second)
}

func (s Snapshot) Fresh() bool {
	return s.Freshness == Fresh
}

func (s Snapshot) String() string {
	return fmt.Sprintf("snapshot[gen=%d, value=%d, elapsed=%v, %v, history=%d]",
		s.Generation, s.Value, s.Elapsed, s.Freshness, len(s.History))
}

// Store holds the latest reading, a bounded history and the generation counter.
// Update must only be called from a single ingestion goroutine; Snapshot and
// WaitForChange are safe for any number of concurrent readers.
type Store struct {
	cfg Config
	now Clock

	mu         sync.RWMutex
	current    device.Reading
	hasReading bool
	history    *History
	lastUpdate time.Time
	bc         broadcaster
}

func New(cfg Config, now Clock) (*Store, error) {
	if cfg.HistoryCapacity <= 0 {
		return nil, fmt.Errorf("live: history capacity must be positive, got %d", cfg.HistoryCapacity)
	}

	if cfg.StaleAfter <= 0 {
		return nil, fmt.Errorf("live: staleness threshold must be positive, got %v", cfg.StaleAfter)
	}

	if now == nil {
		now = time.Now
	}

	return &Store{
		cfg:        cfg,
		now:        now,
		history:    NewHistory(cfg.HistoryCapacity),
		lastUpdate: now(),
		bc:         newBroadcaster(),
	}, nil
}

func (s *Store) Config() Config {
	return s.cfg
}

// Update records a new reading and wakes every waiter. A zero ObservedAt is replaced
// by the store clock.
func (s *Store) Update(r device.Reading) {
	if r.ObservedAt.IsZero() {
		r.ObservedAt = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ObservedAt.Before(s.lastUpdate) {
		panic(fmt.Sprintf("live: update at %v is older than last update at %v (multiple writers?)",
			r.ObservedAt, s.lastUpdate))
	}

	s.current = r
	s.hasReading = true
	s.history.Push(r.Value)
	s.lastUpdate = r.ObservedAt
	s.bc.advance()
}

func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.bc.generation
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snapshotLocked()
}

// WaitForChange blocks until the generation is greater than lastSeen and returns the
// snapshot of the latest generation. Updates that happen between two calls are
// coalesced. The only way to give up waiting is to cancel ctx.
func (s *Store) WaitForChange(ctx context.Context, lastSeen uint64) (Snapshot, error) {
	for {
		s.mu.RLock()
		ready, changed := s.bc.wait(lastSeen)

		if ready {
			snap := s.snapshotLocked()
			s.mu.RUnlock()

			return snap, nil
		}

		s.mu.RUnlock()

		select {
		case <-ctx.Done():
			return Snapshot{}, ctx.Err()
		case <-changed:
		}
	}
}

func (s *Store) snapshotLocked() Snapshot {
	elapsed := s.now().Sub(s.lastUpdate)

	if elapsed < 0 {
		elapsed = 0
	}

	snap := Snapshot{
		HasReading: s.hasReading,
		LastUpdate: s.lastUpdate,
		Elapsed:    elapsed,
		Freshness:  Stale,
		History:    s.history.Values(),
		Generation: s.bc.generation,
	}

	if s.hasReading {
		snap.Value = s.current.Value
		snap.DeviceName = s.current.DeviceName
		snap.SignalStrength = s.current.SignalStrength
		snap.HasSignalStrength = s.current.HasSignalStrength
		snap.Freshness = Classify(elapsed, s.cfg.StaleAfter)
	}

	return snap
}
