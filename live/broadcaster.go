package live

// broadcaster pairs a generation counter with a channel that is closed, and replaced,
// every time the counter advances. Closing releases every goroutine selecting on the
// old channel at once, so waiters see the latest generation rather than a queue of
// intermediate ones.
//
// broadcaster has no lock of its own: every method must be called with the owning
// Store's lock held (write lock for advance).
type broadcaster struct {
	generation uint64
	changed    chan struct{}
}

func newBroadcaster() broadcaster {
	return broadcaster{changed: make(chan struct{})}
}

func (b *broadcaster) advance() {
	b.generation++

	close(b.changed)
	b.changed = make(chan struct{})
}

// wait reports whether the generation already moved past lastSeen. If it didn't, the
// returned channel is closed on the next advance.
func (b *broadcaster) wait(lastSeen uint64) (bool, <-chan struct{}) {
	if b.generation > lastSeen {
		return true, nil
	}

	return false, b.changed
}
