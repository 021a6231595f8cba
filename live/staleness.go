package live

import (
	"strconv"
	"time"
)

type Freshness uint8

const (
	Stale Freshness = iota
	Fresh
)

func (f Freshness) String() string {
	switch f {
	case Stale:
		return "Stale"
	case Fresh:
		return "Fresh"
	default:
		panic("unknown freshness value: " + strconv.Itoa(int(f)))
	}
}

// Classify reports Fresh iff elapsed is strictly below threshold.
func Classify(elapsed, threshold time.Duration) Freshness {
	if elapsed < threshold {
		return Fresh
	}

	return Stale
}
