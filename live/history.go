package live

import "strconv"

// History is a fixed-capacity ring buffer of values in arrival order. Once full, every
// push evicts the oldest value. Not safe for concurrent use; Store guards it.
type History struct {
	buf   []uint8
	start int
	size  int
}

func NewHistory(capacity int) *History {
	if capacity <= 0 {
		panic("live: history capacity must be positive, got " + strconv.Itoa(capacity))
	}

	return &History{buf: make([]uint8, capacity)}
}

func (h *History) Push(v uint8) {
	if h.size < len(h.buf) {
		h.buf[(h.start+h.size)%len(h.buf)] = v
		h.size++
		return
	}

	h.buf[h.start] = v
	h.start = (h.start + 1) % len(h.buf)
}

func (h *History) Len() int {
	return h.size
}

func (h *History) Cap() int {
	return len(h.buf)
}

// Values returns a copy of the buffered values, oldest first.
func (h *History) Values() []uint8 {
	out := make([]uint8, h.size)

	for i := 0; i < h.size; i++ {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}

	return out
}
