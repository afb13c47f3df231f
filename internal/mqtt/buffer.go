package mqtt

import "log/slog"

// bufferedMsg is a serialized message waiting for the broker.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// ringBuffer keeps the newest messages published while disconnected,
// dropping the oldest once full. The caller synchronizes access.
type ringBuffer struct {
	slots   []bufferedMsg
	start   int // oldest message
	n       int
	full    bool // warned since the last drain
	dropped int
	logger  *slog.Logger
}

// newRingBuffer creates a buffer holding up to size messages.
// A size of 0 drops everything.
func newRingBuffer(size int, logger *slog.Logger) *ringBuffer {
	if logger == nil {
		logger = slog.Default()
	}
	if size < 0 {
		size = 0
	}
	return &ringBuffer{slots: make([]bufferedMsg, size), logger: logger}
}

func (r *ringBuffer) push(msg bufferedMsg) {
	size := len(r.slots)
	if size == 0 {
		r.dropped++
		return
	}
	if r.n < size {
		r.slots[(r.start+r.n)%size] = msg
		r.n++
		return
	}

	if !r.full {
		r.logger.Warn("mqtt buffer full, dropping oldest", "size", size, "topic", r.slots[r.start].topic)
		r.full = true
	}
	r.dropped++
	r.slots[r.start] = msg
	r.start = (r.start + 1) % size
}

// drainAll returns the buffered messages oldest first and empties the buffer.
func (r *ringBuffer) drainAll() []bufferedMsg {
	if r.n == 0 {
		return nil
	}
	out := make([]bufferedMsg, 0, r.n)
	for i := 0; i < r.n; i++ {
		j := (r.start + i) % len(r.slots)
		out = append(out, r.slots[j])
		r.slots[j] = bufferedMsg{}
	}
	r.start, r.n, r.full = 0, 0, false
	return out
}

// droppedTotal returns how many messages were discarded since creation.
func (r *ringBuffer) droppedTotal() int {
	return r.dropped
}

func (r *ringBuffer) len() int {
	return r.n
}
