package mqtt

import "github.com/sirupsen/logrus"

// bufferedMsg is a message held back while the broker is unreachable.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// ringBuffer keeps the newest messages up to a fixed capacity, dropping the
// oldest. Not safe for concurrent use.
type ringBuffer struct {
	msgs    []bufferedMsg
	next    int
	n       int
	dropped int
	log     logrus.FieldLogger
}

func newRingBuffer(capacity int, log logrus.FieldLogger) *ringBuffer {
	return &ringBuffer{msgs: make([]bufferedMsg, capacity), log: log}
}

func (r *ringBuffer) push(msg bufferedMsg) {
	if r.n == len(r.msgs) {
		if r.dropped == 0 {
			r.log.WithField("capacity", len(r.msgs)).Warn("offline buffer full, dropping oldest")
		}
		r.dropped++
	} else {
		r.n++
	}
	r.msgs[r.next] = msg
	r.next = (r.next + 1) % len(r.msgs)
}

// drain returns the buffered messages oldest first and empties the buffer.
func (r *ringBuffer) drain() []bufferedMsg {
	if r.n == 0 {
		return nil
	}
	out := make([]bufferedMsg, 0, r.n)
	start := (r.next - r.n + len(r.msgs)) % len(r.msgs)
	for i := 0; i < r.n; i++ {
		out = append(out, r.msgs[(start+i)%len(r.msgs)])
	}
	if r.dropped > 0 {
		r.log.WithField("dropped", r.dropped).Warn("offline buffer overflowed")
	}
	r.next, r.n, r.dropped = 0, 0, 0
	return out
}

func (r *ringBuffer) len() int {
	return r.n
}
