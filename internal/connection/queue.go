package connection

import (
	"github.com/rickgao/fleetwatch/internal/buffer"
)

// outbound is an envelope serialized at Send time and held until flush.
type outbound struct {
	Type  string
	Frame []byte
}

// messageQueue holds envelopes sent while the channel is down.
type messageQueue struct {
	buf *buffer.GrowableBuffer[outbound]
}

func newMessageQueue(limit int) *messageQueue {
	initial := 16
	if limit > 0 && limit < initial {
		initial = limit
	}
	return &messageQueue{buf: buffer.NewBoundedBuffer[outbound](initial, limit)}
}

// enqueue appends msg. Returns true if the oldest entry was evicted to
// make room.
func (q *messageQueue) enqueue(msg outbound) (evicted bool) {
	before := q.buf.Stats().TotalDropped
	q.buf.Send(msg)
	return q.buf.Stats().TotalDropped > before
}

// flush writes queued frames head first. It stops at the first write
// error and leaves that frame and everything behind it queued.
func (q *messageQueue) flush(write func([]byte) error) (sent int, err error) {
	for {
		msg, ok := q.buf.Peek()
		if !ok {
			return sent, nil
		}
		if err := write(msg.Frame); err != nil {
			return sent, err
		}
		q.buf.TryReceive()
		sent++
	}
}

func (q *messageQueue) len() int {
	return q.buf.Len()
}

func (q *messageQueue) dropped() int64 {
	return q.buf.Stats().TotalDropped
}
