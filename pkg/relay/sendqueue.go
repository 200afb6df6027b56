package relay

import "sync"

// sendQueue is a bounded outbound queue for one session. When full the oldest
// frame is discarded so a slow observer always receives the freshest positions
// and never slows down the broadcaster.
type sendQueue struct {
	mutex    sync.Mutex
	items    [][]byte
	capacity int
	dropped  int
	closed   bool

	ready chan struct{}
}

func newSendQueue(capacity int) *sendQueue {
	if capacity < 1 {
		capacity = 1
	}

	return &sendQueue{
		items:    make([][]byte, 0, capacity),
		capacity: capacity,
		ready:    make(chan struct{}, 1),
	}
}

// push enqueues frame and reports whether an older frame had to be dropped
func (q *sendQueue) push(frame []byte) bool {
	q.mutex.Lock()

	if q.closed {
		q.mutex.Unlock()
		return false
	}

	dropped := false
	if len(q.items) >= q.capacity {
		q.items[0] = nil
		q.items = q.items[1:]
		q.dropped++
		dropped = true
	}
	q.items = append(q.items, frame)
	q.mutex.Unlock()

	q.wake()

	return dropped
}

// next blocks until a frame is available. It returns false once the queue is
// closed and drained.
func (q *sendQueue) next() ([]byte, bool) {
	for {
		q.mutex.Lock()
		if len(q.items) > 0 {
			frame := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.mutex.Unlock()
			return frame, true
		}
		if q.closed {
			q.mutex.Unlock()
			return nil, false
		}
		q.mutex.Unlock()

		<-q.ready
	}
}

func (q *sendQueue) close() {
	q.mutex.Lock()
	q.closed = true
	q.mutex.Unlock()

	q.wake()
}

func (q *sendQueue) droppedCount() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	return q.dropped
}

func (q *sendQueue) wake() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
