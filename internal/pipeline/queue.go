package pipeline

import "sync"

// queue is a bounded multi-producer channel between two adjacent stages.
// It tracks a producer reference count: once every producer has released it
// and the buffer has drained, the queue is permanently closed and receives
// return ok=false immediately instead of blocking. A force-close (abort)
// discards buffered messages and unblocks every waiter at once.
type queue struct {
	mu        sync.Mutex
	notEmpty  *sync.Cond
	notFull   *sync.Cond
	buf       []any
	capacity  int
	producers int
	closed    bool
}

func newQueue(size int) *queue {
	if size < 1 {
		size = 1
	}
	q := &queue{capacity: size}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// acquire registers one more producer.
func (q *queue) acquire() {
	q.mu.Lock()
	q.producers++
	q.mu.Unlock()
}

// release drops one producer reference. When the count reaches zero the
// queue stops accepting sends; it closes as soon as the buffer drains.
func (q *queue) release() {
	q.mu.Lock()
	q.producers--
	if q.producers <= 0 && len(q.buf) == 0 {
		q.closed = true
	}
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
	q.mu.Unlock()
}

// put blocks while the queue is full. Sending to a closed queue is a no-op;
// the return value reports whether the message was accepted.
func (q *queue) put(v any) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.buf) >= q.capacity && !q.closed {
		q.notFull.Wait()
	}
	if q.closed {
		return false
	}
	q.buf = append(q.buf, v)
	q.notEmpty.Signal()
	return true
}

// get blocks until a message is available or the queue closes.
// ok=false is the end-of-stream poison.
func (q *queue) get() (any, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.buf) == 0 && !q.closed && q.producers > 0 {
		q.notEmpty.Wait()
	}
	if len(q.buf) == 0 {
		q.closed = true
		q.notEmpty.Broadcast()
		return nil, false
	}
	v := q.buf[0]
	q.buf = q.buf[1:]
	if q.producers <= 0 && len(q.buf) == 0 {
		q.closed = true
		q.notEmpty.Broadcast()
	}
	q.notFull.Signal()
	return v, true
}

// forceClose invalidates the queue: buffered messages are discarded and
// every blocked sender or receiver wakes up immediately.
func (q *queue) forceClose() {
	q.mu.Lock()
	q.closed = true
	q.buf = nil
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
	q.mu.Unlock()
}
