package session

import "sync"

// item is one unit of work for the Runner loop.
type item struct {
	ev Event

	// reply receives Update's error for synchronous submissions.
	reply chan error

	// fn runs against the Machine on the loop goroutine (queries).
	fn   func(*Machine)
	done chan struct{}
}

// inbox is a thread-safe unbounded FIFO feeding the Runner.
//
// Producers are player input, fired timers and fetch goroutines; the only
// consumer is Runner.Run. signal has a buffer of one so bursts of enqueues
// coalesce into a single wake-up.
type inbox struct {
	mu     sync.Mutex
	items  []item
	closed bool
	signal chan struct{}
}

func newInbox() *inbox {
	return &inbox{
		items:  make([]item, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an item. Returns false if the inbox is closed.
func (q *inbox) Enqueue(it item) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, it)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front item without blocking.
func (q *inbox) TryDequeue() (item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return item{}, false
	}
	it := q.items[0]
	q.items[0] = item{}
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	return it, true
}

// Wait returns the wake-up channel. It is closed by Close.
func (q *inbox) Wait() <-chan struct{} {
	return q.signal
}

// Done reports whether the inbox is closed and drained.
func (q *inbox) Done() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.items) == 0
}

// Close rejects further items and wakes the consumer.
func (q *inbox) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
