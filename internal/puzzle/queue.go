package puzzle

import "sync"

// Queue is the FIFO backlog of puzzles waiting to be played.
//
// The session is the single consumer; the mutex only guards against a
// fetch goroutine enqueuing while the session inspects the length.
type Queue struct {
	mu      sync.Mutex
	puzzles []Puzzle
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{puzzles: make([]Puzzle, 0, 16)}
}

// EnqueueBatch appends puzzles to the tail, preserving feed order.
func (q *Queue) EnqueueBatch(batch []Puzzle) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.puzzles = append(q.puzzles, batch...)
}

// Dequeue removes and returns the head. Returns (Puzzle{}, false) if empty.
func (q *Queue) Dequeue() (Puzzle, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.puzzles) == 0 {
		return Puzzle{}, false
	}

	p := q.puzzles[0]

	// Clear the slot so the backing array does not pin solution slices.
	q.puzzles[0] = Puzzle{}
	if len(q.puzzles) == 1 {
		q.puzzles = q.puzzles[:0]
	} else {
		q.puzzles = q.puzzles[1:]
	}
	return p, true
}

// IsEmpty reports whether no puzzles remain.
func (q *Queue) IsEmpty() bool {
	return q.Len() == 0
}

// Len returns the number of queued puzzles.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.puzzles)
}

// Clear drops every queued puzzle.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.puzzles = nil
}
