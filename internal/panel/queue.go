package panel

// Queue is a FIFO Scheduler drained explicitly by the caller.
type Queue struct {
	pending []func()
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Defer appends fn to the queue.
func (q *Queue) Defer(fn func()) {
	q.pending = append(q.pending, fn)
}

// Len returns the number of pending actions.
func (q *Queue) Len() int {
	return len(q.pending)
}

// Run executes the actions queued so far. Actions deferred while running
// wait for the next call.
func (q *Queue) Run() int {
	batch := q.pending
	q.pending = nil
	for _, fn := range batch {
		fn()
	}
	return len(batch)
}
