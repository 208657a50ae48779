package core

import "sync"

// Queue - bounded FIFO for stream chunks.
// Single producer (demuxer), single consumer (playback sink).
// Overflow drops the oldest chunk, so a stalled consumer can never
// block the transport read loop.
type Queue struct {
	mu      sync.Mutex
	items   [][]byte
	max     int
	dropped int
}

func NewQueue(max int) *Queue {
	if max <= 0 {
		max = 64
	}
	return &Queue{max: max}
}

// Push - returns number of chunks dropped to make room (0 or 1)
func (q *Queue) Push(b []byte) (dropped int) {
	q.mu.Lock()
	if len(q.items) == q.max {
		q.items = q.items[1:]
		q.dropped++
		dropped = 1
	}
	q.items = append(q.items, b)
	q.mu.Unlock()
	return
}

// Pop - returns nil on empty queue
func (q *Queue) Pop() (b []byte) {
	q.mu.Lock()
	if len(q.items) > 0 {
		b = q.items[0]
		q.items = q.items[1:]
	}
	q.mu.Unlock()
	return
}

func (q *Queue) Len() int {
	q.mu.Lock()
	n := len(q.items)
	q.mu.Unlock()
	return n
}

// Flush - drop everything, returns number of dropped chunks
func (q *Queue) Flush() int {
	q.mu.Lock()
	n := len(q.items)
	q.items = nil
	q.mu.Unlock()
	return n
}

func (q *Queue) Dropped() int {
	q.mu.Lock()
	n := q.dropped
	q.mu.Unlock()
	return n
}
