// Package queue provides the ordered, unbounded FIFO shared between the crawler's
// producer loops and their drain loops.
package queue

import (
	"sync"

	"github.com/ef-ds/deque"
)

// Queue is a concurrency safe FIFO queue without a capacity limit.
// A single producer and a single consumer is the expected usage, but any number
// of goroutines may push and pop concurrently.
type Queue[T any] struct {
	mu    sync.Mutex
	items deque.Deque
}

// New returns an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// Push appends item to the tail of the queue.
func (q *Queue[T]) Push(item T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items.PushBack(item)
}

// Pop removes and returns the head of the queue.
// If the queue is empty, the zero value and false are returned.
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	item, ok := q.items.PopFront()
	if !ok {
		var zero T
		return zero, false
	}
	return item.(T), true
}

// Len returns the current length of the queue.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// DrainAll detaches the entire content of the queue as one batch, in FIFO order.
// Items pushed after DrainAll returns start a fresh batch.
func (q *Queue[T]) DrainAll() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.items.Len()
	if n == 0 {
		return nil
	}
	batch := make([]T, 0, n)
	for {
		item, ok := q.items.PopFront()
		if !ok {
			break
		}
		batch = append(batch, item.(T))
	}
	return batch
}
