// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package canal

import (
	"sync"

	"github.com/eapache/queue"
)

// MutexQueue is an unbounded lock-based multi-producer multi-consumer queue.
//
// It implements the same Queue contract as Ring and is interchangeable with
// it as a channel backing store (see Builder.Locked). Use it when the
// workload cannot tolerate a fixed capacity, or as a baseline against the
// lock-free ring; the trade is one mutex acquisition per operation and
// unbounded growth under producer pressure.
type MutexQueue[T any] struct {
	mu sync.Mutex
	q  *queue.Queue
}

// NewMutexQueue creates an empty unbounded queue.
func NewMutexQueue[T any]() *MutexQueue[T] {
	return &MutexQueue[T]{q: queue.New()}
}

// Enqueue adds an element to the queue. It never fails: the queue grows as
// needed.
func (m *MutexQueue[T]) Enqueue(elem *T) error {
	m.mu.Lock()
	m.q.Add(*elem)
	m.mu.Unlock()
	return nil
}

// Dequeue removes and returns the oldest element.
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
func (m *MutexQueue[T]) Dequeue() (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.q.Length() == 0 {
		var zero T
		return zero, ErrWouldBlock
	}
	return m.q.Remove().(T), nil
}

// Cap returns 0: the queue is unbounded.
func (m *MutexQueue[T]) Cap() int {
	return 0
}

// Len returns the number of queued elements. Unlike the lock-free ring, the
// count here is exact: it is taken under the queue's own lock.
func (m *MutexQueue[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.q.Length()
}
