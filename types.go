// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package canal

// Queue is the combined producer-consumer interface for a FIFO queue.
//
// Queue provides non-blocking Enqueue and Dequeue operations. Both operations
// return ErrWouldBlock when they cannot proceed (queue full or empty).
//
// Two implementations are provided:
//
//   - Ring: bounded lock-free ring buffer (CAS-based, per-slot sequence numbers)
//   - MutexQueue: unbounded lock-based queue
//
// Either can serve as the backing store of a channel; see Builder.
//
// The interface intentionally excludes length because accurate counts in
// lock-free algorithms require expensive cross-core synchronization.
// The channel layer tracks its own item count in shared state.
type Queue[T any] interface {
	Producer[T]
	QueueConsumer[T]

	// Cap returns the queue capacity, or 0 if the queue is unbounded.
	Cap() int
}

// Producer is the interface for enqueueing elements.
//
// The element is passed by pointer to avoid copying large structs. The queue
// stores a copy of the pointed-to value, so the original can be modified
// after Enqueue returns. On failure the pointed-to value is untouched and
// remains with the caller.
type Producer[T any] interface {
	// Enqueue adds an element to the queue (non-blocking).
	// The element is copied into the queue's internal buffer.
	// Returns nil on success, ErrWouldBlock if the queue is full.
	//
	// Safe for concurrent use by multiple goroutines.
	Enqueue(elem *T) error
}

// QueueConsumer is the interface for dequeueing elements.
//
// The element is returned by value (copied out of the queue's internal
// buffer). The original slot is cleared to allow garbage collection of
// referenced objects.
type QueueConsumer[T any] interface {
	// Dequeue removes and returns an element from the queue (non-blocking).
	// Returns the dequeued element on success.
	// Returns (zero-value, ErrWouldBlock) if the queue is empty.
	//
	// Safe for concurrent use by multiple goroutines.
	Dequeue() (T, error)
}

// roundToPow2 rounds n up to the next power of 2, minimum 2.
func roundToPow2(n int) int {
	if n < 2 {
		return 2
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}

// pad is cache line padding to prevent false sharing.
type pad [64]byte

// padShort is padding to fill cache line after 8-byte field.
type padShort [64 - 8]byte
