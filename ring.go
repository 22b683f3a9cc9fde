// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package canal

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// Ring is a CAS-based multi-producer multi-consumer bounded queue.
//
// Based on the bounded MPMC queue by Dmitry Vyukov (1024cores). Each slot
// carries a sequence number that hands slot ownership between producers and
// consumers without locks:
//
//   - seq == tail:     slot is free, a producer may claim it
//   - seq == head + 1: slot is published, a consumer may claim it
//
// A successful dequeue advances the slot's sequence by the capacity, making
// the slot writable again after one full wrap. Correctness is enforced
// entirely through the per-slot sequence handshake (release stores, acquire
// loads); the position counters themselves only need relaxed loads and
// acq-rel CAS.
//
// Memory: n slots (16+ bytes per slot)
type Ring[T any] struct {
	_        pad
	tail     atomix.Uint64 // Producer index
	_        pad
	head     atomix.Uint64 // Consumer index
	_        pad
	buffer   []ringSlot[T]
	mask     uint64
	capacity uint64
}

type ringSlot[T any] struct {
	seq  atomix.Uint64
	data T
	_    padShort // Pad to cache line
}

// NewRing creates a new bounded MPMC ring queue.
// Capacity rounds up silently to the next power of 2, minimum 2; callers
// must not rely on the exact capacity they requested (check Cap).
func NewRing[T any](capacity int) *Ring[T] {
	n := uint64(roundToPow2(capacity))
	q := &Ring[T]{
		buffer:   make([]ringSlot[T], n),
		mask:     n - 1,
		capacity: n,
	}

	for i := uint64(0); i < n; i++ {
		q.buffer[i].seq.StoreRelaxed(i)
	}

	return q
}

// Enqueue adds an element to the queue.
// Returns ErrWouldBlock if the queue is full; the pointed-to value is
// untouched and remains with the caller.
func (q *Ring[T]) Enqueue(elem *T) error {
	sw := spin.Wait{}
	for {
		tail := q.tail.LoadRelaxed()
		slot := &q.buffer[tail&q.mask]
		seq := slot.seq.LoadAcquire()
		diff := int64(seq) - int64(tail)

		if diff == 0 {
			if q.tail.CompareAndSwapAcqRel(tail, tail+1) {
				slot.data = *elem
				slot.seq.StoreRelease(tail + 1)
				return nil
			}
		} else if diff < 0 {
			return ErrWouldBlock
		}
		sw.Once()
	}
}

// Dequeue removes and returns the oldest published element.
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
func (q *Ring[T]) Dequeue() (T, error) {
	sw := spin.Wait{}
	for {
		head := q.head.LoadRelaxed()
		slot := &q.buffer[head&q.mask]
		seq := slot.seq.LoadAcquire()
		diff := int64(seq) - int64(head+1)

		if diff == 0 {
			if q.head.CompareAndSwapAcqRel(head, head+1) {
				elem := slot.data
				var zero T
				slot.data = zero
				slot.seq.StoreRelease(head + q.capacity)
				return elem, nil
			}
		} else if diff < 0 {
			var zero T
			return zero, ErrWouldBlock
		}
		sw.Once()
	}
}

// Cap returns the queue capacity.
func (q *Ring[T]) Cap() int {
	return int(q.capacity)
}
