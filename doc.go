// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package canal provides low-level inter-goroutine communication primitives:
// a bounded lock-free MPMC ring queue, and a channel built on top of it that
// adds blocking receive, handle lifecycle tracking, and disconnect detection.
//
// # Layers
//
//   - Ring: fixed-capacity, lock-free multi-producer multi-consumer queue.
//     Non-blocking: Enqueue/Dequeue succeed or report ErrWouldBlock.
//   - Channel (Sender/Receiver): shared state over one Ring with an item
//     counter, sender/receiver reference counts, and a condvar-based sleep
//     mechanism. Adds blocking Recv, send-without-receivers fast-fail, and
//     a race-free disconnect/drain protocol.
//   - Broadcast/Consumer: one-to-many fan-out, each consumer on its own
//     private channel.
//   - MutexQueue: unbounded lock-based queue, interchangeable with Ring as
//     a channel backing store.
//
// # Quick Start
//
//	tx, rx := canal.NewChannel[int](1024)
//
//	go func() {
//	    defer tx.Close()
//	    for i := range 100 {
//	        v := i
//	        if err := tx.Send(&v); err != nil {
//	            return // full or disconnected
//	        }
//	    }
//	}()
//
//	for {
//	    v, err := rx.Recv() // blocks until data or disconnect
//	    if err != nil {
//	        break // canal.ErrDisconnected: all senders gone, buffer drained
//	    }
//	    process(v)
//	}
//
// Bare queues without channel semantics:
//
//	q := canal.NewRing[Event](4096)   // bounded, lock-free
//	q := canal.NewMutexQueue[Event]() // unbounded, lock-based
//
// Or via the builder:
//
//	q := canal.Build[Event](canal.New(4096))
//	tx, rx := canal.BuildChannel[Event](canal.New(4096).Locked())
//
// # Handles and Lifecycle
//
// Sender and Receiver are cheap handles over shared channel state. Clone
// creates additional handles; every handle must be closed exactly once.
//
//	tx2 := tx.Clone() // another producer
//	rx2 := rx.Clone() // another consumer
//
// Closing the last Sender disconnects the channel: blocked receivers wake,
// residual buffered items drain in order, then every receive reports
// ErrDisconnected. Closing the last Receiver also disconnects: residual
// items are discarded so nothing is stranded, and subsequent sends fail
// immediately with the value left in the caller's hands.
//
// A Receiver handle batches its bookkeeping in a goroutine-local counter and
// is therefore confined to a single goroutine; clone one Receiver per
// consuming goroutine. Sender.Send is safe for concurrent use, but a
// handle's Clone and Close must not race each other.
//
// # Blocking Model
//
// Operations run on ordinary goroutines; there is no scheduler of any kind
// in this package. Enqueue, Dequeue, Send and TryRecv are non-blocking
// (bounded CAS retry loops only). Recv is the single blocking operation: an
// empty, connected channel parks the caller on a mutex-guarded condition
// variable until the next Send or a disconnect. RecvContext additionally
// unblocks on context cancellation.
//
// # Ordering
//
// Items from a single producer are received in the order sent. Across
// producers the observed order is whatever interleaving the CAS races
// produce; no global order is promised.
//
// # Error Handling
//
//	ErrWouldBlock    transient: queue full (send side) or empty (receive side)
//	ErrDisconnected  terminal: no further data can ever flow
//
// ErrWouldBlock is a control flow signal sourced from
// [code.hybscloud.com/iox]; retry policy belongs to the caller:
//
//	backoff := iox.Backoff{}
//	for {
//	    err := tx.Send(&v)
//	    if err == nil {
//	        break
//	    }
//	    if !canal.IsWouldBlock(err) {
//	        return err
//	    }
//	    backoff.Wait()
//	}
//
// Internal-consistency violations (refcount underflow, a channel freed
// outside the disconnected state) panic: they indicate a broken invariant
// in the shared state machine, never a transient condition.
//
// # Capacity
//
// Ring and channel capacity rounds up silently to the next power of 2,
// minimum 2:
//
//	canal.NewRing[int](0)    // capacity 2
//	canal.NewRing[int](3)    // capacity 4
//	canal.NewRing[int](1000) // capacity 1024
//
// Callers must not rely on the exact capacity requested; check Cap.
//
// # Race Detection
//
// Go's race detector cannot observe the happens-before edges the ring
// establishes through per-slot sequence numbers with acquire-release
// semantics, and reports false positives on it. Stress tests incompatible
// with race detection are excluded via //go:build !race; the channel layer
// (mutex + condvar) is fully race-detector clean.
//
// # Dependencies
//
// This package uses [code.hybscloud.com/iox] for semantic errors,
// [code.hybscloud.com/atomix] for atomic primitives with explicit memory
// ordering, [code.hybscloud.com/spin] for CPU pause instructions, and
// [github.com/eapache/queue] as the backing store of MutexQueue.
package canal
