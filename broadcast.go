// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package canal

import "sync"

// Broadcast delivers each sent value to every registered Consumer.
//
// Each Consumer owns a private channel; Send copies the value into all of
// them, so consumers progress independently and a slow consumer only loses
// messages once its own buffer fills. Broadcast does not participate in the
// channel refcount protocol beyond owning one Sender per consumer.
//
// Safe for concurrent use: the consumer list is mutex-guarded.
type Broadcast[T any] struct {
	mu      sync.Mutex
	closed  bool
	senders map[*Consumer[T]]*Sender[T]
}

// NewBroadcast creates a Broadcast with no consumers.
func NewBroadcast[T any]() *Broadcast[T] {
	return &Broadcast[T]{senders: make(map[*Consumer[T]]*Sender[T])}
}

// Consume registers and returns a new Consumer receiving all values sent
// after this call, buffered up to capacity (rounded up to a power of 2).
func (b *Broadcast[T]) Consume(capacity int) *Consumer[T] {
	s, r := NewChannel[T](capacity)
	cons := &Consumer[T]{b: b, r: r}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		// Too late to register: hand back a consumer that reports
		// ErrDisconnected, matching the channels of existing consumers.
		s.Close()
		return cons
	}
	b.senders[cons] = s
	b.mu.Unlock()
	return cons
}

// Send delivers elem to every live consumer.
//
// Delivery is attempted to all consumers even after a failure; the first
// error is returned (ErrWouldBlock if some consumer's buffer is full,
// ErrDisconnected after Close). A send to zero consumers succeeds trivially.
func (b *Broadcast[T]) Send(elem *T) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrDisconnected
	}
	var first error
	for _, s := range b.senders {
		if err := s.Send(elem); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Close disconnects every consumer's channel. Consumers drain their buffered
// messages and then see ErrDisconnected. Close is idempotent.
func (b *Broadcast[T]) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrDisconnected
	}
	b.closed = true
	for cons, s := range b.senders {
		s.Close()
		delete(b.senders, cons)
	}
	return nil
}

// drop deregisters one consumer and closes its sending half.
func (b *Broadcast[T]) drop(cons *Consumer[T]) {
	b.mu.Lock()
	s := b.senders[cons]
	delete(b.senders, cons)
	b.mu.Unlock()
	if s != nil {
		s.Close()
	}
}

// Consumer receives values from a Broadcast on its own private channel.
//
// Like Receiver, a Consumer handle is confined to one goroutine; use Clone
// to add consuming goroutines.
type Consumer[T any] struct {
	b *Broadcast[T]
	r *Receiver[T]
}

// Recv returns the next broadcast value, blocking while none is buffered.
// Returns ErrDisconnected after the Broadcast is closed and this consumer's
// buffer has drained.
func (c *Consumer[T]) Recv() (T, error) {
	return c.r.Recv()
}

// Clone registers an independent sibling consumer with its own buffer of the
// given capacity. The clone only observes values sent after this call.
func (c *Consumer[T]) Clone(capacity int) *Consumer[T] {
	return c.b.Consume(capacity)
}

// Close deregisters this consumer. Values sent afterwards are no longer
// copied to it. Close is idempotent.
func (c *Consumer[T]) Close() error {
	c.b.drop(c)
	return c.r.Close()
}
