// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package canal

import (
	"context"

	"code.hybscloud.com/atomix"
)

// NewChannel creates a bounded multi-producer multi-consumer channel backed
// by a lock-free ring and returns its first Sender/Receiver pair.
//
// Capacity rounds up silently to the next power of 2, minimum 2. The
// capacity is a hard limit: Send fails with ErrWouldBlock when the ring is
// full instead of applying backpressure.
//
// Additional producers and consumers are created by cloning the handles;
// the channel disconnects when the last handle of either kind is closed.
func NewChannel[T any](capacity int) (*Sender[T], *Receiver[T]) {
	c := newCanal[T](NewRing[T](capacity))
	return &Sender[T]{c: c}, &Receiver[T]{c: c}
}

// Sender is the sending half of a channel.
//
// A Sender is a cheap handle over shared channel state; it carries no
// buffering of its own. Send is safe for concurrent use, but Clone and
// Close manage this handle's single reference and must not race each other.
type Sender[T any] struct {
	c      *canal[T]
	closed atomix.Bool
}

// Send places *elem on the channel, waking a blocked receiver if one is
// parked.
//
// Returns ErrDisconnected if no live Receiver remains (the value could never
// be observed) or the channel has disconnected, and ErrWouldBlock if the
// channel is at capacity. In every failure case *elem is untouched and
// remains with the caller; retry policy is the caller's.
func (s *Sender[T]) Send(elem *T) error {
	if s.closed.Load() {
		return ErrDisconnected
	}
	return s.c.send(elem)
}

// Clone returns a new Sender sharing this channel. The channel stays
// connected until every cloned Sender is closed.
func (s *Sender[T]) Clone() *Sender[T] {
	if s.closed.Load() {
		panic("canal: clone of closed Sender")
	}
	s.c.cloneSender()
	return &Sender[T]{c: s.c}
}

// Close releases this handle. Closing the last Sender disconnects the
// channel: parked receivers wake and, once the buffer drains, every receive
// reports ErrDisconnected.
//
// Close is idempotent per handle; second and later calls return
// ErrDisconnected.
func (s *Sender[T]) Close() error {
	if s.closed.Load() {
		return ErrDisconnected
	}
	s.closed.Store(true)
	s.c.dropSender()
	return nil
}

// Receiver is the receiving half of a channel.
//
// A Receiver handle keeps a local steal-credit counter to batch its updates
// of the shared item count, so a handle is confined to one goroutine: clone
// one Receiver per consuming goroutine. (Handles themselves are cheap; the
// channel state is shared.)
type Receiver[T any] struct {
	c      *canal[T]
	steals int64
	closed bool
}

// Recv returns the next item, blocking while the channel is empty and
// connected. It unblocks on data arrival or on disconnect; after the last
// Sender closes, Recv drains any residual buffered items in order and then
// reports ErrDisconnected.
func (r *Receiver[T]) Recv() (T, error) {
	if r.closed {
		var zero T
		return zero, ErrDisconnected
	}
	return r.c.recv(nil, &r.steals)
}

// RecvContext is Recv with cancellation: it additionally unblocks when ctx
// is cancelled or its deadline passes, returning ctx.Err().
//
// This is an extension over the core protocol, which releases a blocked
// receive only on data arrival or full disconnect.
func (r *Receiver[T]) RecvContext(ctx context.Context) (T, error) {
	if r.closed {
		var zero T
		return zero, ErrDisconnected
	}
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}
	return r.c.recv(ctx, &r.steals)
}

// TryRecv returns the next item without blocking.
// Returns ErrWouldBlock if the channel is momentarily empty (a sender may be
// mid-push) and ErrDisconnected once the channel is disconnected and fully
// drained.
func (r *Receiver[T]) TryRecv() (T, error) {
	if r.closed {
		var zero T
		return zero, ErrDisconnected
	}
	return r.c.tryRecv(&r.steals)
}

// Clone returns a new Receiver sharing this channel, with its own
// steal-credit counter. The channel accepts sends until every cloned
// Receiver is closed.
func (r *Receiver[T]) Clone() *Receiver[T] {
	if r.closed {
		panic("canal: clone of closed Receiver")
	}
	r.c.cloneReceiver()
	return &Receiver[T]{c: r.c}
}

// Close releases this handle, folding its steal credit back into the shared
// count. Closing the last Receiver forces the channel into the disconnected
// state and drains any residual items, so no data is ever stranded in a
// receiver-less channel.
//
// Close is idempotent per handle; second and later calls return
// ErrDisconnected.
func (r *Receiver[T]) Close() error {
	if r.closed {
		return ErrDisconnected
	}
	r.closed = true
	r.c.dropReceiver(&r.steals)
	return nil
}
