// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package canal

import (
	"context"
	"math"
	"sync"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

const (
	// disconnected is the sentinel value of cnt marking the channel as
	// terminally disconnected. Nothing is ever sent or received once cnt
	// enters the band (disconnected, disconnected+fudge).
	disconnected int64 = math.MinInt64

	// fudge is the margin around the thresholds of cnt. Concurrent
	// increments and decrements race against the sentinel store and the
	// block registration, so neither -1 nor the sentinel can be matched
	// exactly; a ranged check keeps the two bands from colliding.
	fudge int64 = 1024

	// maxSteals caps the per-receiver steal credit before TryRecv
	// reconciles it against cnt in one batch.
	maxSteals int64 = 1 << 20
)

// canal is the shared state behind every Sender/Receiver pair: a backing
// queue plus the bookkeeping that turns its non-blocking contract into a
// disconnect-aware channel with blocking receive.
//
// cnt is a tri-state signed counter:
//
//   - cnt >= 0: items enqueued but not yet claimed by a receiver
//     (approximate under races; unclaimed pops live on as steal credits)
//   - -fudge <= cnt <= -1: receivers have registered an intent to block
//   - cnt < disconnected+fudge: the channel is disconnected
//
// Transitions of cnt use the package's strongest (sequentially consistent)
// atomics: the disconnect and drain protocols depend on every goroutine
// agreeing on when the sentinel band has been entered.
type canal[T any] struct {
	_ pad
	// cnt counts items on the channel, minus pending block registrations.
	cnt atomix.Int64
	_   pad
	// senders and receivers count live handles of each kind.
	senders   atomix.Int64
	receivers atomix.Int64
	_         pad
	// senderDrain arbitrates which sender drains the queue after a
	// receiver-forced disconnect. Pure atomic arbitration, no mutex.
	senderDrain atomix.Int64
	_           pad

	queue Queue[T]

	// mu guards shouldBlock; together with wake it is the only lock in the
	// system, held just for the window of registering or clearing a block.
	mu          sync.Mutex
	wake        *sync.Cond
	shouldBlock bool
}

func newCanal[T any](q Queue[T]) *canal[T] {
	c := &canal[T]{queue: q}
	c.wake = sync.NewCond(&c.mu)
	c.senders.Store(1)
	c.receivers.Store(1)
	return c
}

// swapCnt atomically replaces cnt with v and returns the previous value.
func (c *canal[T]) swapCnt(v int64) int64 {
	sw := spin.Wait{}
	for {
		old := c.cnt.Load()
		if c.cnt.CompareAndSwapAcqRel(old, v) {
			return old
		}
		sw.Once()
	}
}

// bump adds amt to cnt, re-storing the sentinel if the channel disconnected
// concurrently. Returns the previous value.
func (c *canal[T]) bump(amt int64) int64 {
	n := c.cnt.Add(amt) - amt
	if n == disconnected {
		c.cnt.Store(disconnected)
		return disconnected
	}
	return n
}

// send enqueues *elem. Returns ErrDisconnected if no receiver can ever
// observe the value, ErrWouldBlock if the queue is at capacity; in both
// cases *elem is untouched and remains with the caller.
func (c *canal[T]) send(elem *T) error {
	// No live receiver means the value will never be received. This
	// preflight is the one definitive "never" answer; past it we are
	// permanently in "may be received" territory.
	if c.receivers.Load() == 0 {
		return ErrDisconnected
	}

	// Racing senders can keep incrementing a very negative cnt while the
	// disconnecting side re-stores the sentinel, so the disconnect test is
	// a ranged check rather than an equality.
	if c.cnt.Load() < disconnected+fudge {
		return ErrDisconnected
	}

	if err := c.queue.Enqueue(elem); err != nil {
		return err
	}

	switch n := c.cnt.Add(1) - 1; {
	case n <= -1 && n > -1-fudge:
		// A receiver observed empty and registered intent to block.
		// Receivers decrement concurrently, hence the ranged check; the
		// fudge keeps this band from colliding with the sentinel band.
		c.wakeOne()

	case n < disconnected+fudge:
		// A receiver forced disconnect between our preflight and our
		// increment. The value we just pushed (and any pushed by senders
		// in the same window) must not be stranded.
		c.cnt.Store(disconnected)
		c.disconnectDrain()
	}

	return nil
}

// disconnectDrain empties the queue of a disconnected, receiver-less
// channel, arbitrating among concurrent senders so that exactly one logical
// drain occurs: the first sender in owns the drain and repeats it until no
// other sender has entered in the meantime.
func (c *canal[T]) disconnectDrain() {
	if c.senderDrain.Add(1) != 1 {
		// Not the drain owner; the owner's exit check picks us up.
		return
	}
	for {
		for {
			if _, err := c.queue.Dequeue(); err != nil {
				break
			}
		}
		// Another sender entered the drain while we worked; go around
		// again until we are provably the last one.
		if c.senderDrain.Add(-1) == 0 {
			break
		}
	}
	// Data may still trail in from a sender that has pushed but not yet
	// incremented cnt; that sender drains its own item.
}

// tryRecv pops one item without blocking.
//
// steals is the calling receiver's credit counter: successful pops are
// tallied locally and reconciled against cnt in one batch once they exceed
// maxSteals, so the common case touches no shared counter.
func (c *canal[T]) tryRecv(steals *int64) (T, error) {
	elem, err := c.queue.Dequeue()
	if err == nil {
		if *steals > maxSteals {
			switch n := c.swapCnt(0); {
			case n == disconnected:
				c.cnt.Store(disconnected)
			default:
				m := min(n, *steals)
				*steals -= m
				c.bump(n - m)
			}
			if *steals < 0 {
				panic("canal: steal credit underflow")
			}
		}
		*steals++
		return elem, nil
	}

	// Empty is a point-in-time observation: a sender may be mid-push.
	// Only the sentinel band makes it terminal.
	if c.cnt.Load() != disconnected {
		var zero T
		return zero, ErrWouldBlock
	}

	// Disconnected, but a final item may have been pushed just before the
	// sentinel landed.
	if elem, err := c.queue.Dequeue(); err == nil {
		return elem, nil
	}
	var zero T
	return zero, ErrDisconnected
}

// recv pops one item, parking the calling goroutine while the channel is
// empty and connected. A nil ctx blocks until data or disconnect.
func (c *canal[T]) recv(ctx context.Context, steals *int64) (T, error) {
	var zero T
	for {
		elem, err := c.tryRecv(steals)
		if err == nil || err == ErrDisconnected {
			return elem, err
		}

		if err := c.block(ctx, steals); err != nil {
			return zero, err
		}

		elem, err = c.tryRecv(steals)
		switch err {
		case nil:
			// block pre-debited this pop from cnt; undo the credit
			// tryRecv just took so it is not debited twice.
			*steals--
			return elem, nil
		case ErrDisconnected:
			return zero, ErrDisconnected
		}
		// Another receiver claimed the item first. Hand the pre-debited
		// claim back before re-registering so the deficit cannot
		// accumulate past the fudge band.
		c.bump(1)
	}
}

// block registers an intent to sleep and parks until woken.
//
// The registration decrements cnt by 1+steals while holding mu: the 1 is
// this receiver's pending claim, the steals flush the local credit so cnt
// reflects every pop this receiver took without touching it. Holding mu
// across the decrement and the sleep decision closes the lost-wakeup window
// against wakeOne.
func (c *canal[T]) block(ctx context.Context, steals *int64) error {
	c.mu.Lock()

	s := *steals
	*steals = 0

	switch n := c.cnt.Add(-(1 + s)) + 1 + s; {
	case n == disconnected:
		c.cnt.Store(disconnected)
		c.mu.Unlock()
		return nil

	case n <= -1-fudge:
		c.mu.Unlock()
		panic("canal: block deficit exceeds fudge band")

	default:
		// Data arrived between tryRecv and the registration; the pending
		// claim stands, no need to sleep.
		if n-s > 0 {
			c.mu.Unlock()
			return nil
		}
	}

	c.shouldBlock = true

	if ctx != nil {
		stop := context.AfterFunc(ctx, c.wakeAll)
		defer stop()
	}
	for c.shouldBlock {
		if ctx != nil && ctx.Err() != nil {
			// Abandon the block registration: give the pending claim
			// back so the counter stays balanced. The flushed steals
			// were real pops and stay subtracted.
			c.bump(1)
			c.mu.Unlock()
			return ctx.Err()
		}
		c.wake.Wait()
	}
	c.mu.Unlock()
	return nil
}

// wakeOne releases a single parked receiver. The woken receiver re-checks
// shouldBlock and re-registers if its claim gets stolen.
func (c *canal[T]) wakeOne() {
	c.mu.Lock()
	c.shouldBlock = false
	c.mu.Unlock()
	c.wake.Signal()
}

// wakeAll releases every parked receiver. Used on disconnect and context
// cancellation, where each sleeper must observe the new state itself.
func (c *canal[T]) wakeAll() {
	c.mu.Lock()
	c.shouldBlock = false
	c.mu.Unlock()
	c.wake.Broadcast()
}

func (c *canal[T]) cloneSender() {
	c.senders.Add(1)
}

func (c *canal[T]) cloneReceiver() {
	c.receivers.Add(1)
}

// dropSender releases one sender reference. The last sender transitions the
// channel to disconnected and releases any parked receivers; it is their job
// to find out from cnt that no more data will arrive.
func (c *canal[T]) dropSender() {
	switch n := c.senders.Add(-1); {
	case n > 0:
		return
	case n < 0:
		panic("canal: sender refcount underflow")
	}

	switch n := c.swapCnt(disconnected); {
	case n == disconnected:
	case n < 0:
		c.wakeAll()
	}

	c.checkTerminal()
}

// dropReceiver releases one receiver reference, folding the handle's steal
// credit back into cnt. The last receiver forces the channel into the
// disconnected state, draining residual items so no data is stranded and no
// counter is left unreconciled.
func (c *canal[T]) dropReceiver(steals *int64) {
	switch n := c.receivers.Add(-1); {
	case n > 0:
		if s := *steals; s != 0 {
			*steals = 0
			c.bump(-s)
		}
		return
	case n < 0:
		panic("canal: receiver refcount underflow")
	}

	// cnt == s exactly when every sent item is accounted for: either
	// drained below (s grows per pop) or claimed earlier by this handle
	// (its credit). The CAS loop rides out senders that have pushed but
	// not yet incremented cnt.
	s := *steals
	*steals = 0
	sw := spin.Wait{}
	for {
		if c.cnt.CompareAndSwapAcqRel(s, disconnected) {
			break
		}
		if c.cnt.Load() == disconnected {
			break
		}
		for {
			if _, err := c.queue.Dequeue(); err != nil {
				break
			}
			s++
		}
		sw.Once()
	}

	c.checkTerminal()
}

// checkTerminal asserts the destruction precondition once both refcounts
// reach zero. A violation is a broken invariant in the shared state machine,
// not a recoverable condition.
func (c *canal[T]) checkTerminal() {
	if c.senders.Load() != 0 || c.receivers.Load() != 0 {
		return
	}
	if c.cnt.Load() != disconnected {
		panic("canal: channel freed while not disconnected")
	}
}
