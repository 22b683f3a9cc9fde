// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package canal

// Options configures queue and channel creation.
type Options struct {
	// Backing store selection
	locked bool // mutex-guarded unbounded queue instead of lock-free ring

	// Capacity (rounds up to next power of 2; ignored by the locked store)
	capacity int
}

// Builder creates queues and channels with fluent configuration.
//
// Example:
//
//	// Lock-free bounded queue (default)
//	q := canal.Build[Event](canal.New(1024))
//
//	// Mutex-guarded unbounded queue
//	q := canal.Build[Event](canal.New(0).Locked())
//
//	// Channel over a lock-free ring
//	tx, rx := canal.BuildChannel[Request](canal.New(4096))
type Builder struct {
	opts Options
}

// New creates a builder with the given capacity.
//
// Capacity rounds up to the next power of 2, minimum 2. For example,
// capacity=4 stays 4, capacity=1000 becomes 1024. The locked backing store
// is unbounded and ignores capacity.
func New(capacity int) *Builder {
	return &Builder{opts: Options{capacity: capacity}}
}

// Locked selects the mutex-guarded unbounded backing store instead of the
// lock-free bounded ring.
//
// Trade-off: no capacity limit and exact length accounting, at the cost of
// one lock acquisition per operation and unbounded memory growth under
// producer pressure.
func (b *Builder) Locked() *Builder {
	b.opts.locked = true
	return b
}

// Build creates a Queue[T] from the builder configuration.
func Build[T any](b *Builder) Queue[T] {
	if b.opts.locked {
		return NewMutexQueue[T]()
	}
	return NewRing[T](b.opts.capacity)
}

// BuildChannel creates a channel over the configured backing store and
// returns its first Sender/Receiver pair.
//
// With the default ring store, Send fails with ErrWouldBlock at capacity;
// with Locked, Send never reports full.
func BuildChannel[T any](b *Builder) (*Sender[T], *Receiver[T]) {
	c := newCanal[T](Build[T](b))
	return &Sender[T]{c: c}, &Receiver[T]{c: c}
}
