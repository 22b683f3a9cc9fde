// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package canal_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"code.hybscloud.com/canal"
)

// =============================================================================
// Channel - Basic Operations
// =============================================================================

// TestChannelSendRecv sends a batch through the channel and receives it all
// back.
func TestChannelSendRecv(t *testing.T) {
	tx, rx := canal.NewChannel[int](20)
	defer rx.Close()
	defer tx.Close()

	for i := range 20 {
		v := i
		if err := tx.Send(&v); err != nil {
			t.Fatalf("Send(%d): %v", i, err)
		}
	}
	for i := range 20 {
		v, err := rx.Recv()
		if err != nil {
			t.Fatalf("Recv: %v", err)
		}
		if v != i {
			t.Fatalf("Recv: got %d, want %d", v, i)
		}
	}
}

// TestChannelSendFull: capacity is a hard limit, not backpressure. The
// rejected value stays with the caller.
func TestChannelSendFull(t *testing.T) {
	tx, rx := canal.NewChannel[int](2)
	defer rx.Close()
	defer tx.Close()

	one, two, three := 1, 2, 3
	if err := tx.Send(&one); err != nil {
		t.Fatalf("Send(1): %v", err)
	}
	if err := tx.Send(&two); err != nil {
		t.Fatalf("Send(2): %v", err)
	}
	if err := tx.Send(&three); !errors.Is(err, canal.ErrWouldBlock) {
		t.Fatalf("Send on full: got %v, want ErrWouldBlock", err)
	}
	if three != 3 {
		t.Fatalf("failed Send modified the value: got %d, want 3", three)
	}
}

// TestChannelTryRecv covers the non-blocking receive contract: Empty while
// connected, data when available, Disconnected when terminal.
func TestChannelTryRecv(t *testing.T) {
	tx, rx := canal.NewChannel[int](4)
	defer rx.Close()

	if _, err := rx.TryRecv(); !errors.Is(err, canal.ErrWouldBlock) {
		t.Fatalf("TryRecv on empty: got %v, want ErrWouldBlock", err)
	}

	v := 7
	if err := tx.Send(&v); err != nil {
		t.Fatalf("Send: %v", err)
	}
	got, err := rx.TryRecv()
	if err != nil || got != 7 {
		t.Fatalf("TryRecv: got (%d, %v), want (7, nil)", got, err)
	}

	if err := tx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := rx.TryRecv(); !errors.Is(err, canal.ErrDisconnected) {
		t.Fatalf("TryRecv after disconnect: got %v, want ErrDisconnected", err)
	}
}

// =============================================================================
// Channel - Lifecycle
// =============================================================================

// TestChannelNoReceiver: a send on a channel with zero live receivers always
// fails and leaves the value with the caller.
func TestChannelNoReceiver(t *testing.T) {
	tx, rx := canal.NewChannel[int](4)
	defer tx.Close()

	if err := rx.Close(); err != nil {
		t.Fatalf("Receiver.Close: %v", err)
	}

	v := 42
	if err := tx.Send(&v); !errors.Is(err, canal.ErrDisconnected) {
		t.Fatalf("Send without receivers: got %v, want ErrDisconnected", err)
	}
	if v != 42 {
		t.Fatalf("failed Send modified the value: got %d, want 42", v)
	}
}

// TestChannelDisconnectDrainsResidue: after the last sender closes, buffered
// items are still delivered in order before ErrDisconnected becomes stable.
func TestChannelDisconnectDrainsResidue(t *testing.T) {
	tx, rx := canal.NewChannel[int](8)
	defer rx.Close()

	for i := range 3 {
		v := i
		if err := tx.Send(&v); err != nil {
			t.Fatalf("Send(%d): %v", i, err)
		}
	}
	if err := tx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	for i := range 3 {
		v, err := rx.Recv()
		if err != nil {
			t.Fatalf("Recv(%d) after disconnect: %v", i, err)
		}
		if v != i {
			t.Fatalf("Recv: got %d, want %d", v, i)
		}
	}

	// Terminal and stable.
	for range 2 {
		if _, err := rx.Recv(); !errors.Is(err, canal.ErrDisconnected) {
			t.Fatalf("Recv on drained channel: got %v, want ErrDisconnected", err)
		}
	}
}

// TestChannelCloneRefcounts: the channel disconnects only when the last
// handle of a kind closes.
func TestChannelCloneRefcounts(t *testing.T) {
	tx, rx := canal.NewChannel[int](8)
	tx2 := tx.Clone()
	rx2 := rx.Clone()

	if err := tx.Close(); err != nil {
		t.Fatalf("first Sender.Close: %v", err)
	}
	// tx2 still live: channel connected.
	v := 1
	if err := tx2.Send(&v); err != nil {
		t.Fatalf("Send on cloned sender: %v", err)
	}
	if got, err := rx.Recv(); err != nil || got != 1 {
		t.Fatalf("Recv: got (%d, %v), want (1, nil)", got, err)
	}

	if err := rx.Close(); err != nil {
		t.Fatalf("first Receiver.Close: %v", err)
	}
	// rx2 still live: sends must still be accepted.
	v = 2
	if err := tx2.Send(&v); err != nil {
		t.Fatalf("Send with one receiver left: %v", err)
	}
	if got, err := rx2.Recv(); err != nil || got != 2 {
		t.Fatalf("Recv on cloned receiver: got (%d, %v), want (2, nil)", got, err)
	}

	if err := tx2.Close(); err != nil {
		t.Fatalf("last Sender.Close: %v", err)
	}
	if _, err := rx2.Recv(); !errors.Is(err, canal.ErrDisconnected) {
		t.Fatalf("Recv after last sender closed: got %v, want ErrDisconnected", err)
	}
	if err := rx2.Close(); err != nil {
		t.Fatalf("last Receiver.Close: %v", err)
	}
}

// TestChannelDoubleClose: Close is idempotent per handle.
func TestChannelDoubleClose(t *testing.T) {
	tx, rx := canal.NewChannel[int](2)

	if err := tx.Close(); err != nil {
		t.Fatalf("Sender.Close: %v", err)
	}
	if err := tx.Close(); !errors.Is(err, canal.ErrDisconnected) {
		t.Fatalf("second Sender.Close: got %v, want ErrDisconnected", err)
	}
	if err := rx.Close(); err != nil {
		t.Fatalf("Receiver.Close: %v", err)
	}
	if err := rx.Close(); !errors.Is(err, canal.ErrDisconnected) {
		t.Fatalf("second Receiver.Close: got %v, want ErrDisconnected", err)
	}

	// Operations on closed handles fail without touching shared state.
	v := 1
	if err := tx.Send(&v); !errors.Is(err, canal.ErrDisconnected) {
		t.Fatalf("Send on closed handle: got %v, want ErrDisconnected", err)
	}
	if _, err := rx.Recv(); !errors.Is(err, canal.ErrDisconnected) {
		t.Fatalf("Recv on closed handle: got %v, want ErrDisconnected", err)
	}
}

// TestChannelLastReceiverDiscardsResidue: closing the last receiver with
// items still buffered must not strand them; subsequent sends fail fast.
func TestChannelLastReceiverDiscardsResidue(t *testing.T) {
	tx, rx := canal.NewChannel[int](8)
	defer tx.Close()

	for i := range 5 {
		v := i
		if err := tx.Send(&v); err != nil {
			t.Fatalf("Send(%d): %v", i, err)
		}
	}
	if err := rx.Close(); err != nil {
		t.Fatalf("Receiver.Close with residue: %v", err)
	}

	v := 9
	if err := tx.Send(&v); !errors.Is(err, canal.ErrDisconnected) {
		t.Fatalf("Send after last receiver closed: got %v, want ErrDisconnected", err)
	}
}

// =============================================================================
// Channel - Blocking Receive
// =============================================================================

// TestChannelRecvBlocksUntilSend parks a receiver on an empty channel and
// verifies a later send releases it with the sent value.
func TestChannelRecvBlocksUntilSend(t *testing.T) {
	if canal.RaceEnabled {
		t.Skip("skip: value handoff can take the lock-free fast path, invisible to the race detector")
	}
	tx, rx := canal.NewChannel[int](4)
	defer tx.Close()

	done := make(chan int, 1)
	var ready sync.WaitGroup
	ready.Add(1)
	go func() {
		ready.Done()
		v, err := rx.Recv()
		if err != nil {
			t.Errorf("Recv: %v", err)
		}
		rx.Close()
		done <- v
	}()

	ready.Wait()
	time.Sleep(10 * time.Millisecond) // give the receiver time to park
	v := 77
	if err := tx.Send(&v); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case got := <-done:
		if got != 77 {
			t.Fatalf("Recv: got %d, want 77", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Recv did not unblock after Send")
	}
}

// TestChannelDisconnectUnblocksRecv: a pending Recv must unblock when the
// last sender closes, observing ErrDisconnected.
func TestChannelDisconnectUnblocksRecv(t *testing.T) {
	tx, rx := canal.NewChannel[int](4)

	done := make(chan error, 1)
	var ready sync.WaitGroup
	ready.Add(1)
	go func() {
		ready.Done()
		_, err := rx.Recv()
		rx.Close()
		done <- err
	}()

	ready.Wait()
	time.Sleep(10 * time.Millisecond)
	if err := tx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case err := <-done:
		if !errors.Is(err, canal.ErrDisconnected) {
			t.Fatalf("Recv after disconnect: got %v, want ErrDisconnected", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Recv did not unblock after disconnect")
	}
}

// TestChannelSenderDropScenario: with one buffered item, a receiver sees the
// item first and only then the stable disconnect.
func TestChannelSenderDropScenario(t *testing.T) {
	tx, rx := canal.NewChannel[int](2)
	defer rx.Close()

	v := 5
	if err := tx.Send(&v); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := tx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, err := rx.Recv()
	if err != nil || got != 5 {
		t.Fatalf("Recv: got (%d, %v), want (5, nil)", got, err)
	}
	if _, err := rx.Recv(); !errors.Is(err, canal.ErrDisconnected) {
		t.Fatalf("Recv: got %v, want ErrDisconnected", err)
	}
}

// =============================================================================
// Channel - Cancellable Receive
// =============================================================================

// TestChannelRecvContextCancel: cancelling the context releases a parked
// receiver with ctx.Err, and the channel stays fully usable afterwards.
func TestChannelRecvContextCancel(t *testing.T) {
	tx, rx := canal.NewChannel[int](4)
	defer tx.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	var ready sync.WaitGroup
	ready.Add(1)
	go func() {
		ready.Done()
		_, err := rx.RecvContext(ctx)
		done <- err
	}()

	ready.Wait()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("RecvContext: got %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("RecvContext did not unblock after cancel")
	}

	// The abandoned block registration must not poison the channel.
	v := 3
	if err := tx.Send(&v); err != nil {
		t.Fatalf("Send after cancelled Recv: %v", err)
	}
	got, err := rx.Recv()
	if err != nil || got != 3 {
		t.Fatalf("Recv after cancelled Recv: got (%d, %v), want (3, nil)", got, err)
	}
	if err := rx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

// TestChannelRecvContextDeadline: an expired deadline surfaces as
// context.DeadlineExceeded.
func TestChannelRecvContextDeadline(t *testing.T) {
	tx, rx := canal.NewChannel[int](4)
	defer rx.Close()
	defer tx.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := rx.RecvContext(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("RecvContext: got %v, want context.DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("RecvContext took %v, deadline ignored", elapsed)
	}
}

// TestChannelRecvContextPreCancelled: an already-cancelled context fails
// fast without registering a block.
func TestChannelRecvContextPreCancelled(t *testing.T) {
	tx, rx := canal.NewChannel[int](4)
	defer rx.Close()
	defer tx.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := rx.RecvContext(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("RecvContext: got %v, want context.Canceled", err)
	}
}

// TestChannelRecvContextDelivers: a context receive still prefers data over
// cancellation when data is already buffered.
func TestChannelRecvContextDelivers(t *testing.T) {
	tx, rx := canal.NewChannel[int](4)
	defer rx.Close()
	defer tx.Close()

	v := 11
	if err := tx.Send(&v); err != nil {
		t.Fatalf("Send: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	got, err := rx.RecvContext(ctx)
	if err != nil || got != 11 {
		t.Fatalf("RecvContext: got (%d, %v), want (11, nil)", got, err)
	}
}
