// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package canal

import (
	"errors"

	"code.hybscloud.com/iox"
)

// ErrWouldBlock indicates the operation cannot proceed immediately.
//
// For Enqueue/Send: the queue is full (backpressure)
// For Dequeue/TryRecv: the queue is empty (no data available)
//
// ErrWouldBlock is a control flow signal, not a failure. The caller should
// retry the operation later (with backoff or yield) rather than propagating
// the error. The channel layer retries internally only for Recv, which parks
// the calling goroutine instead of spinning.
//
// This is an alias for [iox.ErrWouldBlock] for ecosystem consistency.
var ErrWouldBlock = iox.ErrWouldBlock

// ErrDisconnected indicates the channel can never again carry data.
//
// For Send: no live Receiver handle remains, or the channel was forced into
// the disconnected state; the value was not enqueued and stays with the
// caller.
// For Recv/TryRecv: no live Sender handle remains and all buffered items
// have been delivered.
//
// Unlike ErrWouldBlock, ErrDisconnected is terminal: once observed it is
// stable and retrying can never succeed.
var ErrDisconnected = errors.New("canal: disconnected")

// IsWouldBlock reports whether err indicates the operation would block.
// Delegates to [iox.IsWouldBlock] for wrapped error support.
func IsWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}

// IsDisconnected reports whether err indicates a terminally disconnected
// channel.
func IsDisconnected(err error) bool {
	return errors.Is(err, ErrDisconnected)
}

// IsSemantic reports whether err is a control flow signal (not a failure).
// Delegates to [iox.IsSemantic].
func IsSemantic(err error) bool {
	return iox.IsSemantic(err)
}

// IsNonFailure reports whether err represents a non-failure condition.
// Returns true for nil or ErrWouldBlock.
// Delegates to [iox.IsNonFailure].
func IsNonFailure(err error) bool {
	return iox.IsNonFailure(err)
}
