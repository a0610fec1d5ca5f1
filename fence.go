package gpusync

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/gogpu/gpusync/driver"
)

// FenceValue is a point on a queue's timeline. Values returned by one queue
// strictly increase and are never reused. Zero is complete from the start.
type FenceValue uint64

// FenceTracker pairs a queue with the fence it signals and the last value
// it asked the GPU to reach.
//
// FenceTracker is safe for concurrent use.
type FenceTracker struct {
	kind  QueueKind
	queue driver.Queue
	fence driver.Fence

	// mu serializes Signal so values reach the queue in increasing order.
	mu   sync.Mutex
	last atomic.Uint64

	// life is held shared by every call that touches fence and exclusively
	// by destroy, so the driver fence never goes away under a waiter.
	life   sync.RWMutex
	closed bool
	final  FenceValue
}

func newFenceTracker(dev driver.Device, queue driver.Queue) (*FenceTracker, error) {
	fence, err := dev.CreateFence(0)
	if err != nil {
		return nil, initError(err, "create fence for %s queue", queue.Kind())
	}
	if fence == nil {
		return nil, initError(errors.New("driver returned nil fence"), "create fence for %s queue", queue.Kind())
	}
	return &FenceTracker{
		kind:  queue.Kind(),
		queue: queue,
		fence: fence,
	}, nil
}

// Signal asks the queue to set the fence to the next value once all work
// submitted so far has finished, and returns that value.
func (t *FenceTracker) Signal() (FenceValue, error) {
	t.life.RLock()
	defer t.life.RUnlock()
	if t.closed {
		return 0, t.closedError("signal")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	next := t.last.Load() + 1
	if err := t.queue.Signal(t.fence, next); err != nil {
		return 0, deviceLost(err, "signal %s fence to %d", t.kind, next)
	}
	t.last.Store(next)
	return FenceValue(next), nil
}

// IsComplete reports whether the GPU has reached v. It never blocks.
// After the tracker is destroyed it reports false.
func (t *FenceTracker) IsComplete(v FenceValue) bool {
	t.life.RLock()
	defer t.life.RUnlock()
	if t.closed {
		return false
	}
	return t.isComplete(v)
}

func (t *FenceTracker) isComplete(v FenceValue) bool {
	return FenceValue(t.fence.Completed()) >= v
}

// WaitUntil blocks until the GPU reaches v. A timeout of Infinite waits
// without a deadline; zero polls once. The returned error is marked
// ErrTimeout when the deadline passes first, and wraps ErrClosed once the
// tracker is destroyed.
func (t *FenceTracker) WaitUntil(v FenceValue, timeout time.Duration) error {
	t.life.RLock()
	defer t.life.RUnlock()
	if t.closed {
		return t.closedError("wait")
	}

	if t.isComplete(v) {
		return nil
	}
	if last := t.Last(); v > last {
		return errors.Mark(
			errors.Newf("%s fence: wait for %d, last signaled %d", t.kind, v, last),
			ErrFenceNotSignaled)
	}

	ok, err := t.fence.Wait(uint64(v), timeout)
	if err != nil {
		return deviceLost(err, "wait for %s fence value %d", t.kind, v)
	}
	if !ok {
		return errors.Mark(
			errors.Newf("%s fence: value %d not reached within %s (completed %d)",
				t.kind, v, timeout, t.fence.Completed()),
			ErrTimeout)
	}
	return nil
}

// Last returns the most recently signaled value.
func (t *FenceTracker) Last() FenceValue {
	return FenceValue(t.last.Load())
}

// Completed returns the value the GPU has reached. After the tracker is
// destroyed it returns the value reached at that point.
func (t *FenceTracker) Completed() FenceValue {
	t.life.RLock()
	defer t.life.RUnlock()
	if t.closed {
		return t.final
	}
	return FenceValue(t.fence.Completed())
}

func (t *FenceTracker) closedError(op string) error {
	return errors.Wrapf(ErrClosed, "%s %s fence", op, t.kind)
}

// destroy waits for calls in progress, then releases the driver fence.
func (t *FenceTracker) destroy() {
	t.life.Lock()
	defer t.life.Unlock()
	if t.closed {
		return
	}
	t.final = FenceValue(t.fence.Completed())
	t.closed = true
	t.fence.Destroy()
}
