package gpusync

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"

	"github.com/gogpu/gpusync/driver"
)

// QueueKind identifies a hardware queue family.
type QueueKind = driver.QueueKind

// Queue kinds.
const (
	Graphics = driver.Graphics
	Compute  = driver.Compute
	Copy     = driver.Copy
)

// SubmissionQueue turns closed command lists into hardware execution and
// hands back the fence value that marks their completion.
//
// Within one queue fence values complete in the order they were returned.
// Nothing orders work across different queues.
//
// SubmissionQueue is safe for concurrent use. Execute, Discard and Close
// are serialized; only Flush and WaitForFence block.
type SubmissionQueue struct {
	kind         QueueKind
	label        string
	closeTimeout time.Duration
	queue        driver.Queue
	fences       *FenceTracker
	pool         *RecorderPool

	mu     sync.Mutex
	closed atomic.Bool
}

// NewSubmissionQueue creates a hardware queue of the given kind on dev
// together with its fence. Failures are marked ErrInitialization.
func NewSubmissionQueue(dev driver.Device, kind QueueKind, opts ...Option) (*SubmissionQueue, error) {
	if dev == nil {
		return nil, initError(errors.New("device is nil"), "create %s queue", kind)
	}
	o := buildOptions(opts)

	hw, err := dev.CreateQueue(kind)
	if err != nil {
		return nil, initError(err, "create %s queue", kind)
	}
	if hw == nil {
		return nil, initError(errors.New("driver returned nil queue"), "create %s queue", kind)
	}
	fences, err := newFenceTracker(dev, hw)
	if err != nil {
		hw.Destroy()
		return nil, err
	}

	q := &SubmissionQueue{
		kind:         kind,
		label:        o.label,
		closeTimeout: o.drainTimeout,
		queue:        hw,
		fences:       fences,
	}
	q.pool = newRecorderPool(q, dev, fences)
	q.logger().Info("gpusync: queue created")
	return q, nil
}

func (q *SubmissionQueue) logger() *slog.Logger {
	l := Logger().With("queue", q.kind.String())
	if q.label != "" {
		l = l.With("label", q.label)
	}
	return l
}

// Kind returns the queue family.
func (q *SubmissionQueue) Kind() QueueKind { return q.kind }

// Fences returns the queue's fence tracker.
func (q *SubmissionQueue) Fences() *FenceTracker { return q.fences }

// Pool returns the queue's recorder pool.
func (q *SubmissionQueue) Pool() *RecorderPool { return q.pool }

// Stats returns a snapshot of the pool counters.
func (q *SubmissionQueue) Stats() PoolStats { return q.pool.Stats() }

// LastSignaled returns the most recent fence value handed out.
func (q *SubmissionQueue) LastSignaled() FenceValue { return q.fences.Last() }

// IsComplete reports whether the GPU has reached v on this queue. It
// reports false once the queue is closed.
func (q *SubmissionQueue) IsComplete(v FenceValue) bool {
	if q.closed.Load() {
		return false
	}
	return q.fences.IsComplete(v)
}

// Acquire returns an open command list from the pool.
func (q *SubmissionQueue) Acquire() (*CommandList, error) {
	return q.pool.Acquire()
}

// Execute closes cl, submits it and signals the fence. The returned value
// completes once the GPU has finished cl and everything submitted before it.
//
// Errors marked ErrRecording mean cl was not an open list of this queue;
// in that case nothing was submitted. Errors marked ErrDeviceLost are fatal.
func (q *SubmissionQueue) Execute(cl *CommandList) (FenceValue, error) {
	if err := q.check(cl); err != nil {
		return 0, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed.Load() {
		return 0, errors.Wrapf(ErrClosed, "execute on %s queue", q.kind)
	}
	if !cl.finish(ListSubmitted) {
		return 0, recordingError("%s queue: command list %d is %s", q.kind, cl.id, cl.State())
	}

	if err := cl.recorder.Close(); err != nil {
		cl.state.Store(uint32(ListDiscarded))
		q.pool.release(cl, q.fences.Last())
		return 0, errors.Mark(errors.Wrapf(err, "close %s command list %d", q.kind, cl.id), ErrRecording)
	}
	if err := q.queue.Execute(cl.recorder); err != nil {
		q.pool.drop(cl)
		return 0, deviceLost(err, "execute %s command list %d", q.kind, cl.id)
	}
	v, err := q.fences.Signal()
	if err != nil {
		q.pool.drop(cl)
		return 0, err
	}
	q.pool.release(cl, v)

	q.logger().Debug("gpusync: command list executed", "list", cl.id, "fence", uint64(v))
	return v, nil
}

// Discard abandons cl without submitting it and returns its resources to
// the pool.
func (q *SubmissionQueue) Discard(cl *CommandList) error {
	if err := q.check(cl); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if !cl.finish(ListDiscarded) {
		return recordingError("%s queue: discard command list %d that is %s", q.kind, cl.id, cl.State())
	}
	if q.closed.Load() {
		return nil
	}
	if err := cl.recorder.Close(); err != nil {
		q.logger().Warn("gpusync: closing discarded command list failed", "list", cl.id, "error", err)
	}
	// Nothing from cl reached the GPU, but earlier work on the allocator is
	// covered by the last signaled value.
	q.pool.release(cl, q.fences.Last())
	q.logger().Debug("gpusync: command list discarded", "list", cl.id)
	return nil
}

func (q *SubmissionQueue) check(cl *CommandList) error {
	if cl == nil {
		return recordingError("%s queue: nil command list", q.kind)
	}
	if cl.owner != q {
		return recordingError("%s queue: command list %d belongs to the %s queue", q.kind, cl.id, cl.owner.Kind())
	}
	return nil
}

// Record acquires a command list, passes it to fn and executes it when fn
// returns nil. When fn fails or panics the list is discarded, so it can
// never be leaked.
func (q *SubmissionQueue) Record(fn func(cl *CommandList) error) (FenceValue, error) {
	cl, err := q.Acquire()
	if err != nil {
		return 0, err
	}
	defer func() {
		if cl.State() == ListRecording {
			if err := q.Discard(cl); err != nil {
				q.logger().Warn("gpusync: discard after failed recording", "list", cl.id, "error", err)
			}
		}
	}()

	if err := fn(cl); err != nil {
		return 0, err
	}
	return q.Execute(cl)
}

// WaitForFence blocks until the GPU reaches v on this queue.
// It returns immediately when v is already complete, and with an error
// wrapping ErrClosed once the queue is closed.
func (q *SubmissionQueue) WaitForFence(v FenceValue, timeout time.Duration) error {
	if q.closed.Load() {
		return errors.Wrapf(ErrClosed, "wait on %s queue", q.kind)
	}
	return q.fences.WaitUntil(v, timeout)
}

// Flush signals the fence with no new work and waits for it, so everything
// submitted before the call has finished when Flush returns nil.
//
// A Flush racing Close either completes before the fence is destroyed or
// returns an error wrapping ErrClosed.
func (q *SubmissionQueue) Flush(timeout time.Duration) error {
	if q.closed.Load() {
		return errors.Wrapf(ErrClosed, "flush %s queue", q.kind)
	}
	return q.flush(timeout)
}

func (q *SubmissionQueue) flush(timeout time.Duration) error {
	start := hrtime.Now()
	v, err := q.fences.Signal()
	if err != nil {
		return err
	}
	if err := q.fences.WaitUntil(v, timeout); err != nil {
		return err
	}
	q.logger().Debug("gpusync: queue flushed", "fence", uint64(v), "wait", hrtime.Since(start))
	return nil
}

// Close waits for the GPU to finish the queue, bounded by WithDrainTimeout,
// and releases the fence and all pooled objects. Command lists that were
// acquired but neither executed nor discarded are reported with
// ErrRecorderLeaked. Close is idempotent.
func (q *SubmissionQueue) Close() error {
	q.mu.Lock()
	if q.closed.Swap(true) {
		q.mu.Unlock()
		return nil
	}
	q.mu.Unlock()

	err := q.flush(q.closeTimeout)
	outstanding := q.pool.destroy()
	q.fences.destroy()
	q.queue.Destroy()

	if outstanding > 0 {
		q.logger().Warn("gpusync: queue closed with outstanding command lists", "outstanding", outstanding)
		leak := errors.Mark(
			errors.Newf("%s queue closed with %d command lists outstanding", q.kind, outstanding),
			ErrRecorderLeaked)
		if err == nil {
			err = leak
		} else {
			// A failed flush outranks the leak.
			err = errors.WithSecondaryError(err, leak)
		}
	}
	q.logger().Info("gpusync: queue closed", "fence", uint64(q.fences.Last()))
	return err
}
