package gpusync

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/gogpu/gpusync/driver"
)

// Engine owns one SubmissionQueue per queue kind on a device and the
// coordinator that drains them. It is the object frame, resize and shutdown
// logic talk to; pass it explicitly rather than keeping it global.
//
// Engine is safe for concurrent use.
type Engine struct {
	device driver.Device
	queues map[QueueKind]*SubmissionQueue
	kinds  []QueueKind
	coord  *Coordinator

	onResize   observers[ResizeHandler]
	onShutdown observers[ShutdownHandler]

	closeOnce sync.Once
	closeErr  error
}

// New creates the engine's queues on dev. By default it creates a
// graphics, a compute and a copy queue; see WithQueueKinds.
// On failure every queue created so far is closed again and the returned
// error is marked ErrInitialization.
func New(dev driver.Device, opts ...Option) (*Engine, error) {
	if dev == nil {
		return nil, initError(errors.New("device is nil"), "create engine")
	}
	o := buildOptions(opts)

	e := &Engine{
		device: dev,
		queues: make(map[QueueKind]*SubmissionQueue, len(o.kinds)),
	}
	created := make([]*SubmissionQueue, 0, len(o.kinds))
	for _, kind := range o.kinds {
		q, err := NewSubmissionQueue(dev, kind, opts...)
		if err != nil {
			for _, q := range created {
				_ = q.Close()
			}
			return nil, err
		}
		created = append(created, q)
		e.queues[kind] = q
		e.kinds = append(e.kinds, kind)
	}
	e.coord = NewCoordinator(created, opts...)
	return e, nil
}

// Queue returns the queue of the given kind.
func (e *Engine) Queue(kind QueueKind) (*SubmissionQueue, error) {
	q, ok := e.queues[kind]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownQueue, "%s", kind)
	}
	return q, nil
}

// Kinds returns the queue kinds the engine was created with.
func (e *Engine) Kinds() []QueueKind {
	return append([]QueueKind(nil), e.kinds...)
}

// Coordinator returns the coordinator draining the engine's queues.
func (e *Engine) Coordinator() *Coordinator { return e.coord }

// AcquireRecorder returns an open command list for the given queue kind.
func (e *Engine) AcquireRecorder(kind QueueKind) (*CommandList, error) {
	q, err := e.Queue(kind)
	if err != nil {
		return nil, err
	}
	return q.Acquire()
}

// SubmitRecorder executes cl on the queue it was acquired from.
func (e *Engine) SubmitRecorder(cl *CommandList) (FenceValue, error) {
	if cl == nil {
		return 0, recordingError("submit nil command list")
	}
	q, err := e.Queue(cl.Kind())
	if err != nil {
		return 0, err
	}
	return q.Execute(cl)
}

// DiscardRecorder abandons cl without submitting it.
func (e *Engine) DiscardRecorder(cl *CommandList) error {
	if cl == nil {
		return recordingError("discard nil command list")
	}
	q, err := e.Queue(cl.Kind())
	if err != nil {
		return err
	}
	return q.Discard(cl)
}

// Record runs fn on a fresh command list of the given kind and submits it.
// See SubmissionQueue.Record.
func (e *Engine) Record(kind QueueKind, fn func(cl *CommandList) error) (FenceValue, error) {
	q, err := e.Queue(kind)
	if err != nil {
		return 0, err
	}
	return q.Record(fn)
}

// WaitForFence blocks until the queue of the given kind reaches v.
func (e *Engine) WaitForFence(kind QueueKind, v FenceValue, timeout time.Duration) error {
	q, err := e.Queue(kind)
	if err != nil {
		return err
	}
	return q.WaitForFence(v, timeout)
}

// DrainAllQueues blocks until no work is outstanding on any queue.
// See Coordinator.DrainAll.
func (e *Engine) DrainAllQueues() error {
	return e.coord.DrainAll()
}

// OnResize registers h to run after Resize has drained the GPU.
func (e *Engine) OnResize(h ResizeHandler) {
	if h != nil {
		e.onResize.add(h)
	}
}

// OnShutdown registers h to run during Close, after the final drain.
func (e *Engine) OnShutdown(h ShutdownHandler) {
	if h != nil {
		e.onShutdown.add(h)
	}
}

// Resize drains every queue and then notifies resize handlers in
// registration order. Handlers are not called when the drain fails.
func (e *Engine) Resize(width, height int) error {
	if err := e.DrainAllQueues(); err != nil {
		return errors.Wrapf(err, "resize to %dx%d", width, height)
	}
	for _, h := range e.onResize.snapshot() {
		h(width, height)
	}
	Logger().Info("gpusync: resized", "width", width, "height", height)
	return nil
}

// Close drains every queue, notifies shutdown handlers and closes the
// queues. Shutdown handlers run even when the drain fails, so they can
// release host-side state. Close is idempotent and returns the same
// result every time.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		drainErr := e.DrainAllQueues()
		for _, h := range e.onShutdown.snapshot() {
			h()
		}

		var closeErr error
		for _, kind := range e.kinds {
			if err := e.queues[kind].Close(); err != nil {
				closeErr = errors.CombineErrors(closeErr, err)
			}
		}
		switch {
		case drainErr == nil:
			e.closeErr = closeErr
		case closeErr == nil:
			e.closeErr = drainErr
		default:
			e.closeErr = errors.WithSecondaryError(drainErr, closeErr)
		}
	})
	return e.closeErr
}
