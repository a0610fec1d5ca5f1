//go:build !nogpu

package wgpu

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpusync/driver"
)

// Poll interval bounds for Fence.Wait. The HAL reports completion only
// through Queue.PollCompleted, so waiting is polling with backoff.
const (
	minPollInterval = 50 * time.Microsecond
	maxPollInterval = 2 * time.Millisecond
)

// Queue is a driver queue on the device's HAL queue. Executed command
// buffers are held until the next Signal, which submits them together.
type Queue struct {
	device *Device
	kind   driver.QueueKind

	mu      sync.Mutex
	pending []hal.CommandBuffer
}

// Kind implements driver.Queue.
func (q *Queue) Kind() driver.QueueKind { return q.kind }

// Execute implements driver.Queue.
func (q *Queue) Execute(recorders ...driver.Recorder) error {
	bufs := make([]hal.CommandBuffer, 0, len(recorders))
	for _, r := range recorders {
		rec, ok := r.(*Recorder)
		if !ok || rec.device != q.device || rec.kind != q.kind {
			return errors.Wrapf(ErrForeignObject, "execute %T on %s queue", r, q.kind)
		}
		cb, err := rec.commandBuffer()
		if err != nil {
			return err
		}
		bufs = append(bufs, cb)
	}

	q.mu.Lock()
	q.pending = append(q.pending, bufs...)
	q.mu.Unlock()
	return nil
}

// Signal implements driver.Queue. It submits every command buffer executed
// since the previous signal and binds value to the resulting submission
// index. With nothing pending, value is bound to the device's latest
// submission, so it completes once all earlier work has.
func (q *Queue) Signal(f driver.Fence, value uint64) error {
	fence, ok := f.(*Fence)
	if !ok || fence.device != q.device {
		return errors.Wrapf(ErrForeignObject, "signal %T on %s queue", f, q.kind)
	}

	q.mu.Lock()
	bufs := q.pending
	q.pending = nil
	q.mu.Unlock()

	d := q.device
	d.submitMu.Lock()
	defer d.submitMu.Unlock()

	index := d.lastSubmission
	if len(bufs) > 0 {
		idx, err := d.queue.Submit(bufs)
		if err != nil {
			return errors.Wrapf(err, "submit %d command buffers on %s queue", len(bufs), q.kind)
		}
		index = idx
		d.lastSubmission = idx
	}
	fence.bind(value, index)
	return nil
}

// Destroy implements driver.Queue. The HAL queue belongs to the device.
func (q *Queue) Destroy() {
	q.mu.Lock()
	q.pending = nil
	q.mu.Unlock()
}

// mark binds a fence value to the HAL submission index that completes it.
type mark struct {
	value uint64
	index uint64
}

// Fence tracks driver fence values on top of HAL submission indices.
// HAL fences are managed inside the HAL queue; completion is observed
// through Queue.PollCompleted.
type Fence struct {
	device *Device

	mu        sync.Mutex
	completed uint64
	marks     []mark
}

func (f *Fence) bind(value, index uint64) {
	f.mu.Lock()
	f.marks = append(f.marks, mark{value: value, index: index})
	f.mu.Unlock()
}

// Completed implements driver.Fence. It translates the highest completed
// submission index back into the highest completed fence value.
func (f *Fence) Completed() uint64 {
	done := f.device.queue.PollCompleted()

	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for n < len(f.marks) && f.marks[n].index <= done {
		f.completed = f.marks[n].value
		n++
	}
	f.marks = f.marks[n:]
	return f.completed
}

// Wait implements driver.Fence by polling Completed until value is reached
// or the timeout passes. A negative timeout polls without a deadline.
func (f *Fence) Wait(value uint64, timeout time.Duration) (bool, error) {
	if f.Completed() >= value {
		return true, nil
	}
	if timeout == 0 {
		return false, nil
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	interval := minPollInterval
	for {
		sleep := interval
		if !deadline.IsZero() {
			left := time.Until(deadline)
			if left <= 0 {
				return false, nil
			}
			sleep = min(sleep, left)
		}
		time.Sleep(sleep)
		if f.Completed() >= value {
			return true, nil
		}
		interval = min(interval*2, maxPollInterval)
	}
}

// Destroy implements driver.Fence.
func (f *Fence) Destroy() {
	f.mu.Lock()
	f.marks = nil
	f.mu.Unlock()
}

// Allocator owns a pool-managed HAL command encoder, which holds the
// backend command memory (a Vulkan command pool, a DX12 command allocator).
// Command buffers recorded into it stay valid until Reset.
type Allocator struct {
	device  *Device
	kind    driver.QueueKind
	encoder hal.CommandEncoder

	mu      sync.Mutex
	buffers []hal.CommandBuffer
}

// poolManaged is implemented by HAL encoders that detach their command
// memory on EndEncoding unless told they are reused.
type poolManaged interface {
	SetPoolManaged(managed bool)
}

func (a *Allocator) add(cb hal.CommandBuffer) {
	a.mu.Lock()
	a.buffers = append(a.buffers, cb)
	a.mu.Unlock()
}

// Reset implements driver.Allocator. The GPU must be done with every
// command buffer recorded since the previous Reset.
func (a *Allocator) Reset() error {
	a.mu.Lock()
	bufs := a.buffers
	a.buffers = nil
	a.mu.Unlock()

	a.encoder.ResetAll(bufs)
	return nil
}

// Destroy implements driver.Allocator.
func (a *Allocator) Destroy() {
	a.mu.Lock()
	a.buffers = nil
	a.mu.Unlock()
	a.encoder.Destroy()
}

// Recorder records into the encoder of the allocator it was opened
// against. Encode through Encoder between acquisition and submission.
type Recorder struct {
	device *Device
	kind   driver.QueueKind
	label  string

	mu     sync.Mutex
	alloc  *Allocator
	open   bool
	closed hal.CommandBuffer
}

// Encoder returns the HAL command encoder to record into.
func (r *Recorder) Encoder() hal.CommandEncoder {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.alloc.encoder
}

func (r *Recorder) begin(alloc *Allocator) error {
	if err := alloc.encoder.BeginEncoding(r.label); err != nil {
		return errors.Wrap(err, "begin encoding")
	}
	r.alloc = alloc
	r.open = true
	r.closed = nil
	return nil
}

// Reset implements driver.Recorder.
func (r *Recorder) Reset(a driver.Allocator) error {
	alloc, err := r.device.allocator(r.kind, a)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.open {
		r.alloc.encoder.DiscardEncoding()
		r.open = false
	}
	return r.begin(alloc)
}

// Close implements driver.Recorder. The finished command buffer belongs to
// the allocator the recorder was opened against.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.open {
		return errors.Wrapf(ErrNotRecording, "close %s", r.label)
	}
	r.open = false
	cb, err := r.alloc.encoder.EndEncoding()
	if err != nil {
		return errors.Wrap(err, "end encoding")
	}
	r.closed = cb
	r.alloc.add(cb)
	return nil
}

// Destroy implements driver.Recorder. An open recording is discarded; the
// encoder itself belongs to the allocator.
func (r *Recorder) Destroy() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.open {
		r.alloc.encoder.DiscardEncoding()
		r.open = false
	}
}

func (r *Recorder) commandBuffer() (hal.CommandBuffer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.open || r.closed == nil {
		return nil, errors.Wrapf(ErrNotRecording, "execute %s before close", r.label)
	}
	return r.closed, nil
}
