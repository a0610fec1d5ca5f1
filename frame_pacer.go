package gpusync

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

// FramePacer remembers, per back buffer, the fence value of the last frame
// that rendered into it, so a buffer is not reused before the GPU is done.
//
//	for {
//	    slot := swapChain.CurrentIndex()
//	    if err := pacer.BeginFrame(slot); err != nil { ... }
//	    v, err := queue.Record(drawFrame)
//	    ...
//	    pacer.EndFrame(slot, v)
//	    swapChain.Present()
//	}
//
// FramePacer is safe for concurrent use.
type FramePacer struct {
	queue   *SubmissionQueue
	timeout time.Duration

	mu     sync.Mutex
	values []FenceValue
}

// NewFramePacer creates a pacer for buffers back buffers on q.
// BeginFrame waits up to timeout; use Infinite for no deadline.
func NewFramePacer(q *SubmissionQueue, buffers int, timeout time.Duration) (*FramePacer, error) {
	if q == nil {
		return nil, errors.New("gpusync: frame pacer needs a queue")
	}
	if buffers < 1 {
		return nil, errors.Newf("gpusync: frame pacer needs at least one buffer, got %d", buffers)
	}
	return &FramePacer{
		queue:   q,
		timeout: timeout,
		values:  make([]FenceValue, buffers),
	}, nil
}

// BufferCount returns the number of tracked back buffers.
func (p *FramePacer) BufferCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.values)
}

// BeginFrame waits until the last frame that rendered into slot has
// finished on the GPU.
func (p *FramePacer) BeginFrame(slot int) error {
	v, err := p.Value(slot)
	if err != nil {
		return err
	}
	return p.queue.WaitForFence(v, p.timeout)
}

// EndFrame records v as the completion value of the frame rendered into slot.
func (p *FramePacer) EndFrame(slot int, v FenceValue) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkSlot(slot); err != nil {
		return err
	}
	p.values[slot] = v
	return nil
}

// Value returns the fence value recorded for slot.
func (p *FramePacer) Value(slot int) (FenceValue, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkSlot(slot); err != nil {
		return 0, err
	}
	return p.values[slot], nil
}

// Reset forgets all recorded values and tracks buffers back buffers. Call it
// after the queues were drained for a swap-chain resize.
func (p *FramePacer) Reset(buffers int) error {
	if buffers < 1 {
		return errors.Newf("gpusync: frame pacer needs at least one buffer, got %d", buffers)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.values = make([]FenceValue, buffers)
	return nil
}

func (p *FramePacer) checkSlot(slot int) error {
	if slot < 0 || slot >= len(p.values) {
		return errors.Newf("gpusync: frame slot %d out of range [0, %d)", slot, len(p.values))
	}
	return nil
}
