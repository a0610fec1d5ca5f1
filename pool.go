package gpusync

import (
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/gogpu/gpusync/driver"
	"github.com/gogpu/gpusync/internal/fifo"
)

// allocatorEntry parks an allocator until the GPU reaches fence.
type allocatorEntry struct {
	fence     FenceValue
	allocator driver.Allocator
}

// PoolStats is a snapshot of RecorderPool counters.
type PoolStats struct {
	AllocatorsCreated int
	AllocatorsReused  int
	RecordersCreated  int
	RecordersReused   int

	// PendingAllocators are parked until their fence value completes.
	PendingAllocators int
	// IdleRecorders are ready for immediate reuse.
	IdleRecorders int
	// Outstanding counts command lists acquired but not yet released.
	Outstanding int
}

// RecorderPool recycles allocators and recorders for one queue.
//
// Allocators are parked in FIFO order together with the fence value of their
// last submission. Fence values complete in issue order, so the head of the
// FIFO is always the first allocator that may become reusable; Acquire only
// needs to look at it. An allocator is never reset before its value is complete.
//
// RecorderPool is safe for concurrent use.
type RecorderPool struct {
	owner  *SubmissionQueue
	device driver.Device
	fences *FenceTracker

	mu           sync.Mutex
	allocators   fifo.Queue[allocatorEntry]
	recorders    fifo.Queue[driver.Recorder]
	lastReleased FenceValue
	nextID       uint64
	stats        PoolStats
	closed       bool
}

func newRecorderPool(owner *SubmissionQueue, dev driver.Device, fences *FenceTracker) *RecorderPool {
	return &RecorderPool{
		owner:  owner,
		device: dev,
		fences: fences,
	}
}

// Acquire returns an open command list. It reuses the oldest parked
// allocator when its fence value is complete and an idle recorder when one
// exists; otherwise it creates new ones.
func (p *RecorderPool) Acquire() (*CommandList, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, errors.Wrapf(ErrClosed, "%s queue", p.owner.Kind())
	}
	alloc, err := p.nextAllocator()
	if err != nil {
		return nil, err
	}
	rec, err := p.nextRecorder(alloc)
	if err != nil {
		// Nothing was recorded into alloc; park it behind everything in flight.
		p.park(alloc, p.fences.Last())
		return nil, err
	}

	p.nextID++
	p.stats.Outstanding++
	cl := &CommandList{
		owner:     p.owner,
		recorder:  rec,
		allocator: alloc,
		id:        p.nextID,
	}
	return cl, nil
}

func (p *RecorderPool) nextAllocator() (driver.Allocator, error) {
	kind := p.owner.Kind()
	if head, ok := p.allocators.Front(); ok && p.fences.IsComplete(head.fence) {
		p.allocators.Pop()
		if err := head.allocator.Reset(); err != nil {
			head.allocator.Destroy()
			return nil, deviceLost(err, "reset %s allocator (fence %d)", kind, head.fence)
		}
		p.stats.AllocatorsReused++
		Logger().Debug("gpusync: allocator reused", "queue", kind, "fence", uint64(head.fence))
		return head.allocator, nil
	}

	alloc, err := p.device.CreateAllocator(kind)
	if err != nil {
		return nil, initError(err, "create %s allocator", kind)
	}
	if alloc == nil {
		return nil, initError(errors.New("driver returned nil allocator"), "create %s allocator", kind)
	}
	p.stats.AllocatorsCreated++
	Logger().Debug("gpusync: allocator created", "queue", kind, "pending", p.allocators.Len())
	return alloc, nil
}

func (p *RecorderPool) nextRecorder(alloc driver.Allocator) (driver.Recorder, error) {
	kind := p.owner.Kind()
	if rec, ok := p.recorders.Pop(); ok {
		if err := rec.Reset(alloc); err != nil {
			rec.Destroy()
			return nil, deviceLost(err, "reset %s recorder", kind)
		}
		p.stats.RecordersReused++
		return rec, nil
	}

	rec, err := p.device.CreateRecorder(kind, alloc)
	if err != nil {
		return nil, initError(err, "create %s recorder", kind)
	}
	if rec == nil {
		return nil, initError(errors.New("driver returned nil recorder"), "create %s recorder", kind)
	}
	p.stats.RecordersCreated++
	return rec, nil
}

// release parks the list's allocator until the GPU reaches v and returns
// its recorder to the idle list. The owning queue calls it once per list,
// under its lock, so values arrive in fence order. A second release of the
// same list is refused; parking its objects twice would hand them to two
// live lists.
func (p *RecorderPool) release(cl *CommandList, v FenceValue) bool {
	if !cl.released.CompareAndSwap(false, true) {
		Logger().Warn("gpusync: command list released twice",
			"queue", p.owner.Kind(), "list", cl.id)
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.park(cl.allocator, v)
	p.recorders.Push(cl.recorder)
	p.stats.Outstanding--
	return true
}

// drop forgets a list whose submission failed part way. Its allocator may
// still be referenced by the GPU, so it is neither reset nor handed out
// again. The recorder's open recording is discarded.
func (p *RecorderPool) drop(cl *CommandList) {
	if !cl.released.CompareAndSwap(false, true) {
		return
	}
	cl.recorder.Destroy()

	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.Outstanding--
	Logger().Warn("gpusync: command list dropped after failed submission",
		"queue", p.owner.Kind(), "list", cl.id)
}

// park must be called with mu held.
func (p *RecorderPool) park(alloc driver.Allocator, v FenceValue) {
	if v < p.lastReleased {
		// Keep the FIFO sorted; waiting longer than needed is safe.
		Logger().Warn("gpusync: allocator released out of fence order",
			"queue", p.owner.Kind(), "fence", uint64(v), "last", uint64(p.lastReleased))
		v = p.lastReleased
	}
	p.lastReleased = v
	p.allocators.Push(allocatorEntry{fence: v, allocator: alloc})
}

// Stats returns a snapshot of the pool counters.
func (p *RecorderPool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.stats
	s.PendingAllocators = p.allocators.Len()
	s.IdleRecorders = p.recorders.Len()
	return s
}

// destroy releases every pooled object. The GPU must be idle.
func (p *RecorderPool) destroy() (outstanding int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	p.recorders.Drain(func(r driver.Recorder) { r.Destroy() })
	p.allocators.Drain(func(e allocatorEntry) { e.allocator.Destroy() })
	return p.stats.Outstanding
}
