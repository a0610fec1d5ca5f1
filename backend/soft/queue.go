// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package soft

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/gogpu/gpusync/driver"
)

// op is one entry on a queue timeline: either a batch of recorders to
// execute or a fence signal.
type op struct {
	allocators []*Allocator
	fence      *Fence
	value      uint64
}

// Queue is a software queue with an in-order timeline.
type Queue struct {
	device  *Device
	kind    driver.QueueKind
	latency time.Duration

	mu      sync.Mutex
	cond    *sync.Cond
	ops     []op
	fences  map[*Fence]struct{}
	lost    bool
	stopped bool
	done    chan struct{}
}

func newQueue(d *Device, kind driver.QueueKind) *Queue {
	q := &Queue{
		device:  d,
		kind:    kind,
		latency: d.latency,
		fences:  make(map[*Fence]struct{}),
		done:    make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	if d.manual {
		close(q.done)
	} else {
		go q.run()
	}
	return q
}

// Kind implements driver.Queue.
func (q *Queue) Kind() driver.QueueKind { return q.kind }

// Execute implements driver.Queue. Every recorder must be a closed
// *Recorder of the queue's kind.
func (q *Queue) Execute(recorders ...driver.Recorder) error {
	allocs := make([]*Allocator, 0, len(recorders))
	for _, r := range recorders {
		rec, ok := r.(*Recorder)
		if !ok || rec.device != q.device || rec.kind != q.kind {
			return errors.Wrapf(ErrForeignObject, "execute %T on %s queue", r, q.kind)
		}
		alloc, _, err := rec.snapshot()
		if err != nil {
			return err
		}
		allocs = append(allocs, alloc)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.lost {
		return ErrDeviceRemoved
	}
	for _, a := range allocs {
		a.inFlight.Add(1)
	}
	q.ops = append(q.ops, op{allocators: allocs})
	q.cond.Signal()
	return nil
}

// Signal implements driver.Queue.
func (q *Queue) Signal(f driver.Fence, value uint64) error {
	fence, ok := f.(*Fence)
	if !ok {
		return errors.Wrapf(ErrForeignObject, "signal %T on %s queue", f, q.kind)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.lost {
		return ErrDeviceRemoved
	}
	q.fences[fence] = struct{}{}
	q.ops = append(q.ops, op{fence: fence, value: value})
	q.cond.Signal()
	return nil
}

// Pending returns the number of timeline entries not yet processed.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

// Advance processes the timeline up to and including the next n fence
// signals and returns how many signals it processed. It is meant for
// devices created WithManualCompletion.
func (q *Queue) Advance(n int) int {
	signals := 0
	for signals < n {
		o, ok := q.pop(false)
		if !ok {
			break
		}
		q.process(o)
		if o.fence != nil {
			signals++
		}
	}
	return signals
}

// AdvanceAll processes every queued entry.
func (q *Queue) AdvanceAll() {
	for {
		o, ok := q.pop(false)
		if !ok {
			return
		}
		q.process(o)
	}
}

// Lose simulates removal of this queue: queued work is dropped, further
// submissions fail and waits on fences it signals return ErrDeviceRemoved.
func (q *Queue) Lose() {
	q.mu.Lock()
	q.lost = true
	q.ops = nil
	fences := make([]*Fence, 0, len(q.fences))
	for f := range q.fences {
		fences = append(fences, f)
	}
	q.cond.Broadcast()
	q.mu.Unlock()

	for _, f := range fences {
		f.lose()
	}
}

// Destroy implements driver.Queue. It stops the timeline goroutine.
func (q *Queue) Destroy() {
	q.mu.Lock()
	q.stopped = true
	q.cond.Broadcast()
	q.mu.Unlock()
	<-q.done
}

func (q *Queue) run() {
	defer close(q.done)
	for {
		o, ok := q.pop(true)
		if !ok {
			return
		}
		q.process(o)
	}
}

// pop removes the next entry. With wait it blocks until one is available
// or the queue stops.
func (q *Queue) pop(wait bool) (op, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for wait && len(q.ops) == 0 && !q.stopped {
		q.cond.Wait()
	}
	if len(q.ops) == 0 || (wait && q.stopped) {
		return op{}, false
	}
	o := q.ops[0]
	q.ops[0] = op{}
	q.ops = q.ops[1:]
	return o, true
}

func (q *Queue) process(o op) {
	if o.fence != nil {
		o.fence.set(o.value)
		return
	}
	if q.latency > 0 {
		time.Sleep(q.latency)
	}
	for _, a := range o.allocators {
		a.inFlight.Add(-1)
	}
	q.device.countExecuted(len(o.allocators))
}
