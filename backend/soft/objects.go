// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package soft

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/gogpu/gpusync/driver"
)

// Fence is a software fence. Its value only moves forward.
type Fence struct {
	mu        sync.Mutex
	completed uint64
	lost      bool
	// changed is closed and replaced whenever completed or lost changes.
	changed chan struct{}
}

func newFence(initial uint64) *Fence {
	return &Fence{completed: initial, changed: make(chan struct{})}
}

// Completed implements driver.Fence.
func (f *Fence) Completed() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completed
}

// Wait implements driver.Fence.
func (f *Fence) Wait(value uint64, timeout time.Duration) (bool, error) {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		f.mu.Lock()
		completed, lost, changed := f.completed, f.lost, f.changed
		f.mu.Unlock()

		switch {
		case completed >= value:
			return true, nil
		case lost:
			return false, ErrDeviceRemoved
		case timeout == 0:
			return false, nil
		}

		select {
		case <-changed:
		case <-deadline:
			return f.Completed() >= value, nil
		}
	}
}

// Destroy implements driver.Fence.
func (f *Fence) Destroy() {}

func (f *Fence) set(value uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if value <= f.completed {
		return
	}
	f.completed = value
	close(f.changed)
	f.changed = make(chan struct{})
}

func (f *Fence) lose() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lost {
		return
	}
	f.lost = true
	close(f.changed)
	f.changed = make(chan struct{})
}

// Allocator is software command memory. It counts the submissions that
// still reference it.
type Allocator struct {
	device   *Device
	kind     driver.QueueKind
	id       int
	inFlight atomic.Int32
	resets   atomic.Int32
}

// ID returns the creation sequence number of the allocator on its device.
func (a *Allocator) ID() int { return a.id }

// Resets returns how many times the allocator was reset.
func (a *Allocator) Resets() int { return int(a.resets.Load()) }

// InFlight returns the number of queued submissions recorded into a.
func (a *Allocator) InFlight() int { return int(a.inFlight.Load()) }

// Reset implements driver.Allocator. It fails with ErrAllocatorBusy while
// work recorded into a is still queued.
func (a *Allocator) Reset() error {
	if n := a.inFlight.Load(); n > 0 {
		a.device.countViolation()
		return errors.Wrapf(ErrAllocatorBusy, "allocator %d has %d submissions in flight", a.id, n)
	}
	a.resets.Add(1)
	return nil
}

// Destroy implements driver.Allocator.
func (a *Allocator) Destroy() {}

// Command is one recorded software command.
type Command struct {
	Name    string
	Payload any
}

// Recorder is a software command recorder. Record appends commands while
// the recorder is open.
type Recorder struct {
	device *Device
	kind   driver.QueueKind
	id     int

	mu        sync.Mutex
	alloc     *Allocator
	open      bool
	destroyed bool
	commands  []Command
}

// ID returns the creation sequence number of the recorder on its device.
func (r *Recorder) ID() int { return r.id }

// Allocator returns the allocator the recorder currently records into.
func (r *Recorder) Allocator() *Allocator {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.alloc
}

// Record appends a command.
func (r *Recorder) Record(name string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.open {
		return errors.Wrapf(ErrNotRecording, "record %q into recorder %d", name, r.id)
	}
	r.commands = append(r.commands, Command{Name: name, Payload: payload})
	return nil
}

// Commands returns a copy of the recorded commands.
func (r *Recorder) Commands() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Command(nil), r.commands...)
}

// Reset implements driver.Recorder.
func (r *Recorder) Reset(a driver.Allocator) error {
	alloc, err := r.device.allocator(r.kind, a)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alloc = alloc
	r.open = true
	r.commands = r.commands[:0]
	return nil
}

// Close implements driver.Recorder.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.open {
		return errors.Wrapf(ErrNotRecording, "close recorder %d", r.id)
	}
	r.open = false
	return nil
}

// Destroy implements driver.Recorder. An open recording is abandoned.
func (r *Recorder) Destroy() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.open = false
	r.destroyed = true
}

// Destroyed reports whether Destroy was called.
func (r *Recorder) Destroyed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.destroyed
}

// snapshot returns what a submission of r captures.
func (r *Recorder) snapshot() (*Allocator, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.open {
		return nil, 0, errors.Wrapf(ErrStillRecording, "execute recorder %d", r.id)
	}
	return r.alloc, len(r.commands), nil
}
