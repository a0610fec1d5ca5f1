// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package soft

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/gogpu/gpusync/driver"
)

// Errors reported by the software device.
var (
	// ErrDeviceRemoved is returned by every operation on a lost queue or device.
	ErrDeviceRemoved = errors.New("soft: device removed")

	// ErrAllocatorBusy is returned when an allocator is reset while work
	// recorded into it has not finished.
	ErrAllocatorBusy = errors.New("soft: allocator reset while in flight")

	// ErrNotRecording is returned when a closed recorder is closed or recorded into.
	ErrNotRecording = errors.New("soft: recorder is not recording")

	// ErrStillRecording is returned when an open recorder is executed.
	ErrStillRecording = errors.New("soft: recorder is still recording")

	// ErrForeignObject is returned when an object from another backend or
	// queue kind is passed in.
	ErrForeignObject = errors.New("soft: object does not belong to this device")
)

// Object names a creatable object kind for failure injection.
type Object int

// Creatable objects.
const (
	ObjectQueue Object = iota
	ObjectFence
	ObjectAllocator
	ObjectRecorder
)

// Stats counts objects and work on a Device.
type Stats struct {
	Queues     int
	Fences     int
	Allocators int
	Recorders  int

	// Executed counts recorders the timeline has finished.
	Executed int
	// Violations counts allocator resets attempted while in flight.
	Violations int
}

// Option configures a Device.
type Option func(*Device)

// WithLatency makes every submitted recorder take d on the timeline.
func WithLatency(d time.Duration) Option {
	return func(dev *Device) {
		dev.latency = d
	}
}

// WithManualCompletion disables the background timeline. Work only
// progresses through Queue.Advance and Queue.AdvanceAll.
func WithManualCompletion() Option {
	return func(dev *Device) {
		dev.manual = true
	}
}

// Device is a software GPU implementing driver.Device.
//
// Device is safe for concurrent use.
type Device struct {
	latency time.Duration
	manual  bool

	mu     sync.Mutex
	queues map[driver.QueueKind]*Queue
	fail   map[Object]error
	stats  Stats
	lost   bool
}

// Interface compliance checks.
var (
	_ driver.Device    = (*Device)(nil)
	_ driver.Queue     = (*Queue)(nil)
	_ driver.Fence     = (*Fence)(nil)
	_ driver.Allocator = (*Allocator)(nil)
	_ driver.Recorder  = (*Recorder)(nil)
)

// New creates a software device.
func New(opts ...Option) *Device {
	d := &Device{
		queues: make(map[driver.QueueKind]*Queue),
		fail:   make(map[Object]error),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// FailNext makes the next creation of obj return err.
func (d *Device) FailNext(obj Object, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail[obj] = err
}

// Stats returns a snapshot of the device counters.
func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// Queue returns the most recently created queue of the given kind, or nil.
func (d *Device) Queue(kind driver.QueueKind) *Queue {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queues[kind]
}

// Lose removes the device: every queue stops executing, submissions fail
// and fence waits return ErrDeviceRemoved.
func (d *Device) Lose() {
	d.mu.Lock()
	d.lost = true
	queues := make([]*Queue, 0, len(d.queues))
	for _, q := range d.queues {
		queues = append(queues, q)
	}
	d.mu.Unlock()

	for _, q := range queues {
		q.Lose()
	}
}

// create must be called with mu held.
func (d *Device) create(obj Object) error {
	if d.lost {
		return ErrDeviceRemoved
	}
	if err, ok := d.fail[obj]; ok {
		delete(d.fail, obj)
		return err
	}
	return nil
}

// CreateQueue implements driver.Device.
func (d *Device) CreateQueue(kind driver.QueueKind) (driver.Queue, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.create(ObjectQueue); err != nil {
		return nil, err
	}
	q := newQueue(d, kind)
	d.queues[kind] = q
	d.stats.Queues++
	return q, nil
}

// CreateFence implements driver.Device.
func (d *Device) CreateFence(initial uint64) (driver.Fence, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.create(ObjectFence); err != nil {
		return nil, err
	}
	d.stats.Fences++
	return newFence(initial), nil
}

// CreateAllocator implements driver.Device.
func (d *Device) CreateAllocator(kind driver.QueueKind) (driver.Allocator, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.create(ObjectAllocator); err != nil {
		return nil, err
	}
	d.stats.Allocators++
	return &Allocator{device: d, kind: kind, id: d.stats.Allocators}, nil
}

// CreateRecorder implements driver.Device.
func (d *Device) CreateRecorder(kind driver.QueueKind, a driver.Allocator) (driver.Recorder, error) {
	alloc, err := d.allocator(kind, a)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.create(ObjectRecorder); err != nil {
		return nil, err
	}
	d.stats.Recorders++
	return &Recorder{device: d, kind: kind, id: d.stats.Recorders, alloc: alloc, open: true}, nil
}

func (d *Device) allocator(kind driver.QueueKind, a driver.Allocator) (*Allocator, error) {
	alloc, ok := a.(*Allocator)
	if !ok || alloc.device != d {
		return nil, errors.Wrapf(ErrForeignObject, "allocator %T", a)
	}
	if alloc.kind != kind {
		return nil, errors.Wrapf(ErrForeignObject, "%s allocator used for %s recorder", alloc.kind, kind)
	}
	return alloc, nil
}

func (d *Device) countExecuted(n int) {
	d.mu.Lock()
	d.stats.Executed += n
	d.mu.Unlock()
}

func (d *Device) countViolation() {
	d.mu.Lock()
	d.stats.Violations++
	d.mu.Unlock()
}
