// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package driver defines the hardware boundary consumed by gpusync.
//
// A backend (see backend/soft and backend/wgpu) implements these interfaces
// on top of a real or simulated GPU. gpusync never touches GPU objects
// except through them, so the synchronization logic can be exercised
// without a device.
//
// The model follows explicit graphics APIs:
//
//	Device    -> creates queues, fences, allocators and recorders
//	Allocator -> backing memory for recorded commands
//	Recorder  -> encodes commands into an Allocator, closed before submission
//	Queue     -> executes closed recorders in order and signals fences
//	Fence     -> a monotonically increasing completion value
package driver

import "time"

// QueueKind identifies the hardware queue family a queue belongs to.
type QueueKind uint8

const (
	// Graphics queues accept draw, compute and copy work.
	Graphics QueueKind = iota
	// Compute queues accept compute and copy work.
	Compute
	// Copy queues accept transfer work only.
	Copy
)

// String returns the lowercase name of the queue kind.
func (k QueueKind) String() string {
	switch k {
	case Graphics:
		return "graphics"
	case Compute:
		return "compute"
	case Copy:
		return "copy"
	default:
		return "unknown"
	}
}

// Kinds lists every queue kind in creation order.
func Kinds() []QueueKind {
	return []QueueKind{Graphics, Compute, Copy}
}

// Device creates the objects needed to submit work.
type Device interface {
	// CreateQueue creates a hardware queue of the given kind.
	CreateQueue(kind QueueKind) (Queue, error)

	// CreateFence creates a fence whose completed value starts at initial.
	CreateFence(initial uint64) (Fence, error)

	// CreateAllocator creates command memory for recorders of the given kind.
	CreateAllocator(kind QueueKind) (Allocator, error)

	// CreateRecorder creates a recorder that is open and recording into a.
	CreateRecorder(kind QueueKind, a Allocator) (Recorder, error)
}

// Queue executes closed recorders in submission order.
//
// Implementations must be safe for sequential use from one goroutine at a
// time; gpusync serializes calls per queue.
type Queue interface {
	// Kind returns the queue family.
	Kind() QueueKind

	// Execute submits closed recorders for execution.
	Execute(recorders ...Recorder) error

	// Signal instructs the queue to set f to value once all previously
	// submitted work has finished.
	Signal(f Fence, value uint64) error

	// Destroy releases the queue.
	Destroy()
}

// Fence reports GPU progress as a monotonically increasing value.
type Fence interface {
	// Completed returns the last value the GPU has reached.
	Completed() uint64

	// Wait blocks until the fence reaches value or timeout elapses.
	// It reports false when the timeout elapsed first. A negative timeout
	// waits without a deadline.
	Wait(value uint64, timeout time.Duration) (bool, error)

	// Destroy releases the fence.
	Destroy()
}

// Allocator owns the memory recorded commands live in. Reset must only be
// called once the GPU has finished every submission recorded into it.
type Allocator interface {
	Reset() error
	Destroy()
}

// Recorder encodes commands into an Allocator.
type Recorder interface {
	// Reset reopens the recorder against a, discarding earlier contents.
	Reset(a Allocator) error

	// Close ends recording. A closed recorder can be executed.
	Close() error

	// Destroy releases the recorder.
	Destroy()
}
