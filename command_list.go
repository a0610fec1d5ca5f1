package gpusync

import (
	"sync/atomic"

	"github.com/gogpu/gpusync/driver"
)

// ListState is the lifecycle state of a CommandList.
type ListState uint32

const (
	// ListRecording means the list is open and may be executed or discarded.
	ListRecording ListState = iota
	// ListSubmitted means the list was executed. Its resources are back in the pool.
	ListSubmitted
	// ListDiscarded means the list was abandoned without submission.
	ListDiscarded
)

// String returns the state name.
func (s ListState) String() string {
	switch s {
	case ListRecording:
		return "recording"
	case ListSubmitted:
		return "submitted"
	case ListDiscarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// CommandList is one acquisition of a pooled recorder and the allocator it
// records into. Encode commands through Recorder, then hand the list to
// SubmissionQueue.Execute or SubmissionQueue.Discard exactly once.
//
// A CommandList must not be recorded into from several goroutines at once.
// Once executed or discarded the handle is dead: the underlying recorder is
// reused by later acquisitions under a new handle.
type CommandList struct {
	owner     *SubmissionQueue
	recorder  driver.Recorder
	allocator driver.Allocator
	id        uint64
	state     atomic.Uint32
	// released is set once the pool has taken the list's objects back.
	released atomic.Bool
}

// Kind returns the kind of queue the list was acquired from.
func (cl *CommandList) Kind() QueueKind {
	return cl.owner.Kind()
}

// Recorder returns the backend recorder to encode commands with. Backends
// document the concrete type.
func (cl *CommandList) Recorder() driver.Recorder {
	return cl.recorder
}

// ID returns a per-queue sequence number of the acquisition, for logging.
func (cl *CommandList) ID() uint64 {
	return cl.id
}

// State returns the lifecycle state of the list.
func (cl *CommandList) State() ListState {
	return ListState(cl.state.Load())
}

// finish moves the list out of ListRecording. It reports false when the
// list had already left it.
func (cl *CommandList) finish(to ListState) bool {
	return cl.state.CompareAndSwap(uint32(ListRecording), uint32(to))
}
