package gpusync

import (
	"testing"

	"github.com/gogpu/gpusync/backend/soft"
)

// newTestQueue creates a queue on a software device whose timeline runs in
// the background. The queue is closed when the test ends.
func newTestQueue(t testing.TB, kind QueueKind, opts ...soft.Option) *SubmissionQueue {
	t.Helper()
	q, _ := newTestQueueOn(t, soft.New(opts...), kind)
	t.Cleanup(func() { _ = q.Close() })
	return q
}

// newManualQueue creates a queue on a software device that only makes
// progress when the returned hardware queue is advanced. It is not closed
// on cleanup since closing would wait for work nobody completes.
func newManualQueue(t testing.TB, kind QueueKind) (*SubmissionQueue, *soft.Device, *soft.Queue) {
	t.Helper()
	dev := soft.New(soft.WithManualCompletion())
	q, hw := newTestQueueOn(t, dev, kind)
	return q, dev, hw
}

func newTestQueueOn(t testing.TB, dev *soft.Device, kind QueueKind) (*SubmissionQueue, *soft.Queue) {
	t.Helper()
	q, err := NewSubmissionQueue(dev, kind)
	if err != nil {
		t.Fatalf("NewSubmissionQueue(%s): %v", kind, err)
	}
	return q, dev.Queue(kind)
}

// recordDraw submits one list holding a single draw command.
func recordDraw(t testing.TB, q *SubmissionQueue) FenceValue {
	t.Helper()
	v, err := q.Record(func(cl *CommandList) error {
		return cl.Recorder().(*soft.Recorder).Record("draw", nil)
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	return v
}

// allocatorID returns the software allocator a command list records into.
func allocatorID(cl *CommandList) int {
	return cl.Recorder().(*soft.Recorder).Allocator().ID()
}
