package gpusync

import (
	"testing"

	"github.com/gogpu/gpusync/backend/soft"
)

// BenchmarkAcquireExecute measures the submit path with allocator reuse.
// The manual timeline is advanced every iteration so the pool stays small.
func BenchmarkAcquireExecute(b *testing.B) {
	q, _, hw := newManualQueue(b, Graphics)

	b.ReportAllocs()
	for b.Loop() {
		cl, err := q.Acquire()
		if err != nil {
			b.Fatal(err)
		}
		if _, err := q.Execute(cl); err != nil {
			b.Fatal(err)
		}
		hw.AdvanceAll()
	}
}

// BenchmarkRecordParallel measures contention on one queue.
func BenchmarkRecordParallel(b *testing.B) {
	q := newTestQueue(b, Graphics)

	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, err := q.Record(func(cl *CommandList) error {
				return cl.Recorder().(*soft.Recorder).Record("draw", nil)
			})
			if err != nil {
				b.Error(err)
				return
			}
		}
	})
}

func BenchmarkIsComplete(b *testing.B) {
	q, _, hw := newManualQueue(b, Compute)
	v := recordDraw(b, q)
	hw.AdvanceAll()

	for b.Loop() {
		if !q.IsComplete(v) {
			b.Fatal("value not complete")
		}
	}
}
