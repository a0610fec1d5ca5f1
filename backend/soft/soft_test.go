// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package soft

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/gogpu/gpusync/driver"
)

// newRecording creates a queue, fence, allocator and an open recorder.
func newRecording(t *testing.T, dev *Device) (*Queue, *Fence, *Allocator, *Recorder) {
	t.Helper()
	q, err := dev.CreateQueue(driver.Graphics)
	if err != nil {
		t.Fatalf("CreateQueue: %v", err)
	}
	t.Cleanup(q.Destroy)
	f, err := dev.CreateFence(0)
	if err != nil {
		t.Fatalf("CreateFence: %v", err)
	}
	a, err := dev.CreateAllocator(driver.Graphics)
	if err != nil {
		t.Fatalf("CreateAllocator: %v", err)
	}
	r, err := dev.CreateRecorder(driver.Graphics, a)
	if err != nil {
		t.Fatalf("CreateRecorder: %v", err)
	}
	return q.(*Queue), f.(*Fence), a.(*Allocator), r.(*Recorder)
}

func TestManualTimeline(t *testing.T) {
	dev := New(WithManualCompletion())
	q, f, a, r := newRecording(t, dev)

	if err := r.Record("draw", 36); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := q.Execute(r); !errors.Is(err, ErrStillRecording) {
		t.Fatalf("Execute open recorder: got %v, want ErrStillRecording", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := q.Execute(r); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if err := q.Signal(f, 1); err != nil {
		t.Fatalf("Signal: %v", err)
	}

	if got := a.InFlight(); got != 1 {
		t.Errorf("InFlight = %d, want 1", got)
	}
	if err := a.Reset(); !errors.Is(err, ErrAllocatorBusy) {
		t.Errorf("Reset in flight: got %v, want ErrAllocatorBusy", err)
	}
	if got := dev.Stats().Violations; got != 1 {
		t.Errorf("Violations = %d, want 1", got)
	}
	if f.Completed() != 0 {
		t.Errorf("Completed = %d before Advance", f.Completed())
	}

	if n := q.Advance(1); n != 1 {
		t.Fatalf("Advance(1) = %d, want 1", n)
	}
	if f.Completed() != 1 {
		t.Errorf("Completed = %d, want 1", f.Completed())
	}
	if err := a.Reset(); err != nil {
		t.Errorf("Reset after completion: %v", err)
	}
	if got := dev.Stats().Executed; got != 1 {
		t.Errorf("Executed = %d, want 1", got)
	}
}

func TestFenceWaitTimeout(t *testing.T) {
	dev := New(WithManualCompletion())
	q, f, _, _ := newRecording(t, dev)
	if err := q.Signal(f, 1); err != nil {
		t.Fatalf("Signal: %v", err)
	}

	ok, err := f.Wait(1, 0)
	if ok || err != nil {
		t.Fatalf("Wait(1, 0) = (%v, %v), want (false, nil)", ok, err)
	}
	ok, err = f.Wait(1, 5*time.Millisecond)
	if ok || err != nil {
		t.Fatalf("Wait(1, 5ms) = (%v, %v), want (false, nil)", ok, err)
	}

	done := make(chan bool)
	go func() {
		ok, _ := f.Wait(1, -1)
		done <- ok
	}()
	q.AdvanceAll()
	select {
	case ok := <-done:
		if !ok {
			t.Error("Wait without deadline returned false")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Wait without deadline did not return after the signal")
	}
}

func TestBackgroundTimeline(t *testing.T) {
	dev := New(WithLatency(time.Millisecond))
	q, f, _, r := newRecording(t, dev)
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	for v := uint64(1); v <= 3; v++ {
		if err := q.Execute(r); err != nil {
			t.Fatalf("Execute: %v", err)
		}
		if err := q.Signal(f, v); err != nil {
			t.Fatalf("Signal: %v", err)
		}
	}
	ok, err := f.Wait(3, 5*time.Second)
	if !ok || err != nil {
		t.Fatalf("Wait(3) = (%v, %v)", ok, err)
	}
	if got := dev.Stats().Executed; got != 3 {
		t.Errorf("Executed = %d, want 3", got)
	}
}

func TestFenceNeverMovesBackwards(t *testing.T) {
	f := newFence(5)
	f.set(3)
	if f.Completed() != 5 {
		t.Errorf("Completed = %d, want 5", f.Completed())
	}
	f.set(7)
	if f.Completed() != 7 {
		t.Errorf("Completed = %d, want 7", f.Completed())
	}
}

func TestQueueLose(t *testing.T) {
	dev := New(WithManualCompletion())
	q, f, _, r := newRecording(t, dev)
	if err := q.Signal(f, 1); err != nil {
		t.Fatalf("Signal: %v", err)
	}

	waitErr := make(chan error)
	go func() {
		_, err := f.Wait(1, -1)
		waitErr <- err
	}()
	q.Lose()

	select {
	case err := <-waitErr:
		if !errors.Is(err, ErrDeviceRemoved) {
			t.Errorf("Wait after Lose: got %v, want ErrDeviceRemoved", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return after Lose")
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := q.Execute(r); !errors.Is(err, ErrDeviceRemoved) {
		t.Errorf("Execute after Lose: got %v, want ErrDeviceRemoved", err)
	}
	if err := q.Signal(f, 2); !errors.Is(err, ErrDeviceRemoved) {
		t.Errorf("Signal after Lose: got %v, want ErrDeviceRemoved", err)
	}
}

func TestFailNext(t *testing.T) {
	injected := errors.New("out of memory")
	tests := []struct {
		obj    Object
		create func(*Device) error
	}{
		{ObjectQueue, func(d *Device) error { _, err := d.CreateQueue(driver.Copy); return err }},
		{ObjectFence, func(d *Device) error { _, err := d.CreateFence(0); return err }},
		{ObjectAllocator, func(d *Device) error { _, err := d.CreateAllocator(driver.Copy); return err }},
		{ObjectRecorder, func(d *Device) error {
			a, err := d.CreateAllocator(driver.Copy)
			if err != nil {
				return err
			}
			_, err = d.CreateRecorder(driver.Copy, a)
			return err
		}},
	}
	for _, tt := range tests {
		dev := New(WithManualCompletion())
		dev.FailNext(tt.obj, injected)
		if err := tt.create(dev); !errors.Is(err, injected) {
			t.Errorf("object %d: got %v, want injected error", tt.obj, err)
		}
		if err := tt.create(dev); err != nil {
			t.Errorf("object %d: failure was not one-shot: %v", tt.obj, err)
		}
	}
}

func TestForeignObjects(t *testing.T) {
	dev := New(WithManualCompletion())
	other := New(WithManualCompletion())

	a, err := other.CreateAllocator(driver.Graphics)
	if err != nil {
		t.Fatalf("CreateAllocator: %v", err)
	}
	if _, err := dev.CreateRecorder(driver.Graphics, a); !errors.Is(err, ErrForeignObject) {
		t.Errorf("recorder on foreign allocator: got %v, want ErrForeignObject", err)
	}

	copyAlloc, err := dev.CreateAllocator(driver.Copy)
	if err != nil {
		t.Fatalf("CreateAllocator: %v", err)
	}
	if _, err := dev.CreateRecorder(driver.Graphics, copyAlloc); !errors.Is(err, ErrForeignObject) {
		t.Errorf("graphics recorder on copy allocator: got %v, want ErrForeignObject", err)
	}
}
