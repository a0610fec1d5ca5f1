package gpusync

import (
	"testing"

	"github.com/cockroachdb/errors"
)

func TestFramePacer(t *testing.T) {
	q, _, hw := newManualQueue(t, Graphics)
	p, err := NewFramePacer(q, 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if p.BufferCount() != 2 {
		t.Fatalf("BufferCount = %d, want 2", p.BufferCount())
	}

	// Fresh slots are free.
	for slot := range 2 {
		if err := p.BeginFrame(slot); err != nil {
			t.Fatalf("BeginFrame(%d) on fresh pacer: %v", slot, err)
		}
	}

	v0 := recordDraw(t, q)
	if err := p.EndFrame(0, v0); err != nil {
		t.Fatal(err)
	}
	v1 := recordDraw(t, q)
	if err := p.EndFrame(1, v1); err != nil {
		t.Fatal(err)
	}

	if err := p.BeginFrame(0); !errors.Is(err, ErrTimeout) {
		t.Fatalf("BeginFrame(0) with frame in flight: got %v, want ErrTimeout", err)
	}

	hw.Advance(1)
	if err := p.BeginFrame(0); err != nil {
		t.Errorf("BeginFrame(0) after its frame completed: %v", err)
	}
	if err := p.BeginFrame(1); !errors.Is(err, ErrTimeout) {
		t.Errorf("BeginFrame(1) with frame in flight: got %v, want ErrTimeout", err)
	}

	if got, _ := p.Value(1); got != v1 {
		t.Errorf("Value(1) = %d, want %d", got, v1)
	}
}

func TestFramePacerSlots(t *testing.T) {
	q, _, _ := newManualQueue(t, Graphics)
	p, err := NewFramePacer(q, 3, Infinite)
	if err != nil {
		t.Fatal(err)
	}

	for _, slot := range []int{-1, 3} {
		if err := p.BeginFrame(slot); err == nil {
			t.Errorf("BeginFrame(%d) accepted", slot)
		}
		if err := p.EndFrame(slot, 1); err == nil {
			t.Errorf("EndFrame(%d) accepted", slot)
		}
	}

	if err := p.EndFrame(2, 7); err != nil {
		t.Fatal(err)
	}
	if err := p.Reset(2); err != nil {
		t.Fatal(err)
	}
	if p.BufferCount() != 2 {
		t.Errorf("BufferCount after Reset = %d, want 2", p.BufferCount())
	}
	if v, _ := p.Value(1); v != 0 {
		t.Errorf("Value(1) after Reset = %d, want 0", v)
	}
	if err := p.Reset(0); err == nil {
		t.Error("Reset(0) accepted")
	}
}

func TestNewFramePacerErrors(t *testing.T) {
	if _, err := NewFramePacer(nil, 2, Infinite); err == nil {
		t.Error("nil queue accepted")
	}
	q, _, _ := newManualQueue(t, Graphics)
	if _, err := NewFramePacer(q, 0, Infinite); err == nil {
		t.Error("zero buffers accepted")
	}
}
