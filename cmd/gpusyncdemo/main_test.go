package main

import (
	"testing"
	"time"

	"github.com/gogpu/gpusync/backend/soft"
)

func TestRunSoft(t *testing.T) {
	dev := soft.New(soft.WithLatency(100 * time.Microsecond))
	stats, err := run(dev, config{
		frames:    12,
		buffers:   3,
		instances: 64,
		batches:   4,
		resizeAt:  6,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.frames != 12 {
		t.Errorf("frames = %d, want 12", stats.frames)
	}
	if !stats.resized {
		t.Error("resize handler did not run")
	}
	if stats.graphics.Outstanding != 0 {
		t.Errorf("outstanding command lists: %d", stats.graphics.Outstanding)
	}
	if stats.graphics.AllocatorsReused == 0 {
		t.Error("no graphics allocator was reused across frames")
	}
	if got := dev.Stats().Violations; got != 0 {
		t.Errorf("allocator reset while in flight %d times", got)
	}
	// One upload plus four batches per frame.
	if got := dev.Stats().Executed; got != 1+12*4 {
		t.Errorf("Executed = %d, want %d", got, 1+12*4)
	}
}

func TestSplit(t *testing.T) {
	items := make([]instance, 10)
	tests := []struct {
		n     int
		sizes []int
	}{
		{1, []int{10}},
		{3, []int{3, 3, 4}},
		{4, []int{2, 3, 2, 3}},
		{20, []int{1, 1, 1, 1, 1, 1, 1, 1, 1, 1}},
		{0, []int{10}},
	}
	for _, tt := range tests {
		parts := split(items, tt.n)
		if len(parts) != len(tt.sizes) {
			t.Errorf("split(10, %d): %d parts, want %d", tt.n, len(parts), len(tt.sizes))
			continue
		}
		for i, p := range parts {
			if len(p) != tt.sizes[i] {
				t.Errorf("split(10, %d)[%d] has %d items, want %d", tt.n, i, len(p), tt.sizes[i])
			}
		}
	}
}

func TestSceneUpdate(t *testing.T) {
	s := newScene(9)
	a := s.update(0)
	if len(a) != 9 {
		t.Fatalf("len = %d, want 9", len(a))
	}
	first := a[0].MVP
	b := s.update(time.Second)
	if b[0].MVP == first {
		t.Error("transforms did not change over time")
	}
}
