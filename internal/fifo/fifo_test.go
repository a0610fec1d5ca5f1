// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package fifo

import "testing"

func TestQueueOrder(t *testing.T) {
	var q Queue[int]
	for i := range 10 {
		q.Push(i)
	}
	if q.Len() != 10 {
		t.Fatalf("Len = %d, want 10", q.Len())
	}
	for i := range 10 {
		v, ok := q.Pop()
		if !ok || v != i {
			t.Fatalf("Pop = (%d, %v), want (%d, true)", v, ok, i)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Error("Pop on empty queue reported an element")
	}
}

func TestQueueWrapAround(t *testing.T) {
	var q Queue[int]
	next, want := 0, 0
	// Interleave pushes and pops so head wraps several times before growing.
	for round := range 20 {
		for range round%3 + 1 {
			q.Push(next)
			next++
		}
		for range round % 2 {
			v, ok := q.Pop()
			if !ok || v != want {
				t.Fatalf("round %d: Pop = (%d, %v), want (%d, true)", round, v, ok, want)
			}
			want++
		}
	}
	q.Drain(func(v int) {
		if v != want {
			t.Fatalf("Drain yielded %d, want %d", v, want)
		}
		want++
	})
	if want != next || q.Len() != 0 {
		t.Errorf("after Drain: want=%d next=%d len=%d", want, next, q.Len())
	}
}

func TestQueueFront(t *testing.T) {
	var q Queue[string]
	if _, ok := q.Front(); ok {
		t.Fatal("Front on empty queue reported an element")
	}
	q.Push("a")
	q.Push("b")
	if v, _ := q.Front(); v != "a" {
		t.Errorf("Front = %q, want %q", v, "a")
	}
	if q.Len() != 2 {
		t.Errorf("Front must not remove, Len = %d", q.Len())
	}
}
