// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package fifo provides a growable ring-buffer queue.
package fifo

// Queue is a first-in first-out queue backed by a ring buffer.
// The zero value is an empty queue ready to use.
//
// Queue is NOT safe for concurrent use.
type Queue[T any] struct {
	buf  []T
	head int
	n    int
}

// Len returns the number of queued elements.
func (q *Queue[T]) Len() int { return q.n }

// Push appends v to the back of the queue.
func (q *Queue[T]) Push(v T) {
	if q.n == len(q.buf) {
		q.grow()
	}
	q.buf[(q.head+q.n)%len(q.buf)] = v
	q.n++
}

// Front returns the element at the front without removing it.
func (q *Queue[T]) Front() (T, bool) {
	var zero T
	if q.n == 0 {
		return zero, false
	}
	return q.buf[q.head], true
}

// Pop removes and returns the element at the front.
func (q *Queue[T]) Pop() (T, bool) {
	var zero T
	if q.n == 0 {
		return zero, false
	}
	v := q.buf[q.head]
	q.buf[q.head] = zero
	q.head = (q.head + 1) % len(q.buf)
	q.n--
	return v, true
}

// Drain removes every element, calling fn on each in FIFO order.
func (q *Queue[T]) Drain(fn func(T)) {
	for q.n > 0 {
		v, _ := q.Pop()
		fn(v)
	}
}

func (q *Queue[T]) grow() {
	size := len(q.buf) * 2
	if size < 4 {
		size = 4
	}
	buf := make([]T, size)
	for i := range q.n {
		buf[i] = q.buf[(q.head+i)%len(q.buf)]
	}
	q.buf = buf
	q.head = 0
}
