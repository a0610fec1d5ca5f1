// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package soft implements the gpusync driver interfaces with an in-process
// GPU timeline.
//
// Each queue executes submitted recorders and fence signals strictly in
// order. In the default mode a goroutine per queue drains the timeline,
// optionally sleeping for a configurable latency per submission. With
// WithManualCompletion nothing executes until the caller advances the
// queue, which makes in-flight states deterministic in tests:
//
//	dev := soft.New(soft.WithManualCompletion())
//	eng, _ := gpusync.New(dev)
//	...
//	dev.Queue(driver.Graphics).Advance(1) // run up to the next fence signal
//
// The device also checks the central rule of allocator recycling: an
// Allocator reset while work recorded into it is still queued fails and is
// counted in Stats().Violations.
//
// Failure injection: FailNext makes the next creation of an object kind
// fail, Queue.Lose simulates removal of one queue and Device.Lose of the
// whole device.
package soft
