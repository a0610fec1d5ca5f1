// Package gpusync submits GPU command lists and recycles their memory once
// the GPU is done with it.
//
// Every queue carries a fence whose value increases by one per signal.
// Executing a command list returns the fence value that marks its
// completion. The command allocator the list recorded into is parked
// together with that value and handed out again only after the fence has
// reached it:
//
//	eng, err := gpusync.New(device)
//	if err != nil {
//	    return err
//	}
//	defer eng.Close()
//
//	value, err := eng.Record(gpusync.Copy, func(cl *gpusync.CommandList) error {
//	    return upload(cl.Recorder())
//	})
//	if err != nil {
//	    return err
//	}
//	if err := eng.WaitForFence(gpusync.Copy, value, gpusync.Infinite); err != nil {
//	    return err
//	}
//
// # Components
//
//   - FenceTracker: signal, query and wait on one queue's fence
//   - RecorderPool: allocator and recorder recycling gated on fence values
//   - SubmissionQueue: execute, flush and scoped recording on one queue
//   - Coordinator: drains several queues before destructive state changes
//   - Engine: owns one queue per kind and the resize/shutdown observers
//   - FramePacer: one fence value per back buffer in flight
//
// # Thread Safety
//
// All exported types are safe for concurrent use. Calls against one queue
// are serialized; separate queues share no locks. A CommandList itself must
// be recorded from one goroutine at a time.
//
// # Backends
//
// The hardware boundary lives in package driver. backend/soft is an
// in-process GPU timeline used by tests and the demo; backend/wgpu drives a
// gogpu/wgpu HAL device.
package gpusync
