package gpusync

import (
	"time"

	"github.com/cockroachdb/errors"
)

// Error classes. Errors returned by this package carry one of these marks;
// classify them with errors.Is.
var (
	// ErrInitialization marks failures to create fences, queues, allocators
	// or recorders. The engine cannot enforce ordering without them.
	ErrInitialization = errors.New("gpusync: initialization failed")

	// ErrRecording marks submission of a command list that is not open:
	// already submitted, discarded, owned by another queue, or failing to close.
	ErrRecording = errors.New("gpusync: invalid command list")

	// ErrTimeout marks a bounded wait that did not observe completion in time.
	// The submitted work is still in flight; the caller may wait again.
	ErrTimeout = errors.New("gpusync: wait timed out")

	// ErrDeviceLost marks hardware or driver failure during submission,
	// signaling, waiting or draining. The session cannot continue.
	ErrDeviceLost = errors.New("gpusync: device lost")

	// ErrFenceNotSignaled marks a wait on a fence value that no signal has
	// been issued for yet. Such a wait could never return.
	ErrFenceNotSignaled = errors.New("gpusync: fence value not signaled")

	// ErrRecorderLeaked marks a queue closed while command lists acquired
	// from it were neither submitted nor discarded.
	ErrRecorderLeaked = errors.New("gpusync: command list leaked")

	// ErrClosed marks use of a queue or engine after Close.
	ErrClosed = errors.New("gpusync: closed")

	// ErrUnknownQueue marks a queue kind the engine was not created with.
	ErrUnknownQueue = errors.New("gpusync: unknown queue kind")
)

// Infinite disables the deadline of a wait.
const Infinite time.Duration = -1

func initError(err error, format string, args ...any) error {
	return errors.Mark(errors.Wrapf(err, format, args...), ErrInitialization)
}

func deviceLost(err error, format string, args ...any) error {
	return errors.Mark(errors.Wrapf(err, format, args...), ErrDeviceLost)
}

func recordingError(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrRecording)
}
