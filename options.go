package gpusync

import "time"

// Option configures an Engine, SubmissionQueue or Coordinator during creation.
//
// Example:
//
//	// Graphics and copy queues only, bounded drains
//	eng, err := gpusync.New(dev,
//	    gpusync.WithQueueKinds(gpusync.Graphics, gpusync.Copy),
//	    gpusync.WithDrainTimeout(2*time.Second))
type Option func(*options)

// options holds optional configuration.
type options struct {
	kinds        []QueueKind
	drainTimeout time.Duration
	label        string
}

// defaultOptions returns the default options: every queue kind, drains
// without a deadline.
func defaultOptions() options {
	return options{
		kinds:        []QueueKind{Graphics, Compute, Copy},
		drainTimeout: Infinite,
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// WithQueueKinds selects the queues an Engine creates. Duplicates are
// ignored. An empty list keeps the default of all three kinds.
func WithQueueKinds(kinds ...QueueKind) Option {
	return func(o *options) {
		if len(kinds) == 0 {
			return
		}
		o.kinds = o.kinds[:0:0]
		seen := make(map[QueueKind]bool, len(kinds))
		for _, k := range kinds {
			if !seen[k] {
				seen[k] = true
				o.kinds = append(o.kinds, k)
			}
		}
	}
}

// WithDrainTimeout bounds each queue flush performed by DrainAll.
// A drain that times out is reported as ErrDeviceLost.
func WithDrainTimeout(d time.Duration) Option {
	return func(o *options) {
		o.drainTimeout = d
	}
}

// WithLabel sets a label attached to log records of the created queues.
func WithLabel(label string) Option {
	return func(o *options) {
		o.label = label
	}
}
