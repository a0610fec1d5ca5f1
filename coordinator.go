package gpusync

import (
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/gogpu/gpusync/internal/parallel"
)

// Coordinator drains a set of queues to a quiescent point, as needed
// before resizing or destroying resources several queues may reference.
//
// Coordinator is safe for concurrent use.
type Coordinator struct {
	timeout time.Duration

	mu     sync.RWMutex
	queues []*SubmissionQueue
}

// NewCoordinator creates a coordinator over queues. Only WithDrainTimeout
// is honored among opts.
func NewCoordinator(queues []*SubmissionQueue, opts ...Option) *Coordinator {
	o := buildOptions(opts)
	c := &Coordinator{timeout: o.drainTimeout}
	for _, q := range queues {
		c.Register(q)
	}
	return c
}

// Register adds q to the drained set. Registering a queue twice has no
// further effect.
func (c *Coordinator) Register(q *SubmissionQueue) {
	if q == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, have := range c.queues {
		if have == q {
			return
		}
	}
	c.queues = append(c.queues, q)
}

// Queues returns the registered queues in registration order.
func (c *Coordinator) Queues() []*SubmissionQueue {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return append([]*SubmissionQueue(nil), c.queues...)
}

// DrainAll flushes every registered queue concurrently and waits for all of
// them. When it returns nil no work from any queue is outstanding.
//
// Every flush runs to completion even if another fails. Any failure,
// including a timeout, is reported as a single error marked ErrDeviceLost:
// continuing with only some queues drained would risk freeing memory the
// others still use. Queues that were already closed are a caller error and
// are reported with ErrClosed alone.
func (c *Coordinator) DrainAll() error {
	queues := c.Queues()
	errs := parallel.Each(len(queues), func(i int) error {
		return queues[i].Flush(c.timeout)
	})

	var (
		lost, closed         error
		failed, closedQueues []string
	)
	for i, err := range errs {
		switch {
		case err == nil:
		case errors.Is(err, ErrClosed):
			closedQueues = append(closedQueues, queues[i].Kind().String())
			closed = chain(closed, err)
		default:
			failed = append(failed, queues[i].Kind().String())
			lost = chain(lost, err)
		}
	}

	if lost != nil {
		lost = deviceLost(lost, "drain %s", strings.Join(failed, ", "))
		if closed != nil {
			lost = errors.WithSecondaryError(lost, closed)
		}
		Logger().Warn("gpusync: drain failed", "failed", failed, "error", lost)
		return lost
	}
	if closed != nil {
		return errors.Wrapf(closed, "drain %s", strings.Join(closedQueues, ", "))
	}
	Logger().Info("gpusync: all queues drained", "queues", len(queues))
	return nil
}

// chain keeps the first error primary and attaches later ones.
func chain(first, next error) error {
	if first == nil {
		return next
	}
	return errors.WithSecondaryError(first, next)
}
