// Package parallel runs independent jobs on goroutines.
package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// ErrPoolClosed is returned by Run after Close.
var ErrPoolClosed = errors.New("parallel: pool closed")

// WorkerPool is a fixed set of goroutines executing jobs, used to record
// the command lists of one frame in parallel.
//
// Thread safety: WorkerPool is safe for concurrent use.
type WorkerPool struct {
	workers int
	jobs    chan func()
	wg      sync.WaitGroup
	running atomic.Bool

	// closeMu keeps Close from closing jobs while Run is still sending.
	closeMu sync.RWMutex
}

// NewWorkerPool starts a pool with the given number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	p := &WorkerPool{
		workers: workers,
		jobs:    make(chan func(), workers*2),
	}
	p.running.Store(true)

	p.wg.Add(workers)
	for range workers {
		go p.worker()
	}
	return p
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		job()
	}
}

// Run executes every job and waits for all of them. The returned slice has
// one entry per job, nil for jobs that succeeded. err is non-nil when any
// job failed and combines the failures in job order.
func (p *WorkerPool) Run(jobs []func() error) (errs []error, err error) {
	p.closeMu.RLock()
	defer p.closeMu.RUnlock()

	if !p.running.Load() {
		return nil, ErrPoolClosed
	}

	errs = make([]error, len(jobs))
	var done sync.WaitGroup
	done.Add(len(jobs))
	for i, job := range jobs {
		p.jobs <- func() {
			defer done.Done()
			errs[i] = job()
		}
	}
	done.Wait()
	return errs, combine(errs)
}

// Close stops the workers once queued jobs have finished.
// Close is safe to call multiple times.
func (p *WorkerPool) Close() {
	p.closeMu.Lock()
	defer p.closeMu.Unlock()

	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.jobs)
	p.wg.Wait()
}

// Workers returns the number of workers in the pool.
func (p *WorkerPool) Workers() int {
	return p.workers
}

// IsRunning reports whether the pool still accepts jobs.
func (p *WorkerPool) IsRunning() bool {
	return p.running.Load()
}

// Each calls fn(i) for i in [0, n) on n goroutines and waits for all of
// them. Every call runs to completion regardless of the others. The result
// holds the error of each call.
func Each(n int, fn func(i int) error) []error {
	errs := make([]error, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := range n {
		go func() {
			defer wg.Done()
			errs[i] = fn(i)
		}()
	}
	wg.Wait()
	return errs
}

func combine(errs []error) error {
	var err error
	for _, e := range errs {
		err = errors.CombineErrors(err, e)
	}
	return err
}
