package parallel

import (
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/cockroachdb/errors"
)

func TestWorkerPoolCreate(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	if pool.Workers() != 4 {
		t.Errorf("Workers() = %d, want 4", pool.Workers())
	}
	if !pool.IsRunning() {
		t.Error("pool should be running after creation")
	}
}

func TestWorkerPoolDefaultWorkers(t *testing.T) {
	for _, n := range []int{0, -5} {
		pool := NewWorkerPool(n)
		if got, want := pool.Workers(), runtime.GOMAXPROCS(0); got != want {
			t.Errorf("NewWorkerPool(%d).Workers() = %d, want %d", n, got, want)
		}
		pool.Close()
	}
}

func TestWorkerPoolRun(t *testing.T) {
	pool := NewWorkerPool(3)
	defer pool.Close()

	var counter atomic.Int64
	jobs := make([]func() error, 100)
	for i := range jobs {
		jobs[i] = func() error {
			counter.Add(1)
			return nil
		}
	}
	errs, err := pool.Run(jobs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(errs) != len(jobs) {
		t.Errorf("len(errs) = %d, want %d", len(errs), len(jobs))
	}
	if counter.Load() != 100 {
		t.Errorf("counter = %d, want 100", counter.Load())
	}
}

func TestWorkerPoolRunErrors(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Close()

	boom := errors.New("boom")
	errs, err := pool.Run([]func() error{
		func() error { return nil },
		func() error { return boom },
		func() error { return nil },
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Run: got %v, want boom", err)
	}
	if errs[0] != nil || errs[2] != nil || !errors.Is(errs[1], boom) {
		t.Errorf("errs = %v, want a failure only at index 1", errs)
	}
}

func TestWorkerPoolClose(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Close()
	pool.Close()

	if pool.IsRunning() {
		t.Error("pool still running after Close")
	}
	if _, err := pool.Run([]func() error{func() error { return nil }}); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("Run after Close: got %v, want ErrPoolClosed", err)
	}
}

func TestEach(t *testing.T) {
	boom := errors.New("boom")
	var ran atomic.Int32
	errs := Each(4, func(i int) error {
		ran.Add(1)
		if i == 2 {
			return boom
		}
		return nil
	})
	if ran.Load() != 4 {
		t.Errorf("ran %d calls, want 4", ran.Load())
	}
	for i, err := range errs {
		if (i == 2) != (err != nil) {
			t.Errorf("errs[%d] = %v", i, err)
		}
	}
	if got := Each(0, func(int) error { return boom }); len(got) != 0 {
		t.Errorf("Each(0) = %v, want empty", got)
	}
}
