// Command gpusyncdemo drives gpusync through a frame loop: a startup upload
// on the copy queue, instanced cube batches recorded in parallel on the
// graphics queue, per-back-buffer frame pacing, a mid-run resize and a
// final drain.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/loov/hrtime"

	"github.com/gogpu/gpusync"
	"github.com/gogpu/gpusync/backend"
	"github.com/gogpu/gpusync/backend/soft"
	"github.com/gogpu/gpusync/backend/wgpu"
	"github.com/gogpu/gpusync/driver"
	"github.com/gogpu/gpusync/internal/parallel"
)

func main() {
	var (
		device    = flag.String("backend", backend.Software, "device backend: soft, noop or vulkan")
		frames    = flag.Int("frames", 120, "number of frames to render")
		buffers   = flag.Int("buffers", 3, "back buffers in flight")
		instances = flag.Int("instances", 1024, "instanced cubes per frame")
		batches   = flag.Int("batches", 4, "command lists recorded in parallel per frame")
		latency   = flag.Duration("latency", 2*time.Millisecond, "soft backend: GPU time per command list")
		resizeAt  = flag.Int("resize-at", 60, "frame at which to simulate a window resize (0 disables)")
		verbose   = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	gpusync.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	dev, closeDev, err := openDevice(*device, *latency)
	if err != nil {
		log.Fatalf("open %s device: %v", *device, err)
	}
	defer closeDev()

	cfg := config{
		frames:    *frames,
		buffers:   *buffers,
		instances: *instances,
		batches:   *batches,
		resizeAt:  *resizeAt,
	}
	stats, err := run(dev, cfg)
	if err != nil {
		log.Fatalf("run: %v", err)
	}
	fmt.Println(stats)
}

func openDevice(name string, latency time.Duration) (driver.Device, func(), error) {
	if name == backend.Software {
		return soft.New(soft.WithLatency(latency)), func() {}, nil
	}
	dev, err := backend.Open(name)
	if err != nil {
		return nil, nil, err
	}
	return dev, func() { backend.Close(dev) }, nil
}

type config struct {
	frames    int
	buffers   int
	instances int
	batches   int
	resizeAt  int
}

type runStats struct {
	frames     int
	total      time.Duration
	slowest    time.Duration
	graphics   gpusync.PoolStats
	lastFence  gpusync.FenceValue
	resized    bool
	uploadWait time.Duration
}

func (s runStats) String() string {
	avg := time.Duration(0)
	if s.frames > 0 {
		avg = s.total / time.Duration(s.frames)
	}
	return fmt.Sprintf("%d frames, avg %v, slowest %v, upload wait %v, resized %v, graphics fence %d, "+
		"allocators created %d reused %d, recorders created %d reused %d",
		s.frames, avg, s.slowest, s.uploadWait, s.resized, s.lastFence,
		s.graphics.AllocatorsCreated, s.graphics.AllocatorsReused,
		s.graphics.RecordersCreated, s.graphics.RecordersReused)
}

func run(dev driver.Device, cfg config) (stats runStats, err error) {
	eng, err := gpusync.New(dev, gpusync.WithLabel("demo"))
	if err != nil {
		return stats, err
	}
	defer func() {
		if cerr := eng.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	gfx, err := eng.Queue(gpusync.Graphics)
	if err != nil {
		return stats, err
	}
	pacer, err := gpusync.NewFramePacer(gfx, cfg.buffers, gpusync.Infinite)
	if err != nil {
		return stats, err
	}
	eng.OnResize(func(int, int) {
		// Swap-chain buffers are recreated here; their old fence values are void.
		_ = pacer.Reset(cfg.buffers)
		stats.resized = true
	})

	start := hrtime.Now()
	upload, err := eng.Record(gpusync.Copy, func(cl *gpusync.CommandList) error {
		return encode(cl, "upload-cube", cubeVertices)
	})
	if err != nil {
		return stats, err
	}
	if err := eng.WaitForFence(gpusync.Copy, upload, gpusync.Infinite); err != nil {
		return stats, err
	}
	stats.uploadWait = hrtime.Since(start)

	workers := parallel.NewWorkerPool(cfg.batches)
	defer workers.Close()

	scene := newScene(cfg.instances)
	for frame := range cfg.frames {
		if cfg.resizeAt > 0 && frame == cfg.resizeAt {
			if err := eng.Resize(1280, 720); err != nil {
				return stats, err
			}
		}

		frameStart := hrtime.Now()
		slot := frame % cfg.buffers
		if err := pacer.BeginFrame(slot); err != nil {
			return stats, err
		}

		transforms := scene.update(frameStart)
		v, err := drawFrame(eng, workers, transforms, cfg.batches)
		if err != nil {
			return stats, fmt.Errorf("frame %d: %w", frame, err)
		}
		if err := pacer.EndFrame(slot, v); err != nil {
			return stats, err
		}

		d := hrtime.Since(frameStart)
		stats.total += d
		stats.slowest = max(stats.slowest, d)
		stats.frames++
		stats.lastFence = v
	}

	if err := eng.DrainAllQueues(); err != nil {
		return stats, err
	}
	stats.graphics = gfx.Stats()
	return stats, nil
}

// drawFrame records one command list per batch in parallel and returns the
// highest fence value, which completes once the whole frame is done.
func drawFrame(eng *gpusync.Engine, workers *parallel.WorkerPool, transforms []instance, batches int) (gpusync.FenceValue, error) {
	parts := split(transforms, batches)
	values := make([]gpusync.FenceValue, len(parts))
	jobs := make([]func() error, len(parts))
	for i, part := range parts {
		jobs[i] = func() error {
			v, err := eng.Record(gpusync.Graphics, func(cl *gpusync.CommandList) error {
				return encode(cl, "draw-instanced", part)
			})
			values[i] = v
			return err
		}
	}
	if _, err := workers.Run(jobs); err != nil {
		return 0, err
	}

	var last gpusync.FenceValue
	for _, v := range values {
		last = max(last, v)
	}
	return last, nil
}

// encode records a command on the software backend. On HAL devices the
// pipelines that would consume the data are outside this demo, so the
// command buffer stays empty.
func encode(cl *gpusync.CommandList, name string, payload any) error {
	switch rec := cl.Recorder().(type) {
	case *soft.Recorder:
		return rec.Record(name, payload)
	case *wgpu.Recorder:
		return nil
	default:
		return fmt.Errorf("unsupported recorder %T", rec)
	}
}
