package main

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

// cubeVertices is a unit cube as 8 corners, uploaded once at startup.
var cubeVertices = []mgl32.Vec3{
	{-1, -1, -1}, {1, -1, -1}, {1, 1, -1}, {-1, 1, -1},
	{-1, -1, 1}, {1, -1, 1}, {1, 1, 1}, {-1, 1, 1},
}

// instance is the per-instance data of one cube.
type instance struct {
	MVP mgl32.Mat4
}

// scene lays out cubes on a square grid and spins them.
type scene struct {
	offsets []mgl32.Vec3
	proj    mgl32.Mat4
	view    mgl32.Mat4
	out     []instance
}

func newScene(n int) *scene {
	side := int(math.Ceil(math.Sqrt(float64(n))))
	offsets := make([]mgl32.Vec3, n)
	for i := range offsets {
		x := float32(i%side) - float32(side)/2
		y := float32(i/side) - float32(side)/2
		offsets[i] = mgl32.Vec3{x * 3, y * 3, 0}
	}
	dist := float32(side) * 3
	return &scene{
		offsets: offsets,
		proj:    mgl32.Perspective(mgl32.DegToRad(45), 16.0/9.0, 0.1, dist*4),
		view:    mgl32.LookAtV(mgl32.Vec3{0, -dist, dist}, mgl32.Vec3{}, mgl32.Vec3{0, 0, 1}),
		out:     make([]instance, n),
	}
}

// update computes the instance transforms at time now. The returned slice
// is reused by the next call.
func (s *scene) update(now time.Duration) []instance {
	angle := float32(math.Mod(now.Seconds(), 4.0)) * mgl32.DegToRad(90)
	vp := s.proj.Mul4(s.view)
	for i, off := range s.offsets {
		model := mgl32.Translate3D(off.X(), off.Y(), off.Z()).
			Mul4(mgl32.HomogRotate3D(angle+float32(i)*0.01, mgl32.Vec3{0, 0, 1}))
		s.out[i] = instance{MVP: vp.Mul4(model)}
	}
	return s.out
}

// split cuts items into at most n contiguous, nearly equal batches.
func split(items []instance, n int) [][]instance {
	if n < 1 {
		n = 1
	}
	n = min(n, len(items))
	parts := make([][]instance, 0, n)
	for i := range n {
		lo := len(items) * i / n
		hi := len(items) * (i + 1) / n
		parts = append(parts, items[lo:hi])
	}
	return parts
}
