//go:build !nogpu

package wgpu

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpusync"
	"github.com/gogpu/gpusync/driver"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// Errors returned by the HAL backend.
var (
	// ErrNoAdapter is returned when the HAL instance exposes no adapter.
	ErrNoAdapter = errors.New("wgpu: no GPU adapters found")

	// ErrBackendUnavailable is returned when the requested HAL backend is
	// not compiled in.
	ErrBackendUnavailable = errors.New("wgpu: backend not available")

	// ErrNotHAL is returned by FromProvider when the provider does not
	// expose HAL types.
	ErrNotHAL = errors.New("wgpu: provider does not expose HAL types")

	// ErrForeignObject is returned when an object created by another
	// backend or device is passed in.
	ErrForeignObject = errors.New("wgpu: object does not belong to this device")

	// ErrNotRecording is returned when a recorder is closed twice.
	ErrNotRecording = errors.New("wgpu: recorder is not recording")
)

// Device adapts a HAL device and its queue to driver.Device.
//
// HAL devices expose a single queue. Every driver queue created on a Device
// shares it; submissions from different kinds are serialized on submitMu.
// Each driver fence maps its values onto the submission indices the HAL
// queue returns.
type Device struct {
	device   hal.Device
	queue    hal.Queue
	instance hal.Instance
	owned    bool
	info     string

	submitMu       sync.Mutex
	lastSubmission uint64
}

// Interface compliance checks.
var (
	_ driver.Device    = (*Device)(nil)
	_ driver.Queue     = (*Queue)(nil)
	_ driver.Fence     = (*Fence)(nil)
	_ driver.Allocator = (*Allocator)(nil)
	_ driver.Recorder  = (*Recorder)(nil)
)

// New wraps an existing HAL device and queue. The caller keeps ownership;
// Close does not destroy them.
func New(device hal.Device, queue hal.Queue) (*Device, error) {
	if device == nil || queue == nil {
		return nil, errors.New("wgpu: nil HAL device or queue")
	}
	return &Device{device: device, queue: queue}, nil
}

// FromProvider shares the device of a host application such as gogpu.
// The provider must implement HalDevice() any and HalQueue() any returning
// hal.Device and hal.Queue.
func FromProvider(provider gpucontext.DeviceProvider) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNotHAL
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, errors.Wrap(ErrNotHAL, "HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, errors.Wrap(ErrNotHAL, "HalQueue is not hal.Queue")
	}
	return New(device, queue)
}

// InstanceFactory creates HAL instances. Registered HAL backends and
// hal/noop.API implement it.
type InstanceFactory interface {
	CreateInstance(desc *hal.InstanceDescriptor) (hal.Instance, error)
}

// Open creates a standalone device on the registered HAL backend of the
// given type, preferring a discrete or integrated GPU.
func Open(backend gputypes.Backend) (*Device, error) {
	b, ok := hal.GetBackend(backend)
	if !ok {
		return nil, errors.Wrapf(ErrBackendUnavailable, "%v", backend)
	}
	return OpenWith(b)
}

// OpenWith creates a standalone device from api. Close destroys the device
// and the instance.
func OpenWith(api InstanceFactory) (*Device, error) {
	instance, err := api.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, errors.Wrap(err, "create instance")
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}
	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, errors.Wrap(err, "open device")
	}
	gpusync.Logger().Info("wgpu: device opened", "adapter", selected.Info.Name)
	return &Device{
		device:   openDev.Device,
		queue:    openDev.Queue,
		instance: instance,
		owned:    true,
		info:     selected.Info.Name,
	}, nil
}

// AdapterName returns the adapter name of a device created by Open.
func (d *Device) AdapterName() string { return d.info }

// HAL returns the underlying device and queue, for creating buffers and
// pipelines that recorded commands reference.
func (d *Device) HAL() (hal.Device, hal.Queue) { return d.device, d.queue }

// Close destroys the device when it was created by Open or OpenWith.
// Every gpusync queue on it must be closed first.
func (d *Device) Close() {
	if !d.owned {
		return
	}
	if err := d.device.WaitIdle(); err != nil {
		gpusync.Logger().Warn("wgpu: wait idle before destroy", "error", err)
	}
	d.device.Destroy()
	if d.instance != nil {
		d.instance.Destroy()
	}
	d.owned = false
}

// CreateQueue implements driver.Device.
func (d *Device) CreateQueue(kind driver.QueueKind) (driver.Queue, error) {
	return &Queue{device: d, kind: kind}, nil
}

// CreateFence implements driver.Device. The fence has no HAL object of its
// own; see Fence.
func (d *Device) CreateFence(initial uint64) (driver.Fence, error) {
	return &Fence{device: d, completed: initial}, nil
}

// CreateAllocator implements driver.Device. The allocator's encoder keeps
// its command memory across EndEncoding and is recycled with ResetAll.
func (d *Device) CreateAllocator(kind driver.QueueKind) (driver.Allocator, error) {
	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: kind.String() + "-allocator",
	})
	if err != nil {
		return nil, errors.Wrap(err, "create command encoder")
	}
	if pm, ok := encoder.(poolManaged); ok {
		pm.SetPoolManaged(true)
	}
	return &Allocator{device: d, kind: kind, encoder: encoder}, nil
}

// CreateRecorder implements driver.Device.
func (d *Device) CreateRecorder(kind driver.QueueKind, a driver.Allocator) (driver.Recorder, error) {
	alloc, err := d.allocator(kind, a)
	if err != nil {
		return nil, err
	}
	r := &Recorder{device: d, kind: kind, label: kind.String() + "-commands"}
	if err := r.begin(alloc); err != nil {
		return nil, err
	}
	return r, nil
}

func (d *Device) allocator(kind driver.QueueKind, a driver.Allocator) (*Allocator, error) {
	alloc, ok := a.(*Allocator)
	if !ok || alloc.device != d {
		return nil, errors.Wrapf(ErrForeignObject, "allocator %T", a)
	}
	if alloc.kind != kind {
		return nil, errors.Wrapf(ErrForeignObject, "%s allocator used for %s recorder", alloc.kind, kind)
	}
	return alloc, nil
}
