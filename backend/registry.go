// Package backend selects a driver.Device implementation by name.
//
// Backend packages register themselves from init, so importing them is
// enough to make them available:
//
//	import (
//	    "github.com/gogpu/gpusync/backend"
//	    _ "github.com/gogpu/gpusync/backend/soft"
//	    _ "github.com/gogpu/gpusync/backend/wgpu"
//	)
//
//	dev, err := backend.Default()
//	if err != nil {
//	    return err
//	}
//	defer backend.Close(dev)
package backend

import (
	"sort"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/gogpu/gpusync/driver"
)

// Backend names registered by this module.
const (
	Vulkan   = "vulkan"
	Noop     = "noop"
	Software = "soft"
)

// ErrNotAvailable is returned when no backend of the requested name is
// registered or none can open a device.
var ErrNotAvailable = errors.New("backend: not available")

// Factory opens a device.
type Factory func() (driver.Device, error)

// Closer is implemented by devices that own resources beyond the queues
// created on them.
type Closer interface {
	Close()
}

var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)
	// Priority order for Default (first that opens wins).
	// Hardware first, the software timeline as fallback.
	priority = []string{Vulkan, Software}
)

// Register registers a factory under name, replacing any earlier one.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[name] = f
}

// Unregister removes a backend. It is useful in tests.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(factories, name)
}

// Available returns the registered backend names in sorted order.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered reports whether a backend named name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := factories[name]
	return ok
}

// Open opens a device on the named backend.
func Open(name string) (driver.Device, error) {
	registryMu.RLock()
	f, ok := factories[name]
	registryMu.RUnlock()

	if !ok {
		return nil, errors.Wrapf(ErrNotAvailable, "%q (registered: %v)", name, Available())
	}
	dev, err := f()
	if err != nil {
		return nil, errors.Wrapf(err, "open %s device", name)
	}
	return dev, nil
}

// Default opens the first backend in priority order that succeeds.
func Default() (driver.Device, error) {
	var errs error
	for _, name := range priority {
		if !IsRegistered(name) {
			continue
		}
		dev, err := Open(name)
		if err == nil {
			return dev, nil
		}
		errs = errors.CombineErrors(errs, err)
	}
	if errs != nil {
		return nil, errors.Mark(errs, ErrNotAvailable)
	}
	return nil, ErrNotAvailable
}

// Close releases dev if it implements Closer.
func Close(dev driver.Device) {
	if c, ok := dev.(Closer); ok {
		c.Close()
	}
}
