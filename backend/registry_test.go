package backend

import (
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/gogpu/gpusync/driver"
)

type fakeDevice struct {
	driver.Device
	closed bool
}

func (d *fakeDevice) Close() { d.closed = true }

// swapRegistry replaces the registry for the duration of a test.
func swapRegistry(t *testing.T, f map[string]Factory) {
	t.Helper()
	registryMu.Lock()
	saved := factories
	factories = f
	registryMu.Unlock()
	t.Cleanup(func() {
		registryMu.Lock()
		factories = saved
		registryMu.Unlock()
	})
}

func TestRegistry(t *testing.T) {
	swapRegistry(t, map[string]Factory{})

	dev := &fakeDevice{}
	Register("b", func() (driver.Device, error) { return dev, nil })
	Register("a", func() (driver.Device, error) { return nil, errors.New("no") })

	if got := Available(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Available = %v, want [a b]", got)
	}
	if !IsRegistered("b") || IsRegistered("c") {
		t.Error("IsRegistered mismatch")
	}

	got, err := Open("b")
	if err != nil || got != dev {
		t.Fatalf("Open(b) = %v, %v", got, err)
	}
	if _, err := Open("a"); err == nil {
		t.Error("Open(a) succeeded despite failing factory")
	}
	if _, err := Open("c"); !errors.Is(err, ErrNotAvailable) {
		t.Errorf("Open(c): got %v, want ErrNotAvailable", err)
	}

	Unregister("b")
	if IsRegistered("b") {
		t.Error("b still registered after Unregister")
	}

	Close(dev)
	if !dev.closed {
		t.Error("Close did not close the device")
	}
}

func TestDefaultPriority(t *testing.T) {
	soft := &fakeDevice{}
	swapRegistry(t, map[string]Factory{
		Vulkan:   func() (driver.Device, error) { return nil, errors.New("no vulkan driver") },
		Software: func() (driver.Device, error) { return soft, nil },
	})

	dev, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if dev != soft {
		t.Errorf("Default = %v, want the software fallback", dev)
	}

	Unregister(Software)
	if _, err := Default(); !errors.Is(err, ErrNotAvailable) {
		t.Errorf("Default without fallback: got %v, want ErrNotAvailable", err)
	}

	Unregister(Vulkan)
	if _, err := Default(); !errors.Is(err, ErrNotAvailable) {
		t.Errorf("Default with empty registry: got %v, want ErrNotAvailable", err)
	}
}
