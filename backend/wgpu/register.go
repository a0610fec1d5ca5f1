//go:build !nogpu

package wgpu

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/gpusync/backend"
	"github.com/gogpu/gpusync/driver"
)

func init() {
	backend.Register(backend.Vulkan, func() (driver.Device, error) {
		return Open(gputypes.BackendVulkan)
	})
	backend.Register(backend.Noop, func() (driver.Device, error) {
		return OpenWith(noop.API{})
	})
}
