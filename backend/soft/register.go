// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package soft

import (
	"github.com/gogpu/gpusync/backend"
	"github.com/gogpu/gpusync/driver"
)

func init() {
	backend.Register(backend.Software, func() (driver.Device, error) {
		return New(), nil
	})
}
