// Package wgpu implements the gpusync driver interfaces on a gogpu/wgpu HAL
// device.
//
// The mapping onto HAL objects:
//
//	driver.Recorder  -> hal.CommandEncoder (BeginEncoding .. EndEncoding)
//	driver.Allocator -> the hal.CommandBuffers finished against it, freed on Reset
//	driver.Queue     -> the device's hal.Queue; Signal submits the executed
//	                    command buffers with the fence value
//	driver.Fence     -> hal.Fence, waited on with hal.Device.Wait
//
// A standalone device comes from Open; a host application that already
// owns a device (gogpu) shares it through FromProvider:
//
//	dev, err := wgpu.FromProvider(app)
//	if err != nil {
//	    return err
//	}
//	eng, err := gpusync.New(dev)
//
// Recorded commands are encoded directly on the HAL encoder:
//
//	eng.Record(gpusync.Copy, func(cl *gpusync.CommandList) error {
//	    enc := cl.Recorder().(*wgpu.Recorder).Encoder()
//	    enc.CopyBufferToBuffer(staging, vertices, regions)
//	    return nil
//	})
//
// Build with the nogpu tag to exclude this package.
package wgpu
