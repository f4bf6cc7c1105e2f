package backend

import "github.com/cogentcore/webgpu/wgpu"

type wgpuDeviceConfig struct {
	label                string
	forceFallbackAdapter bool
	powerPreference      wgpu.PowerPreference
}

// WGPUDeviceBuilderOption is a functional option applied to the adapter and device request in NewWGPUDevice.
type WGPUDeviceBuilderOption func(*wgpuDeviceConfig)

// WithDeviceLabel sets the debug label of the requested device.
//
// Parameters:
//   - label: the device label
//
// Returns:
//   - WGPUDeviceBuilderOption: a function that applies the label option
func WithDeviceLabel(label string) WGPUDeviceBuilderOption {
	return func(c *wgpuDeviceConfig) {
		c.label = label
	}
}

// WithForceFallbackAdapter forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe).
//
// Parameters:
//   - force: true to force the fallback adapter
//
// Returns:
//   - WGPUDeviceBuilderOption: a function that applies the fallback option
func WithForceFallbackAdapter(force bool) WGPUDeviceBuilderOption {
	return func(c *wgpuDeviceConfig) {
		c.forceFallbackAdapter = force
	}
}

// WithPowerPreference selects between low-power and high-performance adapters.
//
// Parameters:
//   - pref: the power preference
//
// Returns:
//   - WGPUDeviceBuilderOption: a function that applies the power preference option
func WithPowerPreference(pref wgpu.PowerPreference) WGPUDeviceBuilderOption {
	return func(c *wgpuDeviceConfig) {
		c.powerPreference = pref
	}
}

// SoftwareDeviceBuilderOption is a functional option applied to a software device during construction via NewSoftwareDevice.
type SoftwareDeviceBuilderOption func(*softwareDevice)

// WithKernel registers a CPU kernel executed for compute pipelines created with the given entry point.
//
// Parameters:
//   - entryPoint: the shader entry point the kernel stands in for
//   - kernel: the kernel function
//
// Returns:
//   - SoftwareDeviceBuilderOption: a function that applies the kernel option
func WithKernel(entryPoint string, kernel Kernel) SoftwareDeviceBuilderOption {
	return func(d *softwareDevice) {
		d.kernels[entryPoint] = kernel
	}
}

// WithJournal enables recording of device events, retrievable through SoftwareDevice.Journal.
//
// Parameters:
//   - enabled: true to record events
//
// Returns:
//   - SoftwareDeviceBuilderOption: a function that applies the journal option
func WithJournal(enabled bool) SoftwareDeviceBuilderOption {
	return func(d *softwareDevice) {
		d.journalEnabled = enabled
	}
}
