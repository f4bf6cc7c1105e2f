package bind_group_provider

import "github.com/cogentcore/webgpu/wgpu"

// BindGroupProviderOption is a functional option used to configure a BindGroupProvider during construction.
type BindGroupProviderOption func(*bindGroupProvider)

// WithStagedData stages the initial contents of the buffer for a binding. The buffer is created by Init.
//
// Parameters:
//   - binding: the binding index for the buffer
//   - data: the initial buffer contents
//
// Returns:
//   - BindGroupProviderOption: a function that stages the buffer contents
func WithStagedData(binding uint32, data []byte) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.staged[binding] = data
	}
}

// WithBufferUsage sets the usage flags applied to staged buffers. Defaults to Uniform | CopyDst.
//
// Parameters:
//   - usage: the buffer usage flags
//
// Returns:
//   - BindGroupProviderOption: a function that sets the buffer usage
func WithBufferUsage(usage wgpu.BufferUsage) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.usage = usage
	}
}
