// Package backend defines the graphics device and command queue capability that the model loading pipeline
// consumes, together with its two implementations: a WebGPU device and a software device that executes
// compute work on the CPU.
package backend

import (
	"errors"

	"github.com/Carmen-Shannon/oxy-models/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// BackendType identifies the device implementation.
type BackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based device.
	BackendTypeWGPU BackendType = iota

	// BackendTypeSoftware selects the in-memory device that runs compute kernels on the CPU.
	BackendTypeSoftware
)

// String returns the configuration name of the backend type.
func (t BackendType) String() string {
	switch t {
	case BackendTypeWGPU:
		return "wgpu"
	case BackendTypeSoftware:
		return "software"
	default:
		return "unknown"
	}
}

// ParseBackendType converts a configuration name into a BackendType.
//
// Parameters:
//   - name: "wgpu" or "software"
//
// Returns:
//   - BackendType: the matching backend type
//   - error: an error if the name is not recognized
func ParseBackendType(name string) (BackendType, error) {
	switch name {
	case "wgpu", "":
		return BackendTypeWGPU, nil
	case "software":
		return BackendTypeSoftware, nil
	default:
		return 0, errors.New("unknown backend type " + name)
	}
}

// Errors returned by device implementations
var (
	ErrReleased        = errors.New("resource already released")
	ErrForeignHandle   = errors.New("handle was not created by this device")
	ErrUnknownKernel   = errors.New("no compute kernel registered for entry point")
	ErrBindingMismatch = errors.New("bind group entries do not match layout")
)

// Buffer is a device-resident buffer.
type Buffer interface {
	Label() string
	Size() uint64
	Usage() wgpu.BufferUsage
	Release()
}

// Texture is a device-resident 2D texture.
type Texture interface {
	Label() string
	Width() uint32
	Height() uint32
	Format() wgpu.TextureFormat
	Release()
}

// TextureView is a view over a Texture usable in a bind group.
type TextureView interface {
	Release()
}

// Sampler is a device-resident texture sampler.
type Sampler interface {
	Release()
}

// BindGroupLayout describes the bindings a BindGroup must provide.
type BindGroupLayout interface {
	Label() string
	Entries() []wgpu.BindGroupLayoutEntry
	Release()
}

// BindGroup is a set of resources bound to the slots of a BindGroupLayout.
type BindGroup interface {
	Label() string
	Release()
}

// ComputePipeline is a compiled compute program together with its pipeline layout.
type ComputePipeline interface {
	Label() string
	EntryPoint() string
	Release()
}

// BufferDescriptor describes a buffer to create. When Contents is non-empty the buffer is created
// with those contents and Size is ignored.
type BufferDescriptor struct {
	Label    string
	Contents []byte
	Size     uint64
	Usage    wgpu.BufferUsage
}

// TextureDescriptor describes a 2D texture to create and fill with RGBA8 pixel data.
type TextureDescriptor struct {
	Label   string
	Format  wgpu.TextureFormat
	Usage   wgpu.TextureUsage
	Staging common.TextureStagingData
}

// BindGroupEntry binds exactly one resource to a binding index. Set either Buffer, TextureView or Sampler.
type BindGroupEntry struct {
	Binding     uint32
	Buffer      Buffer
	TextureView TextureView
	Sampler     Sampler
}

// BindGroupDescriptor describes a bind group to create.
type BindGroupDescriptor struct {
	Label   string
	Layout  BindGroupLayout
	Entries []BindGroupEntry
}

// ComputePipelineDescriptor describes a compute pipeline to create. BindGroupLayouts are indexed by group.
type ComputePipelineDescriptor struct {
	Label            string
	Source           string
	EntryPoint       string
	BindGroupLayouts []BindGroupLayout
}

// Device is the graphics device + command queue capability. Implementations are safe for concurrent use;
// handles are shared read-only across goroutines and stay owned by whoever created them.
type Device interface {
	// Type reports which implementation backs this device.
	//
	// Returns:
	//   - BackendType: the backend type
	Type() BackendType

	// CreateBuffer creates a buffer, uploading the descriptor's contents if any.
	//
	// Parameters:
	//   - desc: the buffer descriptor
	//
	// Returns:
	//   - Buffer: the created buffer
	//   - error: an error if the buffer could not be created
	CreateBuffer(desc BufferDescriptor) (Buffer, error)

	// WriteBuffer schedules a write of data into buf at offset.
	//
	// Parameters:
	//   - buf: the destination buffer, created by this device
	//   - offset: byte offset into the buffer
	//   - data: the bytes to write
	//
	// Returns:
	//   - error: an error if the write is out of range or the buffer is foreign
	WriteBuffer(buf Buffer, offset uint64, data []byte) error

	// ReadBuffer copies the full contents of buf back to the host. Outstanding work touching the
	// buffer is completed first. The buffer must have been created with BufferUsageCopySrc.
	//
	// Parameters:
	//   - buf: the buffer to read
	//
	// Returns:
	//   - []byte: a host copy of the buffer contents
	//   - error: an error if the read back failed
	ReadBuffer(buf Buffer) ([]byte, error)

	// CreateTexture creates a 2D texture and issues the upload of its staged pixels.
	//
	// Parameters:
	//   - desc: the texture descriptor including RGBA8 pixel data
	//
	// Returns:
	//   - Texture: the created texture
	//   - error: an error if the texture could not be created
	CreateTexture(desc TextureDescriptor) (Texture, error)

	// CreateTextureView creates the default full view of tex.
	//
	// Parameters:
	//   - tex: the texture to view
	//
	// Returns:
	//   - TextureView: the created view
	//   - error: an error if the view could not be created
	CreateTextureView(tex Texture) (TextureView, error)

	// CreateSampler creates a sampler. Zero fields in data fall back to linear filtering and repeat addressing.
	//
	// Parameters:
	//   - label: the debug label
	//   - data: the sampler configuration
	//
	// Returns:
	//   - Sampler: the created sampler
	//   - error: an error if the sampler could not be created
	CreateSampler(label string, data common.SamplerStagingData) (Sampler, error)

	// CreateBindGroupLayout creates a bind group layout from the given entries.
	//
	// Parameters:
	//   - label: the debug label
	//   - entries: the layout entries
	//
	// Returns:
	//   - BindGroupLayout: the created layout
	//   - error: an error if the layout could not be created
	CreateBindGroupLayout(label string, entries []wgpu.BindGroupLayoutEntry) (BindGroupLayout, error)

	// CreateBindGroup creates a bind group wiring resources to the layout's bindings.
	//
	// Parameters:
	//   - desc: the bind group descriptor
	//
	// Returns:
	//   - BindGroup: the created bind group
	//   - error: an error if the entries do not satisfy the layout
	CreateBindGroup(desc BindGroupDescriptor) (BindGroup, error)

	// CreateComputePipeline compiles a compute program and its pipeline layout.
	//
	// Parameters:
	//   - desc: the compute pipeline descriptor
	//
	// Returns:
	//   - ComputePipeline: the created pipeline
	//   - error: an error if the program could not be compiled
	CreateComputePipeline(desc ComputePipelineDescriptor) (ComputePipeline, error)

	// DispatchCompute encodes and submits a single compute pass binding group 0. The call returns once the
	// work is submitted; completion is only guaranteed after WaitIdle.
	//
	// Parameters:
	//   - pipeline: the compute pipeline to run
	//   - bindGroup: the bind group set on group 0
	//   - workgroups: the number of workgroups in x, y and z
	//
	// Returns:
	//   - error: an error if the pass could not be encoded or submitted
	DispatchCompute(pipeline ComputePipeline, bindGroup BindGroup, workgroups [3]uint32) error

	// WaitIdle blocks until every submitted command has completed on the device.
	//
	// Returns:
	//   - error: an error if the device failed while draining work
	WaitIdle() error

	// Release frees the device. Handles created by the device must not be used afterwards.
	Release()
}
