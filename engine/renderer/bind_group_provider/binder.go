package bind_group_provider

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-models/engine/renderer/backend"
	"github.com/cogentcore/webgpu/wgpu"
)

// binder is the implementation of the Binder interface.
type binder struct {
	device  backend.Device
	label   string
	entries []wgpu.BindGroupLayoutEntry
	layout  backend.BindGroupLayout
}

// Binder owns one bind group layout and creates bind groups for any Bindable resource matching that layout.
// A single Binder is created once and shared by every load.
type Binder interface {
	// Layout returns the bind group layout all bind groups created by this Binder conform to.
	//
	// Returns:
	//   - backend.BindGroupLayout: the layout
	Layout() backend.BindGroupLayout

	// CreateBindGroup creates a bind group for the resource using the Binder's layout.
	//
	// Parameters:
	//   - label: the debug label for the bind group
	//   - resource: the resource to bind
	//
	// Returns:
	//   - backend.BindGroup: the created bind group
	//   - error: an error if the resource does not match the layout
	CreateBindGroup(label string, resource Bindable) (backend.BindGroup, error)

	// Release releases the layout owned by this Binder.
	Release()
}

var _ Binder = &binder{}

// StorageLayoutEntries returns the compute layout shared by mesh resources: binding 0 is a read-write storage buffer
// and binding 1 a read-only storage buffer.
//
// Returns:
//   - []wgpu.BindGroupLayoutEntry: the two storage entries
func StorageLayoutEntries() []wgpu.BindGroupLayoutEntry {
	return []wgpu.BindGroupLayoutEntry{
		{
			Binding:    0,
			Visibility: wgpu.ShaderStageCompute,
			Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage},
		},
		{
			Binding:    1,
			Visibility: wgpu.ShaderStageCompute,
			Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage},
		},
	}
}

// NewBinder creates a Binder with the storage compute layout from StorageLayoutEntries unless overridden.
//
// Parameters:
//   - device: the device that creates the layout and bind groups
//   - options: a variadic list of BinderBuilderOption functions
//
// Returns:
//   - Binder: the created Binder
//   - error: an error if the layout could not be created
func NewBinder(device backend.Device, options ...BinderBuilderOption) (Binder, error) {
	b := &binder{
		device:  device,
		label:   "storage_binder",
		entries: StorageLayoutEntries(),
	}
	for _, opt := range options {
		opt(b)
	}

	layout, err := device.CreateBindGroupLayout(b.label, b.entries)
	if err != nil {
		return nil, fmt.Errorf("binder %s: failed to create layout: %w", b.label, err)
	}
	b.layout = layout
	return b, nil
}

// NewBinderForResource creates a Binder whose layout is derived from a prototype resource.
//
// Parameters:
//   - device: the device that creates the layout and bind groups
//   - prototype: a resource whose LayoutEntries define the layout
//   - options: a variadic list of BinderBuilderOption functions
//
// Returns:
//   - Binder: the created Binder
//   - error: an error if the layout could not be created
func NewBinderForResource(device backend.Device, prototype Bindable, options ...BinderBuilderOption) (Binder, error) {
	return NewBinder(device, append([]BinderBuilderOption{WithLayoutEntries(prototype.LayoutEntries())}, options...)...)
}

func (b *binder) Layout() backend.BindGroupLayout {
	return b.layout
}

func (b *binder) CreateBindGroup(label string, resource Bindable) (backend.BindGroup, error) {
	group, err := b.device.CreateBindGroup(backend.BindGroupDescriptor{
		Label:   label,
		Layout:  b.layout,
		Entries: resource.BindGroupEntries(),
	})
	if err != nil {
		return nil, fmt.Errorf("binder %s: failed to bind %s: %w", b.label, label, err)
	}
	return group, nil
}

func (b *binder) Release() {
	if b.layout != nil {
		b.layout.Release()
		b.layout = nil
	}
}
