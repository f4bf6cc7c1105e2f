package bind_group_provider

import (
	"fmt"
	"sort"

	"github.com/Carmen-Shannon/oxy-models/engine/renderer/backend"
	"github.com/cogentcore/webgpu/wgpu"
)

// bindGroupProvider is the unexported implementation of BindGroupProvider.
type bindGroupProvider struct {
	// label is a debug label added for convenience.
	label string
	// layoutEntries describe every binding of the provider, sorted by binding index.
	layoutEntries []wgpu.BindGroupLayoutEntry
	// staged holds initial buffer contents keyed by binding index, consumed by Init.
	staged map[uint32][]byte
	// usage is the buffer usage applied to staged buffers.
	usage wgpu.BufferUsage

	// The following fields are device resources and must be released when no longer needed. They are populated by Init.

	bindGroup       backend.BindGroup
	bindGroupLayout backend.BindGroupLayout
	buffers         map[uint32]backend.Buffer
	textureViews    map[uint32]backend.TextureView
	samplers        map[uint32]backend.Sampler
}

// BindGroupProvider is a buffer-backed bind group for per-frame data a front end binds next to a model,
// such as the camera uniforms on slot 1 and the light on slot 2.
//
// Usage pattern:
//  1. Create a provider with NewUniformProvider or NewBindGroupProvider
//  2. Call Init(device) to create the layout, buffers and bind group
//  3. Call WriteBuffers to update uniform contents
//  4. Pass BindGroup() to the draw functions
type BindGroupProvider interface {
	Bindable

	// Label returns the debug label for this provider.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// Init creates the staged buffers, the layout and the bind group on the device.
	//
	// Parameters:
	//   - device: the device to create resources on
	//
	// Returns:
	//   - error: an error if any resource could not be created
	Init(device backend.Device) error

	// BindGroup returns the created bind group, or nil before Init.
	//
	// Returns:
	//   - backend.BindGroup: the bind group or nil
	BindGroup() backend.BindGroup

	// BindGroupLayout returns the created bind group layout, or nil before Init.
	//
	// Returns:
	//   - backend.BindGroupLayout: the bind group layout or nil
	BindGroupLayout() backend.BindGroupLayout

	// Buffer returns the buffer bound at the given binding, or nil if not set.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - backend.Buffer: the buffer or nil
	Buffer(binding uint32) backend.Buffer

	// SetBuffer stores a buffer created elsewhere for a binding. The provider takes ownership.
	//
	// Parameters:
	//   - binding: the binding index
	//   - buf: the buffer
	SetBuffer(binding uint32, buf backend.Buffer)

	// SetTextureView stores a texture view for a binding. The provider takes ownership.
	//
	// Parameters:
	//   - binding: the binding index
	//   - tv: the texture view
	SetTextureView(binding uint32, tv backend.TextureView)

	// SetSampler stores a sampler for a binding. The provider takes ownership.
	//
	// Parameters:
	//   - binding: the binding index
	//   - s: the sampler
	SetSampler(binding uint32, s backend.Sampler)

	// Release releases every device resource held by this provider.
	Release()
}

// Compile-time check that bindGroupProvider implements BindGroupProvider
var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates a new BindGroupProvider with the provided options.
//
// Parameters:
//   - label: the debug label
//   - entries: the layout entries describing every binding
//   - options: a variadic list of options to configure the provider
//
// Returns:
//   - BindGroupProvider: a new instance of BindGroupProvider configured with the provided options
func NewBindGroupProvider(label string, entries []wgpu.BindGroupLayoutEntry, options ...BindGroupProviderOption) BindGroupProvider {
	p := &bindGroupProvider{
		label:         label,
		layoutEntries: append([]wgpu.BindGroupLayoutEntry(nil), entries...),
		staged:        make(map[uint32][]byte),
		usage:         wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		buffers:       make(map[uint32]backend.Buffer),
		textureViews:  make(map[uint32]backend.TextureView),
		samplers:      make(map[uint32]backend.Sampler),
	}
	sort.Slice(p.layoutEntries, func(i, j int) bool {
		return p.layoutEntries[i].Binding < p.layoutEntries[j].Binding
	})
	for _, opt := range options {
		opt(p)
	}
	return p
}

// NewUniformProvider creates a provider with one uniform buffer per data block, bound at consecutive bindings from 0.
//
// Parameters:
//   - label: the debug label
//   - visibility: the shader stages that read the uniforms
//   - data: the initial contents of each uniform buffer
//
// Returns:
//   - BindGroupProvider: the uniform provider, ready for Init
func NewUniformProvider(label string, visibility wgpu.ShaderStage, data ...[]byte) BindGroupProvider {
	entries := make([]wgpu.BindGroupLayoutEntry, len(data))
	options := make([]BindGroupProviderOption, len(data))
	for i, d := range data {
		entries[i] = wgpu.BindGroupLayoutEntry{
			Binding:    uint32(i),
			Visibility: visibility,
			Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform},
		}
		options[i] = WithStagedData(uint32(i), d)
	}
	return NewBindGroupProvider(label, entries, options...)
}

func (p *bindGroupProvider) Label() string {
	return p.label
}

func (p *bindGroupProvider) LayoutEntries() []wgpu.BindGroupLayoutEntry {
	return p.layoutEntries
}

func (p *bindGroupProvider) BindGroupEntries() []backend.BindGroupEntry {
	entries := make([]backend.BindGroupEntry, 0, len(p.layoutEntries))
	for _, le := range p.layoutEntries {
		e := backend.BindGroupEntry{Binding: le.Binding}
		if buf, ok := p.buffers[le.Binding]; ok {
			e.Buffer = buf
		}
		if tv, ok := p.textureViews[le.Binding]; ok {
			e.TextureView = tv
		}
		if s, ok := p.samplers[le.Binding]; ok {
			e.Sampler = s
		}
		entries = append(entries, e)
	}
	return entries
}

func (p *bindGroupProvider) Init(device backend.Device) error {
	bindings := make([]uint32, 0, len(p.staged))
	for binding := range p.staged {
		bindings = append(bindings, binding)
	}
	sort.Slice(bindings, func(i, j int) bool { return bindings[i] < bindings[j] })

	for _, binding := range bindings {
		buf, err := device.CreateBuffer(backend.BufferDescriptor{
			Label:    fmt.Sprintf("%s_binding_%d", p.label, binding),
			Contents: p.staged[binding],
			Usage:    p.usage,
		})
		if err != nil {
			p.Release()
			return fmt.Errorf("provider %s: failed to create buffer %d: %w", p.label, binding, err)
		}
		p.buffers[binding] = buf
		delete(p.staged, binding)
	}

	layout, err := device.CreateBindGroupLayout(p.label, p.layoutEntries)
	if err != nil {
		p.Release()
		return fmt.Errorf("provider %s: failed to create layout: %w", p.label, err)
	}
	p.bindGroupLayout = layout

	group, err := device.CreateBindGroup(backend.BindGroupDescriptor{
		Label:   p.label,
		Layout:  layout,
		Entries: p.BindGroupEntries(),
	})
	if err != nil {
		p.Release()
		return fmt.Errorf("provider %s: failed to create bind group: %w", p.label, err)
	}
	p.bindGroup = group
	return nil
}

func (p *bindGroupProvider) BindGroup() backend.BindGroup {
	return p.bindGroup
}

func (p *bindGroupProvider) BindGroupLayout() backend.BindGroupLayout {
	return p.bindGroupLayout
}

func (p *bindGroupProvider) Buffer(binding uint32) backend.Buffer {
	return p.buffers[binding]
}

func (p *bindGroupProvider) SetBuffer(binding uint32, buf backend.Buffer) {
	p.buffers[binding] = buf
}

func (p *bindGroupProvider) SetTextureView(binding uint32, tv backend.TextureView) {
	p.textureViews[binding] = tv
}

func (p *bindGroupProvider) SetSampler(binding uint32, s backend.Sampler) {
	p.samplers[binding] = s
}

func (p *bindGroupProvider) Release() {
	if p.bindGroup != nil {
		p.bindGroup.Release()
		p.bindGroup = nil
	}
	if p.bindGroupLayout != nil {
		p.bindGroupLayout.Release()
		p.bindGroupLayout = nil
	}
	for i, tv := range p.textureViews {
		tv.Release()
		delete(p.textureViews, i)
	}
	for i, s := range p.samplers {
		s.Release()
		delete(p.samplers, i)
	}
	for i, buf := range p.buffers {
		buf.Release()
		delete(p.buffers, i)
	}
}
