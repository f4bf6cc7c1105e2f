package material

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-models/common"
	"github.com/Carmen-Shannon/oxy-models/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-models/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-models/engine/renderer/texture"
	"github.com/cogentcore/webgpu/wgpu"
)

// Material bind group bindings.
const (
	BindingDiffuseTexture uint32 = iota
	BindingDiffuseSampler
	BindingNormalTexture
	BindingNormalSampler
)

// material is the implementation of the Material interface.
type material struct {
	name           string
	properties     common.ImportedMaterial
	diffuseTexture texture.Texture
	normalTexture  texture.Texture
	bindGroup      backend.BindGroup
}

// Material defines the interface for a render material: a diffuse texture, a normal map and the bind group
// exposing both to the fragment stage.
//
// Bindings:
//   - 0: diffuse texture view
//   - 1: diffuse sampler
//   - 2: normal texture view
//   - 3: normal sampler
type Material interface {
	bind_group_provider.Bindable

	// Name retrieves the material identifier.
	//
	// Returns:
	//   - string: the name of the material
	Name() string

	// Properties retrieves the scalar surface properties read from the material description.
	//
	// Returns:
	//   - common.ImportedMaterial: the imported properties, with texture references cleared
	Properties() common.ImportedMaterial

	// DiffuseTexture retrieves the sRGB color texture.
	//
	// Returns:
	//   - texture.Texture: the diffuse texture
	DiffuseTexture() texture.Texture

	// NormalTexture retrieves the linear normal map texture.
	//
	// Returns:
	//   - texture.Texture: the normal texture
	NormalTexture() texture.Texture

	// BindGroup retrieves the bind group set on the material slot during draw calls.
	//
	// Returns:
	//   - backend.BindGroup: the bind group
	BindGroup() backend.BindGroup

	// Release frees the bind group and both textures.
	Release()
}

var _ Material = &material{}

// LayoutEntries returns the material bind group layout, visible to the fragment stage.
//
// Returns:
//   - []wgpu.BindGroupLayoutEntry: four entries, two texture views each followed by its sampler
func LayoutEntries() []wgpu.BindGroupLayoutEntry {
	textureEntry := func(binding uint32) wgpu.BindGroupLayoutEntry {
		return wgpu.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: wgpu.ShaderStageFragment,
			Texture: wgpu.TextureBindingLayout{
				SampleType:    wgpu.TextureSampleTypeFloat,
				ViewDimension: wgpu.TextureViewDimension2D,
			},
		}
	}
	samplerEntry := func(binding uint32) wgpu.BindGroupLayoutEntry {
		return wgpu.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: wgpu.ShaderStageFragment,
			Sampler:    wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeFiltering},
		}
	}
	return []wgpu.BindGroupLayoutEntry{
		textureEntry(BindingDiffuseTexture),
		samplerEntry(BindingDiffuseSampler),
		textureEntry(BindingNormalTexture),
		samplerEntry(BindingNormalSampler),
	}
}

// NewMaterial creates a Material and its bind group. The material takes ownership of both textures.
//
// Parameters:
//   - device: the device to create the bind group on
//   - layout: a layout created from LayoutEntries, shared between materials
//   - options: variadic list of MaterialBuilderOption functions; diffuse and normal textures are required
//
// Returns:
//   - Material: the created material
//   - error: an error if a texture is missing or the bind group could not be created
func NewMaterial(device backend.Device, layout backend.BindGroupLayout, options ...MaterialBuilderOption) (Material, error) {
	m := &material{}
	for _, opt := range options {
		opt(m)
	}
	if m.diffuseTexture == nil || m.normalTexture == nil {
		return nil, fmt.Errorf("material %q requires both a diffuse and a normal texture", m.name)
	}

	group, err := device.CreateBindGroup(backend.BindGroupDescriptor{
		Label:   m.name,
		Layout:  layout,
		Entries: m.BindGroupEntries(),
	})
	if err != nil {
		return nil, fmt.Errorf("material %q: failed to create bind group: %w", m.name, err)
	}
	m.bindGroup = group
	return m, nil
}

func (m *material) Name() string {
	return m.name
}

func (m *material) Properties() common.ImportedMaterial {
	return m.properties
}

func (m *material) DiffuseTexture() texture.Texture {
	return m.diffuseTexture
}

func (m *material) NormalTexture() texture.Texture {
	return m.normalTexture
}

func (m *material) BindGroup() backend.BindGroup {
	return m.bindGroup
}

func (m *material) LayoutEntries() []wgpu.BindGroupLayoutEntry {
	return LayoutEntries()
}

func (m *material) BindGroupEntries() []backend.BindGroupEntry {
	return []backend.BindGroupEntry{
		{Binding: BindingDiffuseTexture, TextureView: m.diffuseTexture.View()},
		{Binding: BindingDiffuseSampler, Sampler: m.diffuseTexture.Sampler()},
		{Binding: BindingNormalTexture, TextureView: m.normalTexture.View()},
		{Binding: BindingNormalSampler, Sampler: m.normalTexture.Sampler()},
	}
}

func (m *material) Release() {
	if m.bindGroup != nil {
		m.bindGroup.Release()
		m.bindGroup = nil
	}
	if m.diffuseTexture != nil {
		m.diffuseTexture.Release()
		m.diffuseTexture = nil
	}
	if m.normalTexture != nil {
		m.normalTexture.Release()
		m.normalTexture = nil
	}
}
