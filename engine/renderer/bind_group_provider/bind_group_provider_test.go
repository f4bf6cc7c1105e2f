package bind_group_provider

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-models/common"
	"github.com/Carmen-Shannon/oxy-models/engine/renderer/backend"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storagePair struct {
	rw, ro backend.Buffer
}

func (s storagePair) LayoutEntries() []wgpu.BindGroupLayoutEntry {
	return StorageLayoutEntries()
}

func (s storagePair) BindGroupEntries() []backend.BindGroupEntry {
	return []backend.BindGroupEntry{{Binding: 0, Buffer: s.rw}, {Binding: 1, Buffer: s.ro}}
}

func newStoragePair(t *testing.T, device backend.Device, usage wgpu.BufferUsage) storagePair {
	t.Helper()
	rw, err := device.CreateBuffer(backend.BufferDescriptor{Label: "rw", Size: 16, Usage: usage})
	require.NoError(t, err)
	ro, err := device.CreateBuffer(backend.BufferDescriptor{Label: "ro", Size: 16, Usage: usage})
	require.NoError(t, err)
	return storagePair{rw: rw, ro: ro}
}

func TestStorageLayoutEntries(t *testing.T) {
	entries := StorageLayoutEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, uint32(0), entries[0].Binding)
	assert.Equal(t, wgpu.BufferBindingTypeStorage, entries[0].Buffer.Type)
	assert.Equal(t, uint32(1), entries[1].Binding)
	assert.Equal(t, wgpu.BufferBindingTypeReadOnlyStorage, entries[1].Buffer.Type)
	for _, e := range entries {
		assert.Equal(t, wgpu.ShaderStageCompute, e.Visibility)
	}
}

func TestBinderCreatesGroupsForMatchingResources(t *testing.T) {
	device := backend.NewSoftwareDevice()
	binder, err := NewBinder(device)
	require.NoError(t, err)
	assert.Equal(t, "storage_binder", binder.Layout().Label())

	first, err := binder.CreateBindGroup("first", newStoragePair(t, device, wgpu.BufferUsageStorage))
	require.NoError(t, err)
	second, err := binder.CreateBindGroup("second", newStoragePair(t, device, wgpu.BufferUsageStorage))
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, 2, device.Stats().LiveBindGroups)
}

func TestBinderRejectsNonStorageBuffers(t *testing.T) {
	device := backend.NewSoftwareDevice()
	binder, err := NewBinder(device)
	require.NoError(t, err)

	_, err = binder.CreateBindGroup("uniform_only", newStoragePair(t, device, wgpu.BufferUsageUniform))
	assert.True(t, errors.Is(err, backend.ErrBindingMismatch))
}

func TestNewBinderForResource(t *testing.T) {
	device := backend.NewSoftwareDevice()
	provider := NewUniformProvider("camera", wgpu.ShaderStageVertex, make([]byte, 64))
	binder, err := NewBinderForResource(device, provider, WithBinderLabel("camera_binder"))
	require.NoError(t, err)
	assert.Equal(t, provider.LayoutEntries(), binder.Layout().Entries())
	binder.Release()
	assert.Nil(t, binder.Layout())
}

func TestUniformProviderLifecycle(t *testing.T) {
	device := backend.NewSoftwareDevice()
	provider := NewUniformProvider("light", wgpu.ShaderStageVertex|wgpu.ShaderStageFragment, make([]byte, 32), make([]byte, 16))
	require.Len(t, provider.LayoutEntries(), 2)
	assert.Nil(t, provider.BindGroup())

	require.NoError(t, provider.Init(device))
	assert.NotNil(t, provider.BindGroup())
	assert.NotNil(t, provider.BindGroupLayout())
	assert.Equal(t, uint64(32), provider.Buffer(0).Size())
	assert.Equal(t, uint64(16), provider.Buffer(1).Size())

	color := make([]byte, 16)
	binary.LittleEndian.PutUint32(color, 7)
	require.NoError(t, WriteBuffers(device, BufferWrite{Provider: provider, Binding: 1, Data: color}))
	assert.Error(t, WriteBuffers(device, BufferWrite{Provider: provider, Binding: 5, Data: color}))

	stats := device.Stats()
	assert.Equal(t, 2, stats.LiveBuffers)
	assert.Equal(t, 1, stats.LiveBindGroups)

	provider.Release()
	stats = device.Stats()
	assert.Zero(t, stats.LiveBuffers)
	assert.Zero(t, stats.LiveBindGroups)
}

func TestProviderBindsTextureViewAndSampler(t *testing.T) {
	device := backend.NewSoftwareDevice()
	tex, err := device.CreateTexture(backend.TextureDescriptor{
		Label:   "environment",
		Format:  wgpu.TextureFormatRGBA8Unorm,
		Usage:   wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Staging: common.TextureStagingData{Pixels: []byte{10, 20, 30, 255}, Width: 1, Height: 1},
	})
	require.NoError(t, err)
	defer tex.Release()

	entries := []wgpu.BindGroupLayoutEntry{
		{
			Binding:    2,
			Visibility: wgpu.ShaderStageFragment,
			Sampler:    wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeFiltering},
		},
		{
			Binding:    0,
			Visibility: wgpu.ShaderStageFragment,
			Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform},
		},
		{
			Binding:    1,
			Visibility: wgpu.ShaderStageFragment,
			Texture: wgpu.TextureBindingLayout{
				SampleType:    wgpu.TextureSampleTypeFloat,
				ViewDimension: wgpu.TextureViewDimension2D,
			},
		},
	}

	t.Run("missing view", func(t *testing.T) {
		provider := NewBindGroupProvider("environment", entries, WithStagedData(0, make([]byte, 16)))
		err := provider.Init(device)
		assert.ErrorIs(t, err, backend.ErrBindingMismatch)
		assert.Zero(t, device.Stats().LiveBuffers)
	})

	view, err := device.CreateTextureView(tex)
	require.NoError(t, err)
	sampler, err := device.CreateSampler("environment", common.SamplerStagingData{MagFilter: wgpu.FilterModeNearest})
	require.NoError(t, err)

	provider := NewBindGroupProvider("environment", entries, WithStagedData(0, make([]byte, 16)))
	provider.SetTextureView(1, view)
	provider.SetSampler(2, sampler)
	require.NoError(t, provider.Init(device))

	bound := provider.BindGroupEntries()
	require.Len(t, bound, 3)
	assert.Equal(t, uint32(0), bound[0].Binding)
	assert.NotNil(t, bound[0].Buffer)
	assert.Equal(t, view, bound[1].TextureView)
	assert.Nil(t, bound[1].Buffer)
	assert.Equal(t, sampler, bound[2].Sampler)
	assert.Equal(t, 1, device.Stats().LiveBindGroups)

	data, err := device.SamplerData(sampler)
	require.NoError(t, err)
	assert.Equal(t, wgpu.FilterModeNearest, data.MagFilter)

	provider.Release()
	_, err = device.SamplerData(sampler)
	assert.ErrorIs(t, err, backend.ErrReleased)
	assert.Zero(t, device.Stats().LiveBindGroups)
	assert.Equal(t, 1, device.Stats().LiveTextures)
}
