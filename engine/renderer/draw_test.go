package renderer

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-models/engine/model"
	"github.com/Carmen-Shannon/oxy-models/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-models/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-models/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-models/engine/renderer/texture"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type drawFixture struct {
	device   backend.SoftwareDevice
	model    model.Model
	uniforms bind_group_provider.BindGroupProvider
	light    bind_group_provider.BindGroupProvider
	layout   backend.BindGroupLayout
}

func newMaterial(t *testing.T, device backend.Device, layout backend.BindGroupLayout, name string) material.Material {
	t.Helper()
	diffuse, err := texture.Solid(device, name+"_diffuse", [4]uint8{255, 255, 255, 255}, false)
	require.NoError(t, err)
	normal, err := texture.Solid(device, name+"_normal", [4]uint8{128, 128, 255, 255}, true)
	require.NoError(t, err)
	mat, err := material.NewMaterial(device, layout,
		material.WithName(name),
		material.WithDiffuseTexture(diffuse),
		material.WithNormalTexture(normal),
	)
	require.NoError(t, err)
	return mat
}

func newMesh(t *testing.T, device backend.Device, name string, triangles int, materialIndex int) model.Mesh {
	t.Helper()
	positions := []float32{0, 0, 0, 1, 0, 0, 0, 1, 0}
	vertices, err := model.BuildVertices(name, positions, make([]float32, 6), make([]float32, 9))
	require.NoError(t, err)
	indices := make([]uint32, 0, triangles*3)
	for i := 0; i < triangles; i++ {
		indices = append(indices, 0, 1, 2)
	}
	mesh, err := model.NewMesh(device, name, vertices, indices, materialIndex)
	require.NoError(t, err)
	return mesh
}

func newDrawFixture(t *testing.T) *drawFixture {
	t.Helper()
	device := backend.NewSoftwareDevice()
	layout, err := device.CreateBindGroupLayout("material_layout", material.LayoutEntries())
	require.NoError(t, err)

	m := model.NewModel(
		model.WithName("pair"),
		model.WithMeshes(newMesh(t, device, "a", 1, 1), newMesh(t, device, "b", 2, 0)),
		model.WithMaterials(newMaterial(t, device, layout, "first"), newMaterial(t, device, layout, "second")),
	)

	uniforms := bind_group_provider.NewUniformProvider("uniforms", wgpu.ShaderStageVertex, make([]byte, 64))
	require.NoError(t, uniforms.Init(device))
	light := bind_group_provider.NewUniformProvider("light", wgpu.ShaderStageVertex|wgpu.ShaderStageFragment, make([]byte, 32))
	require.NoError(t, light.Init(device))

	t.Cleanup(func() {
		m.Release()
		uniforms.Release()
		light.Release()
		layout.Release()
	})
	return &drawFixture{device: device, model: m, uniforms: uniforms, light: light, layout: layout}
}

func TestDrawModelInstanced(t *testing.T) {
	f := newDrawFixture(t)
	pass := backend.NewRecordingPass()

	DrawModelInstanced(pass, f.model, InstanceRange{First: 2, Last: 5}, f.uniforms.BindGroup(), f.light.BindGroup())

	cmds := pass.Commands()
	require.Len(t, cmds, 12)

	first := f.model.Meshes()[0]
	assert.Equal(t, backend.CommandSetVertexBuffer, cmds[0].Kind)
	assert.Equal(t, first.VertexBuffer(), cmds[0].Buffer)
	assert.Equal(t, backend.CommandSetIndexBuffer, cmds[1].Kind)
	assert.Equal(t, wgpu.IndexFormatUint32, cmds[1].IndexFormat)
	assert.Equal(t, backend.CommandSetBindGroup, cmds[2].Kind)
	assert.Equal(t, SlotMaterial, cmds[2].Slot)
	assert.Equal(t, f.model.Material(1).BindGroup(), cmds[2].BindGroup)
	assert.Equal(t, SlotUniforms, cmds[3].Slot)
	assert.Equal(t, f.uniforms.BindGroup(), cmds[3].BindGroup)
	assert.Equal(t, SlotLight, cmds[4].Slot)
	assert.Equal(t, f.light.BindGroup(), cmds[4].BindGroup)

	draws := pass.Draws()
	require.Len(t, draws, 2)
	assert.Equal(t, uint32(3), draws[0].IndexCount)
	assert.Equal(t, uint32(3), draws[0].InstanceCount)
	assert.Equal(t, uint32(2), draws[0].FirstInstance)
	assert.Equal(t, uint32(6), draws[1].IndexCount)

	assert.Equal(t, f.model.Material(0).BindGroup(), cmds[8].BindGroup)
}

func TestDrawModelInstancedWithMaterial(t *testing.T) {
	f := newDrawFixture(t)
	override := newMaterial(t, f.device, f.layout, "override")
	defer override.Release()
	pass := backend.NewRecordingPass()

	DrawModelInstancedWithMaterial(pass, f.model, override, SingleInstance, f.uniforms.BindGroup(), f.light.BindGroup())

	for _, c := range pass.Commands() {
		if c.Kind == backend.CommandSetBindGroup && c.Slot == SlotMaterial {
			assert.Equal(t, override.BindGroup(), c.BindGroup)
		}
	}
	for _, d := range pass.Draws() {
		assert.Equal(t, uint32(1), d.InstanceCount)
		assert.Equal(t, uint32(0), d.FirstInstance)
	}
}

func TestDrawLightModel(t *testing.T) {
	f := newDrawFixture(t)
	pass := backend.NewRecordingPass()

	DrawLightModel(pass, f.model, f.uniforms.BindGroup(), f.light.BindGroup())

	cmds := pass.Commands()
	require.Len(t, cmds, 10)
	assert.Equal(t, LightSlotUniforms, cmds[2].Slot)
	assert.Equal(t, f.uniforms.BindGroup(), cmds[2].BindGroup)
	assert.Equal(t, LightSlotLight, cmds[3].Slot)
	assert.Equal(t, f.light.BindGroup(), cmds[3].BindGroup)
	assert.Len(t, pass.Draws(), 2)
}

func TestDrawMeshWithoutFaces(t *testing.T) {
	device := backend.NewSoftwareDevice()
	mesh, err := model.NewMesh(device, "empty", nil, nil, 0)
	require.NoError(t, err)
	defer mesh.Release()
	pass := backend.NewRecordingPass()

	DrawLightMesh(pass, mesh, nil, nil)

	draws := pass.Draws()
	require.Len(t, draws, 1)
	assert.Equal(t, uint32(0), draws[0].IndexCount)
}

func TestInstanceRangeCount(t *testing.T) {
	assert.Equal(t, uint32(1), SingleInstance.Count())
	assert.Equal(t, uint32(0), InstanceRange{First: 4, Last: 4}.Count())
	assert.Equal(t, uint32(0), InstanceRange{First: 5, Last: 2}.Count())
}
