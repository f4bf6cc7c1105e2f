package renderer

import (
	"github.com/Carmen-Shannon/oxy-models/engine/model"
	"github.com/Carmen-Shannon/oxy-models/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-models/engine/renderer/material"
	"github.com/cogentcore/webgpu/wgpu"
)

// Bind group slots of the main draw path.
const (
	SlotMaterial uint32 = 0
	SlotUniforms uint32 = 1
	SlotLight    uint32 = 2
)

// Bind group slots of the light-only draw path.
const (
	LightSlotUniforms uint32 = 0
	LightSlotLight    uint32 = 1
)

// InstanceRange is the half-open range [First, Last) of instances a draw covers.
type InstanceRange struct {
	First uint32
	Last  uint32
}

// SingleInstance draws instance 0 only.
var SingleInstance = InstanceRange{First: 0, Last: 1}

// Count returns the number of instances in the range, zero when Last <= First.
//
// Returns:
//   - uint32: the instance count
func (r InstanceRange) Count() uint32 {
	if r.Last <= r.First {
		return 0
	}
	return r.Last - r.First
}

func bindGeometry(pass backend.RenderPass, mesh model.Mesh) {
	pass.SetVertexBuffer(0, mesh.VertexBuffer())
	pass.SetIndexBuffer(mesh.IndexBuffer(), wgpu.IndexFormatUint32)
}

// DrawMesh draws a single instance of mesh with mat.
//
// Parameters:
//   - pass: the render pass to encode into
//   - mesh: the mesh to draw
//   - mat: the material bound at slot 0
//   - uniforms: the camera/transform bind group bound at slot 1
//   - light: the light bind group bound at slot 2
func DrawMesh(pass backend.RenderPass, mesh model.Mesh, mat material.Material, uniforms, light backend.BindGroup) {
	DrawMeshInstanced(pass, mesh, mat, SingleInstance, uniforms, light)
}

// DrawMeshInstanced draws the instances of mesh in r with mat.
//
// Parameters:
//   - pass: the render pass to encode into
//   - mesh: the mesh to draw
//   - mat: the material bound at slot 0
//   - r: the instances to draw
//   - uniforms: the camera/transform bind group bound at slot 1
//   - light: the light bind group bound at slot 2
func DrawMeshInstanced(pass backend.RenderPass, mesh model.Mesh, mat material.Material, r InstanceRange, uniforms, light backend.BindGroup) {
	bindGeometry(pass, mesh)
	pass.SetBindGroup(SlotMaterial, mat.BindGroup())
	pass.SetBindGroup(SlotUniforms, uniforms)
	pass.SetBindGroup(SlotLight, light)
	pass.DrawIndexed(mesh.NumElements(), r.Count(), 0, 0, r.First)
}

// DrawModel draws a single instance of every mesh of m with its own material.
//
// Parameters:
//   - pass: the render pass to encode into
//   - m: the model to draw
//   - uniforms: the camera/transform bind group bound at slot 1
//   - light: the light bind group bound at slot 2
func DrawModel(pass backend.RenderPass, m model.Model, uniforms, light backend.BindGroup) {
	DrawModelInstanced(pass, m, SingleInstance, uniforms, light)
}

// DrawModelInstanced draws the instances in r of every mesh of m in order, resolving each mesh's material
// by its stored index.
//
// Parameters:
//   - pass: the render pass to encode into
//   - m: the model to draw
//   - r: the instances to draw
//   - uniforms: the camera/transform bind group bound at slot 1
//   - light: the light bind group bound at slot 2
func DrawModelInstanced(pass backend.RenderPass, m model.Model, r InstanceRange, uniforms, light backend.BindGroup) {
	for _, mesh := range m.Meshes() {
		DrawMeshInstanced(pass, mesh, m.Material(mesh.MaterialIndex()), r, uniforms, light)
	}
}

// DrawModelInstancedWithMaterial draws every mesh of m with mat in place of the mesh's own material.
//
// Parameters:
//   - pass: the render pass to encode into
//   - m: the model to draw
//   - mat: the material bound at slot 0 for every mesh
//   - r: the instances to draw
//   - uniforms: the camera/transform bind group bound at slot 1
//   - light: the light bind group bound at slot 2
func DrawModelInstancedWithMaterial(pass backend.RenderPass, m model.Model, mat material.Material, r InstanceRange, uniforms, light backend.BindGroup) {
	for _, mesh := range m.Meshes() {
		DrawMeshInstanced(pass, mesh, mat, r, uniforms, light)
	}
}

// DrawLightMesh draws a single instance of mesh on the light-only path.
//
// Parameters:
//   - pass: the render pass to encode into
//   - mesh: the mesh to draw
//   - uniforms: the camera/transform bind group bound at slot 0
//   - light: the light bind group bound at slot 1
func DrawLightMesh(pass backend.RenderPass, mesh model.Mesh, uniforms, light backend.BindGroup) {
	DrawLightMeshInstanced(pass, mesh, SingleInstance, uniforms, light)
}

// DrawLightMeshInstanced draws the instances of mesh in r on the light-only path.
//
// Parameters:
//   - pass: the render pass to encode into
//   - mesh: the mesh to draw
//   - r: the instances to draw
//   - uniforms: the camera/transform bind group bound at slot 0
//   - light: the light bind group bound at slot 1
func DrawLightMeshInstanced(pass backend.RenderPass, mesh model.Mesh, r InstanceRange, uniforms, light backend.BindGroup) {
	bindGeometry(pass, mesh)
	pass.SetBindGroup(LightSlotUniforms, uniforms)
	pass.SetBindGroup(LightSlotLight, light)
	pass.DrawIndexed(mesh.NumElements(), r.Count(), 0, 0, r.First)
}

// DrawLightModel draws a single instance of every mesh of m on the light-only path.
func DrawLightModel(pass backend.RenderPass, m model.Model, uniforms, light backend.BindGroup) {
	DrawLightModelInstanced(pass, m, SingleInstance, uniforms, light)
}

// DrawLightModelInstanced draws the instances in r of every mesh of m on the light-only path.
func DrawLightModelInstanced(pass backend.RenderPass, m model.Model, r InstanceRange, uniforms, light backend.BindGroup) {
	for _, mesh := range m.Meshes() {
		DrawLightMeshInstanced(pass, mesh, r, uniforms, light)
	}
}
