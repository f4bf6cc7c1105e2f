package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/Carmen-Shannon/oxy-models/common"
	"github.com/Carmen-Shannon/oxy-models/engine/model"
	"github.com/Carmen-Shannon/oxy-models/engine/renderer"
	"github.com/Carmen-Shannon/oxy-models/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-models/engine/renderer/bind_group_provider"
	"github.com/cogentcore/webgpu/wgpu"
)

// tangentEpsilon is the length below which a read back tangent counts as missing.
const tangentEpsilon = 1e-4

type meshReport struct {
	Name       string
	Material   string
	Vertices   int
	Triangles  uint32
	Degenerate int
}

type frameReport struct {
	Commands int
	Draws    int
}

func inspect(w io.Writer, device backend.Device, m model.Model) error {
	meshes := make([]meshReport, 0, len(m.Meshes()))
	for _, mesh := range m.Meshes() {
		degenerate, err := validateTangents(device, mesh)
		if err != nil {
			return fmt.Errorf("validating %s: %w", mesh.Name(), err)
		}
		meshes = append(meshes, meshReport{
			Name:       mesh.Name(),
			Material:   m.Material(mesh.MaterialIndex()).Name(),
			Vertices:   mesh.VertexCount(),
			Triangles:  mesh.NumElements() / 3,
			Degenerate: degenerate,
		})
	}

	frame, err := recordFrame(device, m)
	if err != nil {
		return fmt.Errorf("recording frame: %w", err)
	}

	fmt.Fprintf(w, "model %s (%s)\n", m.Name(), m.ID())
	fmt.Fprintf(w, "  path: %s\n", m.Path())
	fmt.Fprintf(w, "  materials: %d, vertices: %d, bounding radius: %.3f\n", len(m.Materials()), m.VertexCount(), m.BoundingRadius())
	fmt.Fprintf(w, "  dependencies: %d\n\n", len(m.Dependencies()))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MESH\tMATERIAL\tVERTICES\tTRIANGLES\tNO TANGENT")
	for _, r := range meshes {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n", r.Name, r.Material, r.Vertices, r.Triangles, r.Degenerate)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nframe: %d commands, %d draws\n", frame.Commands, frame.Draws)
	return nil
}

// validateTangents reads the vertex buffer back and counts vertices whose tangent or bitangent stayed zero.
func validateTangents(device backend.Device, mesh model.Mesh) (int, error) {
	if mesh.NumElements() == 0 {
		return 0, nil
	}

	data, err := device.ReadBuffer(mesh.VertexBuffer())
	if err != nil {
		return 0, err
	}
	vertices, err := model.UnmarshalVertices(data, mesh.VertexCount())
	if err != nil {
		return 0, err
	}

	degenerate := 0
	for _, v := range vertices {
		if common.Length3(v.Tangent) < tangentEpsilon || common.Length3(v.Bitangent) < tangentEpsilon {
			degenerate++
		}
	}
	return degenerate, nil
}

// recordFrame encodes one main pass and one light pass of m into a recording pass.
func recordFrame(device backend.Device, m model.Model) (frameReport, error) {
	identity := [16]float32{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
	uniforms := bind_group_provider.NewUniformProvider("frame_uniforms", wgpu.ShaderStageVertex, common.SliceToBytes(identity[:]))
	if err := uniforms.Init(device); err != nil {
		return frameReport{}, err
	}
	defer uniforms.Release()

	light := [8]float32{2, 2, 2, 1, 1, 1, 1, 1}
	lights := bind_group_provider.NewUniformProvider("frame_light", wgpu.ShaderStageVertex|wgpu.ShaderStageFragment, common.SliceToBytes(light[:]))
	if err := lights.Init(device); err != nil {
		return frameReport{}, err
	}
	defer lights.Release()

	pass := backend.NewRecordingPass()
	renderer.DrawModel(pass, m, uniforms.BindGroup(), lights.BindGroup())
	renderer.DrawLightModel(pass, m, uniforms.BindGroup(), lights.BindGroup())

	return frameReport{Commands: len(pass.Commands()), Draws: len(pass.Draws())}, nil
}
