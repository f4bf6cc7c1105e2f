package model

import (
	"github.com/Carmen-Shannon/oxy-models/engine/renderer/material"
	"github.com/chewxy/math32"
	"github.com/google/uuid"
)

// model is the implementation of the Model interface.
type model struct {
	id             uuid.UUID
	name           string
	path           string
	meshes         []Mesh
	materials      []material.Material
	dependencies   []string
	boundingRadius float32
}

// Model defines the interface for a loaded 3D model: an ordered list of meshes and an ordered list of materials.
// Meshes reference materials by index; every index is valid for the life of the Model.
// It is produced by the Loader after importing a model file and running the tangent pass on every mesh.
type Model interface {
	// ID retrieves the identifier assigned to this load of the model.
	//
	// Returns:
	//   - uuid.UUID: the model identifier
	ID() uuid.UUID

	// Name retrieves the model name, derived from the file name.
	//
	// Returns:
	//   - string: the model name
	Name() string

	// Path retrieves the file path the model was loaded from.
	//
	// Returns:
	//   - string: the source path
	Path() string

	// Meshes retrieves the meshes in source order.
	//
	// Returns:
	//   - []Mesh: the meshes
	Meshes() []Mesh

	// Materials retrieves the materials in source order.
	//
	// Returns:
	//   - []material.Material: the materials
	Materials() []material.Material

	// Material returns the material at index i.
	//
	// Parameters:
	//   - i: the material index, usually a Mesh's MaterialIndex
	//
	// Returns:
	//   - material.Material: the material
	Material(i int) material.Material

	// VertexCount returns the total number of vertices across all meshes.
	//
	// Returns:
	//   - int: the vertex count
	VertexCount() int

	// Dependencies returns every additional file the model was assembled from, such as material libraries and
	// textures.
	//
	// Returns:
	//   - []string: the dependency paths
	Dependencies() []string

	// BoundingRadius returns the bounding sphere radius for this model, measured as
	// the maximum vertex distance from the origin.
	//
	// Returns:
	//   - float32: the bounding radius
	BoundingRadius() float32

	// Release frees every mesh and material.
	Release()
}

var _ Model = &model{}

// NewModel creates a new Model instance with the specified options applied. A random ID is assigned unless
// WithID is given.
//
// Parameters:
//   - options: a variadic list of ModelBuilderOption functions to configure the Model
//
// Returns:
//   - Model: a new instance of Model configured with the provided options
func NewModel(options ...ModelBuilderOption) Model {
	m := &model{id: uuid.New()}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// ComputeBoundingRadius calculates the bounding sphere radius from vertex positions. The radius is the maximum
// distance from the origin across all vertices in the slice.
//
// Parameters:
//   - vertices: the vertex data to compute the bounding radius from
//
// Returns:
//   - float32: the maximum distance from the origin
func ComputeBoundingRadius(vertices []GPUVertex) float32 {
	var maxDistSq float32
	for _, v := range vertices {
		p := v.Position
		distSq := p[0]*p[0] + p[1]*p[1] + p[2]*p[2]
		if distSq > maxDistSq {
			maxDistSq = distSq
		}
	}
	return math32.Sqrt(maxDistSq)
}

func (m *model) ID() uuid.UUID {
	return m.id
}

func (m *model) Name() string {
	return m.name
}

func (m *model) Path() string {
	return m.path
}

func (m *model) Meshes() []Mesh {
	return m.meshes
}

func (m *model) Materials() []material.Material {
	return m.materials
}

func (m *model) Material(i int) material.Material {
	return m.materials[i]
}

func (m *model) VertexCount() int {
	total := 0
	for _, mesh := range m.meshes {
		total += mesh.VertexCount()
	}
	return total
}

func (m *model) Dependencies() []string {
	return m.dependencies
}

func (m *model) BoundingRadius() float32 {
	return m.boundingRadius
}

func (m *model) Release() {
	for _, mesh := range m.meshes {
		mesh.Release()
	}
	for _, mat := range m.materials {
		mat.Release()
	}
	m.meshes = nil
	m.materials = nil
}
