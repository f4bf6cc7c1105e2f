package model

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-models/common"
	"github.com/Carmen-Shannon/oxy-models/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-models/engine/renderer/bind_group_provider"
	"github.com/cogentcore/webgpu/wgpu"
)

// Buffer usages for mesh buffers. Both are storage buffers so the tangent pass can bind them, and both are CopySrc
// so their contents can be read back for validation.
const (
	VertexBufferUsage = wgpu.BufferUsageVertex | wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc
	IndexBufferUsage  = wgpu.BufferUsageIndex | wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc
)

// placeholderSize is the allocation used for the buffers of a mesh without faces.
const placeholderSize = 4

// mesh is the implementation of the Mesh interface.
type mesh struct {
	name          string
	vertexBuffer  backend.Buffer
	indexBuffer   backend.Buffer
	numElements   uint32
	vertexCount   int
	materialIndex int
}

// Mesh is one drawable sub-mesh of a Model: its vertex and index buffers, its element count and the index of its
// material in the owning Model.
//
// A Mesh is Bindable: binding 0 is the vertex buffer and binding 1 the index buffer, matching the storage layout
// of the tangent pass.
type Mesh interface {
	// Name retrieves the sub-mesh identifier.
	//
	// Returns:
	//   - string: the mesh name
	Name() string

	// VertexBuffer retrieves the device vertex buffer holding packed GPUVertex records.
	//
	// Returns:
	//   - backend.Buffer: the vertex buffer
	VertexBuffer() backend.Buffer

	// IndexBuffer retrieves the device index buffer holding uint32 indices.
	//
	// Returns:
	//   - backend.Buffer: the index buffer
	IndexBuffer() backend.Buffer

	// NumElements returns the index count drawn for this mesh. Zero for meshes without faces.
	//
	// Returns:
	//   - uint32: the index count
	NumElements() uint32

	// VertexCount returns the number of vertices stored in the vertex buffer.
	//
	// Returns:
	//   - int: the vertex count
	VertexCount() int

	// MaterialIndex returns the index of this mesh's material in the owning Model.
	//
	// Returns:
	//   - int: the material index
	MaterialIndex() int

	// LayoutEntries returns the storage layout entries of the tangent pass.
	//
	// Returns:
	//   - []wgpu.BindGroupLayoutEntry: binding 0 read-write storage, binding 1 read-only storage
	LayoutEntries() []wgpu.BindGroupLayoutEntry

	// BindGroupEntries returns the vertex buffer at binding 0 and the index buffer at binding 1.
	//
	// Returns:
	//   - []backend.BindGroupEntry: the bind group entries
	BindGroupEntries() []backend.BindGroupEntry

	// Release frees both buffers.
	Release()
}

var (
	_ Mesh                         = &mesh{}
	_ bind_group_provider.Bindable = &mesh{}
)

// BuildVertices interleaves flat attribute arrays into vertices with zeroed tangents and bitangents.
//
// Parameters:
//   - name: the mesh name reported in errors
//   - positions: 3 floats per vertex
//   - texCoords: 2 floats per vertex
//   - normals: 3 floats per vertex
//
// Returns:
//   - []GPUVertex: the vertices in input order
//   - error: a *common.MalformedMeshData if the array lengths are inconsistent
func BuildVertices(name string, positions, texCoords, normals []float32) ([]GPUVertex, error) {
	if len(positions)%3 != 0 {
		return nil, &common.MalformedMeshData{Mesh: name, Reason: fmt.Sprintf("position array length %d is not divisible by 3", len(positions))}
	}
	if len(texCoords)%2 != 0 {
		return nil, &common.MalformedMeshData{Mesh: name, Reason: fmt.Sprintf("texcoord array length %d is not divisible by 2", len(texCoords))}
	}
	if len(normals)%3 != 0 {
		return nil, &common.MalformedMeshData{Mesh: name, Reason: fmt.Sprintf("normal array length %d is not divisible by 3", len(normals))}
	}
	count := len(positions) / 3
	if len(texCoords)/2 != count || len(normals)/3 != count {
		return nil, &common.MalformedMeshData{Mesh: name, Reason: fmt.Sprintf(
			"attribute vertex counts disagree: %d positions, %d texcoords, %d normals", count, len(texCoords)/2, len(normals)/3)}
	}

	vertices := make([]GPUVertex, count)
	for i := range vertices {
		copy(vertices[i].Position[:], positions[i*3:i*3+3])
		copy(vertices[i].TexCoord[:], texCoords[i*2:i*2+2])
		copy(vertices[i].Normal[:], normals[i*3:i*3+3])
	}
	return vertices, nil
}

// ValidateIndices checks that indices form whole triangles referencing existing vertices.
//
// Parameters:
//   - name: the mesh name reported in errors
//   - indices: the triangle list indices
//   - vertexCount: the number of vertices
//
// Returns:
//   - error: a *common.MalformedMeshData describing the first problem, or nil
func ValidateIndices(name string, indices []uint32, vertexCount int) error {
	if len(indices)%3 != 0 {
		return &common.MalformedMeshData{Mesh: name, Reason: fmt.Sprintf("index count %d is not divisible by 3", len(indices))}
	}
	for i, idx := range indices {
		if int(idx) >= vertexCount {
			return &common.MalformedMeshData{Mesh: name, Reason: fmt.Sprintf("index %d at position %d is out of range for %d vertices", idx, i, vertexCount)}
		}
	}
	return nil
}

// NewMesh validates the geometry and uploads the vertex and index buffers. Tangents are left as provided; the
// loader fills them with the tangent pass afterwards. A mesh without faces gets placeholder buffers and
// NumElements() == 0.
//
// Parameters:
//   - device: the device to upload to
//   - name: the mesh name, used for buffer labels
//   - vertices: the mesh vertices
//   - indices: the triangle list indices
//   - materialIndex: the index of the mesh's material in the owning Model
//
// Returns:
//   - Mesh: the created mesh
//   - error: a *common.MalformedMeshData for invalid geometry, or the device error
func NewMesh(device backend.Device, name string, vertices []GPUVertex, indices []uint32, materialIndex int) (Mesh, error) {
	if err := ValidateIndices(name, indices, len(vertices)); err != nil {
		return nil, err
	}

	vertexDesc := backend.BufferDescriptor{Label: name + " Vertex Buffer", Contents: MarshalVertices(vertices), Usage: VertexBufferUsage}
	indexDesc := backend.BufferDescriptor{Label: name + " Index Buffer", Contents: MarshalIndices(indices), Usage: IndexBufferUsage}
	if len(vertexDesc.Contents) == 0 {
		vertexDesc.Size = placeholderSize
	}
	if len(indexDesc.Contents) == 0 {
		indexDesc.Size = placeholderSize
	}

	vb, err := device.CreateBuffer(vertexDesc)
	if err != nil {
		return nil, fmt.Errorf("mesh %s: failed to create vertex buffer: %w", name, err)
	}
	ib, err := device.CreateBuffer(indexDesc)
	if err != nil {
		vb.Release()
		return nil, fmt.Errorf("mesh %s: failed to create index buffer: %w", name, err)
	}

	return &mesh{
		name:          name,
		vertexBuffer:  vb,
		indexBuffer:   ib,
		numElements:   uint32(len(indices)),
		vertexCount:   len(vertices),
		materialIndex: materialIndex,
	}, nil
}

func (m *mesh) Name() string {
	return m.name
}

func (m *mesh) VertexBuffer() backend.Buffer {
	return m.vertexBuffer
}

func (m *mesh) IndexBuffer() backend.Buffer {
	return m.indexBuffer
}

func (m *mesh) NumElements() uint32 {
	return m.numElements
}

func (m *mesh) VertexCount() int {
	return m.vertexCount
}

func (m *mesh) MaterialIndex() int {
	return m.materialIndex
}

func (m *mesh) LayoutEntries() []wgpu.BindGroupLayoutEntry {
	return bind_group_provider.StorageLayoutEntries()
}

func (m *mesh) BindGroupEntries() []backend.BindGroupEntry {
	return []backend.BindGroupEntry{
		{Binding: 0, Buffer: m.vertexBuffer},
		{Binding: 1, Buffer: m.indexBuffer},
	}
}

func (m *mesh) Release() {
	if m.vertexBuffer != nil {
		m.vertexBuffer.Release()
		m.vertexBuffer = nil
	}
	if m.indexBuffer != nil {
		m.indexBuffer.Release()
		m.indexBuffer = nil
	}
}
