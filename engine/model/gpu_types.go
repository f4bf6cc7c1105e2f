package model

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"
)

// GPUVertexSource is the canonical WGSL definition of the VertexInput struct for mesh render pipelines.
// Matches GPUVertex layout exactly (56 bytes, locations 0-4).
//
//go:embed assets/vertex.wgsl
var GPUVertexSource string

// Byte offsets of each GPUVertex attribute, shared by the vertex buffer layout and the tangent kernels.
const (
	VertexStride          = 56
	VertexOffsetPosition  = 0
	VertexOffsetTexCoord  = 12
	VertexOffsetNormal    = 20
	VertexOffsetTangent   = 32
	VertexOffsetBitangent = 44
)

// GPUVertex is the GPU-aligned representation of a single mesh vertex.
// Matches the WGSL VertexInput struct layout exactly (see GPUVertexSource).
// Size: 56 bytes, tightly packed float32 values with no padding.
type GPUVertex struct {
	Position  [3]float32 // offset  0: vertex position in model space (12 bytes)
	TexCoord  [2]float32 // offset 12: UV texture coordinate (8 bytes)
	Normal    [3]float32 // offset 20: vertex normal (12 bytes)
	Tangent   [3]float32 // offset 32: tangent, zero until the tangent pass runs (12 bytes)
	Bitangent [3]float32 // offset 44: bitangent, zero until the tangent pass runs (12 bytes)
}

// Size returns the size of the GPUVertex struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (g *GPUVertex) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUVertex struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 56-byte buffer ready for GPU upload.
func (g *GPUVertex) Marshal() []byte {
	buf := make([]byte, VertexStride)
	g.put(buf)
	return buf
}

func (g *GPUVertex) put(buf []byte) {
	putFloats(buf[VertexOffsetPosition:], g.Position[:])
	putFloats(buf[VertexOffsetTexCoord:], g.TexCoord[:])
	putFloats(buf[VertexOffsetNormal:], g.Normal[:])
	putFloats(buf[VertexOffsetTangent:], g.Tangent[:])
	putFloats(buf[VertexOffsetBitangent:], g.Bitangent[:])
}

func putFloats(buf []byte, values []float32) {
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
}

func readFloats(buf []byte, values []float32) {
	for i := range values {
		values[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
}

// MarshalVertices packs a vertex slice into one contiguous buffer.
//
// Parameters:
//   - vertices: the vertices to pack
//
// Returns:
//   - []byte: len(vertices) * VertexStride bytes
func MarshalVertices(vertices []GPUVertex) []byte {
	buf := make([]byte, len(vertices)*VertexStride)
	for i := range vertices {
		vertices[i].put(buf[i*VertexStride:])
	}
	return buf
}

// UnmarshalVertices decodes packed vertex bytes, typically read back from a device buffer.
// Trailing bytes shorter than one vertex are ignored.
//
// Parameters:
//   - data: the packed vertex bytes
//   - count: the number of vertices to decode
//
// Returns:
//   - []GPUVertex: the decoded vertices
//   - error: an error if data holds fewer than count vertices
func UnmarshalVertices(data []byte, count int) ([]GPUVertex, error) {
	if len(data) < count*VertexStride {
		return nil, fmt.Errorf("vertex data holds %d bytes, need %d for %d vertices", len(data), count*VertexStride, count)
	}
	out := make([]GPUVertex, count)
	for i := range out {
		b := data[i*VertexStride:]
		readFloats(b[VertexOffsetPosition:], out[i].Position[:])
		readFloats(b[VertexOffsetTexCoord:], out[i].TexCoord[:])
		readFloats(b[VertexOffsetNormal:], out[i].Normal[:])
		readFloats(b[VertexOffsetTangent:], out[i].Tangent[:])
		readFloats(b[VertexOffsetBitangent:], out[i].Bitangent[:])
	}
	return out, nil
}

// MarshalIndices packs 32-bit indices little endian.
func MarshalIndices(indices []uint32) []byte {
	buf := make([]byte, len(indices)*4)
	for i, idx := range indices {
		binary.LittleEndian.PutUint32(buf[i*4:], idx)
	}
	return buf
}

// VertexBufferLayout describes GPUVertex to a render pipeline: stride 56, per-vertex stepping and
// attributes at shader locations 0-4.
//
// Returns:
//   - wgpu.VertexBufferLayout: the vertex buffer layout
func VertexBufferLayout() wgpu.VertexBufferLayout {
	return wgpu.VertexBufferLayout{
		ArrayStride: VertexStride,
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes: []wgpu.VertexAttribute{
			{Format: wgpu.VertexFormatFloat32x3, Offset: VertexOffsetPosition, ShaderLocation: 0},
			{Format: wgpu.VertexFormatFloat32x2, Offset: VertexOffsetTexCoord, ShaderLocation: 1},
			{Format: wgpu.VertexFormatFloat32x3, Offset: VertexOffsetNormal, ShaderLocation: 2},
			{Format: wgpu.VertexFormatFloat32x3, Offset: VertexOffsetTangent, ShaderLocation: 3},
			{Format: wgpu.VertexFormatFloat32x3, Offset: VertexOffsetBitangent, ShaderLocation: 4},
		},
	}
}
