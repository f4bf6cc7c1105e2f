package shader

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/Carmen-Shannon/oxy-models/common"
	"github.com/Carmen-Shannon/oxy-models/engine/model"
	"github.com/chewxy/math32"
)

//go:embed assets/tangent.wgsl
var tangentSource string

// TangentShaderKey is the key of the built-in tangent compute shader.
const TangentShaderKey = "tangent_compute"

// TangentEntryPoint is the entry point of the built-in tangent compute shader and the name its CPU kernel is
// registered under on the software device.
const TangentEntryPoint = "main"

// TangentRowWidth is the number of triangles covered by one row (x dimension) of a tangent dispatch. It equals
// the WebGPU per-dimension workgroup count limit; larger meshes spill into further rows along y.
const TangentRowWidth = 65535

// degenerateUVEpsilon bounds the UV determinant below which a triangle contributes nothing.
const degenerateUVEpsilon = 1e-8

// TangentShader returns the built-in tangent compute shader. Group 0 binds the vertex buffer read-write at
// binding 0 and the index buffer read-only at binding 1; one invocation processes one triangle.
//
// Returns:
//   - Shader: the parsed built-in shader
func TangentShader() Shader {
	s, err := NewShader(TangentShaderKey, ShaderTypeCompute, tangentSource)
	if err != nil {
		panic(fmt.Sprintf("built-in tangent shader is invalid: %v", err))
	}
	return s
}

// TangentDispatchSize returns the workgroup counts covering triangles invocations, folded into rows of
// TangentRowWidth.
//
// Parameters:
//   - triangles: the number of triangles in the mesh
//
// Returns:
//   - [3]uint32: the workgroup counts for the dispatch
func TangentDispatchSize(triangles uint32) [3]uint32 {
	if triangles <= TangentRowWidth {
		return [3]uint32{triangles, 1, 1}
	}
	return [3]uint32{TangentRowWidth, (triangles + TangentRowWidth - 1) / TangentRowWidth, 1}
}

// TangentKernel is the CPU implementation of the tangent compute shader for the software device. It processes
// triangle x + y*TangentRowWidth for every workgroup (x, y) in order, writing tangents and bitangents in place into binding 0.
//
// Parameters:
//   - workgroups: the dispatch size, see TangentDispatchSize
//   - bindings: binding 0 holds packed vertices, binding 1 packed uint32 indices
//
// Returns:
//   - error: an error if a binding is missing or an index is out of range
func TangentKernel(workgroups [3]uint32, bindings map[uint32][]byte) error {
	vertices, ok := bindings[0]
	if !ok {
		return fmt.Errorf("tangent kernel: missing vertex binding 0")
	}
	indices, ok := bindings[1]
	if !ok {
		return fmt.Errorf("tangent kernel: missing index binding 1")
	}

	vertexCount := uint32(len(vertices) / model.VertexStride)
	indexCount := uint32(len(indices) / 4)
	for y := uint32(0); y < workgroups[1]; y++ {
		for x := uint32(0); x < workgroups[0]; x++ {
			triangle := x + y*TangentRowWidth
			if triangle*3+2 >= indexCount {
				break
			}
			var tri [3]uint32
			for k := range tri {
				tri[k] = binary.LittleEndian.Uint32(indices[(triangle*3+uint32(k))*4:])
				if tri[k] >= vertexCount {
					return fmt.Errorf("tangent kernel: triangle %d references vertex %d of %d", triangle, tri[k], vertexCount)
				}
			}
			tangent, bitangent := triangleTangent(vertices, tri)
			for _, idx := range tri {
				accumulate(vertices, idx, tangent, bitangent)
			}
		}
	}
	return nil
}

func triangleTangent(vertices []byte, tri [3]uint32) ([3]float32, [3]float32) {
	p0 := readVec3(vertices, tri[0], model.VertexOffsetPosition)
	p1 := readVec3(vertices, tri[1], model.VertexOffsetPosition)
	p2 := readVec3(vertices, tri[2], model.VertexOffsetPosition)
	uv0 := readVec2(vertices, tri[0], model.VertexOffsetTexCoord)
	uv1 := readVec2(vertices, tri[1], model.VertexOffsetTexCoord)
	uv2 := readVec2(vertices, tri[2], model.VertexOffsetTexCoord)

	edge1 := common.Sub3(p1, p0)
	edge2 := common.Sub3(p2, p0)
	duv1 := [2]float32{uv1[0] - uv0[0], uv1[1] - uv0[1]}
	duv2 := [2]float32{uv2[0] - uv0[0], uv2[1] - uv0[1]}

	denom := duv1[0]*duv2[1] - duv1[1]*duv2[0]
	var r float32
	if math32.Abs(denom) > degenerateUVEpsilon {
		r = 1 / denom
	}

	tangent := common.Scale3(common.Sub3(common.Scale3(edge1, duv2[1]), common.Scale3(edge2, duv1[1])), r)
	bitangent := common.Scale3(common.Sub3(common.Scale3(edge2, duv1[0]), common.Scale3(edge1, duv2[0])), r)
	return tangent, bitangent
}

func accumulate(vertices []byte, idx uint32, tangent, bitangent [3]float32) {
	t := common.Normalize3(common.Add3(readVec3(vertices, idx, model.VertexOffsetTangent), tangent))
	b := common.Normalize3(common.Add3(readVec3(vertices, idx, model.VertexOffsetBitangent), bitangent))
	writeVec3(vertices, idx, model.VertexOffsetTangent, t)
	writeVec3(vertices, idx, model.VertexOffsetBitangent, b)
}

func readFloat(vertices []byte, at int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(vertices[at:]))
}

func readVec3(vertices []byte, idx uint32, offset int) [3]float32 {
	at := int(idx)*model.VertexStride + offset
	return [3]float32{readFloat(vertices, at), readFloat(vertices, at+4), readFloat(vertices, at+8)}
}

func readVec2(vertices []byte, idx uint32, offset int) [2]float32 {
	at := int(idx)*model.VertexStride + offset
	return [2]float32{readFloat(vertices, at), readFloat(vertices, at+4)}
}

func writeVec3(vertices []byte, idx uint32, offset int, v [3]float32) {
	at := int(idx)*model.VertexStride + offset
	for i, f := range v {
		binary.LittleEndian.PutUint32(vertices[at+i*4:], math.Float32bits(f))
	}
}
