package loader

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Carmen-Shannon/oxy-models/common"
	"github.com/Carmen-Shannon/oxy-models/engine/model"
	"github.com/Carmen-Shannon/oxy-models/engine/profiler"
	"github.com/Carmen-Shannon/oxy-models/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-models/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// cubeOBJ declares 8 positions, 6 face normals and one UV square shared by every face, giving 12 triangles
// and 24 unique vertices.
const cubeOBJ = `mtllib cube.mtl
v -1 -1 1
v 1 -1 1
v 1 1 1
v -1 1 1
v -1 -1 -1
v 1 -1 -1
v 1 1 -1
v -1 1 -1
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 0 1
vn 0 0 -1
vn 1 0 0
vn -1 0 0
vn 0 1 0
vn 0 -1 0
o cube
usemtl cube_mat
f 1/1/1 2/2/1 3/3/1 4/4/1
f 6/1/2 5/2/2 8/3/2 7/4/2
f 2/1/3 6/2/3 7/3/3 3/4/3
f 5/1/4 1/2/4 4/3/4 8/4/4
f 4/1/5 3/2/5 7/3/5 8/4/5
f 5/1/6 6/2/6 2/3/6 1/4/6
`

const cubeMTL = `newmtl cube_mat
Kd 0.8 0.8 0.8
map_Kd diffuse.png
map_Bump normal.png
`

func encodePNG(t *testing.T, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// writeFixture writes files into a fresh temp dir and returns the dir.
func writeFixture(t *testing.T, files map[string][]byte) string {
	t.Helper()
	dir := t.TempDir()
	for name, data := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
	}
	return dir
}

func cubeFixture(t *testing.T) string {
	t.Helper()
	dir := writeFixture(t, map[string][]byte{
		"cube.obj":    []byte(cubeOBJ),
		"cube.mtl":    []byte(cubeMTL),
		"diffuse.png": encodePNG(t, color.RGBA{R: 200, G: 100, B: 50, A: 255}),
		"normal.png":  encodePNG(t, color.RGBA{R: 128, G: 128, B: 255, A: 255}),
	})
	return filepath.Join(dir, "cube.obj")
}

func newTestLoader(t *testing.T, options ...LoaderBuilderOption) (backend.SoftwareDevice, Loader) {
	t.Helper()
	device := backend.NewSoftwareDevice(backend.WithJournal(true))
	l, err := NewLoader(device, options...)
	require.NoError(t, err)
	t.Cleanup(l.Release)
	return device, l
}

func readVertices(t *testing.T, device backend.Device, mesh model.Mesh) []model.GPUVertex {
	t.Helper()
	data, err := device.ReadBuffer(mesh.VertexBuffer())
	require.NoError(t, err)
	vertices, err := model.UnmarshalVertices(data, mesh.VertexCount())
	require.NoError(t, err)
	return vertices
}

func TestLoadCube(t *testing.T) {
	device, l := newTestLoader(t)

	m, err := l.Load(context.Background(), cubeFixture(t))
	require.NoError(t, err)
	defer m.Release()

	assert.Equal(t, StateLoaded, l.State())
	assert.Equal(t, "cube", m.Name())
	require.Len(t, m.Meshes(), 1)
	require.Len(t, m.Materials(), 1)

	mesh := m.Meshes()[0]
	assert.Equal(t, "cube", mesh.Name())
	assert.Equal(t, uint32(36), mesh.NumElements())
	assert.Equal(t, 24, mesh.VertexCount())
	assert.Equal(t, 0, mesh.MaterialIndex())
	assert.Equal(t, 24, m.VertexCount())
	assert.InDelta(t, math.Sqrt(3), m.BoundingRadius(), 1e-5)

	mat := m.Material(mesh.MaterialIndex())
	assert.Equal(t, "cube_mat", mat.Name())
	assert.False(t, mat.DiffuseTexture().IsNormalMap())
	assert.True(t, mat.NormalTexture().IsNormalMap())
	assert.Len(t, m.Dependencies(), 3)

	for i, v := range readVertices(t, device, mesh) {
		assert.Greater(t, common.Length3(v.Tangent), float32(0.5), "vertex %d tangent", i)
		assert.Greater(t, common.Length3(v.Bitangent), float32(0.5), "vertex %d bitangent", i)
		assert.InDelta(t, 0, common.Dot3(v.Tangent, v.Normal), 1e-5, "vertex %d tangent not orthogonal to face normal", i)
		assert.InDelta(t, 0, common.Dot3(v.Bitangent, v.Normal), 1e-5, "vertex %d bitangent not orthogonal to face normal", i)
	}
}

func TestLoadIsDeterministic(t *testing.T) {
	device, l := newTestLoader(t)
	path := cubeFixture(t)

	first, err := l.Load(context.Background(), path)
	require.NoError(t, err)
	defer first.Release()
	second, err := l.Load(context.Background(), path)
	require.NoError(t, err)
	defer second.Release()

	assert.NotEqual(t, first.ID(), second.ID())
	require.Equal(t, len(first.Meshes()), len(second.Meshes()))
	for i := range first.Meshes() {
		a, b := first.Meshes()[i], second.Meshes()[i]
		assert.Equal(t, a.Name(), b.Name())
		assert.Equal(t, a.VertexCount(), b.VertexCount())
		assert.Equal(t, a.MaterialIndex(), b.MaterialIndex())
		assert.Equal(t, readVertices(t, device, a), readVertices(t, device, b))
	}
	require.Equal(t, len(first.Materials()), len(second.Materials()))
	for i := range first.Materials() {
		assert.Equal(t, first.Materials()[i].Name(), second.Materials()[i].Name())
	}
}

func TestLoadSerializesComputePasses(t *testing.T) {
	src := cubeOBJ + "o second\nusemtl cube_mat\nf 1/1/1 2/2/1 3/3/1\n"
	dir := writeFixture(t, map[string][]byte{
		"two.obj":     []byte(src),
		"cube.mtl":    []byte(cubeMTL),
		"diffuse.png": encodePNG(t, color.RGBA{R: 255, A: 255}),
		"normal.png":  encodePNG(t, color.RGBA{R: 128, G: 128, B: 255, A: 255}),
	})
	device, l := newTestLoader(t, WithMaxConcurrency(4))

	m, err := l.Load(context.Background(), filepath.Join(dir, "two.obj"))
	require.NoError(t, err)
	defer m.Release()
	require.Len(t, m.Meshes(), 2)

	var kinds []backend.EventKind
	for _, e := range device.Journal() {
		if e.Kind == backend.EventDispatch || e.Kind == backend.EventWaitIdle {
			kinds = append(kinds, e.Kind)
		}
	}
	assert.Equal(t, []backend.EventKind{
		backend.EventDispatch, backend.EventWaitIdle,
		backend.EventDispatch, backend.EventWaitIdle,
	}, kinds)

	stats := device.Stats()
	assert.Equal(t, 2, stats.Executed)
	assert.Equal(t, 0, stats.Pending)
}

func TestLoadMeshWithoutFaces(t *testing.T) {
	src := "o empty\n" + cubeOBJ
	dir := writeFixture(t, map[string][]byte{
		"mixed.obj":   []byte(src),
		"cube.mtl":    []byte(cubeMTL),
		"diffuse.png": encodePNG(t, color.RGBA{G: 255, A: 255}),
		"normal.png":  encodePNG(t, color.RGBA{R: 128, G: 128, B: 255, A: 255}),
	})
	device, l := newTestLoader(t)

	m, err := l.Load(context.Background(), filepath.Join(dir, "mixed.obj"))
	require.NoError(t, err)
	defer m.Release()

	require.Len(t, m.Meshes(), 2)
	empty := m.Meshes()[0]
	assert.Equal(t, "empty", empty.Name())
	assert.Equal(t, uint32(0), empty.NumElements())
	assert.Equal(t, 0, empty.MaterialIndex())
	assert.Equal(t, 1, device.Stats().Dispatches)
}

func TestLoadWithoutMaterials(t *testing.T) {
	dir := writeFixture(t, map[string][]byte{
		"tri.obj": []byte("v 0 0 0\nv 1 0 0\nv 0 1 0\nvt 0 0\nvt 1 0\nvt 0 1\nf 1/1 2/2 3/3\n"),
	})
	device, l := newTestLoader(t)

	m, err := l.Load(context.Background(), filepath.Join(dir, "tri.obj"))
	require.NoError(t, err)
	defer m.Release()

	require.Len(t, m.Materials(), 1)
	mat := m.Materials()[0]
	assert.Equal(t, "default", mat.Name())
	assert.Equal(t, uint32(1), mat.DiffuseTexture().Width())

	pixels, err := device.TexturePixels(mat.NormalTexture().Texture())
	require.NoError(t, err)
	assert.Equal(t, []byte{128, 128, 255, 255}, pixels)
}

func TestLoadAssetParseErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		path string
	}{
		{name: "missing file", path: filepath.Join(dir, "missing.obj")},
		{name: "missing parent directory", path: filepath.Join(dir, "nowhere", "cube.obj")},
		{name: "unsupported format", path: filepath.Join(dir, "cube.fbx")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			device, l := newTestLoader(t)
			m, err := l.Load(context.Background(), tt.path)
			assert.Nil(t, m)
			var parseErr *common.AssetParseError
			require.True(t, errors.As(err, &parseErr), "got %v", err)
			assert.Equal(t, StateFailed, l.State())
			assert.Equal(t, backend.SoftwareStats{}, device.Stats())
		})
	}
}

func TestLoadMissingTextureIsAllOrNothing(t *testing.T) {
	mtl := cubeMTL + "newmtl broken\nmap_Kd gone.png\n"
	obj := cubeOBJ + "o other\nusemtl broken\nf 1/1/1 2/2/1 3/3/1\n"
	dir := writeFixture(t, map[string][]byte{
		"cube.obj":    []byte(obj),
		"cube.mtl":    []byte(mtl),
		"diffuse.png": encodePNG(t, color.RGBA{B: 255, A: 255}),
		"normal.png":  encodePNG(t, color.RGBA{R: 128, G: 128, B: 255, A: 255}),
	})
	device, l := newTestLoader(t)
	before := device.Stats()

	m, err := l.Load(context.Background(), filepath.Join(dir, "cube.obj"))
	assert.Nil(t, m)
	var texErr *common.TextureLoadError
	require.True(t, errors.As(err, &texErr), "got %v", err)
	assert.Equal(t, filepath.Join(dir, "gone.png"), texErr.Path)
	assert.True(t, IsNotFound(err))

	after := device.Stats()
	assert.Equal(t, before.LiveBuffers, after.LiveBuffers)
	assert.Equal(t, before.LiveTextures, after.LiveTextures)
	assert.Equal(t, before.LiveBindGroups, after.LiveBindGroups)
}

func TestModelReleaseFreesDeviceResources(t *testing.T) {
	device, l := newTestLoader(t)
	before := device.Stats()

	m, err := l.Load(context.Background(), cubeFixture(t))
	require.NoError(t, err)
	loaded := device.Stats()
	assert.Equal(t, before.LiveBuffers+2, loaded.LiveBuffers)
	assert.Equal(t, before.LiveTextures+2, loaded.LiveTextures)
	assert.Equal(t, before.LiveBindGroups+1, loaded.LiveBindGroups)

	m.Release()
	after := device.Stats()
	assert.Equal(t, before.LiveBuffers, after.LiveBuffers)
	assert.Equal(t, before.LiveTextures, after.LiveTextures)
	assert.Equal(t, before.LiveBindGroups, after.LiveBindGroups)
}

func TestLoadStateTransitionsAndLogging(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	var mu sync.Mutex
	var states []LoadState
	prof := profiler.NewProfiler()
	_, l := newTestLoader(t,
		WithLogger(zap.New(core)),
		WithProfiler(prof),
		WithStateObserver(func(s LoadState) {
			mu.Lock()
			defer mu.Unlock()
			states = append(states, s)
		}),
	)

	m, err := l.Load(context.Background(), cubeFixture(t))
	require.NoError(t, err)
	defer m.Release()

	assert.Equal(t, []LoadState{StateParsing, StateLoadingResources, StateComputePass, StateLoaded}, states)
	assert.NotEmpty(t, logs.FilterMessage("tangent pass complete").All())
	assert.NotEmpty(t, logs.FilterMessage("material loaded").All())

	var stages []string
	for _, s := range prof.Stages() {
		stages = append(stages, s.Name)
	}
	assert.ElementsMatch(t, []string{StageParse, StageMaterials, StageMeshes, StageTotal}, stages)
}

func TestLoadCancelledContext(t *testing.T) {
	device, l := newTestLoader(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m, err := l.Load(ctx, cubeFixture(t))
	assert.Nil(t, m)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, device.Stats().LiveBuffers)
}

func TestNewLoaderRejectsMismatchedComputeShader(t *testing.T) {
	src := `@group(0) @binding(0) var<storage, read_write> data: array<f32>;
@compute @workgroup_size(1)
fn main() {}
`
	s, err := shader.NewShader("bad", shader.ShaderTypeCompute, src)
	require.NoError(t, err)

	_, err = NewLoader(backend.NewSoftwareDevice(), WithComputeShader(s))
	assert.Error(t, err)
}

func TestNewLoaderCustomShaderNeedsKernel(t *testing.T) {
	src := `@group(0) @binding(0) var<storage, read_write> vertices: array<f32>;
@group(0) @binding(1) var<storage, read> indices: array<u32>;
@compute @workgroup_size(1)
fn custom() {}
`
	s, err := shader.NewShader("custom", shader.ShaderTypeCompute, src)
	require.NoError(t, err)

	_, err = NewLoader(backend.NewSoftwareDevice(), WithComputeShader(s))
	assert.ErrorIs(t, err, backend.ErrUnknownKernel)

	device := backend.NewSoftwareDevice(backend.WithKernel("custom", shader.TangentKernel))
	l, err := NewLoader(device, WithComputeShader(s))
	require.NoError(t, err)
	l.Release()
}

// quadGLTF builds a .gltf document with an embedded base64 buffer holding a textured unit quad.
func quadGLTF() string {
	var buf bytes.Buffer
	write := func(values ...float32) {
		for _, v := range values {
			_ = binary.Write(&buf, binary.LittleEndian, v)
		}
	}
	write(0, 0, 0, 1, 0, 0, 1, 1, 0, 0, 1, 0) // positions
	write(0, 0, 1, 0, 0, 1, 0, 0, 1, 0, 0, 1) // normals
	write(0, 0, 1, 0, 1, 1, 0, 1)             // uvs
	for _, i := range []uint32{0, 1, 2, 0, 2, 3} {
		_ = binary.Write(&buf, binary.LittleEndian, i)
	}
	data := base64.StdEncoding.EncodeToString(buf.Bytes())

	return fmt.Sprintf(`{
  "asset": {"version": "2.0"},
  "buffers": [{"byteLength": %d, "uri": "data:application/octet-stream;base64,%s"}],
  "bufferViews": [
    {"buffer": 0, "byteOffset": 0, "byteLength": 48},
    {"buffer": 0, "byteOffset": 48, "byteLength": 48},
    {"buffer": 0, "byteOffset": 96, "byteLength": 32},
    {"buffer": 0, "byteOffset": 128, "byteLength": 24}
  ],
  "accessors": [
    {"bufferView": 0, "componentType": 5126, "count": 4, "type": "VEC3", "min": [0, 0, 0], "max": [1, 1, 0]},
    {"bufferView": 1, "componentType": 5126, "count": 4, "type": "VEC3"},
    {"bufferView": 2, "componentType": 5126, "count": 4, "type": "VEC2"},
    {"bufferView": 3, "componentType": 5125, "count": 6, "type": "SCALAR"}
  ],
  "materials": [{"name": "paint", "pbrMetallicRoughness": {"baseColorFactor": [1, 0, 0, 1]}}],
  "meshes": [{"name": "quad", "primitives": [{
    "attributes": {"POSITION": 0, "NORMAL": 1, "TEXCOORD_0": 2},
    "indices": 3, "material": 0, "mode": 4
  }]}]
}`, buf.Len(), data)
}

func TestLoadGLTF(t *testing.T) {
	dir := writeFixture(t, map[string][]byte{"quad.gltf": []byte(quadGLTF())})
	device, l := newTestLoader(t)

	m, err := l.Load(context.Background(), filepath.Join(dir, "quad.gltf"))
	require.NoError(t, err)
	defer m.Release()

	require.Len(t, m.Meshes(), 1)
	require.Len(t, m.Materials(), 1)
	mesh := m.Meshes()[0]
	assert.Equal(t, "quad", mesh.Name())
	assert.Equal(t, uint32(6), mesh.NumElements())
	assert.Equal(t, "paint", m.Materials()[0].Name())
	assert.Equal(t, [3]float32{1, 0, 0}, m.Materials()[0].Properties().DiffuseColor)

	for _, v := range readVertices(t, device, mesh) {
		assert.InDelta(t, 1, v.Tangent[0], 1e-5)
		assert.InDelta(t, 1, v.Bitangent[1], 1e-5)
	}
}
