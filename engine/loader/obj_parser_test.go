package loader

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-models/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseOBJString(t *testing.T, dir, src string) (*common.ImportedModel, error) {
	t.Helper()
	return newObjParser(filepath.Join(dir, "test.obj")).parse(strings.NewReader(src))
}

func TestOBJTriangulatesAndDeduplicates(t *testing.T) {
	src := `
# quad with shared corners
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 0 1
f 1/1/1 2/2/1 3/3/1 4/4/1
`
	m, err := parseOBJString(t, t.TempDir(), src)
	require.NoError(t, err)
	require.Len(t, m.Meshes, 1)

	mesh := m.Meshes[0]
	assert.Equal(t, "test", mesh.Name)
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, mesh.Indices)
	assert.Len(t, mesh.Positions, 12)
	assert.Len(t, mesh.TexCoords, 8)
	assert.Len(t, mesh.Normals, 12)
	assert.Equal(t, -1, mesh.MaterialIndex)
	assert.Equal(t, []float32{1, 1}, mesh.TexCoords[4:6])
}

func TestOBJNegativeIndicesAndMissingAttributes(t *testing.T) {
	src := `
v 0 0 0
v 1 0 0
v 0 1 0
f -3 -2 -1
`
	m, err := parseOBJString(t, t.TempDir(), src)
	require.NoError(t, err)
	require.Len(t, m.Meshes, 1)
	assert.Equal(t, []uint32{0, 1, 2}, m.Meshes[0].Indices)
	assert.Equal(t, make([]float32, 6), m.Meshes[0].TexCoords)
	assert.Equal(t, make([]float32, 9), m.Meshes[0].Normals)
	assert.Equal(t, []float32{0, 1, 0}, m.Meshes[0].Positions[6:9])
}

func TestOBJSegments(t *testing.T) {
	dir := t.TempDir()
	mtl := "newmtl red\nKd 1 0 0\nnewmtl blue\nKd 0 0 1\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "colors.mtl"), []byte(mtl), 0o644))

	src := `
mtllib colors.mtl
v 0 0 0
v 1 0 0
v 0 1 0
o empty
o first
g first_group
usemtl red
f 1 2 3
usemtl blue
f 1 3 2
g
g second
f 3 2 1
`
	m, err := parseOBJString(t, dir, src)
	require.NoError(t, err)

	names := make([]string, len(m.Meshes))
	for i, mesh := range m.Meshes {
		names[i] = mesh.Name
	}
	assert.Equal(t, []string{"empty", "first_group", "first_group_blue", "second"}, names)
	assert.Empty(t, m.Meshes[0].Indices)
	assert.Equal(t, 0, m.Meshes[1].MaterialIndex)
	assert.Equal(t, 1, m.Meshes[2].MaterialIndex)
	assert.Equal(t, 1, m.Meshes[3].MaterialIndex)

	require.Len(t, m.Materials, 2)
	assert.Equal(t, [3]float32{0, 0, 1}, m.Materials[1].DiffuseColor)
	assert.Equal(t, []string{filepath.Join(dir, "colors.mtl")}, m.Dependencies)
}

func TestOBJErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
	}{
		{name: "zero index", src: "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 0 1 2\n", line: 4},
		{name: "out of range", src: "v 0 0 0\nf 1 2 3\n", line: 2},
		{name: "too few corners", src: "v 0 0 0\nv 1 0 0\nf 1 2\n", line: 3},
		{name: "bad float", src: "v 0 zero 0\n", line: 1},
		{name: "short vertex", src: "v 0 0\n", line: 1},
		{name: "unknown material", src: "usemtl nothing\n", line: 1},
		{name: "bad index syntax", src: "v 0 0 0\nf a b c\n", line: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseOBJString(t, t.TempDir(), tt.src)
			var parseErr *common.AssetParseError
			require.True(t, errors.As(err, &parseErr), "got %v", err)
			assert.Equal(t, tt.line, parseErr.Line)
		})
	}
}

func TestOBJMissingMaterialLibrary(t *testing.T) {
	_, err := parseOBJString(t, t.TempDir(), "mtllib missing.mtl\n")
	var parseErr *common.AssetParseError
	require.True(t, errors.As(err, &parseErr))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestMTLParsesMapsAndFactors(t *testing.T) {
	dir := t.TempDir()
	src := `
newmtl brick
Kd 0.5 0.25 0.125
Ks 1 1 1
Ns 32
Tr 0.25
map_Kd -s 1 1 1 textures/brick.png
map_Bump -bm 0.5 brick_n.png
newmtl plain
d 0.5
`
	path := filepath.Join(dir, "brick.mtl")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	mats, deps, err := parseMtlFile(path)
	require.NoError(t, err)
	require.Len(t, mats, 2)

	brick := mats[0]
	assert.Equal(t, "brick", brick.Name)
	assert.Equal(t, [3]float32{0.5, 0.25, 0.125}, brick.DiffuseColor)
	assert.Equal(t, [3]float32{1, 1, 1}, brick.SpecularColor)
	assert.Equal(t, float32(32), brick.Shininess)
	assert.InDelta(t, 0.75, brick.Dissolve, 1e-6)
	require.NotNil(t, brick.DiffuseTexture)
	assert.Equal(t, filepath.Join(dir, "textures", "brick.png"), brick.DiffuseTexture.Path)
	require.NotNil(t, brick.NormalTexture)
	assert.Equal(t, filepath.Join(dir, "brick_n.png"), brick.NormalTexture.Path)

	plain := mats[1]
	assert.Nil(t, plain.DiffuseTexture)
	assert.Nil(t, plain.NormalTexture)
	assert.Equal(t, float32(0.5), plain.Dissolve)
	assert.Equal(t, [3]float32{1, 1, 1}, plain.DiffuseColor)

	assert.Equal(t, []string{brick.DiffuseTexture.Path, brick.NormalTexture.Path}, deps)
}

func TestMTLStatementBeforeNewmtl(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.mtl")
	require.NoError(t, os.WriteFile(path, []byte("Kd 1 1 1\n"), 0o644))

	_, _, err := parseMtlFile(path)
	var parseErr *common.AssetParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, 1, parseErr.Line)
}
