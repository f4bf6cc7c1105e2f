package loader

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-models/common"
)

// objVertexKey identifies one unique (position, uv, normal) combination inside a segment.
// Absent uv or normal references are stored as -1.
type objVertexKey struct {
	v, vt, vn int
}

// objSegment accumulates the geometry of one output mesh.
type objSegment struct {
	name     string
	explicit bool
	faces    int
	vertices map[objVertexKey]uint32
	mesh     common.ImportedMesh
}

// objParser holds the per-file state of an OBJ decode.
type objParser struct {
	path string
	dir  string
	line int

	positions [][3]float32
	texCoords [][2]float32
	normals   [][3]float32

	materials     []common.ImportedMaterial
	materialIndex map[string]int
	currentMat    int
	dependencies  []string

	current  *objSegment
	segments []*objSegment
}

func newObjParser(path string) *objParser {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	p := &objParser{
		path:          path,
		dir:           filepath.Dir(path),
		materialIndex: make(map[string]int),
		currentMat:    -1,
	}
	p.current = p.newSegment(name, false)
	return p
}

func (p *objParser) newSegment(name string, explicit bool) *objSegment {
	return &objSegment{
		name:     name,
		explicit: explicit,
		vertices: make(map[objVertexKey]uint32),
		mesh: common.ImportedMesh{
			Name:          name,
			MaterialIndex: p.currentMat,
		},
	}
}

// flush closes the current segment. Segments without faces are kept only when they were declared with "o".
func (p *objParser) flush() {
	if p.current == nil {
		return
	}
	if p.current.faces > 0 || p.current.explicit {
		p.segments = append(p.segments, p.current)
	}
	p.current = nil
}

func (p *objParser) errorf(format string, args ...any) error {
	return &common.AssetParseError{Path: p.path, Line: p.line, Err: fmt.Errorf(format, args...)}
}

// parse decodes an OBJ stream line by line into an ImportedModel.
func (p *objParser) parse(r io.Reader) (*common.ImportedModel, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		p.line++
		if err := p.parseLine(scanner.Text()); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &common.AssetParseError{Path: p.path, Err: err}
	}
	p.flush()

	out := &common.ImportedModel{
		Name:         strings.TrimSuffix(filepath.Base(p.path), filepath.Ext(p.path)),
		Path:         p.path,
		Meshes:       make([]common.ImportedMesh, len(p.segments)),
		Materials:    p.materials,
		Dependencies: p.dependencies,
	}
	for i, s := range p.segments {
		out.Meshes[i] = s.mesh
	}
	return out, nil
}

func (p *objParser) parseLine(line string) error {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	ltype, args := fields[0], fields[1:]
	switch ltype {
	case "mtllib":
		return p.parseMtllib(line, args)
	case "o":
		return p.parseObject(args)
	case "g":
		return p.parseGroup(args)
	case "v":
		v, err := p.parseFloats(ltype, args, 3)
		if err != nil {
			return err
		}
		p.positions = append(p.positions, [3]float32{v[0], v[1], v[2]})
	case "vn":
		v, err := p.parseFloats(ltype, args, 3)
		if err != nil {
			return err
		}
		p.normals = append(p.normals, [3]float32{v[0], v[1], v[2]})
	case "vt":
		v, err := p.parseFloats(ltype, args, 2)
		if err != nil {
			return err
		}
		p.texCoords = append(p.texCoords, [2]float32{v[0], v[1]})
	case "f":
		return p.parseFace(args)
	case "usemtl":
		return p.parseUsemtl(args)
	}
	// s, l, p and vendor extensions carry nothing this importer uses
	return nil
}

func (p *objParser) parseFloats(ltype string, args []string, n int) ([]float32, error) {
	if len(args) < n {
		return nil, p.errorf("%s needs %d values, got %d", ltype, n, len(args))
	}
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		f, err := strconv.ParseFloat(args[i], 32)
		if err != nil {
			return nil, p.errorf("%s value %q: %w", ltype, args[i], err)
		}
		out[i] = float32(f)
	}
	return out, nil
}

func (p *objParser) parseMtllib(line string, args []string) error {
	if len(args) == 0 {
		return p.errorf("mtllib without a file name")
	}
	// file names may contain spaces, so take the raw remainder of the line
	ref := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "mtllib"))
	libPath := common.ResolvePath(p.dir, ref)

	mats, deps, err := parseMtlFile(libPath)
	if err != nil {
		return err
	}
	p.dependencies = append(p.dependencies, libPath)
	p.dependencies = append(p.dependencies, deps...)
	for _, m := range mats {
		if _, dup := p.materialIndex[m.Name]; dup {
			continue
		}
		p.materialIndex[m.Name] = len(p.materials)
		p.materials = append(p.materials, m)
	}
	return nil
}

func (p *objParser) parseObject(args []string) error {
	p.flush()
	p.current = p.newSegment(p.segmentName(args), true)
	return nil
}

func (p *objParser) parseGroup(args []string) error {
	name := p.segmentName(args)
	if p.current != nil && p.current.faces == 0 {
		// a group directly after its object names the same mesh
		p.current.name = name
		p.current.mesh.Name = name
		return nil
	}
	p.flush()
	p.current = p.newSegment(name, false)
	return nil
}

func (p *objParser) segmentName(args []string) string {
	if len(args) == 0 {
		return fmt.Sprintf("unnamed%d", p.line)
	}
	return strings.Join(args, " ")
}

func (p *objParser) parseUsemtl(args []string) error {
	if len(args) == 0 {
		return p.errorf("usemtl without a material name")
	}
	name := strings.Join(args, " ")
	idx, ok := p.materialIndex[name]
	if !ok {
		return p.errorf("usemtl references unknown material %q", name)
	}
	p.currentMat = idx

	if p.current == nil {
		p.current = p.newSegment(name, false)
		return nil
	}
	if p.current.faces == 0 {
		p.current.mesh.MaterialIndex = idx
		return nil
	}
	// a material change inside a mesh splits it, each mesh draws with one material
	base := p.current.name
	p.flush()
	p.current = p.newSegment(base+"_"+name, false)
	return nil
}

func (p *objParser) parseFace(args []string) error {
	if len(args) < 3 {
		return p.errorf("face with %d vertices, need at least 3", len(args))
	}
	if p.current == nil {
		p.current = p.newSegment(fmt.Sprintf("unnamed%d", p.line), false)
	}

	corners := make([]uint32, len(args))
	for i, field := range args {
		key, err := p.parseCorner(field)
		if err != nil {
			return err
		}
		corners[i] = p.current.vertex(key, p)
	}

	// fan triangulation around the first corner
	for i := 1; i+1 < len(corners); i++ {
		p.current.mesh.Indices = append(p.current.mesh.Indices, corners[0], corners[i], corners[i+1])
	}
	p.current.faces++
	return nil
}

// parseCorner decodes a v, v/vt, v//vn or v/vt/vn face reference into zero based indices.
func (p *objParser) parseCorner(field string) (objVertexKey, error) {
	parts := strings.Split(field, "/")
	if len(parts) > 3 {
		return objVertexKey{}, p.errorf("face vertex %q has too many parts", field)
	}

	key := objVertexKey{v: -1, vt: -1, vn: -1}
	var err error
	if key.v, err = p.resolveIndex(parts[0], len(p.positions), "position"); err != nil {
		return key, err
	}
	if len(parts) > 1 && parts[1] != "" {
		if key.vt, err = p.resolveIndex(parts[1], len(p.texCoords), "uv"); err != nil {
			return key, err
		}
	}
	if len(parts) > 2 && parts[2] != "" {
		if key.vn, err = p.resolveIndex(parts[2], len(p.normals), "normal"); err != nil {
			return key, err
		}
	}
	return key, nil
}

// resolveIndex converts a 1-based or negative (relative to the end) OBJ index into a zero based one.
func (p *objParser) resolveIndex(s string, count int, kind string) (int, error) {
	val, err := strconv.Atoi(s)
	if err != nil {
		return 0, p.errorf("%s index %q: %w", kind, s, err)
	}

	var idx int
	switch {
	case val > 0:
		idx = val - 1
	case val < 0:
		idx = count + val
	default:
		return 0, p.errorf("%s index value equal to 0", kind)
	}
	if idx < 0 || idx >= count {
		return 0, p.errorf("%s index %d out of range, %d declared", kind, val, count)
	}
	return idx, nil
}

// vertex returns the mesh-local index of key, appending its attributes the first time it is seen.
func (s *objSegment) vertex(key objVertexKey, p *objParser) uint32 {
	if idx, ok := s.vertices[key]; ok {
		return idx
	}
	idx := uint32(len(s.mesh.Positions) / 3)
	s.vertices[key] = idx

	pos := p.positions[key.v]
	s.mesh.Positions = append(s.mesh.Positions, pos[0], pos[1], pos[2])

	var uv [2]float32
	if key.vt >= 0 {
		uv = p.texCoords[key.vt]
	}
	s.mesh.TexCoords = append(s.mesh.TexCoords, uv[0], uv[1])

	var n [3]float32
	if key.vn >= 0 {
		n = p.normals[key.vn]
	}
	s.mesh.Normals = append(s.mesh.Normals, n[0], n[1], n[2])
	return idx
}
