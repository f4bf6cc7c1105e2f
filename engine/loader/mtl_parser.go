package loader

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-models/common"
)

// mtlParser holds the per-file state of a material library decode.
type mtlParser struct {
	path    string
	dir     string
	line    int
	current *common.ImportedMaterial
	out     []common.ImportedMaterial
	deps    []string
}

// parseMtlFile reads a material library and returns its materials in declaration order together with the
// texture files they reference.
//
// Parameters:
//   - path: the resolved material library path
//
// Returns:
//   - []common.ImportedMaterial: the declared materials
//   - []string: the referenced texture paths
//   - error: a *common.AssetParseError if the library is missing or malformed
func parseMtlFile(path string) ([]common.ImportedMaterial, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, &common.AssetParseError{Path: path, Err: fmt.Errorf("failed to open material library: %w", err)}
	}
	defer f.Close()

	p := &mtlParser{path: path, dir: filepath.Dir(path)}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		p.line++
		if err := p.parseLine(scanner.Text()); err != nil {
			return nil, nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, &common.AssetParseError{Path: path, Err: err}
	}
	p.finish()
	return p.out, p.deps, nil
}

func (p *mtlParser) errorf(format string, args ...any) error {
	return &common.AssetParseError{Path: p.path, Line: p.line, Err: fmt.Errorf(format, args...)}
}

func (p *mtlParser) finish() {
	if p.current != nil {
		p.out = append(p.out, *p.current)
		p.current = nil
	}
}

func (p *mtlParser) parseLine(line string) error {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	ltype, args := fields[0], fields[1:]
	if ltype == "newmtl" {
		if len(args) == 0 {
			return p.errorf("newmtl without a material name")
		}
		p.finish()
		p.current = &common.ImportedMaterial{
			Name:          strings.Join(args, " "),
			DiffuseColor:  [3]float32{1, 1, 1},
			SpecularColor: [3]float32{0, 0, 0},
			Dissolve:      1,
		}
		return nil
	}
	if p.current == nil {
		return p.errorf("%s before any newmtl", ltype)
	}

	switch ltype {
	case "Kd":
		return p.parseColor(ltype, args, &p.current.DiffuseColor)
	case "Ks":
		return p.parseColor(ltype, args, &p.current.SpecularColor)
	case "Ns":
		v, err := p.parseScalar(ltype, args)
		if err != nil {
			return err
		}
		p.current.Shininess = v
	case "d":
		v, err := p.parseScalar(ltype, args)
		if err != nil {
			return err
		}
		p.current.Dissolve = v
	case "Tr":
		v, err := p.parseScalar(ltype, args)
		if err != nil {
			return err
		}
		p.current.Dissolve = 1 - v
	case "map_Kd":
		tex, err := p.parseMap(ltype, args, "diffuse")
		if err != nil {
			return err
		}
		p.current.DiffuseTexture = tex
	case "map_Bump", "map_bump", "bump", "norm":
		tex, err := p.parseMap(ltype, args, "normal")
		if err != nil {
			return err
		}
		p.current.NormalTexture = tex
	}
	return nil
}

func (p *mtlParser) parseScalar(ltype string, args []string) (float32, error) {
	if len(args) == 0 {
		return 0, p.errorf("%s without a value", ltype)
	}
	v, err := strconv.ParseFloat(args[0], 32)
	if err != nil {
		return 0, p.errorf("%s value %q: %w", ltype, args[0], err)
	}
	return float32(v), nil
}

func (p *mtlParser) parseColor(ltype string, args []string, dst *[3]float32) error {
	if len(args) < 3 {
		return p.errorf("%s needs 3 values, got %d", ltype, len(args))
	}
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseFloat(args[i], 32)
		if err != nil {
			return p.errorf("%s value %q: %w", ltype, args[i], err)
		}
		dst[i] = float32(v)
	}
	return nil
}

// parseMap resolves a texture map statement. Options such as -s, -o or -bm precede the file name,
// which is always the last field.
func (p *mtlParser) parseMap(ltype string, args []string, kind string) (*common.ImportedTexture, error) {
	if len(args) == 0 {
		return nil, p.errorf("%s without a file name", ltype)
	}
	texPath := common.ResolvePath(p.dir, args[len(args)-1])
	p.deps = append(p.deps, texPath)
	return &common.ImportedTexture{
		Name: p.current.Name + "_" + kind,
		Path: texPath,
	}, nil
}
