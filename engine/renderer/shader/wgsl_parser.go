package shader

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// Binding is a single @group/@binding resource declaration parsed from WGSL source.
type Binding struct {
	Group   uint32
	Binding uint32
	Name    string
	// Type is the layout binding type the declaration requires. Only buffer declarations are classified;
	// handle types (textures, samplers) report BufferBindingTypeUndefined.
	Type wgpu.BufferBindingType
}

var (
	// vertexEntryRegex matches @vertex functions and captures the entry point name
	vertexEntryRegex = regexp.MustCompile(`(?s)@vertex\b.*?\bfn\s+(\w+)`)

	// fragmentEntryRegex matches @fragment functions and captures the entry point name
	fragmentEntryRegex = regexp.MustCompile(`(?s)@fragment\b.*?\bfn\s+(\w+)`)

	// computeEntryRegex matches @compute functions and captures the entry point name
	computeEntryRegex = regexp.MustCompile(`(?s)@compute\b.*?\bfn\s+(\w+)`)

	// workgroupSizeRegex captures 1-3 integer dimensions from @workgroup_size(x[, y[, z]])
	workgroupSizeRegex = regexp.MustCompile(`@workgroup_size\(\s*(\d+)\s*(?:,\s*(\d+)\s*(?:,\s*(\d+)\s*)?)?\)`)

	// bindGroupDeclRegex captures group, binding, optional address space and variable name
	// from declarations like: @group(0) @binding(1) var<storage, read> indices: array<u32>;
	bindGroupDeclRegex = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:`)
)

// parseEntryPoint finds the first entry point of the given stage.
//
// Parameters:
//   - source: the raw WGSL source code string
//   - shaderType: the stage to look for
//
// Returns:
//   - string: the entry point name, or an empty string if none is declared
func parseEntryPoint(source string, shaderType ShaderType) string {
	cleaned := stripComments(source)

	var re *regexp.Regexp
	switch shaderType {
	case ShaderTypeVertex:
		re = vertexEntryRegex
	case ShaderTypeFragment:
		re = fragmentEntryRegex
	case ShaderTypeCompute:
		re = computeEntryRegex
	default:
		return ""
	}

	if match := re.FindStringSubmatch(cleaned); match != nil {
		return match[1]
	}
	return ""
}

// parseWorkgroupSize extracts the @workgroup_size(x, y, z) dimensions from WGSL source.
// Omitted dimensions default to 1.
// Returns [1, 1, 1] if no @workgroup_size annotation is found.
//
// Parameters:
//   - source: the raw WGSL source code string
//
// Returns:
//   - [3]uint32: the workgroup size as [x, y, z]
func parseWorkgroupSize(source string) [3]uint32 {
	result := [3]uint32{1, 1, 1}

	match := workgroupSizeRegex.FindStringSubmatch(stripComments(source))
	if match == nil {
		return result
	}
	for i := 0; i < 3; i++ {
		if match[i+1] == "" {
			continue
		}
		if v, err := strconv.ParseUint(match[i+1], 10, 32); err == nil {
			result[i] = uint32(v)
		}
	}
	return result
}

// parseBindings extracts every resource declaration, sorted by group then binding.
//
// Parameters:
//   - source: the raw WGSL source code string
//
// Returns:
//   - []Binding: the declarations
func parseBindings(source string) []Binding {
	var out []Binding
	for _, match := range bindGroupDeclRegex.FindAllStringSubmatch(stripComments(source), -1) {
		group, _ := strconv.ParseUint(match[1], 10, 32)
		binding, _ := strconv.ParseUint(match[2], 10, 32)

		b := Binding{Group: uint32(group), Binding: uint32(binding), Name: match[4]}
		addressSpace := strings.ReplaceAll(match[3], " ", "")
		switch {
		case addressSpace == "uniform":
			b.Type = wgpu.BufferBindingTypeUniform
		case strings.HasPrefix(addressSpace, "storage"):
			if strings.Contains(addressSpace, "read_write") {
				b.Type = wgpu.BufferBindingTypeStorage
			} else {
				b.Type = wgpu.BufferBindingTypeReadOnlyStorage
			}
		}
		out = append(out, b)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Group != out[j].Group {
			return out[i].Group < out[j].Group
		}
		return out[i].Binding < out[j].Binding
	})
	return out
}

// stripComments removes line comments and block comments from WGSL source.
func stripComments(source string) string {
	var sb strings.Builder
	depth := 0
	for i := 0; i < len(source); i++ {
		switch {
		case depth == 0 && strings.HasPrefix(source[i:], "//"):
			for i < len(source) && source[i] != '\n' {
				i++
			}
			if i < len(source) {
				sb.WriteByte('\n')
			}
		case strings.HasPrefix(source[i:], "/*"):
			depth++
			i++
		case depth > 0 && strings.HasPrefix(source[i:], "*/"):
			depth--
			i++
		case depth == 0:
			sb.WriteByte(source[i])
		}
	}
	return sb.String()
}

// ValidateBindings checks that every buffer declared by the shader in the given group has a layout entry of the
// same binding type, and that every layout entry is declared by the shader.
//
// Parameters:
//   - s: the shader to check
//   - group: the bind group index to check
//   - entries: the layout entries the shader will be bound with
//
// Returns:
//   - error: an error describing the first mismatch, or nil
func ValidateBindings(s Shader, group uint32, entries []wgpu.BindGroupLayoutEntry) error {
	declared := make(map[uint32]Binding)
	for _, b := range s.Bindings() {
		if b.Group == group {
			declared[b.Binding] = b
		}
	}
	for _, le := range entries {
		b, ok := declared[le.Binding]
		if !ok {
			return fmt.Errorf("shader %s does not declare @group(%d) @binding(%d)", s.Key(), group, le.Binding)
		}
		if b.Type != le.Buffer.Type {
			return fmt.Errorf("shader %s binding %d (%s) does not match the layout buffer type", s.Key(), le.Binding, b.Name)
		}
		delete(declared, le.Binding)
	}
	for binding, b := range declared {
		return fmt.Errorf("shader %s declares @group(%d) @binding(%d) %s which the layout does not provide", s.Key(), group, binding, b.Name)
	}
	return nil
}
