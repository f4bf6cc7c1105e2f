package shader

import (
	"fmt"
	"os"
)

// ShaderType identifies whether a shader is a render shader or a compute shader.
type ShaderType int

const (
	// ShaderTypeCompute indicates a shader containing a @compute entry point.
	ShaderTypeCompute ShaderType = iota

	// ShaderTypeVertex is the vertex shader type, used for vertex processing in render pipelines.
	ShaderTypeVertex

	// ShaderTypeFragment is the fragment shader type, used for fragment processing in pair with a vertex shader.
	ShaderTypeFragment
)

// shader is the implementation of the Shader interface.
type shader struct {
	key           string
	source        string
	shaderType    ShaderType
	entryPoint    string
	workGroupSize [3]uint32
	bindings      []Binding
}

// Shader defines the interface for a loaded WGSL shader. It exposes the shader's unique key, source
// code, entry point, workgroup size and the resource bindings it declares.
type Shader interface {
	// Key retrieves the unique identifier for this shader, used for caching, labels and lookups.
	//
	// Returns:
	//   - string: the shader's unique key
	Key() string

	// Source retrieves the WGSL shader source code.
	//
	// Returns:
	//   - string: the WGSL source code of the shader
	Source() string

	// ShaderType returns the type of the shader (vertex, fragment, or compute).
	//
	// Returns:
	//   - ShaderType: ShaderTypeVertex, ShaderTypeFragment, or ShaderTypeCompute
	ShaderType() ShaderType

	// EntryPoint returns the entry point name for this shader.
	//
	// Returns:
	//   - string: the entry point name (e.g. "main")
	EntryPoint() string

	// WorkgroupSize returns the workgroup size dimensions for compute shaders.
	// Returns [0, 0, 0] for non-compute shaders and [1, 1, 1] as the default when
	// @workgroup_size is not specified.
	//
	// Returns:
	//   - [3]uint32: the workgroup size as [x, y, z]
	WorkgroupSize() [3]uint32

	// Bindings returns the @group/@binding resource declarations found in the source, sorted by group then binding.
	//
	// Returns:
	//   - []Binding: the declared bindings
	Bindings() []Binding
}

var _ Shader = &shader{}

// NewShader creates a new Shader from WGSL source. The entry point and workgroup size are parsed from the
// source unless overridden with options.
//
// Parameters:
//   - key: a unique identifier for the shader
//   - shaderType: the type of shader (vertex, fragment or compute)
//   - source: the WGSL source code
//   - options: a variadic list of ShaderBuilderOption functions
//
// Returns:
//   - Shader: the parsed shader
//   - error: an error if the source is empty or declares no entry point of the given type
func NewShader(key string, shaderType ShaderType, source string, options ...ShaderBuilderOption) (Shader, error) {
	if source == "" {
		return nil, fmt.Errorf("shader %s: empty source", key)
	}
	s := &shader{
		key:        key,
		source:     source,
		shaderType: shaderType,
		entryPoint: parseEntryPoint(source, shaderType),
		bindings:   parseBindings(source),
	}
	if shaderType == ShaderTypeCompute {
		s.workGroupSize = parseWorkgroupSize(source)
	}
	for _, opt := range options {
		opt(s)
	}
	if s.entryPoint == "" {
		return nil, fmt.Errorf("shader %s: no entry point found", key)
	}
	return s, nil
}

// LoadShader reads WGSL source from disk and creates a Shader from it.
//
// Parameters:
//   - key: a unique identifier for the shader
//   - shaderType: the type of shader
//   - path: the file path to read WGSL source from
//   - options: a variadic list of ShaderBuilderOption functions
//
// Returns:
//   - Shader: the parsed shader
//   - error: an error if the file cannot be read or the source is invalid
func LoadShader(key string, shaderType ShaderType, path string, options ...ShaderBuilderOption) (Shader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("shader %s: failed to read source file %q: %w", key, path, err)
	}
	return NewShader(key, shaderType, string(data), options...)
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) ShaderType() ShaderType {
	return s.shaderType
}

func (s *shader) EntryPoint() string {
	return s.entryPoint
}

func (s *shader) WorkgroupSize() [3]uint32 {
	return s.workGroupSize
}

func (s *shader) Bindings() []Binding {
	return s.bindings
}
