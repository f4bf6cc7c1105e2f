// package common contains common types that are used throughout this module. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types shared between the import backends, the texture loader and the GPU layer.
package common

import (
	"fmt"
	"os"

	"github.com/cogentcore/webgpu/wgpu"
)

// TextureStagingData holds RGBA pixel data for a texture pending GPU upload.
type TextureStagingData struct {
	// Pixels is the byte slice representing the actual pixel data for the texture. It should be in RGBA format, with 4 bytes per pixel.
	Pixels []byte
	// Width is the width of the texture in pixels.
	Width uint32
	// Height is the height of the texture in pixels.
	Height uint32
}

// SamplerStagingData holds the configuration for a sampler pending GPU creation.
// Zero values fall back to linear filtering with repeat addressing.
type SamplerStagingData struct {
	// AddressModeU, AddressModeV, AddressModeW specify the addressing mode for texture coordinates outside the [0, 1] range in each dimension (U, V, W).
	AddressModeU, AddressModeV, AddressModeW wgpu.AddressMode
	// MagFilter and MinFilter specify the filtering mode for magnification and minification.
	MagFilter, MinFilter wgpu.FilterMode
	// MipmapFilter specifies the filtering mode for mipmap level selection.
	MipmapFilter wgpu.MipmapFilterMode
	// LodMinClamp and LodMaxClamp specify the minimum and maximum level of detail (LOD) for mipmapping.
	LodMinClamp, LodMaxClamp float32
	// Compare specifies the comparison function for comparison samplers.
	Compare wgpu.CompareFunction
	// MaxAnisotropy specifies the maximum anisotropy level for anisotropic filtering.
	MaxAnisotropy uint16
}

// ImportedMaterial represents material properties read from a model's material description.
type ImportedMaterial struct {
	// Name is the material identifier.
	Name string

	// DiffuseColor is the Kd / base color factor (RGB).
	DiffuseColor [3]float32

	// SpecularColor is the Ks factor (RGB).
	SpecularColor [3]float32

	// Shininess is the Ns specular exponent.
	Shininess float32

	// Dissolve is the d opacity factor (1.0 = opaque).
	Dissolve float32

	// DiffuseTexture references the diffuse/albedo texture, nil if the material declares none.
	DiffuseTexture *ImportedTexture

	// NormalTexture references the normal map texture, nil if the material declares none.
	NormalTexture *ImportedTexture
}

// ImportedTexture represents a texture referenced by a model file.
// For embedded textures (GLB), the Data field contains raw image bytes.
// For external textures, the Path field contains the resolved file path.
type ImportedTexture struct {
	// Name is an identifier for this texture (e.g., "diffuse", "normal").
	Name string

	// Path is the resolved file path for external textures (empty for embedded).
	Path string

	// Data contains raw image bytes for embedded textures.
	Data []byte

	// MimeType indicates the image format if the source declared one (e.g., "image/png").
	MimeType string

	// SamplerData holds GPU sampler parameters extracted from the model file.
	// When non-nil, these values override the loader's default sampler settings.
	SamplerData *SamplerStagingData
}

// Source returns a printable identifier for the texture, the path for external textures
// or the name for embedded ones.
//
// Returns:
//   - string: the identifier
func (t *ImportedTexture) Source() string {
	if t == nil {
		return ""
	}
	if t.Path != "" {
		return t.Path
	}
	return "embedded:" + t.Name
}

// Bytes returns the encoded image bytes, reading them from disk for external textures.
//
// Returns:
//   - []byte: the encoded image bytes
//   - error: error if the texture has no source or the file cannot be read
func (t *ImportedTexture) Bytes() ([]byte, error) {
	if t == nil {
		return nil, fmt.Errorf("texture is nil")
	}
	if len(t.Data) > 0 {
		return t.Data, nil
	}
	if t.Path == "" {
		return nil, fmt.Errorf("texture has neither data nor path")
	}
	data, err := os.ReadFile(t.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read texture file %s: %w", t.Path, err)
	}
	return data, nil
}

// ImportedMesh holds the raw geometry of one sub-mesh as flat attribute arrays.
// Positions and Normals hold 3 floats per vertex, TexCoords holds 2 floats per vertex.
type ImportedMesh struct {
	// Name is the sub-mesh identifier (object or group name).
	Name string

	// Positions holds the flat xyz vertex positions.
	Positions []float32

	// TexCoords holds the flat uv texture coordinates.
	TexCoords []float32

	// Normals holds the flat xyz vertex normals.
	Normals []float32

	// Indices holds the triangle list indices into the vertex arrays.
	Indices []uint32

	// MaterialIndex is the position of the mesh's material in the owning model, or -1 if none was declared.
	MaterialIndex int
}

// ImportedModel is the CPU-side result of parsing a model file, prior to any GPU upload.
type ImportedModel struct {
	// Name is the model identifier, derived from the file name.
	Name string

	// Path is the path the model was parsed from.
	Path string

	// Meshes holds the sub-meshes in declaration order.
	Meshes []ImportedMesh

	// Materials holds the materials in declaration order.
	Materials []ImportedMaterial

	// Dependencies lists every additional file the model was assembled from (material libraries, textures).
	Dependencies []string
}
