package material

import (
	"github.com/Carmen-Shannon/oxy-models/common"
	"github.com/Carmen-Shannon/oxy-models/engine/renderer/texture"
)

// MaterialBuilderOption is a function that configures a material instance during construction.
type MaterialBuilderOption func(*material)

// WithName is an option builder that sets the name of the material.
//
// Parameters:
//   - name: the identifier for the material
//
// Returns:
//   - MaterialBuilderOption: a function that applies the name option to a material
func WithName(name string) MaterialBuilderOption {
	return func(m *material) {
		m.name = name
	}
}

// WithProperties is an option builder that records the imported surface properties. Texture references are dropped
// since the material holds the created textures.
//
// Parameters:
//   - props: the imported material description
//
// Returns:
//   - MaterialBuilderOption: a function that applies the properties to a material
func WithProperties(props common.ImportedMaterial) MaterialBuilderOption {
	return func(m *material) {
		props.DiffuseTexture = nil
		props.NormalTexture = nil
		m.properties = props
		if m.name == "" {
			m.name = props.Name
		}
	}
}

// WithDiffuseTexture is an option builder that sets the diffuse/albedo texture.
//
// Parameters:
//   - tex: the sRGB diffuse texture
//
// Returns:
//   - MaterialBuilderOption: a function that applies the diffuse texture option to a material
func WithDiffuseTexture(tex texture.Texture) MaterialBuilderOption {
	return func(m *material) {
		m.diffuseTexture = tex
	}
}

// WithNormalTexture is an option builder that sets the normal map texture.
//
// Parameters:
//   - tex: the linear normal map texture
//
// Returns:
//   - MaterialBuilderOption: a function that applies the normal texture option to a material
func WithNormalTexture(tex texture.Texture) MaterialBuilderOption {
	return func(m *material) {
		m.normalTexture = tex
	}
}
