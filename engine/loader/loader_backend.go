package loader

import (
	"github.com/Carmen-Shannon/oxy-models/common"
)

// loaderBackend defines the generic interface for importing model files into CPU-side data.
// Concrete implementations (objLoaderBackend, gltfLoaderBackend) handle format-specific details.
type loaderBackend interface {
	// Extensions lists the lower-case file extensions this backend imports, including the dot.
	//
	// Returns:
	//   - []string: the supported extensions
	Extensions() []string

	// Import parses the model file at path together with every file it references.
	// Meshes and materials are returned in declaration order.
	//
	// Parameters:
	//   - path: the file path to load
	//
	// Returns:
	//   - *common.ImportedModel: the imported model data
	//   - error: a *common.AssetParseError if the file or a referenced material description is missing or malformed
	Import(path string) (*common.ImportedModel, error)
}
