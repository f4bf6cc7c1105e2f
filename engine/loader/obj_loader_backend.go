package loader

import (
	"fmt"
	"os"

	"github.com/Carmen-Shannon/oxy-models/common"
)

// objLoaderBackend imports Wavefront OBJ files and their MTL material libraries.
type objLoaderBackend struct{}

var _ loaderBackend = &objLoaderBackend{}

// newOBJLoaderBackend creates a new OBJ loader backend.
//
// Returns:
//   - *objLoaderBackend: a new OBJ loader backend instance
func newOBJLoaderBackend() *objLoaderBackend {
	return &objLoaderBackend{}
}

func (b *objLoaderBackend) Extensions() []string {
	return []string{".obj"}
}

func (b *objLoaderBackend) Import(path string) (*common.ImportedModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &common.AssetParseError{Path: path, Err: fmt.Errorf("failed to open model: %w", err)}
	}
	defer f.Close()

	return newObjParser(path).parse(f)
}
