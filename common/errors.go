package common

import "fmt"

// AssetParseError reports a model or material description that could not be read or parsed.
type AssetParseError struct {
	// Path is the file being parsed.
	Path string
	// Line is the 1-based line number of the offending statement, 0 if not line specific.
	Line int
	// Err is the underlying cause.
	Err error
}

func (e *AssetParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("asset parse error: %s:%d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("asset parse error: %s: %v", e.Path, e.Err)
}

func (e *AssetParseError) Unwrap() error {
	return e.Err
}

// TextureLoadError reports an image that could not be read, decoded or uploaded.
type TextureLoadError struct {
	// Path is the texture source, a file path or an embedded texture identifier.
	Path string
	// Err is the underlying cause.
	Err error
}

func (e *TextureLoadError) Error() string {
	return fmt.Sprintf("texture load error: %s: %v", e.Path, e.Err)
}

func (e *TextureLoadError) Unwrap() error {
	return e.Err
}

// MalformedMeshData reports geometry arrays whose lengths or indices are inconsistent.
type MalformedMeshData struct {
	// Mesh is the name of the offending mesh.
	Mesh string
	// Reason describes the inconsistency.
	Reason string
}

func (e *MalformedMeshData) Error() string {
	return fmt.Sprintf("malformed mesh data: %s: %s", e.Mesh, e.Reason)
}
