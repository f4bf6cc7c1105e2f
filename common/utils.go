package common

import (
	"path/filepath"
	"strings"
)

// Coalesce returns the first non-zero value from the provided values, or the zero value if all are zero.
//
// Parameters:
//   - values: a variadic list of values to check for non-zero status
//
// Returns:
//   - T: the first non-zero value from the input, or the zero value if all are zero
func Coalesce[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}

// ResolvePath resolves an asset reference relative to the directory of the file that referenced it.
// Absolute references are returned cleaned but otherwise untouched. Backslash separators written by
// Windows exporters are normalized first.
//
// Parameters:
//   - dir: the directory containing the referencing file
//   - ref: the referenced file name as written in the asset
//
// Returns:
//   - string: the resolved path, or an empty string if ref is empty
func ResolvePath(dir, ref string) string {
	if ref == "" {
		return ""
	}
	ref = filepath.FromSlash(strings.ReplaceAll(ref, `\`, "/"))
	if filepath.IsAbs(ref) {
		return filepath.Clean(ref)
	}
	return filepath.Join(dir, ref)
}

// AlignTo rounds size up to the next multiple of alignment.
//
// Parameters:
//   - size: the size in bytes
//   - alignment: the required alignment, must be a power of two
//
// Returns:
//   - uint64: the aligned size
func AlignTo(size, alignment uint64) uint64 {
	return (size + alignment - 1) &^ (alignment - 1)
}
