package bind_group_provider

import "github.com/cogentcore/webgpu/wgpu"

// BinderBuilderOption is a functional option used to configure a Binder during construction.
type BinderBuilderOption func(*binder)

// WithBinderLabel sets the debug label of the Binder's layout.
//
// Parameters:
//   - label: the debug label
//
// Returns:
//   - BinderBuilderOption: a function that sets the label
func WithBinderLabel(label string) BinderBuilderOption {
	return func(b *binder) {
		b.label = label
	}
}

// WithLayoutEntries replaces the default storage layout entries.
//
// Parameters:
//   - entries: the layout entries to use
//
// Returns:
//   - BinderBuilderOption: a function that sets the layout entries
func WithLayoutEntries(entries []wgpu.BindGroupLayoutEntry) BinderBuilderOption {
	return func(b *binder) {
		b.entries = entries
	}
}
