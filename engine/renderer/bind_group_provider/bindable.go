package bind_group_provider

import (
	"github.com/Carmen-Shannon/oxy-models/engine/renderer/backend"
	"github.com/cogentcore/webgpu/wgpu"
)

// Bindable is any resource that can describe its own bind group layout and produce matching bind group entries.
// Meshes, materials and uniform providers all satisfy it.
type Bindable interface {
	// LayoutEntries returns the layout entries the resource expects, one per binding.
	//
	// Returns:
	//   - []wgpu.BindGroupLayoutEntry: the layout entries
	LayoutEntries() []wgpu.BindGroupLayoutEntry

	// BindGroupEntries returns the concrete resource for each binding, in the same order as LayoutEntries.
	//
	// Returns:
	//   - []backend.BindGroupEntry: the bind group entries
	BindGroupEntries() []backend.BindGroupEntry
}
