package model

import (
	"github.com/Carmen-Shannon/oxy-models/engine/renderer/material"
	"github.com/google/uuid"
)

// ModelBuilderOption is a functional option for configuring a Model via NewModel.
type ModelBuilderOption func(*model)

// WithID is an option builder that sets the identifier of the Model.
//
// Parameters:
//   - id: the identifier
//
// Returns:
//   - ModelBuilderOption: a function that applies the ID option to a model
func WithID(id uuid.UUID) ModelBuilderOption {
	return func(m *model) {
		m.id = id
	}
}

// WithName is an option builder that sets the name of the Model.
//
// Parameters:
//   - name: the model identifier
//
// Returns:
//   - ModelBuilderOption: a function that applies the name option to a model
func WithName(name string) ModelBuilderOption {
	return func(m *model) {
		m.name = name
	}
}

// WithPath is an option builder that sets the source path of the Model.
//
// Parameters:
//   - path: the file path the model was loaded from
//
// Returns:
//   - ModelBuilderOption: a function that applies the path option to a model
func WithPath(path string) ModelBuilderOption {
	return func(m *model) {
		m.path = path
	}
}

// WithMeshes is an option builder that sets the meshes of the Model, in source order.
//
// Parameters:
//   - meshes: the meshes
//
// Returns:
//   - ModelBuilderOption: a function that applies the meshes option to a model
func WithMeshes(meshes ...Mesh) ModelBuilderOption {
	return func(m *model) {
		m.meshes = meshes
	}
}

// WithMaterials is an option builder that sets the materials of the Model, in source order.
//
// Parameters:
//   - mats: the materials
//
// Returns:
//   - ModelBuilderOption: a function that applies the materials option to a model
func WithMaterials(mats ...material.Material) ModelBuilderOption {
	return func(m *model) {
		m.materials = mats
	}
}

// WithDependencies is an option builder that records the files the Model was assembled from.
//
// Parameters:
//   - paths: the dependency paths
//
// Returns:
//   - ModelBuilderOption: a function that applies the dependencies option to a model
func WithDependencies(paths ...string) ModelBuilderOption {
	return func(m *model) {
		m.dependencies = paths
	}
}

// WithBoundingRadius is an option builder that sets the bounding sphere radius.
//
// Parameters:
//   - radius: the bounding radius to set
//
// Returns:
//   - ModelBuilderOption: a function that applies the bounding radius option to a model
func WithBoundingRadius(radius float32) ModelBuilderOption {
	return func(m *model) {
		m.boundingRadius = radius
	}
}
