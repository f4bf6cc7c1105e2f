package loader

import (
	"github.com/Carmen-Shannon/oxy-models/engine/profiler"
	"github.com/Carmen-Shannon/oxy-models/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-models/engine/renderer/texture"
	"go.uber.org/zap"
)

// LoaderBuilderOption is a function that configures a loader instance during construction.
type LoaderBuilderOption func(*loader)

// WithLogger is an option builder that sets the logger used for state transitions and per-resource progress.
// A nil logger keeps the no-op default.
//
// Parameters:
//   - logger: the logger to write debug output to
//
// Returns:
//   - LoaderBuilderOption: a function that applies the logger option to a loader
func WithLogger(logger *zap.Logger) LoaderBuilderOption {
	return func(l *loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithMaxConcurrency is an option builder that caps how many material and mesh tasks run at once.
// Zero or a negative value leaves the fan-out unbounded.
//
// Parameters:
//   - n: the maximum number of concurrent tasks
//
// Returns:
//   - LoaderBuilderOption: a function that applies the concurrency option to a loader
func WithMaxConcurrency(n int) LoaderBuilderOption {
	return func(l *loader) {
		l.maxConcurrency = n
	}
}

// WithComputeShader is an option builder that replaces the built-in tangent compute shader.
// The shader must declare the vertex storage buffer at @group(0) @binding(0) and the index storage buffer at
// @group(0) @binding(1).
//
// Parameters:
//   - s: the compute shader
//
// Returns:
//   - LoaderBuilderOption: a function that applies the compute shader option to a loader
func WithComputeShader(s shader.Shader) LoaderBuilderOption {
	return func(l *loader) {
		l.computeShader = s
	}
}

// WithTextureOptions is an option builder that appends options applied to every texture the loader uploads.
//
// Parameters:
//   - options: the texture options
//
// Returns:
//   - LoaderBuilderOption: a function that applies the texture options to a loader
func WithTextureOptions(options ...texture.TextureBuilderOption) LoaderBuilderOption {
	return func(l *loader) {
		l.textureOptions = append(l.textureOptions, options...)
	}
}

// WithProfiler is an option builder that records per-stage load timings on p.
//
// Parameters:
//   - p: the profiler
//
// Returns:
//   - LoaderBuilderOption: a function that applies the profiler option to a loader
func WithProfiler(p *profiler.Profiler) LoaderBuilderOption {
	return func(l *loader) {
		l.profiler = p
	}
}

// WithStateObserver is an option builder that registers a callback invoked on every state transition.
// Callbacks may run on load worker goroutines.
//
// Parameters:
//   - observe: the callback
//
// Returns:
//   - LoaderBuilderOption: a function that applies the observer to a loader
func WithStateObserver(observe func(LoadState)) LoaderBuilderOption {
	return func(l *loader) {
		l.observers = append(l.observers, observe)
	}
}
