package texture

import (
	"github.com/Carmen-Shannon/oxy-models/common"
)

type textureConfig struct {
	label        string
	sampler      common.SamplerStagingData
	maxDimension int
}

func newTextureConfig(options ...TextureBuilderOption) *textureConfig {
	cfg := &textureConfig{label: "texture"}
	for _, opt := range options {
		opt(cfg)
	}
	return cfg
}

// TextureBuilderOption is a functional option applied when creating a texture.
type TextureBuilderOption func(*textureConfig)

// WithLabel sets the debug label of the texture and its sampler.
//
// Parameters:
//   - label: the debug label
//
// Returns:
//   - TextureBuilderOption: a function that applies the label
func WithLabel(label string) TextureBuilderOption {
	return func(c *textureConfig) {
		c.label = label
	}
}

// WithSampler sets the sampler configuration. Zero fields fall back to linear filtering and repeat addressing.
//
// Parameters:
//   - data: the sampler configuration
//
// Returns:
//   - TextureBuilderOption: a function that applies the sampler configuration
func WithSampler(data common.SamplerStagingData) TextureBuilderOption {
	return func(c *textureConfig) {
		c.sampler = data
	}
}

// WithMaxDimension downscales images whose width or height exceeds n, keeping the aspect ratio. Zero disables scaling.
//
// Parameters:
//   - n: the largest allowed width or height in pixels
//
// Returns:
//   - TextureBuilderOption: a function that applies the limit
func WithMaxDimension(n int) TextureBuilderOption {
	return func(c *textureConfig) {
		c.maxDimension = n
	}
}
