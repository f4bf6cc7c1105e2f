// Package config handles loading and saving the YAML configuration of the model tools.
package config

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-models/common"
	"github.com/Carmen-Shannon/oxy-models/engine/renderer/backend"
	"github.com/cogentcore/webgpu/wgpu"
)

// Config holds all settings.
type Config struct {
	Backend  BackendConfig `yaml:"backend"`
	Loader   LoaderConfig  `yaml:"loader"`
	Textures TextureConfig `yaml:"textures"`
	Logging  LoggingConfig `yaml:"logging"`
}

// BackendConfig selects and tunes the graphics device.
type BackendConfig struct {
	Type                 string `yaml:"type"`             // "wgpu" or "software"
	ForceFallbackAdapter bool   `yaml:"force_fallback"`
	PowerPreference      string `yaml:"power_preference"` // "", "low-power" or "high-performance"
}

// LoaderConfig holds model loading settings.
type LoaderConfig struct {
	MaxConcurrency int    `yaml:"max_concurrency"` // 0 means unbounded
	ComputeShader  string `yaml:"compute_shader"`  // optional WGSL override of the tangent shader
	Watch          bool   `yaml:"watch"`
}

// TextureConfig holds texture upload settings.
type TextureConfig struct {
	MaxDimension int    `yaml:"max_dimension"` // 0 keeps the source size
	AddressMode  string `yaml:"address_mode"`  // "repeat", "clamp" or "mirror"
	Filter       string `yaml:"filter"`        // "linear" or "nearest"
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with the default values.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			Type: "wgpu",
		},
		Loader: LoaderConfig{
			MaxConcurrency: 0,
		},
		Textures: TextureConfig{
			MaxDimension: 4096,
			AddressMode:  "repeat",
			Filter:       "linear",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate checks the config for values the rest of the program cannot act on.
//
// Returns:
//   - error: the joined validation errors, nil when the config is usable
func (c *Config) Validate() error {
	var errs []error
	if _, err := backend.ParseBackendType(c.Backend.Type); err != nil {
		errs = append(errs, fmt.Errorf("backend.type: %w", err))
	}
	if _, err := c.Backend.Power(); err != nil {
		errs = append(errs, fmt.Errorf("backend.power_preference: %w", err))
	}
	if c.Loader.MaxConcurrency < 0 {
		errs = append(errs, fmt.Errorf("loader.max_concurrency: must not be negative, got %d", c.Loader.MaxConcurrency))
	}
	if c.Textures.MaxDimension < 0 {
		errs = append(errs, fmt.Errorf("textures.max_dimension: must not be negative, got %d", c.Textures.MaxDimension))
	}
	if _, err := c.Textures.Sampler(); err != nil {
		errs = append(errs, fmt.Errorf("textures: %w", err))
	}
	return errors.Join(errs...)
}

// BackendType returns the parsed backend type.
//
// Returns:
//   - backend.BackendType: the backend type
//   - error: an error if the type name is unknown
func (b BackendConfig) BackendType() (backend.BackendType, error) {
	return backend.ParseBackendType(b.Type)
}

// Power returns the parsed adapter power preference.
//
// Returns:
//   - wgpu.PowerPreference: the power preference, the zero value when unset
//   - error: an error if the name is unknown
func (b BackendConfig) Power() (wgpu.PowerPreference, error) {
	switch b.PowerPreference {
	case "":
		return wgpu.PowerPreference(0), nil
	case "low-power":
		return wgpu.PowerPreferenceLowPower, nil
	case "high-performance":
		return wgpu.PowerPreferenceHighPerformance, nil
	default:
		return 0, fmt.Errorf("unknown power preference %q", b.PowerPreference)
	}
}

// Sampler converts the texture sampler settings into staging data for the texture loader.
//
// Returns:
//   - common.SamplerStagingData: the sampler configuration
//   - error: an error if a mode name is unknown
func (t TextureConfig) Sampler() (common.SamplerStagingData, error) {
	var data common.SamplerStagingData

	switch t.AddressMode {
	case "", "repeat":
		data.AddressModeU = wgpu.AddressModeRepeat
	case "clamp":
		data.AddressModeU = wgpu.AddressModeClampToEdge
	case "mirror":
		data.AddressModeU = wgpu.AddressModeMirrorRepeat
	default:
		return data, fmt.Errorf("unknown address mode %q", t.AddressMode)
	}
	data.AddressModeV = data.AddressModeU
	data.AddressModeW = data.AddressModeU

	switch t.Filter {
	case "", "linear":
		data.MagFilter = wgpu.FilterModeLinear
		data.MinFilter = wgpu.FilterModeLinear
		data.MipmapFilter = wgpu.MipmapFilterModeLinear
	case "nearest":
		data.MagFilter = wgpu.FilterModeNearest
		data.MinFilter = wgpu.FilterModeNearest
		data.MipmapFilter = wgpu.MipmapFilterModeNearest
	default:
		return data, fmt.Errorf("unknown filter %q", t.Filter)
	}
	data.LodMaxClamp = 32
	data.MaxAnisotropy = 1
	return data, nil
}
