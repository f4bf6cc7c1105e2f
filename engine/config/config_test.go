package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-models/engine/renderer/backend"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	kind, err := cfg.Backend.BackendType()
	require.NoError(t, err)
	assert.Equal(t, backend.BackendTypeWGPU, kind)
	assert.Equal(t, 0, cfg.Loader.MaxConcurrency)
	assert.Equal(t, 4096, cfg.Textures.MaxDimension)
	assert.Equal(t, "info", cfg.Logging.Level)

	sampler, err := cfg.Textures.Sampler()
	require.NoError(t, err)
	assert.Equal(t, wgpu.AddressModeRepeat, sampler.AddressModeV)
	assert.Equal(t, wgpu.FilterModeLinear, sampler.MinFilter)
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlContent := `
backend:
  type: software
loader:
  max_concurrency: 2
  watch: false
textures:
  max_dimension: 512
  address_mode: clamp
  filter: nearest
logging:
  level: warn
  log_file: file.log
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0644))

	cfg, err := Load(path, Overrides{Debug: true, Concurrency: 8})
	require.NoError(t, err)

	assert.Equal(t, "software", cfg.Backend.Type)
	assert.Equal(t, 8, cfg.Loader.MaxConcurrency)
	assert.Equal(t, 512, cfg.Textures.MaxDimension)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "file.log", cfg.Logging.LogFile)

	sampler, err := cfg.Textures.Sampler()
	require.NoError(t, err)
	assert.Equal(t, wgpu.AddressModeClampToEdge, sampler.AddressModeU)
	assert.Equal(t, wgpu.FilterModeNearest, sampler.MagFilter)
	assert.Equal(t, wgpu.MipmapFilterModeNearest, sampler.MipmapFilter)
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("", Overrides{Backend: "software", Watch: true})
	require.NoError(t, err)
	assert.Equal(t, "software", cfg.Backend.Type)
	assert.True(t, cfg.Loader.Watch)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), Overrides{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"backend", func(c *Config) { c.Backend.Type = "vulkan" }, "backend.type"},
		{"power", func(c *Config) { c.Backend.PowerPreference = "max" }, "backend.power_preference"},
		{"concurrency", func(c *Config) { c.Loader.MaxConcurrency = -1 }, "loader.max_concurrency"},
		{"dimension", func(c *Config) { c.Textures.MaxDimension = -4 }, "textures.max_dimension"},
		{"address", func(c *Config) { c.Textures.AddressMode = "wrap" }, "unknown address mode"},
		{"filter", func(c *Config) { c.Textures.Filter = "cubic" }, "unknown filter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Backend.Type = "software"
	cfg.Backend.PowerPreference = "low-power"
	cfg.Loader.ComputeShader = "shaders/tangent.wgsl"

	require.NoError(t, Save(cfg, path))

	loaded, err := Load(path, Overrides{})
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
