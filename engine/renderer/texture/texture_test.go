package texture

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-models/common"
	"github.com/Carmen-Shannon/oxy-models/engine/renderer/backend"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLoadDiffuseAndNormal(t *testing.T) {
	device := backend.NewSoftwareDevice()
	path := writeFile(t, "diffuse.png", encodePNG(t, 2, 2, color.RGBA{R: 255, G: 0, B: 0, A: 255}))

	diffuse, err := Load(device, path, false)
	require.NoError(t, err)
	defer diffuse.Release()
	assert.Equal(t, path, diffuse.Label())
	assert.Equal(t, uint32(2), diffuse.Width())
	assert.Equal(t, uint32(2), diffuse.Height())
	assert.Equal(t, wgpu.TextureFormatRGBA8UnormSrgb, diffuse.Format())
	assert.Equal(t, wgpu.TextureFormatRGBA8UnormSrgb, diffuse.Texture().Format())

	pixels, err := device.TexturePixels(diffuse.Texture())
	require.NoError(t, err)
	assert.Equal(t, []byte{255, 0, 0, 255}, pixels[:4])

	normal, err := Load(device, path, true)
	require.NoError(t, err)
	assert.True(t, normal.IsNormalMap())
	assert.Equal(t, wgpu.TextureFormatRGBA8Unorm, normal.Texture().Format())
	normal.Release()
}

func TestLoadFailuresAreTextureLoadErrors(t *testing.T) {
	device := backend.NewSoftwareDevice()

	tests := []struct {
		name string
		path string
	}{
		{name: "missing file", path: filepath.Join(t.TempDir(), "missing.png")},
		{name: "not an image", path: writeFile(t, "notes.png", []byte("this is a text file, not a picture"))},
		{name: "truncated png", path: writeFile(t, "broken.png", encodePNG(t, 4, 4, color.RGBA{A: 255})[:40])},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(device, tt.path, false)
			var texErr *common.TextureLoadError
			require.True(t, errors.As(err, &texErr), "got %v", err)
			assert.Equal(t, tt.path, texErr.Path)
		})
	}
	assert.Zero(t, device.Stats().LiveTextures)
}

func TestFromBytesDownscales(t *testing.T) {
	device := backend.NewSoftwareDevice()
	tex, err := FromBytes(device, encodePNG(t, 8, 4, color.RGBA{G: 255, A: 255}), "wide", false, WithMaxDimension(4))
	require.NoError(t, err)
	assert.Equal(t, uint32(4), tex.Width())
	assert.Equal(t, uint32(2), tex.Height())
}

func TestFromBytesKeepsStraightAlpha(t *testing.T) {
	device := backend.NewSoftwareDevice()
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, G: 200, B: 100, A: 128})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	for _, isNormalMap := range []bool{false, true} {
		tex, err := FromBytes(device, buf.Bytes(), "translucent", isNormalMap)
		require.NoError(t, err)
		pixels, err := device.TexturePixels(tex.Texture())
		require.NoError(t, err)
		assert.Equal(t, []byte{255, 200, 100, 128}, pixels)
		tex.Release()
	}
}

func TestFromBytesDownscaleKeepsStraightAlpha(t *testing.T) {
	device := backend.NewSoftwareDevice()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 128, G: 128, B: 255, A: 64})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	tex, err := FromBytes(device, buf.Bytes(), "normal", true, WithMaxDimension(2))
	require.NoError(t, err)
	defer tex.Release()
	pixels, err := device.TexturePixels(tex.Texture())
	require.NoError(t, err)
	require.Len(t, pixels, 2*2*4)
	for i := 0; i < len(pixels); i += 4 {
		assert.InDelta(t, 128, int(pixels[i]), 2)
		assert.InDelta(t, 128, int(pixels[i+1]), 2)
		assert.InDelta(t, 255, int(pixels[i+2]), 2)
		assert.InDelta(t, 64, int(pixels[i+3]), 1)
	}
}

func TestFromImportedSamplerOverridesOptions(t *testing.T) {
	device := backend.NewSoftwareDevice()
	nearest := common.SamplerStagingData{
		AddressModeU: wgpu.AddressModeClampToEdge,
		MagFilter:    wgpu.FilterModeNearest,
		MinFilter:    wgpu.FilterModeNearest,
	}
	linear := common.SamplerStagingData{
		AddressModeU: wgpu.AddressModeRepeat,
		MagFilter:    wgpu.FilterModeLinear,
		MinFilter:    wgpu.FilterModeLinear,
	}
	data := encodePNG(t, 1, 1, color.RGBA{A: 255})

	withOwn, err := FromImported(device, &common.ImportedTexture{Name: "own", Data: data, SamplerData: &nearest}, false, WithSampler(linear))
	require.NoError(t, err)
	defer withOwn.Release()
	got, err := device.SamplerData(withOwn.Sampler())
	require.NoError(t, err)
	assert.Equal(t, nearest, got)

	withoutOwn, err := FromImported(device, &common.ImportedTexture{Name: "plain", Data: data}, false, WithSampler(linear))
	require.NoError(t, err)
	defer withoutOwn.Release()
	got, err = device.SamplerData(withoutOwn.Sampler())
	require.NoError(t, err)
	assert.Equal(t, linear, got)
}

func TestFromImported(t *testing.T) {
	device := backend.NewSoftwareDevice()
	tex, err := FromImported(device, &common.ImportedTexture{Name: "albedo", Data: encodePNG(t, 1, 1, color.RGBA{B: 255, A: 255})}, false)
	require.NoError(t, err)
	assert.Equal(t, "embedded:albedo", tex.Label())

	_, err = FromImported(device, &common.ImportedTexture{Name: "empty"}, false)
	var texErr *common.TextureLoadError
	assert.True(t, errors.As(err, &texErr))
}

func TestSolid(t *testing.T) {
	device := backend.NewSoftwareDevice()
	tex, err := Solid(device, "fallback_normal", [4]uint8{128, 128, 255, 255}, true)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), tex.Width())
	assert.Equal(t, uint32(1), tex.Height())
	assert.Equal(t, wgpu.TextureFormatRGBA8Unorm, tex.Format())

	pixels, err := device.TexturePixels(tex.Texture())
	require.NoError(t, err)
	assert.Equal(t, []byte{128, 128, 255, 255}, pixels)

	assert.Equal(t, 1, device.Stats().LiveTextures)
	tex.Release()
	assert.Equal(t, 0, device.Stats().LiveTextures)
}

func TestFitWithin(t *testing.T) {
	tests := []struct {
		w, h, limit  int
		wantW, wantH int
		wantScaled   bool
	}{
		{w: 10, h: 10, limit: 0, wantW: 10, wantH: 10},
		{w: 10, h: 10, limit: 16, wantW: 10, wantH: 10},
		{w: 32, h: 16, limit: 16, wantW: 16, wantH: 8, wantScaled: true},
		{w: 16, h: 64, limit: 16, wantW: 4, wantH: 16, wantScaled: true},
		{w: 1000, h: 1, limit: 10, wantW: 10, wantH: 1, wantScaled: true},
	}
	for _, tt := range tests {
		w, h, scaled := fitWithin(tt.w, tt.h, tt.limit)
		assert.Equal(t, tt.wantW, w)
		assert.Equal(t, tt.wantH, h)
		assert.Equal(t, tt.wantScaled, scaled)
	}
}
