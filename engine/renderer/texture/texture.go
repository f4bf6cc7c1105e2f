// Package texture turns encoded image files into device textures, views and samplers ready to bind on a material.
package texture

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/Carmen-Shannon/oxy-models/common"
	"github.com/Carmen-Shannon/oxy-models/engine/renderer/backend"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/h2non/filetype"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// texture is the implementation of the Texture interface.
type texture struct {
	label       string
	isNormalMap bool
	width       uint32
	height      uint32
	texture     backend.Texture
	view        backend.TextureView
	sampler     backend.Sampler
}

// Texture is a device texture together with its default view and sampler.
type Texture interface {
	// Label returns the debug label, normally the source file path.
	//
	// Returns:
	//   - string: the label
	Label() string

	// IsNormalMap reports whether the texture holds linear normal map data.
	//
	// Returns:
	//   - bool: true for normal maps
	IsNormalMap() bool

	// Width returns the texture width in pixels.
	Width() uint32

	// Height returns the texture height in pixels.
	Height() uint32

	// Format returns the texture format: RGBA8Unorm for normal maps, RGBA8UnormSrgb otherwise.
	//
	// Returns:
	//   - wgpu.TextureFormat: the format
	Format() wgpu.TextureFormat

	// Texture returns the device texture.
	Texture() backend.Texture

	// View returns the full view of the texture.
	View() backend.TextureView

	// Sampler returns the sampler created with the texture.
	Sampler() backend.Sampler

	// Release frees the sampler, view and texture.
	Release()
}

var _ Texture = &texture{}

// FormatFor returns the texture format used for color or normal data.
//
// Parameters:
//   - isNormalMap: true for normal map data
//
// Returns:
//   - wgpu.TextureFormat: RGBA8Unorm for normal maps, RGBA8UnormSrgb otherwise
func FormatFor(isNormalMap bool) wgpu.TextureFormat {
	if isNormalMap {
		return wgpu.TextureFormatRGBA8Unorm
	}
	return wgpu.TextureFormatRGBA8UnormSrgb
}

// Load reads an image file and creates a texture from it.
//
// Parameters:
//   - device: the device to create the texture on
//   - path: the image file path
//   - isNormalMap: true to create a linear normal map texture
//   - options: a variadic list of TextureBuilderOption functions
//
// Returns:
//   - Texture: the created texture
//   - error: a *common.TextureLoadError on any failure
func Load(device backend.Device, path string, isNormalMap bool, options ...TextureBuilderOption) (Texture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &common.TextureLoadError{Path: path, Err: err}
	}
	return FromBytes(device, data, path, isNormalMap, append([]TextureBuilderOption{WithLabel(path)}, options...)...)
}

// FromImported creates a texture from an imported texture reference, embedded or on disk. A sampler carried
// by the reference takes precedence over one passed in options.
//
// Parameters:
//   - device: the device to create the texture on
//   - tex: the imported texture reference
//   - isNormalMap: true to create a linear normal map texture
//   - options: a variadic list of TextureBuilderOption functions
//
// Returns:
//   - Texture: the created texture
//   - error: a *common.TextureLoadError on any failure
func FromImported(device backend.Device, tex *common.ImportedTexture, isNormalMap bool, options ...TextureBuilderOption) (Texture, error) {
	data, err := tex.Bytes()
	if err != nil {
		return nil, &common.TextureLoadError{Path: tex.Source(), Err: err}
	}
	opts := append([]TextureBuilderOption{WithLabel(tex.Source())}, options...)
	if tex.SamplerData != nil {
		opts = append(opts, WithSampler(*tex.SamplerData))
	}
	return FromBytes(device, data, tex.Source(), isNormalMap, opts...)
}

// FromBytes decodes encoded image bytes and creates a texture from them.
// PNG, JPEG, GIF, BMP, TIFF and WebP are supported.
//
// Parameters:
//   - device: the device to create the texture on
//   - data: the encoded image bytes
//   - source: the source reported in errors
//   - isNormalMap: true to create a linear normal map texture
//   - options: a variadic list of TextureBuilderOption functions
//
// Returns:
//   - Texture: the created texture
//   - error: a *common.TextureLoadError on any failure
func FromBytes(device backend.Device, data []byte, source string, isNormalMap bool, options ...TextureBuilderOption) (Texture, error) {
	if !filetype.IsImage(data) {
		return nil, &common.TextureLoadError{Path: source, Err: fmt.Errorf("content is not a recognized image format")}
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &common.TextureLoadError{Path: source, Err: err}
	}
	t, err := FromImage(device, img, isNormalMap, append([]TextureBuilderOption{WithLabel(source)}, options...)...)
	if err != nil {
		return nil, &common.TextureLoadError{Path: source, Err: err}
	}
	return t, nil
}

// FromImage uploads a decoded image as a texture, downscaling it first if it exceeds the configured max dimension.
//
// Parameters:
//   - device: the device to create the texture on
//   - img: the decoded image
//   - isNormalMap: true to create a linear normal map texture
//   - options: a variadic list of TextureBuilderOption functions
//
// Returns:
//   - Texture: the created texture
//   - error: an error if the device rejects the texture
func FromImage(device backend.Device, img image.Image, isNormalMap bool, options ...TextureBuilderOption) (Texture, error) {
	cfg := newTextureConfig(options...)

	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("image %s has zero extent", cfg.label)
	}
	pixels := toNRGBA(img, cfg.maxDimension)

	return create(device, cfg, isNormalMap, common.TextureStagingData{
		Pixels: pixels.Pix,
		Width:  uint32(pixels.Bounds().Dx()),
		Height: uint32(pixels.Bounds().Dy()),
	})
}

// Solid creates a 1x1 texture of a single color, used where a material references no image.
//
// Parameters:
//   - device: the device to create the texture on
//   - label: the debug label
//   - rgba: the texel color
//   - isNormalMap: true to create a linear normal map texture
//
// Returns:
//   - Texture: the created texture
//   - error: a *common.TextureLoadError if the device rejects the texture
func Solid(device backend.Device, label string, rgba [4]uint8, isNormalMap bool) (Texture, error) {
	cfg := newTextureConfig(WithLabel(label))
	t, err := create(device, cfg, isNormalMap, common.TextureStagingData{
		Pixels: rgba[:],
		Width:  1,
		Height: 1,
	})
	if err != nil {
		return nil, &common.TextureLoadError{Path: label, Err: err}
	}
	return t, nil
}

// toNRGBA converts img to tightly packed straight-alpha RGBA8, downscaling it to fit within limit.
// Straight alpha keeps normal map vectors intact for texels with alpha below 255.
func toNRGBA(img image.Image, limit int) *image.NRGBA {
	b := img.Bounds()
	if nw, nh, scale := fitWithin(b.Dx(), b.Dy(), limit); scale {
		dst := image.NewNRGBA(image.Rect(0, 0, nw, nh))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
		return dst
	}
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// fitWithin returns the extent of w x h scaled to fit within limit while keeping the aspect ratio.
func fitWithin(w, h, limit int) (int, int, bool) {
	if limit <= 0 || (w <= limit && h <= limit) {
		return w, h, false
	}
	if w >= h {
		return limit, common.Coalesce(h*limit/w, 1), true
	}
	return common.Coalesce(w*limit/h, 1), limit, true
}

func create(device backend.Device, cfg *textureConfig, isNormalMap bool, staging common.TextureStagingData) (*texture, error) {
	tex, err := device.CreateTexture(backend.TextureDescriptor{
		Label:   cfg.label,
		Format:  FormatFor(isNormalMap),
		Usage:   wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Staging: staging,
	})
	if err != nil {
		return nil, err
	}
	view, err := device.CreateTextureView(tex)
	if err != nil {
		tex.Release()
		return nil, err
	}
	sampler, err := device.CreateSampler(cfg.label, cfg.sampler)
	if err != nil {
		view.Release()
		tex.Release()
		return nil, err
	}
	return &texture{
		label:       cfg.label,
		isNormalMap: isNormalMap,
		width:       staging.Width,
		height:      staging.Height,
		texture:     tex,
		view:        view,
		sampler:     sampler,
	}, nil
}

func (t *texture) Label() string {
	return t.label
}

func (t *texture) IsNormalMap() bool {
	return t.isNormalMap
}

func (t *texture) Width() uint32 {
	return t.width
}

func (t *texture) Height() uint32 {
	return t.height
}

func (t *texture) Format() wgpu.TextureFormat {
	return FormatFor(t.isNormalMap)
}

func (t *texture) Texture() backend.Texture {
	return t.texture
}

func (t *texture) View() backend.TextureView {
	return t.view
}

func (t *texture) Sampler() backend.Sampler {
	return t.sampler
}

func (t *texture) Release() {
	if t.sampler != nil {
		t.sampler.Release()
		t.sampler = nil
	}
	if t.view != nil {
		t.view.Release()
		t.view = nil
	}
	if t.texture != nil {
		t.texture.Release()
		t.texture = nil
	}
}
