package loader

import (
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-models/common"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// gltfLoaderBackend imports glTF 2.0 (.gltf) and GLB (.glb) files. Every triangle primitive becomes one mesh.
type gltfLoaderBackend struct{}

var _ loaderBackend = &gltfLoaderBackend{}

// newGLTFLoaderBackend creates a new glTF loader backend.
//
// Returns:
//   - *gltfLoaderBackend: a new glTF loader backend instance
func newGLTFLoaderBackend() *gltfLoaderBackend {
	return &gltfLoaderBackend{}
}

func (b *gltfLoaderBackend) Extensions() []string {
	return []string{".gltf", ".glb"}
}

func (b *gltfLoaderBackend) Import(path string) (*common.ImportedModel, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, &common.AssetParseError{Path: path, Err: fmt.Errorf("failed to open glTF: %w", err)}
	}

	dir := filepath.Dir(path)
	result := &common.ImportedModel{
		Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Path: path,
	}
	for _, buf := range doc.Buffers {
		if buf.URI != "" && !strings.HasPrefix(buf.URI, "data:") {
			result.Dependencies = append(result.Dependencies, common.ResolvePath(dir, buf.URI))
		}
	}

	for i, mt := range doc.Materials {
		mat, deps, err := gltfExtractMaterial(doc, dir, i, mt)
		if err != nil {
			return nil, &common.AssetParseError{Path: path, Err: err}
		}
		result.Materials = append(result.Materials, mat)
		result.Dependencies = append(result.Dependencies, deps...)
	}

	for mi, mesh := range doc.Meshes {
		for pi, prim := range mesh.Primitives {
			if prim.Mode != gltf.PrimitiveTriangles {
				continue
			}
			name := mesh.Name
			if name == "" {
				name = fmt.Sprintf("mesh%d", mi)
			}
			if len(mesh.Primitives) > 1 {
				name = fmt.Sprintf("%s_%d", name, pi)
			}
			imported, err := gltfExtractPrimitive(doc, name, prim)
			if err != nil {
				return nil, &common.AssetParseError{Path: path, Err: err}
			}
			result.Meshes = append(result.Meshes, imported)
		}
	}
	return result, nil
}

// gltfExtractPrimitive reads the position, normal, uv and index accessors of a triangle primitive.
func gltfExtractPrimitive(doc *gltf.Document, name string, prim *gltf.Primitive) (common.ImportedMesh, error) {
	out := common.ImportedMesh{Name: name, MaterialIndex: -1}
	if prim.Material != nil {
		out.MaterialIndex = int(*prim.Material)
	}

	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return out, fmt.Errorf("mesh %s: primitive has no POSITION attribute", name)
	}
	acr, err := gltfAccessor(doc, posIdx)
	if err != nil {
		return out, fmt.Errorf("mesh %s: POSITION: %w", name, err)
	}
	positions, err := modeler.ReadPosition(doc, acr, nil)
	if err != nil {
		return out, fmt.Errorf("mesh %s: read positions: %w", name, err)
	}

	normals := make([][3]float32, len(positions))
	if idx, ok := prim.Attributes[gltf.NORMAL]; ok {
		if acr, err = gltfAccessor(doc, idx); err != nil {
			return out, fmt.Errorf("mesh %s: NORMAL: %w", name, err)
		}
		if normals, err = modeler.ReadNormal(doc, acr, nil); err != nil {
			return out, fmt.Errorf("mesh %s: read normals: %w", name, err)
		}
	}
	texCoords := make([][2]float32, len(positions))
	if idx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
		if acr, err = gltfAccessor(doc, idx); err != nil {
			return out, fmt.Errorf("mesh %s: TEXCOORD_0: %w", name, err)
		}
		if texCoords, err = modeler.ReadTextureCoord(doc, acr, nil); err != nil {
			return out, fmt.Errorf("mesh %s: read texture coordinates: %w", name, err)
		}
	}
	if len(normals) != len(positions) || len(texCoords) != len(positions) {
		return out, fmt.Errorf("mesh %s: attribute counts differ (%d positions, %d normals, %d uvs)",
			name, len(positions), len(normals), len(texCoords))
	}

	out.Positions = make([]float32, 0, len(positions)*3)
	out.Normals = make([]float32, 0, len(positions)*3)
	out.TexCoords = make([]float32, 0, len(positions)*2)
	for i := range positions {
		out.Positions = append(out.Positions, positions[i][0], positions[i][1], positions[i][2])
		out.Normals = append(out.Normals, normals[i][0], normals[i][1], normals[i][2])
		out.TexCoords = append(out.TexCoords, texCoords[i][0], texCoords[i][1])
	}

	if prim.Indices != nil {
		if acr, err = gltfAccessor(doc, *prim.Indices); err != nil {
			return out, fmt.Errorf("mesh %s: indices: %w", name, err)
		}
		if out.Indices, err = modeler.ReadIndices(doc, acr, nil); err != nil {
			return out, fmt.Errorf("mesh %s: read indices: %w", name, err)
		}
	} else {
		out.Indices = make([]uint32, len(positions))
		for i := range out.Indices {
			out.Indices[i] = uint32(i)
		}
	}
	return out, nil
}

// gltfAccessor looks up an accessor and checks every buffer view it reads from, so a malformed
// document fails with an error instead of an out of range index.
func gltfAccessor(doc *gltf.Document, index uint32) (*gltf.Accessor, error) {
	if int(index) >= len(doc.Accessors) {
		return nil, fmt.Errorf("accessor index %d out of range (%d accessors)", index, len(doc.Accessors))
	}
	acr := doc.Accessors[index]
	if acr.BufferView == nil && acr.Sparse == nil {
		return nil, fmt.Errorf("accessor %d has no buffer view", index)
	}
	if acr.BufferView != nil {
		view, err := gltfBufferView(doc, *acr.BufferView)
		if err != nil {
			return nil, fmt.Errorf("accessor %d: %w", index, err)
		}
		if acr.ByteOffset > view.ByteLength {
			return nil, fmt.Errorf("accessor %d byte offset %d exceeds buffer view length %d", index, acr.ByteOffset, view.ByteLength)
		}
	}
	if sp := acr.Sparse; sp != nil {
		for _, ref := range []uint32{sp.Indices.BufferView, sp.Values.BufferView} {
			if _, err := gltfBufferView(doc, ref); err != nil {
				return nil, fmt.Errorf("accessor %d sparse: %w", index, err)
			}
		}
		// modeler resolves the sparse value stride through the values byte offset.
		if int(sp.Values.ByteOffset) >= len(doc.BufferViews) {
			return nil, fmt.Errorf("accessor %d sparse values byte offset %d is not supported", index, sp.Values.ByteOffset)
		}
	}
	return acr, nil
}

// gltfBufferView looks up a buffer view and checks that it names an existing buffer.
func gltfBufferView(doc *gltf.Document, index uint32) (*gltf.BufferView, error) {
	if int(index) >= len(doc.BufferViews) {
		return nil, fmt.Errorf("buffer view index %d out of range (%d buffer views)", index, len(doc.BufferViews))
	}
	view := doc.BufferViews[index]
	if int(view.Buffer) >= len(doc.Buffers) {
		return nil, fmt.Errorf("buffer view %d buffer index %d out of range (%d buffers)", index, view.Buffer, len(doc.Buffers))
	}
	return view, nil
}

// gltfExtractMaterial maps a glTF PBR material onto the imported material description.
// Returns the external files referenced by its textures.
func gltfExtractMaterial(doc *gltf.Document, dir string, index int, mt *gltf.Material) (common.ImportedMaterial, []string, error) {
	mat := common.ImportedMaterial{
		Name:         mt.Name,
		DiffuseColor: [3]float32{1, 1, 1},
		Dissolve:     1,
	}
	if mat.Name == "" {
		mat.Name = fmt.Sprintf("material%d", index)
	}

	var deps []string
	if pbr := mt.PBRMetallicRoughness; pbr != nil {
		if bc := pbr.BaseColorFactor; bc != nil {
			mat.DiffuseColor = [3]float32{bc[0], bc[1], bc[2]}
			mat.Dissolve = bc[3]
		}
		if pbr.BaseColorTexture != nil {
			tex, dep, err := gltfLoadTexture(doc, dir, int(pbr.BaseColorTexture.Index), mat.Name+"_diffuse")
			if err != nil {
				return mat, nil, err
			}
			mat.DiffuseTexture = tex
			if dep != "" {
				deps = append(deps, dep)
			}
		}
	}
	if mt.NormalTexture != nil && mt.NormalTexture.Index != nil {
		tex, dep, err := gltfLoadTexture(doc, dir, int(*mt.NormalTexture.Index), mat.Name+"_normal")
		if err != nil {
			return mat, nil, err
		}
		mat.NormalTexture = tex
		if dep != "" {
			deps = append(deps, dep)
		}
	}
	return mat, deps, nil
}

// gltfLoadTexture resolves a texture to embedded bytes (buffer view or data URI) or an external path.
// Returns the external path as a dependency when the image lives in its own file.
func gltfLoadTexture(doc *gltf.Document, dir string, texIndex int, name string) (*common.ImportedTexture, string, error) {
	if texIndex < 0 || texIndex >= len(doc.Textures) {
		return nil, "", fmt.Errorf("texture index %d out of range", texIndex)
	}
	tex := doc.Textures[texIndex]
	if tex.Source == nil {
		return nil, "", fmt.Errorf("texture %d has no image source", texIndex)
	}
	imgIndex := int(*tex.Source)
	if imgIndex < 0 || imgIndex >= len(doc.Images) {
		return nil, "", fmt.Errorf("texture %d image index %d out of range", texIndex, imgIndex)
	}
	img := doc.Images[imgIndex]

	out := &common.ImportedTexture{Name: name, MimeType: img.MimeType}
	if tex.Sampler != nil && int(*tex.Sampler) < len(doc.Samplers) {
		out.SamplerData = gltfSamplerToStagingData(doc.Samplers[int(*tex.Sampler)])
	}

	switch {
	case img.BufferView != nil:
		view, err := gltfBufferView(doc, *img.BufferView)
		if err != nil {
			return nil, "", fmt.Errorf("image %d: %w", imgIndex, err)
		}
		if out.Data, err = modeler.ReadBufferView(doc, view); err != nil {
			return nil, "", fmt.Errorf("image %d buffer view exceeds buffer length: %w", imgIndex, err)
		}
		return out, "", nil
	case strings.HasPrefix(img.URI, "data:"):
		data, mimeType, err := gltfDecodeDataURI(img.URI)
		if err != nil {
			return nil, "", fmt.Errorf("image %d: %w", imgIndex, err)
		}
		out.Data = data
		out.MimeType = common.Coalesce(out.MimeType, mimeType)
		return out, "", nil
	case img.URI != "":
		out.Path = common.ResolvePath(dir, img.URI)
		return out, out.Path, nil
	default:
		return nil, "", fmt.Errorf("image %d has neither a buffer view nor a URI", imgIndex)
	}
}

// gltfDecodeDataURI decodes a base64 data URI into raw bytes and its media type.
func gltfDecodeDataURI(uri string) ([]byte, string, error) {
	// Format: data:[<mediatype>][;base64],<data>
	commaIdx := strings.Index(uri, ",")
	if commaIdx < 0 {
		return nil, "", fmt.Errorf("malformed data URI: no comma found")
	}
	header := uri[len("data:"):commaIdx]
	if !strings.HasSuffix(header, ";base64") {
		return nil, "", fmt.Errorf("data URI is not base64 encoded")
	}

	data, err := base64.StdEncoding.DecodeString(uri[commaIdx+1:])
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode base64: %w", err)
	}
	return data, strings.TrimSuffix(header, ";base64"), nil
}

// gltfSamplerToStagingData maps glTF sampler wrap and filter modes onto sampler staging data.
// Unset fields keep linear filtering with repeat addressing. A non-mipmapped minification filter
// selects the nearest mip level.
func gltfSamplerToStagingData(s *gltf.Sampler) *common.SamplerStagingData {
	result := &common.SamplerStagingData{
		AddressModeU:  wgpu.AddressModeRepeat,
		AddressModeV:  wgpu.AddressModeRepeat,
		AddressModeW:  wgpu.AddressModeRepeat,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeLinear,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	}
	if s == nil {
		return result
	}

	if s.MagFilter == gltf.MagNearest {
		result.MagFilter = wgpu.FilterModeNearest
	}
	switch s.MinFilter {
	case gltf.MinNearest, gltf.MinNearestMipMapNearest, gltf.MinNearestMipMapLinear:
		result.MinFilter = wgpu.FilterModeNearest
	}
	switch s.MinFilter {
	case gltf.MinNearest, gltf.MinLinear, gltf.MinNearestMipMapNearest, gltf.MinLinearMipMapNearest:
		result.MipmapFilter = wgpu.MipmapFilterModeNearest
	}
	result.AddressModeU = gltfWrapToAddressMode(s.WrapS)
	result.AddressModeV = gltfWrapToAddressMode(s.WrapT)
	return result
}

func gltfWrapToAddressMode(mode gltf.WrappingMode) wgpu.AddressMode {
	switch mode {
	case gltf.WrapClampToEdge:
		return wgpu.AddressModeClampToEdge
	case gltf.WrapMirroredRepeat:
		return wgpu.AddressModeMirrorRepeat
	default:
		return wgpu.AddressModeRepeat
	}
}
