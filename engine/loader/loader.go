package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-models/common"
	"github.com/Carmen-Shannon/oxy-models/engine/model"
	"github.com/Carmen-Shannon/oxy-models/engine/profiler"
	"github.com/Carmen-Shannon/oxy-models/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-models/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-models/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-models/engine/renderer/texture"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// LoadState is a stage of the model load state machine.
type LoadState int

const (
	// StateUnloaded is the state before the first load.
	StateUnloaded LoadState = iota
	// StateParsing covers reading the model file and its material descriptions.
	StateParsing
	// StateLoadingResources covers the concurrent texture and buffer uploads.
	StateLoadingResources
	// StateComputePass is entered when the first mesh dispatches its tangent pass.
	StateComputePass
	// StateLoaded is reached once every material and mesh is complete.
	StateLoaded
	// StateFailed is reached when any step of the load fails.
	StateFailed
)

func (s LoadState) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateParsing:
		return "parsing"
	case StateLoadingResources:
		return "loading-resources"
	case StateComputePass:
		return "compute-pass"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Profiler stage names recorded by the loader.
const (
	StageParse     = "parse"
	StageMaterials = "materials"
	StageMeshes    = "meshes"
	StageTotal     = "load"
)

var (
	fallbackDiffuse = [4]uint8{255, 255, 255, 255}
	fallbackNormal  = [4]uint8{128, 128, 255, 255}
)

// loader is the implementation of the Loader interface.
type loader struct {
	mu    sync.RWMutex
	state LoadState

	device         backend.Device
	logger         *zap.Logger
	profiler       *profiler.Profiler
	maxConcurrency int
	computeShader  shader.Shader
	textureOptions []texture.TextureBuilderOption
	observers      []func(LoadState)

	backends       map[string]loaderBackend
	tangents       *tangentCalculator
	materialLayout backend.BindGroupLayout
}

// Loader defines the public-facing interface for loading 3D models onto a device.
// The file format is resolved from the extension (.obj → OBJ/MTL backend, .gltf/.glb → glTF backend).
// Every load is all-or-nothing: on failure no Model is returned and every device resource created by the
// attempt is released.
type Loader interface {
	// Load imports a model file, uploads its textures and geometry, and runs the tangent compute pass on
	// every mesh before returning.
	//
	// Parameters:
	//   - ctx: cancels the load; in-flight texture and mesh tasks stop at their next step
	//   - path: the file path to the model file
	//
	// Returns:
	//   - model.Model: the fully loaded model
	//   - error: a *common.AssetParseError, *common.TextureLoadError or *common.MalformedMeshData, or a device error
	Load(ctx context.Context, path string) (model.Model, error)

	// State returns the state most recently entered by a load.
	//
	// Returns:
	//   - LoadState: the current state
	State() LoadState

	// MaterialLayout returns the bind group layout every loaded material's bind group conforms to.
	// Render pipelines bind it at group 0 of the main pass.
	//
	// Returns:
	//   - backend.BindGroupLayout: the material layout
	MaterialLayout() backend.BindGroupLayout

	// Release frees the shared compute pipeline, binder and material layout. Models loaded earlier stay valid
	// for drawing but must be released separately.
	Release()
}

var _ Loader = &loader{}

// NewLoader creates a new Loader on the given device with the options applied. The binder, the tangent
// compute pipeline and the material layout are created once here and shared by every load.
//
// Parameters:
//   - device: the device every resource is created on
//   - options: a variadic list of LoaderBuilderOption functions to configure the Loader
//
// Returns:
//   - Loader: a new instance of Loader
//   - error: an error if the shared compute or material resources could not be created
func NewLoader(device backend.Device, options ...LoaderBuilderOption) (Loader, error) {
	l := &loader{
		state:          StateUnloaded,
		device:         device,
		logger:         zap.NewNop(),
		maxConcurrency: 0,
		backends:       make(map[string]loaderBackend),
	}
	for _, option := range options {
		option(l)
	}
	for _, b := range []loaderBackend{newOBJLoaderBackend(), newGLTFLoaderBackend()} {
		for _, ext := range b.Extensions() {
			l.backends[ext] = b
		}
	}
	if l.computeShader == nil {
		l.computeShader = shader.TangentShader()
	}

	tangents, err := newTangentCalculator(device, l.computeShader, l.logger)
	if err != nil {
		return nil, err
	}
	layout, err := device.CreateBindGroupLayout("material_layout", material.LayoutEntries())
	if err != nil {
		tangents.release()
		return nil, fmt.Errorf("failed to create material layout: %w", err)
	}
	l.tangents = tangents
	l.materialLayout = layout
	return l, nil
}

func (l *loader) State() LoadState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

func (l *loader) MaterialLayout() backend.BindGroupLayout {
	return l.materialLayout
}

func (l *loader) Release() {
	l.tangents.release()
	l.materialLayout.Release()
}

// setState moves to next. Forward-only transitions are skipped when the state is already past them, so
// concurrent mesh tasks can all report the compute pass.
func (l *loader) setState(next LoadState, forwardOnly bool) {
	l.mu.Lock()
	if forwardOnly && l.state >= next {
		l.mu.Unlock()
		return
	}
	l.state = next
	observers := l.observers
	l.mu.Unlock()

	l.logger.Debug("load state", zap.Stringer("state", next))
	for _, observe := range observers {
		observe(next)
	}
}

func (l *loader) Load(ctx context.Context, path string) (model.Model, error) {
	start := time.Now()
	l.profiler.Begin(StageTotal)
	defer l.profiler.End(StageTotal)

	m, err := l.load(ctx, path)
	if err != nil {
		l.setState(StateFailed, false)
		l.logger.Debug("load failed", zap.String("path", path), zap.Error(err))
		return nil, err
	}
	l.setState(StateLoaded, false)
	l.logger.Debug("load complete",
		zap.String("path", path),
		zap.Stringer("id", m.ID()),
		zap.Int("meshes", len(m.Meshes())),
		zap.Int("materials", len(m.Materials())),
		zap.Duration("elapsed", time.Since(start)),
	)
	return m, nil
}

func (l *loader) load(ctx context.Context, path string) (model.Model, error) {
	l.setState(StateParsing, false)
	l.profiler.Begin(StageParse)
	imported, err := l.parse(path)
	l.profiler.End(StageParse)
	if err != nil {
		return nil, err
	}
	l.logger.Debug("parsed model",
		zap.String("path", path),
		zap.Int("meshes", len(imported.Meshes)),
		zap.Int("materials", len(imported.Materials)),
	)

	l.setState(StateLoadingResources, false)
	materials := make([]material.Material, len(imported.Materials))
	meshes := make([]model.Mesh, len(imported.Meshes))
	radii := make([]float32, len(imported.Meshes))

	g, gctx := errgroup.WithContext(ctx)
	if l.maxConcurrency > 0 {
		g.SetLimit(l.maxConcurrency)
	}

	l.profiler.Begin(StageMaterials)
	l.profiler.Begin(StageMeshes)
	var pendingMaterials, pendingMeshes atomic.Int32
	pendingMaterials.Store(int32(len(imported.Materials)))
	pendingMeshes.Store(int32(len(imported.Meshes)))
	if len(imported.Meshes) == 0 {
		l.profiler.End(StageMeshes)
	}

	for i := range imported.Materials {
		g.Go(func() error {
			defer func() {
				if pendingMaterials.Add(-1) == 0 {
					l.profiler.End(StageMaterials)
				}
			}()
			mat, err := l.loadMaterial(gctx, imported.Materials[i])
			if err != nil {
				return err
			}
			materials[i] = mat
			return nil
		})
	}
	for i := range imported.Meshes {
		g.Go(func() error {
			defer func() {
				if pendingMeshes.Add(-1) == 0 {
					l.profiler.End(StageMeshes)
				}
			}()
			mesh, radius, err := l.loadMesh(gctx, imported.Meshes[i])
			if err != nil {
				return err
			}
			meshes[i] = mesh
			radii[i] = radius
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		releaseAll(materials, meshes)
		return nil, err
	}

	var radius float32
	for _, r := range radii {
		radius = max(radius, r)
	}
	return model.NewModel(
		model.WithName(imported.Name),
		model.WithPath(imported.Path),
		model.WithMeshes(meshes...),
		model.WithMaterials(materials...),
		model.WithDependencies(imported.Dependencies...),
		model.WithBoundingRadius(radius),
	), nil
}

// parse resolves the import backend, imports the file and normalizes material references.
func (l *loader) parse(path string) (*common.ImportedModel, error) {
	dir := filepath.Dir(path)
	if info, err := os.Stat(dir); err != nil {
		return nil, &common.AssetParseError{Path: path, Err: fmt.Errorf("parent directory: %w", err)}
	} else if !info.IsDir() {
		return nil, &common.AssetParseError{Path: path, Err: fmt.Errorf("parent %s is not a directory", dir)}
	}

	ext := strings.ToLower(filepath.Ext(path))
	b, ok := l.backends[ext]
	if !ok {
		return nil, &common.AssetParseError{Path: path, Err: fmt.Errorf("unsupported model format %q", ext)}
	}

	imported, err := b.Import(path)
	if err != nil {
		return nil, err
	}

	if len(imported.Materials) == 0 {
		imported.Materials = []common.ImportedMaterial{{
			Name:         "default",
			DiffuseColor: [3]float32{1, 1, 1},
			Dissolve:     1,
		}}
	}
	for i := range imported.Meshes {
		mesh := &imported.Meshes[i]
		if mesh.MaterialIndex < 0 {
			mesh.MaterialIndex = 0
		}
		if mesh.MaterialIndex >= len(imported.Materials) {
			return nil, &common.AssetParseError{
				Path: path,
				Err:  fmt.Errorf("mesh %s references material %d of %d", mesh.Name, mesh.MaterialIndex, len(imported.Materials)),
			}
		}
	}
	return imported, nil
}

// loadMaterial uploads the diffuse and normal textures of one material concurrently and binds them.
func (l *loader) loadMaterial(ctx context.Context, props common.ImportedMaterial) (material.Material, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var diffuse, normal texture.Texture
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		tex, err := l.loadTexture(gctx, props.Name, props.DiffuseTexture, false)
		diffuse = tex
		return err
	})
	g.Go(func() error {
		tex, err := l.loadTexture(gctx, props.Name, props.NormalTexture, true)
		normal = tex
		return err
	})
	if err := g.Wait(); err != nil {
		for _, tex := range []texture.Texture{diffuse, normal} {
			if tex != nil {
				tex.Release()
			}
		}
		return nil, err
	}

	mat, err := material.NewMaterial(l.device, l.materialLayout,
		material.WithProperties(props),
		material.WithDiffuseTexture(diffuse),
		material.WithNormalTexture(normal),
	)
	if err != nil {
		diffuse.Release()
		normal.Release()
		return nil, err
	}
	l.logger.Debug("material loaded", zap.String("material", props.Name))
	return mat, nil
}

// loadTexture uploads a referenced texture or a 1x1 fallback when the material declares none.
func (l *loader) loadTexture(ctx context.Context, materialName string, ref *common.ImportedTexture, isNormalMap bool) (texture.Texture, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	kind, fallback := "diffuse", fallbackDiffuse
	if isNormalMap {
		kind, fallback = "normal", fallbackNormal
	}
	if ref == nil {
		return texture.Solid(l.device, materialName+"_"+kind+"_fallback", fallback, isNormalMap)
	}

	opts := append([]texture.TextureBuilderOption{texture.WithLabel(materialName + "_" + kind)}, l.textureOptions...)
	tex, err := texture.FromImported(l.device, ref, isNormalMap, opts...)
	if err != nil {
		return nil, err
	}
	l.logger.Debug("texture loaded",
		zap.String("material", materialName),
		zap.String("source", ref.Source()),
		zap.Bool("normal_map", isNormalMap),
		zap.Uint32("width", tex.Width()),
		zap.Uint32("height", tex.Height()),
	)
	return tex, nil
}

// loadMesh builds and uploads one mesh, then blocks on its tangent pass.
func (l *loader) loadMesh(ctx context.Context, imported common.ImportedMesh) (model.Mesh, float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	vertices, err := model.BuildVertices(imported.Name, imported.Positions, imported.TexCoords, imported.Normals)
	if err != nil {
		return nil, 0, err
	}
	mesh, err := model.NewMesh(l.device, imported.Name, vertices, imported.Indices, imported.MaterialIndex)
	if err != nil {
		return nil, 0, err
	}

	if err := ctx.Err(); err != nil {
		mesh.Release()
		return nil, 0, err
	}
	if mesh.NumElements() > 0 {
		l.setState(StateComputePass, true)
	}
	if err := l.tangents.run(mesh); err != nil {
		mesh.Release()
		return nil, 0, err
	}
	l.logger.Debug("mesh loaded",
		zap.String("mesh", imported.Name),
		zap.Int("vertices", len(vertices)),
		zap.Uint32("indices", mesh.NumElements()),
	)
	return mesh, model.ComputeBoundingRadius(vertices), nil
}

func releaseAll(materials []material.Material, meshes []model.Mesh) {
	for _, m := range materials {
		if m != nil {
			m.Release()
		}
	}
	for _, m := range meshes {
		if m != nil {
			m.Release()
		}
	}
}

// IsNotFound reports whether err was caused by a missing model, material library or texture file.
//
// Parameters:
//   - err: the error returned by Load
//
// Returns:
//   - bool: true if a referenced file does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
