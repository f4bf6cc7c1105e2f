package loader

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-models/engine/model"
	"github.com/Carmen-Shannon/oxy-models/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-models/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-models/engine/renderer/shader"
	"go.uber.org/zap"
)

// tangentCalculator runs the tangent compute shader over a mesh's vertex and index buffers in place.
// The binder and pipeline are shared by every load of the owning loader.
type tangentCalculator struct {
	// mu serializes dispatch + barrier pairs so each mesh observes its own completed pass
	mu sync.Mutex

	device   backend.Device
	binder   bind_group_provider.Binder
	pipeline backend.ComputePipeline
	logger   *zap.Logger
}

// newTangentCalculator creates the shared Binder and compute pipeline for the given shader.
// On a software device the CPU kernel of the built-in shader is registered under its entry point.
//
// Parameters:
//   - device: the device to create the pipeline on
//   - computeShader: the tangent compute shader
//   - logger: the logger for per-mesh dispatch progress
//
// Returns:
//   - *tangentCalculator: the calculator
//   - error: an error if the shader does not match the storage layout or the pipeline cannot be created
func newTangentCalculator(device backend.Device, computeShader shader.Shader, logger *zap.Logger) (*tangentCalculator, error) {
	if computeShader.ShaderType() != shader.ShaderTypeCompute {
		return nil, fmt.Errorf("shader %s is not a compute shader", computeShader.Key())
	}

	binder, err := bind_group_provider.NewBinder(device, bind_group_provider.WithBinderLabel("ModelLoader Binder"))
	if err != nil {
		return nil, err
	}
	if err := shader.ValidateBindings(computeShader, 0, binder.Layout().Entries()); err != nil {
		binder.Release()
		return nil, err
	}

	if sw, ok := device.(backend.SoftwareDevice); ok && computeShader.Key() == shader.TangentShaderKey {
		sw.RegisterKernel(computeShader.EntryPoint(), shader.TangentKernel)
	}

	pipeline, err := device.CreateComputePipeline(backend.ComputePipelineDescriptor{
		Label:            "ModelLoader ComputePipeline",
		Source:           computeShader.Source(),
		EntryPoint:       computeShader.EntryPoint(),
		BindGroupLayouts: []backend.BindGroupLayout{binder.Layout()},
	})
	if err != nil {
		binder.Release()
		return nil, fmt.Errorf("failed to create tangent pipeline: %w", err)
	}

	return &tangentCalculator{
		device:   device,
		binder:   binder,
		pipeline: pipeline,
		logger:   logger,
	}, nil
}

// run dispatches one invocation per triangle of mesh and blocks until the device is idle.
// Meshes without faces are skipped.
func (c *tangentCalculator) run(mesh model.Mesh) error {
	triangles := mesh.NumElements() / 3
	if triangles == 0 {
		return nil
	}

	group, err := c.binder.CreateBindGroup(mesh.Name()+" Mesh BindGroup", mesh)
	if err != nil {
		return fmt.Errorf("mesh %s: %w", mesh.Name(), err)
	}
	defer group.Release()

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.device.DispatchCompute(c.pipeline, group, shader.TangentDispatchSize(triangles)); err != nil {
		return fmt.Errorf("mesh %s: tangent dispatch failed: %w", mesh.Name(), err)
	}
	if err := c.device.WaitIdle(); err != nil {
		return fmt.Errorf("mesh %s: tangent pass failed: %w", mesh.Name(), err)
	}
	c.logger.Debug("tangent pass complete",
		zap.String("mesh", mesh.Name()),
		zap.Uint32("triangles", triangles),
	)
	return nil
}

func (c *tangentCalculator) release() {
	c.pipeline.Release()
	c.binder.Release()
}
