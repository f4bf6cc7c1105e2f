package backend

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-models/common"
	"github.com/cogentcore/webgpu/wgpu"
)

type wgpuBuffer struct {
	label  string
	usage  wgpu.BufferUsage
	size   uint64
	buffer *wgpu.Buffer
}

func (b *wgpuBuffer) Label() string           { return b.label }
func (b *wgpuBuffer) Size() uint64            { return b.size }
func (b *wgpuBuffer) Usage() wgpu.BufferUsage { return b.usage }
func (b *wgpuBuffer) Release()                { b.buffer.Release() }

type wgpuTexture struct {
	label         string
	width, height uint32
	format        wgpu.TextureFormat
	texture       *wgpu.Texture
}

func (t *wgpuTexture) Label() string              { return t.label }
func (t *wgpuTexture) Width() uint32              { return t.width }
func (t *wgpuTexture) Height() uint32             { return t.height }
func (t *wgpuTexture) Format() wgpu.TextureFormat { return t.format }
func (t *wgpuTexture) Release()                   { t.texture.Release() }

type wgpuTextureView struct {
	view *wgpu.TextureView
}

func (v *wgpuTextureView) Release() { v.view.Release() }

type wgpuSampler struct {
	sampler *wgpu.Sampler
}

func (s *wgpuSampler) Release() { s.sampler.Release() }

type wgpuBindGroupLayout struct {
	label   string
	entries []wgpu.BindGroupLayoutEntry
	layout  *wgpu.BindGroupLayout
}

func (l *wgpuBindGroupLayout) Label() string                        { return l.label }
func (l *wgpuBindGroupLayout) Entries() []wgpu.BindGroupLayoutEntry { return l.entries }
func (l *wgpuBindGroupLayout) Release()                             { l.layout.Release() }

type wgpuBindGroup struct {
	label string
	group *wgpu.BindGroup
}

func (g *wgpuBindGroup) Label() string { return g.label }
func (g *wgpuBindGroup) Release()      { g.group.Release() }

type wgpuComputePipeline struct {
	label      string
	entryPoint string
	module     *wgpu.ShaderModule
	layout     *wgpu.PipelineLayout
	pipeline   *wgpu.ComputePipeline
}

func (p *wgpuComputePipeline) Label() string      { return p.label }
func (p *wgpuComputePipeline) EntryPoint() string { return p.entryPoint }
func (p *wgpuComputePipeline) Release() {
	p.pipeline.Release()
	p.layout.Release()
	p.module.Release()
}

type wgpuDeviceImpl struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	// instance and adapter are only owned when the device was requested by NewWGPUDevice.
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	owned    bool
}

// WGPUDevice is a Device backed by a WebGPU device and queue.
// The raw handles are exposed so a rendering front end can share them.
type WGPUDevice interface {
	Device

	// Raw returns the underlying WebGPU device.
	//
	// Returns:
	//   - *wgpu.Device: the device
	Raw() *wgpu.Device

	// Queue returns the underlying WebGPU queue.
	//
	// Returns:
	//   - *wgpu.Queue: the queue
	Queue() *wgpu.Queue
}

var _ WGPUDevice = &wgpuDeviceImpl{}

// NewWGPUDevice requests a headless adapter and device. No surface is created; the device is usable for
// resource creation and compute work, and its raw handles can be adopted by a front end.
//
// Parameters:
//   - options: a variadic list of WGPUDeviceBuilderOption functions to configure the request
//
// Returns:
//   - WGPUDevice: the created device
//   - error: an error if no adapter or device could be acquired
func NewWGPUDevice(options ...WGPUDeviceBuilderOption) (WGPUDevice, error) {
	cfg := &wgpuDeviceConfig{
		label:           "oxy-models Device",
		powerPreference: wgpu.PowerPreferenceHighPerformance,
	}
	for _, opt := range options {
		opt(cfg)
	}

	runtime.LockOSThread()
	instance := wgpu.CreateInstance(nil)
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: cfg.forceFallbackAdapter,
		PowerPreference:      cfg.powerPreference,
	})
	if err != nil {
		instance.Release()
		return nil, fmt.Errorf("failed to request adapter: %w", err)
	}

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: cfg.label,
	})
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("failed to request device: %w", err)
	}

	return &wgpuDeviceImpl{
		mu:       &sync.Mutex{},
		device:   device,
		queue:    device.GetQueue(),
		instance: instance,
		adapter:  adapter,
		owned:    true,
	}, nil
}

// WrapWGPUDevice adopts a device and queue owned by a rendering front end. Release on the returned
// Device does not release the wrapped handles.
//
// Parameters:
//   - device: the WebGPU device
//   - queue: the device's queue
//
// Returns:
//   - WGPUDevice: a Device using the given handles
func WrapWGPUDevice(device *wgpu.Device, queue *wgpu.Queue) WGPUDevice {
	return &wgpuDeviceImpl{
		mu:     &sync.Mutex{},
		device: device,
		queue:  queue,
	}
}

func (d *wgpuDeviceImpl) Type() BackendType {
	return BackendTypeWGPU
}

func (d *wgpuDeviceImpl) Raw() *wgpu.Device {
	return d.device
}

func (d *wgpuDeviceImpl) Queue() *wgpu.Queue {
	return d.queue
}

func (d *wgpuDeviceImpl) CreateBuffer(desc BufferDescriptor) (Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(desc.Contents) > 0 {
		buf, err := d.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
			Label:    desc.Label,
			Contents: desc.Contents,
			Usage:    desc.Usage,
		})
		if err != nil {
			return nil, err
		}
		return &wgpuBuffer{label: desc.Label, usage: desc.Usage, size: buf.GetSize(), buffer: buf}, nil
	}

	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            desc.Label,
		Size:             common.AlignTo(desc.Size, wgpu.CopyBufferAlignment),
		Usage:            desc.Usage,
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuBuffer{label: desc.Label, usage: desc.Usage, size: buf.GetSize(), buffer: buf}, nil
}

func (d *wgpuDeviceImpl) WriteBuffer(buf Buffer, offset uint64, data []byte) error {
	b, ok := buf.(*wgpuBuffer)
	if !ok {
		return ErrForeignHandle
	}
	if offset+uint64(len(data)) > b.size {
		return fmt.Errorf("write of %d bytes at offset %d exceeds buffer %q of size %d", len(data), offset, b.label, b.size)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue.WriteBuffer(b.buffer, offset, data)
	return nil
}

func (d *wgpuDeviceImpl) ReadBuffer(buf Buffer) ([]byte, error) {
	b, ok := buf.(*wgpuBuffer)
	if !ok {
		return nil, ErrForeignHandle
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	staging, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: b.label + " Readback",
		Size:  b.size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	defer staging.Release()

	encoder, err := d.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: b.label + " Readback Encoder"})
	if err != nil {
		return nil, err
	}
	defer encoder.Release()
	encoder.CopyBufferToBuffer(b.buffer, 0, staging, 0, b.size)

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return nil, err
	}
	defer commandBuffer.Release()
	d.queue.Submit(commandBuffer)

	var status wgpu.BufferMapAsyncStatus
	err = staging.MapAsync(wgpu.MapModeRead, 0, b.size, func(s wgpu.BufferMapAsyncStatus) {
		status = s
	})
	if err != nil {
		return nil, err
	}
	d.device.Poll(true, nil)
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, fmt.Errorf("mapping readback of %q failed: %s", b.label, status.String())
	}

	out := make([]byte, b.size)
	copy(out, staging.GetMappedRange(0, uint(b.size)))
	staging.Unmap()
	return out, nil
}

func (d *wgpuDeviceImpl) CreateTexture(desc TextureDescriptor) (Texture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	usage := common.Coalesce(desc.Usage, wgpu.TextureUsageTextureBinding|wgpu.TextureUsageCopyDst)
	size := wgpu.Extent3D{
		Width:              desc.Staging.Width,
		Height:             desc.Staging.Height,
		DepthOrArrayLayers: 1,
	}
	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         desc.Label,
		Usage:         usage,
		Dimension:     wgpu.TextureDimension2D,
		Size:          size,
		Format:        desc.Format,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, err
	}

	d.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  tex,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		desc.Staging.Pixels,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  desc.Staging.Width * 4,
			RowsPerImage: desc.Staging.Height,
		},
		&size,
	)

	return &wgpuTexture{
		label:   desc.Label,
		width:   desc.Staging.Width,
		height:  desc.Staging.Height,
		format:  desc.Format,
		texture: tex,
	}, nil
}

func (d *wgpuDeviceImpl) CreateTextureView(tex Texture) (TextureView, error) {
	t, ok := tex.(*wgpuTexture)
	if !ok {
		return nil, ErrForeignHandle
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	view, err := t.texture.CreateView(nil)
	if err != nil {
		return nil, err
	}
	return &wgpuTextureView{view: view}, nil
}

func (d *wgpuDeviceImpl) CreateSampler(label string, data common.SamplerStagingData) (Sampler, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	samp, err := d.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         label,
		AddressModeU:  common.Coalesce(data.AddressModeU, wgpu.AddressModeRepeat),
		AddressModeV:  common.Coalesce(data.AddressModeV, wgpu.AddressModeRepeat),
		AddressModeW:  common.Coalesce(data.AddressModeW, wgpu.AddressModeRepeat),
		MagFilter:     common.Coalesce(data.MagFilter, wgpu.FilterModeLinear),
		MinFilter:     common.Coalesce(data.MinFilter, wgpu.FilterModeLinear),
		MipmapFilter:  common.Coalesce(data.MipmapFilter, wgpu.MipmapFilterModeLinear),
		LodMinClamp:   common.Coalesce(data.LodMinClamp, 0.0),
		LodMaxClamp:   common.Coalesce(data.LodMaxClamp, 32.0),
		MaxAnisotropy: common.Coalesce(data.MaxAnisotropy, 1),
		Compare:       data.Compare,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuSampler{sampler: samp}, nil
}

func (d *wgpuDeviceImpl) CreateBindGroupLayout(label string, entries []wgpu.BindGroupLayoutEntry) (BindGroupLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	layout, err := d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   label,
		Entries: entries,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuBindGroupLayout{label: label, entries: entries, layout: layout}, nil
}

func (d *wgpuDeviceImpl) CreateBindGroup(desc BindGroupDescriptor) (BindGroup, error) {
	layout, ok := desc.Layout.(*wgpuBindGroupLayout)
	if !ok {
		return nil, ErrForeignHandle
	}

	entries := make([]wgpu.BindGroupEntry, len(desc.Entries))
	for i, entry := range desc.Entries {
		e := wgpu.BindGroupEntry{Binding: entry.Binding}
		switch {
		case entry.Buffer != nil:
			b, ok := entry.Buffer.(*wgpuBuffer)
			if !ok {
				return nil, ErrForeignHandle
			}
			e.Buffer = b.buffer
			e.Offset = 0
			e.Size = wgpu.WholeSize
		case entry.TextureView != nil:
			v, ok := entry.TextureView.(*wgpuTextureView)
			if !ok {
				return nil, ErrForeignHandle
			}
			e.TextureView = v.view
		case entry.Sampler != nil:
			s, ok := entry.Sampler.(*wgpuSampler)
			if !ok {
				return nil, ErrForeignHandle
			}
			e.Sampler = s.sampler
		default:
			return nil, fmt.Errorf("binding %d has no resource: %w", entry.Binding, ErrBindingMismatch)
		}
		entries[i] = e
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	group, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   desc.Label,
		Layout:  layout.layout,
		Entries: entries,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuBindGroup{label: desc.Label, group: group}, nil
}

func (d *wgpuDeviceImpl) CreateComputePipeline(desc ComputePipelineDescriptor) (ComputePipeline, error) {
	layouts := make([]*wgpu.BindGroupLayout, len(desc.BindGroupLayouts))
	for i, l := range desc.BindGroupLayouts {
		layout, ok := l.(*wgpuBindGroupLayout)
		if !ok {
			return nil, ErrForeignHandle
		}
		layouts[i] = layout.layout
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	module, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: desc.Label + " Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: desc.Source,
		},
	})
	if err != nil {
		return nil, err
	}

	pipelineLayout, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Label + " Layout",
		BindGroupLayouts: layouts,
	})
	if err != nil {
		module.Release()
		return nil, err
	}

	created, err := d.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  desc.Label + " Compute Pipeline",
		Layout: pipelineLayout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: desc.EntryPoint,
		},
	})
	if err != nil {
		pipelineLayout.Release()
		module.Release()
		return nil, err
	}

	return &wgpuComputePipeline{
		label:      desc.Label,
		entryPoint: desc.EntryPoint,
		module:     module,
		layout:     pipelineLayout,
		pipeline:   created,
	}, nil
}

func (d *wgpuDeviceImpl) DispatchCompute(pipeline ComputePipeline, bindGroup BindGroup, workgroups [3]uint32) error {
	p, ok := pipeline.(*wgpuComputePipeline)
	if !ok {
		return ErrForeignHandle
	}
	g, ok := bindGroup.(*wgpuBindGroup)
	if !ok {
		return ErrForeignHandle
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	encoder, err := d.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: p.label + " Encoder"})
	if err != nil {
		return err
	}
	defer encoder.Release()

	pass := encoder.BeginComputePass(&wgpu.ComputePassDescriptor{Label: p.label + " Pass"})
	pass.SetPipeline(p.pipeline)
	pass.SetBindGroup(0, g.group, nil)
	pass.DispatchWorkgroups(workgroups[0], workgroups[1], workgroups[2])
	pass.End()
	pass.Release()

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	d.queue.Submit(commandBuffer)
	commandBuffer.Release()
	return nil
}

func (d *wgpuDeviceImpl) WaitIdle() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.device.Poll(true, nil)
	return nil
}

func (d *wgpuDeviceImpl) Release() {
	if !d.owned {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	d.queue.Release()
	d.device.Release()
	d.adapter.Release()
	d.instance.Release()
}
