package backend

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-models/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// Kernel executes a compute program on the CPU against the raw bytes bound to group 0, keyed by binding index.
// Kernels mutate the bound slices in place.
type Kernel func(workgroups [3]uint32, bindings map[uint32][]byte) error

// EventKind classifies a software device journal entry.
type EventKind int

const (
	EventCreateBuffer EventKind = iota
	EventWriteBuffer
	EventCreateTexture
	EventCreateBindGroup
	EventCreatePipeline
	EventDispatch
	EventExecute
	EventWaitIdle
	EventRelease
)

func (k EventKind) String() string {
	switch k {
	case EventCreateBuffer:
		return "create-buffer"
	case EventWriteBuffer:
		return "write-buffer"
	case EventCreateTexture:
		return "create-texture"
	case EventCreateBindGroup:
		return "create-bind-group"
	case EventCreatePipeline:
		return "create-pipeline"
	case EventDispatch:
		return "dispatch"
	case EventExecute:
		return "execute"
	case EventWaitIdle:
		return "wait-idle"
	case EventRelease:
		return "release"
	default:
		return "unknown"
	}
}

// DeviceEvent is one entry of the software device journal.
type DeviceEvent struct {
	Kind  EventKind
	Label string
}

// SoftwareStats counts resources and work on a software device.
type SoftwareStats struct {
	// LiveBuffers, LiveTextures and LiveBindGroups count handles created and not yet released.
	LiveBuffers, LiveTextures, LiveBindGroups int
	// Dispatches counts submitted compute passes, Executed counts those that ran.
	Dispatches, Executed int
	// Pending counts submitted compute passes that have not run yet.
	Pending int
	// Barriers counts WaitIdle calls.
	Barriers int
}

// SoftwareDevice is a Device that keeps every resource in host memory and runs compute pipelines as
// registered Go kernels. Submitted dispatches are queued and only run when WaitIdle is called or a
// buffer is read back, so a missing barrier leaves buffers in their pre-dispatch state.
type SoftwareDevice interface {
	Device

	// RegisterKernel registers the CPU kernel for an entry point, replacing any previous one.
	//
	// Parameters:
	//   - entryPoint: the shader entry point name
	//   - kernel: the kernel to run
	RegisterKernel(entryPoint string, kernel Kernel)

	// Stats returns a snapshot of the device counters.
	//
	// Returns:
	//   - SoftwareStats: the counters
	Stats() SoftwareStats

	// Journal returns the recorded device events, empty unless WithJournal(true) was applied.
	//
	// Returns:
	//   - []DeviceEvent: a copy of the journal
	Journal() []DeviceEvent

	// TexturePixels returns a copy of the RGBA pixels uploaded to tex.
	//
	// Parameters:
	//   - tex: a texture created by this device
	//
	// Returns:
	//   - []byte: the pixel data
	//   - error: an error if the texture is foreign or released
	TexturePixels(tex Texture) ([]byte, error)

	// SamplerData returns the configuration a sampler was created with.
	//
	// Parameters:
	//   - sampler: a sampler created by this device
	//
	// Returns:
	//   - common.SamplerStagingData: the sampler configuration
	//   - error: an error if the sampler is foreign or released
	SamplerData(sampler Sampler) (common.SamplerStagingData, error)
}

type softwareResource struct {
	owner    *softwareDevice
	released bool
}

type softwareBuffer struct {
	softwareResource
	label string
	usage wgpu.BufferUsage
	data  []byte
}

func (b *softwareBuffer) Label() string           { return b.label }
func (b *softwareBuffer) Size() uint64            { return uint64(len(b.data)) }
func (b *softwareBuffer) Usage() wgpu.BufferUsage { return b.usage }
func (b *softwareBuffer) Release() {
	b.owner.release(&b.softwareResource, b.label, func(s *SoftwareStats) { s.LiveBuffers-- })
}

type softwareTexture struct {
	softwareResource
	label         string
	width, height uint32
	format        wgpu.TextureFormat
	pixels        []byte
}

func (t *softwareTexture) Label() string              { return t.label }
func (t *softwareTexture) Width() uint32              { return t.width }
func (t *softwareTexture) Height() uint32             { return t.height }
func (t *softwareTexture) Format() wgpu.TextureFormat { return t.format }
func (t *softwareTexture) Release() {
	t.owner.release(&t.softwareResource, t.label, func(s *SoftwareStats) { s.LiveTextures-- })
}

type softwareTextureView struct {
	softwareResource
	texture *softwareTexture
}

func (v *softwareTextureView) Release() {
	v.owner.release(&v.softwareResource, v.texture.label+" View", nil)
}

type softwareSampler struct {
	softwareResource
	label string
	data  common.SamplerStagingData
}

func (s *softwareSampler) Release() {
	s.owner.release(&s.softwareResource, s.label, nil)
}

type softwareBindGroupLayout struct {
	softwareResource
	label   string
	entries []wgpu.BindGroupLayoutEntry
}

func (l *softwareBindGroupLayout) Label() string                        { return l.label }
func (l *softwareBindGroupLayout) Entries() []wgpu.BindGroupLayoutEntry { return l.entries }
func (l *softwareBindGroupLayout) Release() {
	l.owner.release(&l.softwareResource, l.label, nil)
}

type softwareBindGroup struct {
	softwareResource
	label   string
	layout  *softwareBindGroupLayout
	buffers map[uint32]*softwareBuffer
}

func (g *softwareBindGroup) Label() string { return g.label }
func (g *softwareBindGroup) Release() {
	g.owner.release(&g.softwareResource, g.label, func(s *SoftwareStats) { s.LiveBindGroups-- })
}

type softwareComputePipeline struct {
	softwareResource
	label      string
	entryPoint string
	layouts    []*softwareBindGroupLayout
}

func (p *softwareComputePipeline) Label() string      { return p.label }
func (p *softwareComputePipeline) EntryPoint() string { return p.entryPoint }
func (p *softwareComputePipeline) Release() {
	p.owner.release(&p.softwareResource, p.label, nil)
}

type pendingDispatch struct {
	pipeline   *softwareComputePipeline
	group      *softwareBindGroup
	workgroups [3]uint32
}

type softwareDevice struct {
	mu             *sync.Mutex
	kernels        map[string]Kernel
	pending        []pendingDispatch
	stats          SoftwareStats
	journalEnabled bool
	journal        []DeviceEvent
}

var _ SoftwareDevice = &softwareDevice{}

// NewSoftwareDevice creates a software device with the specified options applied.
//
// Parameters:
//   - options: a variadic list of SoftwareDeviceBuilderOption functions to configure the device
//
// Returns:
//   - SoftwareDevice: the created device
func NewSoftwareDevice(options ...SoftwareDeviceBuilderOption) SoftwareDevice {
	d := &softwareDevice{
		mu:      &sync.Mutex{},
		kernels: make(map[string]Kernel),
	}
	for _, opt := range options {
		opt(d)
	}
	return d
}

func (d *softwareDevice) record(kind EventKind, label string) {
	if d.journalEnabled {
		d.journal = append(d.journal, DeviceEvent{Kind: kind, Label: label})
	}
}

func (d *softwareDevice) release(r *softwareResource, label string, update func(*SoftwareStats)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if r.released {
		return
	}
	r.released = true
	if update != nil {
		update(&d.stats)
	}
	d.record(EventRelease, label)
}

func (d *softwareDevice) own(r *softwareResource) error {
	if r.owner != d {
		return ErrForeignHandle
	}
	if r.released {
		return ErrReleased
	}
	return nil
}

func (d *softwareDevice) Type() BackendType {
	return BackendTypeSoftware
}

func (d *softwareDevice) RegisterKernel(entryPoint string, kernel Kernel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.kernels[entryPoint] = kernel
}

func (d *softwareDevice) Stats() SoftwareStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.stats
	s.Pending = len(d.pending)
	return s
}

func (d *softwareDevice) Journal() []DeviceEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]DeviceEvent, len(d.journal))
	copy(out, d.journal)
	return out
}

func (d *softwareDevice) CreateBuffer(desc BufferDescriptor) (Buffer, error) {
	size := desc.Size
	if len(desc.Contents) > 0 {
		size = uint64(len(desc.Contents))
	}
	size = common.AlignTo(size, 4)
	if size == 0 {
		return nil, fmt.Errorf("buffer %q has zero size", desc.Label)
	}

	data := make([]byte, size)
	copy(data, desc.Contents)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats.LiveBuffers++
	d.record(EventCreateBuffer, desc.Label)
	return &softwareBuffer{
		softwareResource: softwareResource{owner: d},
		label:            desc.Label,
		usage:            desc.Usage,
		data:             data,
	}, nil
}

func (d *softwareDevice) WriteBuffer(buf Buffer, offset uint64, data []byte) error {
	b, ok := buf.(*softwareBuffer)
	if !ok {
		return ErrForeignHandle
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.own(&b.softwareResource); err != nil {
		return err
	}
	if offset+uint64(len(data)) > uint64(len(b.data)) {
		return fmt.Errorf("write of %d bytes at offset %d exceeds buffer %q of size %d", len(data), offset, b.label, len(b.data))
	}
	copy(b.data[offset:], data)
	d.record(EventWriteBuffer, b.label)
	return nil
}

func (d *softwareDevice) ReadBuffer(buf Buffer) ([]byte, error) {
	b, ok := buf.(*softwareBuffer)
	if !ok {
		return nil, ErrForeignHandle
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.own(&b.softwareResource); err != nil {
		return nil, err
	}
	if b.usage&wgpu.BufferUsageCopySrc == 0 {
		return nil, fmt.Errorf("buffer %q was not created with copy-src usage", b.label)
	}
	if err := d.drain(); err != nil {
		return nil, err
	}
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out, nil
}

func (d *softwareDevice) CreateTexture(desc TextureDescriptor) (Texture, error) {
	w, h := desc.Staging.Width, desc.Staging.Height
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("texture %q has zero extent", desc.Label)
	}
	if uint64(len(desc.Staging.Pixels)) != uint64(w)*uint64(h)*4 {
		return nil, fmt.Errorf("texture %q expects %d bytes of RGBA8 data, got %d", desc.Label, uint64(w)*uint64(h)*4, len(desc.Staging.Pixels))
	}
	if desc.Format == wgpu.TextureFormatUndefined {
		return nil, fmt.Errorf("texture %q has no format", desc.Label)
	}

	pixels := make([]byte, len(desc.Staging.Pixels))
	copy(pixels, desc.Staging.Pixels)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats.LiveTextures++
	d.record(EventCreateTexture, desc.Label)
	return &softwareTexture{
		softwareResource: softwareResource{owner: d},
		label:            desc.Label,
		width:            w,
		height:           h,
		format:           desc.Format,
		pixels:           pixels,
	}, nil
}

func (d *softwareDevice) SamplerData(sampler Sampler) (common.SamplerStagingData, error) {
	s, ok := sampler.(*softwareSampler)
	if !ok {
		return common.SamplerStagingData{}, ErrForeignHandle
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.own(&s.softwareResource); err != nil {
		return common.SamplerStagingData{}, err
	}
	return s.data, nil
}

func (d *softwareDevice) TexturePixels(tex Texture) ([]byte, error) {
	t, ok := tex.(*softwareTexture)
	if !ok {
		return nil, ErrForeignHandle
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.own(&t.softwareResource); err != nil {
		return nil, err
	}
	out := make([]byte, len(t.pixels))
	copy(out, t.pixels)
	return out, nil
}

func (d *softwareDevice) CreateTextureView(tex Texture) (TextureView, error) {
	t, ok := tex.(*softwareTexture)
	if !ok {
		return nil, ErrForeignHandle
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.own(&t.softwareResource); err != nil {
		return nil, err
	}
	return &softwareTextureView{softwareResource: softwareResource{owner: d}, texture: t}, nil
}

func (d *softwareDevice) CreateSampler(label string, data common.SamplerStagingData) (Sampler, error) {
	return &softwareSampler{softwareResource: softwareResource{owner: d}, label: label, data: data}, nil
}

func (d *softwareDevice) CreateBindGroupLayout(label string, entries []wgpu.BindGroupLayoutEntry) (BindGroupLayout, error) {
	seen := make(map[uint32]bool, len(entries))
	for _, e := range entries {
		if seen[e.Binding] {
			return nil, fmt.Errorf("layout %q declares binding %d twice: %w", label, e.Binding, ErrBindingMismatch)
		}
		seen[e.Binding] = true
		if e.Visibility == wgpu.ShaderStageNone {
			return nil, fmt.Errorf("layout %q binding %d is not visible to any stage", label, e.Binding)
		}
	}

	copied := make([]wgpu.BindGroupLayoutEntry, len(entries))
	copy(copied, entries)
	return &softwareBindGroupLayout{softwareResource: softwareResource{owner: d}, label: label, entries: copied}, nil
}

func (d *softwareDevice) CreateBindGroup(desc BindGroupDescriptor) (BindGroup, error) {
	layout, ok := desc.Layout.(*softwareBindGroupLayout)
	if !ok {
		return nil, ErrForeignHandle
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.own(&layout.softwareResource); err != nil {
		return nil, err
	}

	byBinding := make(map[uint32]BindGroupEntry, len(desc.Entries))
	for _, e := range desc.Entries {
		if _, dup := byBinding[e.Binding]; dup {
			return nil, fmt.Errorf("bind group %q sets binding %d twice: %w", desc.Label, e.Binding, ErrBindingMismatch)
		}
		byBinding[e.Binding] = e
	}
	if len(byBinding) != len(layout.entries) {
		return nil, fmt.Errorf("bind group %q has %d entries, layout %q declares %d: %w",
			desc.Label, len(byBinding), layout.label, len(layout.entries), ErrBindingMismatch)
	}

	buffers := make(map[uint32]*softwareBuffer)
	for _, le := range layout.entries {
		e, ok := byBinding[le.Binding]
		if !ok {
			return nil, fmt.Errorf("bind group %q is missing binding %d: %w", desc.Label, le.Binding, ErrBindingMismatch)
		}
		if err := d.checkEntry(desc.Label, le, e); err != nil {
			return nil, err
		}
		if le.Buffer.Type != wgpu.BufferBindingTypeUndefined {
			buffers[le.Binding] = e.Buffer.(*softwareBuffer)
		}
	}

	d.stats.LiveBindGroups++
	d.record(EventCreateBindGroup, desc.Label)
	return &softwareBindGroup{
		softwareResource: softwareResource{owner: d},
		label:            desc.Label,
		layout:           layout,
		buffers:          buffers,
	}, nil
}

// checkEntry validates one bind group entry against its layout entry. Callers hold d.mu.
func (d *softwareDevice) checkEntry(group string, le wgpu.BindGroupLayoutEntry, e BindGroupEntry) error {
	switch {
	case le.Buffer.Type != wgpu.BufferBindingTypeUndefined:
		b, ok := e.Buffer.(*softwareBuffer)
		if !ok || e.Buffer == nil {
			return fmt.Errorf("bind group %q binding %d expects a buffer: %w", group, le.Binding, ErrBindingMismatch)
		}
		if err := d.own(&b.softwareResource); err != nil {
			return err
		}
		var required wgpu.BufferUsage
		switch le.Buffer.Type {
		case wgpu.BufferBindingTypeUniform:
			required = wgpu.BufferUsageUniform
		default:
			required = wgpu.BufferUsageStorage
		}
		if b.usage&required == 0 {
			return fmt.Errorf("bind group %q binding %d buffer %q lacks usage %d: %w", group, le.Binding, b.label, required, ErrBindingMismatch)
		}
		if le.Buffer.MinBindingSize > 0 && uint64(len(b.data)) < le.Buffer.MinBindingSize {
			return fmt.Errorf("bind group %q binding %d buffer %q is smaller than %d bytes: %w", group, le.Binding, b.label, le.Buffer.MinBindingSize, ErrBindingMismatch)
		}
	case le.Texture.SampleType != wgpu.TextureSampleTypeUndefined:
		v, ok := e.TextureView.(*softwareTextureView)
		if !ok || e.TextureView == nil {
			return fmt.Errorf("bind group %q binding %d expects a texture view: %w", group, le.Binding, ErrBindingMismatch)
		}
		if err := d.own(&v.softwareResource); err != nil {
			return err
		}
	case le.Sampler.Type != wgpu.SamplerBindingTypeUndefined:
		s, ok := e.Sampler.(*softwareSampler)
		if !ok || e.Sampler == nil {
			return fmt.Errorf("bind group %q binding %d expects a sampler: %w", group, le.Binding, ErrBindingMismatch)
		}
		if err := d.own(&s.softwareResource); err != nil {
			return err
		}
	default:
		return fmt.Errorf("bind group %q binding %d has an unsupported layout entry: %w", group, le.Binding, ErrBindingMismatch)
	}
	return nil
}

func (d *softwareDevice) CreateComputePipeline(desc ComputePipelineDescriptor) (ComputePipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.kernels[desc.EntryPoint]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKernel, desc.EntryPoint)
	}
	layouts := make([]*softwareBindGroupLayout, len(desc.BindGroupLayouts))
	for i, l := range desc.BindGroupLayouts {
		layout, ok := l.(*softwareBindGroupLayout)
		if !ok {
			return nil, ErrForeignHandle
		}
		if err := d.own(&layout.softwareResource); err != nil {
			return nil, err
		}
		layouts[i] = layout
	}

	d.record(EventCreatePipeline, desc.Label)
	return &softwareComputePipeline{
		softwareResource: softwareResource{owner: d},
		label:            desc.Label,
		entryPoint:       desc.EntryPoint,
		layouts:          layouts,
	}, nil
}

func (d *softwareDevice) DispatchCompute(pipeline ComputePipeline, bindGroup BindGroup, workgroups [3]uint32) error {
	p, ok := pipeline.(*softwareComputePipeline)
	if !ok {
		return ErrForeignHandle
	}
	g, ok := bindGroup.(*softwareBindGroup)
	if !ok {
		return ErrForeignHandle
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.own(&p.softwareResource); err != nil {
		return err
	}
	if err := d.own(&g.softwareResource); err != nil {
		return err
	}
	if len(p.layouts) == 0 || p.layouts[0] != g.layout {
		return fmt.Errorf("bind group %q does not use the layout of pipeline %q group 0: %w", g.label, p.label, ErrBindingMismatch)
	}

	d.pending = append(d.pending, pendingDispatch{pipeline: p, group: g, workgroups: workgroups})
	d.stats.Dispatches++
	d.record(EventDispatch, p.label+" "+g.label)
	return nil
}

func (d *softwareDevice) WaitIdle() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stats.Barriers++
	err := d.drain()
	d.record(EventWaitIdle, "")
	return err
}

// drain runs every queued dispatch in submission order. Callers hold d.mu.
func (d *softwareDevice) drain() error {
	pending := d.pending
	d.pending = nil

	var firstErr error
	for _, work := range pending {
		kernel := d.kernels[work.pipeline.entryPoint]
		bindings := make(map[uint32][]byte, len(work.group.buffers))
		for binding, buf := range work.group.buffers {
			bindings[binding] = buf.data
		}
		if err := kernel(work.workgroups, bindings); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("kernel %s on %q: %w", work.pipeline.entryPoint, work.group.label, err)
		}
		d.stats.Executed++
		d.record(EventExecute, work.pipeline.label+" "+work.group.label)
	}
	return firstErr
}

func (d *softwareDevice) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = nil
}
