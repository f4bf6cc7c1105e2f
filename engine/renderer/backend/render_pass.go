package backend

import (
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
)

// RenderPass is the subset of render pass encoding the draw layer issues.
type RenderPass interface {
	// SetBindGroup binds group at the given group index.
	//
	// Parameters:
	//   - index: the bind group slot
	//   - group: the bind group
	SetBindGroup(index uint32, group BindGroup)

	// SetVertexBuffer binds the whole of buf to the given vertex buffer slot.
	//
	// Parameters:
	//   - slot: the vertex buffer slot
	//   - buf: the vertex buffer
	SetVertexBuffer(slot uint32, buf Buffer)

	// SetIndexBuffer binds the whole of buf as the index buffer.
	//
	// Parameters:
	//   - buf: the index buffer
	//   - format: the index element format
	SetIndexBuffer(buf Buffer, format wgpu.IndexFormat)

	// DrawIndexed issues an indexed draw.
	//
	// Parameters:
	//   - indexCount: the number of indices to draw
	//   - instanceCount: the number of instances to draw
	//   - firstIndex: the first index in the index buffer
	//   - baseVertex: the value added to each index before fetching the vertex
	//   - firstInstance: the instance id of the first instance
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32)
}

type wgpuRenderPass struct {
	pass *wgpu.RenderPassEncoder
}

var _ RenderPass = &wgpuRenderPass{}

// NewWGPURenderPass adapts an encoder owned by a rendering front end. Every handle passed to the returned
// RenderPass must come from a WGPUDevice; foreign handles are ignored.
//
// Parameters:
//   - pass: the render pass encoder to issue commands on
//
// Returns:
//   - RenderPass: the adapted pass
func NewWGPURenderPass(pass *wgpu.RenderPassEncoder) RenderPass {
	return &wgpuRenderPass{pass: pass}
}

func (p *wgpuRenderPass) SetBindGroup(index uint32, group BindGroup) {
	if g, ok := group.(*wgpuBindGroup); ok {
		p.pass.SetBindGroup(index, g.group, nil)
	}
}

func (p *wgpuRenderPass) SetVertexBuffer(slot uint32, buf Buffer) {
	if b, ok := buf.(*wgpuBuffer); ok {
		p.pass.SetVertexBuffer(slot, b.buffer, 0, wgpu.WholeSize)
	}
}

func (p *wgpuRenderPass) SetIndexBuffer(buf Buffer, format wgpu.IndexFormat) {
	if b, ok := buf.(*wgpuBuffer); ok {
		p.pass.SetIndexBuffer(b.buffer, format, 0, wgpu.WholeSize)
	}
}

func (p *wgpuRenderPass) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	p.pass.DrawIndexed(indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
}

// CommandKind classifies a recorded render pass command.
type CommandKind int

const (
	CommandSetBindGroup CommandKind = iota
	CommandSetVertexBuffer
	CommandSetIndexBuffer
	CommandDrawIndexed
)

// RecordedCommand is one command captured by a RecordingPass. Only the fields relevant to Kind are set.
type RecordedCommand struct {
	Kind          CommandKind
	Slot          uint32
	BindGroup     BindGroup
	Buffer        Buffer
	IndexFormat   wgpu.IndexFormat
	IndexCount    uint32
	InstanceCount uint32
	FirstIndex    uint32
	BaseVertex    int32
	FirstInstance uint32
}

// RecordingPass is a RenderPass that records commands instead of encoding them, for headless frames and tests.
type RecordingPass interface {
	RenderPass

	// Commands returns a copy of every recorded command in issue order.
	//
	// Returns:
	//   - []RecordedCommand: the recorded commands
	Commands() []RecordedCommand

	// Draws returns only the recorded DrawIndexed commands.
	//
	// Returns:
	//   - []RecordedCommand: the draw commands
	Draws() []RecordedCommand

	// Reset clears the recording.
	Reset()
}

type recordingPass struct {
	mu       sync.Mutex
	commands []RecordedCommand
}

var _ RecordingPass = &recordingPass{}

// NewRecordingPass creates an empty RecordingPass.
//
// Returns:
//   - RecordingPass: the recording pass
func NewRecordingPass() RecordingPass {
	return &recordingPass{}
}

func (r *recordingPass) add(c RecordedCommand) {
	r.mu.Lock()
	r.commands = append(r.commands, c)
	r.mu.Unlock()
}

func (r *recordingPass) SetBindGroup(index uint32, group BindGroup) {
	r.add(RecordedCommand{Kind: CommandSetBindGroup, Slot: index, BindGroup: group})
}

func (r *recordingPass) SetVertexBuffer(slot uint32, buf Buffer) {
	r.add(RecordedCommand{Kind: CommandSetVertexBuffer, Slot: slot, Buffer: buf})
}

func (r *recordingPass) SetIndexBuffer(buf Buffer, format wgpu.IndexFormat) {
	r.add(RecordedCommand{Kind: CommandSetIndexBuffer, Buffer: buf, IndexFormat: format})
}

func (r *recordingPass) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	r.add(RecordedCommand{
		Kind:          CommandDrawIndexed,
		IndexCount:    indexCount,
		InstanceCount: instanceCount,
		FirstIndex:    firstIndex,
		BaseVertex:    baseVertex,
		FirstInstance: firstInstance,
	})
}

func (r *recordingPass) Commands() []RecordedCommand {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RecordedCommand, len(r.commands))
	copy(out, r.commands)
	return out
}

func (r *recordingPass) Draws() []RecordedCommand {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []RecordedCommand
	for _, c := range r.commands {
		if c.Kind == CommandDrawIndexed {
			out = append(out, c)
		}
	}
	return out
}

func (r *recordingPass) Reset() {
	r.mu.Lock()
	r.commands = nil
	r.mu.Unlock()
}
