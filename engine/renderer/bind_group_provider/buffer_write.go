package bind_group_provider

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-models/engine/renderer/backend"
)

// BufferWrite describes a single buffer write operation targeting a specific binding
// on a BindGroupProvider at a given byte offset.
type BufferWrite struct {
	Provider BindGroupProvider
	Binding  uint32
	Offset   uint64
	Data     []byte
}

// WriteBuffers applies a batch of buffer writes in order.
//
// Parameters:
//   - device: the device owning the providers' buffers
//   - writes: the writes to apply
//
// Returns:
//   - error: an error naming the first write that failed
func WriteBuffers(device backend.Device, writes ...BufferWrite) error {
	for _, w := range writes {
		buf := w.Provider.Buffer(w.Binding)
		if buf == nil {
			return fmt.Errorf("provider %s has no buffer at binding %d", w.Provider.Label(), w.Binding)
		}
		if err := device.WriteBuffer(buf, w.Offset, w.Data); err != nil {
			return fmt.Errorf("provider %s binding %d: %w", w.Provider.Label(), w.Binding, err)
		}
	}
	return nil
}
