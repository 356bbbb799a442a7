package burst

import (
	"context"
	"time"
)

const (
	// Offset and Scale describe the sensor encoding: raw = celsius*Scale + Offset.
	Offset = 1000
	Scale  = 10
)

// Frame is one thermal image stored row-major.
type Frame struct {
	Width  int
	Height int
	Pix    []uint16
}

// NewFrame allocates a zeroed frame.
func NewFrame(width, height int) Frame {
	return Frame{Width: width, Height: height, Pix: make([]uint16, width*height)}
}

// Clone returns a deep copy of f.
func (f Frame) Clone() Frame {
	pix := make([]uint16, len(f.Pix))
	copy(pix, f.Pix)
	return Frame{Width: f.Width, Height: f.Height, Pix: pix}
}

// Metadata accompanies each captured frame.
type Metadata struct {
	Counter        uint32
	CounterHW      uint32
	Timestamp      int64
	TimestampMedia int64
	FlagState      uint32
	TempChip       float32
	TempFlag       float32
	TempBox        float32
}

// FrameSource captures one frame of the given size. Errors are device-level
// failures; the aggregator does not retry.
type FrameSource interface {
	Capture(ctx context.Context, width, height int) (Frame, Metadata, error)
}

// FrameSourceFunc adapts a function to FrameSource.
type FrameSourceFunc func(ctx context.Context, width, height int) (Frame, Metadata, error)

func (f FrameSourceFunc) Capture(ctx context.Context, width, height int) (Frame, Metadata, error) {
	return f(ctx, width, height)
}

// Stats are the per-pixel reductions of a burst.
type Stats struct {
	Median []uint16
	Min    []uint16
	Max    []uint16
	Std    []uint16
}

// Record is the reduction of one burst plus its scalar metadata.
type Record struct {
	Width  int
	Height int

	Stats
	Snapshot []uint16

	Start time.Time
	End   time.Time

	// Meta is the metadata of the final frame of the burst.
	Meta Metadata
	// HostTemperature is the capturing host's temperature at burst end, NaN if
	// unavailable.
	HostTemperature float64
	// TimeOffsetMs is End relative to the file epoch, filled in by the capture
	// loop.
	TimeOffsetMs float64
	FPS          float64
	NImages      int
}
