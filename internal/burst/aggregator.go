// Package burst captures a fixed-size burst of frames and reduces it to
// per-pixel order statistics.
package burst

import (
	"context"
	"time"

	"codeberg.org/mutker/irsampler/internal/errors"
)

const (
	ErrInvalidBurst = errors.ErrorCode("burst_invalid_parameters")
	ErrFrameSize    = errors.ErrorCode("burst_frame_size_mismatch")
)

// FrameCount sizes a burst from the sampling window and the expected frame
// rate, rounding half up.
func FrameCount(sampleInterval time.Duration, fps float64) int {
	return int(sampleInterval.Seconds()*fps + 0.5)
}

// Aggregator captures bursts of a fixed geometry.
type Aggregator struct {
	width   int
	height  int
	nImages int
	now     func() time.Time
}

// NewAggregator validates the burst geometry.
func NewAggregator(width, height, nImages int, now func() time.Time) (*Aggregator, error) {
	if width <= 0 || height <= 0 || nImages <= 0 {
		return nil, errors.New().WithData(ErrInvalidBurst, struct {
			Width   int
			Height  int
			NImages int
		}{width, height, nImages})
	}
	if now == nil {
		now = time.Now
	}

	return &Aggregator{width: width, height: height, nImages: nImages, now: now}, nil
}

// NImages returns the burst length.
func (a *Aggregator) NImages() int {
	return a.nImages
}

// Capture pulls NImages frames from src sequentially and reduces them. If the
// source fails part way, the frames captured so far are dropped and no Record
// is returned; the error carries errors.ErrDeviceFailure.
func (a *Aggregator) Capture(ctx context.Context, src FrameSource) (*Record, error) {
	errFactory := errors.New()
	pixels := a.width * a.height
	// Sources may reuse their frame buffer between calls, so every frame is
	// copied into one backing array.
	buf := make([]uint16, a.nImages*pixels)
	frames := make([]Frame, a.nImages)

	var meta Metadata
	start := a.now()
	for i := 0; i < a.nImages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		frame, m, err := src.Capture(ctx, a.width, a.height)
		if err != nil {
			return nil, errFactory.Wrap(errors.ErrDeviceFailure, err).WithData(struct {
				Frame   int
				NImages int
				Cause   string
			}{i + 1, a.nImages, err.Error()})
		}
		if frame.Width != a.width || frame.Height != a.height || len(frame.Pix) != pixels {
			return nil, errFactory.WithData(ErrFrameSize, struct {
				Want [2]int
				Got  [2]int
			}{[2]int{a.width, a.height}, [2]int{frame.Width, frame.Height}})
		}

		dst := buf[i*pixels : (i+1)*pixels]
		copy(dst, frame.Pix)
		frames[i] = Frame{Width: a.width, Height: a.height, Pix: dst}
		meta = m
	}
	end := a.now()

	last := frames[a.nImages-1]
	rec := &Record{
		Width:    a.width,
		Height:   a.height,
		Stats:    Reduce(frames),
		Snapshot: last.Clone().Pix,
		Start:    start,
		End:      end,
		Meta:     meta,
		NImages:  a.nImages,
	}
	if elapsed := end.Sub(start).Seconds(); elapsed > 0 {
		rec.FPS = float64(a.nImages) / elapsed
	}

	return rec, nil
}
