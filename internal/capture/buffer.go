package capture

import (
	"context"
	"fmt"
	"strings"
	"time"

	"codeberg.org/mutker/irsampler/internal/burst"
	"codeberg.org/mutker/irsampler/internal/errors"
)

// EpochUnit is the unit a file's time axis origin is truncated to.
type EpochUnit string

const (
	EpochHour  EpochUnit = "hour"
	EpochDay   EpochUnit = "day"
	EpochMonth EpochUnit = "month"
)

// IsValid reports whether u is a known unit.
func (u EpochUnit) IsValid() bool {
	switch u {
	case EpochHour, EpochDay, EpochMonth:
		return true
	}

	return false
}

// Truncate returns t (in UTC) truncated to the unit.
func (u EpochUnit) Truncate(t time.Time) time.Time {
	t = t.UTC()
	switch u {
	case EpochHour:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC)
	case EpochMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
}

// Layout is the strftime-like rendering used in the time units attribute.
func (u EpochUnit) Layout() string {
	if u == EpochHour {
		return "2006-01-02 15:04:05"
	}

	return "2006-01-02"
}

// FileName derives the name hint for a file from the imager serial and the file
// boundary. Separators that collide with path syntax are stripped.
func FileName(serial int, boundary time.Time) string {
	stamp := boundary.UTC().Format("2006-01-02 15:04:05.999999999")
	stamp = strings.NewReplacer("-", "", ":", "", " ", "").Replace(stamp)

	return fmt.Sprintf("%d_%s", serial, stamp)
}

// FileBuffer accumulates the records of one file in capture order.
type FileBuffer struct {
	Name     string
	Serial   int
	Boundary time.Time
	Epoch    time.Time
	Unit     EpochUnit
	Capacity int
	Records  []*burst.Record
}

func newFileBuffer(name string, serial int, boundary, epoch time.Time, unit EpochUnit, capacity int) *FileBuffer {
	return &FileBuffer{
		Name:     name,
		Serial:   serial,
		Boundary: boundary,
		Epoch:    epoch,
		Unit:     unit,
		Capacity: capacity,
		Records:  make([]*burst.Record, 0, capacity),
	}
}

// Append adds rec; it fails once Capacity records are held.
func (b *FileBuffer) Append(rec *burst.Record) error {
	if len(b.Records) >= b.Capacity {
		return errors.New().WithData(errors.ErrInternal, struct {
			Phase    string
			Capacity int
		}{"append_record", b.Capacity})
	}
	b.Records = append(b.Records, rec)

	return nil
}

// Len returns the number of records held.
func (b *FileBuffer) Len() int {
	return len(b.Records)
}

// TimeUnits describes the records' time axis, e.g.
// "milliseconds since 2024-03-01".
func (b *FileBuffer) TimeUnits() string {
	return "milliseconds since " + b.Epoch.Format(b.Unit.Layout())
}

// Sink persists a completed FileBuffer.
type Sink interface {
	Write(ctx context.Context, buf *FileBuffer, name string, serial int) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, buf *FileBuffer, name string, serial int) error

func (f SinkFunc) Write(ctx context.Context, buf *FileBuffer, name string, serial int) error {
	return f(ctx, buf, name, serial)
}
