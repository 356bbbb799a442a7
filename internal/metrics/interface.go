package metrics

import (
	"context"
	"time"
)

// Collector receives one Snapshot per sampling window.
type Collector interface {
	Record(ctx context.Context, snapshot *Snapshot) error
	Close() error
}

// Repository stores snapshots.
type Repository interface {
	Record(snapshot *Snapshot) error
	Close() error
}

// Snapshot describes one captured window and the loop's timing around it.
type Snapshot struct {
	Timestamp time.Time
	RunID     string
	File      string
	Window    int

	NImages int
	FPS     float64

	TempChip float64
	TempBox  float64
	// TempHost is NaN when no host probe is available.
	TempHost float64

	ShutterTriggers int

	Wait           time.Duration
	DeadlineMissed bool
	FlushDuration  time.Duration
	FlushOverrun   bool
}
