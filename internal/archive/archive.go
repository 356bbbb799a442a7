// Package archive stores completed files of sample records as SQLite
// databases, one database per file boundary.
package archive

import (
	"context"
	"database/sql"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"codeberg.org/mutker/irsampler/internal/burst"
	"codeberg.org/mutker/irsampler/internal/capture"
	"codeberg.org/mutker/irsampler/internal/errors"
	"codeberg.org/mutker/irsampler/internal/logger"
	_ "github.com/mattn/go-sqlite3"
)

const (
	defaultDirPerm = 0o755

	// Extension is appended to the file name hint.
	Extension = ".sqlite"

	DefaultDescription = "irsampler"
)

// Attribute keys written once per archive file.
const (
	AttrDescription   = "description"
	AttrSerial        = "serial"
	AttrScalingFactor = "scaling_factor"
	AttrOffset        = "add_offset"
	AttrImagerConfig  = "imager_config"
	AttrTimeUnits     = "time_units"
	AttrEpoch         = "epoch"
	AttrFileBoundary  = "file_boundary"
	AttrRunID         = "run_id"
	AttrXAxis         = "x_axis"
	AttrYAxis         = "y_axis"
	AttrCreatedAt     = "created_at"
)

// Options configure a Writer.
type Options struct {
	Dir          string
	Description  string
	ImagerConfig []byte
	RunID        string
}

// Writer is a capture.Sink writing each FileBuffer to <Dir>/<name>.sqlite.
// A name that already exists is appended to.
type Writer struct {
	opts Options
	log  logger.Logger
}

var _ capture.Sink = (*Writer)(nil)

func New(opts Options, log logger.Logger) (*Writer, error) {
	errFactory := errors.New()

	if opts.Dir == "" {
		return nil, errFactory.WithData(ErrInvalidOptions, struct {
			Field string
		}{"output_directory"})
	}
	if opts.Description == "" {
		opts.Description = DefaultDescription
	}
	if err := os.MkdirAll(opts.Dir, defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrOpenFailed, struct {
			Phase string
			Path  string
			Error string
		}{"create_directory", opts.Dir, err.Error()})
	}

	return &Writer{opts: opts, log: log.With("archive")}, nil
}

// Path returns the database path for a file name hint.
func (w *Writer) Path(name string) string {
	return filepath.Join(w.opts.Dir, name+Extension)
}

func (w *Writer) Write(ctx context.Context, buf *capture.FileBuffer, name string, serial int) error {
	errFactory := errors.New()

	path := w.Path(name)
	db, err := sql.Open("sqlite3", path+"?_journal=WAL")
	if err != nil {
		return errFactory.WithData(ErrOpenFailed, struct {
			Phase string
			Path  string
			Error string
		}{"open_database", path, err.Error()})
	}
	defer db.Close()

	if err := ensureSchema(db, path, w.log); err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				w.log.Debug().Err(err).Msg("Failed to rollback archive transaction")
			}
		}
	}()

	for key, value := range w.attributes(buf, serial) {
		if _, err := tx.ExecContext(ctx, insertAttributeSQL, key, value); err != nil {
			return errFactory.WithData(ErrTransactionFailed, struct {
				Phase string
				Key   string
				Error string
			}{"write_attribute", key, err.Error()})
		}
	}

	stmt, err := tx.PrepareContext(ctx, insertSampleSQL)
	if err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}
	defer stmt.Close()

	for i, rec := range buf.Records {
		values, err := w.sampleValues(rec)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, values...); err != nil {
			return errFactory.WithData(ErrTransactionFailed, struct {
				Phase  string
				Record int
				Error  string
			}{"write_sample", i, err.Error()})
		}
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}
	committed = true

	w.log.Debug().
		Str("path", path).
		Int("samples", buf.Len()).
		Msg("Archive written")

	return nil
}

func (w *Writer) attributes(buf *capture.FileBuffer, serial int) map[string]string {
	return map[string]string{
		AttrDescription:   w.opts.Description,
		AttrSerial:        strconv.Itoa(serial),
		AttrScalingFactor: strconv.Itoa(burst.Scale),
		AttrOffset:        strconv.Itoa(burst.Offset),
		AttrImagerConfig:  string(w.opts.ImagerConfig),
		AttrTimeUnits:     buf.TimeUnits(),
		AttrEpoch:         buf.Epoch.UTC().Format(time.RFC3339),
		AttrFileBoundary:  buf.Boundary.UTC().Format(time.RFC3339Nano),
		AttrRunID:         w.opts.RunID,
		AttrXAxis:         "ascending",
		AttrYAxis:         "descending",
		AttrCreatedAt:     time.Now().UTC().Format(time.RFC3339),
	}
}

func (w *Writer) sampleValues(rec *burst.Record) ([]interface{}, error) {
	planes := [][]uint16{rec.Median, rec.Min, rec.Max, rec.Std, rec.Snapshot}
	blobs := make([]interface{}, len(planes))
	for i, pix := range planes {
		blob, err := EncodePlane(pix)
		if err != nil {
			return nil, err
		}
		blobs[i] = blob
	}

	host := sql.NullFloat64{Float64: rec.HostTemperature, Valid: !math.IsNaN(rec.HostTemperature)}

	values := []interface{}{
		w.opts.RunID,
		rec.TimeOffsetMs,
		rec.Start.UnixNano(),
		rec.End.UnixNano(),
		int64(rec.NImages),
		rec.FPS,
		int64(rec.Width),
		int64(rec.Height),
		int64(rec.Meta.Counter),
		int64(rec.Meta.CounterHW),
		rec.Meta.Timestamp,
		rec.Meta.TimestampMedia,
		int64(rec.Meta.FlagState),
		float64(rec.Meta.TempChip),
		float64(rec.Meta.TempFlag),
		float64(rec.Meta.TempBox),
		host,
	}

	return append(values, blobs...), nil
}
