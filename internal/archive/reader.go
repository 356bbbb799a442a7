package archive

import (
	"database/sql"
	"math"
	"time"

	"codeberg.org/mutker/irsampler/internal/burst"
	"codeberg.org/mutker/irsampler/internal/errors"
)

// File is the decoded content of one archive database.
type File struct {
	Attributes map[string]string
	Samples    []Sample
}

// Sample is one stored record together with the run that wrote it.
type Sample struct {
	RunID string
	burst.Record
}

// ReadFile loads every attribute and sample of the archive at path, in
// insertion order.
func ReadFile(path string) (*File, error) {
	errFactory := errors.New()

	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, errFactory.Wrap(ErrReadFailed, err)
	}
	defer db.Close()

	f := &File{Attributes: map[string]string{}}

	rows, err := db.Query(`SELECT key, value FROM attributes`)
	if err != nil {
		return nil, errFactory.Wrap(ErrReadFailed, err)
	}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			rows.Close()
			return nil, errFactory.Wrap(ErrReadFailed, err)
		}
		f.Attributes[k] = v
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, errFactory.Wrap(ErrReadFailed, err)
	}

	rows, err = db.Query(`
        SELECT run_id, time_offset_ms, start_ns, end_ns, n_images, fps, width, height,
               counter, counter_hw, timestamp, timestamp_media, flag_state,
               temp_chip, temp_flag, temp_box, temp_host,
               median, min, max, std, snapshot
        FROM samples ORDER BY id`)
	if err != nil {
		return nil, errFactory.Wrap(ErrReadFailed, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			s                         Sample
			startNs, endNs            int64
			counter, counterHW, flags int64
			chip, flag, box           float64
			host                      sql.NullFloat64
			blobs                     [5][]byte
		)
		if err := rows.Scan(
			&s.RunID, &s.TimeOffsetMs, &startNs, &endNs, &s.NImages, &s.FPS, &s.Width, &s.Height,
			&counter, &counterHW, &s.Meta.Timestamp, &s.Meta.TimestampMedia, &flags,
			&chip, &flag, &box, &host,
			&blobs[0], &blobs[1], &blobs[2], &blobs[3], &blobs[4],
		); err != nil {
			return nil, errFactory.Wrap(ErrReadFailed, err)
		}

		s.Start = time.Unix(0, startNs).UTC()
		s.End = time.Unix(0, endNs).UTC()
		s.Meta.Counter = uint32(counter)
		s.Meta.CounterHW = uint32(counterHW)
		s.Meta.FlagState = uint32(flags)
		s.Meta.TempChip = float32(chip)
		s.Meta.TempFlag = float32(flag)
		s.Meta.TempBox = float32(box)
		s.HostTemperature = math.NaN()
		if host.Valid {
			s.HostTemperature = host.Float64
		}

		n := s.Width * s.Height
		planes := []*[]uint16{&s.Median, &s.Min, &s.Max, &s.Std, &s.Snapshot}
		for i, dst := range planes {
			pix, err := DecodePlane(blobs[i], n)
			if err != nil {
				return nil, err
			}
			*dst = pix
		}

		f.Samples = append(f.Samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errFactory.Wrap(ErrReadFailed, err)
	}

	return f, nil
}
