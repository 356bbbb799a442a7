package capture

import (
	"testing"
	"time"

	"codeberg.org/mutker/irsampler/internal/burst"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileName(t *testing.T) {
	assert.Equal(t, "12345_20240301001000", FileName(12345, ts("2024-03-01T00:10:00Z")))
	assert.Equal(t, "7_20241231235500", FileName(7, ts("2024-12-31T23:55:00Z")))

	name := FileName(1, ts("2024-03-01T00:10:00.5Z"))
	assert.NotContains(t, name, ":")
	assert.NotContains(t, name, "-")
	assert.NotContains(t, name, " ")
}

func TestEpochUnitTruncate(t *testing.T) {
	at := ts("2024-03-17T13:42:11.25Z")
	assert.True(t, EpochHour.Truncate(at).Equal(ts("2024-03-17T13:00:00Z")))
	assert.True(t, EpochDay.Truncate(at).Equal(ts("2024-03-17T00:00:00Z")))
	assert.True(t, EpochMonth.Truncate(at).Equal(ts("2024-03-01T00:00:00Z")))

	local := at.In(time.FixedZone("X", 5*3600))
	assert.True(t, EpochDay.Truncate(local).Equal(ts("2024-03-17T00:00:00Z")))

	assert.True(t, EpochDay.IsValid())
	assert.False(t, EpochUnit("year").IsValid())
}

func TestFileBufferCapacity(t *testing.T) {
	buf := newFileBuffer("x", 1, time.Time{}, time.Time{}, EpochHour, 2)
	require.NoError(t, buf.Append(&burst.Record{}))
	require.NoError(t, buf.Append(&burst.Record{}))
	assert.Error(t, buf.Append(&burst.Record{}))
	assert.Equal(t, 2, buf.Len())
}

func TestTimeUnits(t *testing.T) {
	buf := newFileBuffer("x", 1, time.Time{}, ts("2024-03-17T13:00:00Z"), EpochHour, 0)
	assert.Equal(t, "milliseconds since 2024-03-17 13:00:00", buf.TimeUnits())
}
