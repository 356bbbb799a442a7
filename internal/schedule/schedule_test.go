package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig() Config {
	return Config{
		FileInterval:     300 * time.Second,
		SampleInterval:   5 * time.Second,
		SampleRepetition: 60 * time.Second,
	}
}

func at(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		panic(err)
	}

	return t
}

func TestNewRejectsInvalidSchedules(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"repetition equals interval", Config{300 * time.Second, 60 * time.Second, 60 * time.Second}},
		{"repetition below interval", Config{300 * time.Second, 90 * time.Second, 60 * time.Second}},
		{"file equals repetition", Config{60 * time.Second, 5 * time.Second, 60 * time.Second}},
		{"file below repetition", Config{30 * time.Second, 5 * time.Second, 60 * time.Second}},
		{"zero interval", Config{300 * time.Second, 0, 60 * time.Second}},
		{"negative file", Config{-time.Second, 5 * time.Second, 60 * time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock, err := New(tt.cfg)
			require.Error(t, err)
			assert.Nil(t, clock)
			assert.True(t, IsConfigError(err))

			// Deterministic: the same input fails the same way.
			_, again := New(tt.cfg)
			assert.Equal(t, err.Error(), again.Error())
		})
	}
}

func TestNewAcceptsValidSchedule(t *testing.T) {
	clock, err := New(defaultConfig())
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), clock.Config())
}

func TestRoundToGridIdempotentOnGrid(t *testing.T) {
	now := at("2024-03-01T12:05:00Z")
	assert.True(t, RoundToGrid(now, time.Minute).Equal(now))
	assert.True(t, RoundToGrid(now, 5*time.Minute).Equal(now))
}

func TestRoundToGridTiesRoundUp(t *testing.T) {
	assert.True(t, RoundToGrid(at("2024-03-01T12:00:30Z"), time.Minute).Equal(at("2024-03-01T12:01:00Z")))
	assert.True(t, RoundToGrid(at("2024-03-01T12:00:29.999Z"), time.Minute).Equal(at("2024-03-01T12:00:00Z")))
}

func TestRoundToGridAnchoredAtEpoch(t *testing.T) {
	// 7 minutes does not divide a day; the grid must still be anchored at the
	// Unix epoch.
	got := RoundToGrid(at("2024-03-01T12:00:00Z"), 7*time.Minute)
	assert.Zero(t, got.UnixNano()%int64(7*time.Minute))
}

func TestNextGridPoint(t *testing.T) {
	tests := []struct {
		now  string
		want string
	}{
		{"2024-03-01T12:00:00Z", "2024-03-01T12:01:00Z"},
		{"2024-03-01T12:00:00.001Z", "2024-03-01T12:01:00Z"},
		{"2024-03-01T12:00:59.999Z", "2024-03-01T12:01:00Z"},
		{"2024-03-01T12:00:30Z", "2024-03-01T12:01:00Z"},
	}

	for _, tt := range tests {
		got := NextGridPoint(at(tt.now), time.Minute)
		assert.True(t, got.Equal(at(tt.want)), "now=%s got=%s", tt.now, got)
	}
}

func TestCurrentWindowSpansSampleInterval(t *testing.T) {
	clock, err := New(defaultConfig())
	require.NoError(t, err)

	base := at("2024-03-01T00:00:00Z")
	for offset := time.Duration(0); offset < 10*time.Minute; offset += 1700 * time.Millisecond {
		w := clock.CurrentWindow(base.Add(offset))
		assert.Equal(t, 5*time.Second, w.Duration())
		assert.Zero(t, w.End.UnixNano()%int64(time.Minute))
		assert.True(t, w.End.After(base.Add(offset)))
	}
}

func TestConsecutiveWindowsSpacedByRepetition(t *testing.T) {
	clock, err := New(defaultConfig())
	require.NoError(t, err)

	now := at("2024-03-01T00:00:10Z")
	first := clock.CurrentWindow(now)
	second := clock.CurrentWindow(now.Add(time.Minute))
	assert.Equal(t, time.Minute, second.Start.Sub(first.Start))
	assert.False(t, second.Start.Before(first.End))
}

func TestCurrentFileBoundary(t *testing.T) {
	clock, err := New(defaultConfig())
	require.NoError(t, err)

	assert.True(t, clock.CurrentFileBoundary(at("2024-03-01T00:03:12Z")).Equal(at("2024-03-01T00:05:00Z")))
	assert.True(t, clock.CurrentFileBoundary(at("2024-03-01T00:05:00Z")).Equal(at("2024-03-01T00:10:00Z")))
}

func TestWindowsRemainingAtFileBoundary(t *testing.T) {
	clock, err := New(defaultConfig())
	require.NoError(t, err)

	assert.Equal(t, 5, clock.WindowsRemainingInFile(at("2024-03-01T00:05:00Z")))
}

func TestWindowsRemainingDecreasesByOnePerRepetition(t *testing.T) {
	clock, err := New(defaultConfig())
	require.NoError(t, err)

	now := at("2024-03-01T00:05:00.5Z")
	prev := clock.WindowsRemainingInFile(now)
	for i := 1; i < 5; i++ {
		next := now.Add(time.Duration(i) * time.Minute)
		got := clock.WindowsRemainingInFile(next)
		assert.Equal(t, prev-1, got, "after %d repetitions", i)
		assert.GreaterOrEqual(t, got, 0)
		prev = got
	}
}

func TestWindowsRemainingNeverNegative(t *testing.T) {
	clock, err := New(defaultConfig())
	require.NoError(t, err)

	base := at("2024-03-01T00:00:00Z")
	for offset := time.Duration(0); offset < 15*time.Minute; offset += 900 * time.Millisecond {
		assert.GreaterOrEqual(t, clock.WindowsRemainingInFile(base.Add(offset)), 0)
	}
}

func TestNextWindowStart(t *testing.T) {
	clock, err := New(defaultConfig())
	require.NoError(t, err)

	lead := 300 * time.Millisecond

	// Well before the window: the current window's start is returned.
	got := clock.NextWindowStart(at("2024-03-01T00:00:10Z"), lead)
	assert.True(t, got.Equal(at("2024-03-01T00:00:55Z")))

	// Inside the pre-roll of the current window: skip to the next one.
	got = clock.NextWindowStart(at("2024-03-01T00:00:54.8Z"), lead)
	assert.True(t, got.Equal(at("2024-03-01T00:01:55Z")))

	// Inside the window itself.
	got = clock.NextWindowStart(at("2024-03-01T00:00:57Z"), lead)
	assert.True(t, got.Equal(at("2024-03-01T00:01:55Z")))

	// Lead longer than a repetition still yields a future deadline.
	now := at("2024-03-01T00:00:10Z")
	got = clock.NextWindowStart(now, 90*time.Second)
	assert.True(t, got.Add(-90*time.Second).After(now))
	assert.Zero(t, got.Add(5*time.Second).UnixNano()%int64(time.Minute))
}
