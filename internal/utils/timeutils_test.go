package utils

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/instrumetriq/tier-inspector/internal/models"
)

func TestParseTimestampLayouts(t *testing.T) {
	want := time.Date(2026, 2, 1, 12, 30, 0, 0, time.UTC)
	for _, in := range []string{
		"2026-02-01T12:30:00Z",
		"2026-02-01T14:30:00+02:00",
		"2026-02-01 12:30:00",
		"2026-02-01T12:30:00",
		"2026-02-01 12:30",
	} {
		got, err := ParseTimestamp(in)
		require.NoError(t, err, in)
		assert.True(t, got.Equal(want), in)
	}

	_, err := ParseTimestamp("not-a-date")
	assert.Error(t, err)
	_, err = ParseTimestamp("  ")
	assert.Error(t, err)
}

func TestFromEpochUnits(t *testing.T) {
	want := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	for _, n := range []float64{
		float64(want.Unix()),
		float64(want.UnixMilli()),
		float64(want.UnixMicro()),
		float64(want.UnixNano()),
	} {
		got, err := FromEpoch(n)
		require.NoError(t, err)
		assert.True(t, got.Equal(want), "%v", n)
	}
}

func TestTimestampOf(t *testing.T) {
	at := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	got, err := TimestampOf(models.Time(at))
	require.NoError(t, err)
	assert.True(t, got.Equal(at))

	got, err = TimestampOf(models.String("2026-02-01"))
	require.NoError(t, err)
	assert.True(t, got.Equal(at))

	_, err = TimestampOf(models.Null())
	assert.Error(t, err)
	_, err = TimestampOf(models.Bool(true))
	assert.Error(t, err)
}

func TestNewLoggerToLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, "warn", true)
	logger.Info("hidden")
	logger.Warn("shown", "tier", "tier3")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"tier":"tier3"`)
}
