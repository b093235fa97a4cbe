package utils

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/instrumetriq/tier-inspector/internal/models"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp parses the textual timestamp forms found in snapshot files.
// Values without a zone are read as UTC.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty time value")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("parse time: unrecognised layout %q", value)
}

// FromEpoch converts an epoch number to a time, choosing the unit by magnitude
// (seconds, milliseconds, microseconds or nanoseconds).
func FromEpoch(n float64) (time.Time, error) {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return time.Time{}, fmt.Errorf("epoch value is not finite")
	}
	abs := math.Abs(n)
	switch {
	case abs >= 1e17:
		return time.Unix(0, int64(n)).UTC(), nil
	case abs >= 1e14:
		return time.UnixMicro(int64(n)).UTC(), nil
	case abs >= 1e11:
		return time.UnixMilli(int64(n)).UTC(), nil
	default:
		sec, frac := math.Modf(n)
		return time.Unix(int64(sec), int64(frac*1e9)).UTC(), nil
	}
}

// TimestampOf interprets a cell as a timestamp. Null and unsupported kinds fail.
func TimestampOf(v models.Value) (time.Time, error) {
	switch v.Kind() {
	case models.KindTime:
		t, _ := v.AsTime()
		return t.UTC(), nil
	case models.KindString:
		s, _ := v.AsString()
		return ParseTimestamp(s)
	case models.KindInt, models.KindFloat:
		n, _ := v.Number()
		return FromEpoch(n)
	case models.KindNull:
		return time.Time{}, fmt.Errorf("null time value")
	default:
		return time.Time{}, fmt.Errorf("parse time: %s is not a timestamp", v.Kind())
	}
}
