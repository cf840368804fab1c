package kv

import (
	"fmt"
	"math"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/grafana/sobek"
	"go.k6.io/k6/js/common"
)

// parseTTL converts the optional ttl argument of dispatch(). Nullish means no expiration.
// Must run on the VU event loop since it exports a Sobek value.
func parseTTL(ttl sobek.Value) (time.Duration, error) {
	if common.IsNullish(ttl) {
		return 0, nil
	}

	duration, err := parseDurationValue(ttl.Export())
	if err != nil {
		return 0, NewError(OptionsError, "ttl: "+err.Error())
	}

	return duration, nil
}

// parseDurationValue accepts whole milliseconds or a Go duration string such as "1s".
// Negative values are rejected. Callers wrap the error.
func parseDurationValue(v any) (time.Duration, error) {
	if text, ok := v.(string); ok {
		duration, err := time.ParseDuration(text)
		if err != nil {
			return 0, fmt.Errorf("invalid duration string %q: %w", text, err)
		}

		if duration < 0 {
			return 0, fmt.Errorf("negative duration: %s", text)
		}

		return duration, nil
	}

	ms, err := exportedInteger(v, "duration")
	if err != nil {
		return 0, err
	}

	return durationFromMillis(ms)
}

func durationFromMillis(ms int64) (time.Duration, error) {
	if ms < 0 {
		return 0, fmt.Errorf("negative duration: %dms", ms)
	}

	if ms > math.MaxInt64/int64(time.Millisecond) {
		return 0, fmt.Errorf("duration too large: %dms", ms)
	}

	return time.Duration(ms) * time.Millisecond, nil
}

// parseSizeValue accepts a whole number of bytes or a size string such as "64MB" or "1GiB".
// Callers wrap the error.
func parseSizeValue(v any) (uint64, error) {
	if text, ok := v.(string); ok {
		size, err := humanize.ParseBytes(text)
		if err != nil {
			return 0, fmt.Errorf("invalid size string %q: %w", text, err)
		}

		return size, nil
	}

	n, err := exportedInteger(v, "size")
	if err != nil {
		return 0, err
	}

	if n < 0 {
		return 0, fmt.Errorf("negative size: %d", n)
	}

	return uint64(n), nil
}

// exportedInteger narrows an exported JS number (int64 or float64) or a Go integer to int64.
func exportedInteger(v any, what string) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return 0, fmt.Errorf("%s too large: %d", what, x)
		}

		return int64(x), nil
	case float64:
		if math.Trunc(x) != x || math.IsInf(x, 0) {
			return 0, fmt.Errorf("%s must be a whole number: %v", what, x)
		}

		if x >= math.MaxInt64 || x < math.MinInt64 {
			return 0, fmt.Errorf("%s out of range: %v", what, x)
		}

		return int64(x), nil
	default:
		return 0, fmt.Errorf("unsupported %s type: %T", what, v)
	}
}
