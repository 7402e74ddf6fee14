package entrycache

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// minutesToDuration converts a TTL in minutes to a duration. Fractions are kept.
func minutesToDuration(minutes float64) time.Duration {
	return time.Duration(minutes * float64(time.Minute))
}

// parseMinutes accepts any numeric value, or a string holding one, as a TTL in minutes.
func parseMinutes(v any) (float64, error) {
	var f float64
	switch n := v.(type) {
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case float32:
		f = float64(n)
	case float64:
		f = n
	case time.Duration:
		f = n.Minutes()
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidExpiration, n)
		}
		f = p
	default:
		return 0, fmt.Errorf("%w: %T", ErrInvalidExpiration, v)
	}
	return checkMinutes(f)
}

func checkMinutes(f float64) (float64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidExpiration, f)
	}
	return f, nil
}
