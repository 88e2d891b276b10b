package storage

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"communitysolar/internal/schema"
)

// maxExactFloat is 2^53, the largest magnitude below which every integer has
// an exact float64.
const maxExactFloat = 1 << 53

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Coerce converts a source cell to the Go value bound for a column of type t.
// The empty-string sentinel becomes NULL for every type except Text, which
// keeps it verbatim.
func Coerce(v any, t schema.StorageType) (any, error) {
	if v == nil {
		return nil, nil
	}
	if s, ok := v.(string); ok && t != schema.Text && strings.TrimSpace(s) == "" {
		return nil, nil
	}

	switch t {
	case schema.Integer:
		return toInt(v)
	case schema.Real:
		return toFloat(v)
	case schema.Timestamp:
		return toTime(v)
	default:
		return toText(v), nil
	}
}

func toInt(v any) (any, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case float64:
		n, ok := floatToInt(x)
		if !ok {
			return nil, fmt.Errorf("%v is not an int64", x)
		}
		return n, nil
	case string:
		s := strings.TrimSpace(x)
		n, err := strconv.ParseInt(s, 10, 64)
		if err == nil {
			return n, nil
		}
		if errors.Is(err, strconv.ErrRange) {
			return nil, fmt.Errorf("%q overflows int64", x)
		}
		// Spreadsheet exports write integer codes as "645.0". Past 2^53 the
		// float no longer holds the written digits exactly.
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", x)
		}
		if math.Abs(f) > maxExactFloat {
			return nil, fmt.Errorf("%q is not exactly representable as int64", x)
		}
		n, ok := floatToInt(f)
		if !ok {
			return nil, fmt.Errorf("%q is not an integer", x)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("unsupported value %T for integer column", v)
	}
}

// floatToInt converts integral floats inside the int64 range. 2^63 itself
// is excluded because int64(2^63) saturates.
func floatToInt(f float64) (int64, bool) {
	if math.IsNaN(f) || f != math.Trunc(f) || f < math.MinInt64 || f >= -math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

func toFloat(v any) (any, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	case int:
		return float64(x), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", x)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("unsupported value %T for real column", v)
	}
}

func toTime(v any) (any, error) {
	switch x := v.(type) {
	case time.Time:
		return x.UTC(), nil
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UTC(), nil
			}
		}
		return nil, fmt.Errorf("%q is not a timestamp", x)
	default:
		return nil, fmt.Errorf("unsupported value %T for timestamp column", v)
	}
}

func toText(v any) any {
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
