package storage

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/aanand-mishra/catalog-api/internal/types"
)

// Filter is a single field-equality predicate for List. The value arrives
// as a string (it comes off a URL query) and is coerced to the type of the
// record field it is compared against:
//
//   - string fields compare case-insensitively
//   - numeric fields compare by value after parsing the filter value
//   - boolean fields compare after strconv.ParseBool
//
// A record whose field is absent, or whose type the value cannot be parsed
// into, simply does not match. Filtering never errors.
type Filter struct {
	Field string
	Value string
}

// Matches reports whether rec satisfies the filter. A nil filter matches
// every record.
func (f *Filter) Matches(rec types.Record) bool {
	if f == nil {
		return true
	}
	got, ok := rec[f.Field]
	if !ok {
		return false
	}

	switch v := got.(type) {
	case string:
		return strings.EqualFold(v, f.Value)
	case float64:
		want, err := strconv.ParseFloat(f.Value, 64)
		return err == nil && v == want
	case int64:
		want, err := strconv.ParseInt(f.Value, 10, 64)
		return err == nil && v == want
	case int:
		want, err := strconv.ParseInt(f.Value, 10, 64)
		return err == nil && int64(v) == want
	case json.Number:
		want, err := strconv.ParseFloat(f.Value, 64)
		if err != nil {
			return false
		}
		gotNum, err := v.Float64()
		return err == nil && gotNum == want
	case bool:
		want, err := strconv.ParseBool(f.Value)
		return err == nil && v == want
	default:
		return false
	}
}
