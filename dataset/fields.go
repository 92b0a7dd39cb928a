package dataset

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// TimeFormat is used for time values in string fields.
const TimeFormat = "2006-01-02T15:04:05Z"

// rangeError is returned with the clamped value for integers that do
// not fit into an Integer field.
type rangeError struct {
	field string
	value int64
}

func (e *rangeError) Error() string {
	return fmt.Sprintf("field %s: value %d out of integer range", e.field, e.value)
}

func convertValue(f FieldDef, v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch f.Type {
	case Integer:
		i, err := toInt64(v)
		if err != nil {
			return nil, errors.Wrapf(err, "field %s", f.Name)
		}
		if i > math.MaxInt32 {
			return int32(math.MaxInt32), &rangeError{field: f.Name, value: i}
		}
		if i < math.MinInt32 {
			return int32(math.MinInt32), &rangeError{field: f.Name, value: i}
		}
		return int32(i), nil
	case Integer64:
		i, err := toInt64(v)
		if err != nil {
			return nil, errors.Wrapf(err, "field %s", f.Name)
		}
		return i, nil
	case Real:
		r, err := toFloat64(v)
		if err != nil {
			return nil, errors.Wrapf(err, "field %s", f.Name)
		}
		return r, nil
	case String:
		return toString(v), nil
	}
	return nil, errors.Errorf("field %s: unknown type %q", f.Name, f.Type)
}

func toInt64(v interface{}) (int64, error) {
	switch v := v.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		i, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, errors.Errorf("%q is not an integer", v)
		}
		return i, nil
	}
	return 0, errors.Errorf("unsupported value %T for integer", v)
}

func toFloat64(v interface{}) (float64, error) {
	switch v := v.(type) {
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case float64:
		return v, nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, errors.Errorf("%q is not a number", v)
		}
		return f, nil
	}
	return 0, errors.Errorf("unsupported value %T for real", v)
}

func toString(v interface{}) string {
	switch v := v.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		return v.UTC().Format(TimeFormat)
	}
	return fmt.Sprint(v)
}
