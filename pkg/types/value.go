package types

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"
)

// Value is a sealed interface over the dynamic values a Record can hold.
// Only Null, String, Int, Float, Bool, Date and Opaque implement it.
type Value interface {
	value()
}

// Null is an explicit null. Accessors treat it the same as a missing key.
type Null struct{}

func (Null) value() {}

// String is a text value.
type String string

func (String) value() {}

// Int is an integer value, always int64.
type Int int64

func (Int) value() {}

// Float is a floating-point value.
type Float float64

func (Float) value() {}

// Bool is a boolean value.
type Bool bool

func (Bool) value() {}

// Date is a calendar date without a time of day, held at UTC midnight.
type Date struct {
	t time.Time
}

func (Date) value() {}

// Opaque carries any value the record does not interpret (lists, nested
// objects, values from foreign decoders). It is passed through untouched.
type Opaque struct {
	V any
}

func (Opaque) value() {}

// NewDate returns the Date for the given year, month and day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// Time returns the date as UTC midnight.
func (d Date) Time() time.Time { return d.t }

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool { return d.t.IsZero() }

// String formats the date as YYYY-MM-DD.
func (d Date) String() string { return d.t.Format(DateLayout) }

// DateLayout is the canonical storage layout for dates.
const DateLayout = "2006-01-02"

// ValueOf converts a plain Go value into a Value. Numbers decoded from JSON
// (json.Number, float64) become Int when integral and Float otherwise.
// Anything it does not recognise is wrapped in Opaque.
func ValueOf(v any) Value {
	switch x := v.(type) {
	case nil:
		return Null{}
	case Value:
		return x
	case string:
		return String(x)
	case bool:
		return Bool(x)
	case int:
		return Int(x)
	case int8:
		return Int(x)
	case int16:
		return Int(x)
	case int32:
		return Int(x)
	case int64:
		return Int(x)
	case uint8:
		return Int(x)
	case uint16:
		return Int(x)
	case uint32:
		return Int(x)
	case uint:
		if uint64(x) > math.MaxInt64 {
			return Float(float64(x))
		}
		return Int(x)
	case uint64:
		if x > math.MaxInt64 {
			return Float(float64(x))
		}
		return Int(x)
	case float32:
		return Float(x)
	case float64:
		return Float(x)
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return Int(n)
		}
		if f, err := x.Float64(); err == nil {
			return Float(f)
		}
		return String(x.String())
	case time.Time:
		return DateOf(x)
	default:
		return Opaque{V: v}
	}
}

// Interface returns the plain Go form of v, suitable for encoding.
// Dates become YYYY-MM-DD strings.
func Interface(v Value) any {
	switch x := v.(type) {
	case nil, Null:
		return nil
	case String:
		return string(x)
	case Int:
		return int64(x)
	case Float:
		return float64(x)
	case Bool:
		return bool(x)
	case Date:
		return x.String()
	case Opaque:
		return x.V
	default:
		return nil
	}
}

// IsNull reports whether v is absent: a nil interface or Null.
func IsNull(v Value) bool {
	switch v.(type) {
	case nil, Null:
		return true
	}
	return false
}

// FormatValue returns the string form of v. Null yields "" and false.
func FormatValue(v Value) (string, bool) {
	switch x := v.(type) {
	case nil, Null:
		return "", false
	case String:
		return string(x), true
	case Int:
		return strconv.FormatInt(int64(x), 10), true
	case Float:
		return strconv.FormatFloat(float64(x), 'f', -1, 64), true
	case Bool:
		return strconv.FormatBool(bool(x)), true
	case Date:
		return x.String(), true
	case Opaque:
		if x.V == nil {
			return "", false
		}
		if s, ok := x.V.(fmt.Stringer); ok {
			return safeStringer(s)
		}
		return fmt.Sprint(x.V), true
	default:
		return "", false
	}
}

// safeStringer calls String on a foreign Stringer, reporting a miss if it
// panics.
func safeStringer(s fmt.Stringer) (out string, ok bool) {
	defer func() {
		if recover() != nil {
			out, ok = "", false
		}
	}()
	return s.String(), true
}

// ValuesEqual compares two values by kind and content. Opaque values are
// compared with reflect.DeepEqual.
func ValuesEqual(a, b Value) bool {
	if IsNull(a) || IsNull(b) {
		return IsNull(a) && IsNull(b)
	}
	switch x := a.(type) {
	case String:
		y, ok := b.(String)
		return ok && x == y
	case Int:
		y, ok := b.(Int)
		return ok && x == y
	case Float:
		y, ok := b.(Float)
		return ok && (x == y || (math.IsNaN(float64(x)) && math.IsNaN(float64(y))))
	case Bool:
		y, ok := b.(Bool)
		return ok && x == y
	case Date:
		y, ok := b.(Date)
		return ok && x.t.Equal(y.t)
	case Opaque:
		y, ok := b.(Opaque)
		return ok && reflect.DeepEqual(x.V, y.V)
	}
	return false
}
