package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Record is an ordered mapping from field name to Value. It is the working
// copy an editor owns for one entity instance. Lookups never fail: a missing
// key or a value that cannot be read as the requested type is reported as
// absent through the ok result.
//
// The zero Record is empty and ready to use.
type Record struct {
	keys   []string
	values map[string]Value
}

// Pair is a key/value pair for ordered Record construction.
type Pair struct {
	Key   string
	Value Value
}

// P is shorthand for Pair.
func P(key string, v any) Pair {
	return Pair{Key: key, Value: ValueOf(v)}
}

// RecordFromPairs builds a Record keeping the order of pairs. A repeated key
// overwrites the earlier value in place.
func RecordFromPairs(pairs ...Pair) Record {
	var r Record
	for _, p := range pairs {
		r.Set(p.Key, p.Value)
	}
	return r
}

// NewRecord builds a Record from a plain map. Go maps are unordered, so keys
// are sorted to keep the result deterministic.
func NewRecord(m map[string]any) Record {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	r := Record{keys: keys, values: make(map[string]Value, len(m))}
	for _, k := range keys {
		r.values[k] = ValueOf(m[k])
	}
	return r
}

// Clone returns a deep copy of the record's key order and values. Opaque
// payloads are shared; they are never mutated by this package.
func (r Record) Clone() Record {
	out := Record{
		keys:   slices.Clone(r.keys),
		values: make(map[string]Value, len(r.values)),
	}
	for k, v := range r.values {
		out.values[k] = v
	}
	return out
}

// Len returns the number of fields.
func (r Record) Len() int { return len(r.keys) }

// Keys returns the field names in order.
func (r Record) Keys() []string { return slices.Clone(r.keys) }

// Has reports whether key is present, even if its value is Null.
func (r Record) Has(key string) bool {
	_, ok := r.values[key]
	return ok
}

// Raw returns the stored value including Null.
func (r Record) Raw(key string) (Value, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Set stores v under key. Existing keys keep their position.
func (r *Record) Set(key string, v Value) {
	if r.values == nil {
		r.values = make(map[string]Value)
	}
	if v == nil {
		v = Null{}
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = v
}

// Delete removes key. Deleting a missing key is a no-op.
func (r *Record) Delete(key string) {
	if _, ok := r.values[key]; !ok {
		return
	}
	delete(r.values, key)
	r.keys = slices.DeleteFunc(r.keys, func(k string) bool { return k == key })
}

// Merge copies every field of other into r, in other's order.
func (r *Record) Merge(other Record) {
	for _, k := range other.keys {
		r.Set(k, other.values[k])
	}
}

// Get returns the value under key. Null counts as absent.
func (r Record) Get(key string) (Value, bool) {
	v, ok := r.values[key]
	if !ok || IsNull(v) {
		return nil, false
	}
	return v, true
}

// GetString returns the string form of the value under key.
func (r Record) GetString(key string) (string, bool) {
	v, ok := r.Get(key)
	if !ok {
		return "", false
	}
	return FormatValue(v)
}

// GetInt64 returns the value under key as an int64. Floats are truncated
// toward zero; strings go through ParseInteger.
func (r Record) GetInt64(key string) (int64, bool) {
	v, ok := r.Get(key)
	if !ok {
		return 0, false
	}
	switch x := v.(type) {
	case Int:
		return int64(x), true
	case Float:
		return floatToInt64(float64(x))
	case String:
		return ParseInteger(string(x))
	case Opaque:
		s, ok := FormatValue(x)
		if !ok {
			return 0, false
		}
		return ParseInteger(s)
	}
	return 0, false
}

// GetInt returns the value under key as an int, absent if it does not fit.
func (r Record) GetInt(key string) (int, bool) {
	n, ok := r.GetInt64(key)
	if !ok || n < math.MinInt || n > math.MaxInt {
		return 0, false
	}
	return int(n), true
}

// GetFloat64 returns the value under key as a float64. Strings go through
// ParseDecimal, so "12,5kg" reads as 12.5.
func (r Record) GetFloat64(key string) (float64, bool) {
	v, ok := r.Get(key)
	if !ok {
		return 0, false
	}
	switch x := v.(type) {
	case Int:
		return float64(x), true
	case Float:
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	case String:
		return ParseDecimal(string(x))
	case Opaque:
		s, ok := FormatValue(x)
		if !ok {
			return 0, false
		}
		return ParseDecimal(s)
	}
	return 0, false
}

// GetBool returns the value under key as a bool. Only Bool values and the
// strings "true" and "false" (any case) are recognised; everything else is
// absent, which callers must read as unknown rather than false.
func (r Record) GetBool(key string) (bool, bool) {
	v, ok := r.Get(key)
	if !ok {
		return false, false
	}
	switch x := v.(type) {
	case Bool:
		return bool(x), true
	case String:
		s := strings.TrimSpace(string(x))
		switch {
		case strings.EqualFold(s, "true"):
			return true, true
		case strings.EqualFold(s, "false"):
			return false, true
		}
	}
	return false, false
}

// GetDate returns the value under key as a Date. Strings go through
// ParseDate; malformed input is absent.
func (r Record) GetDate(key string) (Date, bool) {
	v, ok := r.Get(key)
	if !ok {
		return Date{}, false
	}
	switch x := v.(type) {
	case Date:
		return x, true
	case String:
		return ParseDate(string(x))
	case Opaque:
		if t, ok := x.V.(time.Time); ok {
			return DateOf(t), true
		}
	}
	return Date{}, false
}

// Equal reports whether r and other hold the same keys in the same order
// with equal values.
func (r Record) Equal(other Record) bool {
	if !slices.Equal(r.keys, other.keys) {
		return false
	}
	for _, k := range r.keys {
		if !ValuesEqual(r.values[k], other.values[k]) {
			return false
		}
	}
	return true
}

// ToMap returns the record as plain Go values.
func (r Record) ToMap() map[string]any {
	m := make(map[string]any, len(r.keys))
	for _, k := range r.keys {
		m[k] = Interface(r.values[k])
	}
	return m
}

// String renders the record for logs.
func (r Record) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			b.WriteString(", ")
		}
		s, ok := FormatValue(r.values[k])
		if !ok {
			s = "null"
		}
		fmt.Fprintf(&b, "%s: %s", k, s)
	}
	b.WriteByte('}')
	return b.String()
}

// MarshalJSON encodes the record as a JSON object in key order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		v := r.values[k]
		if f, ok := v.(Float); ok && (math.IsNaN(float64(f)) || math.IsInf(float64(f), 0)) {
			v = Null{}
		}
		vb, err := json.Marshal(Interface(v))
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping the document's key order.
// Integral numbers become Int, other numbers Float, arrays and objects Opaque.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("record: expected JSON object, got %v", tok)
	}
	out := Record{values: make(map[string]Value)}
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := kt.(string)
		if !ok {
			return fmt.Errorf("record: expected string key, got %v", kt)
		}
		var raw any
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("record key %q: %w", key, err)
		}
		out.Set(key, decodedValue(raw))
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*r = out
	return nil
}

// decodedValue converts a value produced by a UseNumber decoder.
func decodedValue(raw any) Value {
	n, ok := raw.(json.Number)
	if !ok {
		return ValueOf(raw)
	}
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return Int(i)
		}
	}
	if f, err := n.Float64(); err == nil {
		return Float(f)
	}
	return String(s)
}

// floatToInt64 truncates f toward zero, rejecting NaN, infinities and values
// outside the int64 range.
func floatToInt64(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	t := math.Trunc(f)
	if t < math.MinInt64 || t >= math.MaxInt64 {
		return 0, false
	}
	return int64(t), true
}
