package models

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindTime
	KindStruct
	KindArray
)

// String returns the report-facing name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int64"
	case KindFloat:
		return "float64"
	case KindString:
		return "string"
	case KindTime:
		return "timestamp"
	case KindStruct:
		return "struct"
	case KindArray:
		return "array"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// IsScalar reports whether the kind is a leaf value.
func (k Kind) IsScalar() bool {
	return k != KindNull && k != KindStruct && k != KindArray
}

// Value is a cell of a snapshot table: null, a scalar, a Struct or an Array.
// The zero Value is null.
type Value struct {
	kind   Kind
	num    float64
	i      int64
	s      string
	t      time.Time
	fields *Struct
	items  []Value
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool wraps a boolean.
func Bool(b bool) Value {
	v := Value{kind: KindBool}
	if b {
		v.i = 1
	}
	return v
}

// Int wraps an integer.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float wraps a float.
func Float(f float64) Value { return Value{kind: KindFloat, num: f} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Time wraps a timestamp.
func Time(t time.Time) Value { return Value{kind: KindTime, t: t} }

// StructValue wraps a Struct. A nil struct yields null.
func StructValue(s *Struct) Value {
	if s == nil {
		return Null()
	}
	return Value{kind: KindStruct, fields: s}
}

// Array wraps an ordered sequence of values. A nil slice is an empty array, not null.
func Array(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindArray, items: items}
}

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsStruct returns the struct payload when v is a Struct.
func (v Value) AsStruct() (*Struct, bool) {
	if v.kind != KindStruct {
		return nil, false
	}
	return v.fields, true
}

// AsArray returns the elements when v is an Array.
func (v Value) AsArray() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	return v.items, true
}

// AsBool returns the boolean payload.
func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.i == 1, true
}

// AsString returns the string payload.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

// AsTime returns the timestamp payload.
func (v Value) AsTime() (time.Time, bool) {
	if v.kind != KindTime {
		return time.Time{}, false
	}
	return v.t, true
}

// AsInt returns the integer payload.
func (v Value) AsInt() (int64, bool) {
	if v.kind != KindInt {
		return 0, false
	}
	return v.i, true
}

// Number converts numeric and boolean values to float64. Booleans map to 0/1.
func (v Value) Number() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.num, true
	case KindInt:
		return float64(v.i), true
	case KindBool:
		return float64(v.i), true
	default:
		return 0, false
	}
}

// IsNonFinite reports whether v is a float holding NaN or an infinity.
func (v Value) IsNonFinite() bool {
	return v.kind == KindFloat && (math.IsNaN(v.num) || math.IsInf(v.num, 0))
}

// Len returns the element count of an Array, the field count of a Struct, and 0 otherwise.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.items)
	case KindStruct:
		return v.fields.Len()
	default:
		return 0
	}
}

// Text renders a scalar for grouping keys and logs.
func (v Value) Text() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindBool:
		return strconv.FormatBool(v.i == 1)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		if math.IsNaN(v.num) {
			return "NaN"
		}
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindString:
		return v.s
	case KindTime:
		return v.t.UTC().Format(time.RFC3339Nano)
	case KindStruct:
		return fmt.Sprintf("struct[%d]", v.fields.Len())
	case KindArray:
		return fmt.Sprintf("array[%d]", len(v.items))
	default:
		return ""
	}
}

// Field is a named struct member, used when building structs in order.
type Field struct {
	Name  string
	Value Value
}

// Struct is an ordered mapping from field name to Value.
type Struct struct {
	names  []string
	values map[string]Value
}

// NewStruct builds a Struct preserving field order. Later duplicates overwrite earlier values.
func NewStruct(fields ...Field) *Struct {
	s := &Struct{values: make(map[string]Value, len(fields))}
	for _, f := range fields {
		s.Set(f.Name, f.Value)
	}
	return s
}

// Set assigns a field, appending the name when it is new. Intended for construction only.
func (s *Struct) Set(name string, v Value) {
	if s.values == nil {
		s.values = make(map[string]Value)
	}
	if _, ok := s.values[name]; !ok {
		s.names = append(s.names, name)
	}
	s.values[name] = v
}

// Get returns the field value and whether the field exists.
func (s *Struct) Get(name string) (Value, bool) {
	if s == nil {
		return Value{}, false
	}
	v, ok := s.values[name]
	return v, ok
}

// Fields returns field names in declaration order.
func (s *Struct) Fields() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.names...)
}

// Len returns the number of fields.
func (s *Struct) Len() int {
	if s == nil {
		return 0
	}
	return len(s.names)
}
