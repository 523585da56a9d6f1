package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"unicode/utf16"
)

// Value is a sealed interface over attribute data.
// Only Null, Uint, Int, Bool, String, List and Struct implement it.
type Value interface {
	value() // Sealed - only these types implement it
}

// Null is the null sentinel of a nullable attribute.
type Null struct{}

func (Null) value() {}

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// Uint is an unsigned integer (enum8, uint8..uint64).
type Uint uint64

func (Uint) value() {}

// Int is a signed integer.
type Int int64

func (Int) value() {}

// Bool is a boolean.
type Bool bool

func (Bool) value() {}

// String is a UTF-8 string (char_string).
type String string

func (String) value() {}

// List is an ordered list of values (attribute lists such as SupportedModes).
type List []Value

func (List) value() {}

// Struct maps field names to values.
// Use SortedKeys() for deterministic iteration.
type Struct map[string]Value

func (Struct) value() {}

// Field is a key-value pair for Struct construction.
type Field struct {
	Key   string
	Value Value
}

// F is shorthand for Field.
// Example: NewStruct(F("mode", Uint(1)), F("label", String("Normal")))
func F(key string, v Value) Field {
	return Field{Key: key, Value: v}
}

// NewStruct builds a Struct from fields.
func NewStruct(fields ...Field) Struct {
	s := make(Struct, len(fields))
	for _, f := range fields {
		s[f.Key] = f.Value
	}
	return s
}

// NewList builds a List from values.
func NewList(vals ...Value) List {
	return List(vals)
}

// NullableUint returns Null for a nil pointer, Uint otherwise.
func NullableUint(v *uint8) Value {
	if v == nil {
		return Null{}
	}
	return Uint(*v)
}

// IsNull reports whether v is the null sentinel. A nil interface counts.
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// IsUint reports whether v is an unsigned integer.
func IsUint(v Value) bool {
	_, ok := v.(Uint)
	return ok
}

// AsUint returns v as a uint64 if it is a Uint.
func AsUint(v Value) (uint64, bool) {
	u, ok := v.(Uint)
	return uint64(u), ok
}

// Equal reports deep equality of two values. Null equals a nil interface.
func Equal(a, b Value) bool {
	if IsNull(a) || IsNull(b) {
		return IsNull(a) && IsNull(b)
	}
	switch av := a.(type) {
	case Uint:
		bv, ok := b.(Uint)
		return ok && av == bv
	case Int:
		bv, ok := b.(Int)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case List:
		bv, ok := b.(List)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Struct:
		bv, ok := b.(Struct)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			other, exists := bv[k]
			if !exists || !Equal(v, other) {
				return false
			}
		}
		return true
	}
	return false
}

// Format renders a value for log lines and assertion messages.
func Format(v Value) string {
	if IsNull(v) {
		return "Null"
	}
	data, err := MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's sort.Strings uses UTF-8 which produces a different order.
func (s Struct) SortedKeys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// MarshalJSON implements json.Marshaler for Struct with sorted keys.
func (s Struct) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(s)
}

// MarshalJSON implements json.Marshaler for List.
func (l List) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(l)
}

// UnmarshalJSON implements json.Unmarshaler for Struct.
func (s *Struct) UnmarshalJSON(data []byte) error {
	v, err := UnmarshalValue(data)
	if err != nil {
		return err
	}
	st, ok := v.(Struct)
	if !ok {
		return fmt.Errorf("expected JSON object, got %T", v)
	}
	*s = st
	return nil
}

// UnmarshalValue decodes JSON into a Value.
// Non-negative integers become Uint, negative integers Int. Floats are rejected.
func UnmarshalValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return FromAny(raw)
}

// FromAny converts decoded JSON/YAML data into a Value.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case json.Number:
		s := string(val)
		if strings.ContainsAny(s, ".eE") {
			return nil, fmt.Errorf("floats are not attribute values: %s", s)
		}
		if strings.HasPrefix(s, "-") {
			n, err := val.Int64()
			if err != nil {
				return nil, fmt.Errorf("number out of int64 range: %s", s)
			}
			return Int(n), nil
		}
		var u uint64
		if _, err := fmt.Sscan(s, &u); err != nil {
			return nil, fmt.Errorf("number out of uint64 range: %s", s)
		}
		return Uint(u), nil
	case int:
		if val < 0 {
			return Int(val), nil
		}
		return Uint(val), nil
	case int64:
		if val < 0 {
			return Int(val), nil
		}
		return Uint(val), nil
	case uint:
		return Uint(val), nil
	case uint8:
		return Uint(val), nil
	case uint16:
		return Uint(val), nil
	case uint64:
		return Uint(val), nil
	case float64:
		// YAML decodes some integers as float64
		if val == float64(int64(val)) {
			return FromAny(int64(val))
		}
		return nil, fmt.Errorf("floats are not attribute values: %v", val)
	case []any:
		l := make(List, len(val))
		for i, elem := range val {
			ev, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("list[%d]: %w", i, err)
			}
			l[i] = ev
		}
		return l, nil
	case map[string]any:
		s := make(Struct, len(val))
		for k, elem := range val {
			ev, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", k, err)
			}
			s[k] = ev
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported type %T", v)
	}
}

// ToAny converts a Value to plain Go data (for JSON output in the CLI).
func ToAny(v Value) any {
	switch val := v.(type) {
	case nil, Null:
		return nil
	case Uint:
		return uint64(val)
	case Int:
		return int64(val)
	case Bool:
		return bool(val)
	case String:
		return string(val)
	case List:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToAny(elem)
		}
		return out
	case Struct:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = ToAny(elem)
		}
		return out
	}
	return nil
}
