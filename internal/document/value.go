// Package document models documents as flattened attribute maps over a
// closed tagged value type, and defines the document store interface used
// by snapshot builds and hit materialisation.
package document

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// Kind enumerates the closed set of value types a document attribute can hold.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is a closed tagged variant over the JSON scalar and container types.
// Filter and sort comparisons switch exhaustively on Kind so that every
// type pairing is handled explicitly.
type Value struct {
	kind Kind
	num  float64
	str  string
	b    bool
	arr  []Value
	obj  map[string]Value
}

// Null returns the null value.
func Null() Value { return Value{kind: KindNull} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number wraps a float64.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Array wraps a slice of values.
func Array(vs ...Value) Value { return Value{kind: KindArray, arr: vs} }

// Object wraps a map of values.
func Object(m map[string]Value) Value { return Value{kind: KindObject, obj: m} }

// FromAny converts a json.Unmarshal-decoded value into a Value.
func FromAny(v any) Value {
	switch t := v.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(t)
	case float64:
		return Number(t)
	case int:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case string:
		return String(t)
	case []any:
		arr := make([]Value, len(t))
		for i, e := range t {
			arr[i] = FromAny(e)
		}
		return Array(arr...)
	case map[string]any:
		obj := make(map[string]Value, len(t))
		for k, e := range t {
			obj[k] = FromAny(e)
		}
		return Object(obj)
	default:
		return String(fmt.Sprintf("%v", t))
	}
}

// Kind returns the value's type tag.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is explicit null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsEmpty reports whether the value is "", [] or {}. Null is not empty.
func (v Value) IsEmpty() bool {
	switch v.kind {
	case KindString:
		return v.str == ""
	case KindArray:
		return len(v.arr) == 0
	case KindObject:
		return len(v.obj) == 0
	default:
		return false
	}
}

// Num returns the numeric payload. Valid only when Kind is KindNumber.
func (v Value) Num() float64 { return v.num }

// Str returns the string payload. Valid only when Kind is KindString.
func (v Value) Str() string { return v.str }

// BoolVal returns the boolean payload. Valid only when Kind is KindBool.
func (v Value) BoolVal() bool { return v.b }

// Elems returns the array payload. Valid only when Kind is KindArray.
func (v Value) Elems() []Value { return v.arr }

// Fields returns the object payload. Valid only when Kind is KindObject.
func (v Value) Fields() map[string]Value { return v.obj }

// AsNumber attempts to interpret the value as a number, parsing numeric
// strings. Used for numeric facet stats and custom numeric sorts.
func (v Value) AsNumber() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.str), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Equals implements filter equality: strings compare case-insensitively,
// null and empty arrays never satisfy equality, and an array matches when
// any of its elements matches.
func (v Value) Equals(other Value) bool {
	if v.kind == KindArray {
		for _, e := range v.arr {
			if e.Equals(other) {
				return true
			}
		}
		return false
	}
	if v.kind == KindNull {
		return false
	}
	switch {
	case v.kind == KindString && other.kind == KindString:
		return strings.EqualFold(v.str, other.str)
	case v.kind == KindNumber && other.kind == KindNumber:
		return v.num == other.num
	case v.kind == KindBool && other.kind == KindBool:
		return v.b == other.b
	// Numeric strings compare equal to numbers so that "42" matches 42,
	// matching how filters parse scalar operands from text.
	case v.kind == KindNumber && other.kind == KindString:
		if f, ok := other.AsNumber(); ok {
			return v.num == f
		}
		return false
	case v.kind == KindString && other.kind == KindNumber:
		if f, ok := v.AsNumber(); ok {
			return f == other.num
		}
		return false
	default:
		return false
	}
}

// Compare orders two values for range filters and sorting. It returns a
// negative, zero, or positive int, and false when the pair is not ordered
// (incomparable kinds). Numbers order numerically; strings order
// lexicographically with symbol < digit < letter class precedence and
// case-insensitive rune comparison; booleans order false < true.
func (v Value) Compare(other Value) (int, bool) {
	if v.kind == KindArray {
		// An array is ordered against a scalar by its smallest element,
		// which makes range filters behave as "any element in range"
		// together with Equals above.
		best := 0
		found := false
		for _, e := range v.arr {
			c, ok := e.Compare(other)
			if !ok {
				continue
			}
			if !found || c < best {
				best = c
				found = true
			}
		}
		return best, found
	}
	switch {
	case v.kind == KindNumber && other.kind == KindNumber:
		return compareFloat(v.num, other.num), true
	case v.kind == KindString && other.kind == KindString:
		return CompareStrings(v.str, other.str), true
	case v.kind == KindNumber && other.kind == KindString:
		if f, ok := other.AsNumber(); ok {
			return compareFloat(v.num, f), true
		}
		return 0, false
	case v.kind == KindString && other.kind == KindNumber:
		if f, ok := v.AsNumber(); ok {
			return compareFloat(f, other.num), true
		}
		return 0, false
	case v.kind == KindBool && other.kind == KindBool:
		if v.b == other.b {
			return 0, true
		}
		if !v.b {
			return -1, true
		}
		return 1, true
	default:
		return 0, false
	}
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// CompareStrings orders strings with symbol < digit < letter class
// precedence, then case-insensitive rune order within a class.
func CompareStrings(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	n := len(ra)
	if len(rb) < n {
		n = len(rb)
	}
	for i := 0; i < n; i++ {
		ca, cb := runeClass(ra[i]), runeClass(rb[i])
		if ca != cb {
			return ca - cb
		}
		la, lb := unicode.ToLower(ra[i]), unicode.ToLower(rb[i])
		if la != lb {
			if la < lb {
				return -1
			}
			return 1
		}
	}
	return len(ra) - len(rb)
}

// runeClass buckets runes for ordering: symbols before digits before letters.
func runeClass(r rune) int {
	switch {
	case unicode.IsLetter(r):
		return 2
	case unicode.IsDigit(r):
		return 1
	default:
		return 0
	}
}

// FacetString renders the value as a facet key. Numbers drop a trailing
// ".0" so 42.0 and 42 tally into one bucket.
func (v Value) FacetString() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		if v.num == math.Trunc(v.num) && math.Abs(v.num) < 1e15 {
			return strconv.FormatInt(int64(v.num), 10)
		}
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindString:
		return v.str
	default:
		return ""
	}
}

// Flatten converts a decoded JSON object into a flat attribute map, joining
// nested object keys with dots. Arrays are preserved; objects inside arrays
// are kept as object values.
func Flatten(raw map[string]any) map[string]Value {
	out := make(map[string]Value, len(raw))
	flattenInto(out, "", raw)
	return out
}

func flattenInto(out map[string]Value, prefix string, raw map[string]any) {
	for k, v := range raw {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			if len(nested) == 0 {
				// keep empty objects addressable, for IS EMPTY
				out[key] = Object(nil)
				continue
			}
			flattenInto(out, key, nested)
			continue
		}
		out[key] = FromAny(v)
	}
}

// Any converts the value back to plain Go types, for JSON responses.
func (v Value) Any() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.num
	case KindString:
		return v.str
	case KindArray:
		out := make([]any, len(v.arr))
		for i, e := range v.arr {
			out[i] = e.Any()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.obj))
		for k, e := range v.obj {
			out[k] = e.Any()
		}
		return out
	default:
		return nil
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = FromAny(raw)
	return nil
}

// SortedKeys returns the attribute names of a flattened map in ascending
// order, for deterministic iteration.
func SortedKeys(fields map[string]Value) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
