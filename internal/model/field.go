package model

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// ValueType tags the variant held by a FieldValue.
type ValueType int

// FieldValue variants. The zero FieldValue is absent.
const (
	ValueAbsent ValueType = iota
	ValueScalar
	ValueList
	ValueMap
)

// FieldValue is a tagged union of scalar, list and map values. Entity fields
// of arbitrary nested shape are read through it instead of reflection.
type FieldValue struct {
	typ   ValueType
	str   string
	items []FieldValue
	entry map[string]FieldValue
}

// Scalar returns a scalar value.
func Scalar(s string) FieldValue {
	return FieldValue{typ: ValueScalar, str: s}
}

// List returns a list value.
func List(items ...FieldValue) FieldValue {
	return FieldValue{typ: ValueList, items: items}
}

// Strings returns a list of scalar values.
func Strings(ss ...string) FieldValue {
	items := make([]FieldValue, len(ss))
	for i, s := range ss {
		items[i] = Scalar(s)
	}
	return List(items...)
}

// Map returns a map value.
func Map(m map[string]FieldValue) FieldValue {
	if m == nil {
		m = map[string]FieldValue{}
	}
	return FieldValue{typ: ValueMap, entry: m}
}

// Type returns the variant tag.
func (v FieldValue) Type() ValueType { return v.typ }

// IsAbsent reports whether v holds no value.
func (v FieldValue) IsAbsent() bool { return v.typ == ValueAbsent }

// IsScalar reports whether v is a scalar.
func (v FieldValue) IsScalar() bool { return v.typ == ValueScalar }

// IsList reports whether v is a list.
func (v FieldValue) IsList() bool { return v.typ == ValueList }

// IsMap reports whether v is a map.
func (v FieldValue) IsMap() bool { return v.typ == ValueMap }

// String returns the scalar text, or "" for non-scalars.
func (v FieldValue) String() string { return v.str }

// Items returns the list elements, or nil for non-lists.
func (v FieldValue) Items() []FieldValue { return v.items }

// Entries returns the map entries, or nil for non-maps.
func (v FieldValue) Entries() map[string]FieldValue { return v.entry }

// Leaves returns every scalar reachable from v, depth first. Map keys are
// visited in sorted order so the output is deterministic.
func (v FieldValue) Leaves() []string {
	var out []string
	v.collect(&out)
	return out
}

func (v FieldValue) collect(out *[]string) {
	switch v.typ {
	case ValueScalar:
		*out = append(*out, v.str)
	case ValueList:
		for _, it := range v.items {
			it.collect(out)
		}
	case ValueMap:
		for _, k := range sortedKeys(v.entry) {
			v.entry[k].collect(out)
		}
	}
}

// Equal reports deep equality. Map key order is irrelevant, list order is not.
func (v FieldValue) Equal(o FieldValue) bool {
	if v.typ != o.typ {
		return false
	}
	switch v.typ {
	case ValueScalar:
		return v.str == o.str
	case ValueList:
		if len(v.items) != len(o.items) {
			return false
		}
		for i := range v.items {
			if !v.items[i].Equal(o.items[i]) {
				return false
			}
		}
		return true
	case ValueMap:
		if len(v.entry) != len(o.entry) {
			return false
		}
		for k, a := range v.entry {
			b, ok := o.entry[k]
			if !ok || !a.Equal(b) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// Contains reports whether a list holds an element equal to item. A scalar
// contains itself.
func (v FieldValue) Contains(item FieldValue) bool {
	switch v.typ {
	case ValueList:
		for _, it := range v.items {
			if it.Equal(item) {
				return true
			}
		}
		return false
	default:
		return v.Equal(item)
	}
}

// Lookup resolves a path of segments below v. Segments address map keys or,
// for lists, decimal indexes.
func (v FieldValue) Lookup(segments []string) (FieldValue, bool) {
	cur := v
	for _, seg := range segments {
		switch cur.typ {
		case ValueMap:
			next, ok := cur.entry[seg]
			if !ok {
				return FieldValue{}, false
			}
			cur = next
		case ValueList:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(cur.items) {
				return FieldValue{}, false
			}
			cur = cur.items[i]
		default:
			return FieldValue{}, false
		}
	}
	return cur, !cur.IsAbsent()
}

// MarshalJSON encodes scalars as strings, lists as arrays and maps as objects.
func (v FieldValue) MarshalJSON() ([]byte, error) {
	switch v.typ {
	case ValueScalar:
		return json.Marshal(v.str)
	case ValueList:
		items := v.items
		if items == nil {
			items = []FieldValue{}
		}
		return json.Marshal(items)
	case ValueMap:
		return json.Marshal(v.entry)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes any JSON value. Numbers and booleans become scalars.
func (v *FieldValue) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return eris.Wrap(err, "model: decode field value")
	}
	*v = FromAny(raw)
	return nil
}

// FromAny converts a decoded JSON value into a FieldValue.
func FromAny(raw any) FieldValue {
	switch t := raw.(type) {
	case nil:
		return FieldValue{}
	case string:
		return Scalar(t)
	case json.Number:
		return Scalar(t.String())
	case bool:
		return Scalar(strconv.FormatBool(t))
	case float64:
		return Scalar(strconv.FormatFloat(t, 'f', -1, 64))
	case int:
		return Scalar(strconv.Itoa(t))
	case int64:
		return Scalar(strconv.FormatInt(t, 10))
	case []string:
		return Strings(t...)
	case []any:
		items := make([]FieldValue, 0, len(t))
		for _, it := range t {
			if fv := FromAny(it); !fv.IsAbsent() {
				items = append(items, fv)
			}
		}
		return List(items...)
	case map[string]any:
		m := make(map[string]FieldValue, len(t))
		for k, it := range t {
			if fv := FromAny(it); !fv.IsAbsent() {
				m[k] = fv
			}
		}
		return Map(m)
	case FieldValue:
		return t
	default:
		return FieldValue{}
	}
}

// Fields maps top-level field names to values. Nested values are addressed
// with dotted paths such as "profile.emails" or "addresses.0".
type Fields map[string]FieldValue

// SplitPath splits a dotted field path into segments.
func SplitPath(path string) []string {
	path = strings.Trim(path, ".")
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// Lookup resolves a dotted path. A missing or empty path reports false.
func (f Fields) Lookup(path string) (FieldValue, bool) {
	segs := SplitPath(path)
	if len(segs) == 0 {
		return FieldValue{}, false
	}
	root, ok := f[segs[0]]
	if !ok {
		return FieldValue{}, false
	}
	return root.Lookup(segs[1:])
}

// Append adds item at path. An absent path is created (intermediate maps
// included); a scalar holding a different value becomes a two-element list;
// a list gains item unless it already contains it.
func (f Fields) Append(path string, item FieldValue) error {
	segs := SplitPath(path)
	if len(segs) == 0 {
		return eris.New("model: empty field path")
	}
	cur, ok := f[segs[0]]
	if !ok {
		cur = FieldValue{}
	}
	updated, err := appendAt(cur, segs[1:], item, path)
	if err != nil {
		return err
	}
	f[segs[0]] = updated
	return nil
}

func appendAt(cur FieldValue, segs []string, item FieldValue, path string) (FieldValue, error) {
	if len(segs) == 0 {
		switch cur.typ {
		case ValueAbsent:
			return item, nil
		case ValueScalar:
			if cur.Equal(item) {
				return cur, nil
			}
			return List(cur, item), nil
		case ValueList:
			if cur.Contains(item) {
				return cur, nil
			}
			items := append(append([]FieldValue{}, cur.items...), item)
			return List(items...), nil
		default:
			return cur, eris.Errorf("model: cannot append to map at %q", path)
		}
	}
	switch cur.typ {
	case ValueAbsent:
		cur = Map(nil)
	case ValueMap:
	default:
		return cur, eris.Errorf("model: path %q crosses a non-map value", path)
	}
	m := make(map[string]FieldValue, len(cur.entry)+1)
	for k, v := range cur.entry {
		m[k] = v
	}
	child, err := appendAt(m[segs[0]], segs[1:], item, path)
	if err != nil {
		return cur, err
	}
	m[segs[0]] = child
	return Map(m), nil
}

// Clone returns a deep copy of f.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v.clone()
	}
	return out
}

func (v FieldValue) clone() FieldValue {
	switch v.typ {
	case ValueList:
		items := make([]FieldValue, len(v.items))
		for i, it := range v.items {
			items[i] = it.clone()
		}
		return List(items...)
	case ValueMap:
		m := make(map[string]FieldValue, len(v.entry))
		for k, it := range v.entry {
			m[k] = it.clone()
		}
		return Map(m)
	default:
		return v
	}
}

// SortedKeys returns the top-level field names in sorted order.
func (f Fields) SortedKeys() []string {
	return sortedKeys(f)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
