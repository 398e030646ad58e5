// Package stablejson renders argument maps as canonical JSON: object keys
// sorted, undefined values dropped. Two calls with equal arguments always
// render equal strings, which is what lets record keys and plan
// signatures be compared by string equality (spec §3, "Argument JSON is
// stable").
package stablejson

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Marshal renders v (expected to be a map[string]any, ordered-map, slice,
// or scalar) as stable JSON. nil and the sentinel Undefined value are
// omitted from object fields entirely rather than rendered as null.
func Marshal(v any) string {
	var buf bytes.Buffer
	encode(&buf, v)
	return buf.String()
}

// Undefined is a sentinel distinguishing "argument not supplied" from
// "argument explicitly null" (spec §3: "undefined dropped").
type undefinedT struct{}

var Undefined = undefinedT{}

func encode(buf *bytes.Buffer, v any) {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case undefinedT:
		buf.WriteString("null")
	case map[string]any:
		encodeMap(buf, val)
	case *OrderedMap:
		encodeOrdered(buf, val)
	case []any:
		encodeSlice(buf, val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			buf.WriteString("null")
			return
		}
		buf.Write(b)
	}
}

func encodeMap(buf *bytes.Buffer, m map[string]any) {
	keys := make([]string, 0, len(m))
	for k, v := range m {
		if _, ok := v.(undefinedT); ok {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, _ := json.Marshal(k)
		buf.Write(kb)
		buf.WriteByte(':')
		encode(buf, m[k])
	}
	buf.WriteByte('}')
}

func encodeSlice(buf *bytes.Buffer, s []any) {
	buf.WriteByte('[')
	for i, v := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		encode(buf, v)
	}
	buf.WriteByte(']')
}

// OrderedMap preserves insertion order for iteration (used by plan field
// argument builders, see domain/plan) while Marshal still sorts its keys
// for the stable-JSON rendering — insertion order only matters for
// deterministic build_args iteration, not for the wire/key form.
type OrderedMap struct {
	keys   []string
	values map[string]any
}

func NewOrderedMap() *OrderedMap {
	return &OrderedMap{values: make(map[string]any)}
}

func (m *OrderedMap) Set(key string, value any) {
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

func (m *OrderedMap) Get(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *OrderedMap) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	sort.Strings(out)
	return out
}

// InsertionKeys returns keys in the order they were first Set, used where
// call order (not lexical order) matters.
func (m *OrderedMap) InsertionKeys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

func (m *OrderedMap) Len() int {
	return len(m.keys)
}

// ToMap flattens the OrderedMap into a plain map[string]any, discarding
// insertion order. Callers that only need stable-JSON rendering or
// store/connection keys (which sort keys themselves) can use this
// instead of threading *OrderedMap through unrelated packages.
func (m *OrderedMap) ToMap() map[string]any {
	out := make(map[string]any, len(m.keys))
	for _, k := range m.keys {
		out[k] = m.values[k]
	}
	return out
}

func encodeOrdered(buf *bytes.Buffer, m *OrderedMap) {
	asMap := make(map[string]any, len(m.keys))
	for _, k := range m.keys {
		asMap[k] = m.values[k]
	}
	encodeMap(buf, asMap)
}
