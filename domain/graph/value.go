package graph

// Ref is a typed pointer from one record attribute to another record's
// key (spec §3, "{__ref: <key>}"). It is never owned: the target record
// is owned by its own entry in the Store.
type Ref struct {
	Key string
}

// RefList is an ordered list of Refs (spec §3, "{__refs: [<key>, ...]}").
// Order is preserved; a ref-list is rewritten atomically by PutRecord.
type RefList struct {
	Keys []string
}

// Record is a mapping from response-key to field value. A value is one
// of: scalar (including nil), inline object (map[string]any), list of
// values ([]any), Ref, or RefList.
type Record map[string]any

// Clone returns a shallow copy of r sufficient for copy-on-write merges;
// nested maps/slices are not deep-copied since field values are replaced
// wholesale, never mutated in place (spec §4.2 put_record semantics).
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// IsRef reports whether v is a Ref.
func IsRef(v any) (Ref, bool) {
	ref, ok := v.(Ref)
	return ref, ok
}

// IsRefList reports whether v is a RefList.
func IsRefList(v any) (RefList, bool) {
	rl, ok := v.(RefList)
	return rl, ok
}
