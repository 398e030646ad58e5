package graph

// View is a hot reference to a record that resolves ref/ref-list
// attributes lazily against the Store (spec §4.2,
// "materialize_record(key) -> materialized_view"). Each view carries the
// set of keys visited on the path from its root view. A ref back to an
// already-visited key still resolves to an ordinary View of that key;
// no View method returns EmptyPlaceholder.
type View struct {
	store   *Store
	key     string
	visited map[string]bool
}

// EmptyPlaceholder is a shared empty Record, distinct from nil. View does
// not return it: Get returns nil for a missing record or attribute, and a
// cyclic ref resolves to a View of the revisited key.
var EmptyPlaceholder = Record{}

// NewView creates a hot view rooted at key.
func (s *Store) NewView(key string) *View {
	return &View{store: s, key: key, visited: map[string]bool{}}
}

// Get returns the resolved attribute value for name: scalars and inline
// objects/lists pass through unchanged, a Ref resolves to a nested
// *View, and a RefList resolves to a slice of *View.
func (v *View) Get(name string) any {
	rec, ok := v.store.GetRecord(v.key)
	if !ok {
		return nil
	}
	raw, ok := rec[name]
	if !ok {
		return nil
	}

	if ref, ok := IsRef(raw); ok {
		return v.resolveRef(ref.Key)
	}
	if rl, ok := IsRefList(raw); ok {
		out := make([]*View, 0, len(rl.Keys))
		for _, k := range rl.Keys {
			out = append(out, v.resolveRef(k))
		}
		return out
	}
	return raw
}

func (v *View) resolveRef(key string) *View {
	if v.visited[key] {
		return &View{store: v.store, key: key, visited: v.visited}
	}
	next := map[string]bool{key: true}
	for k := range v.visited {
		next[k] = true
	}
	return &View{store: v.store, key: key, visited: next}
}

// Typename is a convenience accessor for the common "__typename" field.
func (v *View) Typename() string {
	if t, ok := v.Get("__typename").(string); ok {
		return t
	}
	return ""
}

// Exists reports whether the underlying record is present in the store.
func (v *View) Exists() bool {
	_, ok := v.store.GetRecord(v.key)
	return ok
}

// Key returns the record key this view is rooted at.
func (v *View) Key() string {
	return v.key
}
