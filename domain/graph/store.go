package graph

import "sync"

// KeyExtractor derives the key value for an entity of a given typename
// from its attributes. Returning ok=false means the extractor produced
// null: the object is embedded rather than promoted to its own record
// (spec §3).
type KeyExtractor func(attrs map[string]any) (keyValue string, ok bool)

// Config configures per-type key extraction and interface dispatch.
type Config struct {
	Keys       map[string]KeyExtractor
	Interfaces map[string][]string
}

// OnChange is invoked once per top-level write transaction with the set
// of record keys that transaction touched (spec §4.2 Broadcast).
type OnChange func(touched map[string]struct{})

// Store is the normalized record store: a mapping from record key to
// Record, with a single coalesced change broadcast per write transaction.
type Store struct {
	mu         sync.RWMutex
	records    map[string]Record
	cfg        Config
	onChange   OnChange
	txDepth    int
	txTouched  map[string]struct{}
}

// New creates an empty Store.
func New(cfg Config, onChange OnChange) *Store {
	if cfg.Keys == nil {
		cfg.Keys = map[string]KeyExtractor{}
	}
	if cfg.Interfaces == nil {
		cfg.Interfaces = map[string][]string{}
	}
	if onChange == nil {
		onChange = func(map[string]struct{}) {}
	}
	return &Store{
		records:  make(map[string]Record),
		cfg:      cfg,
		onChange: onChange,
	}
}

// Identify applies the per-type key extractor for typename. It returns
// ("", false) when there is no extractor registered for typename and no
// "id" attribute either, matching the default-to-id rule in spec §3.
func (s *Store) Identify(typename string, attrs map[string]any) (string, bool) {
	if extractor, ok := s.cfg.Keys[typename]; ok {
		keyValue, ok := extractor(attrs)
		if !ok {
			return "", false
		}
		return EntityKey(typename, keyValue), true
	}

	id, ok := attrs["id"]
	if !ok || id == nil {
		return "", false
	}
	return EntityKey(typename, toKeyString(id)), true
}

// Implementors returns the concrete typenames for an interface name, or
// nil if interfaceName is not registered as an interface.
func (s *Store) Implementors(interfaceName string) []string {
	return s.cfg.Interfaces[interfaceName]
}

// MatchesTypeGuard reports whether typename satisfies a plan field's type
// guard: exact match, or membership in the guard interface's concrete
// list (SPEC_FULL §3 supplement).
func (s *Store) MatchesTypeGuard(guard, typename string) bool {
	if guard == "" || guard == typename {
		return true
	}
	for _, concrete := range s.cfg.Interfaces[guard] {
		if concrete == typename {
			return true
		}
	}
	return false
}

// GetRecord returns the record stored at key, if any.
func (s *Store) GetRecord(key string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key]
	return rec, ok
}

// Begin opens a write transaction. Nested Begin/Commit pairs coalesce
// into a single OnChange call at the outermost Commit (spec §4.2
// Broadcast: "all writes performed inside normalize are coalesced into
// one call").
func (s *Store) Begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.txDepth == 0 {
		s.txTouched = make(map[string]struct{})
	}
	s.txDepth++
}

// Commit closes a write transaction, firing OnChange once the outermost
// transaction closes.
func (s *Store) Commit() {
	s.mu.Lock()
	s.txDepth--
	var fire map[string]struct{}
	if s.txDepth == 0 {
		fire = s.txTouched
		s.txTouched = nil
	}
	s.mu.Unlock()

	if fire != nil && len(fire) > 0 {
		s.onChange(fire)
	}
}

// PutRecord merges partial attribute-wise over the existing record at
// key. Setting an attribute to a Ref/RefList replaces the previous value
// at that attribute; missing attributes are preserved (spec §4.2).
func (s *Store) PutRecord(key string, partial Record) {
	s.mu.Lock()
	existing, ok := s.records[key]
	if !ok {
		existing = make(Record)
	} else {
		existing = existing.Clone()
	}
	for k, v := range partial {
		existing[k] = v
	}
	s.records[key] = existing
	fire := s.touchLocked(key)
	s.mu.Unlock()

	if fire != nil {
		s.onChange(fire)
	}
}

// DeleteRecord removes key from the store entirely. The optimistic
// layer's delete and remove_node ops do not call it: they act on the
// overlay only and leave base records in place.
func (s *Store) DeleteRecord(key string) {
	s.mu.Lock()
	delete(s.records, key)
	fire := s.touchLocked(key)
	s.mu.Unlock()

	if fire != nil {
		s.onChange(fire)
	}
}

// touchLocked records key as part of the currently open transaction, or
// returns a single-key set to fire immediately if called outside any
// transaction. Callers hold mu while calling this and must fire the
// returned set only after releasing it: OnChange may synchronously
// re-enter the store (a watcher's callback typically calls GetRecord),
// so onChange must never run while mu is held.
func (s *Store) touchLocked(key string) map[string]struct{} {
	if s.txDepth > 0 {
		s.txTouched[key] = struct{}{}
		return nil
	}
	return map[string]struct{}{key: {}}
}

// Snapshot returns every (key, record) pair in the store, used by
// dehydrate (spec §6).
func (s *Store) Snapshot() map[string]Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Record, len(s.records))
	for k, v := range s.records {
		out[k] = v.Clone()
	}
	return out
}

// Restore replaces the store's contents wholesale, used by hydrate (spec
// §6). It does not fire OnChange: hydration is expected to happen before
// any watcher subscribes, and callers that hydrate into a live cache are
// responsible for re-materializing watchers themselves.
func (s *Store) Restore(records map[string]Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make(map[string]Record, len(records))
	for k, v := range records {
		next[k] = v.Clone()
	}
	s.records = next
}

func toKeyString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	default:
		return toString(val)
	}
}
