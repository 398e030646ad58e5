// Package graph implements the normalized entity graph: the record store
// described in spec §4.2, with ref-typed field values that form a DAG
// (spec §3). It is grounded on the teacher's aggregate construction
// (backend/domain/core/aggregates/graph.go, graph_lazy.go) adapted from a
// single in-process aggregate into a keyed store of many small records.
package graph

import (
	"fmt"

	"graphcache/pkg/stablejson"
)

// RootKey identifies the implicit root record that operation-level reads
// and writes hang off (spec §3, synthetic key "@").
const RootKey = "@"

// EntityKey builds the canonical key for an entity record: "<Typename>:<keyValue>".
func EntityKey(typename, keyValue string) string {
	return fmt.Sprintf("%s:%s", typename, keyValue)
}

// StrictPageKey builds the key for a connection's strict (exact window)
// page record: "<parent>.<field>(<arg-json>)", e.g. "@.posts({...})" for
// a field on the root record.
func StrictPageKey(parent, field string, args any) string {
	return fmt.Sprintf("%s.%s(%s)", parent, field, stablejson.Marshal(args))
}

// ConnectionKey builds the key for a canonical connection record:
// "@connection.<parent>.<field>(<identity-arg-json>)".
func ConnectionKey(parent, field string, identityArgs any) string {
	return fmt.Sprintf("@connection.%s.%s(%s)", parent, field, stablejson.Marshal(identityArgs))
}

// EdgeKey builds the key for the i-th edge child record of a connection.
func EdgeKey(connectionKey string, index int) string {
	return fmt.Sprintf("%s.edges:%d", connectionKey, index)
}

// PageInfoKey builds the key for a connection's pageInfo child record.
func PageInfoKey(connectionKey string) string {
	return fmt.Sprintf("%s.pageInfo", connectionKey)
}
