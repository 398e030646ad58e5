// Package errors defines the cache's error taxonomy.
package errors

import (
	"errors"
	"fmt"
)

// Type categorizes a CacheError the way callers are expected to branch on it.
type Type string

const (
	TypeNoOperation       Type = "NO_OPERATION"
	TypeAmbiguousFragment Type = "AMBIGUOUS_FRAGMENT"
	TypeFragmentNotFound  Type = "FRAGMENT_NOT_FOUND"
	TypeNetwork           Type = "NETWORK"
	TypeInternal          Type = "INTERNAL"
)

// CacheError is the concrete error type returned by compiler and pipeline
// failures that are surfaced to a caller (see spec §7).
type CacheError struct {
	Type    Type
	Message string
	Err     error
}

func (e *CacheError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *CacheError) Unwrap() error {
	return e.Err
}

// NewPlanError builds a CacheError for one of the PlanError cases in §4.1.
func NewPlanError(t Type, message string) error {
	return &CacheError{Type: t, Message: message}
}

// NewNetwork wraps a transport failure for propagation into a pending future.
func NewNetwork(err error) error {
	return &CacheError{Type: TypeNetwork, Message: "transport call failed", Err: err}
}

// NewInternal wraps an unexpected internal failure.
func NewInternal(message string, err error) error {
	return &CacheError{Type: TypeInternal, Message: message, Err: err}
}

// Is reports whether err carries the given Type.
func Is(err error, t Type) bool {
	var ce *CacheError
	if errors.As(err, &ce) {
		return ce.Type == t
	}
	return false
}

// Sentinel values for the internal conditions in §7. read_query and
// read_fragment never return them: a miss there becomes a {source: none}
// result. execute_query returns HydrationMiss for a miss inside the
// hydration window, and CacheMiss when a network response does not cover
// the plan; watchers drop a superseded generation without an error.
var (
	// CacheMiss marks a materializer read with no backing record; the
	// facade surfaces it as data:nil, source:none rather than an error.
	CacheMiss = errors.New("graphcache: cache miss")
	// StaleDrop marks a pipeline result from a superseded request generation.
	StaleDrop = errors.New("graphcache: stale generation dropped")
	// HydrationMiss marks a miss reported during the hydration window.
	HydrationMiss = errors.New("graphcache: hydration miss")
)
