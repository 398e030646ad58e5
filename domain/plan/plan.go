package plan

import (
	"graphcache/pkg/stablejson"
)

// Plan is the immutable, fingerprinted compilation of a query or fragment
// document (spec §4.1). It never references variable *values* — only
// their names and defaults — so the same Plan serves every call with
// different variables.
type Plan struct {
	Operation    OperationKind
	RootTypename string
	fragmentName string

	Fields           []*PlanField
	responseKeyIndex map[string]*PlanField

	NetworkQuery string
	PlanID       uint32

	// StrictMask lists the dotted response-key path of every connection
	// field reachable from this plan's root; CanonicalMask lists the
	// subset whose ConnectionFilters is non-empty (spec §4.3). No other
	// package reads them.
	StrictMask    []string
	CanonicalMask []string

	WindowArgs       map[string]bool
	variableDefaults map[string]astValue
}

// index populates responseKeyIndex for O(1) field lookup by response key.
func (p *Plan) index() {
	p.responseKeyIndex = make(map[string]*PlanField, len(p.Fields))
	for _, f := range p.Fields {
		p.responseKeyIndex[f.ResponseKey] = f
	}
}

// Field returns the top-level field with the given response key, or nil.
func (p *Plan) Field(responseKey string) *PlanField {
	return p.responseKeyIndex[responseKey]
}

// computeMasks walks the field tree once, recording the dotted path of
// every connection field in StrictMask and, when its ConnectionFilters
// is non-empty at compile time, in CanonicalMask as well; both masks
// are kept because whether a connection reads
// as strict or canonical also depends on the variables passed at
// read/write time (spec §4.3), so this is an upper-bound index, not the
// final answer.
func (p *Plan) computeMasks() {
	var walk func(fields []*PlanField, prefix string)
	walk = func(fields []*PlanField, prefix string) {
		for _, f := range fields {
			path := f.ResponseKey
			if prefix != "" {
				path = prefix + "." + f.ResponseKey
			}
			if f.IsConnection {
				p.StrictMask = append(p.StrictMask, path)
				if len(f.ConnectionFilters) > 0 {
					p.CanonicalMask = append(p.CanonicalMask, path)
				}
			}
			walk(f.Children, path)
		}
	}
	walk(p.Fields, "")
}

// resolveVars merges operation-level variable defaults under the raw
// vars map passed in by the caller, without mutating the caller's map.
// PlanField.BuildArgs/StringifyArgs/FilterArgs must always be called
// against the resolved map, never the raw one, or an omitted variable
// with a default would wrongly be treated as undefined.
func (p *Plan) resolveVars(vars map[string]any) map[string]any {
	if len(p.variableDefaults) == 0 {
		return vars
	}
	resolved := make(map[string]any, len(vars)+len(p.variableDefaults))
	for name, v := range p.variableDefaults {
		val, undefined := evalValue(v, vars)
		if !undefined {
			resolved[name] = val
		}
	}
	for k, v := range vars {
		resolved[k] = v
	}
	return resolved
}

// ResolveVars exposes resolveVars to callers outside this package (the
// materializer must resolve once at the root of a walk and thread the
// same resolved map through every nested BuildArgsMap/FilterArgsMap
// call, rather than re-resolving per field).
func (p *Plan) ResolveVars(vars map[string]any) map[string]any {
	return p.resolveVars(vars)
}

// MakeVarsKey renders the stable cache-key fragment used in the
// materializer's result-cache key (spec §4.5): every top-level field's
// stringified arguments (only a connection field's filter arguments when
// canonical is true), keyed by response key so field order never
// affects the hash.
func (p *Plan) MakeVarsKey(canonical bool, vars map[string]any) string {
	resolved := p.resolveVars(vars)
	om := stablejson.NewOrderedMap()
	for _, f := range p.Fields {
		om.Set(f.ResponseKey, f.stringifyArgsFor(canonical, resolved))
	}
	return stablejson.Marshal(argsToMap(om))
}

// MakeSignature renders the same information as MakeVarsKey but keyed
// by PlanID too, forming the full result-cache key described in spec
// §4.5 ("plan_id, canonical flag, root_id, vars_key").
func (p *Plan) MakeSignature(canonical bool, rootID string, vars map[string]any) string {
	om := stablejson.NewOrderedMap()
	om.Set("plan_id", p.PlanID)
	om.Set("canonical", canonical)
	om.Set("root_id", rootID)
	om.Set("vars_key", p.MakeVarsKey(canonical, vars))
	return stablejson.Marshal(argsToMap(om))
}

func (f *PlanField) stringifyArgsFor(canonical bool, vars map[string]any) string {
	if f.IsConnection && canonical {
		return stablejson.Marshal(argsToMap(f.FilterArgs(vars)))
	}
	return f.StringifyArgs(vars)
}
