package plan

import (
	"sort"

	"graphcache/pkg/stablejson"
)

// PlanField is one compiled selection (spec §4.1 "Plan field").
type PlanField struct {
	ResponseKey  string
	FieldName    string
	TypeGuard    string
	ExpectedArgs []string

	arguments  []astArgument
	directives []astDirective

	IsConnection      bool
	ConnectionKeyName string
	ConnectionFilters []string
	ReplaceMode       bool

	Children []*PlanField
}

// BuildArgs evaluates the field's literal and variable argument nodes
// against vars, in deterministic (sorted) key order, omitting variables
// that resolve to undefined (spec §4.1 build_args).
func (f *PlanField) BuildArgs(vars map[string]any) *stablejson.OrderedMap {
	om := stablejson.NewOrderedMap()
	names := make([]string, 0, len(f.arguments))
	byName := make(map[string]astArgument, len(f.arguments))
	for _, a := range f.arguments {
		names = append(names, a.name)
		byName[a.name] = a
	}
	sort.Strings(names)

	for _, name := range names {
		val, undefined := evalValue(byName[name].value, vars)
		if undefined {
			continue
		}
		om.Set(name, val)
	}
	return om
}

// StringifyArgs renders BuildArgs' result as stable JSON (spec §4.1
// stringify_args).
func (f *PlanField) StringifyArgs(vars map[string]any) string {
	return stablejson.Marshal(argsToMap(f.BuildArgs(vars)))
}

// FilterArgs evaluates only the connection-identity argument subset
// (spec §4.3 "Filter identity"), used to build the canonical connection
// key.
func (f *PlanField) FilterArgs(vars map[string]any) *stablejson.OrderedMap {
	om := stablejson.NewOrderedMap()
	filters := make(map[string]bool, len(f.ConnectionFilters))
	for _, n := range f.ConnectionFilters {
		filters[n] = true
	}
	full := f.BuildArgs(vars)
	for _, k := range full.InsertionKeys() {
		if filters[k] {
			v, _ := full.Get(k)
			om.Set(k, v)
		}
	}
	return om
}

// BuildArgsMap is BuildArgs flattened to a plain map, for callers outside
// this package (the materializer's write-contract normalize and
// connection-key construction) that don't need insertion order.
func (f *PlanField) BuildArgsMap(vars map[string]any) map[string]any {
	return f.BuildArgs(vars).ToMap()
}

// FilterArgsMap is FilterArgs flattened to a plain map, used to build a
// connection field's canonical key.
func (f *PlanField) FilterArgsMap(vars map[string]any) map[string]any {
	return f.FilterArgs(vars).ToMap()
}

func argsToMap(om *stablejson.OrderedMap) map[string]any {
	out := make(map[string]any, om.Len())
	for _, k := range om.InsertionKeys() {
		v, _ := om.Get(k)
		out[k] = v
	}
	return out
}

// evalValue evaluates an AST value node against supplied variables.
// Variables absent from vars and without a default resolve to
// (nil, true) meaning "undefined, drop this argument".
func evalValue(v astValue, vars map[string]any) (value any, undefined bool) {
	switch val := v.(type) {
	case astVariable:
		resolved, ok := vars[val.name]
		if !ok {
			return nil, true
		}
		return resolved, false
	case astIntValue:
		return val.value, false
	case astFloatValue:
		return val.value, false
	case astStringValue:
		return val.value, false
	case astBoolValue:
		return val.value, false
	case astNullValue:
		return nil, false
	case astEnumValue:
		return val.value, false
	case astListValue:
		out := make([]any, 0, len(val.values))
		for _, item := range val.values {
			iv, undef := evalValue(item, vars)
			if undef {
				continue
			}
			out = append(out, iv)
		}
		return out, false
	case astObjectValue:
		out := make(map[string]any, len(val.fields))
		for _, field := range val.fields {
			fv, undef := evalValue(field.value, vars)
			if undef {
				continue
			}
			out[field.name] = fv
		}
		return out, false
	default:
		return nil, true
	}
}
