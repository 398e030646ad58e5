package plan

import (
	"fmt"

	graphErrors "graphcache/pkg/errors"
)

// defaultWindowArgs are the standard Relay-style pagination argument
// names; a connection field's filters default to expected args minus
// these (spec §4.3 "Filter identity").
var defaultWindowArgs = map[string]bool{
	"first": true, "after": true, "last": true, "before": true,
}

// cacheOnlyDirectives are stripped from the network-safe query string
// (spec §4.1).
var cacheOnlyDirectives = map[string]bool{
	"connection": true,
}

// Compile lowers a document (as source text) into an immutable Plan.
// fragmentSelector names the fragment to compile when the document has
// no operation; it is ignored when an operation is present.
func Compile(source string, fragmentSelector string) (*Plan, error) {
	doc, err := parseDocument(source)
	if err != nil {
		return nil, err
	}
	return compileDocument(doc, fragmentSelector)
}

func compileDocument(doc *astDocument, fragmentSelector string) (*Plan, error) {
	if len(doc.operations) > 0 {
		return compileOperation(doc, doc.operations[0])
	}

	if len(doc.fragments) == 0 {
		return nil, graphErrors.NewPlanError(graphErrors.TypeNoOperation, "document has no operation and no fragment")
	}

	if fragmentSelector != "" {
		frag, ok := doc.fragments[fragmentSelector]
		if !ok {
			return nil, graphErrors.NewPlanError(graphErrors.TypeFragmentNotFound, fmt.Sprintf("fragment %q not found", fragmentSelector))
		}
		return compileFragment(doc, frag)
	}

	if len(doc.fragments) > 1 {
		return nil, graphErrors.NewPlanError(graphErrors.TypeAmbiguousFragment, "document has multiple fragments and no selector")
	}

	for _, frag := range doc.fragments {
		return compileFragment(doc, frag)
	}
	panic("unreachable")
}

type lowerCtx struct {
	doc              *astDocument
	windowArgs       map[string]bool
	variableDefaults map[string]astValue
}

func compileOperation(doc *astDocument, op *astOperation) (*Plan, error) {
	ctx := &lowerCtx{doc: doc, windowArgs: defaultWindowArgs, variableDefaults: map[string]astValue{}}
	for _, def := range op.variableDefs {
		if def.hasDefault {
			ctx.variableDefaults[def.name] = def.defaultValue
		}
	}

	sanitized := sanitizeSelectionSet(ctx, op.selectionSet, true)
	fields, err := lowerSelectionSet(ctx, sanitized, "")
	if err != nil {
		return nil, err
	}

	p := &Plan{
		Operation:        op.kind,
		Fields:           fields,
		WindowArgs:       ctx.windowArgs,
		variableDefaults: ctx.variableDefaults,
	}
	p.index()
	p.computeMasks()
	p.NetworkQuery = renderQuery(ctx, op, sanitized)
	p.PlanID = fingerprint(p)
	return p, nil
}

func compileFragment(doc *astDocument, frag *astFragment) (*Plan, error) {
	ctx := &lowerCtx{doc: doc, windowArgs: defaultWindowArgs, variableDefaults: map[string]astValue{}}

	sanitized := sanitizeSelectionSet(ctx, frag.selectionSet, true)
	fields, err := lowerSelectionSet(ctx, sanitized, frag.typeCondition)
	if err != nil {
		return nil, err
	}

	p := &Plan{
		Operation:        OperationFragment,
		RootTypename:     frag.typeCondition,
		Fields:           fields,
		WindowArgs:       ctx.windowArgs,
		variableDefaults: ctx.variableDefaults,
		fragmentName:     frag.name,
	}
	p.index()
	p.computeMasks()
	p.NetworkQuery = renderFragmentQuery(ctx, frag, sanitized)
	p.PlanID = fingerprint(p)
	return p, nil
}

// sanitizeSelectionSet flattens fragment spreads/inline fragments,
// merges duplicate selections by (response key, type guard), and adds
// __typename to every non-root selection set (spec §4.1 Sanitization).
// isRoot marks the operation/fragment's own top-level selection set,
// which is never given a synthetic __typename field.
func sanitizeSelectionSet(ctx *lowerCtx, sels []astSelection, isRoot bool) []loweredSelection {
	flattened := flattenSelections(ctx, sels, "")
	merged := mergeSelections(ctx, flattened)
	if !isRoot {
		merged = ensureTypename(merged)
	}
	return merged
}

// loweredSelection pairs a flattened field with the type guard inherited
// from any enclosing fragment spread/inline fragment. Its own
// selectionSet has already been recursively sanitized.
type loweredSelection struct {
	field     astField
	typeGuard string
}

func flattenSelections(ctx *lowerCtx, sels []astSelection, inheritedGuard string) []loweredSelection {
	var out []loweredSelection
	for _, sel := range sels {
		switch s := sel.(type) {
		case astField:
			out = append(out, loweredSelection{field: s, typeGuard: inheritedGuard})
		case astFragmentSpread:
			frag, ok := ctx.doc.fragments[s.name]
			if !ok {
				continue
			}
			guard := frag.typeCondition
			if inheritedGuard != "" {
				guard = inheritedGuard
			}
			out = append(out, flattenSelections(ctx, frag.selectionSet, guard)...)
		case astInlineFragment:
			guard := s.typeCondition
			if inheritedGuard != "" && guard == "" {
				guard = inheritedGuard
			}
			out = append(out, flattenSelections(ctx, s.selectionSet, guard)...)
		}
	}
	return out
}

// mergeSelections dedups selections sharing the same (alias, type guard),
// concatenating their raw sub-selections. It does not sanitize nested
// selection sets itself — that happens once, in lowerField, so a
// field's children are sanitized exactly once with their final merged
// contents rather than being sanitized here and then discarded.
func mergeSelections(ctx *lowerCtx, sels []loweredSelection) []loweredSelection {
	order := make([]string, 0, len(sels))
	byKey := make(map[string]*loweredSelection, len(sels))

	for _, sel := range sels {
		key := fmt.Sprintf("%s|%s", sel.field.alias, sel.typeGuard)
		if existing, ok := byKey[key]; ok {
			existing.field.selectionSet = append(existing.field.selectionSet, sel.field.selectionSet...)
			continue
		}
		cp := sel
		order = append(order, key)
		byKey[key] = &cp
	}

	out := make([]loweredSelection, 0, len(order))
	for _, k := range order {
		out = append(out, *byKey[k])
	}
	return out
}

func ensureTypename(sels []loweredSelection) []loweredSelection {
	for _, sel := range sels {
		if sel.field.name == "__typename" {
			return sels
		}
	}
	return append(sels, loweredSelection{field: astField{alias: "__typename", name: "__typename"}})
}

func lowerSelectionSet(ctx *lowerCtx, sels []loweredSelection, guardOverride string) ([]*PlanField, error) {
	fields := make([]*PlanField, 0, len(sels))
	for _, sel := range sels {
		guard := sel.typeGuard
		if guardOverride != "" {
			guard = guardOverride
		}
		pf, err := lowerField(ctx, sel.field, guard)
		if err != nil {
			return nil, err
		}
		fields = append(fields, pf)
	}
	return fields, nil
}

func lowerField(ctx *lowerCtx, f astField, guard string) (*PlanField, error) {
	pf := &PlanField{
		ResponseKey: f.alias,
		FieldName:   f.name,
		TypeGuard:   guard,
		arguments:   f.arguments,
		directives:  f.directives,
	}
	for _, a := range f.arguments {
		pf.ExpectedArgs = append(pf.ExpectedArgs, a.name)
	}

	for _, d := range f.directives {
		if d.name == "connection" {
			pf.IsConnection = true
			for _, a := range d.arguments {
				switch a.name {
				case "key":
					if s, ok := a.value.(astStringValue); ok {
						pf.ConnectionKeyName = s.value
					}
				case "filter":
					if lst, ok := a.value.(astListValue); ok {
						for _, item := range lst.values {
							if s, ok := item.(astStringValue); ok {
								pf.ConnectionFilters = append(pf.ConnectionFilters, s.value)
							}
						}
					}
				}
			}
		}
	}

	sanitizedChildren := sanitizeSelectionSet(ctx, f.selectionSet, false)

	hasEdges, hasPageInfo := false, false
	for _, child := range sanitizedChildren {
		switch child.field.name {
		case "edges":
			hasEdges = true
		case "pageInfo":
			hasPageInfo = true
		}
	}
	if hasEdges && hasPageInfo {
		pf.IsConnection = true
	}

	if pf.IsConnection && pf.ConnectionKeyName == "" {
		pf.ConnectionKeyName = pf.FieldName
	}
	if pf.IsConnection && pf.ConnectionFilters == nil {
		for _, name := range pf.ExpectedArgs {
			if !ctx.windowArgs[name] {
				pf.ConnectionFilters = append(pf.ConnectionFilters, name)
			}
		}
	}

	children, err := lowerSelectionSet(ctx, sanitizedChildren, "")
	if err != nil {
		return nil, err
	}
	pf.Children = children
	return pf, nil
}
