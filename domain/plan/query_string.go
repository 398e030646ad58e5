package plan

import (
	"strconv"
	"strings"
)

// renderQuery and renderFragmentQuery rebuild a network-safe query
// string from the sanitized selection tree: fragments already inlined,
// synthetic __typename fields already added, cache-only directives
// (cacheOnlyDirectives) stripped. A type guard surviving sanitization
// is re-emitted as an inline fragment so the transport still receives
// valid GraphQL (spec §4.1 "network_query").
func renderQuery(ctx *lowerCtx, op *astOperation, sanitized []loweredSelection) string {
	var sb strings.Builder
	sb.WriteString(string(op.kind))
	if op.name != "" {
		sb.WriteByte(' ')
		sb.WriteString(op.name)
	}
	if len(op.variableDefs) > 0 {
		sb.WriteByte('(')
		for i, def := range op.variableDefs {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteByte('$')
			sb.WriteString(def.name)
			sb.WriteString(": _")
		}
		sb.WriteByte(')')
	}
	sb.WriteByte(' ')
	writeSelectionSet(ctx, &sb, sanitized, "")
	return sb.String()
}

func renderFragmentQuery(ctx *lowerCtx, frag *astFragment, sanitized []loweredSelection) string {
	var sb strings.Builder
	sb.WriteString("fragment ")
	sb.WriteString(frag.name)
	sb.WriteString(" on ")
	sb.WriteString(frag.typeCondition)
	sb.WriteByte(' ')
	writeSelectionSet(ctx, &sb, sanitized, frag.typeCondition)
	return sb.String()
}

func writeSelectionSet(ctx *lowerCtx, sb *strings.Builder, sels []loweredSelection, ambientGuard string) {
	sb.WriteByte('{')
	sb.WriteByte(' ')
	for _, sel := range sels {
		if sel.typeGuard != "" && sel.typeGuard != ambientGuard {
			sb.WriteString("... on ")
			sb.WriteString(sel.typeGuard)
			sb.WriteByte(' ')
			writeSelectionSet(ctx, sb, []loweredSelection{{field: sel.field}}, sel.typeGuard)
			sb.WriteByte(' ')
			continue
		}
		writeField(ctx, sb, sel.field)
		sb.WriteByte(' ')
	}
	sb.WriteByte('}')
}

func writeField(ctx *lowerCtx, sb *strings.Builder, f astField) {
	if f.alias != "" && f.alias != f.name {
		sb.WriteString(f.alias)
		sb.WriteByte(':')
	}
	sb.WriteString(f.name)

	if len(f.arguments) > 0 {
		sb.WriteByte('(')
		for i, a := range f.arguments {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(a.name)
			sb.WriteString(": ")
			writeValue(sb, a.value)
		}
		sb.WriteByte(')')
	}

	for _, d := range f.directives {
		if cacheOnlyDirectives[d.name] {
			continue
		}
		sb.WriteByte('@')
		sb.WriteString(d.name)
	}

	if len(f.selectionSet) > 0 {
		sb.WriteByte(' ')
		writeSelectionSet(ctx, sb, sanitizeSelectionSet(ctx, f.selectionSet, false), "")
	}
}

func writeValue(sb *strings.Builder, v astValue) {
	switch val := v.(type) {
	case astVariable:
		sb.WriteByte('$')
		sb.WriteString(val.name)
	case astIntValue:
		sb.WriteString(strconv.FormatInt(val.value, 10))
	case astFloatValue:
		sb.WriteString(strconv.FormatFloat(val.value, 'g', -1, 64))
	case astStringValue:
		sb.WriteByte('"')
		sb.WriteString(val.value)
		sb.WriteByte('"')
	case astBoolValue:
		if val.value {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	case astNullValue:
		sb.WriteString("null")
	case astEnumValue:
		sb.WriteString(val.value)
	case astListValue:
		sb.WriteByte('[')
		for i, item := range val.values {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeValue(sb, item)
		}
		sb.WriteByte(']')
	case astObjectValue:
		sb.WriteByte('{')
		for i, field := range val.fields {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(field.name)
			sb.WriteString(": ")
			writeValue(sb, field.value)
		}
		sb.WriteByte('}')
	}
}
