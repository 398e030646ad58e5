package plan

import (
	"hash/fnv"
	"sort"
	"strings"
)

// fingerprint computes the Plan's structural identity (spec §4.1
// "plan_id"): a hash over response keys, field names, argument *names*,
// type guards, and connection markers, deliberately excluding argument
// values so that two calls of the same document with different
// variables compile to the same PlanID.
func fingerprint(p *Plan) uint32 {
	var sb strings.Builder
	sb.WriteString(string(p.Operation))
	sb.WriteByte('|')
	sb.WriteString(p.RootTypename)
	sb.WriteByte('|')
	writeFieldFingerprint(&sb, p.Fields)

	h := fnv.New32a()
	h.Write([]byte(sb.String()))
	return h.Sum32()
}

func writeFieldFingerprint(sb *strings.Builder, fields []*PlanField) {
	sb.WriteByte('[')
	for _, f := range fields {
		sb.WriteString(f.ResponseKey)
		sb.WriteByte(':')
		sb.WriteString(f.FieldName)
		sb.WriteByte(':')
		sb.WriteString(f.TypeGuard)
		sb.WriteByte(':')

		names := append([]string(nil), f.ExpectedArgs...)
		sort.Strings(names)
		sb.WriteString(strings.Join(names, ","))
		sb.WriteByte(':')

		if f.IsConnection {
			sb.WriteByte('C')
			sb.WriteString(f.ConnectionKeyName)
			filters := append([]string(nil), f.ConnectionFilters...)
			sort.Strings(filters)
			sb.WriteString(strings.Join(filters, ","))
		}

		writeFieldFingerprint(sb, f.Children)
		sb.WriteByte(';')
	}
	sb.WriteByte(']')
}
