// Package plan compiles a query/fragment document into an immutable,
// fingerprinted Plan (spec §4.1). The lowering pipeline below is a small
// hand-rolled recursive-descent parser over the GraphQL-shaped document
// grammar: the example corpus ships no GraphQL parser dependency, and
// spec §9 ("no source-language idioms leak") directs writing this pass
// in the teacher's own idiom rather than reaching past the corpus for
// one — see DESIGN.md for the explicit justification.
package plan

// OperationKind enumerates the document's top-level kind (spec §4.1).
type OperationKind string

const (
	OperationQuery        OperationKind = "query"
	OperationMutation     OperationKind = "mutation"
	OperationSubscription OperationKind = "subscription"
	OperationFragment     OperationKind = "fragment"
)

// astDocument is the parsed form of the input document before lowering.
type astDocument struct {
	operations []*astOperation
	fragments  map[string]*astFragment
}

type astOperation struct {
	kind          OperationKind
	name          string
	variableDefs  []astVariableDef
	selectionSet  []astSelection
}

type astFragment struct {
	name         string
	typeCondition string
	selectionSet []astSelection
}

type astVariableDef struct {
	name         string
	defaultValue astValue
	hasDefault   bool
}

// astSelection is one of astField, astFragmentSpread, astInlineFragment.
type astSelection interface {
	isSelection()
}

type astField struct {
	alias        string
	name         string
	arguments    []astArgument
	directives   []astDirective
	selectionSet []astSelection
}

func (astField) isSelection() {}

type astFragmentSpread struct {
	name       string
	directives []astDirective
}

func (astFragmentSpread) isSelection() {}

type astInlineFragment struct {
	typeCondition string
	directives    []astDirective
	selectionSet  []astSelection
}

func (astInlineFragment) isSelection() {}

type astArgument struct {
	name  string
	value astValue
}

type astDirective struct {
	name      string
	arguments []astArgument
}

// astValue is one of: astVariable, astIntValue, astFloatValue,
// astStringValue, astBoolValue, astNullValue, astEnumValue,
// astListValue, astObjectValue.
type astValue interface {
	isValue()
}

type astVariable struct{ name string }
type astIntValue struct{ value int64 }
type astFloatValue struct{ value float64 }
type astStringValue struct{ value string }
type astBoolValue struct{ value bool }
type astNullValue struct{}
type astEnumValue struct{ value string }
type astListValue struct{ values []astValue }
type astObjectValue struct{ fields []astArgument }

func (astVariable) isValue()    {}
func (astIntValue) isValue()    {}
func (astFloatValue) isValue()  {}
func (astStringValue) isValue() {}
func (astBoolValue) isValue()   {}
func (astNullValue) isValue()   {}
func (astEnumValue) isValue()   {}
func (astListValue) isValue()   {}
func (astObjectValue) isValue() {}
