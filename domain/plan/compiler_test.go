package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	graphErrors "graphcache/pkg/errors"
)

func TestCompile_NoOperation(t *testing.T) {
	_, err := Compile("", "")
	require.Error(t, err)
	assert.True(t, graphErrors.Is(err, graphErrors.TypeNoOperation))
}

func TestCompile_AmbiguousFragment(t *testing.T) {
	src := `
		fragment A on User { id }
		fragment B on User { name }
	`
	_, err := Compile(src, "")
	require.Error(t, err)
	assert.True(t, graphErrors.Is(err, graphErrors.TypeAmbiguousFragment))
}

func TestCompile_FragmentNotFound(t *testing.T) {
	src := `fragment A on User { id }`
	_, err := Compile(src, "Missing")
	require.Error(t, err)
	assert.True(t, graphErrors.Is(err, graphErrors.TypeFragmentNotFound))
}

func TestCompile_SingleFragmentSelectedBySelector(t *testing.T) {
	src := `fragment A on User { id name }`
	p, err := Compile(src, "A")
	require.NoError(t, err)
	assert.Equal(t, OperationFragment, p.Operation)
	assert.Equal(t, "User", p.RootTypename)
	assert.NotNil(t, p.Field("id"))
	assert.NotNil(t, p.Field("name"))
}

func TestCompile_SingleFragmentNoSelectorNeeded(t *testing.T) {
	src := `fragment Only on User { id }`
	p, err := Compile(src, "")
	require.NoError(t, err)
	assert.NotNil(t, p.Field("id"))
}

func TestCompile_OperationTakesPrecedenceOverFragments(t *testing.T) {
	src := `
		fragment A on User { id }
		query { viewer { name } }
	`
	p, err := Compile(src, "")
	require.NoError(t, err)
	assert.Equal(t, OperationQuery, p.Operation)
	assert.NotNil(t, p.Field("viewer"))
}

func TestCompile_ShorthandQuery(t *testing.T) {
	src := `{ viewer { id } }`
	p, err := Compile(src, "")
	require.NoError(t, err)
	assert.Equal(t, OperationQuery, p.Operation)
}

func TestCompile_EnsuresTypenameOnNestedSelections(t *testing.T) {
	src := `query { viewer { id } }`
	p, err := Compile(src, "")
	require.NoError(t, err)

	viewer := p.Field("viewer")
	require.NotNil(t, viewer)
	assert.NotNil(t, findChild(viewer, "__typename"), "nested selection should gain synthetic __typename")
	assert.Nil(t, p.Field("__typename"), "root selection set must not gain __typename")
}

func TestCompile_MergesDuplicateSelectionsByAliasAndGuard(t *testing.T) {
	src := `
		query {
			viewer {
				id
				profile { bio }
				profile { avatar }
			}
		}
	`
	p, err := Compile(src, "")
	require.NoError(t, err)

	viewer := p.Field("viewer")
	require.NotNil(t, viewer)

	count := 0
	for _, c := range viewer.Children {
		if c.ResponseKey == "profile" {
			count++
		}
	}
	assert.Equal(t, 1, count, "duplicate profile selections should merge into one field")

	profile := findChild(viewer, "profile")
	require.NotNil(t, profile)
	assert.NotNil(t, findChild(profile, "bio"))
	assert.NotNil(t, findChild(profile, "avatar"))
}

func TestCompile_InlineFragmentsCarryDistinctTypeGuards(t *testing.T) {
	src := `
		query {
			node {
				... on Cat { meow }
				... on Dog { bark }
			}
		}
	`
	p, err := Compile(src, "")
	require.NoError(t, err)

	node := p.Field("node")
	require.NotNil(t, node)

	var sawCat, sawDog bool
	for _, c := range node.Children {
		switch c.ResponseKey {
		case "meow":
			sawCat = c.TypeGuard == "Cat"
		case "bark":
			sawDog = c.TypeGuard == "Dog"
		}
	}
	assert.True(t, sawCat, "meow should carry the Cat type guard")
	assert.True(t, sawDog, "bark should carry the Dog type guard")
}

func TestCompile_FragmentSpreadInheritsTypeGuardAtDepth(t *testing.T) {
	src := `
		fragment CatFields on Cat { meow }
		query {
			node {
				... on Cat {
					...CatFields
				}
			}
		}
	`
	p, err := Compile(src, "")
	require.NoError(t, err)

	node := p.Field("node")
	require.NotNil(t, node)
	meow := findChild(node, "meow")
	require.NotNil(t, meow)
	assert.Equal(t, "Cat", meow.TypeGuard)
}

func TestCompile_ConnectionDetectedByEdgesAndPageInfo(t *testing.T) {
	src := `
		query {
			posts(first: 10, after: "x", category: "go") {
				edges { node { id } }
				pageInfo { hasNextPage }
			}
		}
	`
	p, err := Compile(src, "")
	require.NoError(t, err)

	posts := p.Field("posts")
	require.NotNil(t, posts)
	assert.True(t, posts.IsConnection)
	assert.Equal(t, "posts", posts.ConnectionKeyName)
	assert.Equal(t, []string{"category"}, posts.ConnectionFilters, "window args first/after must be excluded from filter identity")
}

func TestCompile_ConnectionDirectiveOverridesDefaults(t *testing.T) {
	src := `
		query {
			posts(first: 10, category: "go") @connection(key: "PostsConnection", filter: ["category"]) {
				edges { node { id } }
				pageInfo { hasNextPage }
			}
		}
	`
	p, err := Compile(src, "")
	require.NoError(t, err)

	posts := p.Field("posts")
	require.NotNil(t, posts)
	assert.Equal(t, "PostsConnection", posts.ConnectionKeyName)
	assert.Equal(t, []string{"category"}, posts.ConnectionFilters)
}

func TestCompile_NetworkQueryStripsCacheOnlyDirectivesAndKeepsTypeGuards(t *testing.T) {
	src := `
		query {
			node {
				... on Cat { meow }
			}
			posts(first: 5) @connection(key: "X") {
				edges { node { id } }
				pageInfo { hasNextPage }
			}
		}
	`
	p, err := Compile(src, "")
	require.NoError(t, err)
	assert.NotContains(t, p.NetworkQuery, "@connection")
	assert.Contains(t, p.NetworkQuery, "... on Cat")
}

func TestFingerprint_IndependentOfArgumentValues(t *testing.T) {
	a, err := Compile(`query { user(id: "1") { id } }`, "")
	require.NoError(t, err)
	b, err := Compile(`query { user(id: "2") { id } }`, "")
	require.NoError(t, err)
	assert.Equal(t, a.PlanID, b.PlanID, "plan_id must not depend on argument values")
}

func TestFingerprint_DiffersOnShape(t *testing.T) {
	a, err := Compile(`query { user(id: "1") { id } }`, "")
	require.NoError(t, err)
	b, err := Compile(`query { user(id: "1") { id name } }`, "")
	require.NoError(t, err)
	assert.NotEqual(t, a.PlanID, b.PlanID)
}

func TestMakeVarsKey_StableAcrossArgumentOrder(t *testing.T) {
	p, err := Compile(`query($a: String, $b: String) { search(a: $a, b: $b) { id } }`, "")
	require.NoError(t, err)

	k1 := p.MakeVarsKey(false, map[string]any{"a": "x", "b": "y"})
	k2 := p.MakeVarsKey(false, map[string]any{"b": "y", "a": "x"})
	assert.Equal(t, k1, k2)
}

func TestMakeVarsKey_VariableDefaultApplied(t *testing.T) {
	p, err := Compile(`query($a: String = "fallback") { search(a: $a) { id } }`, "")
	require.NoError(t, err)

	withDefault := p.MakeVarsKey(false, map[string]any{})
	withExplicit := p.MakeVarsKey(false, map[string]any{"a": "fallback"})
	assert.Equal(t, withExplicit, withDefault, "an omitted variable with a default must resolve the same as passing it explicitly")
}

func findChild(f *PlanField, responseKey string) *PlanField {
	for _, c := range f.Children {
		if c.ResponseKey == responseKey {
			return c
		}
	}
	return nil
}
