package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowshape/rowshape/pkg/column"
)

func TestProject_RecordDropsField(t *testing.T) {
	a := NewPrimitive(NameRef("a"))
	b := NewPrimitive(NameRef("b"))
	rec := NewRecord("pair", Field{Name: "a", Value: a}, Field{Name: "b", Value: b})

	out := Project(rec, []Node{a})
	require.NotNil(t, out)

	pr := out.(*Record)
	require.Len(t, pr.Fields, 1)
	assert.Equal(t, "a", pr.Fields[0].Name)
	assert.True(t, HasBase(pr.Fields[0].Value, a))
	assert.True(t, HasBase(out, rec), "the projected record remembers its origin")
}

func TestProject_NothingSurvives(t *testing.T) {
	a := NewPrimitive(NameRef("a"))
	rec := NewRecord("r", Field{Name: "a", Value: a})

	other := NewPrimitive(NameRef("other"))
	assert.Nil(t, Project(rec, []Node{other}))
}

func TestProject_Idempotent(t *testing.T) {
	a := NewPrimitive(NameRef("a"))
	b := NewPrimitive(NameRef("b"))
	rec := NewRecord("pair", Field{Name: "a", Value: a}, Field{Name: "b", Value: b})

	once := Project(rec, []Node{a})
	require.NotNil(t, once)
	twice := Project(once, []Node{a})
	require.NotNil(t, twice, "derived nodes still count as required through their base chain")
	assert.Same(t, once, twice, "a projection with nothing left to prune comes back as-is")

	tr := twice.(*Record)
	require.Len(t, tr.Fields, 1)
	assert.Equal(t, "a", tr.Fields[0].Name)
	assert.True(t, HasBase(tr.Fields[0].Value, a))
}

func TestProject_UnchangedTreeReturnsInput(t *testing.T) {
	a := NewPrimitive(NameRef("a"))
	list := ListOfCounts(NameRef("counts"), a)
	rec := NewRecord("r", Field{Name: "xs", Value: list})

	out := Project(rec, []Node{a})
	assert.Same(t, Node(rec), out, "no pruning means no rebuild")
}

func TestProject_ListKeepsStructuralArray(t *testing.T) {
	inner := NewPrimitive(NameRef("inner"))
	list := ListOfCounts(NameRef("counts"), inner)
	outer := NewRecord("r",
		Field{Name: "xs", Value: list},
		Field{Name: "y", Value: NewPrimitive(NameRef("y"))})

	out := Project(outer, []Node{list})
	require.NotNil(t, out)
	pr := out.(*Record)
	require.Len(t, pr.Fields, 1)

	kept := pr.Fields[0].Value.(*List)
	// pruned content degrades to the boundary array so lengths stay readable
	p, ok := kept.Content.(*Primitive)
	require.True(t, ok)
	assert.Equal(t, NameRef("counts"), p.Data)
	assert.Equal(t, column.AnyType, p.DType)
}

func TestProject_UnionPrunesPossibilities(t *testing.T) {
	p0 := NewPrimitive(NameRef("u0"))
	p1 := NewPrimitive(NameRef("u1"))
	u := NewUnion(NameRef("tags"), p0, p1)

	out := Project(u, []Node{p1})
	require.NotNil(t, out)
	pu := out.(*Union)
	require.Len(t, pu.Possibilities, 1)
	assert.True(t, HasBase(pu.Possibilities[0], p1))
}

func TestProject_UnionAllPrunedKeepsTags(t *testing.T) {
	p0 := NewPrimitive(NameRef("u0"))
	u := NewUnion(NameRef("tags"), p0)
	rec := NewRecord("r",
		Field{Name: "u", Value: u},
		Field{Name: "x", Value: NewPrimitive(NameRef("x"))})

	out := Project(rec, []Node{u})
	require.NotNil(t, out)
	pr := out.(*Record)
	require.Len(t, pr.Fields, 1)

	p, ok := pr.Fields[0].Value.(*Primitive)
	require.True(t, ok, "a union with every possibility pruned degrades to its tag array")
	assert.Equal(t, NameRef("tags"), p.Data)
}

func TestProject_PointerCycle(t *testing.T) {
	value := NewPrimitive(NameRef("value"))
	extra := NewPrimitive(NameRef("extra"))
	ptr := NewPointer(NameRef("next"), nil)
	rec := NewRecord("node",
		Field{Name: "value", Value: value},
		Field{Name: "extra", Value: extra},
		Field{Name: "next", Value: ptr})
	ptr.Target = rec

	out := Project(rec, []Node{value, ptr})
	require.NotNil(t, out)

	pr := out.(*Record)
	names := make([]string, 0, len(pr.Fields))
	for _, f := range pr.Fields {
		names = append(names, f.Name)
	}
	require.Equal(t, []string{"value", "next"}, names)

	pp := pr.Fields[1].Value.(*Pointer)
	assert.Same(t, Node(pr), pp.Target, "the cycle survives projection on the rebuilt nodes")
}

func TestProject_FindByBase(t *testing.T) {
	a := NewPrimitive(NameRef("a"))
	rec := NewRecord("r", Field{Name: "a", Value: a})
	out := Project(rec, []Node{a})

	found := FindByBase(out, a)
	require.NotNil(t, found)
	assert.Equal(t, KindPrimitive, found.Kind())
	assert.Nil(t, FindByBase(out, NewPrimitive(NameRef("z"))))
}
