package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowshape/rowshape/pkg/column"
)

func TestInterchange_Roundtrip(t *testing.T) {
	prim := NewPrimitive(NameRef("px"))
	prim.DType = column.Float64
	rec := NewRecord("point",
		Field{Name: "x", Value: prim},
		Field{Name: "ys", Value: ListOfOffsets(NameRef("off"), NewPrimitive(NameRef("py")))},
		Field{Name: "tag", Value: NewUnion(NameRef("tags"),
			NewPrimitive(NameRef("u0")),
			NewPrimitive(NameRef("u1")))})

	data, err := ToJSON(rec)
	require.NoError(t, err)

	back, err := FromJSON(data)
	require.NoError(t, err)
	assert.True(t, rec.Equal(back))
}

func TestInterchange_DTypeAndNullability(t *testing.T) {
	n := &Primitive{Data: NameRef("d"), DType: column.Int64, Nullable: true}
	data, err := ToJSON(n)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"dtype": "int64"`)
	assert.Contains(t, string(data), `"nullable": true`)

	back, err := FromJSON(data)
	require.NoError(t, err)
	assert.True(t, n.Equal(back))
}

func TestInterchange_StartEndList(t *testing.T) {
	list := ListOfStartEnd(NameRef("s"), NameRef("e"), NewPrimitive(NameRef("d")))
	data, err := ToJSON(list)
	require.NoError(t, err)

	back, err := FromJSON(data)
	require.NoError(t, err)
	assert.True(t, list.Equal(back))
}

func TestInterchange_PointerCycle(t *testing.T) {
	ptr := NewPointer(NameRef("next"), nil)
	rec := NewRecord("node",
		Field{Name: "value", Value: NewPrimitive(NameRef("value"))},
		Field{Name: "next", Value: ptr})
	ptr.Target = rec

	data, err := ToJSON(rec)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"ref"`, "the revisited node serializes as a reference")

	back, err := FromJSON(data)
	require.NoError(t, err)

	br := back.(*Record)
	next, ok := br.Field("next")
	require.True(t, ok)
	assert.Same(t, Node(br), next.(*Pointer).Target, "the cycle reconstructs on the same node")
}

func TestInterchange_LiteralRefRejected(t *testing.T) {
	n := NewPrimitive(Literal(column.NewInt64Array([]int64{1})))
	_, err := ToJSON(n)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only named references")
}

func TestInterchange_Malformed(t *testing.T) {
	_, err := FromJSON([]byte("{not json"))
	assert.Error(t, err)

	_, err = FromJSON([]byte(`{"kind": "Frob"}`))
	assert.Error(t, err)

	_, err = FromJSON([]byte(`{"ref": 7}`))
	assert.Error(t, err, "a reference must name an already-registered node")
}
