package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowshape/rowshape/pkg/column"
)

func TestFormat_Primitive(t *testing.T) {
	n := NewPrimitive(Literal(column.NewInt64Array([]int64{1, 2, 3})))
	out := Format(n, 80)
	assert.Equal(t, "array([1 2 3], dtype=int64)", out)
}

func TestFormat_PrimitiveAbbreviates(t *testing.T) {
	values := make([]int64, 100)
	for i := range values {
		values[i] = int64(i)
	}
	out := Format(NewPrimitive(Literal(column.NewInt64Array(values))), 40)
	assert.Contains(t, out, "...")
	for _, line := range strings.Split(out, "\n") {
		assert.LessOrEqual(t, len(line), 45, "lines stay near the requested width")
	}
}

func TestFormat_MaskedValues(t *testing.T) {
	mask := column.NewBitmap(3)
	mask.Set(1, false)
	n := &Primitive{
		Data:     Literal(column.NewMaskedInt64Array([]int64{1, 2, 3}, mask)),
		DType:    column.AnyType,
		Nullable: true,
	}
	out := Format(n, 80)
	assert.Contains(t, out, "--", "invalid rows render masked")
}

func TestFormat_Structure(t *testing.T) {
	rec := NewRecord("point",
		Field{Name: "x", Value: NewPrimitive(NameRef("px"))},
		Field{Name: "ys", Value: ListOfCounts(NameRef("counts"), NewPrimitive(NameRef("py")))})

	out := Format(rec, 80)
	assert.Contains(t, out, "Record {")
	assert.Contains(t, out, "name = point")
	assert.Contains(t, out, `x: "px"`)
	assert.Contains(t, out, "ys: List [")
	assert.Contains(t, out, `counts  = "counts"`)
}

func TestFormat_NullableMarker(t *testing.T) {
	list := ListOfCounts(NameRef("c"), NewPrimitive(NameRef("d")))
	list.Nullable = true
	assert.Contains(t, Format(list, 80), "List? [")
}

func TestFormat_PointerCycleTerminates(t *testing.T) {
	ptr := NewPointer(NameRef("next"), nil)
	rec := NewRecord("node",
		Field{Name: "value", Value: NewPrimitive(NameRef("value"))},
		Field{Name: "next", Value: ptr})
	ptr.Target = rec

	out := Format(rec, 80)
	require.NotEmpty(t, out)
	assert.Contains(t, out, "[0]", "the shared node gets a tag")
	assert.Contains(t, out, "-> [0]", "the revisit renders as a reference")
	assert.Contains(t, out, "Pointer (*")
}
