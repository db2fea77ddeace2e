package flatten

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rowshape/rowshape/pkg/column"
	"github.com/rowshape/rowshape/pkg/rserrors"
	"github.com/rowshape/rowshape/pkg/schema"
	"github.com/rowshape/rowshape/pkg/view"
)

func prim(dtype column.DType) *schema.Primitive {
	return &schema.Primitive{DType: dtype}
}

func nullablePrim(dtype column.DType) *schema.Primitive {
	return &schema.Primitive{DType: dtype, Nullable: true}
}

func intColumn(t *testing.T, set *column.Set, name string) []int64 {
	t.Helper()
	arr, ok := set.Get(name)
	require.True(t, ok, "column %s", name)
	return arr.(*column.Int64Array).Int64s()
}

func TestFlatten_RecordWithList(t *testing.T) {
	node := schema.NewRecord("row",
		schema.Field{Name: "x", Value: prim(column.Int64)},
		schema.Field{Name: "y", Value: &schema.List{Content: prim(column.Int64)}})

	set, err := Flatten(node, []interface{}{
		map[string]interface{}{"x": 1, "y": []interface{}{1, 2, 3}},
	}, &Options{Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)

	assert.Equal(t, []int64{1}, intColumn(t, set, "object-Fx-D"))
	assert.Equal(t, []int64{0, 3}, intColumn(t, set, "object-Fy-Lo"))
	assert.Equal(t, []int64{1, 2, 3}, intColumn(t, set, "object-Fy-Ld-D"))
}

func TestFlatten_ListOffsetsAccumulate(t *testing.T) {
	node := &schema.List{Content: prim(column.Int64)}

	set, err := Flatten(node, []interface{}{
		[]interface{}{1, 2},
		[]interface{}{},
		[]interface{}{3, 4, 5},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, []int64{0, 2, 2, 5}, intColumn(t, set, "object-Lo"))
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, intColumn(t, set, "object-Ld-D"))
}

func TestFlatten_NullableListWritesCounts(t *testing.T) {
	node := &schema.List{Content: prim(column.Int64), Nullable: true}

	set, err := Flatten(node, []interface{}{
		[]interface{}{1, 2},
		nil,
		[]interface{}{3},
	}, nil)
	require.NoError(t, err)

	arr, ok := set.Get("object-Lc")
	require.True(t, ok)
	require.True(t, arr.Nullable())
	assert.Equal(t, []int64{2, 0, 1}, arr.(*column.Int64Array).Int64s())
	assert.False(t, arr.Valid(1))
}

func TestFlatten_Union(t *testing.T) {
	node := &schema.Union{Possibilities: []schema.Node{
		prim(column.Int64),
		prim(column.String),
	}}

	set, err := Flatten(node, []interface{}{1, "a", 2, "b", "c"}, nil)
	require.NoError(t, err)

	assert.Equal(t, []int64{0, 1, 0, 1, 1}, intColumn(t, set, "object-Ut"))
	assert.Equal(t, []int64{0, 0, 1, 1, 2}, intColumn(t, set, "object-Uo"),
		"each branch keeps its own running offset")
	assert.Equal(t, []int64{1, 2}, intColumn(t, set, "object-U0-D"))

	strs, _ := set.Get("object-U1-D")
	assert.Equal(t, []string{"a", "b", "c"}, strs.(*column.StringArray).Strings())
}

func TestFlatten_UnionUnclassifiable(t *testing.T) {
	node := &schema.Union{Possibilities: []schema.Node{prim(column.Int64)}}

	f, err := New(node, nil)
	require.NoError(t, err)
	err = f.Append("not an int")
	require.Error(t, err)
	assert.True(t, rserrors.IsType(err, rserrors.ErrorTypeTypeMismatch))
}

func TestFlatten_CustomClassifier(t *testing.T) {
	node := &schema.Union{Possibilities: []schema.Node{
		prim(column.Int64),
		prim(column.Int64),
	}}

	// route negatives to the second branch
	classify := func(value interface{}, possibilities []schema.Node) (int, error) {
		if v, ok := value.(int); ok && v < 0 {
			return 1, nil
		}
		return 0, nil
	}

	set, err := Flatten(node, []interface{}{1, -2, 3}, &Options{Classifier: classify})
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 1, 0}, intColumn(t, set, "object-Ut"))
	assert.Equal(t, []int64{1, 3}, intColumn(t, set, "object-U0-D"))
	assert.Equal(t, []int64{-2}, intColumn(t, set, "object-U1-D"))
}

func TestFlatten_Tuple(t *testing.T) {
	node := schema.NewTuple(prim(column.Int64), prim(column.String))

	set, err := Flatten(node, []interface{}{
		[]interface{}{1, "a"},
		[]interface{}{2, "b"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, intColumn(t, set, "object-T0-D"))

	_, err = Flatten(node, []interface{}{[]interface{}{1}}, nil)
	assert.Error(t, err, "tuple arity is fixed")
}

func TestFlatten_StructInput(t *testing.T) {
	type point struct {
		X int64
		Y float64
	}
	node := schema.NewRecord("point",
		schema.Field{Name: "X", Value: prim(column.Int64)},
		schema.Field{Name: "Y", Value: prim(column.Float64)})

	set, err := Flatten(node, []interface{}{point{X: 1, Y: 2.5}, &point{X: 3, Y: 4.5}}, nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, intColumn(t, set, "object-FX-D"))
}

func TestFlatten_MissingField(t *testing.T) {
	node := schema.NewRecord("r",
		schema.Field{Name: "a", Value: prim(column.Int64)},
		schema.Field{Name: "b", Value: prim(column.Int64)})

	f, err := New(node, nil)
	require.NoError(t, err)
	err = f.Append(map[string]interface{}{"a": 1})
	require.Error(t, err)
	assert.True(t, rserrors.IsType(err, rserrors.ErrorTypeMissingField))
}

func TestFlatten_DomainChecks(t *testing.T) {
	tests := []struct {
		name  string
		dtype column.DType
		value interface{}
		ok    bool
	}{
		{"int into int64", column.Int64, 7, true},
		{"float into int64", column.Int64, 7.5, false},
		{"bool into int64", column.Int64, true, false},
		{"int into float64", column.Float64, 7, true},
		{"float into float64", column.Float64, 7.5, true},
		{"string into float64", column.Float64, "x", false},
		{"string into string", column.String, "x", true},
		{"int into string", column.String, 7, false},
		{"bool into bool", column.Bool, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := New(prim(tt.dtype), nil)
			require.NoError(t, err)
			err = f.Append(tt.value)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.True(t, rserrors.IsType(err, rserrors.ErrorTypeTypeMismatch))
			}
		})
	}
}

func TestFlatten_NullHandling(t *testing.T) {
	f, err := New(nullablePrim(column.Int64), nil)
	require.NoError(t, err)
	require.NoError(t, f.Append(1))
	require.NoError(t, f.Append(nil))

	set, err := f.Finish()
	require.NoError(t, err)
	arr, _ := set.Get("object-D")
	assert.True(t, arr.Valid(0))
	assert.False(t, arr.Valid(1))

	g, err := New(prim(column.Int64), nil)
	require.NoError(t, err)
	assert.Error(t, g.Append(nil), "nil needs a nullable node")
}

func TestFlatten_FailurePoisons(t *testing.T) {
	node := schema.NewRecord("r",
		schema.Field{Name: "a", Value: prim(column.Int64)},
		schema.Field{Name: "b", Value: prim(column.Int64)})

	f, err := New(node, nil)
	require.NoError(t, err)
	require.NoError(t, f.Append(map[string]interface{}{"a": 1, "b": 2}))

	// second append fails after the first column already grew
	require.Error(t, f.Append(map[string]interface{}{"a": 3, "b": "bad"}))

	assert.Error(t, f.Append(map[string]interface{}{"a": 4, "b": 5}))
	_, err = f.Finish()
	assert.Error(t, err, "uneven columns must be discarded")
}

func TestFlatten_DelimiterInFieldNameRejected(t *testing.T) {
	node := schema.NewRecord("r",
		schema.Field{Name: "a-b", Value: prim(column.Int64)})

	_, err := New(node, nil)
	require.Error(t, err)
	assert.True(t, rserrors.IsType(err, rserrors.ErrorTypeValidation))

	// a delimiter that misses every field name is fine
	_, err = New(node, &Options{Delimiter: "."})
	assert.NoError(t, err)
}

func TestFlatten_PointerRejected(t *testing.T) {
	ptr := schema.NewPointer(schema.NameRef("i"), prim(column.Int64))
	_, err := New(ptr, nil)
	require.Error(t, err)
	assert.True(t, rserrors.IsType(err, rserrors.ErrorTypeStructural))
}

func TestFlatten_UndeclaredDTypeRejected(t *testing.T) {
	_, err := New(&schema.Primitive{DType: column.AnyType}, nil)
	require.Error(t, err)
	assert.True(t, rserrors.IsType(err, rserrors.ErrorTypeValidation))
}

func TestFlatten_CustomPrefixDelimiter(t *testing.T) {
	node := schema.NewRecord("r", schema.Field{Name: "a", Value: prim(column.Int64)})

	set, err := Flatten(node, []interface{}{map[string]interface{}{"a": 1}},
		&Options{Prefix: "root", Delimiter: "."})
	require.NoError(t, err)
	_, ok := set.Get("root.Fa.D")
	assert.True(t, ok)
}

func TestFlatten_RoundtripThroughViews(t *testing.T) {
	node := schema.NewRecord("row",
		schema.Field{Name: "x", Value: prim(column.Int64)},
		schema.Field{Name: "ys", Value: &schema.List{Content: prim(column.Float64)}})

	values := []interface{}{
		map[string]interface{}{"x": 1, "ys": []interface{}{1.5, 2.5}},
		map[string]interface{}{"x": 2, "ys": []interface{}{}},
		map[string]interface{}{"x": 3, "ys": []interface{}{3.5}},
	}

	set, err := Flatten(node, values, nil)
	require.NoError(t, err)

	named, err := NameSchema(node, "object", "-")
	require.NoError(t, err)
	resolved, err := schema.Resolve(named, set, false)
	require.NoError(t, err)

	for row, original := range values {
		v, err := view.Materialize(resolved, row)
		require.NoError(t, err)
		r := v.(*view.Record)

		x, err := r.Field("x")
		require.NoError(t, err)
		assert.Equal(t, int64(original.(map[string]interface{})["x"].(int)), x)

		ys, err := r.Field("ys")
		require.NoError(t, err)
		want := original.(map[string]interface{})["ys"].([]interface{})
		l := ys.(*view.List)
		require.Equal(t, len(want), l.Len(), "row %d", row)
		for i, w := range want {
			got, err := l.At(i)
			require.NoError(t, err)
			assert.Equal(t, w, got)
		}
	}
}
