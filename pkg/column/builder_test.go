package column

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBuilder(t *testing.T) {
	for _, dtype := range []DType{Int64, Float64, Bool, String} {
		b, err := NewBuilder(dtype, false)
		require.NoError(t, err)
		assert.Equal(t, dtype, b.DType())
	}

	_, err := NewBuilder(AnyType, false)
	assert.Error(t, err)
}

func TestInt64Builder(t *testing.T) {
	b := NewInt64Builder(false)
	b.AppendInt64(1)
	require.NoError(t, b.Append(int64(2)))
	require.NoError(t, b.Append(3))
	assert.Error(t, b.Append("nope"))
	assert.Error(t, b.AppendNull(), "non-nullable builder rejects nulls")

	arr := b.Finish()
	require.Equal(t, 3, arr.Len())
	assert.False(t, arr.Nullable())
	assert.Equal(t, []int64{1, 2, 3}, arr.(*Int64Array).Int64s())
}

func TestInt64Builder_Nullable(t *testing.T) {
	b := NewInt64Builder(true)
	b.AppendInt64(1)
	require.NoError(t, b.AppendNull())
	b.AppendInt64(3)

	arr := b.Finish()
	require.Equal(t, 3, arr.Len())
	assert.True(t, arr.Nullable())
	assert.True(t, arr.Valid(0))
	assert.False(t, arr.Valid(1))
	assert.True(t, arr.Valid(2))
}

func TestFloat64Builder_AcceptsInts(t *testing.T) {
	b := NewFloat64Builder(false)
	require.NoError(t, b.Append(1.5))
	require.NoError(t, b.Append(2))
	require.NoError(t, b.Append(int64(3)))

	arr := b.Finish().(*Float64Array)
	assert.Equal(t, []float64{1.5, 2, 3}, arr.Float64s())
}

func TestStringBuilder(t *testing.T) {
	b := NewStringBuilder(true)
	require.NoError(t, b.Append("a"))
	require.NoError(t, b.AppendNull())

	arr := b.Finish()
	assert.Equal(t, "a", arr.Value(0))
	assert.False(t, arr.Valid(1))
}

func TestBoolBuilder(t *testing.T) {
	b := NewBoolBuilder(false)
	require.NoError(t, b.Append(true))
	require.NoError(t, b.Append(false))
	assert.Error(t, b.Append(1))

	arr := b.Finish()
	assert.Equal(t, true, arr.Value(0))
	assert.Equal(t, false, arr.Value(1))
}
