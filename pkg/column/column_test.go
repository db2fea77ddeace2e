package column

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBitmap_SetGet(t *testing.T) {
	b := NewBitmap(100)
	for i := 0; i < 100; i++ {
		assert.True(t, b.Get(i), "fresh bitmap starts all-valid at %d", i)
	}

	b.Set(0, false)
	b.Set(63, false)
	b.Set(64, false)
	b.Set(99, false)

	assert.False(t, b.Get(0))
	assert.False(t, b.Get(63))
	assert.False(t, b.Get(64))
	assert.False(t, b.Get(99))
	assert.True(t, b.Get(1))
	assert.True(t, b.Get(65))

	b.Set(63, true)
	assert.True(t, b.Get(63))
}

func TestBitmap_Append(t *testing.T) {
	b := NewBitmap(0)
	pattern := []bool{true, false, true, true, false}
	for i := 0; i < 20; i++ {
		b.Append(pattern[i%len(pattern)])
	}
	require.Equal(t, 20, b.Len())
	for i := 0; i < b.Len(); i++ {
		assert.Equal(t, pattern[i%len(pattern)], b.Get(i), "bit %d", i)
	}
}

func TestBitmap_Slice(t *testing.T) {
	b := NewBitmap(10)
	b.Set(2, false)
	b.Set(7, false)

	s := b.Slice(2, 8)
	require.Equal(t, 6, s.Len())
	assert.False(t, s.Get(0))
	assert.True(t, s.Get(1))
	assert.False(t, s.Get(5))
}

func TestInt64Array_Basics(t *testing.T) {
	a := NewInt64Array([]int64{10, 20, 30})
	assert.Equal(t, Int64, a.DType())
	assert.Equal(t, 3, a.Len())
	assert.False(t, a.Nullable())
	assert.Equal(t, int64(20), a.Value(1))
	assert.True(t, a.Valid(1))
	assert.Nil(t, a.Validity())
}

func TestInt64Array_Masked(t *testing.T) {
	mask := NewBitmap(3)
	mask.Set(1, false)
	a := NewMaskedInt64Array([]int64{10, 20, 30}, mask)

	assert.True(t, a.Nullable())
	assert.True(t, a.Valid(0))
	assert.False(t, a.Valid(1))
	// raw storage remains readable behind the mask
	assert.Equal(t, int64(20), a.Int64s()[1])
}

func TestBoolArray_BitPacked(t *testing.T) {
	values := make([]bool, 70)
	values[0] = true
	values[65] = true
	a := NewBoolArray(values)

	assert.Equal(t, 70, a.Len())
	assert.Equal(t, true, a.Value(0))
	assert.Equal(t, false, a.Value(1))
	assert.Equal(t, true, a.Value(65))
}

func TestAsInt64(t *testing.T) {
	a, err := AsInt64(NewInt64Array([]int64{1}))
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, a.Int64s())

	_, err = AsInt64(NewFloat64Array([]float64{1}))
	assert.Error(t, err)
}

func TestEqual(t *testing.T) {
	mask := NewBitmap(3)
	mask.Set(2, false)

	tests := []struct {
		name string
		a, b Array
		want bool
	}{
		{"same values", NewInt64Array([]int64{1, 2}), NewInt64Array([]int64{1, 2}), true},
		{"different values", NewInt64Array([]int64{1, 2}), NewInt64Array([]int64{1, 3}), false},
		{"different lengths", NewInt64Array([]int64{1}), NewInt64Array([]int64{1, 2}), false},
		{"int64 vs float64", NewInt64Array([]int64{1}), NewFloat64Array([]float64{1}), false},
		{"masked row ignores storage", NewMaskedInt64Array([]int64{1, 2, 3}, mask), NewMaskedInt64Array([]int64{1, 2, 99}, mask), true},
		{"validity must match", NewMaskedInt64Array([]int64{1, 2, 3}, mask), NewInt64Array([]int64{1, 2, 3}), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
		})
	}
}

func TestRaw_SharesStorage(t *testing.T) {
	values := []int64{1, 2, 3}
	a := NewInt64Array(values)
	ptr, n := Raw(a)
	require.NotNil(t, ptr)
	assert.Equal(t, 3, n)

	values[0] = 42
	assert.Equal(t, int64(42), a.Int64s()[0], "array shares caller storage")
}

func TestSet_AddGet(t *testing.T) {
	s := NewSet()
	require.NoError(t, s.Add("b", NewInt64Array([]int64{1})))
	require.NoError(t, s.Add("a", NewInt64Array([]int64{2})))

	err := s.Add("a", NewInt64Array([]int64{3}))
	assert.Error(t, err, "duplicate names are rejected")

	arr, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, int64(2), arr.Value(0))

	_, ok = s.Get("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"b", "a"}, s.Names(), "insertion order")
	assert.Equal(t, []string{"a", "b"}, s.SortedNames())
	assert.Equal(t, 2, s.Len())
}
