// Package column provides flat, fixed-dtype arrays and the named array store
// that schema trees resolve against. Arrays are immutable once built; any
// outstanding view over a column assumes its backing storage never changes.
package column

import (
	"fmt"
	"unsafe"
)

// DType represents the data type of an array
type DType int

const (
	// AnyType matches every dtype; used by schema nodes that do not
	// constrain their domain
	AnyType DType = iota - 1
	Int64
	Float64
	Bool
	String
)

// String returns the dtype name
func (d DType) String() string {
	switch d {
	case Int64:
		return "int64"
	case Float64:
		return "float64"
	case Bool:
		return "bool"
	case String:
		return "string"
	case AnyType:
		return "any"
	default:
		return fmt.Sprintf("dtype(%d)", int(d))
	}
}

// Integer reports whether the dtype belongs to the integer category required
// for offset, count, tag, and index arrays
func (d DType) Integer() bool { return d == Int64 }

// Array is a flat, one-dimensional, homogeneously-typed column. An array
// optionally carries a validity bitmap; rows whose bit is clear are null.
type Array interface {
	DType() DType
	Len() int
	// Value returns the raw value at i regardless of validity
	Value(i int) interface{}
	// Valid reports whether row i carries a value; always true without a bitmap
	Valid(i int) bool
	// Nullable reports whether the array carries a validity bitmap
	Nullable() bool
}

// Bitmap is a bit-packed validity mask: 64 rows per word, set bit = valid
type Bitmap struct {
	words []uint64
	n     int
}

// NewBitmap creates a bitmap of n rows, all valid; callers mark rows invalid
// selectively
func NewBitmap(n int) *Bitmap {
	words := make([]uint64, (n+63)/64)
	for i := range words {
		words[i] = ^uint64(0)
	}
	return &Bitmap{words: words, n: n}
}

// Len returns the number of rows covered by the bitmap
func (b *Bitmap) Len() int { return b.n }

// Set marks row i valid or invalid
func (b *Bitmap) Set(i int, valid bool) {
	if valid {
		b.words[i/64] |= 1 << (i % 64)
	} else {
		b.words[i/64] &^= 1 << (i % 64)
	}
}

// Get reports whether row i is valid
func (b *Bitmap) Get(i int) bool {
	return b.words[i/64]&(1<<(i%64)) != 0
}

// Append grows the bitmap by one row
func (b *Bitmap) Append(valid bool) {
	if b.n/64 >= len(b.words) {
		b.words = append(b.words, 0)
	}
	b.n++
	b.Set(b.n-1, valid)
}

// Slice returns a new bitmap covering rows [start, stop)
func (b *Bitmap) Slice(start, stop int) *Bitmap {
	out := NewBitmap(stop - start)
	for i := start; i < stop; i++ {
		out.Set(i-start, b.Get(i))
	}
	return out
}

// Int64Array stores int64 values with an optional validity bitmap
type Int64Array struct {
	values   []int64
	validity *Bitmap
}

// NewInt64Array creates an array backed directly by values; no copy is made
func NewInt64Array(values []int64) *Int64Array {
	return &Int64Array{values: values}
}

// NewMaskedInt64Array creates a nullable array backed by values and validity
func NewMaskedInt64Array(values []int64, validity *Bitmap) *Int64Array {
	return &Int64Array{values: values, validity: validity}
}

func (a *Int64Array) DType() DType            { return Int64 }
func (a *Int64Array) Len() int                { return len(a.values) }
func (a *Int64Array) Value(i int) interface{} { return a.values[i] }
func (a *Int64Array) Nullable() bool          { return a.validity != nil }

func (a *Int64Array) Valid(i int) bool {
	if a.validity == nil {
		return true
	}
	return a.validity.Get(i)
}

// Int64s returns the backing slice without copying
func (a *Int64Array) Int64s() []int64 { return a.values }

// Validity returns the validity bitmap, or nil
func (a *Int64Array) Validity() *Bitmap { return a.validity }

// Float64Array stores float64 values with an optional validity bitmap
type Float64Array struct {
	values   []float64
	validity *Bitmap
}

// NewFloat64Array creates an array backed directly by values; no copy is made
func NewFloat64Array(values []float64) *Float64Array {
	return &Float64Array{values: values}
}

// NewMaskedFloat64Array creates a nullable array backed by values and validity
func NewMaskedFloat64Array(values []float64, validity *Bitmap) *Float64Array {
	return &Float64Array{values: values, validity: validity}
}

func (a *Float64Array) DType() DType            { return Float64 }
func (a *Float64Array) Len() int                { return len(a.values) }
func (a *Float64Array) Value(i int) interface{} { return a.values[i] }
func (a *Float64Array) Nullable() bool          { return a.validity != nil }

func (a *Float64Array) Valid(i int) bool {
	if a.validity == nil {
		return true
	}
	return a.validity.Get(i)
}

// Float64s returns the backing slice without copying
func (a *Float64Array) Float64s() []float64 { return a.values }

// Validity returns the validity bitmap, or nil
func (a *Float64Array) Validity() *Bitmap { return a.validity }

// BoolArray stores booleans bit-packed, 64 per word
type BoolArray struct {
	bits     *Bitmap
	validity *Bitmap
}

// NewBoolArray creates a bool array from values
func NewBoolArray(values []bool) *BoolArray {
	bits := NewBitmap(0)
	for _, v := range values {
		bits.Append(v)
	}
	return &BoolArray{bits: bits}
}

// NewMaskedBoolArray creates a nullable bool array
func NewMaskedBoolArray(values []bool, validity *Bitmap) *BoolArray {
	out := NewBoolArray(values)
	out.validity = validity
	return out
}

func (a *BoolArray) DType() DType            { return Bool }
func (a *BoolArray) Len() int                { return a.bits.Len() }
func (a *BoolArray) Value(i int) interface{} { return a.bits.Get(i) }
func (a *BoolArray) Nullable() bool          { return a.validity != nil }

func (a *BoolArray) Valid(i int) bool {
	if a.validity == nil {
		return true
	}
	return a.validity.Get(i)
}

// Validity returns the validity bitmap, or nil
func (a *BoolArray) Validity() *Bitmap { return a.validity }

// StringArray stores string values with an optional validity bitmap
type StringArray struct {
	values   []string
	validity *Bitmap
}

// NewStringArray creates an array backed directly by values; no copy is made
func NewStringArray(values []string) *StringArray {
	return &StringArray{values: values}
}

// NewMaskedStringArray creates a nullable string array
func NewMaskedStringArray(values []string, validity *Bitmap) *StringArray {
	return &StringArray{values: values, validity: validity}
}

func (a *StringArray) DType() DType            { return String }
func (a *StringArray) Len() int                { return len(a.values) }
func (a *StringArray) Value(i int) interface{} { return a.values[i] }
func (a *StringArray) Nullable() bool          { return a.validity != nil }

func (a *StringArray) Valid(i int) bool {
	if a.validity == nil {
		return true
	}
	return a.validity.Get(i)
}

// Strings returns the backing slice without copying
func (a *StringArray) Strings() []string { return a.values }

// Validity returns the validity bitmap, or nil
func (a *StringArray) Validity() *Bitmap { return a.validity }

// AsInt64 returns a as an *Int64Array, preserving its validity bitmap.
// Arrays of any other dtype are rejected: offsets, counts, tags, and pointer
// indices must be integer columns.
func AsInt64(a Array) (*Int64Array, error) {
	if ia, ok := a.(*Int64Array); ok {
		return ia, nil
	}
	return nil, fmt.Errorf("expected an integer array, got dtype %s", a.DType())
}

// Equal compares two arrays elementwise, including validity
func Equal(a, b Array) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.DType() != b.DType() || a.Len() != b.Len() {
		return false
	}
	for i := 0; i < a.Len(); i++ {
		if a.Valid(i) != b.Valid(i) {
			return false
		}
		if a.Valid(i) && a.Value(i) != b.Value(i) {
			return false
		}
	}
	return true
}

// Raw returns the base pointer and element count of the array's backing
// storage for native-code consumption. Bool arrays expose the packed words.
// The pointer is valid as long as the array is reachable.
func Raw(a Array) (unsafe.Pointer, int) {
	switch t := a.(type) {
	case *Int64Array:
		if len(t.values) == 0 {
			return nil, 0
		}
		return unsafe.Pointer(&t.values[0]), len(t.values)
	case *Float64Array:
		if len(t.values) == 0 {
			return nil, 0
		}
		return unsafe.Pointer(&t.values[0]), len(t.values)
	case *BoolArray:
		if len(t.bits.words) == 0 {
			return nil, 0
		}
		return unsafe.Pointer(&t.bits.words[0]), t.bits.Len()
	case *StringArray:
		if len(t.values) == 0 {
			return nil, 0
		}
		return unsafe.Pointer(&t.values[0]), len(t.values)
	default:
		return nil, 0
	}
}
