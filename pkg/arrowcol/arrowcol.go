// Package arrowcol bridges Apache Arrow record batches to column sets, so
// schemas can be resolved directly against Arrow IPC data.
package arrowcol

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/rowshape/rowshape/pkg/column"
	"github.com/rowshape/rowshape/pkg/rserrors"
)

// FromRecord converts an Arrow record batch into a column set keyed by field
// name. Numeric buffers are shared, not copied.
func FromRecord(rec arrow.Record) (*column.Set, error) {
	set := column.NewSet()
	for i := 0; i < int(rec.NumCols()); i++ {
		name := rec.Schema().Field(i).Name
		arr, err := FromArray(rec.Column(i))
		if err != nil {
			return nil, rserrors.Wrap(err, rserrors.ErrorTypeTypeMismatch,
				"converting field "+name)
		}
		if err := set.Add(name, arr); err != nil {
			return nil, err
		}
	}
	return set, nil
}

// FromArray converts one Arrow array. Int64 and Float64 values are shared
// zero-copy; bool and string values are copied out of Arrow's packed
// representations.
func FromArray(a arrow.Array) (column.Array, error) {
	mask := validityOf(a)
	switch c := a.(type) {
	case *array.Int64:
		if mask != nil {
			return column.NewMaskedInt64Array(c.Int64Values(), mask), nil
		}
		return column.NewInt64Array(c.Int64Values()), nil
	case *array.Float64:
		if mask != nil {
			return column.NewMaskedFloat64Array(c.Float64Values(), mask), nil
		}
		return column.NewFloat64Array(c.Float64Values()), nil
	case *array.Boolean:
		values := make([]bool, c.Len())
		for i := range values {
			if mask == nil || mask.Get(i) {
				values[i] = c.Value(i)
			}
		}
		if mask != nil {
			return column.NewMaskedBoolArray(values, mask), nil
		}
		return column.NewBoolArray(values), nil
	case *array.String:
		values := make([]string, c.Len())
		for i := range values {
			if mask == nil || mask.Get(i) {
				values[i] = c.Value(i)
			}
		}
		if mask != nil {
			return column.NewMaskedStringArray(values, mask), nil
		}
		return column.NewStringArray(values), nil
	default:
		return nil, rserrors.Newf(rserrors.ErrorTypeTypeMismatch,
			"unsupported Arrow type %s", a.DataType())
	}
}

// ToRecord builds an Arrow record batch from a column set. Column order
// follows the set's insertion order.
func ToRecord(set *column.Set) (arrow.Record, error) {
	fields := make([]arrow.Field, 0, set.Len())
	for _, name := range set.Names() {
		arr, _ := set.Get(name)
		dt, err := arrowType(arr.DType())
		if err != nil {
			return nil, rserrors.Wrap(err, rserrors.ErrorTypeTypeMismatch,
				"field "+name)
		}
		fields = append(fields, arrow.Field{Name: name, Type: dt, Nullable: arr.Nullable()})
	}
	arrowSchema := arrow.NewSchema(fields, nil)

	builder := array.NewRecordBuilder(memory.NewGoAllocator(), arrowSchema)
	defer builder.Release()
	for i, name := range set.Names() {
		arr, _ := set.Get(name)
		if err := appendColumn(builder.Field(i), arr); err != nil {
			return nil, rserrors.Wrap(err, rserrors.ErrorTypeInternal,
				"field "+name)
		}
	}
	return builder.NewRecord(), nil
}

func arrowType(dtype column.DType) (arrow.DataType, error) {
	switch dtype {
	case column.Int64:
		return arrow.PrimitiveTypes.Int64, nil
	case column.Float64:
		return arrow.PrimitiveTypes.Float64, nil
	case column.Bool:
		return arrow.FixedWidthTypes.Boolean, nil
	case column.String:
		return arrow.BinaryTypes.String, nil
	default:
		return nil, rserrors.Newf(rserrors.ErrorTypeTypeMismatch,
			"no Arrow equivalent for dtype %s", dtype)
	}
}

func appendColumn(b array.Builder, arr column.Array) error {
	for i := 0; i < arr.Len(); i++ {
		if !arr.Valid(i) {
			b.AppendNull()
			continue
		}
		switch ab := b.(type) {
		case *array.Int64Builder:
			v, _ := arr.Value(i).(int64)
			ab.Append(v)
		case *array.Float64Builder:
			v, _ := arr.Value(i).(float64)
			ab.Append(v)
		case *array.BooleanBuilder:
			v, _ := arr.Value(i).(bool)
			ab.Append(v)
		case *array.StringBuilder:
			v, _ := arr.Value(i).(string)
			ab.Append(v)
		default:
			return rserrors.Newf(rserrors.ErrorTypeInternal,
				"unsupported builder type %T", b)
		}
	}
	return nil
}

func validityOf(a arrow.Array) *column.Bitmap {
	if a.NullN() == 0 {
		return nil
	}
	mask := column.NewBitmap(a.Len())
	for i := 0; i < a.Len(); i++ {
		mask.Set(i, a.IsValid(i))
	}
	return mask
}
