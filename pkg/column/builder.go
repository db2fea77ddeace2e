package column

import "fmt"

// Builder accumulates values for one column under construction. A builder
// abandoned mid-row (after a failed append elsewhere) leaves its set with
// uneven column lengths; such a set must be discarded.
type Builder interface {
	DType() DType
	Len() int
	Append(value interface{}) error
	AppendNull() error
	Finish() Array
}

// NewBuilder creates a builder for the given dtype
func NewBuilder(dtype DType, nullable bool) (Builder, error) {
	switch dtype {
	case Int64:
		return NewInt64Builder(nullable), nil
	case Float64:
		return NewFloat64Builder(nullable), nil
	case Bool:
		return NewBoolBuilder(nullable), nil
	case String:
		return NewStringBuilder(nullable), nil
	default:
		return nil, fmt.Errorf("no builder for dtype %s", dtype)
	}
}

// Int64Builder accumulates int64 values
type Int64Builder struct {
	values   []int64
	validity *Bitmap
}

// NewInt64Builder creates an int64 builder; nullable builders carry a bitmap
func NewInt64Builder(nullable bool) *Int64Builder {
	b := &Int64Builder{values: make([]int64, 0, 64)}
	if nullable {
		b.validity = NewBitmap(0)
	}
	return b
}

func (b *Int64Builder) DType() DType { return Int64 }
func (b *Int64Builder) Len() int     { return len(b.values) }

// AppendInt64 appends one value without boxing
func (b *Int64Builder) AppendInt64(v int64) {
	b.values = append(b.values, v)
	if b.validity != nil {
		b.validity.Append(true)
	}
}

func (b *Int64Builder) Append(value interface{}) error {
	switch v := value.(type) {
	case int:
		b.AppendInt64(int64(v))
	case int8:
		b.AppendInt64(int64(v))
	case int16:
		b.AppendInt64(int64(v))
	case int32:
		b.AppendInt64(int64(v))
	case int64:
		b.AppendInt64(v)
	case uint8:
		b.AppendInt64(int64(v))
	case uint16:
		b.AppendInt64(int64(v))
	case uint32:
		b.AppendInt64(int64(v))
	default:
		return fmt.Errorf("expected integer, got %T", value)
	}
	return nil
}

func (b *Int64Builder) AppendNull() error {
	if b.validity == nil {
		return fmt.Errorf("cannot append null to a non-nullable int64 column")
	}
	b.values = append(b.values, 0)
	b.validity.Append(false)
	return nil
}

func (b *Int64Builder) Finish() Array {
	if b.validity != nil {
		return NewMaskedInt64Array(b.values, b.validity)
	}
	return NewInt64Array(b.values)
}

// Float64Builder accumulates float64 values
type Float64Builder struct {
	values   []float64
	validity *Bitmap
}

// NewFloat64Builder creates a float64 builder
func NewFloat64Builder(nullable bool) *Float64Builder {
	b := &Float64Builder{values: make([]float64, 0, 64)}
	if nullable {
		b.validity = NewBitmap(0)
	}
	return b
}

func (b *Float64Builder) DType() DType { return Float64 }
func (b *Float64Builder) Len() int     { return len(b.values) }

func (b *Float64Builder) Append(value interface{}) error {
	var f float64
	switch v := value.(type) {
	case float32:
		f = float64(v)
	case float64:
		f = v
	case int:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	default:
		return fmt.Errorf("expected float, got %T", value)
	}
	b.values = append(b.values, f)
	if b.validity != nil {
		b.validity.Append(true)
	}
	return nil
}

func (b *Float64Builder) AppendNull() error {
	if b.validity == nil {
		return fmt.Errorf("cannot append null to a non-nullable float64 column")
	}
	b.values = append(b.values, 0)
	b.validity.Append(false)
	return nil
}

func (b *Float64Builder) Finish() Array {
	if b.validity != nil {
		return NewMaskedFloat64Array(b.values, b.validity)
	}
	return NewFloat64Array(b.values)
}

// BoolBuilder accumulates bit-packed booleans
type BoolBuilder struct {
	bits     *Bitmap
	validity *Bitmap
}

// NewBoolBuilder creates a bool builder
func NewBoolBuilder(nullable bool) *BoolBuilder {
	b := &BoolBuilder{bits: NewBitmap(0)}
	if nullable {
		b.validity = NewBitmap(0)
	}
	return b
}

func (b *BoolBuilder) DType() DType { return Bool }
func (b *BoolBuilder) Len() int     { return b.bits.Len() }

func (b *BoolBuilder) Append(value interface{}) error {
	v, ok := value.(bool)
	if !ok {
		return fmt.Errorf("expected bool, got %T", value)
	}
	b.bits.Append(v)
	if b.validity != nil {
		b.validity.Append(true)
	}
	return nil
}

func (b *BoolBuilder) AppendNull() error {
	if b.validity == nil {
		return fmt.Errorf("cannot append null to a non-nullable bool column")
	}
	b.bits.Append(false)
	b.validity.Append(false)
	return nil
}

func (b *BoolBuilder) Finish() Array {
	return &BoolArray{bits: b.bits, validity: b.validity}
}

// StringBuilder accumulates string values
type StringBuilder struct {
	values   []string
	validity *Bitmap
}

// NewStringBuilder creates a string builder
func NewStringBuilder(nullable bool) *StringBuilder {
	b := &StringBuilder{values: make([]string, 0, 64)}
	if nullable {
		b.validity = NewBitmap(0)
	}
	return b
}

func (b *StringBuilder) DType() DType { return String }
func (b *StringBuilder) Len() int     { return len(b.values) }

func (b *StringBuilder) Append(value interface{}) error {
	v, ok := value.(string)
	if !ok {
		return fmt.Errorf("expected string, got %T", value)
	}
	b.values = append(b.values, v)
	if b.validity != nil {
		b.validity.Append(true)
	}
	return nil
}

func (b *StringBuilder) AppendNull() error {
	if b.validity == nil {
		return fmt.Errorf("cannot append null to a non-nullable string column")
	}
	b.values = append(b.values, "")
	b.validity.Append(false)
	return nil
}

func (b *StringBuilder) Finish() Array {
	if b.validity != nil {
		return NewMaskedStringArray(b.values, b.validity)
	}
	return NewStringArray(b.values)
}
