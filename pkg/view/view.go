// Package view materializes one row of a resolved schema tree as an
// ephemeral, read-only value without copying column storage. A view holds
// only its node and a row index; the backing columns are assumed immutable
// while any view is outstanding.
package view

import (
	"fmt"
	"strings"

	"github.com/rowshape/rowshape/pkg/rserrors"
	"github.com/rowshape/rowshape/pkg/schema"
)

// Materialize produces the value of one row under a resolved node: a scalar,
// a *List, a *Record, a *Tuple, or the recursively dereferenced value behind
// a union or pointer. A row flagged invalid materializes to nil regardless of
// raw content. Out-of-range row access is an error; it does not invalidate
// other views over the same tree.
func Materialize(n schema.ResolvedNode, row int) (interface{}, error) {
	switch t := n.(type) {
	case *schema.ResolvedPrimitive:
		arr, err := t.Array()
		if err != nil {
			return nil, err
		}
		if err := checkRow(row, arr.Len(), "Primitive"); err != nil {
			return nil, err
		}
		if !arr.Valid(row) {
			return nil, nil
		}
		return arr.Value(row), nil

	case *schema.ResolvedList:
		start, end, err := t.Bounds()
		if err != nil {
			return nil, err
		}
		if err := checkRow(row, start.Len(), "List"); err != nil {
			return nil, err
		}
		if !start.Valid(row) {
			return nil, nil
		}
		s := start.Int64s()[row]
		e := end.Int64s()[row]
		if e < s {
			return nil, rserrors.Newf(rserrors.ErrorTypeValidation,
				"List row %d has end %d before start %d", row, e, s)
		}
		return &List{node: t, start: s, step: 1, length: int(e - s)}, nil

	case *schema.ResolvedRecord:
		return &Record{node: t, row: row, values: make([]interface{}, len(t.Fields)), done: make([]bool, len(t.Fields))}, nil

	case *schema.ResolvedTuple:
		return &Tuple{node: t, row: row}, nil

	case *schema.ResolvedUnion:
		tags, offsets, err := t.TagsOffsets()
		if err != nil {
			return nil, err
		}
		if err := checkRow(row, tags.Len(), "Union"); err != nil {
			return nil, err
		}
		if !tags.Valid(row) {
			return nil, nil
		}
		tag := tags.Int64s()[row]
		if tag < 0 || int(tag) >= len(t.Possibilities) {
			return nil, rserrors.Newf(rserrors.ErrorTypeValidation,
				"Union row %d has tag %d; expected 0 <= tag < %d", row, tag, len(t.Possibilities))
		}
		return Materialize(t.Possibilities[tag], int(offsets.Int64s()[row]))

	case *schema.ResolvedPointer:
		index, err := t.Index()
		if err != nil {
			return nil, err
		}
		if err := checkRow(row, index.Len(), "Pointer"); err != nil {
			return nil, err
		}
		if !index.Valid(row) {
			return nil, nil
		}
		return Materialize(t.Target, int(index.Int64s()[row]))

	default:
		return nil, rserrors.Newf(rserrors.ErrorTypeInternal, "unknown resolved node %T", n)
	}
}

func checkRow(row, length int, kind string) error {
	if row < 0 || row >= length {
		return rserrors.Newf(rserrors.ErrorTypeValidation,
			"%s row %d is out of bounds for length %d", kind, row, length)
	}
	return nil
}

// List is a sequence view over one row's elements. Length and random access
// are O(1) through a (start, step, length) stride; slicing composes strides
// without touching element storage.
type List struct {
	node   *schema.ResolvedList
	start  int64
	step   int64
	length int
}

// Len returns the number of elements
func (l *List) Len() int { return l.length }

// At materializes the element at i; negative indices count from the end.
// Out-of-range access is an error.
func (l *List) At(i int) (interface{}, error) {
	normal := i
	if normal < 0 {
		normal += l.length
	}
	if normal < 0 || normal >= l.length {
		return nil, rserrors.Newf(rserrors.ErrorTypeValidation,
			"list index %d is out of bounds for size %d", i, l.length)
	}
	return Materialize(l.node.Content, int(l.start+l.step*int64(normal)))
}

// Slice returns the subview [lo, hi); bounds are clamped, never an error
func (l *List) Slice(lo, hi int) *List {
	out, _ := l.SliceStep(lo, hi, 1)
	return out
}

// SliceStep returns the subview [lo, hi) taking every step-th element.
// Bounds are clamped; only a non-positive step is an error. Reverse traversal
// composes through Reversed.
func (l *List) SliceStep(lo, hi, step int) (*List, error) {
	if step <= 0 {
		return nil, rserrors.Newf(rserrors.ErrorTypeValidation, "slice step must be positive; got %d", step)
	}
	lo = clamp(lo, l.length)
	hi = clamp(hi, l.length)
	if hi < lo {
		hi = lo
	}
	return &List{
		node:   l.node,
		start:  l.start + l.step*int64(lo),
		step:   l.step * int64(step),
		length: (hi - lo + step - 1) / step,
	}, nil
}

// Reversed returns a view traversing the same elements backwards
func (l *List) Reversed() *List {
	return &List{
		node:   l.node,
		start:  l.start + l.step*int64(l.length-1),
		step:   -l.step,
		length: l.length,
	}
}

// Values materializes every element in order
func (l *List) Values() ([]interface{}, error) {
	out := make([]interface{}, l.length)
	for i := range out {
		v, err := l.At(i)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Contains reports whether the list has an element equal to value
func (l *List) Contains(value interface{}) bool {
	return l.IndexOf(value) >= 0
}

// IndexOf returns the position of the first element equal to value, or -1
func (l *List) IndexOf(value interface{}) int {
	for i := 0; i < l.length; i++ {
		v, err := l.At(i)
		if err != nil {
			return -1
		}
		if ValueEqual(v, value) {
			return i
		}
	}
	return -1
}

// Count returns how many elements equal value
func (l *List) Count(value interface{}) int {
	count := 0
	for i := 0; i < l.length; i++ {
		v, err := l.At(i)
		if err != nil {
			return count
		}
		if ValueEqual(v, value) {
			count++
		}
	}
	return count
}

// Equal reports structural equality against another list view or a plain
// []interface{}
func (l *List) Equal(other interface{}) bool {
	return ValueEqual(l, other)
}

// Less orders the list lexicographically against another list view or a
// plain []interface{}
func (l *List) Less(other interface{}) (bool, error) {
	return ValueLess(l, other)
}

func (l *List) String() string {
	vals, err := l.Values()
	if err != nil {
		return fmt.Sprintf("<list of %d: %v>", l.length, err)
	}
	return fmt.Sprintf("%v", vals)
}

// Key returns a canonical string usable as a map key: equal views produce
// equal keys
func (l *List) Key() (string, error) {
	return valueKey(l)
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}

// Record is a named-field view of one row. Fields materialize on first
// access, in declaration order, and are memoized per view.
type Record struct {
	node   *schema.ResolvedRecord
	row    int
	values []interface{}
	done   []bool
}

// Name returns the record's declared name
func (r *Record) Name() string { return r.node.Name }

// FieldNames returns the field names in declaration order
func (r *Record) FieldNames() []string {
	out := make([]string, len(r.node.Fields))
	for i, f := range r.node.Fields {
		out[i] = f.Name
	}
	return out
}

// Field materializes the named field at this row
func (r *Record) Field(name string) (interface{}, error) {
	for i, f := range r.node.Fields {
		if f.Name == name {
			return r.at(i)
		}
	}
	return nil, rserrors.Newf(rserrors.ErrorTypeLookup, "Record has no field %q", name)
}

func (r *Record) at(i int) (interface{}, error) {
	if !r.done[i] {
		v, err := Materialize(r.node.Fields[i].Value, r.row)
		if err != nil {
			return nil, err
		}
		r.values[i] = v
		r.done[i] = true
	}
	return r.values[i], nil
}

// Equal reports equality with another record view: same field names, equal
// field values
func (r *Record) Equal(other interface{}) bool {
	return ValueEqual(r, other)
}

// Less orders two record views of the same shape field-wise
func (r *Record) Less(other interface{}) (bool, error) {
	return ValueLess(r, other)
}

func (r *Record) String() string {
	return fmt.Sprintf("<%s record at row %d>", r.node.Name, r.row)
}

// Key returns a canonical string usable as a map key
func (r *Record) Key() (string, error) {
	return valueKey(r)
}

// Tuple is a positional view of one row
type Tuple struct {
	node *schema.ResolvedTuple
	row  int
}

// Len returns the number of items
func (t *Tuple) Len() int { return len(t.node.Items) }

// At materializes the item at position i
func (t *Tuple) At(i int) (interface{}, error) {
	if i < 0 || i >= len(t.node.Items) {
		return nil, rserrors.Newf(rserrors.ErrorTypeValidation,
			"tuple index %d is out of bounds for size %d", i, len(t.node.Items))
	}
	return Materialize(t.node.Items[i], t.row)
}

// Values materializes every item in order
func (t *Tuple) Values() ([]interface{}, error) {
	out := make([]interface{}, t.Len())
	for i := range out {
		v, err := t.At(i)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Equal reports structural equality against another tuple view or a plain
// []interface{}
func (t *Tuple) Equal(other interface{}) bool {
	return ValueEqual(t, other)
}

// Less orders the tuple lexicographically
func (t *Tuple) Less(other interface{}) (bool, error) {
	return ValueLess(t, other)
}

func (t *Tuple) String() string {
	vals, err := t.Values()
	if err != nil {
		return fmt.Sprintf("<tuple of %d: %v>", t.Len(), err)
	}
	return fmt.Sprintf("%v", vals)
}

// Key returns a canonical string usable as a map key
func (t *Tuple) Key() (string, error) {
	return valueKey(t)
}

// ValueEqual compares two materialized values structurally: sequence views
// against each other or plain slices, record views field-wise, scalars by
// value. Numeric comparison does not cross dtypes.
func ValueEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case *List:
		return sequenceEqual(seqOf(av), b)
	case *Tuple:
		return sequenceEqual(seqOf(av), b)
	case *Record:
		bv, ok := b.(*Record)
		if !ok {
			return false
		}
		return recordEqual(av, bv)
	default:
		switch b.(type) {
		case *List, *Tuple, *Record:
			return ValueEqual(b, a)
		}
		return a == b
	}
}

// ValueLess orders two materialized values; mixed shapes are unorderable
func ValueLess(a, b interface{}) (bool, error) {
	switch av := a.(type) {
	case *List:
		return sequenceLess(seqOf(av), b)
	case *Tuple:
		return sequenceLess(seqOf(av), b)
	case *Record:
		bv, ok := b.(*Record)
		if !ok {
			return false, rserrors.Newf(rserrors.ErrorTypeTypeMismatch, "cannot order record against %T", b)
		}
		return recordLess(av, bv)
	case int64:
		bv, ok := b.(int64)
		if !ok {
			return false, rserrors.Newf(rserrors.ErrorTypeTypeMismatch, "cannot order int64 against %T", b)
		}
		return av < bv, nil
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return false, rserrors.Newf(rserrors.ErrorTypeTypeMismatch, "cannot order float64 against %T", b)
		}
		return av < bv, nil
	case string:
		bv, ok := b.(string)
		if !ok {
			return false, rserrors.Newf(rserrors.ErrorTypeTypeMismatch, "cannot order string against %T", b)
		}
		return av < bv, nil
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return false, rserrors.Newf(rserrors.ErrorTypeTypeMismatch, "cannot order bool against %T", b)
		}
		return !av && bv, nil
	default:
		return false, rserrors.Newf(rserrors.ErrorTypeTypeMismatch, "cannot order %T", a)
	}
}

// valueKey renders a materialized value canonically: the variant marker keeps
// [1] and (1) and the scalar 1 from colliding
func valueKey(v interface{}) (string, error) {
	switch t := v.(type) {
	case nil:
		return "_", nil
	case *List:
		return seqKey("L", t)
	case *Tuple:
		return seqKey("T", t)
	case *Record:
		var b strings.Builder
		b.WriteString("R{" + t.Name())
		for _, name := range t.FieldNames() {
			fv, err := t.Field(name)
			if err != nil {
				return "", err
			}
			k, err := valueKey(fv)
			if err != nil {
				return "", err
			}
			b.WriteString(";" + name + "=" + k)
		}
		b.WriteString("}")
		return b.String(), nil
	case int64:
		return fmt.Sprintf("i%d", t), nil
	case float64:
		return fmt.Sprintf("f%g", t), nil
	case bool:
		return fmt.Sprintf("b%t", t), nil
	case string:
		return fmt.Sprintf("s%q", t), nil
	default:
		return "", rserrors.Newf(rserrors.ErrorTypeTypeMismatch, "cannot key %T", v)
	}
}

// Expand converts a materialized value into plain Go data: lists and tuples
// become []interface{}, records become map[string]interface{}, scalars and nil
// pass through. The result marshals cleanly with encoding/json-style encoders.
// Expand does not terminate on cyclic pointer data; the caller bounds that.
func Expand(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case *List:
		return expandSeq(t)
	case *Tuple:
		return expandSeq(t)
	case *Record:
		out := make(map[string]interface{}, len(t.node.Fields))
		for _, name := range t.FieldNames() {
			fv, err := t.Field(name)
			if err != nil {
				return nil, err
			}
			pv, err := Expand(fv)
			if err != nil {
				return nil, err
			}
			out[name] = pv
		}
		return out, nil
	default:
		return v, nil
	}
}

func expandSeq(s sequence) ([]interface{}, error) {
	out := make([]interface{}, s.Len())
	for i := range out {
		v, err := s.At(i)
		if err != nil {
			return nil, err
		}
		pv, err := Expand(v)
		if err != nil {
			return nil, err
		}
		out[i] = pv
	}
	return out, nil
}

func seqKey(marker string, s sequence) (string, error) {
	var b strings.Builder
	b.WriteString(marker + "[")
	for i := 0; i < s.Len(); i++ {
		v, err := s.At(i)
		if err != nil {
			return "", err
		}
		k, err := valueKey(v)
		if err != nil {
			return "", err
		}
		if i != 0 {
			b.WriteString(";")
		}
		b.WriteString(k)
	}
	b.WriteString("]")
	return b.String(), nil
}

// sequence abstracts a materialized ordered sequence for comparison
type sequence interface {
	Len() int
	At(i int) (interface{}, error)
}

type sliceSeq []interface{}

func (s sliceSeq) Len() int                      { return len(s) }
func (s sliceSeq) At(i int) (interface{}, error) { return s[i], nil }

func seqOf(v interface{}) sequence {
	switch t := v.(type) {
	case *List:
		return t
	case *Tuple:
		return t
	case []interface{}:
		return sliceSeq(t)
	default:
		return nil
	}
}

func sequenceEqual(a sequence, b interface{}) bool {
	bs := seqOf(b)
	if a == nil || bs == nil || a.Len() != bs.Len() {
		return false
	}
	for i := 0; i < a.Len(); i++ {
		av, err := a.At(i)
		if err != nil {
			return false
		}
		bv, err := bs.At(i)
		if err != nil {
			return false
		}
		if !ValueEqual(av, bv) {
			return false
		}
	}
	return true
}

func sequenceLess(a sequence, b interface{}) (bool, error) {
	bs := seqOf(b)
	if bs == nil {
		return false, rserrors.Newf(rserrors.ErrorTypeTypeMismatch, "cannot order sequence against %T", b)
	}
	n := a.Len()
	if bs.Len() < n {
		n = bs.Len()
	}
	for i := 0; i < n; i++ {
		av, err := a.At(i)
		if err != nil {
			return false, err
		}
		bv, err := bs.At(i)
		if err != nil {
			return false, err
		}
		if ValueEqual(av, bv) {
			continue
		}
		return ValueLess(av, bv)
	}
	return a.Len() < bs.Len(), nil
}

func recordEqual(a, b *Record) bool {
	an, bn := a.FieldNames(), b.FieldNames()
	if a.Name() != b.Name() || len(an) != len(bn) {
		return false
	}
	for i := range an {
		if an[i] != bn[i] {
			return false
		}
	}
	for _, name := range an {
		av, err := a.Field(name)
		if err != nil {
			return false
		}
		bv, err := b.Field(name)
		if err != nil {
			return false
		}
		if !ValueEqual(av, bv) {
			return false
		}
	}
	return true
}

func recordLess(a, b *Record) (bool, error) {
	an, bn := a.FieldNames(), b.FieldNames()
	if a.Name() != b.Name() || len(an) != len(bn) {
		return false, rserrors.New(rserrors.ErrorTypeTypeMismatch, "cannot order records of different shapes")
	}
	for i := range an {
		if an[i] != bn[i] {
			return false, rserrors.New(rserrors.ErrorTypeTypeMismatch, "cannot order records of different shapes")
		}
	}
	for _, name := range an {
		av, err := a.Field(name)
		if err != nil {
			return false, err
		}
		bv, err := b.Field(name)
		if err != nil {
			return false, err
		}
		if ValueEqual(av, bv) {
			continue
		}
		return ValueLess(av, bv)
	}
	return false, nil
}
