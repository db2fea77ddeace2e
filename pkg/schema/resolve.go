package schema

import (
	"github.com/rowshape/rowshape/pkg/column"
	"github.com/rowshape/rowshape/pkg/rserrors"
)

// ResolvedNode is a schema node whose array references are bound to concrete
// columns, or to memoized thunks when resolved lazily. Forcing a thunk caches
// the array on the node; that first forcing is an unsynchronized write, so
// callers force shared lazy trees before fanning out readers. A fully forced
// tree is safe for concurrent reads.
type ResolvedNode interface {
	Kind() Kind
	// Origin returns the template node this one was resolved from
	Origin() Node

	isResolved()
}

// cell memoizes one lazily bound array
type cell struct {
	arr  column.Array
	err  error
	load func() (column.Array, error)
}

func (c *cell) force() (column.Array, error) {
	if c.load != nil {
		c.arr, c.err = c.load()
		c.load = nil
	}
	return c.arr, c.err
}

// pairCell memoizes two integer arrays bound together, such as a list's
// canonical (start, end) pair or a union's (tags, offsets)
type pairCell struct {
	a, b *column.Int64Array
	err  error
	load func() (*column.Int64Array, *column.Int64Array, error)
}

func (c *pairCell) force() (*column.Int64Array, *column.Int64Array, error) {
	if c.load != nil {
		c.a, c.b, c.err = c.load()
		c.load = nil
	}
	return c.a, c.b, c.err
}

// ResolvedPrimitive binds one scalar column
type ResolvedPrimitive struct {
	DType    column.DType
	Nullable bool
	origin   Node
	data     cell
}

func (p *ResolvedPrimitive) Kind() Kind   { return KindPrimitive }
func (p *ResolvedPrimitive) Origin() Node { return p.origin }
func (p *ResolvedPrimitive) isResolved()  {}

// Array returns the bound column, forcing and caching a lazy binding
func (p *ResolvedPrimitive) Array() (column.Array, error) {
	return p.data.force()
}

// ResolvedList binds the canonical (start, end) boundary pair. Regardless of
// the template's encoding, start and end are adjacent views of one offset
// buffer for count and offset encodings; they are never re-derived.
type ResolvedList struct {
	Content  ResolvedNode
	Nullable bool
	origin   Node
	bounds   pairCell
}

func (l *ResolvedList) Kind() Kind   { return KindList }
func (l *ResolvedList) Origin() Node { return l.origin }
func (l *ResolvedList) isResolved()  {}

// Bounds returns the canonical start and end arrays
func (l *ResolvedList) Bounds() (start, end *column.Int64Array, err error) {
	return l.bounds.force()
}

// ResolvedField is one named member of a resolved record
type ResolvedField struct {
	Name  string
	Value ResolvedNode
}

// ResolvedRecord groups resolved named children; it binds no array of its own
type ResolvedRecord struct {
	Name     string
	Fields   []ResolvedField
	Nullable bool
	origin   Node
}

func (r *ResolvedRecord) Kind() Kind   { return KindRecord }
func (r *ResolvedRecord) Origin() Node { return r.origin }
func (r *ResolvedRecord) isResolved()  {}

// Field returns the child with the given name
func (r *ResolvedRecord) Field(name string) (ResolvedNode, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// ResolvedTuple groups resolved positional children
type ResolvedTuple struct {
	Items    []ResolvedNode
	Nullable bool
	origin   Node
}

func (t *ResolvedTuple) Kind() Kind   { return KindTuple }
func (t *ResolvedTuple) Origin() Node { return t.origin }
func (t *ResolvedTuple) isResolved()  {}

// ResolvedUnion binds the (tags, offsets) pair over resolved possibilities
type ResolvedUnion struct {
	Possibilities []ResolvedNode
	Nullable      bool
	origin        Node
	parts         pairCell
}

func (u *ResolvedUnion) Kind() Kind   { return KindUnion }
func (u *ResolvedUnion) Origin() Node { return u.origin }
func (u *ResolvedUnion) isResolved()  {}

// TagsOffsets returns the bound tag and offset arrays
func (u *ResolvedUnion) TagsOffsets() (tags, offsets *column.Int64Array, err error) {
	return u.parts.force()
}

// ResolvedPointer binds an index column over a resolved target
type ResolvedPointer struct {
	Target   ResolvedNode
	Nullable bool
	origin   Node
	index    cell
}

func (p *ResolvedPointer) Kind() Kind   { return KindPointer }
func (p *ResolvedPointer) Origin() Node { return p.origin }
func (p *ResolvedPointer) isResolved()  {}

// Index returns the bound index array
func (p *ResolvedPointer) Index() (*column.Int64Array, error) {
	arr, err := p.index.force()
	if err != nil {
		return nil, err
	}
	return arr.(*column.Int64Array), nil
}

// Resolve binds a schema tree's array references against src, validating
// dimensionality, dtype category, and nullability. With lazy true, array
// binding is deferred behind memoized thunks while the resolved tree's shape
// is still built eagerly. The template tree is never mutated.
//
// A non-pointer node reachable twice by identity is a StructuralError; a
// pointer's target is resolved at most once per pass even when the target
// contains the pointer itself.
func Resolve(n Node, src Source, lazy bool) (ResolvedNode, error) {
	r := &resolver{src: src, lazy: lazy, memo: make(map[Node]ResolvedNode)}
	return r.resolve(n)
}

type resolver struct {
	src  Source
	lazy bool
	memo map[Node]ResolvedNode
}

func (r *resolver) resolve(n Node) (ResolvedNode, error) {
	switch t := n.(type) {
	case *Pointer:
		return r.resolvePointer(t)
	case *Primitive:
		if err := r.enter(n); err != nil {
			return nil, err
		}
		out := &ResolvedPrimitive{DType: t.DType, Nullable: t.Nullable, origin: n}
		r.memo[n] = out
		data, dtype, nullable := t.Data, t.DType, t.Nullable
		out.data.load = func() (column.Array, error) {
			return r.fetch(data, n, "Primitive array", dtype, false, nullable)
		}
		if !r.lazy {
			if _, err := out.data.force(); err != nil {
				return nil, err
			}
		}
		return out, nil
	case *List:
		return r.resolveList(t)
	case *Record:
		if err := r.enter(n); err != nil {
			return nil, err
		}
		out := &ResolvedRecord{Name: t.Name, Nullable: t.Nullable, origin: n}
		r.memo[n] = out
		for _, f := range t.Fields {
			child, err := r.resolve(f.Value)
			if err != nil {
				return nil, err
			}
			out.Fields = append(out.Fields, ResolvedField{Name: f.Name, Value: child})
		}
		return out, nil
	case *Tuple:
		if err := r.enter(n); err != nil {
			return nil, err
		}
		out := &ResolvedTuple{Nullable: t.Nullable, origin: n}
		r.memo[n] = out
		for _, item := range t.Items {
			child, err := r.resolve(item)
			if err != nil {
				return nil, err
			}
			out.Items = append(out.Items, child)
		}
		return out, nil
	case *Union:
		return r.resolveUnion(t)
	default:
		return nil, rserrors.Newf(rserrors.ErrorTypeInternal, "unknown schema node %T", n)
	}
}

// enter rejects a non-pointer node already resolved in this pass
func (r *resolver) enter(n Node) error {
	if _, dup := r.memo[n]; dup {
		return rserrors.Newf(rserrors.ErrorTypeStructural,
			"a %s node cannot be included more than once in the same tree; only pointers may form cycles", n.Kind())
	}
	return nil
}

func (r *resolver) resolveList(t *List) (ResolvedNode, error) {
	if err := r.enter(t); err != nil {
		return nil, err
	}
	out := &ResolvedList{Nullable: t.Nullable, origin: t}
	r.memo[t] = out

	switch t.Encoding {
	case CountEncoding:
		counts, nullable := t.Counts, t.Nullable
		out.bounds.load = func() (*column.Int64Array, *column.Int64Array, error) {
			arr, err := r.fetchInt(counts, t, "List count array", nullable)
			if err != nil {
				return nil, nil, err
			}
			return countsToStartEnd(arr)
		}
	case OffsetEncoding:
		offsets, nullable := t.Offsets, t.Nullable
		out.bounds.load = func() (*column.Int64Array, *column.Int64Array, error) {
			arr, err := r.fetchInt(offsets, t, "List offset array", nullable)
			if err != nil {
				return nil, nil, err
			}
			return offsetsToStartEnd(arr, offsets)
		}
	case StartEndEncoding:
		starts, ends, nullable := t.Starts, t.Ends, t.Nullable
		out.bounds.load = func() (*column.Int64Array, *column.Int64Array, error) {
			start, err := r.fetchInt(starts, t, "List start array", nullable)
			if err != nil {
				return nil, nil, err
			}
			end, err := r.fetchInt(ends, t, "List end array", false)
			if err != nil {
				return nil, nil, err
			}
			if start.Len() != end.Len() {
				return nil, nil, rserrors.Newf(rserrors.ErrorTypeValidation,
					"List start array %s has length %d but end array %s has length %d",
					refKey(starts), start.Len(), refKey(ends), end.Len())
			}
			return start, end, nil
		}
	}
	if !r.lazy {
		if _, _, err := out.bounds.force(); err != nil {
			return nil, err
		}
	}

	content, err := r.resolve(t.Content)
	if err != nil {
		return nil, err
	}
	out.Content = content
	return out, nil
}

func (r *resolver) resolveUnion(t *Union) (ResolvedNode, error) {
	if err := r.enter(t); err != nil {
		return nil, err
	}
	out := &ResolvedUnion{Nullable: t.Nullable, origin: t}
	r.memo[t] = out

	tags, offsets, nullable, k := t.Tags, t.Offsets, t.Nullable, len(t.Possibilities)
	out.parts.load = func() (*column.Int64Array, *column.Int64Array, error) {
		tagArr, err := r.fetchInt(tags, t, "Union tag array", nullable)
		if err != nil {
			return nil, nil, err
		}
		if offsets == nil {
			offArr, err := deriveUnionOffsets(tagArr, k)
			if err != nil {
				return nil, nil, err
			}
			return tagArr, offArr, nil
		}
		offArr, err := r.fetchInt(offsets, t, "Union offset array", nullable)
		if err != nil {
			return nil, nil, err
		}
		return tagArr, offArr, nil
	}
	if !r.lazy {
		if _, _, err := out.parts.force(); err != nil {
			return nil, err
		}
	}

	for _, p := range t.Possibilities {
		child, err := r.resolve(p)
		if err != nil {
			return nil, err
		}
		out.Possibilities = append(out.Possibilities, child)
	}
	return out, nil
}

func (r *resolver) resolvePointer(t *Pointer) (ResolvedNode, error) {
	if existing, ok := r.memo[t]; ok {
		// same pointer reached again while (or after) resolving its own target
		return existing, nil
	}
	if t.Target == nil {
		return nil, rserrors.New(rserrors.ErrorTypeStructural, "Pointer has no target")
	}
	if t.Target == Node(t) {
		return nil, rserrors.New(rserrors.ErrorTypeStructural,
			"a pointer's target may contain the pointer, but it must not be the pointer itself")
	}

	out := &ResolvedPointer{Nullable: t.Nullable, origin: t}
	// memo before descending so self-reference through the target terminates
	r.memo[t] = out

	index, nullable := t.Index, t.Nullable
	out.index.load = func() (column.Array, error) {
		arr, err := r.fetchInt(index, t, "Pointer index array", nullable)
		if err != nil {
			return nil, err
		}
		return arr, nil
	}
	if !r.lazy {
		if _, err := out.index.force(); err != nil {
			return nil, err
		}
	}

	target, ok := r.memo[t.Target]
	if !ok {
		resolved, err := r.resolve(t.Target)
		if err != nil {
			return nil, err
		}
		target = resolved
	}
	out.Target = target
	return out, nil
}

// fetch resolves one array reference and validates it against the node's
// declared shape: dtype category, and validity mask presence matching the
// declared nullability.
func (r *resolver) fetch(ref Ref, n Node, desc string, want column.DType, wantInt, nullable bool) (column.Array, error) {
	var arr column.Array
	var err error

	switch t := ref.(type) {
	case nil:
		return nil, rserrors.Newf(rserrors.ErrorTypeLookup, "%s reference is missing", desc)
	case ArrayRef:
		arr = t.Arr
	case FuncRef:
		arr, err = t()
	case SourceFuncRef:
		arr, err = t(r.src)
	case NodeFuncRef:
		arr, err = t(r.src, n)
	case KindFuncRef:
		arr, err = t(r.src, n, n.Kind())
	case NameRef:
		if r.src == nil {
			return nil, rserrors.Newf(rserrors.ErrorTypeLookup,
				"%s cannot be found for key %s: no source", desc, refKey(ref))
		}
		var ok bool
		arr, ok = r.src.Get(string(t))
		if !ok {
			return nil, rserrors.Newf(rserrors.ErrorTypeLookup,
				"%s cannot be found for key %s", desc, refKey(ref))
		}
	default:
		return nil, rserrors.Newf(rserrors.ErrorTypeLookup, "%s has unsupported reference %T", desc, ref)
	}
	if err != nil {
		return nil, rserrors.Wrap(err, rserrors.ErrorTypeLookup, desc+" callback failed")
	}
	if arr == nil {
		return nil, rserrors.Newf(rserrors.ErrorTypeLookup, "%s %s yielded no array", desc, refKey(ref))
	}

	if wantInt && !arr.DType().Integer() {
		return nil, rserrors.Newf(rserrors.ErrorTypeValidation,
			"%s %s must be an integer array; got dtype %s", desc, refKey(ref), arr.DType())
	}
	if want != column.AnyType && arr.DType() != want {
		return nil, rserrors.Newf(rserrors.ErrorTypeValidation,
			"%s %s must have dtype %s; got %s", desc, refKey(ref), want, arr.DType())
	}
	if nullable && !arr.Nullable() {
		return nil, rserrors.Newf(rserrors.ErrorTypeValidation,
			"%s %s must carry a validity mask (node is nullable); got a non-masked array", desc, refKey(ref))
	}
	if !nullable && arr.Nullable() {
		return nil, rserrors.Newf(rserrors.ErrorTypeValidation,
			"%s %s must not carry a validity mask (node is not nullable); got a masked array", desc, refKey(ref))
	}
	return arr, nil
}

// fetchInt resolves a reference that must bind an integer array
func (r *resolver) fetchInt(ref Ref, n Node, desc string, nullable bool) (*column.Int64Array, error) {
	arr, err := r.fetch(ref, n, desc, column.AnyType, true, nullable)
	if err != nil {
		return nil, err
	}
	return column.AsInt64(arr)
}

// countsToStartEnd cumulative-sums a count array into a fresh N+1 offset
// buffer with offsets[0] = 0; start and end are overlapping views of that
// buffer, never independently allocated. A masked count source propagates its
// validity onto start; a masked-out count contributes zero length.
func countsToStartEnd(counts *column.Int64Array) (*column.Int64Array, *column.Int64Array, error) {
	n := counts.Len()
	offsets := make([]int64, n+1)
	vals := counts.Int64s()
	var running int64
	for i := 0; i < n; i++ {
		if counts.Valid(i) {
			if vals[i] < 0 {
				return nil, nil, rserrors.Newf(rserrors.ErrorTypeValidation,
					"List count array has negative count %d at row %d", vals[i], i)
			}
			running += vals[i]
		}
		offsets[i+1] = running
	}
	var start *column.Int64Array
	if v := counts.Validity(); v != nil {
		start = column.NewMaskedInt64Array(offsets[:n], v)
	} else {
		start = column.NewInt64Array(offsets[:n])
	}
	return start, column.NewInt64Array(offsets[1:]), nil
}

// offsetsToStartEnd slices one N+1 offset buffer into overlapping start and
// end views
func offsetsToStartEnd(offsets *column.Int64Array, ref Ref) (*column.Int64Array, *column.Int64Array, error) {
	if offsets.Len() < 1 {
		return nil, nil, rserrors.Newf(rserrors.ErrorTypeValidation,
			"List offset array %s must have at least one element (offsets[0] = 0)", refKey(ref))
	}
	n := offsets.Len() - 1
	vals := offsets.Int64s()
	var start *column.Int64Array
	if v := offsets.Validity(); v != nil {
		start = column.NewMaskedInt64Array(vals[:n], v.Slice(0, n))
	} else {
		start = column.NewInt64Array(vals[:n])
	}
	return start, column.NewInt64Array(vals[1:]), nil
}

// deriveUnionOffsets synthesizes the offset array for a tag array over k
// possibilities: the i-th occurrence of tag t, in row order, receives the
// t-th running count. One O(N) pass with one counter per tag.
func deriveUnionOffsets(tags *column.Int64Array, k int) (*column.Int64Array, error) {
	counters := make([]int64, k)
	out := make([]int64, tags.Len())
	vals := tags.Int64s()
	for i := range out {
		if !tags.Valid(i) {
			continue
		}
		tag := vals[i]
		if tag < 0 || tag >= int64(k) {
			return nil, rserrors.Newf(rserrors.ErrorTypeValidation,
				"Union tag array has tag %d at row %d; expected 0 <= tag < %d", tag, i, k)
		}
		out[i] = counters[tag]
		counters[tag]++
	}
	return column.NewInt64Array(out), nil
}
