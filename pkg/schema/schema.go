// Package schema provides the declarative tree describing how nested objects
// are encoded across flat columns, together with resolution against a column
// source, projection to a required subset, and interchange.
//
// The node set is closed: Primitive, List, Record, Tuple, Union, and Pointer.
// A Pointer's target may contain the pointer itself; that is the only legal
// cycle in a tree. Node identity (not equality) is the key for memoization
// and cycle detection, since distinct equal subtrees may coexist.
package schema

import (
	"github.com/rowshape/rowshape/pkg/column"
)

// Kind identifies a schema node variant
type Kind int

const (
	KindPrimitive Kind = iota
	KindList
	KindRecord
	KindTuple
	KindUnion
	KindPointer
)

// String returns the variant name
func (k Kind) String() string {
	switch k {
	case KindPrimitive:
		return "Primitive"
	case KindList:
		return "List"
	case KindRecord:
		return "Record"
	case KindTuple:
		return "Tuple"
	case KindUnion:
		return "Union"
	case KindPointer:
		return "Pointer"
	default:
		return "Unknown"
	}
}

// Node is one vertex of a schema tree. All implementations are pointer types;
// comparing Node interface values compares node identity.
type Node interface {
	Kind() Kind
	// Base returns the node this one was derived from (by resolution,
	// projection, or ref substitution), or nil for an original node.
	Base() Node
	// Equal reports structural equality: same variant, equal array
	// references and children, and matching base chains.
	Equal(other Node) bool

	isNode()
}

// Primitive maps directly onto one flat scalar array.
type Primitive struct {
	Data Ref
	// DType constrains the value domain; AnyType leaves it unconstrained.
	DType    column.DType
	Nullable bool
	base     Node
}

// NewPrimitive creates a primitive with an unconstrained dtype
func NewPrimitive(data Ref) *Primitive {
	return &Primitive{Data: data, DType: column.AnyType}
}

func (p *Primitive) Kind() Kind { return KindPrimitive }
func (p *Primitive) Base() Node { return p.base }
func (p *Primitive) isNode()    {}

func (p *Primitive) Equal(other Node) bool {
	o, ok := other.(*Primitive)
	return ok && refEqual(p.Data, o.Data) && p.DType == o.DType &&
		p.Nullable == o.Nullable && baseEqual(p.base, o.base)
}

// ListEncoding selects how a list's element boundaries are stored
type ListEncoding int

const (
	// CountEncoding stores the element count of each row
	CountEncoding ListEncoding = iota
	// OffsetEncoding stores N+1 cumulative offsets, offsets[0] = 0
	OffsetEncoding
	// StartEndEncoding stores independent start and end arrays
	StartEndEncoding
)

// List maps variable-length sequences onto a content node plus boundary
// arrays. All three encodings canonicalize to a (start, end) pair during
// resolution.
type List struct {
	Encoding ListEncoding
	Counts   Ref
	Offsets  Ref
	Starts   Ref
	Ends     Ref
	Content  Node
	Nullable bool
	base     Node
}

// ListOfCounts creates a list whose boundary array holds per-row counts
func ListOfCounts(counts Ref, content Node) *List {
	return &List{Encoding: CountEncoding, Counts: counts, Content: content}
}

// ListOfOffsets creates a list whose boundary array holds cumulative offsets
func ListOfOffsets(offsets Ref, content Node) *List {
	return &List{Encoding: OffsetEncoding, Offsets: offsets, Content: content}
}

// ListOfStartEnd creates a list with distinct start and end boundary arrays
func ListOfStartEnd(starts, ends Ref, content Node) *List {
	return &List{Encoding: StartEndEncoding, Starts: starts, Ends: ends, Content: content}
}

func (l *List) Kind() Kind { return KindList }
func (l *List) Base() Node { return l.base }
func (l *List) isNode()    {}

func (l *List) Equal(other Node) bool {
	o, ok := other.(*List)
	if !ok || l.Encoding != o.Encoding || l.Nullable != o.Nullable {
		return false
	}
	switch l.Encoding {
	case CountEncoding:
		if !refEqual(l.Counts, o.Counts) {
			return false
		}
	case OffsetEncoding:
		if !refEqual(l.Offsets, o.Offsets) {
			return false
		}
	case StartEndEncoding:
		if !refEqual(l.Starts, o.Starts) || !refEqual(l.Ends, o.Ends) {
			return false
		}
	}
	return l.Content.Equal(o.Content) && baseEqual(l.base, o.base)
}

// boundary returns the ref naming the list's structural array
func (l *List) boundary() Ref {
	switch l.Encoding {
	case CountEncoding:
		return l.Counts
	case OffsetEncoding:
		return l.Offsets
	default:
		return l.Starts
	}
}

// Field is one named member of a record
type Field struct {
	Name  string
	Value Node
}

// Record groups named children. It is purely structural and carries no array
// of its own.
type Record struct {
	Name     string
	Fields   []Field
	Nullable bool
	base     Node
}

// NewRecord creates a record from ordered fields
func NewRecord(name string, fields ...Field) *Record {
	return &Record{Name: name, Fields: fields}
}

func (r *Record) Kind() Kind { return KindRecord }
func (r *Record) Base() Node { return r.base }
func (r *Record) isNode()    {}

// Field returns the child with the given name
func (r *Record) Field(name string) (Node, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

func (r *Record) Equal(other Node) bool {
	o, ok := other.(*Record)
	if !ok || r.Name != o.Name || len(r.Fields) != len(o.Fields) || r.Nullable != o.Nullable {
		return false
	}
	for i, f := range r.Fields {
		if f.Name != o.Fields[i].Name || !f.Value.Equal(o.Fields[i].Value) {
			return false
		}
	}
	return baseEqual(r.base, o.base)
}

// Tuple groups positional children; purely structural.
type Tuple struct {
	Items    []Node
	Nullable bool
	base     Node
}

// NewTuple creates a tuple from ordered items
func NewTuple(items ...Node) *Tuple {
	return &Tuple{Items: items}
}

func (t *Tuple) Kind() Kind { return KindTuple }
func (t *Tuple) Base() Node { return t.base }
func (t *Tuple) isNode()    {}

func (t *Tuple) Equal(other Node) bool {
	o, ok := other.(*Tuple)
	if !ok || len(t.Items) != len(o.Items) || t.Nullable != o.Nullable {
		return false
	}
	for i, item := range t.Items {
		if !item.Equal(o.Items[i]) {
			return false
		}
	}
	return baseEqual(t.base, o.base)
}

// Union selects one of K ordered possibilities per row via a tag array. A nil
// Offsets ref asks resolution to derive per-tag running offsets.
type Union struct {
	Tags          Ref
	Offsets       Ref
	Possibilities []Node
	Nullable      bool
	base          Node
}

// NewUnion creates a union whose offsets are derived from the tag array
func NewUnion(tags Ref, possibilities ...Node) *Union {
	return &Union{Tags: tags, Possibilities: possibilities}
}

// NewUnionWithOffsets creates a union with a precomputed offset array
func NewUnionWithOffsets(tags, offsets Ref, possibilities ...Node) *Union {
	return &Union{Tags: tags, Offsets: offsets, Possibilities: possibilities}
}

func (u *Union) Kind() Kind { return KindUnion }
func (u *Union) Base() Node { return u.base }
func (u *Union) isNode()    {}

func (u *Union) Equal(other Node) bool {
	o, ok := other.(*Union)
	if !ok || !refEqual(u.Tags, o.Tags) || !refEqual(u.Offsets, o.Offsets) ||
		len(u.Possibilities) != len(o.Possibilities) || u.Nullable != o.Nullable {
		return false
	}
	for i, p := range u.Possibilities {
		if !p.Equal(o.Possibilities[i]) {
			return false
		}
	}
	return baseEqual(u.base, o.base)
}

// Pointer indirects through an integer index array into a target node. The
// target may contain the pointer, but must never be the pointer itself.
type Pointer struct {
	Index    Ref
	Target   Node
	Nullable bool
	base     Node
}

// NewPointer creates a pointer; Target may be assigned after construction to
// close a cycle.
func NewPointer(index Ref, target Node) *Pointer {
	return &Pointer{Index: index, Target: target}
}

func (p *Pointer) Kind() Kind { return KindPointer }
func (p *Pointer) Base() Node { return p.base }
func (p *Pointer) isNode()    {}

func (p *Pointer) Equal(other Node) bool {
	o, ok := other.(*Pointer)
	// targets compare by identity: equality of a cyclic target cannot recurse
	return ok && refEqual(p.Index, o.Index) && p.Target == o.Target &&
		p.Nullable == o.Nullable && baseEqual(p.base, o.base)
}

// baseEqual compares two base chains
func baseEqual(a, b Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(b)
}

// HasBase reports whether base appears in n's provenance chain, by identity
func HasBase(n, base Node) bool {
	for n != nil {
		if n == base {
			return true
		}
		n = n.Base()
	}
	return false
}

// Members collects every node of the tree exactly once, preorder, following
// pointer targets.
func Members(n Node) []Node {
	var out []Node
	visited := make(map[Node]struct{})
	var walk func(Node)
	walk = func(n Node) {
		if _, ok := visited[n]; ok {
			return
		}
		visited[n] = struct{}{}
		out = append(out, n)
		for _, c := range children(n) {
			walk(c)
		}
	}
	walk(n)
	return out
}

// HasAny reports whether any node of the tree is identity-present in others,
// or carries one of them in its provenance chain.
func HasAny(n Node, others []Node) bool {
	visited := make(map[Node]struct{})
	var walk func(Node) bool
	walk = func(n Node) bool {
		if _, ok := visited[n]; ok {
			return false
		}
		visited[n] = struct{}{}
		for _, o := range others {
			if HasBase(n, o) {
				return true
			}
		}
		for _, c := range children(n) {
			if walk(c) {
				return true
			}
		}
		return false
	}
	return walk(n)
}

// FindByBase returns the first tree node whose provenance chain contains
// base, or nil.
func FindByBase(n, base Node) Node {
	visited := make(map[Node]struct{})
	var walk func(Node) Node
	walk = func(n Node) Node {
		if _, ok := visited[n]; ok {
			return nil
		}
		visited[n] = struct{}{}
		if HasBase(n, base) {
			return n
		}
		for _, c := range children(n) {
			if out := walk(c); out != nil {
				return out
			}
		}
		return nil
	}
	return walk(n)
}

// WithRefs rebuilds the tree with every array reference replaced by accessor,
// keeping shared subtrees shared. The result nodes carry the originals as
// their base.
func WithRefs(n Node, accessor Ref) Node {
	return withRefs(n, accessor, make(map[Node]Node))
}

func withRefs(n Node, accessor Ref, memo map[Node]Node) Node {
	if out, ok := memo[n]; ok {
		return out
	}
	switch t := n.(type) {
	case *Primitive:
		out := &Primitive{Data: accessor, DType: t.DType, Nullable: t.Nullable, base: t}
		memo[n] = out
		return out
	case *List:
		out := &List{Encoding: t.Encoding, Nullable: t.Nullable, base: t}
		switch t.Encoding {
		case CountEncoding:
			out.Counts = accessor
		case OffsetEncoding:
			out.Offsets = accessor
		case StartEndEncoding:
			out.Starts = accessor
			out.Ends = accessor
		}
		memo[n] = out
		out.Content = withRefs(t.Content, accessor, memo)
		return out
	case *Record:
		out := &Record{Name: t.Name, Nullable: t.Nullable, base: t}
		memo[n] = out
		for _, f := range t.Fields {
			out.Fields = append(out.Fields, Field{Name: f.Name, Value: withRefs(f.Value, accessor, memo)})
		}
		return out
	case *Tuple:
		out := &Tuple{Nullable: t.Nullable, base: t}
		memo[n] = out
		for _, item := range t.Items {
			out.Items = append(out.Items, withRefs(item, accessor, memo))
		}
		return out
	case *Union:
		out := &Union{Tags: accessor, Nullable: t.Nullable, base: t}
		if t.Offsets != nil {
			out.Offsets = accessor
		}
		memo[n] = out
		for _, p := range t.Possibilities {
			out.Possibilities = append(out.Possibilities, withRefs(p, accessor, memo))
		}
		return out
	case *Pointer:
		out := &Pointer{Index: accessor, Nullable: t.Nullable, base: t}
		memo[n] = out
		out.Target = withRefs(t.Target, accessor, memo)
		return out
	default:
		return nil
	}
}

// children returns a node's direct structural children
func children(n Node) []Node {
	switch t := n.(type) {
	case *Primitive:
		return nil
	case *List:
		return []Node{t.Content}
	case *Record:
		out := make([]Node, 0, len(t.Fields))
		for _, f := range t.Fields {
			out = append(out, f.Value)
		}
		return out
	case *Tuple:
		return t.Items
	case *Union:
		return t.Possibilities
	case *Pointer:
		return []Node{t.Target}
	default:
		return nil
	}
}
