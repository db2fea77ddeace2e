package schema

import (
	"github.com/rowshape/rowshape/pkg/column"
)

// Source looks arrays up by symbolic name. *column.Set satisfies it.
type Source interface {
	Get(name string) (column.Array, bool)
}

// Ref is a symbolic array reference: a name to look up in a Source, a
// literal array, or a callback receiving progressively more resolution
// context. Callback refs are invoked at most once per resolution pass.
type Ref interface {
	isRef()
}

// NameRef looks the array up by key in the resolution source
type NameRef string

func (NameRef) isRef() {}

// ArrayRef wraps an already-concrete array
type ArrayRef struct {
	Arr column.Array
}

func (ArrayRef) isRef() {}

// FuncRef produces an array with no context
type FuncRef func() (column.Array, error)

func (FuncRef) isRef() {}

// SourceFuncRef produces an array given the resolution source
type SourceFuncRef func(Source) (column.Array, error)

func (SourceFuncRef) isRef() {}

// NodeFuncRef produces an array given the source and the node being resolved
type NodeFuncRef func(Source, Node) (column.Array, error)

func (NodeFuncRef) isRef() {}

// KindFuncRef produces an array given the source, node, and its kind
type KindFuncRef func(Source, Node, Kind) (column.Array, error)

func (KindFuncRef) isRef() {}

// Literal wraps an array as a Ref
func Literal(a column.Array) Ref { return ArrayRef{Arr: a} }

// refEqual compares two refs: names by value, literal arrays elementwise.
// Callback refs never compare equal.
func refEqual(a, b Ref) bool {
	if a == nil || b == nil {
		return a == b
	}
	switch at := a.(type) {
	case NameRef:
		bt, ok := b.(NameRef)
		return ok && at == bt
	case ArrayRef:
		bt, ok := b.(ArrayRef)
		return ok && column.Equal(at.Arr, bt.Arr)
	default:
		return false
	}
}

// refKey names a ref for diagnostics
func refKey(r Ref) string {
	switch t := r.(type) {
	case NameRef:
		return "\"" + string(t) + "\""
	case ArrayRef:
		return "<literal array>"
	case nil:
		return "<nil>"
	default:
		return "<callback>"
	}
}
