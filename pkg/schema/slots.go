package schema

import (
	"unsafe"

	"github.com/rowshape/rowshape/pkg/column"
	"github.com/rowshape/rowshape/pkg/rserrors"
)

// SlotTable assigns a stable integer slot to every node of a resolved tree,
// preorder, each node once. Compiled traversal functions address a node's
// backing arrays by slot and consume them as raw pointer plus length.
type SlotTable struct {
	nodes []ResolvedNode
	slots map[ResolvedNode]int
}

// Slots builds the slot table for a resolved tree
func Slots(root ResolvedNode) *SlotTable {
	t := &SlotTable{slots: make(map[ResolvedNode]int)}
	t.walk(root)
	return t
}

func (t *SlotTable) walk(n ResolvedNode) {
	if _, ok := t.slots[n]; ok {
		return
	}
	t.slots[n] = len(t.nodes)
	t.nodes = append(t.nodes, n)

	switch v := n.(type) {
	case *ResolvedList:
		t.walk(v.Content)
	case *ResolvedRecord:
		for _, f := range v.Fields {
			t.walk(f.Value)
		}
	case *ResolvedTuple:
		for _, item := range v.Items {
			t.walk(item)
		}
	case *ResolvedUnion:
		for _, p := range v.Possibilities {
			t.walk(p)
		}
	case *ResolvedPointer:
		t.walk(v.Target)
	}
}

// Len returns the number of slots
func (t *SlotTable) Len() int { return len(t.nodes) }

// Slot returns the slot assigned to a node
func (t *SlotTable) Slot(n ResolvedNode) (int, bool) {
	s, ok := t.slots[n]
	return s, ok
}

// Node returns the node occupying a slot
func (t *SlotTable) Node(slot int) (ResolvedNode, bool) {
	if slot < 0 || slot >= len(t.nodes) {
		return nil, false
	}
	return t.nodes[slot], true
}

// Arrays returns the slot's backing arrays, forcing any lazy bindings:
// data for primitives, (start, end) for lists, (tags, offsets) for unions,
// index for pointers, and nothing for records and tuples.
func (t *SlotTable) Arrays(slot int) ([]column.Array, error) {
	n, ok := t.Node(slot)
	if !ok {
		return nil, rserrors.Newf(rserrors.ErrorTypeLookup, "no node at slot %d", slot)
	}
	switch v := n.(type) {
	case *ResolvedPrimitive:
		arr, err := v.Array()
		if err != nil {
			return nil, err
		}
		return []column.Array{arr}, nil
	case *ResolvedList:
		start, end, err := v.Bounds()
		if err != nil {
			return nil, err
		}
		return []column.Array{start, end}, nil
	case *ResolvedUnion:
		tags, offsets, err := v.TagsOffsets()
		if err != nil {
			return nil, err
		}
		return []column.Array{tags, offsets}, nil
	case *ResolvedPointer:
		index, err := v.Index()
		if err != nil {
			return nil, err
		}
		return []column.Array{index}, nil
	default:
		return nil, nil
	}
}

// RawArray exposes one backing array of a slot for native-code consumption
func (t *SlotTable) RawArray(slot, arrayIndex int) (unsafe.Pointer, int, error) {
	arrays, err := t.Arrays(slot)
	if err != nil {
		return nil, 0, err
	}
	if arrayIndex < 0 || arrayIndex >= len(arrays) {
		return nil, 0, rserrors.Newf(rserrors.ErrorTypeLookup,
			"slot %d has %d arrays; no array %d", slot, len(arrays), arrayIndex)
	}
	ptr, length := column.Raw(arrays[arrayIndex])
	return ptr, length, nil
}
