package schema

import "github.com/rowshape/rowshape/pkg/column"

// Project prunes a schema tree to the minimal subtree touching the required
// nodes, returning nil when nothing survives. Membership is by identity,
// extended through provenance: a node whose base chain reaches a required
// node counts as required. A subtree with nothing to prune comes back as the
// input node itself, so projecting twice returns the first result unchanged.
//
// A List, Union, or Pointer whose logical content is entirely pruned keeps a
// bare Primitive wrapping its structural array, since later readers still
// need it for index arithmetic. A Record or Tuple with no surviving children
// prunes away entirely.
func Project(n Node, required []Node) Node {
	return project(n, required, make(map[Node]Node), make(map[Node]bool))
}

// project rebuilds the surviving subtree. memo keeps shared subtrees shared
// and pointer cycles terminating; done marks memo entries that are complete,
// since a nil memo value also means "pruned". When every child survives
// untouched the input node is returned and memoized in place of the rebuilt
// copy; nodes reached through a pointer cycle keep the copy, because the
// cycle placeholder was handed out before the children settled.
func project(n Node, required []Node, memo map[Node]Node, done map[Node]bool) Node {
	if done[n] {
		return memo[n]
	}
	if !HasAny(n, required) {
		done[n] = true
		memo[n] = nil
		return nil
	}

	switch t := n.(type) {
	case *Primitive:
		memo[n], done[n] = n, true
		return n

	case *List:
		out := &List{Encoding: t.Encoding, Counts: t.Counts, Offsets: t.Offsets,
			Starts: t.Starts, Ends: t.Ends, Nullable: t.Nullable, base: t}
		memo[n], done[n] = out, true
		content := project(t.Content, required, memo, done)
		if content == t.Content {
			memo[n] = n
			return n
		}
		if content == nil {
			// structural array survives for index arithmetic
			content = &Primitive{Data: t.boundary(), DType: column.AnyType, Nullable: t.Nullable, base: t}
		}
		out.Content = content
		return out

	case *Record:
		out := &Record{Name: t.Name, Nullable: t.Nullable, base: t}
		memo[n], done[n] = out, true
		changed := false
		for _, f := range t.Fields {
			child := project(f.Value, required, memo, done)
			if child == nil {
				changed = true
				continue
			}
			if child != f.Value {
				changed = true
			}
			out.Fields = append(out.Fields, Field{Name: f.Name, Value: child})
		}
		if len(out.Fields) == 0 {
			memo[n] = nil
			return nil
		}
		if !changed {
			memo[n] = n
			return n
		}
		return out

	case *Tuple:
		out := &Tuple{Nullable: t.Nullable, base: t}
		memo[n], done[n] = out, true
		changed := false
		for _, item := range t.Items {
			child := project(item, required, memo, done)
			if child == nil {
				changed = true
				continue
			}
			if child != item {
				changed = true
			}
			out.Items = append(out.Items, child)
		}
		if len(out.Items) == 0 {
			memo[n] = nil
			return nil
		}
		if !changed {
			memo[n] = n
			return n
		}
		return out

	case *Union:
		out := &Union{Tags: t.Tags, Offsets: t.Offsets, Nullable: t.Nullable, base: t}
		memo[n], done[n] = out, true
		changed := false
		for _, p := range t.Possibilities {
			child := project(p, required, memo, done)
			if child == nil {
				changed = true
				continue
			}
			if child != p {
				changed = true
			}
			out.Possibilities = append(out.Possibilities, child)
		}
		if len(out.Possibilities) == 0 {
			memo[n] = &Primitive{Data: t.Tags, DType: column.AnyType, Nullable: t.Nullable, base: t}
			return memo[n]
		}
		if !changed {
			memo[n] = n
			return n
		}
		return out

	case *Pointer:
		out := &Pointer{Index: t.Index, Nullable: t.Nullable, base: t}
		memo[n], done[n] = out, true
		target := project(t.Target, required, memo, done)
		if target == t.Target {
			memo[n] = n
			return n
		}
		if target == nil {
			target = &Primitive{Data: t.Index, DType: column.AnyType, Nullable: t.Nullable, base: t}
		}
		out.Target = target
		return out

	default:
		return nil
	}
}
