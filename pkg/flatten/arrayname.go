// Package flatten encodes arbitrary nested values into the columnar layout a
// schema tree describes, producing a column set that resolution and
// materialization can reproduce the values from.
package flatten

import (
	"strconv"
	"strings"

	"github.com/rowshape/rowshape/pkg/rserrors"
	"github.com/rowshape/rowshape/pkg/schema"
)

// Name is a structured column key: a prefix plus delimiter-joined path
// segments, one per structural step. The algebra is stable and
// round-trippable, so a schema named by the same algebra resolves against a
// flattener's output.
//
// Segment codes: "Lo" list offsets, "Lc" list counts, "Ld" list data,
// "Ut" union tags, "Uo" union offsets, "U<i>" union branch, "F<field>"
// record field, "T<i>" tuple item, "D" primitive data.
type Name struct {
	prefix string
	delim  string
	segs   []string
}

// Root returns the empty path under prefix
func Root(prefix, delimiter string) Name {
	return Name{prefix: prefix, delim: delimiter}
}

func (n Name) push(seg string) Name {
	segs := make([]string, len(n.segs), len(n.segs)+1)
	copy(segs, n.segs)
	return Name{prefix: n.prefix, delim: n.delim, segs: append(segs, seg)}
}

// ListOffsets descends to a list's cumulative offset column
func (n Name) ListOffsets() Name { return n.push("Lo") }

// ListCounts descends to a list's per-row count column
func (n Name) ListCounts() Name { return n.push("Lc") }

// ListData descends to a list's element content
func (n Name) ListData() Name { return n.push("Ld") }

// UnionTags descends to a union's tag column
func (n Name) UnionTags() Name { return n.push("Ut") }

// UnionOffsets descends to a union's offset column
func (n Name) UnionOffsets() Name { return n.push("Uo") }

// UnionBranch descends into the i-th union possibility
func (n Name) UnionBranch(i int) Name { return n.push("U" + strconv.Itoa(i)) }

// RecordField descends into a named record field
func (n Name) RecordField(field string) Name { return n.push("F" + field) }

// TupleItem descends into the i-th tuple item
func (n Name) TupleItem(i int) Name { return n.push("T" + strconv.Itoa(i)) }

// Data descends to a primitive's value column
func (n Name) Data() Name { return n.push("D") }

// String renders the key: prefix, then segments, delimiter-joined
func (n Name) String() string {
	if len(n.segs) == 0 {
		return n.prefix
	}
	return n.prefix + n.delim + strings.Join(n.segs, n.delim)
}

// Parse reconstructs a Name from its rendered key
func Parse(s, prefix, delimiter string) (Name, error) {
	if s == prefix {
		return Root(prefix, delimiter), nil
	}
	if !strings.HasPrefix(s, prefix+delimiter) {
		return Name{}, rserrors.Newf(rserrors.ErrorTypeLookup,
			"column key %q does not start with prefix %q", s, prefix)
	}
	n := Root(prefix, delimiter)
	for _, seg := range strings.Split(strings.TrimPrefix(s, prefix+delimiter), delimiter) {
		if !validSegment(seg) {
			return Name{}, rserrors.Newf(rserrors.ErrorTypeLookup,
				"column key %q has unknown path segment %q", s, seg)
		}
		n.segs = append(n.segs, seg)
	}
	return n, nil
}

func validSegment(seg string) bool {
	switch seg {
	case "Lo", "Lc", "Ld", "Ut", "Uo", "D":
		return true
	}
	if len(seg) < 2 {
		return false
	}
	switch seg[0] {
	case 'F':
		return true
	case 'U', 'T':
		_, err := strconv.Atoi(seg[1:])
		return err == nil
	}
	return false
}

// NameSchema returns a copy of node with every array reference replaced by
// the name this package's flattener writes that column under. Nullable lists
// are named by their count column (count validity aligns row-for-row with
// the list), non-nullable lists by their offset column. Pointer nodes cannot
// be flattened and are rejected.
func NameSchema(node schema.Node, prefix, delimiter string) (schema.Node, error) {
	return nameSchema(node, Root(prefix, delimiter))
}

func nameSchema(node schema.Node, name Name) (schema.Node, error) {
	switch t := node.(type) {
	case *schema.Primitive:
		return &schema.Primitive{
			Data:     schema.NameRef(name.Data().String()),
			DType:    t.DType,
			Nullable: t.Nullable,
		}, nil
	case *schema.List:
		content, err := nameSchema(t.Content, name.ListData())
		if err != nil {
			return nil, err
		}
		out := &schema.List{Content: content, Nullable: t.Nullable}
		if t.Nullable {
			out.Encoding = schema.CountEncoding
			out.Counts = schema.NameRef(name.ListCounts().String())
		} else {
			out.Encoding = schema.OffsetEncoding
			out.Offsets = schema.NameRef(name.ListOffsets().String())
		}
		return out, nil
	case *schema.Record:
		out := &schema.Record{Name: t.Name, Nullable: t.Nullable}
		for _, f := range t.Fields {
			if strings.Contains(f.Name, name.delim) {
				return nil, rserrors.Newf(rserrors.ErrorTypeValidation,
					"record field %q contains the column delimiter %q", f.Name, name.delim)
			}
			child, err := nameSchema(f.Value, name.RecordField(f.Name))
			if err != nil {
				return nil, err
			}
			out.Fields = append(out.Fields, schema.Field{Name: f.Name, Value: child})
		}
		return out, nil
	case *schema.Tuple:
		out := &schema.Tuple{Nullable: t.Nullable}
		for i, item := range t.Items {
			child, err := nameSchema(item, name.TupleItem(i))
			if err != nil {
				return nil, err
			}
			out.Items = append(out.Items, child)
		}
		return out, nil
	case *schema.Union:
		out := &schema.Union{
			Tags:     schema.NameRef(name.UnionTags().String()),
			Offsets:  schema.NameRef(name.UnionOffsets().String()),
			Nullable: t.Nullable,
		}
		for i, p := range t.Possibilities {
			child, err := nameSchema(p, name.UnionBranch(i))
			if err != nil {
				return nil, err
			}
			out.Possibilities = append(out.Possibilities, child)
		}
		return out, nil
	case *schema.Pointer:
		return nil, rserrors.New(rserrors.ErrorTypeStructural,
			"Pointer schemas cannot be flattened: plain nested values carry no sharing to reconstruct")
	default:
		return nil, rserrors.Newf(rserrors.ErrorTypeInternal, "unknown schema node %T", node)
	}
}
