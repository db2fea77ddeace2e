package schema

import (
	"fmt"
	"strings"

	"github.com/rowshape/rowshape/pkg/column"
)

// Format renders a schema tree as a bounded-width, multi-line diagnostic
// string. Nodes reachable more than once are tagged with a bracketed index on
// first appearance and referenced by that tag afterwards, so cyclic pointer
// targets render finitely. Not an interchange format.
func Format(n Node, width int) string {
	if width <= 0 {
		width = 80
	}
	f := &formatter{
		width:   width,
		tags:    make(map[Node]string),
		printed: make(map[Node]bool),
	}
	f.collectTags(n, make(map[Node]bool))
	f.format(n, "", "")
	return strings.Join(f.lines, "\n")
}

type formatter struct {
	width   int
	lines   []string
	tags    map[Node]string
	printed map[Node]bool
}

// collectTags assigns "[i] " tags to nodes reachable via more than one path
func (f *formatter) collectTags(n Node, seen map[Node]bool) {
	if seen[n] {
		if _, ok := f.tags[n]; !ok {
			f.tags[n] = fmt.Sprintf("[%d] ", len(f.tags))
		}
		return
	}
	seen[n] = true
	for _, c := range children(n) {
		f.collectTags(c, seen)
	}
}

func (f *formatter) emit(indent, preamble, text string) {
	f.lines = append(f.lines, indent+preamble+text)
}

func (f *formatter) format(n Node, indent, preamble string) {
	tag := f.tags[n]
	if f.printed[n] {
		f.emit(indent, preamble, "-> "+strings.TrimSpace(tag))
		return
	}
	f.printed[n] = true
	nullable := ""
	if isNullable(n) {
		nullable = "?"
	}

	switch t := n.(type) {
	case *Primitive:
		f.emit(indent, preamble, tag+f.ref(t.Data, indent, preamble))
	case *List:
		f.emit(indent, preamble, tag+"List"+nullable+" [")
		inner := indent + "  "
		switch t.Encoding {
		case CountEncoding:
			f.emit(inner, "counts  = ", f.ref(t.Counts, inner, "counts  = "))
		case OffsetEncoding:
			f.emit(inner, "offsets = ", f.ref(t.Offsets, inner, "offsets = "))
		case StartEndEncoding:
			f.emit(inner, "starts  = ", f.ref(t.Starts, inner, "starts  = "))
			f.emit(inner, "ends    = ", f.ref(t.Ends, inner, "ends    = "))
		}
		f.format(t.Content, inner, "")
		f.emit(indent, "", "]")
	case *Record:
		f.emit(indent, preamble, tag+"Record"+nullable+" {")
		inner := indent + "  "
		if t.Name != "" {
			f.emit(inner, "", "name = "+t.Name)
		}
		for _, fld := range t.Fields {
			f.format(fld.Value, inner, fld.Name+": ")
		}
		f.emit(indent, "", "}")
	case *Tuple:
		f.emit(indent, preamble, tag+"Tuple"+nullable+" (")
		inner := indent + "  "
		for i, item := range t.Items {
			f.format(item, inner, fmt.Sprintf("%d: ", i))
		}
		f.emit(indent, "", ")")
	case *Union:
		f.emit(indent, preamble, tag+"Union"+nullable+" <")
		inner := indent + "  "
		f.emit(inner, "tags    = ", f.ref(t.Tags, inner, "tags    = "))
		if t.Offsets != nil {
			f.emit(inner, "offsets = ", f.ref(t.Offsets, inner, "offsets = "))
		}
		for i, p := range t.Possibilities {
			f.format(p, inner, fmt.Sprintf("%d: ", i))
		}
		f.emit(indent, "", ">")
	case *Pointer:
		f.emit(indent, preamble, tag+"Pointer"+nullable+" (*")
		inner := indent + "  "
		f.emit(inner, "index   = ", f.ref(t.Index, inner, "index   = "))
		f.format(t.Target, inner, "target: ")
		f.emit(indent, "", "*)")
	}
}

// ref renders one array reference within the remaining width budget
func (f *formatter) ref(r Ref, indent, preamble string) string {
	budget := f.width - len(indent) - len(preamble)
	switch t := r.(type) {
	case nil:
		return "<nil>"
	case NameRef:
		return refKey(r)
	case ArrayRef:
		return formatArray(t.Arr, budget)
	default:
		return "<callback>"
	}
}

// formatArray abbreviates an array's contents to fit the width budget
func formatArray(a column.Array, width int) string {
	end := fmt.Sprintf("], dtype=%s)", a.DType())
	out := []string{"array(["}
	used := len(out[0]) + len(end)
	i := 0
	for ; i < a.Len() && width-used > 4; i++ {
		var piece string
		if !a.Valid(i) {
			piece = "--"
		} else {
			piece = fmt.Sprintf("%v", a.Value(i))
		}
		if i != 0 {
			piece = " " + piece
		}
		out = append(out, piece)
		used += len(piece)
	}
	if i < a.Len() {
		out = append(out, " ...")
	}
	out = append(out, end)
	return strings.Join(out, "")
}

// isNullable reports a node's declared nullability
func isNullable(n Node) bool {
	switch t := n.(type) {
	case *Primitive:
		return t.Nullable
	case *List:
		return t.Nullable
	case *Record:
		return t.Nullable
	case *Tuple:
		return t.Nullable
	case *Union:
		return t.Nullable
	case *Pointer:
		return t.Nullable
	default:
		return false
	}
}
