package schema

import (
	gojson "github.com/goccy/go-json"

	"github.com/rowshape/rowshape/pkg/column"
	"github.com/rowshape/rowshape/pkg/rserrors"
)

// nodeDTO is the generic structured-text form of one schema node. Shared
// nodes carry an id on first occurrence and are referenced by {"ref": id}
// afterwards, so pointer cycles round-trip.
type nodeDTO struct {
	Kind     string `json:"kind,omitempty"`
	ID       *int   `json:"id,omitempty"`
	Ref      *int   `json:"ref,omitempty"`
	Nullable bool   `json:"nullable,omitempty"`
	DType    string `json:"dtype,omitempty"`
	Name     string `json:"name,omitempty"`
	Encoding string `json:"encoding,omitempty"`

	Data    string `json:"data,omitempty"`
	Counts  string `json:"counts,omitempty"`
	Offsets string `json:"offsets,omitempty"`
	Starts  string `json:"starts,omitempty"`
	Ends    string `json:"ends,omitempty"`
	Tags    string `json:"tags,omitempty"`
	Index   string `json:"index,omitempty"`

	Content       *nodeDTO   `json:"content,omitempty"`
	Fields        []fieldDTO `json:"fields,omitempty"`
	Items         []*nodeDTO `json:"items,omitempty"`
	Possibilities []*nodeDTO `json:"possibilities,omitempty"`
	Target        *nodeDTO   `json:"target,omitempty"`
}

type fieldDTO struct {
	Name  string   `json:"name"`
	Value *nodeDTO `json:"value"`
}

// ToJSON serializes a schema tree, recording node kinds and named array
// references. Only name references serialize; literal arrays and callbacks
// are rejected.
func ToJSON(n Node) ([]byte, error) {
	e := &encoder{
		ids:  make(map[Node]int),
		done: make(map[Node]*nodeDTO),
	}
	e.assignIDs(n, make(map[Node]bool))
	dto, err := e.encode(n)
	if err != nil {
		return nil, err
	}
	return gojson.MarshalIndent(dto, "", "  ")
}

// FromJSON reconstructs a schema tree from its serialized form
func FromJSON(data []byte) (Node, error) {
	var dto nodeDTO
	if err := gojson.Unmarshal(data, &dto); err != nil {
		return nil, rserrors.Wrap(err, rserrors.ErrorTypeValidation, "malformed schema document")
	}
	d := &decoder{ids: make(map[int]Node)}
	return d.decode(&dto)
}

type encoder struct {
	ids  map[Node]int
	done map[Node]*nodeDTO
}

func (e *encoder) assignIDs(n Node, seen map[Node]bool) {
	if seen[n] {
		if _, ok := e.ids[n]; !ok {
			e.ids[n] = len(e.ids)
		}
		return
	}
	seen[n] = true
	for _, c := range children(n) {
		e.assignIDs(c, seen)
	}
}

func (e *encoder) encode(n Node) (*nodeDTO, error) {
	if _, emitted := e.done[n]; emitted {
		id, shared := e.ids[n]
		if !shared {
			return nil, rserrors.Newf(rserrors.ErrorTypeStructural,
				"a %s node is included more than once without a shared-node id", n.Kind())
		}
		return &nodeDTO{Ref: &id}, nil
	}

	dto := &nodeDTO{Kind: n.Kind().String(), Nullable: isNullable(n)}
	if id, shared := e.ids[n]; shared {
		dto.ID = &id
	}
	e.done[n] = dto

	var err error
	switch t := n.(type) {
	case *Primitive:
		if dto.Data, err = encodeRef(t.Data, "Primitive array"); err != nil {
			return nil, err
		}
		if t.DType != column.AnyType {
			dto.DType = t.DType.String()
		}
	case *List:
		switch t.Encoding {
		case CountEncoding:
			dto.Encoding = "counts"
			if dto.Counts, err = encodeRef(t.Counts, "List count array"); err != nil {
				return nil, err
			}
		case OffsetEncoding:
			dto.Encoding = "offsets"
			if dto.Offsets, err = encodeRef(t.Offsets, "List offset array"); err != nil {
				return nil, err
			}
		case StartEndEncoding:
			dto.Encoding = "startend"
			if dto.Starts, err = encodeRef(t.Starts, "List start array"); err != nil {
				return nil, err
			}
			if dto.Ends, err = encodeRef(t.Ends, "List end array"); err != nil {
				return nil, err
			}
		}
		if dto.Content, err = e.encode(t.Content); err != nil {
			return nil, err
		}
	case *Record:
		dto.Name = t.Name
		for _, f := range t.Fields {
			child, err := e.encode(f.Value)
			if err != nil {
				return nil, err
			}
			dto.Fields = append(dto.Fields, fieldDTO{Name: f.Name, Value: child})
		}
	case *Tuple:
		for _, item := range t.Items {
			child, err := e.encode(item)
			if err != nil {
				return nil, err
			}
			dto.Items = append(dto.Items, child)
		}
	case *Union:
		if dto.Tags, err = encodeRef(t.Tags, "Union tag array"); err != nil {
			return nil, err
		}
		if t.Offsets != nil {
			if dto.Offsets, err = encodeRef(t.Offsets, "Union offset array"); err != nil {
				return nil, err
			}
		}
		for _, p := range t.Possibilities {
			child, err := e.encode(p)
			if err != nil {
				return nil, err
			}
			dto.Possibilities = append(dto.Possibilities, child)
		}
	case *Pointer:
		if dto.Index, err = encodeRef(t.Index, "Pointer index array"); err != nil {
			return nil, err
		}
		if dto.Target, err = e.encode(t.Target); err != nil {
			return nil, err
		}
	}
	return dto, nil
}

func encodeRef(r Ref, desc string) (string, error) {
	name, ok := r.(NameRef)
	if !ok {
		return "", rserrors.Newf(rserrors.ErrorTypeValidation,
			"%s reference %s cannot be serialized; only named references round-trip", desc, refKey(r))
	}
	return string(name), nil
}

type decoder struct {
	ids map[int]Node
}

func (d *decoder) decode(dto *nodeDTO) (Node, error) {
	if dto == nil {
		return nil, rserrors.New(rserrors.ErrorTypeValidation, "missing schema node")
	}
	if dto.Ref != nil {
		n, ok := d.ids[*dto.Ref]
		if !ok {
			return nil, rserrors.Newf(rserrors.ErrorTypeValidation,
				"schema document references unknown shared node %d", *dto.Ref)
		}
		return n, nil
	}

	register := func(n Node) {
		if dto.ID != nil {
			d.ids[*dto.ID] = n
		}
	}

	switch dto.Kind {
	case "Primitive":
		dtype := column.AnyType
		if dto.DType != "" {
			var err error
			if dtype, err = parseDType(dto.DType); err != nil {
				return nil, err
			}
		}
		out := &Primitive{Data: NameRef(dto.Data), DType: dtype, Nullable: dto.Nullable}
		register(out)
		return out, nil
	case "List":
		out := &List{Nullable: dto.Nullable}
		switch dto.Encoding {
		case "counts":
			out.Encoding = CountEncoding
			out.Counts = NameRef(dto.Counts)
		case "offsets":
			out.Encoding = OffsetEncoding
			out.Offsets = NameRef(dto.Offsets)
		case "startend":
			out.Encoding = StartEndEncoding
			out.Starts = NameRef(dto.Starts)
			out.Ends = NameRef(dto.Ends)
		default:
			return nil, rserrors.Newf(rserrors.ErrorTypeValidation,
				"List node has unknown encoding %q", dto.Encoding)
		}
		register(out)
		content, err := d.decode(dto.Content)
		if err != nil {
			return nil, err
		}
		out.Content = content
		return out, nil
	case "Record":
		out := &Record{Name: dto.Name, Nullable: dto.Nullable}
		register(out)
		for _, f := range dto.Fields {
			child, err := d.decode(f.Value)
			if err != nil {
				return nil, err
			}
			out.Fields = append(out.Fields, Field{Name: f.Name, Value: child})
		}
		return out, nil
	case "Tuple":
		out := &Tuple{Nullable: dto.Nullable}
		register(out)
		for _, item := range dto.Items {
			child, err := d.decode(item)
			if err != nil {
				return nil, err
			}
			out.Items = append(out.Items, child)
		}
		return out, nil
	case "Union":
		out := &Union{Tags: NameRef(dto.Tags), Nullable: dto.Nullable}
		if dto.Offsets != "" {
			out.Offsets = NameRef(dto.Offsets)
		}
		register(out)
		for _, p := range dto.Possibilities {
			child, err := d.decode(p)
			if err != nil {
				return nil, err
			}
			out.Possibilities = append(out.Possibilities, child)
		}
		return out, nil
	case "Pointer":
		out := &Pointer{Index: NameRef(dto.Index), Nullable: dto.Nullable}
		register(out)
		target, err := d.decode(dto.Target)
		if err != nil {
			return nil, err
		}
		out.Target = target
		return out, nil
	default:
		return nil, rserrors.Newf(rserrors.ErrorTypeValidation, "unknown schema node kind %q", dto.Kind)
	}
}

func parseDType(s string) (column.DType, error) {
	switch s {
	case "int64":
		return column.Int64, nil
	case "float64":
		return column.Float64, nil
	case "bool":
		return column.Bool, nil
	case "string":
		return column.String, nil
	default:
		return column.AnyType, rserrors.Newf(rserrors.ErrorTypeValidation, "unknown dtype %q", s)
	}
}
