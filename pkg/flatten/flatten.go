package flatten

import (
	"reflect"
	"strings"

	"go.uber.org/zap"

	"github.com/rowshape/rowshape/pkg/column"
	"github.com/rowshape/rowshape/pkg/rserrors"
	"github.com/rowshape/rowshape/pkg/schema"
)

// Classifier picks the union possibility a value belongs to, returning its
// tag. Classification is pluggable; DefaultClassifier matches the first
// structurally compatible possibility.
type Classifier func(value interface{}, possibilities []schema.Node) (int, error)

// Options configures a Flattener
type Options struct {
	// Prefix is the root of every column key; defaults to "object"
	Prefix string
	// Delimiter joins path segments; defaults to "-"
	Delimiter string
	// Classifier resolves union tags; defaults to DefaultClassifier
	Classifier Classifier
	Logger     *zap.Logger
}

// Flattener appends nested values into a column set under construction,
// carrying running offset and tag counters across appends so sibling lists
// and union branches accumulate correctly. A failed append poisons the
// flattener; its partial columns have uneven lengths and must be discarded.
type Flattener struct {
	root     schema.Node
	prefix   string
	delim    string
	classify Classifier
	logger   *zap.Logger

	builders     map[string]column.Builder
	order        []string
	listTotals   map[string]int64
	branchCounts map[string]int64
	rows         int
	failed       bool
}

// New creates a flattener for the given schema. Every primitive must declare
// its dtype; pointer nodes are rejected.
func New(node schema.Node, opts *Options) (*Flattener, error) {
	if opts == nil {
		opts = &Options{}
	}
	f := &Flattener{
		root:         node,
		prefix:       opts.Prefix,
		delim:        opts.Delimiter,
		classify:     opts.Classifier,
		logger:       opts.Logger,
		builders:     make(map[string]column.Builder),
		listTotals:   make(map[string]int64),
		branchCounts: make(map[string]int64),
	}
	if f.prefix == "" {
		f.prefix = "object"
	}
	if f.delim == "" {
		f.delim = "-"
	}
	if f.classify == nil {
		f.classify = DefaultClassifier
	}
	if f.logger == nil {
		f.logger = zap.NewNop()
	}

	if err := f.declare(node, Root(f.prefix, f.delim)); err != nil {
		return nil, err
	}
	f.logger.Debug("flattener ready",
		zap.Int("columns", len(f.order)),
		zap.String("prefix", f.prefix))
	return f, nil
}

// declare walks the schema creating one builder per column
func (f *Flattener) declare(node schema.Node, name Name) error {
	switch t := node.(type) {
	case *schema.Primitive:
		if t.DType == column.AnyType {
			return rserrors.Newf(rserrors.ErrorTypeValidation,
				"flattening requires a declared dtype; primitive %s has none", name.Data())
		}
		b, err := column.NewBuilder(t.DType, t.Nullable)
		if err != nil {
			return rserrors.Wrap(err, rserrors.ErrorTypeValidation, "primitive column")
		}
		f.add(name.Data().String(), b)
		return nil
	case *schema.List:
		if t.Nullable {
			f.add(name.ListCounts().String(), column.NewInt64Builder(true))
		} else {
			b := column.NewInt64Builder(false)
			b.AppendInt64(0) // offsets[0] = 0
			f.add(name.ListOffsets().String(), b)
		}
		return f.declare(t.Content, name.ListData())
	case *schema.Record:
		for _, fld := range t.Fields {
			if strings.Contains(fld.Name, f.delim) {
				return rserrors.Newf(rserrors.ErrorTypeValidation,
					"record field %q contains the column delimiter %q", fld.Name, f.delim)
			}
			if err := f.declare(fld.Value, name.RecordField(fld.Name)); err != nil {
				return err
			}
		}
		return nil
	case *schema.Tuple:
		for i, item := range t.Items {
			if err := f.declare(item, name.TupleItem(i)); err != nil {
				return err
			}
		}
		return nil
	case *schema.Union:
		f.add(name.UnionTags().String(), column.NewInt64Builder(t.Nullable))
		f.add(name.UnionOffsets().String(), column.NewInt64Builder(t.Nullable))
		for i, p := range t.Possibilities {
			if err := f.declare(p, name.UnionBranch(i)); err != nil {
				return err
			}
		}
		return nil
	case *schema.Pointer:
		return rserrors.New(rserrors.ErrorTypeStructural,
			"Pointer schemas cannot be flattened: plain nested values carry no sharing to reconstruct")
	default:
		return rserrors.Newf(rserrors.ErrorTypeInternal, "unknown schema node %T", node)
	}
}

func (f *Flattener) add(key string, b column.Builder) {
	f.builders[key] = b
	f.order = append(f.order, key)
}

// Append flattens one value as the next row of the root schema. The first
// failure poisons the flattener.
func (f *Flattener) Append(value interface{}) error {
	if f.failed {
		return rserrors.New(rserrors.ErrorTypeValidation,
			"flattener has failed; its partial columns must be discarded")
	}
	if err := f.fill(value, f.root, Root(f.prefix, f.delim)); err != nil {
		f.failed = true
		return err
	}
	f.rows++
	return nil
}

// Rows returns the number of rows appended so far
func (f *Flattener) Rows() int { return f.rows }

// Finish seals the builders into a column set
func (f *Flattener) Finish() (*column.Set, error) {
	if f.failed {
		return nil, rserrors.New(rserrors.ErrorTypeValidation,
			"flattener has failed; its partial columns must be discarded")
	}
	set := column.NewSet()
	for _, key := range f.order {
		if err := set.Add(key, f.builders[key].Finish()); err != nil {
			return nil, rserrors.Wrap(err, rserrors.ErrorTypeInternal, "finalizing columns")
		}
	}
	return set, nil
}

func (f *Flattener) fill(value interface{}, node schema.Node, name Name) error {
	switch t := node.(type) {
	case *schema.Primitive:
		b := f.builders[name.Data().String()]
		if value == nil {
			if !t.Nullable {
				return rserrors.Newf(rserrors.ErrorTypeTypeMismatch,
					"cannot fill nil where a non-nullable %s is expected at %s", t.DType, name.Data())
			}
			return b.AppendNull()
		}
		v, err := conform(value, t.DType)
		if err != nil {
			return rserrors.Newf(rserrors.ErrorTypeTypeMismatch,
				"cannot fill %v (%T) where a value of type %s is expected at %s",
				value, value, t.DType, name.Data())
		}
		return b.Append(v)

	case *schema.List:
		if value == nil {
			if !t.Nullable {
				return rserrors.Newf(rserrors.ErrorTypeTypeMismatch,
					"cannot fill nil where a non-nullable list is expected at %s", name)
			}
			return f.builders[name.ListCounts().String()].AppendNull()
		}
		elems, ok := asSequence(value)
		if !ok {
			return rserrors.Newf(rserrors.ErrorTypeTypeMismatch,
				"cannot fill %v (%T) where a list is expected at %s", value, value, name)
		}
		if t.Nullable {
			f.builders[name.ListCounts().String()].(*column.Int64Builder).AppendInt64(int64(len(elems)))
		} else {
			key := name.ListOffsets().String()
			f.listTotals[key] += int64(len(elems))
			f.builders[key].(*column.Int64Builder).AppendInt64(f.listTotals[key])
		}
		data := name.ListData()
		for _, e := range elems {
			if err := f.fill(e, t.Content, data); err != nil {
				return err
			}
		}
		return nil

	case *schema.Record:
		if value == nil {
			return rserrors.Newf(rserrors.ErrorTypeTypeMismatch,
				"cannot fill nil where a record is expected at %s", name)
		}
		for _, fld := range t.Fields {
			fv, err := fieldValue(value, fld.Name)
			if err != nil {
				return rserrors.Wrap(err, rserrors.ErrorTypeMissingField,
					"cannot fill record at "+name.String())
			}
			if err := f.fill(fv, fld.Value, name.RecordField(fld.Name)); err != nil {
				return err
			}
		}
		return nil

	case *schema.Tuple:
		elems, ok := asSequence(value)
		if !ok || len(elems) != len(t.Items) {
			return rserrors.Newf(rserrors.ErrorTypeTypeMismatch,
				"cannot fill %v (%T) where a tuple of %d items is expected at %s",
				value, value, len(t.Items), name)
		}
		for i, e := range elems {
			if err := f.fill(e, t.Items[i], name.TupleItem(i)); err != nil {
				return err
			}
		}
		return nil

	case *schema.Union:
		tagKey := name.UnionTags().String()
		offKey := name.UnionOffsets().String()
		if value == nil && t.Nullable {
			if err := f.builders[tagKey].AppendNull(); err != nil {
				return err
			}
			return f.builders[offKey].AppendNull()
		}
		tag, err := f.classify(value, t.Possibilities)
		if err != nil {
			return rserrors.Wrap(err, rserrors.ErrorTypeTypeMismatch,
				"cannot fill "+name.String())
		}
		if tag < 0 || tag >= len(t.Possibilities) {
			return rserrors.Newf(rserrors.ErrorTypeTypeMismatch,
				"classifier chose tag %d of %d possibilities at %s", tag, len(t.Possibilities), name)
		}
		branchKey := name.UnionBranch(tag).String()
		f.builders[tagKey].(*column.Int64Builder).AppendInt64(int64(tag))
		f.builders[offKey].(*column.Int64Builder).AppendInt64(f.branchCounts[branchKey])
		f.branchCounts[branchKey]++
		return f.fill(value, t.Possibilities[tag], name.UnionBranch(tag))

	default:
		return rserrors.Newf(rserrors.ErrorTypeInternal, "unknown schema node %T", node)
	}
}

// Flatten is the one-shot form: each value becomes one row
func Flatten(node schema.Node, values []interface{}, opts *Options) (*column.Set, error) {
	f, err := New(node, opts)
	if err != nil {
		return nil, err
	}
	for _, v := range values {
		if err := f.Append(v); err != nil {
			return nil, err
		}
	}
	return f.Finish()
}

// conform validates a value's membership in the declared domain, normalizing
// integer and float widths. No cross-kind coercion happens here.
func conform(value interface{}, dtype column.DType) (interface{}, error) {
	switch dtype {
	case column.Int64:
		switch v := value.(type) {
		case int:
			return int64(v), nil
		case int8:
			return int64(v), nil
		case int16:
			return int64(v), nil
		case int32:
			return int64(v), nil
		case int64:
			return v, nil
		case uint8:
			return int64(v), nil
		case uint16:
			return int64(v), nil
		case uint32:
			return int64(v), nil
		}
	case column.Float64:
		switch v := value.(type) {
		case float32:
			return float64(v), nil
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		case int32:
			return float64(v), nil
		case int64:
			return float64(v), nil
		}
	case column.Bool:
		if v, ok := value.(bool); ok {
			return v, nil
		}
	case column.String:
		if v, ok := value.(string); ok {
			return v, nil
		}
	}
	return nil, rserrors.Newf(rserrors.ErrorTypeTypeMismatch, "value %v (%T) is outside domain %s", value, value, dtype)
}

// asSequence normalizes list-like input. Strings and maps are not sequences.
func asSequence(value interface{}) ([]interface{}, bool) {
	switch v := value.(type) {
	case []interface{}:
		return v, true
	case string, map[string]interface{}:
		return nil, false
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// fieldValue resolves a record field by map key or exported struct field
func fieldValue(value interface{}, field string) (interface{}, error) {
	if m, ok := value.(map[string]interface{}); ok {
		v, present := m[field]
		if !present {
			return nil, rserrors.Newf(rserrors.ErrorTypeMissingField, "missing field %q", field)
		}
		return v, nil
	}
	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() == reflect.Struct {
		fv := rv.FieldByName(field)
		if !fv.IsValid() {
			fv = rv.FieldByName(exportedName(field))
		}
		if fv.IsValid() && fv.CanInterface() {
			return fv.Interface(), nil
		}
		return nil, rserrors.Newf(rserrors.ErrorTypeMissingField, "missing field %q", field)
	}
	return nil, rserrors.Newf(rserrors.ErrorTypeTypeMismatch,
		"cannot read field %q from %T", field, value)
}

func exportedName(field string) string {
	if field == "" {
		return field
	}
	r := []rune(field)
	if r[0] >= 'a' && r[0] <= 'z' {
		r[0] = r[0] - 'a' + 'A'
	}
	return string(r)
}

// DefaultClassifier selects the first possibility the value is structurally
// compatible with
func DefaultClassifier(value interface{}, possibilities []schema.Node) (int, error) {
	for i, p := range possibilities {
		if compatible(value, p) {
			return i, nil
		}
	}
	return 0, rserrors.Newf(rserrors.ErrorTypeTypeMismatch,
		"value %v (%T) matches none of the %d union possibilities", value, value, len(possibilities))
}

func compatible(value interface{}, node schema.Node) bool {
	switch t := node.(type) {
	case *schema.Primitive:
		if value == nil {
			return t.Nullable
		}
		_, err := conform(value, t.DType)
		return err == nil
	case *schema.List:
		if value == nil {
			return t.Nullable
		}
		_, ok := asSequence(value)
		return ok
	case *schema.Record:
		if value == nil {
			return false
		}
		for _, f := range t.Fields {
			if _, err := fieldValue(value, f.Name); err != nil {
				return false
			}
		}
		return true
	case *schema.Tuple:
		elems, ok := asSequence(value)
		return ok && len(elems) == len(t.Items)
	case *schema.Union:
		for _, p := range t.Possibilities {
			if compatible(value, p) {
				return true
			}
		}
		return false
	default:
		return false
	}
}
