package schema

import (
	"iter"

	"github.com/ajitpratap0/mongoscan/pkg/document"
	"github.com/ajitpratap0/mongoscan/pkg/errors"
)

// DefaultInferLength is the number of documents sampled when the caller
// does not say otherwise.
const DefaultInferLength = 100

// InferType returns the best-fit column type for a single value. Arrays
// whose elements have no common type are rejected.
func InferType(v document.Value) (DataType, error) {
	return inferType(v, "")
}

func inferType(v document.Value, path string) (DataType, error) {
	switch v.Kind() {
	case document.KindBoolean:
		return BooleanType, nil
	case document.KindInt32:
		return Int32Type, nil
	case document.KindInt64:
		return Int64Type, nil
	case document.KindDouble, document.KindDecimal128:
		return Float64Type, nil
	case document.KindString, document.KindObjectID, document.KindSymbol,
		document.KindJavaScript, document.KindRegex:
		return StringType, nil
	case document.KindDateTime, document.KindTimestamp:
		return DatetimeType, nil
	case document.KindBinary:
		return BinaryType, nil
	case document.KindArray:
		elem := NullType
		for _, item := range v.Array() {
			t, err := inferType(item, path+"[]")
			if err != nil {
				return DataType{}, err
			}
			if elem, err = unify(path+"[]", elem, t); err != nil {
				return DataType{}, err
			}
		}
		return ListOf(elem), nil
	case document.KindDocument:
		s, err := documentSchema(v.Document(), path)
		if err != nil {
			return DataType{}, err
		}
		return StructOf(s.fields...), nil
	default:
		return NullType, nil
	}
}

// DocumentSchema returns the per-document type map in field order. When a
// key repeats, the first occurrence wins.
func DocumentSchema(doc document.Document) (Schema, error) {
	return documentSchema(doc, "")
}

func documentSchema(doc document.Document, prefix string) (Schema, error) {
	s := Schema{
		fields: make([]Field, 0, len(doc)),
		index:  make(map[string]int, len(doc)),
	}
	for _, e := range doc {
		if _, dup := s.index[e.Key]; dup || e.Value.Kind() == document.KindMissing {
			continue
		}
		t, err := inferType(e.Value, join(prefix, e.Key))
		if err != nil {
			return Schema{}, err
		}
		s.index[e.Key] = len(s.fields)
		s.fields = append(s.fields, Field{Name: e.Key, Type: t})
	}
	return s, nil
}

// Supertype returns the narrowest type both a and b generalize to without
// loss of kind. ok is false when no such type exists.
//
//	null + T            -> T
//	i32 + i64           -> i64
//	int + f64           -> f64
//	list[a] + list[b]   -> list[Supertype(a, b)]
//	struct + struct     -> field-wise merge in first-seen order
//	anything else       -> no supertype
func Supertype(a, b DataType) (DataType, bool) {
	t, err := unify("", a, b)
	return t, err == nil
}

func unify(path string, a, b DataType) (DataType, error) {
	switch {
	case a.ID == Null:
		return b, nil
	case b.ID == Null:
		return a, nil
	case a.ID == List && b.ID == List:
		elem, err := unify(path+"[]", *a.Elem, *b.Elem)
		if err != nil {
			return DataType{}, err
		}
		return ListOf(elem), nil
	case a.ID == Struct && b.ID == Struct:
		fields, err := mergeFields(path, a.Fields, b.Fields)
		if err != nil {
			return DataType{}, err
		}
		return StructOf(fields...), nil
	case a.ID == b.ID:
		return a, nil
	case a.IsNumeric() && b.IsNumeric():
		if a.ID == Float64 || b.ID == Float64 {
			return Float64Type, nil
		}
		return Int64Type, nil
	default:
		return DataType{}, errors.Newf(errors.ErrorTypeSchemaInference,
			"column %q has conflicting types %s and %s", path, a, b).
			WithDetail("column", path).
			WithDetail("types", []string{a.String(), b.String()})
	}
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

func mergeFields(prefix string, a, b []Field) ([]Field, error) {
	out := make([]Field, len(a), len(a)+len(b))
	copy(out, a)
	pos := make(map[string]int, len(a))
	for i, f := range a {
		pos[f.Name] = i
	}
	for _, f := range b {
		if i, ok := pos[f.Name]; ok {
			t, err := unify(join(prefix, f.Name), out[i].Type, f.Type)
			if err != nil {
				return nil, err
			}
			out[i].Type = t
			continue
		}
		pos[f.Name] = len(out)
		out = append(out, f)
	}
	return out, nil
}

// Merge unifies two schemas: columns keep first-seen order and conflicting
// types are widened with Supertype. It fails when a column has no supertype.
func Merge(a, b Schema) (Schema, error) {
	fields, err := mergeFields("", a.fields, b.fields)
	if err != nil {
		return Schema{}, err
	}
	s := Schema{fields: fields, index: make(map[string]int, len(fields))}
	for i, f := range fields {
		s.index[f.Name] = i
	}
	return s, nil
}

// Infer unifies the per-document schemas of up to limit documents from docs.
// A non-positive limit means DefaultInferLength. It fails when the sample is
// empty, the sequence yields an error, or a field holds values with no
// common type (bool and int, say), since no column could accept them all.
func Infer(docs iter.Seq2[document.Document, error], limit int) (Schema, error) {
	if limit <= 0 {
		limit = DefaultInferLength
	}

	var (
		out  Schema
		seen int
	)
	for doc, err := range docs {
		if err != nil {
			return Schema{}, errors.Wrap(err, errors.ErrorTypeSchemaInference, "failed to read schema sample").
				WithDetail("documents_read", seen)
		}
		ds, err := DocumentSchema(doc)
		if err == nil {
			out, err = Merge(out, ds)
		}
		if err != nil {
			return Schema{}, errors.Wrap(err, errors.ErrorTypeSchemaInference, "no common type in schema sample").
				WithDetail("documents_read", seen+1)
		}
		seen++
		if seen >= limit {
			break
		}
	}

	if seen == 0 {
		return Schema{}, errors.New(errors.ErrorTypeSchemaInference, "cannot infer schema from an empty sample")
	}
	return out, nil
}

// InferSlice is Infer over an in-memory sample.
func InferSlice(docs []document.Document, limit int) (Schema, error) {
	return Infer(func(yield func(document.Document, error) bool) {
		for _, d := range docs {
			if !yield(d, nil) {
				return
			}
		}
	}, limit)
}
