// Package schema describes the ordered column layout of a scan and infers
// it from a sample of documents.
package schema

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
)

// Field is a named column.
type Field struct {
	Name string
	Type DataType
}

func (f Field) String() string {
	return f.Name + ": " + f.Type.String()
}

// ToArrow returns the nullable Arrow field for f. Every column is nullable
// since any document may omit any field.
func (f Field) ToArrow() arrow.Field {
	return arrow.Field{Name: f.Name, Type: f.Type.ToArrow(), Nullable: true}
}

// Schema is an ordered set of uniquely named fields. The zero value is an
// empty schema.
type Schema struct {
	fields []Field
	index  map[string]int
}

// New builds a schema, rejecting duplicate names.
func New(fields ...Field) (Schema, error) {
	s := Schema{
		fields: make([]Field, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		if _, dup := s.index[f.Name]; dup {
			return Schema{}, fmt.Errorf("duplicate column %q", f.Name)
		}
		s.index[f.Name] = len(s.fields)
		s.fields = append(s.fields, f)
	}
	return s, nil
}

// MustNew is New for statically known schemas.
func MustNew(fields ...Field) Schema {
	s, err := New(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s Schema) Len() int         { return len(s.fields) }
func (s Schema) Fields() []Field  { return append([]Field(nil), s.fields...) }
func (s Schema) At(i int) Field   { return s.fields[i] }
func (s Schema) IsEmpty() bool    { return len(s.fields) == 0 }

// Names returns column names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// Index returns the position of name, or -1.
func (s Schema) Index(name string) int {
	if i, ok := s.index[name]; ok {
		return i
	}
	return -1
}

// Field returns the field named name.
func (s Schema) Field(name string) (Field, bool) {
	i := s.Index(name)
	if i < 0 {
		return Field{}, false
	}
	return s.fields[i], true
}

// Select returns a schema with the named columns in the given order.
func (s Schema) Select(names ...string) (Schema, error) {
	fields := make([]Field, 0, len(names))
	for _, n := range names {
		f, ok := s.Field(n)
		if !ok {
			return Schema{}, fmt.Errorf("column %q not found in schema", n)
		}
		fields = append(fields, f)
	}
	return New(fields...)
}

// With returns a copy of s with f appended, or with the existing column of
// the same name replaced in place.
func (s Schema) With(f Field) Schema {
	fields := s.Fields()
	if i := s.Index(f.Name); i >= 0 {
		fields[i] = f
	} else {
		fields = append(fields, f)
	}
	return MustNew(fields...)
}

// Equal reports whether both schemas have the same names, order and types.
func (s Schema) Equal(o Schema) bool {
	if len(s.fields) != len(o.fields) {
		return false
	}
	for i := range s.fields {
		if s.fields[i].Name != o.fields[i].Name || !s.fields[i].Type.Equal(o.fields[i].Type) {
			return false
		}
	}
	return true
}

func (s Schema) String() string {
	var sb strings.Builder
	sb.WriteString("Schema:\n")
	for _, f := range s.fields {
		fmt.Fprintf(&sb, "name: %s, data type: %s\n", f.Name, f.Type)
	}
	return sb.String()
}

// ToArrow converts the schema for use with Arrow builders and records.
func (s Schema) ToArrow() *arrow.Schema {
	fields := make([]arrow.Field, len(s.fields))
	for i, f := range s.fields {
		fields[i] = f.ToArrow()
	}
	return arrow.NewSchema(fields, nil)
}
