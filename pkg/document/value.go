// Package document models the dynamically typed documents read from the
// store as a closed tagged union.
//
// A Value always carries exactly one Kind; consumers switch on Kind and
// read the matching accessor. Accessors called on the wrong kind return the
// zero value, so callers must check Kind first.
package document

import (
	"encoding/hex"
	"fmt"
	"time"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	// KindMissing marks a field that is absent from the document.
	KindMissing Kind = iota
	KindNull
	KindBoolean
	KindInt32
	KindInt64
	KindDouble
	KindString
	KindObjectID
	KindDateTime
	KindTimestamp
	KindDecimal128
	KindBinary
	KindRegex
	KindJavaScript
	KindSymbol
	KindArray
	KindDocument
)

var kindNames = [...]string{
	KindMissing:    "missing",
	KindNull:       "null",
	KindBoolean:    "boolean",
	KindInt32:      "int32",
	KindInt64:      "int64",
	KindDouble:     "double",
	KindString:     "string",
	KindObjectID:   "objectId",
	KindDateTime:   "datetime",
	KindTimestamp:  "timestamp",
	KindDecimal128: "decimal128",
	KindBinary:     "binary",
	KindRegex:      "regex",
	KindJavaScript: "javascript",
	KindSymbol:     "symbol",
	KindArray:      "array",
	KindDocument:   "document",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Value is a single document value.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	b    bool
	t    time.Time
	raw  []byte
	arr  []Value
	doc  Document
}

func Missing() Value             { return Value{kind: KindMissing} }
func Null() Value                { return Value{kind: KindNull} }
func Bool(v bool) Value          { return Value{kind: KindBoolean, b: v} }
func Int32(v int32) Value        { return Value{kind: KindInt32, i: int64(v)} }
func Int64(v int64) Value        { return Value{kind: KindInt64, i: v} }
func Double(v float64) Value     { return Value{kind: KindDouble, f: v} }
func String(v string) Value      { return Value{kind: KindString, s: v} }
func Symbol(v string) Value      { return Value{kind: KindSymbol, s: v} }
func JavaScript(v string) Value  { return Value{kind: KindJavaScript, s: v} }
func Binary(v []byte) Value      { return Value{kind: KindBinary, raw: v} }
func Array(vs ...Value) Value    { return Value{kind: KindArray, arr: vs} }
func Embedded(d Document) Value  { return Value{kind: KindDocument, doc: d} }
func DateTime(t time.Time) Value { return Value{kind: KindDateTime, t: t.UTC()} }

// Timestamp is the BSON internal timestamp: seconds since epoch plus an
// ordinal within the second.
func Timestamp(seconds, ordinal uint32) Value {
	return Value{kind: KindTimestamp, t: time.Unix(int64(seconds), 0).UTC(), i: int64(ordinal)}
}

// ObjectID wraps the 12 raw bytes of a BSON object id.
func ObjectID(id [12]byte) Value {
	b := make([]byte, 12)
	copy(b, id[:])
	return Value{kind: KindObjectID, raw: b}
}

// Decimal128 keeps the canonical string form of a decimal.
func Decimal128(repr string) Value { return Value{kind: KindDecimal128, s: repr} }

// Regex keeps pattern and options.
func Regex(pattern, options string) Value {
	return Value{kind: KindRegex, s: pattern, raw: []byte(options)}
}

func (v Value) Kind() Kind { return v.kind }

// IsAbsent reports whether v is missing or null.
func (v Value) IsAbsent() bool { return v.kind == KindMissing || v.kind == KindNull }

func (v Value) Bool() bool         { return v.b }
func (v Value) Int() int64         { return v.i }
func (v Value) Double() float64    { return v.f }
func (v Value) Time() time.Time    { return v.t }
func (v Value) Bytes() []byte      { return v.raw }
func (v Value) Array() []Value     { return v.arr }
func (v Value) Document() Document { return v.doc }

// Ordinal returns the increment part of a Timestamp value.
func (v Value) Ordinal() uint32 { return uint32(v.i) }

// StringValue returns the textual payload of string-like kinds. ObjectIDs
// are rendered as lowercase hex and regexes as /pattern/options.
func (v Value) StringValue() string {
	switch v.kind {
	case KindObjectID:
		return hex.EncodeToString(v.raw)
	case KindRegex:
		return "/" + v.s + "/" + string(v.raw)
	default:
		return v.s
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindMissing, KindNull:
		return v.kind.String()
	case KindBoolean:
		return fmt.Sprint(v.b)
	case KindInt32, KindInt64:
		return fmt.Sprint(v.i)
	case KindDouble:
		return fmt.Sprint(v.f)
	case KindDateTime, KindTimestamp:
		return v.t.Format(time.RFC3339Nano)
	case KindBinary:
		return hex.EncodeToString(v.raw)
	case KindArray:
		return fmt.Sprint(v.arr)
	case KindDocument:
		return v.doc.String()
	default:
		return v.StringValue()
	}
}
