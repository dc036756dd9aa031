package document

import "strings"

// Element is one key/value pair of a document.
type Element struct {
	Key   string
	Value Value
}

// Document is an ordered list of elements. Keys are expected to be unique;
// Get returns the first match.
type Document []Element

// D builds a document from alternating keys and values, mainly for tests.
//
//	document.D("_id", document.Int64(1), "name", document.String("a"))
func D(pairs ...interface{}) Document {
	doc := make(Document, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		doc = append(doc, Element{Key: pairs[i].(string), Value: pairs[i+1].(Value)})
	}
	return doc
}

// Get returns the value stored under key, or Missing.
func (d Document) Get(key string) Value {
	for i := range d {
		if d[i].Key == key {
			return d[i].Value
		}
	}
	return Missing()
}

// Keys returns the keys in document order.
func (d Document) Keys() []string {
	keys := make([]string, len(d))
	for i := range d {
		keys[i] = d[i].Key
	}
	return keys
}

// Project returns a copy of d keeping only the listed keys, in document order.
func (d Document) Project(keys []string) Document {
	if len(keys) == 0 {
		return d
	}
	keep := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		keep[k] = struct{}{}
	}
	out := make(Document, 0, len(keys))
	for _, e := range d {
		if _, ok := keep[e.Key]; ok {
			out = append(out, e)
		}
	}
	return out
}

func (d Document) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, e := range d {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(e.Key)
		sb.WriteString(": ")
		sb.WriteString(e.Value.String())
	}
	sb.WriteByte('}')
	return sb.String()
}
