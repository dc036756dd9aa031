package document

import (
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FromBSON converts a decoded driver document into a Document, keeping
// field order.
func FromBSON(d bson.D) (Document, error) {
	doc := make(Document, 0, len(d))
	for _, e := range d {
		v, err := FromGo(e.Value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", e.Key, err)
		}
		doc = append(doc, Element{Key: e.Key, Value: v})
	}
	return doc, nil
}

// FromGo converts a value produced by the driver's default decoder. Plain
// Go numerics are accepted as well so callers can build documents by hand.
func FromGo(v interface{}) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null(), nil
	case primitive.Null, primitive.Undefined, primitive.MinKey, primitive.MaxKey:
		return Null(), nil
	case bool:
		return Bool(x), nil
	case int32:
		return Int32(x), nil
	case int64:
		return Int64(x), nil
	case int:
		return Int64(int64(x)), nil
	case float64:
		return Double(x), nil
	case float32:
		return Double(float64(x)), nil
	case string:
		return String(x), nil
	case primitive.ObjectID:
		return ObjectID(x), nil
	case primitive.DateTime:
		return DateTime(x.Time()), nil
	case time.Time:
		return DateTime(x), nil
	case primitive.Timestamp:
		return Timestamp(x.T, x.I), nil
	case primitive.Decimal128:
		return Decimal128(x.String()), nil
	case primitive.Binary:
		return Binary(x.Data), nil
	case []byte:
		return Binary(x), nil
	case primitive.Regex:
		return Regex(x.Pattern, x.Options), nil
	case primitive.JavaScript:
		return JavaScript(string(x)), nil
	case primitive.CodeWithScope:
		return JavaScript(string(x.Code)), nil
	case primitive.Symbol:
		return Symbol(string(x)), nil
	case primitive.DBPointer:
		return String(x.DB + "." + x.Pointer.Hex()), nil
	case bson.D:
		d, err := FromBSON(x)
		if err != nil {
			return Value{}, err
		}
		return Embedded(d), nil
	case bson.M:
		return fromMap(x)
	case map[string]interface{}:
		return fromMap(x)
	case bson.A:
		return fromSlice(x)
	case []interface{}:
		return fromSlice(x)
	default:
		return Value{}, fmt.Errorf("unsupported bson value of type %T", v)
	}
}

// fromMap sorts keys since map iteration order is random.
func fromMap(m map[string]interface{}) (Value, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	d := make(bson.D, 0, len(m))
	for _, k := range keys {
		d = append(d, bson.E{Key: k, Value: m[k]})
	}
	doc, err := FromBSON(d)
	if err != nil {
		return Value{}, err
	}
	return Embedded(doc), nil
}

func fromSlice(s []interface{}) (Value, error) {
	vals := make([]Value, len(s))
	for i, item := range s {
		v, err := FromGo(item)
		if err != nil {
			return Value{}, fmt.Errorf("index %d: %w", i, err)
		}
		vals[i] = v
	}
	return Array(vals...), nil
}

// ToBSON converts a Document back into driver form. Missing elements are
// dropped.
func ToBSON(d Document) bson.D {
	out := make(bson.D, 0, len(d))
	for _, e := range d {
		if e.Value.Kind() == KindMissing {
			continue
		}
		out = append(out, bson.E{Key: e.Key, Value: toGo(e.Value)})
	}
	return out
}

func toGo(v Value) interface{} {
	switch v.Kind() {
	case KindBoolean:
		return v.Bool()
	case KindInt32:
		return int32(v.Int())
	case KindInt64:
		return v.Int()
	case KindDouble:
		return v.Double()
	case KindString:
		return v.StringValue()
	case KindSymbol:
		return primitive.Symbol(v.StringValue())
	case KindJavaScript:
		return primitive.JavaScript(v.StringValue())
	case KindObjectID:
		var id primitive.ObjectID
		copy(id[:], v.Bytes())
		return id
	case KindDateTime:
		return primitive.NewDateTimeFromTime(v.Time())
	case KindTimestamp:
		return primitive.Timestamp{T: uint32(v.Time().Unix()), I: v.Ordinal()}
	case KindDecimal128:
		d, err := primitive.ParseDecimal128(v.s)
		if err != nil {
			return v.s
		}
		return d
	case KindBinary:
		return primitive.Binary{Data: v.Bytes()}
	case KindRegex:
		return primitive.Regex{Pattern: v.s, Options: string(v.raw)}
	case KindArray:
		arr := make(bson.A, len(v.Array()))
		for i, item := range v.Array() {
			arr[i] = toGo(item)
		}
		return arr
	case KindDocument:
		return ToBSON(v.Document())
	default:
		return nil
	}
}
