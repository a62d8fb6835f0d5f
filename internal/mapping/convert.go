package mapping

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"
)

var (
	timeType  = reflect.TypeFor[time.Time]()
	uuidType  = reflect.TypeFor[uuid.UUID]()
	bytesType = reflect.TypeFor[[]byte]()
)

// converter turns a raw driver value into a property value of one Go type.
type converter func(raw any) (any, error)

// typeName returns the logical data type stored on schema columns and
// parameters for t.
func typeName(t reflect.Type) string {
	switch t {
	case timeType:
		return "time.Time"
	case uuidType:
		return "uuid"
	case bytesType:
		return "[]byte"
	}
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "bool"
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint32, reflect.Uint64:
		return "int64"
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Uint8, reflect.Uint16:
		return "int32"
	case reflect.Float32:
		return "float32"
	case reflect.Float64:
		return "float64"
	case reflect.Pointer:
		return typeName(t.Elem())
	}
	return t.String()
}

// converterFor picks the conversion for t once, when the property is declared.
func converterFor(t reflect.Type) converter {
	switch t {
	case timeType:
		return func(raw any) (any, error) { return cast.ToTimeE(normalize(raw)) }
	case uuidType:
		return toUUID
	case bytesType:
		return toBytes
	}

	var base converter
	switch t.Kind() {
	case reflect.Pointer:
		elem := converterFor(t.Elem())
		return func(raw any) (any, error) {
			if raw == nil {
				return reflect.Zero(t).Interface(), nil
			}
			v, err := elem(raw)
			if err != nil {
				return nil, err
			}
			p := reflect.New(t.Elem())
			p.Elem().Set(reflect.ValueOf(v))
			return p.Interface(), nil
		}
	case reflect.String:
		base = func(raw any) (any, error) { return cast.ToStringE(raw) }
	case reflect.Bool:
		base = func(raw any) (any, error) { return cast.ToBoolE(raw) }
	case reflect.Int:
		base = func(raw any) (any, error) { return cast.ToIntE(raw) }
	case reflect.Int8:
		base = func(raw any) (any, error) { return cast.ToInt8E(raw) }
	case reflect.Int16:
		base = func(raw any) (any, error) { return cast.ToInt16E(raw) }
	case reflect.Int32:
		base = func(raw any) (any, error) { return cast.ToInt32E(raw) }
	case reflect.Int64:
		base = func(raw any) (any, error) { return cast.ToInt64E(raw) }
	case reflect.Uint:
		base = func(raw any) (any, error) { return cast.ToUintE(raw) }
	case reflect.Uint8:
		base = func(raw any) (any, error) { return cast.ToUint8E(raw) }
	case reflect.Uint16:
		base = func(raw any) (any, error) { return cast.ToUint16E(raw) }
	case reflect.Uint32:
		base = func(raw any) (any, error) { return cast.ToUint32E(raw) }
	case reflect.Uint64:
		base = func(raw any) (any, error) { return cast.ToUint64E(raw) }
	case reflect.Float32:
		base = func(raw any) (any, error) { return cast.ToFloat32E(raw) }
	case reflect.Float64:
		base = func(raw any) (any, error) { return cast.ToFloat64E(raw) }
	default:
		return func(raw any) (any, error) {
			return nil, fmt.Errorf("unsupported property type %s", t)
		}
	}

	return func(raw any) (any, error) {
		v, err := base(normalize(raw))
		if err != nil {
			return nil, err
		}
		rv := reflect.ValueOf(v)
		if rv.Type() != t {
			// Named types such as "type Status string".
			rv = rv.Convert(t)
		}
		return rv.Interface(), nil
	}
}

// normalize turns the []byte values some drivers return for text and
// numeric columns into strings.
func normalize(raw any) any {
	if b, ok := raw.([]byte); ok {
		return string(b)
	}
	return raw
}

func toUUID(raw any) (any, error) {
	switch v := raw.(type) {
	case uuid.UUID:
		return v, nil
	case string:
		return uuid.Parse(v)
	case []byte:
		if len(v) == 16 {
			return uuid.FromBytes(v)
		}
		return uuid.ParseBytes(v)
	case [16]byte:
		return uuid.UUID(v), nil
	}
	return nil, fmt.Errorf("cannot convert %T to uuid", raw)
}

func toBytes(raw any) (any, error) {
	switch v := raw.(type) {
	case []byte:
		return append([]byte(nil), v...), nil
	case string:
		return []byte(v), nil
	}
	return nil, fmt.Errorf("cannot convert %T to []byte", raw)
}

// sqlLiteral renders a default value for a column definition. Values without
// a portable literal form yield nil.
func sqlLiteral(v any) *string {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	var s string
	switch rv.Kind() {
	case reflect.String:
		s = "'" + strings.ReplaceAll(rv.String(), "'", "''") + "'"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		s = strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		s = strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		s = strconv.FormatFloat(rv.Float(), 'g', -1, 64)
	default:
		return nil
	}
	return &s
}
