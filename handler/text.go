package handler

import (
	"fmt"
	"reflect"
)

// Text is the pass-through handler for strings and byte slices. By convention it assumes
// UTF-8 and performs no validation. Named string types are accepted in both directions.
type Text struct{}

func (Text) Encode(v any) ([]byte, error) {
	switch s := v.(type) {
	case string:
		return []byte(s), nil
	case *string:
		if s == nil {
			return nil, fmt.Errorf("%w: nil *string", ErrUnsupported)
		}
		return []byte(*s), nil
	case []byte:
		return append([]byte(nil), s...), nil
	}
	rv := reflect.ValueOf(v)
	for rv.IsValid() && rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, fmt.Errorf("%w: nil %T", ErrUnsupported, v)
		}
		rv = rv.Elem()
	}
	if rv.IsValid() && rv.Kind() == reflect.String {
		return []byte(rv.String()), nil
	}
	return nil, fmt.Errorf("%w: text handler cannot encode %T", ErrUnsupported, v)
}

func (Text) Decode(b []byte, out any) error {
	switch p := out.(type) {
	case *string:
		*p = string(b)
		return nil
	case *[]byte:
		*p = append([]byte(nil), b...)
		return nil
	case *any:
		*p = string(b)
		return nil
	}
	if err := checkOut(out); err != nil {
		return err
	}
	if el := reflect.ValueOf(out).Elem(); el.Kind() == reflect.String {
		el.SetString(string(b))
		return nil
	}
	return fmt.Errorf("%w: text handler cannot decode into %T", ErrUnsupported, out)
}
