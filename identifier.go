package entrycache

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/unkn0wn-root/entrycache/internal/keyser"
)

// Canonicalize maps an identifying value to a stable string key.
//
// Strings and integers convert directly. Any other value (bools, floats, slices, maps,
// structs) is serialized deterministically and hashed, so structurally equal values share
// a key. nil, nil pointers/maps/slices and "" are rejected with ErrInvalidIdentifier;
// false and 0 are valid identifiers.
func Canonicalize(v any) (string, error) {
	rv := reflect.ValueOf(v)
	for rv.IsValid() && (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return "", ErrInvalidIdentifier
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return "", ErrInvalidIdentifier
	}

	switch rv.Kind() {
	case reflect.String:
		s := rv.String()
		if s == "" {
			return "", ErrInvalidIdentifier
		}
		return s, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if rv.IsNil() {
			return "", ErrInvalidIdentifier
		}
	}
	return fmt.Sprintf("%016x", xxhash.Sum64String(keyser.Serialize(rv.Interface()))), nil
}

// MustCanonicalize is like Canonicalize but panics on error.
// Handy for package-level identifiers.
func MustCanonicalize(v any) string {
	s, err := Canonicalize(v)
	if err != nil {
		panic(err)
	}
	return s
}

func canonicalizeAll(ids []any) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		s, err := Canonicalize(id)
		if err != nil {
			return nil, fmt.Errorf("dependency %d: %w", i, err)
		}
		out[i] = s
	}
	return out, nil
}
