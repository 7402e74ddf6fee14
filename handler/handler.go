// Package handler converts in-memory values to and from the storage-safe []byte form
// that backends persist. Handlers are stateless and resolved by name through a Registry.
package handler

import (
	"errors"
	"fmt"
	"reflect"
)

// Built-in handler names.
const (
	String     = "string"
	Serialized = "serialized"
	JSONName   = "json"
	Msgpack    = "msgpack"
	CBORName   = "cbor"
	Protobuf   = "protobuf"
)

// ErrUnsupported is returned when a handler cannot represent a value or decode into a target.
var ErrUnsupported = errors.New("handler: unsupported value")

// Handler encodes values to bytes and decodes bytes into out, which must be a non-nil pointer.
type Handler interface {
	Encode(v any) ([]byte, error)
	Decode(b []byte, out any) error
}

// Category returns the value category used to pick a default handler:
// the lower-case reflect.Kind of v after following pointers ("string", "map", "struct", ...).
func Category(v any) string {
	rv := reflect.ValueOf(v)
	for rv.IsValid() && (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return "nil"
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return "nil"
	}
	return rv.Kind().String()
}

func checkOut(out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("%w: decode target must be a non-nil pointer, got %T", ErrUnsupported, out)
	}
	return nil
}
