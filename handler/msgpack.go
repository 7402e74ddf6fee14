package handler

import "github.com/vmihailenco/msgpack/v5"

// MsgpackHandler serializes values using vmihailenco/msgpack/v5. It backs the
// "serialized" default for every non-string value.
//
// Msgpack is compact and fast; be mindful of struct tag differences vs JSON.
// Use `msgpack:"fieldName"` tags if you need explicit control.
type MsgpackHandler struct{}

func (MsgpackHandler) Encode(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (MsgpackHandler) Decode(b []byte, out any) error {
	if err := checkOut(out); err != nil {
		return err
	}
	return msgpack.Unmarshal(b, out)
}
