package handler

import "fmt"

// Limit wraps another handler to enforce a maximum payload size at Decode time.
// Encode is forwarded to Inner unchanged. If MaxDecode <= 0, size limiting is disabled.
//
// Typical use: protect against oversized inputs coming from a shared backend.
type Limit struct {
	Inner     Handler
	MaxDecode int
}

func (l Limit) Encode(v any) ([]byte, error) { return l.Inner.Encode(v) }
func (l Limit) Decode(b []byte, out any) error {
	if l.MaxDecode > 0 && len(b) > l.MaxDecode {
		return fmt.Errorf("payload too large: %d > %d", len(b), l.MaxDecode)
	}
	return l.Inner.Decode(b, out)
}
