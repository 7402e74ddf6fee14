// Package wire frames a backend.Record into a single byte blob so that blob stores
// (file, Redis, Ristretto, BigCache, sturdyc) persist metadata and contents in one write.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/unkn0wn-root/entrycache/backend"
)

const version byte = 1

// maxContents is the largest payload vlen can describe.
var maxContents uint64 = math.MaxUint32

var (
	ErrCorrupt = errors.New("entrycache: corrupt entry")
	magic4     = [...]byte{'E', 'N', 'T', 'C'}
)

// Record layout (big endian):
//
//	magic(4) | ver(1) | created(i64 unix nano, 0 = unset) | expires(i64 unix nano, 0 = never)
//	idLen(u16) | id | handlerLen(u16) | handler
//	nDeps(u16) | (depLen(u16) | dep) * nDeps
//	vlen(u32) | payload(vlen)
const header = 4 + 1 + 8 + 8

func Encode(rec backend.Record) ([]byte, error) {
	if len(rec.Identifier) == 0 || len(rec.Identifier) > 0xFFFF {
		return nil, errors.New("entrycache: invalid identifier length")
	}
	if len(rec.Handler) > 0xFFFF || len(rec.Dependencies) > 0xFFFF {
		return nil, errors.New("entrycache: metadata too large")
	}

	if uint64(len(rec.Contents)) > maxContents {
		return nil, fmt.Errorf("entrycache: contents too large: %d bytes", len(rec.Contents))
	}

	total := header + 2 + len(rec.Identifier) + 2 + len(rec.Handler) + 2 + 4 + len(rec.Contents)
	for _, d := range rec.Dependencies {
		if len(d) > 0xFFFF {
			return nil, errors.New("entrycache: dependency identifier too long")
		}
		total += 2 + len(d)
	}

	var buf bytes.Buffer
	buf.Grow(total)
	buf.Write(magic4[:])
	buf.WriteByte(version)

	var u8 [8]byte
	var u4 [4]byte
	var u2 [2]byte

	binary.BigEndian.PutUint64(u8[:], uint64(unixNano(rec.CreatedAt)))
	buf.Write(u8[:])
	binary.BigEndian.PutUint64(u8[:], uint64(unixNano(rec.ExpiresAt)))
	buf.Write(u8[:])

	writeStr := func(s string) {
		binary.BigEndian.PutUint16(u2[:], uint16(len(s)))
		buf.Write(u2[:])
		buf.WriteString(s)
	}
	writeStr(rec.Identifier)
	writeStr(rec.Handler)

	binary.BigEndian.PutUint16(u2[:], uint16(len(rec.Dependencies)))
	buf.Write(u2[:])
	for _, d := range rec.Dependencies {
		writeStr(d)
	}

	binary.BigEndian.PutUint32(u4[:], uint32(len(rec.Contents)))
	buf.Write(u4[:])
	buf.Write(rec.Contents)
	return buf.Bytes(), nil
}

// Decode parses a blob produced by Encode. The returned Contents aliases b.
func Decode(b []byte) (backend.Record, error) {
	var rec backend.Record
	if len(b) < header || !bytes.Equal(b[:4], magic4[:]) || b[4] != version {
		return rec, ErrCorrupt
	}
	off := 5
	rec.CreatedAt = fromUnixNano(int64(binary.BigEndian.Uint64(b[off : off+8])))
	off += 8
	rec.ExpiresAt = fromUnixNano(int64(binary.BigEndian.Uint64(b[off : off+8])))
	off += 8

	readStr := func() (string, bool) {
		if off+2 > len(b) {
			return "", false
		}
		l := int(binary.BigEndian.Uint16(b[off : off+2]))
		off += 2
		if l > len(b)-off {
			return "", false
		}
		s := string(b[off : off+l])
		off += l
		return s, true
	}

	var ok bool
	if rec.Identifier, ok = readStr(); !ok || rec.Identifier == "" {
		return backend.Record{}, ErrCorrupt
	}
	if rec.Handler, ok = readStr(); !ok {
		return backend.Record{}, ErrCorrupt
	}

	if off+2 > len(b) {
		return backend.Record{}, ErrCorrupt
	}
	n := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2
	if n > 0 {
		rec.Dependencies = make([]string, 0, n)
	}
	for i := 0; i < n; i++ {
		d, ok := readStr()
		if !ok {
			return backend.Record{}, ErrCorrupt
		}
		rec.Dependencies = append(rec.Dependencies, d)
	}

	if off+4 > len(b) {
		return backend.Record{}, ErrCorrupt
	}
	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen != len(b)-off { // exact: trailing bytes are corruption too
		return backend.Record{}, ErrCorrupt
	}
	rec.Contents = b[off : off+vlen]
	return rec, nil
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
