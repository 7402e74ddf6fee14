// Package keyser renders arbitrary Go values into a deterministic, type-tagged string.
// Structurally equal values produce identical output regardless of identity:
// map keys are sorted, struct fields follow declaration order and pointers are followed.
package keyser

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

// maxDepth bounds recursion on self-referencing values.
const maxDepth = 32

// Serialize returns the stable representation of v.
func Serialize(v any) string {
	var b strings.Builder
	write(&b, reflect.ValueOf(v), 0)
	return b.String()
}

func write(b *strings.Builder, rv reflect.Value, depth int) {
	if depth > maxDepth {
		b.WriteString("cycle")
		return
	}
	if !rv.IsValid() {
		b.WriteString("nil")
		return
	}

	// time.Time carries a monotonic reading and a location pointer; use the instant only.
	if t, ok := asTime(rv); ok {
		b.WriteString("t:")
		b.WriteString(t.UTC().Format(time.RFC3339Nano))
		return
	}

	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			b.WriteString("nil")
			return
		}
		write(b, rv.Elem(), depth+1)
	case reflect.String:
		b.WriteString("s:")
		b.WriteString(strconv.Quote(rv.String()))
	case reflect.Bool:
		b.WriteString("b:")
		b.WriteString(strconv.FormatBool(rv.Bool()))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		b.WriteString("i:")
		b.WriteString(strconv.FormatInt(rv.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		b.WriteString("i:")
		b.WriteString(strconv.FormatUint(rv.Uint(), 10))
	case reflect.Float32, reflect.Float64:
		b.WriteString("f:")
		b.WriteString(strconv.FormatFloat(rv.Float(), 'g', -1, 64))
	case reflect.Complex64, reflect.Complex128:
		b.WriteString("c:")
		b.WriteString(strconv.FormatComplex(rv.Complex(), 'g', -1, 128))
	case reflect.Slice:
		if rv.IsNil() {
			b.WriteString("nil")
			return
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			b.WriteString("x:")
			b.WriteString(strconv.Quote(string(rv.Bytes())))
			return
		}
		writeList(b, rv, depth)
	case reflect.Array:
		writeList(b, rv, depth)
	case reflect.Map:
		if rv.IsNil() {
			b.WriteString("nil")
			return
		}
		writeMap(b, rv, depth)
	case reflect.Struct:
		writeStruct(b, rv, depth)
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		// identity is all these kinds have
		fmt.Fprintf(b, "%s:%#x", rv.Kind(), rv.Pointer())
	default:
		writeJSON(b, rv)
	}
}

func writeList(b *strings.Builder, rv reflect.Value, depth int) {
	n := rv.Len()
	b.WriteString("[")
	b.WriteString(strconv.Itoa(n))
	b.WriteString("]{")
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		write(b, rv.Index(i), depth+1)
	}
	b.WriteByte('}')
}

func writeMap(b *strings.Builder, rv reflect.Value, depth int) {
	type pair struct{ k, v string }
	pairs := make([]pair, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		var kb, vb strings.Builder
		write(&kb, iter.Key(), depth+1)
		write(&vb, iter.Value(), depth+1)
		pairs = append(pairs, pair{kb.String(), vb.String()})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].k < pairs[j].k })

	b.WriteString("map[")
	b.WriteString(strconv.Itoa(len(pairs)))
	b.WriteString("]{")
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(p.k)
		b.WriteByte('=')
		b.WriteString(p.v)
	}
	b.WriteByte('}')
}

func writeStruct(b *strings.Builder, rv reflect.Value, depth int) {
	rt := rv.Type()
	b.WriteString(rt.String())
	b.WriteByte('{')
	first := true
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		if !first {
			b.WriteByte(',')
		}
		first = false
		b.WriteString(f.Name)
		b.WriteByte(':')
		write(b, rv.Field(i), depth+1)
	}
	b.WriteByte('}')
}

func writeJSON(b *strings.Builder, rv reflect.Value) {
	if !rv.CanInterface() {
		b.WriteString(rv.Type().String())
		return
	}
	data, err := json.Marshal(rv.Interface())
	if err != nil {
		b.WriteString("fallback:")
		b.WriteString(rv.Type().String())
		return
	}
	b.WriteString("json:")
	b.Write(data)
}

func asTime(rv reflect.Value) (time.Time, bool) {
	if rv.Kind() != reflect.Struct || !rv.CanInterface() {
		return time.Time{}, false
	}
	t, ok := rv.Interface().(time.Time)
	return t, ok
}
