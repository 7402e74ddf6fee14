package entrycache

import (
	"errors"
	"testing"
)

type key struct {
	Kind string
	IDs  []int
}

func TestCanonicalizeScalars(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{"user.1", "user.1"},
		{42, "42"},
		{int64(-7), "-7"},
		{uint8(3), "3"},
		{0, "0"},
	}
	for _, tc := range cases {
		got, err := Canonicalize(tc.in)
		if err != nil || got != tc.want {
			t.Fatalf("Canonicalize(%#v) = %q %v, want %q", tc.in, got, err, tc.want)
		}
	}
	s := "ptr"
	if got, _ := Canonicalize(&s); got != "ptr" {
		t.Fatalf("pointers must be followed, got %q", got)
	}
}

func TestCanonicalizeRejectsEmpty(t *testing.T) {
	var np *int
	var nm map[string]int
	var ns []string
	for _, v := range []any{nil, "", np, nm, ns} {
		if _, err := Canonicalize(v); !errors.Is(err, ErrInvalidIdentifier) {
			t.Fatalf("Canonicalize(%#v): expected ErrInvalidIdentifier, got %v", v, err)
		}
	}
}

func TestCanonicalizeComplexValues(t *testing.T) {
	f, err := Canonicalize(false)
	if err != nil || len(f) != 16 {
		t.Fatalf("false must be a valid identifier: %q %v", f, err)
	}
	tr, _ := Canonicalize(true)
	if f == tr {
		t.Fatalf("true and false must differ")
	}

	a := map[string]any{"b": 2, "a": []int{1}}
	b := map[string]any{"a": []int{1}, "b": 2}
	if MustCanonicalize(a) != MustCanonicalize(b) {
		t.Fatalf("structurally equal maps must share a key")
	}
	if MustCanonicalize(key{"x", []int{1, 2}}) != MustCanonicalize(&key{"x", []int{1, 2}}) {
		t.Fatalf("structurally equal structs must share a key")
	}
	if MustCanonicalize([]int{1, 2}) == MustCanonicalize([]int{2, 1}) {
		t.Fatalf("order matters for slices")
	}
	if MustCanonicalize([]any{1}) == MustCanonicalize([]any{"1"}) {
		t.Fatalf("element types must not collide")
	}
}

func TestMustCanonicalizePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	MustCanonicalize("")
}
