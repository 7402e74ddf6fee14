package entrycache

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestParseMinutes(t *testing.T) {
	cases := []struct {
		in   any
		want float64
	}{
		{5, 5},
		{int64(2), 2},
		{uint16(1), 1},
		{float32(0.5), 0.5},
		{1.25, 1.25},
		{" 3 ", 3},
		{"-1", -1},
		{90 * time.Second, 1.5},
	}
	for _, tc := range cases {
		got, err := parseMinutes(tc.in)
		if err != nil || got != tc.want {
			t.Fatalf("parseMinutes(%#v) = %v %v, want %v", tc.in, got, err, tc.want)
		}
	}
	for _, bad := range []any{"soon", "", true, []int{1}, math.NaN(), math.Inf(1), "NaN"} {
		if _, err := parseMinutes(bad); !errors.Is(err, ErrInvalidExpiration) {
			t.Fatalf("parseMinutes(%#v): expected ErrInvalidExpiration, got %v", bad, err)
		}
	}
}

func TestMinutesToDuration(t *testing.T) {
	if d := minutesToDuration(1.5); d != 90*time.Second {
		t.Fatalf("minutesToDuration(1.5) = %v", d)
	}
}
