package sloghooks

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func newBuffered(opts Options) (*Hooks, *bytes.Buffer) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return New(l, opts), &buf
}

func TestRedactsIdentifiers(t *testing.T) {
	h, buf := newBuffered(Options{})
	h.EntryExpired("user.secret", "ttl")
	out := buf.String()
	if strings.Contains(out, "user.secret") {
		t.Fatalf("identifier leaked: %s", out)
	}
	if !strings.Contains(out, "reason=ttl") {
		t.Fatalf("missing reason: %s", out)
	}
}

func TestCustomRedactAndFailure(t *testing.T) {
	h, buf := newBuffered(Options{Redact: func(s string) string { return "<" + s + ">" }})
	h.BackendFailure("read", "k", errors.New("boom"))
	out := buf.String()
	if !strings.Contains(out, "identifier=<k>") || !strings.Contains(out, "err=boom") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestSampling(t *testing.T) {
	h, buf := newBuffered(Options{ComputeEvery: 3})
	for i := 0; i < 9; i++ {
		h.ComputeOnMiss("k")
	}
	if n := strings.Count(buf.String(), "compute_on_miss"); n != 3 {
		t.Fatalf("expected 3 sampled lines, got %d", n)
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	h := New(nil, Options{})
	h.EntryExpired("k", "ttl")
	h.ComputeOnMiss("k")
	h.BackendFailure("write", "k", errors.New("x"))
}
