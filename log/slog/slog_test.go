package slog

import (
	"bytes"
	stdslog "log/slog"
	"strings"
	"testing"

	"github.com/unkn0wn-root/entrycache"
)

func TestLoggerWritesSortedGroupedAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := stdslog.NewTextHandler(&buf, &stdslog.HandlerOptions{Level: stdslog.LevelDebug})
	l := New(stdslog.New(h))

	l.Info("section flushed", entrycache.Fields{"section": "user", "backend": "file"})

	out := buf.String()
	if !strings.Contains(out, "msg=\"section flushed\"") {
		t.Fatalf("missing message: %s", out)
	}
	b := strings.Index(out, "entrycache.backend=file")
	s := strings.Index(out, "entrycache.section=user")
	if b < 0 || s < 0 || b > s {
		t.Fatalf("attrs missing or unsorted: %s", out)
	}
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	h := stdslog.NewTextHandler(&buf, &stdslog.HandlerOptions{Level: stdslog.LevelWarn})
	l := New(stdslog.New(h))
	l.Debug("hidden", nil)
	if buf.Len() != 0 {
		t.Fatalf("debug must be filtered: %s", buf.String())
	}
}
