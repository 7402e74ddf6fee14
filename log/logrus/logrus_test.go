package logrus

import (
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/unkn0wn-root/entrycache"
)

func TestLoggerForwardsFields(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	base.SetOutput(io.Discard)
	l := New(base)

	l.Warn("lock release failed", entrycache.Fields{"identifier": "k", "err": errors.New("boom")})

	e := hook.LastEntry()
	if e == nil {
		t.Fatalf("no entry logged")
	}
	if e.Level != logrus.WarnLevel || e.Message != "lock release failed" {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if e.Data["identifier"] != "k" || e.Data["component"] != "entrycache" {
		t.Fatalf("fields not forwarded: %v", e.Data)
	}
	if err, ok := e.Data[logrus.ErrorKey].(error); !ok || err.Error() != "boom" {
		t.Fatalf("error not attached: %v", e.Data)
	}
}
