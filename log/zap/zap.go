// Package zap adapts a *zap.Logger to entrycache.Logger.
package zap

import (
	"sort"

	"go.uber.org/zap"

	"github.com/unkn0wn-root/entrycache"
)

var _ entrycache.Logger = Logger{}

// Logger forwards entries to L. Field order is sorted so log lines are stable;
// error values are attached with zap.NamedError.
type Logger struct{ L *zap.Logger }

func New(l *zap.Logger) Logger { return Logger{L: l.Named("entrycache")} }

func (z Logger) Debug(msg string, f entrycache.Fields) { z.L.Debug(msg, fields(f)...) }
func (z Logger) Info(msg string, f entrycache.Fields)  { z.L.Info(msg, fields(f)...) }
func (z Logger) Warn(msg string, f entrycache.Fields)  { z.L.Warn(msg, fields(f)...) }
func (z Logger) Error(msg string, f entrycache.Fields) { z.L.Error(msg, fields(f)...) }

func fields(f entrycache.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(f))
	for _, k := range keys {
		switch v := f[k].(type) {
		case error:
			out = append(out, zap.NamedError(k, v))
		default:
			out = append(out, zap.Any(k, v))
		}
	}
	return out
}
