// Package logrus adapts a *logrus.Entry to entrycache.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/entrycache"
)

var _ entrycache.Logger = Logger{}

// Logger forwards entries to E. An "err" field holding an error is attached with WithError.
type Logger struct{ E *logrus.Entry }

func New(l *logrus.Logger) Logger {
	return Logger{E: l.WithField("component", "entrycache")}
}

func (l Logger) Debug(msg string, f entrycache.Fields) { l.with(f).Debug(msg) }
func (l Logger) Info(msg string, f entrycache.Fields)  { l.with(f).Info(msg) }
func (l Logger) Warn(msg string, f entrycache.Fields)  { l.with(f).Warn(msg) }
func (l Logger) Error(msg string, f entrycache.Fields) { l.with(f).Error(msg) }

func (l Logger) with(f entrycache.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	fields := make(logrus.Fields, len(f))
	var err error
	for k, v := range f {
		if e, ok := v.(error); ok && k == "err" {
			err = e
			continue
		}
		fields[k] = v
	}
	entry := l.E.WithFields(fields)
	if err != nil {
		entry = entry.WithError(err)
	}
	return entry
}
