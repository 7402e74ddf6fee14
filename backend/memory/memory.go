// Package memory is an in-process backend. Records are copied on the way in and out,
// so callers never share slices with the store.
package memory

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/unkn0wn-root/entrycache/backend"
)

type Memory struct {
	m *xsync.MapOf[string, backend.Record]
}

var (
	_ backend.Backend     = (*Memory)(nil)
	_ backend.BatchReader = (*Memory)(nil)
)

func New() *Memory {
	return &Memory{m: xsync.NewMapOf[string, backend.Record]()}
}

func (p *Memory) Write(_ context.Context, rec backend.Record) error {
	p.m.Store(rec.Identifier, clone(rec))
	return nil
}

func (p *Memory) Read(_ context.Context, identifier string) (backend.Record, bool, error) {
	rec, ok := p.m.Load(identifier)
	if !ok {
		return backend.Record{}, false, nil
	}
	return clone(rec), true, nil
}

func (p *Memory) ReadMany(_ context.Context, identifiers []string) (map[string]backend.Record, error) {
	out := make(map[string]backend.Record, len(identifiers))
	for _, id := range identifiers {
		if rec, ok := p.m.Load(id); ok {
			out[id] = clone(rec)
		}
	}
	return out, nil
}

func (p *Memory) Remove(_ context.Context, identifier string) error {
	p.m.Delete(identifier)
	return nil
}

func (p *Memory) RemoveAll(_ context.Context, section string) error {
	if section == "" {
		p.m.Clear()
		return nil
	}
	p.m.Range(func(id string, _ backend.Record) bool {
		if backend.InSection(id, section) {
			p.m.Delete(id)
		}
		return true
	})
	return nil
}

// Len returns the number of stored records, expired ones included.
func (p *Memory) Len() int { return p.m.Size() }

func (p *Memory) Close(_ context.Context) error { return nil }

func clone(rec backend.Record) backend.Record {
	rec.Contents = append([]byte(nil), rec.Contents...)
	if rec.Dependencies != nil {
		rec.Dependencies = append([]string(nil), rec.Dependencies...)
	}
	return rec
}
