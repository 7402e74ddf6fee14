package ristretto

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/entrycache/backend"
	"github.com/unkn0wn-root/entrycache/backend/backendtest"
)

func newTest(t *testing.T, cfg Config) *Ristretto {
	t.Helper()
	cfg.NumCounters, cfg.MaxCost, cfg.BufferItems = 1e4, 1<<20, 64
	p, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(context.Background()) })
	return p
}

func TestConformance(t *testing.T) {
	backendtest.TestBackend(t, newTest(t, Config{}), backendtest.Config{Sections: false})
}

func TestGraceExpiresNatively(t *testing.T) {
	now := time.Now()
	p := newTest(t, Config{Grace: 200 * time.Millisecond, Now: func() time.Time { return now }})
	ctx := context.Background()
	require.NoError(t, p.Write(ctx, backend.Record{Identifier: "k", CreatedAt: now, ExpiresAt: now.Add(-time.Hour)}))

	_, ok, err := p.Read(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok, "grace keeps the record readable right after write")

	require.Eventually(t, func() bool {
		_, ok, _ := p.Read(ctx, "k")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestInvalidConfig(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
	_, err = New(Config{NumCounters: 10, MaxCost: 10, BufferItems: 64, Grace: -1})
	require.Error(t, err)
}

func TestMetrics(t *testing.T) {
	p := newTest(t, Config{Metrics: true})
	require.NotNil(t, p.Metrics())
}
