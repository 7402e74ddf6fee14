// Package backendtest is a conformance suite for backend.Backend implementations.
package backendtest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/entrycache/backend"
)

// Config describes optional behavior of the backend under test.
type Config struct {
	// Sections is true when RemoveAll honors non-empty sections.
	// When false, RemoveAll(ctx, "x") must return backend.ErrSectionUnsupported.
	Sections bool
	// Settle runs after writes for stores that apply them asynchronously (Ristretto).
	Settle func()
}

// TestBackend runs the full conformance suite against b. b must start empty.
func TestBackend(t *testing.T, b backend.Backend, cfg Config) {
	t.Run("WriteRead", func(t *testing.T) { testWriteRead(t, b, cfg) })
	t.Run("Overwrite", func(t *testing.T) { testOverwrite(t, b, cfg) })
	t.Run("Miss", func(t *testing.T) { testMiss(t, b) })
	t.Run("RemoveIdempotent", func(t *testing.T) { testRemove(t, b, cfg) })
	t.Run("BatchRead", func(t *testing.T) { testBatch(t, b, cfg) })
	t.Run("RemoveAllSection", func(t *testing.T) { testRemoveAllSection(t, b, cfg) })
	t.Run("RemoveAll", func(t *testing.T) { testRemoveAll(t, b, cfg) })
}

func settle(cfg Config) {
	if cfg.Settle != nil {
		cfg.Settle()
	}
}

func sample(id string) backend.Record {
	now := time.Unix(1_700_000_000, 500)
	return backend.Record{
		Identifier:   id,
		CreatedAt:    now,
		ExpiresAt:    now.Add(10 * time.Minute),
		Dependencies: []string{"dep.a", "dep.b"},
		Handler:      "serialized",
		Contents:     []byte{0x81, 0xa1, 'k', 0x01},
	}
}

func write(t *testing.T, b backend.Backend, cfg Config, recs ...backend.Record) {
	t.Helper()
	for _, r := range recs {
		require.NoError(t, b.Write(context.Background(), r))
	}
	settle(cfg)
}

func requireSame(t *testing.T, want, got backend.Record) {
	t.Helper()
	require.Equal(t, want.Identifier, got.Identifier)
	require.True(t, want.CreatedAt.Equal(got.CreatedAt), "created: want %v got %v", want.CreatedAt, got.CreatedAt)
	require.Equal(t, want.HasExpiry(), got.HasExpiry())
	if want.HasExpiry() {
		require.True(t, want.ExpiresAt.Equal(got.ExpiresAt), "expires: want %v got %v", want.ExpiresAt, got.ExpiresAt)
	}
	require.Equal(t, len(want.Dependencies), len(got.Dependencies))
	for i := range want.Dependencies {
		require.Equal(t, want.Dependencies[i], got.Dependencies[i])
	}
	require.Equal(t, want.Handler, got.Handler)
	require.Equal(t, string(want.Contents), string(got.Contents))
}

func testWriteRead(t *testing.T, b backend.Backend, cfg Config) {
	ctx := context.Background()
	want := sample("wr.one")
	write(t, b, cfg, want)

	got, ok, err := b.Read(ctx, want.Identifier)
	require.NoError(t, err)
	require.True(t, ok)
	requireSame(t, want, got)

	plain := backend.Record{Identifier: "wr.plain", CreatedAt: time.Unix(10, 0), Handler: "string", Contents: []byte("v")}
	write(t, b, cfg, plain)
	got, ok, err = b.Read(ctx, plain.Identifier)
	require.NoError(t, err)
	require.True(t, ok)
	requireSame(t, plain, got)
}

func testOverwrite(t *testing.T, b backend.Backend, cfg Config) {
	ctx := context.Background()
	first := sample("ow.key")
	second := sample("ow.key")
	second.Dependencies = nil
	second.ExpiresAt = time.Time{}
	second.Handler = "string"
	second.Contents = []byte("replaced")
	write(t, b, cfg, first, second)

	got, ok, err := b.Read(ctx, "ow.key")
	require.NoError(t, err)
	require.True(t, ok)
	requireSame(t, second, got)
}

func testMiss(t *testing.T, b backend.Backend) {
	got, ok, err := b.Read(context.Background(), "miss.none")
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, got.Identifier)
}

func testRemove(t *testing.T, b backend.Backend, cfg Config) {
	ctx := context.Background()
	write(t, b, cfg, sample("rm.key"))

	require.NoError(t, b.Remove(ctx, "rm.key"))
	settle(cfg)
	_, ok, err := b.Read(ctx, "rm.key")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, b.Remove(ctx, "rm.key"))
	require.NoError(t, b.Remove(ctx, "rm.never"))
}

func testBatch(t *testing.T, b backend.Backend, cfg Config) {
	br, ok := b.(backend.BatchReader)
	if !ok {
		t.Skip("backend does not implement BatchReader")
	}
	write(t, b, cfg, sample("batch.a"), sample("batch.b"))

	got, err := br.ReadMany(context.Background(), []string{"batch.a", "batch.b", "batch.missing"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	requireSame(t, sample("batch.a"), got["batch.a"])
	requireSame(t, sample("batch.b"), got["batch.b"])

	empty, err := br.ReadMany(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func testRemoveAllSection(t *testing.T, b backend.Backend, cfg Config) {
	ctx := context.Background()
	write(t, b, cfg, sample("sec.user"), sample("sec.user.1"), sample("sec.user.2.profile"), sample("sec.users.1"))

	err := b.RemoveAll(ctx, "sec.user")
	if !cfg.Sections {
		require.True(t, errors.Is(err, backend.ErrSectionUnsupported), "got %v", err)
		return
	}
	require.NoError(t, err)
	settle(cfg)

	for _, id := range []string{"sec.user", "sec.user.1", "sec.user.2.profile"} {
		_, ok, err := b.Read(ctx, id)
		require.NoError(t, err)
		require.False(t, ok, "%s must be removed", id)
	}
	_, ok, err := b.Read(ctx, "sec.users.1")
	require.NoError(t, err)
	require.True(t, ok, "sibling section must survive")
}

func testRemoveAll(t *testing.T, b backend.Backend, cfg Config) {
	ctx := context.Background()
	write(t, b, cfg, sample("all.a"), sample("all.b"))

	require.NoError(t, b.RemoveAll(ctx, ""))
	settle(cfg)
	for _, id := range []string{"all.a", "all.b", "wr.one", "sec.users.1"} {
		_, ok, err := b.Read(ctx, id)
		require.NoError(t, err)
		require.False(t, ok, "%s must be removed", id)
	}
}
