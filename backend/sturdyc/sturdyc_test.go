package sturdyc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/entrycache/backend"
	"github.com/unkn0wn-root/entrycache/backend/backendtest"
)

func TestConformance(t *testing.T) {
	s, err := New(DefaultConfig())
	require.NoError(t, err)
	backendtest.TestBackend(t, s, backendtest.Config{Sections: true})
}

func TestStoredBytesAreIndependent(t *testing.T) {
	ctx := context.Background()
	s, err := New(DefaultConfig())
	require.NoError(t, err)

	contents := []byte("abc")
	require.NoError(t, s.Write(ctx, backend.Record{Identifier: "k", Contents: contents}))
	contents[0] = 'X'
	rec, ok, err := s.Read(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "abc", string(rec.Contents))
	require.Equal(t, 1, s.Len())
}

func TestInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EvictionPercentage = 0
	_, err := New(cfg)
	require.Error(t, err)

	cfg = DefaultConfig()
	cfg.TTL = 0
	_, err = New(cfg)
	require.Error(t, err)
}
