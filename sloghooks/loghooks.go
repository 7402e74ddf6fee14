// Package sloghooks is an entrycache.Hooks implementation that writes events to slog.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/entrycache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	ExpiredEvery uint64
	ComputeEvery uint64
	// Optional identifier redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	expiredCtr atomic.Uint64
	computeCtr atomic.Uint64
}

var _ entrycache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) EntryExpired(identifier, reason string) {
	if h.l == nil || !sample(h.opts.ExpiredEvery, &h.expiredCtr) {
		return
	}
	h.l.Debug("entrycache.entry_expired",
		"identifier", h.redact(identifier),
		"reason", reason)
}

func (h *Hooks) ComputeOnMiss(identifier string) {
	if h.l == nil || !sample(h.opts.ComputeEvery, &h.computeCtr) {
		return
	}
	h.l.Debug("entrycache.compute_on_miss",
		"identifier", h.redact(identifier))
}

func (h *Hooks) BackendFailure(op, identifier string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("entrycache.backend_failure",
		"op", op,
		"identifier", h.redact(identifier),
		"err", err)
}
