// Package sloghooks reports discordb hook events through log/slog.
// Storage keys are redacted (record ids can be sensitive) and the noisy
// events can be sampled.
package sloghooks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/discordb"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	SelfHealEvery   uint64
	CacheErrorEvery uint64
	// LogLookups logs every cache hit and miss at debug level.
	LogLookups bool
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	selfHealCtr   atomic.Uint64
	cacheErrorCtr atomic.Uint64
}

var _ discordb.Hooks = (*Hooks)(nil)

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

func (h *Hooks) Lookup(ns string, hit bool) {
	if h.l == nil || !h.opts.LogLookups {
		return
	}
	h.l.Debug("discordb.cache_lookup", "ns", ns, "hit", hit)
}

func (h *Hooks) SelfHeal(storageKey, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("discordb.self_heal",
		"key", h.redact(storageKey),
		"reason", reason)
}

func (h *Hooks) CacheError(op, storageKey string, err error) {
	if h.l == nil || !sample(h.opts.CacheErrorEvery, &h.cacheErrorCtr) {
		return
	}
	h.l.Warn("discordb.cache_error",
		"op", op,
		"key", h.redact(storageKey),
		"err", err)
}

func (h *Hooks) ProviderSetRejected(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Warn("discordb.provider_set_rejected",
		"key", h.redact(storageKey))
}

func (h *Hooks) InvalidateOutage(key string, bumpErr, delErr error) {
	if h.l == nil {
		return
	}
	h.l.Error("discordb.invalidate_outage",
		"key", h.redact(key),
		"bump_err", bumpErr,
		"del_err", delErr)
}

func (h *Hooks) RemoteFailure(op string, status, code int) {
	if h.l == nil {
		return
	}
	level := slog.LevelWarn
	if status == 0 || status >= 500 {
		level = slog.LevelError
	}
	h.l.Log(context.Background(), level, "discordb.remote_failure",
		"op", op,
		"status", status,
		"code", code)
}
