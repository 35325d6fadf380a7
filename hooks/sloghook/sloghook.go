package sloghook

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/mutcache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	StaleDropEvery uint64
	SelfHealEvery  uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	staleDropCtr atomic.Uint64
	selfHealCtr  atomic.Uint64
}

var _ mutcache.Hooks = (*Hooks)(nil)

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

func (h *Hooks) StaleWriteDropped(storageKey string, token, current uint64) {
	if h.l == nil || !sample(h.opts.StaleDropEvery, &h.staleDropCtr) {
		return
	}
	h.l.Debug("mutcache.stale_write_dropped",
		"key", h.redact(storageKey),
		"token", token,
		"current", current)
}

func (h *Hooks) SelfHeal(storageKey, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("mutcache.self_heal",
		"key", h.redact(storageKey),
		"reason", reason)
}

func (h *Hooks) StoreSetRejected(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Warn("mutcache.store_set_rejected",
		"key", h.redact(storageKey))
}

func (h *Hooks) RevalidateRequested(storageKey string, listeners int) {
	if h.l == nil {
		return
	}
	h.l.Debug("mutcache.revalidate_requested",
		"key", h.redact(storageKey),
		"listeners", listeners)
}

func (h *Hooks) TokenError(op, storageKey string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("mutcache.token_error",
		"op", op,
		"key", h.redact(storageKey),
		"err", err)
}

func (h *Hooks) ClearOutage(key string, bumpErr, delErr error) {
	if h.l == nil {
		return
	}
	h.l.Error("mutcache.clear_outage",
		"key", h.redact(key),
		"bump_err", bumpErr,
		"del_err", delErr)
}
