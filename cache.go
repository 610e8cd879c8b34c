package discordb

import (
	"context"
	"errors"
	"time"

	c "github.com/unkn0wn-root/discordb/codec"
	gen "github.com/unkn0wn-root/discordb/genstore"
	"github.com/unkn0wn-root/discordb/internal/wire"
	pr "github.com/unkn0wn-root/discordb/provider"
)

const (
	defaultTTL             = 10 * time.Minute
	defaultGenRetention    = 30 * 24 * time.Hour
	defaultCleanupInterval = time.Hour

	nsRecord    = "record"
	nsContainer = "container"
)

// SetCostFunc returns the cost passed to Provider.Set (ristretto admission).
type SetCostFunc func(storageKey string, framed []byte) int64

// Cache is the advisory key-value cache in front of discord.
// None of its methods report errors: a failing backend reads as a miss and
// rejected writes or deletes return false.
//
// Fills that race a Delete go through SnapshotGen and SetWithGen: take the
// generation before reading the source, write with it afterwards. A Delete in
// between moves the generation and the fill is dropped.
type Cache[V any] interface {
	Get(ctx context.Context, key string) (V, bool)
	Set(ctx context.Context, key string, value V) bool
	Delete(ctx context.Context, key string) bool

	// SnapshotGen returns the current generation of key. ok is false when
	// the generation store is unreachable; skip the fill then.
	SnapshotGen(ctx context.Context, key string) (g uint64, ok bool)
	// SetWithGen stores value only if key is still at observedGen.
	SetWithGen(ctx context.Context, key string, value V, observedGen uint64) bool
	// Replace bumps key, fencing every fill that observed an older
	// generation, and stores value under the new one. The write is skipped
	// when someone else bumped key after observedGen was taken.
	Replace(ctx context.Context, key string, value V, observedGen uint64) bool
}

// CacheOptions configure a provider-backed Cache.
// Namespace and Provider are required.
type CacheOptions[V any] struct {
	Namespace string // keys are stored as "<namespace>:<key>"
	Provider  pr.Provider
	Codec     c.Codec[V]   // nil => JSON
	GenStore  gen.GenStore // nil => in-process, without cleanup loop

	TTL            time.Duration // 0 => 10m
	ComputeSetCost SetCostFunc   // nil => framed size in bytes
	Logger         Logger        // nil => NopLogger
	Hooks          Hooks         // nil => NopHooks
}

type cache[V any] struct {
	ns       string
	provider pr.Provider
	codec    c.Codec[V]
	gen      gen.GenStore
	ttl      time.Duration
	cost     SetCostFunc
	log      Logger
	hooks    Hooks
}

// NewCache builds a Cache over a byte provider. Entries are framed with the
// generation they were written under; Delete bumps the generation so an
// entry the provider failed to remove is still never served.
//
// The provider and generation store are not closed by the cache.
func NewCache[V any](opts CacheOptions[V]) (Cache[V], error) {
	return newCache(opts)
}

func newCache[V any](opts CacheOptions[V]) (*cache[V], error) {
	if opts.Namespace == "" {
		return nil, &ConfigurationError{Field: "namespace", Reason: "is required"}
	}
	if opts.Provider == nil {
		return nil, &ConfigurationError{Field: "provider", Reason: "is required"}
	}

	cc := &cache[V]{
		ns:       opts.Namespace,
		provider: opts.Provider,
	}
	cc.codec = coalesce[c.Codec[V]](opts.Codec, c.JSON[V]{})
	cc.ttl = coalesce(opts.TTL, defaultTTL)
	cc.log = coalesce[Logger](opts.Logger, NopLogger{})
	cc.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})

	if opts.GenStore != nil {
		cc.gen = opts.GenStore
	} else {
		cc.gen = gen.NewLocalGenStore(0, 0)
	}
	if opts.ComputeSetCost != nil {
		cc.cost = opts.ComputeSetCost
	} else {
		cc.cost = func(_ string, framed []byte) int64 { return int64(len(framed)) }
	}
	return cc, nil
}

func (cc *cache[V]) Get(ctx context.Context, key string) (V, bool) {
	v, ok := cc.get(ctx, cc.storageKey(key))
	cc.hooks.Lookup(cc.ns, ok)
	return v, ok
}

func (cc *cache[V]) get(ctx context.Context, k string) (V, bool) {
	var zero V
	raw, ok, err := cc.provider.Get(ctx, k)
	if err != nil {
		cc.fail("get", k, err)
		return zero, false
	}
	if !ok {
		return zero, false
	}
	g, payload, err := wire.Decode(raw)
	if err != nil {
		cc.heal(ctx, k, "corrupt")
		return zero, false
	}
	cur, err := cc.gen.Snapshot(ctx, k)
	if err != nil {
		// cannot validate; treat as miss and leave the entry alone
		cc.fail("snapshot", k, err)
		return zero, false
	}
	if g != cur {
		cc.heal(ctx, k, "gen_mismatch")
		return zero, false
	}
	v, err := cc.codec.Decode(payload)
	if err != nil {
		cc.heal(ctx, k, "value_decode")
		return zero, false
	}
	return v, true
}

// Set stores value under the current generation.
func (cc *cache[V]) Set(ctx context.Context, key string, value V) bool {
	k := cc.storageKey(key)
	g, err := cc.gen.Snapshot(ctx, k)
	if err != nil {
		cc.fail("snapshot", k, err)
		return false
	}
	return cc.write(ctx, k, value, g)
}

func (cc *cache[V]) SnapshotGen(ctx context.Context, key string) (uint64, bool) {
	k := cc.storageKey(key)
	g, err := cc.gen.Snapshot(ctx, k)
	if err != nil {
		cc.fail("snapshot", k, err)
		return 0, false
	}
	return g, true
}

func (cc *cache[V]) SetWithGen(ctx context.Context, key string, value V, observedGen uint64) bool {
	k := cc.storageKey(key)
	cur, err := cc.gen.Snapshot(ctx, k)
	if err != nil {
		cc.fail("snapshot", k, err)
		return false
	}
	if cur != observedGen {
		// generation moved; skip stale write
		cc.log.Debug("cache fill skipped (gen moved)", Fields{"key": k, "obs": observedGen, "cur": cur})
		return false
	}
	return cc.write(ctx, k, value, observedGen)
}

func (cc *cache[V]) Replace(ctx context.Context, key string, value V, observedGen uint64) bool {
	k := cc.storageKey(key)
	newGen, err := cc.gen.Bump(ctx, k)
	if err != nil {
		// cannot fence older fills; drop the entry instead of writing
		cc.fail("bump", k, err)
		if derr := cc.provider.Del(ctx, k); derr != nil {
			cc.fail("delete", k, derr)
		}
		return false
	}
	if newGen != observedGen+1 {
		cc.log.Debug("cache replace skipped (concurrent bump)", Fields{"key": k, "obs": observedGen, "cur": newGen})
		return false
	}
	return cc.write(ctx, k, value, newGen)
}

// write frames value with g and stores it.
func (cc *cache[V]) write(ctx context.Context, k string, value V, g uint64) bool {
	payload, err := cc.codec.Encode(value)
	if err != nil {
		cc.fail("encode", k, err)
		return false
	}
	framed := wire.Encode(g, payload)
	ok, err := cc.provider.Set(ctx, k, framed, cc.cost(k, framed), cc.ttl)
	if err != nil {
		cc.fail("set", k, err)
		return false
	}
	if !ok {
		cc.log.Debug("cache set rejected by provider (pressure)", Fields{"key": k})
		cc.hooks.ProviderSetRejected(k)
		return false
	}
	return true
}

// Delete reports true when the old entry can no longer be served: either the
// generation moved or the provider removed it.
func (cc *cache[V]) Delete(ctx context.Context, key string) bool {
	k := cc.storageKey(key)
	newGen, bumpErr := cc.gen.Bump(ctx, k)
	delErr := cc.provider.Del(ctx, k)

	switch {
	case bumpErr != nil && delErr != nil:
		ierr := &InvalidateError{Key: k, BumpErr: bumpErr, DelErr: delErr}
		cc.log.Error("cache delete failed", Fields{"key": k, "err": ierr})
		cc.hooks.InvalidateOutage(k, bumpErr, delErr)
		return false
	case bumpErr != nil:
		cc.fail("bump", k, bumpErr)
	case delErr != nil:
		cc.fail("delete", k, delErr)
	}
	cc.log.Debug("cache entry invalidated", Fields{"key": k, "newGen": newGen})
	return true
}

func (cc *cache[V]) storageKey(key string) string {
	return cc.ns + ":" + key
}

func (cc *cache[V]) heal(ctx context.Context, k, reason string) {
	_ = cc.provider.Del(ctx, k)
	cc.log.Debug("cache entry dropped on read", Fields{"key": k, "reason": reason})
	cc.hooks.SelfHeal(k, reason)
}

func (cc *cache[V]) fail(op, k string, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		cc.log.Debug("cache "+op+" aborted", Fields{"key": k, "err": err})
	} else {
		cc.log.Warn("cache "+op+" failed", Fields{"key": k, "err": err})
	}
	cc.hooks.CacheError(op, k, err)
}

// NopCache is the pass-through variant: every Get misses and every Set or
// Delete reports false.
type NopCache[V any] struct{}

var _ Cache[Record] = NopCache[Record]{}

func (NopCache[V]) Get(context.Context, string) (V, bool) {
	var zero V
	return zero, false
}
func (NopCache[V]) Set(context.Context, string, V) bool                { return false }
func (NopCache[V]) Delete(context.Context, string) bool                { return false }
func (NopCache[V]) SnapshotGen(context.Context, string) (uint64, bool) { return 0, false }
func (NopCache[V]) SetWithGen(context.Context, string, V, uint64) bool { return false }
func (NopCache[V]) Replace(context.Context, string, V, uint64) bool    { return false }
