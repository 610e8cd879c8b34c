package discordb

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The cache calls them on hot paths.
type Hooks interface {
	// A cache read finished. ns is "record" or "container".
	Lookup(ns string, hit bool)

	// An entry was deleted by the cache on read.
	// reason ∈ {"corrupt", "gen_mismatch", "value_decode"}
	SelfHeal(storageKey, reason string)

	// Provider, generation store or codec failed and the cache degraded.
	// op ∈ {"get", "set", "delete", "snapshot", "bump", "encode"}
	CacheError(op, storageKey string, err error)

	// Provider returned ok=false on Set (backpressure/eviction).
	ProviderSetRejected(storageKey string)

	// Both gen bump and delete failed (likely backend outage).
	InvalidateOutage(storageKey string, bumpErr, delErr error)

	// A discord call failed. status is 0 when no response was received.
	RemoteFailure(op string, status, code int)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) Lookup(string, bool)                   {}
func (NopHooks) SelfHeal(string, string)               {}
func (NopHooks) CacheError(string, string, error)      {}
func (NopHooks) ProviderSetRejected(string)            {}
func (NopHooks) InvalidateOutage(string, error, error) {}
func (NopHooks) RemoteFailure(string, int, int)        {}
