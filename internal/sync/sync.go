// Package sync keeps per-scope record caches consistent under optimistic
// local mutation and asynchronous push events.
//
// Each entity (notifications per user, feed per org) pairs a scope-keyed
// cache with three producers:
//
//   - a fetch layer that fills the cache from the store on a read miss,
//   - a mutation coordinator that patches the cache optimistically, issues
//     the remote call, rolls the patch back on failure and schedules a
//     delayed authoritative refetch on success,
//   - a subscription listener that applies incremental patches as push
//     events arrive.
//
// The coordinator's delayed reconcile and the listener's patches are
// independent asynchronous producers for the same cache entry, and no
// ordering is guaranteed between them: a late reconcile's full-list replace
// can overwrite a newer incremental patch. The settle delay makes this rare
// and the listener's no-op check for already-consistent state keeps it from
// flickering, but the race is accepted rather than resolved.
package sync

import "time"

// Defaults mirroring the behavior of the web client this engine replaces:
// a ~1s settle delay lets server-side side effects (notification fan-out,
// count triggers) land before the reconcile refetch, and idle cache entries
// are garbage-collected after five minutes.
const (
	DefaultSettleDelay  = time.Second
	DefaultCacheIdleTTL = 5 * time.Minute
	DefaultFetchLimit   = 50

	reconcileTimeout = 10 * time.Second
)

// Options tune a sync engine. Zero values fall back to the defaults above.
type Options struct {
	SettleDelay  time.Duration
	CacheIdleTTL time.Duration
	FetchLimit   int
}

func (o Options) withDefaults() Options {
	if o.SettleDelay <= 0 {
		o.SettleDelay = DefaultSettleDelay
	}
	if o.CacheIdleTTL <= 0 {
		o.CacheIdleTTL = DefaultCacheIdleTTL
	}
	if o.FetchLimit <= 0 {
		o.FetchLimit = DefaultFetchLimit
	}
	return o
}
