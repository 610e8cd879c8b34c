// Package discordb stores records as messages in discord channels and keeps an
// advisory cache in front of the discord API.
//
// Components:
//   - DB: create/read/update/delete over channels, with the cache rules below.
//   - Resolver: logical container name -> channel id, raw ids pass through.
//   - Cache[V]: Get/Set/Delete that never fail; backed by a provider.Provider
//     (bigcache, ristretto, redis) or NopCache for pass-through mode.
//   - Remote: the discord calls DB depends on; the default talks REST.
//
// Keys:
//
//	record:<message id>      - single records
//	container:<channel id>   - full channel listings
//
// Coherence:
//
//	reads    - Get/GetOne may return from cache; a miss fetches and populates
//	writes   - Create/Update/Upload store the fresh record and drop the listing
//	deletes  - Delete/DeleteByURL/DeleteAll drop the record(s) and the listing
//
// Cache writes only happen after discord confirmed the call. A failed or
// timed-out call leaves the cache as it was.
//
// Fills take the key's generation before asking discord and are dropped when
// a delete or update moved it meanwhile, so a read that overlapped a mutation
// is never served after the mutation returned.
package discordb
