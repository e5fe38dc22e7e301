// Package cache keeps per-organization snapshots of retrieved source trees.
//
// The cache has two tiers:
//
//   - [Store] persists everything under a cache root directory (by default
//     ~/.orgcmp/cache/). It is the durable tier.
//   - [Manager] mirrors the store in memory so the first tree render after
//     start-up needs no remote call and no disk read per expansion.
//
// # Cache Structure
//
// Inside the cache root:
//
//	cache_index.json        index of cached orgs and when they were refreshed
//	cache_index.lock        flock file serializing index updates across processes
//	<orgID>_files.json      serialized []tree.Node for the org
//	<orgID>_metadata.json   Metadata for the org
//
// The index is the authoritative list of cached orgs:
//
//	{
//	  "entries": {
//	    "00D5g000004ABCD": {
//	      "orgId": "00D5g000004ABCD",
//	      "username": "dev@example.com",
//	      "alias": "dev",
//	      "lastRefreshed": "2026-10-19T09:12:44Z",
//	      "fileCount": 212
//	    }
//	  },
//	  "lastUpdated": "2026-10-19T09:12:44Z"
//	}
//
// # Write Ordering
//
// [Store.Write] writes the tree blob, then the metadata blob, then the index,
// each via temp file + rename. A crash part-way leaves at worst an orphaned
// blob that the index does not reference (see [Store.Orphans]); it never
// leaves an index entry whose data was not written.
//
// # Self-Healing
//
// A read that finds an index entry without a readable, decodable blob removes
// the entry and its blobs and reports [ErrNotFound]. A corrupt entry is
// therefore a cache miss exactly once instead of failing every later read.
//
// # Entry Lifecycle
//
// Entries are created by the first successful refresh of an org, replaced
// wholesale by every later refresh, and deleted when the org is removed or
// found stale by [Manager.CleanupStale].
package cache
