// Package cache implements the two-tier resource cache that backs the fetch
// coordinator. The Live Tier maps keys to reclaimable entries; when an entry is
// reclaimed its file path survives in the bounded Revival Tier so the next
// request can resurrect it without re-deriving anything. The package also owns
// the disk layout (one <digest>.urlmedia file per key under StoragePath), the
// freshness policy applied to every hit, and the once-per-lifetime sweep of
// expired cache artifacts.
//
// Nothing in the tiered cache is safe for concurrent use: it is owned by the
// coordinator goroutine. Entry reference counts are the exception, consumers
// release entries from their own goroutines.
package cache
