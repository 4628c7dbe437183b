// Package coordinator implements the fetch coordinator: a single goroutine
// that owns the tiered cache, the pending-fetch table and the consumer binding
// table. Every public method is marshalled onto that goroutine; byte transfer
// runs on a bounded worker pool and completions are funnelled back through one
// channel before any shared state is touched.
//
// Guarantees: at most one in-flight fetch per key; requests that arrive while a
// fetch is running are queued behind it in arrival order; a completion is only
// delivered to consumers whose current binding still names the fetched key.
// Rebinding a consumer never aborts the fetch it was waiting for.
//
// The coordinator goroutine performs no byte transfer, but it does issue
// metadata-only stat calls: a cache hit is answered synchronously, so the
// freshness check of the backing file and the existing-file lookup run inline.
// Storage directories should therefore live on local disk.
package coordinator
