// Package fetcher defines the Downloader capability protocol consumed by the
// coordinator together with the built-in downloaders (HTTP, S3-compatible
// object store, billy-backed content store, local files) and the request
// header providers consulted by network downloaders.
//
// A Downloader only knows how to obtain bytes for a key. Coalescing, result
// distribution and persistence are owned by the coordinator.
package fetcher
