// Package server hosts the Fiber HTTP service, the request middleware chain,
// and the shared upstream HTTP client. It bootstraps Fiber with recover and
// request-ID middlewares and mounts a MediaHandler under /media; other packages
// (proxy, routes) plug into it through narrow interfaces so the coordinator
// stays the only owner of cache state. Keep exports narrow and accept explicit
// dependencies.
package server
