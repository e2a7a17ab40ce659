// Package transport holds the HTTP plumbing shared by every route: the
// middleware type and chain, panic recovery, request IDs, access logging,
// and the mapping from API error types to HTTP status codes.
//
// # Middleware
//
// A Middleware wraps an http.Handler. Chain(a, b, c) yields a(b(c(h))), so
// the first middleware is outermost. The server assembles
//
//	Recovery -> RequestID -> Logging -> Metrics -> CORS -> Gate -> Policy -> mux
//
// Request IDs are taken from the X-Request-ID header when present and
// echoed back on the response.
package transport
