// Package api defines the data model and wire types shared by the
// feynmind packages: identities, documents, authentication payloads
// and the error taxonomy rendered at the HTTP boundary.
//
// The package performs no I/O. Error values ([APIError]) carry a stable
// machine-readable [ErrorType] next to the human-readable message, and
// are serialized as {"error": message, "type": kind}.
package api
