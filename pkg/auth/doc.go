// Package auth decides who is calling and whether they may proceed.
//
// A single Authenticator inspects each request and returns one of three
// decisions: Yes when it found an identity, No when the credentials it
// understands are invalid, Abstain when the request carries none.
//
// The request pipeline runs three stages from this package, outermost first:
//
//   - CORS answers preflights and refuses disallowed cross-origin requests.
//   - Gate runs the authenticator and attaches the identity (and the storage
//     owner) to the context. It never writes a response.
//   - Policy classifies the path as public or protected and answers 401 for
//     protected paths without an identity.
//
// LoginLimiter throttles login attempts per client address.
package auth
