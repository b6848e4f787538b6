// Package client talks to the inspection server over HTTP.
//
// # Overview
//
// Client is the transport-agnostic contract used by the sync engine, the
// reference cache, the backfill utility and the auth service. HTTPClient is
// the JSON-over-HTTP implementation; it reads the bearer token from a
// TokenSource before every call.
//
// # Error Handling
//
// Failures are classified into sentinel errors matched with errors.Is:
//
//   - ErrUnavailable: the server could not be reached or answered 5xx,
//     408 or 429. Worth retrying.
//   - ErrUnauthorized: 401. The token is missing or expired.
//   - ErrRejected: any other 4xx, 403 included. The payload will never be
//     accepted as is, and logging in again would not change that.
//
// A *StatusError carries the HTTP status and the server's message and
// unwraps to one of the above.
package client
