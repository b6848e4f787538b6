package common

const (
	// AuthorizationHeaderName carries the bearer token on outbound requests.
	AuthorizationHeaderName = "Authorization"

	// BearerPrefix precedes the token in AuthorizationHeaderName.
	BearerPrefix = "Bearer "

	// ClientIDHeaderName carries the client-local evaluation identifier used by
	// the server as an idempotency/correlation token.
	ClientIDHeaderName = "X-Client-Id"
)
