package constants

const (
	// AuthorizationHeader carries the bearer token attached by transports.
	AuthorizationHeader = "Authorization"
	// RetryAfterHeader is the backend's rate-limit delay hint.
	RetryAfterHeader = "Retry-After"
	// ContentTypeHeader is the standard content type header.
	ContentTypeHeader = "Content-Type"
	// ContentEncodingHeader is the standard content encoding header.
	ContentEncodingHeader = "Content-Encoding"
	// ContentTypeJSON is the wire content type for ingest bodies.
	ContentTypeJSON = "application/json"
	// EncodingGzip marks gzip-compressed ingest bodies.
	EncodingGzip = "gzip"
)
