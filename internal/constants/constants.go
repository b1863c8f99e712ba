// Package constants provides fixed values shared across the shipping
// pipeline: default timeouts, HTTP header names, and wire content types.
// Centralizing them here keeps the packages that speak to the backend
// consistent with each other.
package constants

import "time"

const (
	// DefaultTimeout is the default bound for flush waits and handler
	// emission.
	DefaultTimeout = 5 * time.Second
	// DialTimeout is the default bound for establishing a stream connection.
	DialTimeout = 10 * time.Second
)
