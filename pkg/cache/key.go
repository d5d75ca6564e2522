package cache

import (
	"strings"
)

// KeyPrefix namespaces every cache key written by this package.
const KeyPrefix = "spycheck:lookup"

// Key identifies one cached lookup.
type Key struct {
	// Endpoint is the lookup URL template, e.g. "https://api.spy.pet/servers/{id}"
	Endpoint string

	// ID is the identifier substituted into the template
	ID string
}

// String generates a deterministic cache key.
//
// Example:
//
//	spycheck:lookup:api.spy.pet/servers/{id}:1234567890
func (k Key) String() string {
	parts := []string{KeyPrefix}

	endpoint := k.Endpoint
	if i := strings.Index(endpoint, "://"); i >= 0 {
		endpoint = endpoint[i+3:]
	}
	endpoint = strings.Trim(endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	parts = append(parts, k.ID)

	return strings.Join(parts, ":")
}
