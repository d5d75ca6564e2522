package cache

import (
	"net/http"
	"time"
)

const (
	// DefaultTTL is the fallback TTL when no Expires header is present
	DefaultTTL = 5 * time.Minute
)

// NewEntry builds an Entry from a response's status, headers and body.
// fallbackTTL applies when the Expires header is absent or unparseable;
// values <= 0 select DefaultTTL.
func NewEntry(statusCode int, header http.Header, body []byte, fallbackTTL time.Duration) *Entry {
	if fallbackTTL <= 0 {
		fallbackTTL = DefaultTTL
	}

	data := make([]byte, len(body))
	copy(data, body)

	return &Entry{
		Data:       data,
		StatusCode: statusCode,
		Expires:    parseExpires(header, fallbackTTL),
		CachedAt:   time.Now(),
	}
}

// parseExpires returns the Expires header time, now+fallback when the
// header is missing or invalid, or now when it lies in the past.
func parseExpires(headers http.Header, fallback time.Duration) time.Time {
	expiresStr := headers.Get("Expires")
	if expiresStr == "" {
		return time.Now().Add(fallback)
	}

	expires, err := http.ParseTime(expiresStr)
	if err != nil {
		return time.Now().Add(fallback)
	}

	if expires.Before(time.Now()) {
		return time.Now()
	}

	return expires
}
