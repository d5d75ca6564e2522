// Package cache provides a Redis-backed read-through cache for lookup responses.
//
// Only successful responses are stored. Each entry lives until the remote
// service's Expires header, or until a fallback TTL when the header is
// missing or unparseable. Expired entries are treated as misses and removed.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := cache.NewManager(redisClient)
//
//	key := cache.Key{
//		Endpoint: "https://api.spy.pet/servers/{id}",
//		ID:       "1234567890",
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the remote service
//	}
//
// # Building Entries
//
//	entry := cache.NewEntry(resp.StatusCode, resp.Header, body, cache.DefaultTTL)
//	if err := manager.Set(ctx, key, entry); err != nil {
//		return err
//	}
//
// # Metrics
//
//   - spycheck_cache_hits_total - Cache hits
//   - spycheck_cache_misses_total - Cache misses
//   - spycheck_cache_errors_total{operation} - Cache operation errors
package cache
