// Package cache provides the key/value store behind the availability
// lookups.  Every implementation swallows its own failures: a broken or
// slow cache turns into misses and dropped writes, never into an error
// for the caller.
package cache

import (
	"context"
	"time"
)

// Store is a TTL key/value cache.
type Store interface {
	// Get returns the stored bytes and true on a hit.  Any failure is a miss.
	Get(ctx context.Context, key string) ([]byte, bool)
	// Set stores value for ttl.  Failures are ignored.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

// Noop never stores anything.
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, bool) { return nil, false }
func (Noop) Set(context.Context, string, []byte, time.Duration) {}
