// Package cache defines the key/value store shared by the crime and places
// services, with an in-process implementation and a Redis implementation.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Store is a byte-oriented key/value cache with per-entry TTL.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the stored value or ErrMiss.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
	// Close releases backend resources.
	Close() error
}

// GetJSON reads key and decodes it into a T.
func GetJSON[T any](ctx context.Context, s Store, key string) (T, error) {
	var out T
	raw, err := s.Get(ctx, key)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decoding cached %s: %w", key, err)
	}
	return out, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s for cache: %w", key, err)
	}
	return s.Set(ctx, key, raw, ttl)
}

// cellEpsilon absorbs float division error for coordinates that sit exactly
// on a grid line, e.g. 0.3/0.1 = 2.9999999999999996.
const cellEpsilon = 1e-9

// GridCell returns the index of the size-wide grid cell containing v.
// Keys built from the index are stable across nearby coordinates.
func GridCell(v, size float64) int64 {
	return int64(math.Floor(v/size + cellEpsilon))
}
