// Package store wraps the external TTL key-value store behind a small
// typed interface. Values are raw strings; expiration is absolute from
// the last write. The store offers no compare-and-swap, so callers must
// serialize conflicting mutations themselves.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound reports that a key is absent. Any other error returned by
// a Store means the backing store itself failed; this layer never
// retries on the caller's behalf.
var ErrNotFound = errors.New("store: key not found")

type Store interface {
	GetString(ctx context.Context, key string) (string, error)
	SetString(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
