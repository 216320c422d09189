// Package kv defines the durable key-value port used to persist resource
// configuration, together with in-memory, file and PostgreSQL backends.
//
// Every backend stores opaque bytes under a string key. Callers own the
// encoding; the resource store writes one JSON document per slot.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by [Store.Get] when no value exists for the key.
var ErrNotFound = errors.New("kv: key not found")

// Store is a durable key-value slot store.
//
// Implementations must be safe for concurrent use. Set replaces any previous
// value atomically: a concurrent or subsequent Get observes either the old or
// the new value, never a partial write.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Close releases resources held by the backend.
	Close() error
}
