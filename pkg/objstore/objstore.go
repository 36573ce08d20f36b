// Package objstore stores opaque binary objects by key. TikTalk uses it to
// keep recorded and synthesised audio out of the message table.
//
// Two implementations are provided: [Minio] for any S3-compatible server and
// [Mem] for tests and single-process development setups.
package objstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("objstore: object not found")

// Store is a flat key/value blob store. Implementations must be safe for
// concurrent use.
type Store interface {
	// Put writes data under key, replacing any existing object.
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Get returns the object stored under key or [ErrNotFound].
	Get(ctx context.Context, key string) ([]byte, error)

	// DeletePrefix removes every object whose key starts with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}
