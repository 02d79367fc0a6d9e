package storage

import (
	"context"
)

// Store is a key-value blob store. Values are opaque bytes; callers own the
// encoding. Get reports found=false for a missing key rather than an error.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}
