// Package storage persists uploaded images and hands back their public URLs.
package storage

import (
	"context"
	"errors"
)

// ErrNotOwned is returned by Delete for URLs the store did not produce.
var ErrNotOwned = errors.New("url not owned by this store")

// Store saves and removes image objects.
type Store interface {
	// Save writes data under key and returns the public URL.
	Save(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// Delete removes the object behind a URL previously returned by Save.
	Delete(ctx context.Context, url string) error
	// Owns reports whether url points into this store.
	Owns(url string) bool
}
