// Package storage keeps payment proof files in an S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"time"
)

var ErrNotConfigured = errors.New("object storage is not configured")

// ProofStore hands out direct-upload URLs and checks uploaded objects
type ProofStore interface {
	// PresignPut returns a URL the client can PUT the object to until ttl passes.
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
	PublicURL(key string) string
	// KeyFromURL maps a public URL back to its key when it points into the bucket.
	KeyFromURL(url string) (string, bool)
}
