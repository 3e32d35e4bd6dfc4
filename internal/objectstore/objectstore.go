// Package objectstore defines where source PDFs and page images live and
// how clients are given time-limited links to them.
package objectstore

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrObjectNotFound is returned when a key has no object.
var ErrObjectNotFound = errors.New("object not found")

// Store writes objects to one bucket and signs read links for them.
type Store interface {
	// Bucket names the bucket objects are written to.
	Bucket() string

	// Put writes r under key, replacing any existing object.
	Put(ctx context.Context, key, contentType string, r io.Reader) error

	// SignedURL returns a GET link for key that expires after ttl.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}
