// Package gcs implements objectstore.Store on Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"github.com/phrazzld/quizgen-api/internal/config"
	"github.com/phrazzld/quizgen-api/internal/objectstore"
	"google.golang.org/api/option"
)

const writeTimeout = 2 * time.Minute

// Store writes to one GCS bucket.
type Store struct {
	client *storage.Client
	bucket string
	logger *slog.Logger
}

var _ objectstore.Store = (*Store)(nil)

// NewStore creates a storage client for cfg.Bucket. Credentials come from
// cfg.CredentialsFile when set and from the environment otherwise.
func NewStore(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("gcs bucket cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	logger.Info("object storage initialized", "bucket", cfg.Bucket)
	return &Store{
		client: client,
		bucket: cfg.Bucket,
		logger: logger.With("component", "gcs"),
	}, nil
}

// Bucket implements objectstore.Store.
func (s *Store) Bucket() string { return s.bucket }

// Put implements objectstore.Store.
func (s *Store) Put(ctx context.Context, key, contentType string, r io.Reader) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}

	s.logger.DebugContext(ctx, "object written", "key", key, "content_type", contentType)
	return nil
}

// SignedURL implements objectstore.Store with a V4 signature.
func (s *Store) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	u, err := s.client.Bucket(s.bucket).SignedURL(key, &storage.SignedURLOptions{
		Method:  http.MethodGet,
		Expires: time.Now().Add(ttl),
		Scheme:  storage.SigningSchemeV4,
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign url for %s: %w", key, err)
	}
	return u, nil
}

// Close releases the storage client.
func (s *Store) Close() error {
	return s.client.Close()
}
