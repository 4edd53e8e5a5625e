// Package receipts stores receipt images, analyzes them into suggested
// transactions and drives the asynchronous analysis jobs.
package receipts

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/storage"
)

// ObjectStore keeps receipt images.
type ObjectStore interface {
	// Upload stores data under name and returns its URI.
	Upload(ctx context.Context, name, contentType string, data []byte) (string, error)

	// Fetch returns the bytes behind a URI returned by Upload.
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// GCSStore keeps receipts in a Cloud Storage bucket. It relies on
// Application Default Credentials.
type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCSStore creates a storage client for bucket.
func NewGCSStore(ctx context.Context, bucket string) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewGCSStore: create storage client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

// Upload implements ObjectStore.
func (s *GCSStore) Upload(ctx context.Context, name, contentType string, data []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("Upload: write %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("Upload: finalize %s: %w", name, err)
	}
	return "gs://" + s.bucket + "/" + name, nil
}

// Fetch implements ObjectStore.
func (s *GCSStore) Fetch(ctx context.Context, uri string) ([]byte, error) {
	bucket, object, err := ParseGCSURI(uri)
	if err != nil {
		return nil, err
	}

	rc, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading object %s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading bytes: %w", err)
	}
	return data, nil
}

// Close releases the storage client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

// ParseGCSURI splits gs://bucket/path/to/object into bucket and object.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}

	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// ObjectName builds the object path for a receipt uploaded by userID.
func ObjectName(userID, id, ext string, now time.Time) string {
	return path.Join("receipts", userID, now.UTC().Format("2006/01/02"), id+ext)
}

// MemoryStore keeps receipts in process memory. URIs look like
// mem://receipts/<name>.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

// Upload implements ObjectStore.
func (s *MemoryStore) Upload(ctx context.Context, name, contentType string, data []byte) (string, error) {
	uri := "mem://" + name

	s.mu.Lock()
	s.objects[uri] = append([]byte(nil), data...)
	s.mu.Unlock()

	return uri, nil
}

// Fetch implements ObjectStore.
func (s *MemoryStore) Fetch(ctx context.Context, uri string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.objects[uri]
	if !ok {
		return nil, fmt.Errorf("Fetch: object not found: %s", uri)
	}
	return append([]byte(nil), data...), nil
}

var (
	_ ObjectStore = (*GCSStore)(nil)
	_ ObjectStore = (*MemoryStore)(nil)
)
