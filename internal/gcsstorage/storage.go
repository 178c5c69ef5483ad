// Package gcsstorage keeps document bytes in a Google Cloud Storage bucket.
package gcsstorage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	"github.com/dharsanguruparan/extractiq/internal/model"
)

// Storage writes objects with a does-not-exist precondition so a key is
// never overwritten. The object name is the blob reference.
type Storage struct {
	client *storage.Client
	bucket *storage.BucketHandle
}

// New creates a client using application default credentials.
func New(ctx context.Context, bucket string) (*Storage, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}
	return &Storage{client: client, bucket: client.Bucket(bucket)}, nil
}

// Close releases the client.
func (s *Storage) Close() error {
	return s.client.Close()
}

func (s *Storage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	writer := s.bucket.Object(key).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := io.Copy(writer, r); err != nil {
		_ = writer.Close()
		return "", classify("write object", key, err)
	}
	if err := writer.Close(); err != nil {
		return "", classify("finalize object", key, err)
	}
	return key, nil
}

func (s *Storage) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	reader, err := s.bucket.Object(ref).NewReader(ctx)
	if err != nil {
		return nil, classify("open object", ref, err)
	}
	return reader, nil
}

func (s *Storage) Delete(ctx context.Context, ref string) error {
	if err := s.bucket.Object(ref).Delete(ctx); err != nil {
		return classify("delete object", ref, err)
	}
	return nil
}

func classify(operation, name string, err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return model.NotFoundf("object %q", name)
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
		return fmt.Errorf("%s %s: object already exists: %w", operation, name, err)
	}
	return fmt.Errorf("%s %s: %w", operation, name, err)
}
