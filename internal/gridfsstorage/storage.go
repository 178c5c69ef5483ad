// Package gridfsstorage keeps document bytes in a MongoDB GridFS bucket, next
// to the catalog when both backends point at the same database.
package gridfsstorage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dharsanguruparan/extractiq/internal/model"
)

// Storage stores each document as one GridFS file. The file's ObjectID in
// hex is the blob reference.
type Storage struct {
	bucket *gridfs.Bucket
}

// New opens the named bucket on db.
func New(db *mongo.Database, bucketName string) (*Storage, error) {
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(bucketName))
	if err != nil {
		return nil, fmt.Errorf("open gridfs bucket %s: %w", bucketName, err)
	}
	return &Storage{bucket: bucket}, nil
}

// Put streams r into a new GridFS file named after key.
func (s *Storage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	if err := s.applyDeadline(ctx, s.bucket.SetWriteDeadline); err != nil {
		return "", err
	}
	opts := options.GridFSUpload().SetMetadata(bson.D{
		{Key: "contentType", Value: contentType},
		{Key: "size", Value: size},
	})
	id, err := s.bucket.UploadFromStream(key, r, opts)
	if err != nil {
		return "", fmt.Errorf("upload gridfs file: %w", err)
	}
	return id.Hex(), nil
}

func (s *Storage) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	id, err := parseRef(ref)
	if err != nil {
		return nil, err
	}
	if err := s.applyDeadline(ctx, s.bucket.SetReadDeadline); err != nil {
		return nil, err
	}
	stream, err := s.bucket.OpenDownloadStream(id)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, model.NotFoundf("gridfs file %q", ref)
		}
		return nil, fmt.Errorf("open gridfs file: %w", err)
	}
	return stream, nil
}

func (s *Storage) Delete(ctx context.Context, ref string) error {
	id, err := parseRef(ref)
	if err != nil {
		return err
	}
	if err := s.applyDeadline(ctx, s.bucket.SetWriteDeadline); err != nil {
		return err
	}
	if err := s.bucket.Delete(id); err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return model.NotFoundf("gridfs file %q", ref)
		}
		return fmt.Errorf("delete gridfs file: %w", err)
	}
	return nil
}

// applyDeadline maps the context deadline onto the bucket, which takes
// deadlines instead of contexts on the streaming calls.
func (s *Storage) applyDeadline(ctx context.Context, set func(time.Time) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	deadline, _ := ctx.Deadline()
	if err := set(deadline); err != nil {
		return fmt.Errorf("set gridfs deadline: %w", err)
	}
	return nil
}

func parseRef(ref string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(ref)
	if err != nil {
		return primitive.NilObjectID, model.NotFoundf("gridfs file %q", ref)
	}
	return id, nil
}
