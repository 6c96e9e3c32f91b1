package file

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
)

// MinIOBlobStore keeps payloads as objects in a single bucket.
type MinIOBlobStore struct {
	client *minio.Client
	bucket string
}

// NewMinIOBlobStore constructs an adapter for the given bucket.
func NewMinIOBlobStore(client *minio.Client, bucket string) *MinIOBlobStore {
	return &MinIOBlobStore{client: client, bucket: bucket}
}

func (s *MinIOBlobStore) Put(ctx context.Context, objectName string, payload []byte, contentType string) error {
	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := s.client.PutObject(ctx, s.bucket, objectName, bytes.NewReader(payload), int64(len(payload)), opts); err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

func (s *MinIOBlobStore) Get(ctx context.Context, objectName string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapObjectError("get object", err)
	}
	defer obj.Close()

	payload, err := io.ReadAll(obj)
	if err != nil {
		return nil, mapObjectError("read object", err)
	}
	return payload, nil
}

func (s *MinIOBlobStore) Remove(ctx context.Context, objectName string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, objectName, minio.RemoveObjectOptions{}); err != nil {
		return mapObjectError("remove object", err)
	}
	return nil
}

func mapObjectError(op string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return errBlobNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
