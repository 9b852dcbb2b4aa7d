package file

import (
	"context"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
)

// MinIOStore implements BlobGateway on a MinIO bucket. Retrieval URLs are
// presigned GETs, built locally without a storage round trip.
type MinIOStore struct {
	client *minio.Client
	bucket string
	urlTTL time.Duration
}

// NewMinIOStore constructs a blob gateway over the given bucket.
func NewMinIOStore(client *minio.Client, bucket string, urlTTL time.Duration) *MinIOStore {
	return &MinIOStore{client: client, bucket: bucket, urlTTL: urlTTL}
}

func (s *MinIOStore) PutBlob(ctx context.Context, ref string, r io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, ref, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

func (s *MinIOStore) DeleteBlob(ctx context.Context, ref string) error {
	return s.client.RemoveObject(ctx, s.bucket, ref, minio.RemoveObjectOptions{})
}

// BuildRetrievalURL presigns a GET for the blob. Fails only on a malformed
// reference; signing itself needs no network call.
func (s *MinIOStore) BuildRetrievalURL(ctx context.Context, ref string) (string, error) {
	if !ValidBlobRef(ref) {
		return "", ErrInvalidBlobRef
	}

	u, err := s.client.PresignedGetObject(ctx, s.bucket, ref, s.urlTTL, url.Values{})
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// ValidBlobRef reports whether ref is a usable object name.
func ValidBlobRef(ref string) bool {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "/") {
		return false
	}
	return !strings.Contains(ref, "..")
}
