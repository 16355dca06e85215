// Package blob keeps user profile images in an S3 compatible bucket.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/aussiebroadwan/onboard/internal/onboard/metrics"
)

const DefaultPrefix = "profile-images/"

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool

	// Prefix is prepended to every key. Each user gets Prefix + userID + "/".
	Prefix string
}

type Store struct {
	mc     *minio.Client
	bucket string
	prefix string
}

func New(cfg Config) (*Store, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("blob: endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("blob: bucket is required")
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("blob: create client: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Store{mc: mc, bucket: cfg.Bucket, prefix: prefix}, nil
}

// EnsureBucket creates the bucket if it does not exist yet.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.mc.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("blob: check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.mc.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("blob: create bucket: %w", err)
	}
	return nil
}

// Ping reports whether the bucket is reachable.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.mc.BucketExists(ctx, s.bucket)
	return err
}

func (s *Store) userPrefix(userID string) string { return s.prefix + userID + "/" }

// PutUserImage stores an image under the user's prefix and returns its key.
func (s *Store) PutUserImage(ctx context.Context, userID, name string, r io.Reader, size int64, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := s.userPrefix(userID) + name
	_, err := s.mc.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("blob: put %s: %w", key, err)
	}
	return key, nil
}

// DeleteUserImages removes everything under the user's prefix plus key,
// which may live elsewhere for images uploaded before prefixes existed. A
// key that is already gone is not an error.
func (s *Store) DeleteUserImages(ctx context.Context, userID, key string) (n int, err error) {
	start := time.Now()
	defer func() { metrics.ObserveExternal("blob", "delete_user_images", start, err) }()

	if userID == "" {
		return 0, errors.New("blob: user id is required")
	}

	var errs []error
	prefix := s.userPrefix(userID)

	for obj := range s.mc.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			errs = append(errs, fmt.Errorf("blob: list %s: %w", prefix, obj.Err))
			break
		}
		if err := s.remove(ctx, obj.Key); err != nil {
			errs = append(errs, err)
			continue
		}
		n++
	}

	if key != "" && !strings.HasPrefix(key, prefix) {
		if err := s.remove(ctx, key); err != nil {
			errs = append(errs, err)
		} else {
			n++
		}
	}

	return n, errors.Join(errs...)
}

func (s *Store) remove(ctx context.Context, key string) error {
	err := s.mc.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err != nil && minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return fmt.Errorf("blob: remove %s: %w", key, err)
	}
	return nil
}
