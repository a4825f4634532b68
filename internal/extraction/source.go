// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package extraction

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// AudioSource resolves an audio key to a reference the extractor can read:
// a local path or a URL. A key with no audio behind it is ErrAudioMissing.
type AudioSource interface {
	Locate(ctx context.Context, key string) (string, error)
}

// FileSource serves audio from a local directory.
type FileSource struct {
	dir string
}

// NewFileSource returns a source rooted at dir.
func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

// Locate implements AudioSource. Keys may not escape the directory.
func (s *FileSource) Locate(_ context.Context, key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("%w: empty audio key", ErrPermanent)
	}
	path := filepath.Join(s.dir, strings.TrimPrefix(clean, "/"))

	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("%w: %s", ErrAudioMissing, key)
	case err != nil:
		return "", fmt.Errorf("stat audio %s: %w", key, err)
	case info.IsDir():
		return "", fmt.Errorf("%w: %s is a directory", ErrPermanent, key)
	}
	return path, nil
}

// MinIOOptions configures the object storage source.
type MinIOOptions struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PresignExpiry time.Duration
}

// MinIOSource serves audio from an S3-compatible bucket. The extractor
// receives a presigned GET URL.
type MinIOSource struct {
	client *minio.Client
	bucket string
	expiry time.Duration
}

// NewMinIOSource creates the client. It does not contact the server.
func NewMinIOSource(opts MinIOOptions) (*MinIOSource, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return NewMinIOSourceWithClient(client, opts.Bucket, opts.PresignExpiry), nil
}

// NewMinIOSourceWithClient wraps an existing client.
func NewMinIOSourceWithClient(client *minio.Client, bucket string, expiry time.Duration) *MinIOSource {
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	return &MinIOSource{client: client, bucket: bucket, expiry: expiry}
}

// Locate implements AudioSource.
func (s *MinIOSource) Locate(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: empty audio key", ErrPermanent)
	}
	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		switch minio.ToErrorResponse(err).Code {
		case "NoSuchKey":
			return "", fmt.Errorf("%w: %s", ErrAudioMissing, key)
		case "NoSuchBucket":
			return "", fmt.Errorf("%w: bucket %s", ErrPermanent, s.bucket)
		}
		return "", fmt.Errorf("stat object %s: %w", key, err)
	}

	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.expiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return u.String(), nil
}

// EnsureBucket creates the bucket when it does not exist.
func (s *MinIOSource) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}
