package pack

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Sink receives a finished archive.
type Sink interface {
	// Put stores data under name and returns where it ended up.
	Put(ctx context.Context, name string, data []byte) (string, error)
}

// FileSink writes archives into a local directory.
type FileSink struct {
	Dir string
}

// Put writes through a temp file in the target directory and renames it into
// place, so readers never see a partial archive.
func (s FileSink) Put(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	dest := filepath.Join(dir, filepath.Base(name))

	tmp, err := os.CreateTemp(dir, ".treeforge-pack-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName) // best-effort cleanup
		return "", fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName) // best-effort cleanup
		return "", fmt.Errorf("close temp: %w", err)
	}
	_ = os.Chmod(tmpName, 0o644) // CreateTemp uses 0600

	if err := os.Rename(tmpName, dest); err != nil {
		_ = os.Remove(tmpName) // best-effort cleanup
		return "", fmt.Errorf("rename temp to %s: %w", dest, err)
	}
	return dest, nil
}

// BucketOptions locate an S3-compatible bucket.
type BucketOptions struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Prefix    string
}

// BucketSink uploads archives to object storage.
type BucketSink struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewBucketSink creates the client. No request is made until Put.
func NewBucketSink(opts BucketOptions) (*BucketSink, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init object storage client: %w", err)
	}
	return &BucketSink{client: client, bucket: opts.Bucket, prefix: opts.Prefix}, nil
}

// Key is the object name an archive is stored under.
func (s *BucketSink) Key(name string) string {
	return path.Join(s.prefix, path.Base(name))
}

func (s *BucketSink) Put(ctx context.Context, name string, data []byte) (string, error) {
	key := s.Key(name)
	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/zip"})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return fmt.Sprintf("s3://%s/%s", info.Bucket, info.Key), nil
}

var (
	_ Sink = FileSink{}
	_ Sink = (*BucketSink)(nil)
)
