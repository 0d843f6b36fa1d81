package cache

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/sofmeright/qualitygate/src/config"
)

// S3Store keeps archives in an S3-compatible bucket. Writes are
// conditional on the object not existing (If-None-Match: *), so the first
// writer's archive is never replaced.
type S3Store struct {
	Client *minio.Client
	Bucket string
	Prefix string
}

// NewS3Store connects to the configured endpoint. Credentials come from the
// environment variables named in cfg.
func NewS3Store(cfg config.S3Config, getenv func(string) string) (*S3Store, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 cache: endpoint and bucket are required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(getenv(cfg.AccessKeyEnv), getenv(cfg.SecretKeyEnv), ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 cache: %w", err)
	}

	return &S3Store{Client: client, Bucket: cfg.Bucket, Prefix: cfg.Prefix}, nil
}

func (s *S3Store) object(key string) string {
	return path.Join(s.Prefix, key+archiveExt)
}

// Get streams the archive for key.
func (s *S3Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	ok, err := s.Exists(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	obj, err := s.Client.GetObject(ctx, s.Bucket, s.object(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("s3 get %s: %w", key, err)
	}
	return obj, nil
}

// Exists reports whether key has been written.
func (s *S3Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.Client.StatObject(ctx, s.Bucket, s.object(key), minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if minio.ToErrorResponse(err).Code == minio.NoSuchKey {
		return false, nil
	}
	return false, fmt.Errorf("s3 stat %s: %w", key, err)
}

// PutIfAbsent uploads r under key unless the key already exists.
// The archive is spooled to a temp file so the upload has a known size.
func (s *S3Store) PutIfAbsent(ctx context.Context, key string, r io.Reader) error {
	spool, err := os.CreateTemp("", "qualitygate-s3-*")
	if err != nil {
		return fmt.Errorf("staging cache entry: %w", err)
	}
	defer os.Remove(spool.Name())
	defer spool.Close()

	size, err := io.Copy(spool, r)
	if err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		return err
	}

	opts := minio.PutObjectOptions{ContentType: "application/gzip"}
	opts.SetMatchETagExcept("*")

	_, err = s.Client.PutObject(ctx, s.Bucket, s.object(key), spool, size, opts)
	if err != nil {
		if isPreconditionFailed(err) {
			return ErrExists
		}
		return fmt.Errorf("s3 put %s: %w", key, err)
	}
	return nil
}

func isPreconditionFailed(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == minio.PreconditionFailed || resp.StatusCode == http.StatusPreconditionFailed
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
