// Package objectstore publishes exported artifacts to an S3-compatible object store.
package objectstore

import (
	"context"
	"fmt"
	"mime"
	"net"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.trai.ch/matrix/internal/core/domain"
	"go.trai.ch/matrix/internal/core/ports"
	"go.trai.ch/zerr"
)

const defaultContentType = "application/octet-stream"

var _ ports.ArtifactPublisher = (*Publisher)(nil)

// Validate checks the settings needed to reach the object store.
func Validate(cfg domain.PublishConfig) error {
	switch {
	case cfg.Endpoint == "":
		return zerr.Wrap(domain.ErrPublishFailed, "publish endpoint is required")
	case cfg.Bucket == "":
		return zerr.Wrap(domain.ErrPublishFailed, "publish bucket is required")
	case cfg.AccessKey == "" || cfg.SecretKey == "":
		return zerr.Wrap(domain.ErrPublishFailed, "publish credentials are required")
	}
	return nil
}

// Publisher uploads files to one bucket. The bucket is created on first use.
type Publisher struct {
	client *minio.Client
	cfg    domain.PublishConfig

	mu      sync.Mutex
	ensured bool
}

// NewPublisher creates a Publisher for cfg.
func NewPublisher(cfg domain.PublishConfig) (*Publisher, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to create object store client"), "endpoint", cfg.Endpoint)
	}
	return &Publisher{client: client, cfg: cfg}, nil
}

// Publish uploads files below <configured prefix>/<prefix>, keeping their
// paths relative to root, and returns the object names in input order.
func (p *Publisher) Publish(ctx context.Context, prefix, root string, files []string) ([]string, error) {
	if len(files) == 0 {
		return nil, nil
	}
	if err := p.ensureBucket(ctx); err != nil {
		return nil, err
	}

	objects := make([]string, 0, len(files))
	for _, f := range files {
		name, err := ObjectName(p.cfg.Prefix, prefix, root, f)
		if err != nil {
			return objects, err
		}
		_, err = p.client.FPutObject(ctx, p.cfg.Bucket, name, f, minio.PutObjectOptions{
			ContentType: contentType(f),
		})
		if err != nil {
			return objects, zerr.With(zerr.With(fmt.Errorf("%w: %w", domain.ErrPublishFailed, err), "file", f), "object", name)
		}
		objects = append(objects, name)
	}
	return objects, nil
}

func (p *Publisher) ensureBucket(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ensured {
		return nil
	}
	exists, err := p.client.BucketExists(ctx, p.cfg.Bucket)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to check bucket"), "bucket", p.cfg.Bucket)
	}
	if !exists {
		if err := p.client.MakeBucket(ctx, p.cfg.Bucket, minio.MakeBucketOptions{Region: p.cfg.Region}); err != nil {
			return zerr.With(zerr.Wrap(err, "failed to create bucket"), "bucket", p.cfg.Bucket)
		}
	}
	p.ensured = true
	return nil
}

// ObjectName maps a file under root to its object name.
func ObjectName(base, prefix, root, file string) (string, error) {
	rel, err := filepath.Rel(root, file)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", zerr.With(zerr.With(zerr.New("artifact is outside the run directory"), "file", file), "root", root)
	}
	return path.Join(base, prefix, filepath.ToSlash(rel)), nil
}

func contentType(file string) string {
	if t := mime.TypeByExtension(filepath.Ext(file)); t != "" {
		return t
	}
	return defaultContentType
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
