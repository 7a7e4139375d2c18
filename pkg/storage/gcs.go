package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	gcs "cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GCSConfig holds Google Cloud Storage settings.
type GCSConfig struct {
	Bucket          string
	CredentialsFile string
	// SignerEmail and SignerKey sign download URLs; both empty uses the client's credentials.
	SignerEmail string
	SignerKey   []byte
}

// GCS is a MediaStore on a Google Cloud Storage bucket.
type GCS struct {
	client *gcs.Client
	bucket *gcs.BucketHandle
	cfg    GCSConfig
	logger *zap.Logger
}

// NewGCS creates a GCS media store.
func NewGCS(ctx context.Context, cfg GCSConfig, logger *zap.Logger) (*GCS, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket must be provided")
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCS{client: client, bucket: client.Bucket(cfg.Bucket), cfg: cfg, logger: logger}, nil
}

// Close releases the client.
func (g *GCS) Close() error { return g.client.Close() }

// Put writes body to key. Audio cache keys are written only when absent.
func (g *GCS) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	obj := g.bucket.Object(key)
	if isAudioKey(key) {
		obj = obj.If(gcs.Conditions{DoesNotExist: true})
	}
	w := obj.NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
			g.logger.Debug("gcs object already exists", zap.String("key", key))
			return nil
		}
		return fmt.Errorf("failed to finalize GCS write: %w", err)
	}
	return nil
}

func (g *GCS) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	r, err := g.bucket.Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, "", ErrObjectNotFound
		}
		return nil, "", fmt.Errorf("read object %s: %w", key, err)
	}
	return r, r.Attrs.ContentType, nil
}

func (g *GCS) Exists(ctx context.Context, key string) (bool, error) {
	_, err := g.bucket.Object(key).Attrs(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("object attrs %s: %w", key, err)
	}
	return true, nil
}

func (g *GCS) Delete(ctx context.Context, key string) error {
	if err := g.bucket.Object(key).Delete(ctx); err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func (g *GCS) DownloadURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	opts := &gcs.SignedURLOptions{
		Scheme:  gcs.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: time.Now().Add(expires),
	}
	if g.cfg.SignerEmail != "" && len(g.cfg.SignerKey) > 0 {
		opts.GoogleAccessID = g.cfg.SignerEmail
		opts.PrivateKey = g.cfg.SignerKey
	}
	url, err := g.bucket.SignedURL(key, opts)
	if err != nil {
		return "", fmt.Errorf("sign url: %w", err)
	}
	return url, nil
}

func isAudioKey(key string) bool {
	return len(key) > len(FolderAudio) && key[:len(FolderAudio)+1] == FolderAudio+"/"
}
