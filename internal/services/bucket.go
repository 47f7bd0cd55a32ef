package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/iamai-org/iamai-chat/internal/logger"
)

// BucketService stores blobs (attachments, thumbnails, avatars) under a key and
// hands out the URL they can be fetched from.
type BucketService interface {
	UploadFile(ctx context.Context, key string, r io.Reader, contentType string) error
	GetPublicURL(key string) string
}

type gcsBucketService struct {
	log    *logger.Logger
	client *storage.Client
	bucket string
}

// NewGCSBucketService uses credentialsFile when set, application default credentials otherwise.
func NewGCSBucketService(ctx context.Context, log *logger.Logger, bucket, credentialsFile string) (BucketService, error) {
	serviceLog := log.With("service", "GCSBucketService", "bucket", bucket)
	if bucket == "" {
		return nil, fmt.Errorf("missing GCS bucket name")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	serviceLog.Info("GCS bucket service ready")
	return &gcsBucketService{log: serviceLog, client: client, bucket: bucket}, nil
}

func (gs *gcsBucketService) UploadFile(ctx context.Context, key string, r io.Reader, contentType string) error {
	w := gs.client.Bucket(gs.bucket).Object(key).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		gs.log.Warn("failed to write object", "key", key, "error", err)
		return fmt.Errorf("write object %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize object %s: %w", key, err)
	}
	return nil
}

func (gs *gcsBucketService) GetPublicURL(key string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", gs.bucket, key)
}

// localBucketService keeps blobs on disk; the router serves them under publicBase.
type localBucketService struct {
	log        *logger.Logger
	dir        string
	publicBase string
}

func NewLocalBucketService(log *logger.Logger, dir, publicBase string) (BucketService, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create bucket dir: %w", err)
	}
	return &localBucketService{
		log:        log.With("service", "LocalBucketService", "dir", dir),
		dir:        dir,
		publicBase: strings.TrimRight(publicBase, "/"),
	}, nil
}

func (ls *localBucketService) UploadFile(ctx context.Context, key string, r io.Reader, contentType string) error {
	clean := filepath.Clean("/" + key)
	path := filepath.Join(ls.dir, clean)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", key, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", key, err)
	}
	return f.Close()
}

func (ls *localBucketService) GetPublicURL(key string) string {
	return ls.publicBase + "/" + strings.TrimLeft(key, "/")
}
