package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"songlens/internal/config"
	"songlens/internal/logging"
	"songlens/internal/services"
)

// ObjectStore is the subset of the minio client used for uploads.
type ObjectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Uploader copies exported files into a bucket.
type Uploader struct {
	client ObjectStore
	bucket string
	prefix string
	logger *slog.Logger
}

// NewUploader builds a minio-backed uploader from the [export] section.
func NewUploader(cfg *config.Config, logger *slog.Logger) (*Uploader, error) {
	exp := cfg.Export
	if !exp.UploadEnabled {
		return nil, services.Wrap(services.ErrConfiguration, "export", "new uploader", "Upload is disabled in [export]", nil)
	}
	client, err := minio.New(exp.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(exp.AccessKey, exp.SecretKey, ""),
		Secure: exp.UseSSL,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "export", "new uploader", "Invalid object storage settings", err)
	}
	return NewUploaderWithClient(client, exp.Bucket, exp.Prefix, logger), nil
}

// NewUploaderWithClient wraps an existing client.
func NewUploaderWithClient(client ObjectStore, bucket, prefix string, logger *slog.Logger) *Uploader {
	return &Uploader{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logging.NewComponentLogger(logger, "export-upload"),
	}
}

// ObjectKey returns the key localPath is stored under.
func (u *Uploader) ObjectKey(localPath string) string {
	name := filepath.Base(localPath)
	if u.prefix == "" {
		return name
	}
	return path.Join(u.prefix, name)
}

// Upload puts localPath into the bucket, creating the bucket if needed.
func (u *Uploader) Upload(ctx context.Context, localPath string) (string, error) {
	if _, err := os.Stat(localPath); err != nil {
		return "", fmt.Errorf("stat export: %w", err)
	}
	exists, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		return "", fmt.Errorf("check bucket %s: %w", u.bucket, err)
	}
	if !exists {
		if err := u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{}); err != nil {
			return "", fmt.Errorf("create bucket %s: %w", u.bucket, err)
		}
		u.logger.Info("created export bucket", logging.String("bucket", u.bucket))
	}

	key := u.ObjectKey(localPath)
	info, err := u.client.FPutObject(ctx, u.bucket, key, localPath, minio.PutObjectOptions{ContentType: "text/csv"})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	u.logger.Info("export uploaded",
		logging.String(logging.FieldEventType, "export_uploaded"),
		logging.String("bucket", u.bucket),
		logging.String("object", key),
		logging.Int64("size", info.Size),
	)
	return key, nil
}
