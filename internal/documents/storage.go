package documents

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	ierr "sop-portal/portal-backend/internal/errors"
	"sop-portal/portal-backend/pkg/storage"
)

type StorageProvider struct {
	s3     storage.S3Client
	bucket string
}

func NewStorageProvider(s3 storage.S3Client, bucket string) *StorageProvider {
	return &StorageProvider{
		s3:     s3,
		bucket: bucket,
	}
}

// UploadRevision stores the file of a revised version and returns its object key.
func (p *StorageProvider) UploadRevision(ctx context.Context, documentCode, version, fileName string, body io.Reader) (string, error) {
	key := GenerateS3Key(documentCode, version, fileName)
	if err := p.s3.Upload(ctx, p.bucket, key, body); err != nil {
		return "", ierr.WithError(err).
			WithHint("Failed to store the revised document").
			WithReportableDetails(map[string]any{"key": key}).
			Mark(ierr.ErrSystem)
	}
	return key, nil
}

// DeleteRevision removes a stored revision file.
func (p *StorageProvider) DeleteRevision(ctx context.Context, key string) error {
	if err := p.s3.Delete(ctx, p.bucket, key); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to remove the revised document").
			WithReportableDetails(map[string]any{"key": key}).
			Mark(ierr.ErrSystem)
	}
	return nil
}

func (p *StorageProvider) DownloadURL(ctx context.Context, key string, expiration time.Duration) (string, error) {
	url, err := p.s3.GetPresignedURL(ctx, p.bucket, key, expiration)
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("Failed to create a download link").
			Mark(ierr.ErrSystem)
	}
	return url, nil
}

func GenerateS3Key(documentCode, version, fileName string) string {
	name := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	return fmt.Sprintf("documents/%s/v%s/%s", documentCode, version, name)
}
