package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"chatvault/chatvault/config"
	"chatvault/chatvault/utils/logging"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// ArchiveClient mirrors rotated backup files into a MinIO/S3 bucket. The
// local rotated copy stays in place; uploads are best-effort.
type ArchiveClient struct {
	client *minio.Client
	bucket string
}

func NewArchiveClient(cfg config.ArchiveConfig) (*ArchiveClient, error) {
	bucket := cfg.Bucket
	if bucket == "" {
		return nil, fmt.Errorf("archive bucket not configured")
	}
	// Use insecure for local (no HTTPS)
	client, err := minio.New(
		cfg.Endpoint,
		&minio.Options{
			Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
			Secure: false,
		},
	)
	if err != nil {
		return nil, err
	}
	// Create bucket if not exists
	exists, err := client.BucketExists(context.Background(), bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := client.MakeBucket(context.Background(), bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
	}
	return &ArchiveClient{client: client, bucket: bucket}, nil
}

// ArchiveRotated implements store.Archiver. The upload runs detached so a
// slow or down object store never stalls the writer.
func (a *ArchiveClient) ArchiveRotated(path string) {
	go a.upload(path)
}

func (a *ArchiveClient) upload(path string) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	key := filepath.Join("chatlog", filepath.Base(path))
	_, err := a.client.FPutObject(ctx, a.bucket, key, path, minio.PutObjectOptions{
		ContentType: "application/x-ndjson",
	})
	if err != nil {
		logging.ErrorLogger.Error("archive upload failed",
			zap.String("file", path), zap.String("key", key), zap.Error(err))
		return
	}
	logging.AppLogger.Info("rotated file archived",
		zap.String("file", path), zap.String("key", key))
}
