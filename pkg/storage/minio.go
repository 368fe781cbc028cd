package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"anoa.com/homeworktracker/pkg/metrics"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"
)

const backendMinIO = "minio"

// MinIOStore keeps attachments in an S3-compatible bucket. Locators are
// "{bucket}/{object}".
type MinIOStore struct {
	client *minio.Client
	bucket string
	logger *logrus.Logger
}

type MinIOConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	BucketName      string
}

// NewMinIOStore connects and creates the bucket if it does not exist.
func NewMinIOStore(ctx context.Context, cfg MinIOConfig, logger *logrus.Logger) (*MinIOStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &MinIOStore{client: client, bucket: cfg.BucketName, logger: logger}, nil
}

func (s *MinIOStore) Store(ctx context.Context, r io.Reader, originalName string) (locator string, err error) {
	defer func() { metrics.RecordAttachment(backendMinIO, "store", err) }()

	objectName := GenerateName(originalName)
	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(objectName)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	// PutObject with unknown size uploads in parts and only commits the
	// object once the stream is complete.
	_, err = s.client.PutObject(ctx, s.bucket, objectName, r, -1, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload attachment to MinIO: %w", err)
	}

	return s.bucket + "/" + objectName, nil
}

func (s *MinIOStore) Release(ctx context.Context, locator string) {
	log := s.logger.WithField("locator", locator)

	objectName, ok := splitLocator(s.bucket, locator)
	if !ok {
		log.Warn("refusing to release attachment outside bucket")
		metrics.RecordAttachment(backendMinIO, "release", errors.New("foreign locator"))
		return
	}

	err := s.client.RemoveObject(ctx, s.bucket, objectName, minio.RemoveObjectOptions{})
	if err != nil && minio.ToErrorResponse(err).Code == "NoSuchKey" {
		err = nil
	}
	if err != nil {
		log.WithError(err).Warn("failed to release attachment")
	}
	metrics.RecordAttachment(backendMinIO, "release", err)
}

func (s *MinIOStore) List(ctx context.Context) ([]Object, error) {
	var objects []Object
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list bucket %s: %w", s.bucket, obj.Err)
		}
		objects = append(objects, Object{
			Locator: s.bucket + "/" + obj.Key,
			ModTime: obj.LastModified,
			Size:    obj.Size,
		})
	}
	return objects, nil
}

// Key is the object name; a locator for another bucket keys as itself.
func (s *MinIOStore) Key(locator string) string {
	if objectName, ok := splitLocator(s.bucket, locator); ok {
		return objectName
	}
	return locator
}

func splitLocator(bucket, locator string) (string, bool) {
	objectName, ok := strings.CutPrefix(locator, bucket+"/")
	if !ok || objectName == "" {
		return "", false
	}
	return objectName, true
}
