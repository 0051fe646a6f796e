package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"ppe-dashboard/internal/config"
)

var ErrNotConfigured = errors.New("archive storage is not configured")

// Archive stores uploaded clips in an S3-compatible bucket (R2, MinIO, S3).
type Archive struct {
	client        *s3.Client
	bucket        string
	endpoint      string
	publicBaseURL string
}

func NewArchive(cfg config.StorageConfig) (*Archive, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}
	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	client := s3.New(s3.Options{
		Region:       region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		BaseEndpoint: aws.String(cfg.Endpoint),
		UsePathStyle: true,
		// R2 and older MinIO releases reject the SDK's default trailing checksums.
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	})

	return &Archive{
		client:        client,
		bucket:        cfg.Bucket,
		endpoint:      strings.TrimRight(cfg.Endpoint, "/"),
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}, nil
}

// Key builds the object key for an uploaded clip: uploads/<date>/<job>/<name>.
func Key(jobID, filename string, at time.Time) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "video"
	}
	return path.Join("uploads", at.UTC().Format("2006/01/02"), jobID, name)
}

func (a *Archive) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	if a == nil || a.client == nil {
		return "", ErrNotConfigured
	}
	if size <= 0 {
		return "", fmt.Errorf("archive %s: empty file", key)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return "", fmt.Errorf("archive upload failed: %w", err)
	}
	return a.ObjectURL(key), nil
}

func (a *Archive) ObjectURL(key string) string {
	trimmed := strings.TrimLeft(key, "/")
	base := a.endpoint
	if a.publicBaseURL != "" {
		base = a.publicBaseURL
	}
	return fmt.Sprintf("%s/%s/%s", base, a.bucket, trimmed)
}
