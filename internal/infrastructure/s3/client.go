package s3

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/otp-auth-api/internal/config"
)

// Store uploads profile images to an S3 bucket and returns public URLs.
type Store struct {
	client *s3.Client
	bucket string
	region string
}

func NewStore(ctx context.Context, cfg *config.Config) (*Store, error) {
	awsCfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &Store{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.S3BucketName,
		region: cfg.AWSRegion,
	}, nil
}

// Upload stores body under key and returns the object's public URL.
func (s *Store) Upload(ctx context.Context, key, contentType string, body []byte) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key), nil
}

// UploadBase64 decodes a data-URI or raw base64 payload and uploads it.
// Payloads of the form "data:image/png;base64,AAAA" carry their own content
// type; bare base64 defaults to JPEG.
func (s *Store) UploadBase64(ctx context.Context, key, payload string) (string, error) {
	contentType := "image/jpeg"
	if strings.HasPrefix(payload, "data:") {
		meta, data, ok := strings.Cut(payload, ",")
		if !ok {
			return "", fmt.Errorf("malformed data URI for %s", key)
		}
		contentType = strings.TrimSuffix(strings.TrimPrefix(meta, "data:"), ";base64")
		payload = data
	}
	body, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("decode base64 for %s: %w", key, err)
	}
	return s.Upload(ctx, key, contentType, body)
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}
