package storage

import (
	"bytes"
	"context"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/opentracing/opentracing-go"

	"github.com/flowmail/flowmail/interfaces"
	"github.com/flowmail/flowmail/internal/tracing"
	"github.com/flowmail/flowmail/services/storage/aws_client"
)

// ObjectStorageService implements StorageService using S3Client
type ObjectStorageService struct {
	client     aws_client.S3Client
	bucketName string
}

// NewObjectStorageService creates an object storage service. A nil client or
// empty bucket yields a service whose IsAvailable probe reports false, which
// switches attachment storage to the inline path.
func NewObjectStorageService(client aws_client.S3Client, bucketName string) interfaces.StorageService {
	return &ObjectStorageService{
		client:     client,
		bucketName: bucketName,
	}
}

func (s *ObjectStorageService) IsAvailable() bool {
	return s.client != nil && s.bucketName != ""
}

func (s *ObjectStorageService) Bucket() string {
	return s.bucketName
}

func (s *ObjectStorageService) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ObjectStorageService.Upload")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	uploadInput := s3manager.UploadInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	}

	return s.client.Upload(ctx, uploadInput)
}

func (s *ObjectStorageService) Download(ctx context.Context, key string) ([]byte, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ObjectStorageService.Download")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	return s.client.Download(ctx, s.bucketName, key)
}

func (s *ObjectStorageService) Delete(ctx context.Context, key string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ObjectStorageService.Delete")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	return s.client.Delete(ctx, s.bucketName, key)
}

func (s *ObjectStorageService) GetSignedURL(ctx context.Context, key string, expiresSeconds int) (string, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "ObjectStorageService.GetSignedURL")
	defer span.Finish()

	return s.client.SignedURL(s.bucketName, key, time.Duration(expiresSeconds)*time.Second)
}
