package storage

import (
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"

	"github.com/flowmail/flowmail/interfaces"
	"github.com/flowmail/flowmail/services/storage/aws_client"
)

// NewS3StorageService creates a StorageService configured for AWS S3. When
// credentials or the bucket are missing the returned service reports
// unavailable instead of failing startup.
func NewS3StorageService(awsRegion, accessKeyID, accessKeySecret, bucketName string) interfaces.StorageService {
	if awsRegion == "" || accessKeyID == "" || accessKeySecret == "" || bucketName == "" {
		return NewObjectStorageService(nil, "")
	}

	s3Client := aws_client.NewS3Client(&aws.Config{
		Region:      aws.String(awsRegion),
		Credentials: credentials.NewStaticCredentials(accessKeyID, accessKeySecret, ""),
	})

	return NewObjectStorageService(s3Client, bucketName)
}
