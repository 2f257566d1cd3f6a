package interfaces

import "context"

type StorageService interface {
	// IsAvailable reports whether object storage is configured; consulted at
	// point of use, never cached.
	IsAvailable() bool
	Bucket() string
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Download(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	GetSignedURL(ctx context.Context, key string, expiresSeconds int) (string, error)
}
