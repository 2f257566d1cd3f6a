package interfaces

import (
	"context"

	"github.com/flowmail/flowmail/internal/models"
)

type AttachmentService interface {
	Upload(ctx context.Context, content []byte, filename, contentType string) (*models.AttachmentRef, error)
	GetContent(ctx context.Context, attachmentID string) ([]byte, *models.EmailAttachment, error)
	// LinkToEmails is best-effort per id; one failed link does not abort the
	// rest.
	LinkToEmails(ctx context.Context, attachmentIDs []string, emailIDs []string)
	Delete(ctx context.Context, attachmentID string) error
}
