package interfaces

import (
	"context"

	"github.com/flowmail/flowmail/internal/enum"
	"github.com/flowmail/flowmail/internal/models"
)

type SendEmailRequest struct {
	FromAddress   string
	To            string
	Cc            []string
	Bcc           []string
	Subject       string
	BodyText      string
	BodyHTML      string
	AttachmentIDs []string
}

type ReplyEmailRequest struct {
	FromAddress   string
	BodyText      string
	BodyHTML      string
	ReplyAll      bool
	AttachmentIDs []string
}

// EmailProvider is the common mailbox contract implemented by the Gmail and
// local providers. Every operation is scoped to the given account; folder
// "starred" is a flag filter, not a partition.
type EmailProvider interface {
	Provider() enum.EmailProvider
	IsAvailable(ctx context.Context, accountID string) bool
	GetMailboxes(ctx context.Context, accountID string) ([]*models.MailboxInfo, error)
	GetEmailsByFolder(ctx context.Context, accountID string, folder enum.Folder, page, limit int) (*models.EmailListResponse, error)
	// GetEmailByID marks the message read and stamps the read timestamp on
	// first open.
	GetEmailByID(ctx context.Context, accountID, emailID string) (*models.EmailDetail, error)
	SendEmail(ctx context.Context, accountID string, request SendEmailRequest) (*models.SendResult, error)
	ReplyToEmail(ctx context.Context, accountID, emailID string, request ReplyEmailRequest) (*models.SendResult, error)
	MarkAsRead(ctx context.Context, accountID, emailID string, isRead bool) error
	ToggleStar(ctx context.Context, accountID, emailID string) (bool, error)
	// DeleteEmail is two-phase: first call moves to trash, second call on a
	// trashed message removes it permanently.
	DeleteEmail(ctx context.Context, accountID, emailID string) error
	MoveToFolder(ctx context.Context, accountID, emailID string, folder enum.Folder) error
}

// ProviderSelector decides at call time which provider backs an account's
// mailbox operations. It never fails; the local provider is the
// unconditional fallback.
type ProviderSelector interface {
	GetProvider(ctx context.Context, accountID string) EmailProvider
}
