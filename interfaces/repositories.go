package interfaces

import (
	"context"
	"time"

	"github.com/flowmail/flowmail/internal/enum"
	"github.com/flowmail/flowmail/internal/models"
)

type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) (string, error)
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	GetByUsername(ctx context.Context, username string) (*models.Account, error)
	GetByGoogleID(ctx context.Context, googleID string) (*models.Account, error)
	Update(ctx context.Context, account *models.Account) error
	UpdateGoogleCredential(ctx context.Context, accountID, googleID, accessToken, refreshToken string, expiry *time.Time) error
}

type EmailRepository interface {
	Create(ctx context.Context, email *models.Email) (string, error)
	GetByID(ctx context.Context, id string) (*models.Email, error)
	ListByFolder(ctx context.Context, accountID string, folder enum.Folder, limit, offset int) ([]*models.Email, int64, error)
	CountByFolder(ctx context.Context, accountID string, folder enum.Folder) (int64, error)
	CountUnread(ctx context.Context, accountID string, folder enum.Folder) (int64, error)
	Update(ctx context.Context, email *models.Email) error
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error
	Delete(ctx context.Context, id string) error
}

type EmailAttachmentRepository interface {
	Create(ctx context.Context, attachment *models.EmailAttachment) (string, error)
	GetByID(ctx context.Context, id string) (*models.EmailAttachment, error)
	ListByEmail(ctx context.Context, emailID string) ([]*models.EmailAttachment, error)
	LinkToEmail(ctx context.Context, attachmentID, emailID string) error
	Update(ctx context.Context, attachment *models.EmailAttachment) error
	Delete(ctx context.Context, id string) error
}
