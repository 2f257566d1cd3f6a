package interfaces

import (
	"context"

	"github.com/flowmail/flowmail/internal/models"
)

type EventPublisher interface {
	PublishEmailSent(ctx context.Context, email *models.Email) error
	PublishEmailReceived(ctx context.Context, email *models.Email) error
	Close() error
}
