package services

import (
	"github.com/flowmail/flowmail/config"
	"github.com/flowmail/flowmail/interfaces"
	"github.com/flowmail/flowmail/internal/logger"
	"github.com/flowmail/flowmail/internal/repository"
	"github.com/flowmail/flowmail/services/attachment"
	"github.com/flowmail/flowmail/services/auth"
	"github.com/flowmail/flowmail/services/events"
	"github.com/flowmail/flowmail/services/gmail"
	"github.com/flowmail/flowmail/services/localmail"
	"github.com/flowmail/flowmail/services/provider"
	"github.com/flowmail/flowmail/services/storage"
)

type Services struct {
	AuthService       interfaces.AuthService
	StorageService    interfaces.StorageService
	AttachmentService interfaces.AttachmentService
	EventPublisher    interfaces.EventPublisher
	GmailProvider     interfaces.EmailProvider
	LocalMailProvider interfaces.EmailProvider
	ProviderSelector  interfaces.ProviderSelector
}

func InitServices(cfg *config.Config, log logger.Logger, repos *repository.Repositories) (*Services, error) {
	storageService := storage.NewS3StorageService(
		cfg.S3StorageConfig.Region,
		cfg.S3StorageConfig.AccessKeyID,
		cfg.S3StorageConfig.AccessKeySecret,
		cfg.S3StorageConfig.EmailAttachmentBucket,
	)
	if !storageService.IsAvailable() {
		log.Warn("object storage is not configured, attachments fall back to inline storage")
	}

	attachmentService := attachment.NewAttachmentService(repos.EmailAttachmentRepository, storageService, log)

	// Events are optional; without a broker URL sends simply skip publishing.
	var eventPublisher interfaces.EventPublisher
	if cfg.AppConfig.RabbitMQURL != "" {
		publisher, err := events.NewRabbitMQPublisher(cfg.AppConfig.RabbitMQURL, log)
		if err != nil {
			return nil, err
		}
		eventPublisher = publisher
	}

	gmailProvider := gmail.NewGmailProvider(cfg.OAuthConfig, repos.AccountRepository, attachmentService, log)
	localProvider := localmail.NewLocalMailProvider(
		repos.EmailRepository,
		repos.AccountRepository,
		repos.EmailAttachmentRepository,
		attachmentService,
		eventPublisher,
		log,
	)

	services := Services{
		AuthService:       auth.NewAuthService(repos.AccountRepository, cfg.JWTConfig, cfg.OAuthConfig, log),
		StorageService:    storageService,
		AttachmentService: attachmentService,
		EventPublisher:    eventPublisher,
		GmailProvider:     gmailProvider,
		LocalMailProvider: localProvider,
		ProviderSelector:  provider.NewProviderSelector(gmailProvider, localProvider, log),
	}

	return &services, nil
}
