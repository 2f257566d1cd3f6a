package handlers

import (
	"github.com/flowmail/flowmail/services"
)

type APIHandlers struct {
	Auth        *AuthHandler
	Emails      *EmailsHandler
	Attachments *AttachmentsHandler
}

func InitHandlers(s *services.Services) *APIHandlers {
	return &APIHandlers{
		Auth:        NewAuthHandler(s.AuthService),
		Emails:      NewEmailsHandler(s.ProviderSelector),
		Attachments: NewAttachmentsHandler(s.AttachmentService),
	}
}
