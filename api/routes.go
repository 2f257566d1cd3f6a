package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/flowmail/flowmail/api/handlers"
	"github.com/flowmail/flowmail/api/middleware"
	"github.com/flowmail/flowmail/config"
	"github.com/flowmail/flowmail/internal/repository"
	"github.com/flowmail/flowmail/internal/tracing"
	"github.com/flowmail/flowmail/services"
)

// RegisterRoutes sets up all API endpoints
func RegisterRoutes(ctx context.Context, r *gin.Engine, cfg *config.Config, s *services.Services, repos *repository.Repositories) {
	if s == nil {
		panic("Services cannot be nil")
	}
	if repos == nil {
		panic("Repositories cannot be nil")
	}

	r.Use(gin.Recovery())
	r.Use(tracing.RecoveryWithJaeger(opentracing.GlobalTracer()))

	apiHandlers := handlers.InitHandlers(s)

	r.GET("/health", handlers.HealthCheck)

	// Auth endpoints sit outside the JWT guard.
	auth := r.Group("/v1/auth")
	{
		auth.POST("/register", apiHandlers.Auth.Register())
		auth.POST("/login", apiHandlers.Auth.Login())
		auth.POST("/refresh", apiHandlers.Auth.Refresh())
		auth.GET("/google", apiHandlers.Auth.GoogleAuthURL())
		auth.GET("/google/callback", apiHandlers.Auth.GoogleCallback())
	}

	api := r.Group("/v1")
	api.Use(middleware.JWTAuthMiddleware(cfg.JWTConfig))
	api.Use(middleware.TracingMiddleware())
	{
		api.GET("/mailboxes", apiHandlers.Emails.ListMailboxes())

		emails := api.Group("/emails")
		{
			emails.GET("", apiHandlers.Emails.ListEmails())
			emails.POST("", apiHandlers.Emails.Send())
			emails.GET("/:id", apiHandlers.Emails.GetEmail())
			emails.POST("/:id/reply", apiHandlers.Emails.Reply())
			emails.PUT("/:id/read", apiHandlers.Emails.MarkRead())
			emails.PUT("/:id/star", apiHandlers.Emails.ToggleStar())
			emails.PUT("/:id/folder", apiHandlers.Emails.MoveToFolder())
			emails.DELETE("/:id", apiHandlers.Emails.Delete())

			emails.POST("/bulk/read", apiHandlers.Emails.BulkRead())
			emails.POST("/bulk/star", apiHandlers.Emails.BulkStar())
			emails.POST("/bulk/delete", apiHandlers.Emails.BulkDelete())
		}

		attachments := api.Group("/attachments")
		{
			attachments.POST("", apiHandlers.Attachments.Upload())
			attachments.GET("/:id", apiHandlers.Attachments.Download())
			attachments.DELETE("/:id", apiHandlers.Attachments.Delete())
		}
	}
}
