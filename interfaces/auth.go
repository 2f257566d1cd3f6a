package interfaces

import (
	"context"

	"github.com/flowmail/flowmail/internal/models"
)

type AuthService interface {
	Register(ctx context.Context, username, email, password string) (*models.Account, *models.TokenPair, error)
	// Login accepts a username or an email address.
	Login(ctx context.Context, login, password string) (*models.Account, *models.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	// GoogleAuthURL fails with ErrUnavailable when OAuth is not configured.
	GoogleAuthURL(state string) (string, error)
	// HandleGoogleCallback exchanges the authorization code, links or creates
	// the account, and issues a token pair.
	HandleGoogleCallback(ctx context.Context, code string) (*models.Account, *models.TokenPair, error)
}
