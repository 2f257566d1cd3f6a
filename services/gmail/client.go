package gmail

import (
	"context"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/flowmail/flowmail/internal/models"
)

type OAuthConfig struct {
	ClientID     string `env:"GOOGLE_CLIENT_ID"`
	ClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	RedirectURL  string `env:"GOOGLE_REDIRECT_URL"`
}

func (c *OAuthConfig) IsConfigured() bool {
	return c != nil && c.ClientID != "" && c.ClientSecret != ""
}

// OAuth2Config builds the oauth2 exchange configuration for the Gmail scopes
// this service needs.
func OAuth2Config(cfg *OAuthConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     google.Endpoint,
		Scopes: []string{
			gmailapi.GmailModifyScope,
			gmailapi.GmailSendScope,
			"https://www.googleapis.com/auth/userinfo.email",
		},
	}
}

// newGmailClient builds a Gmail API client for one account from its stored
// credential. The token source refreshes the access token transparently.
func newGmailClient(ctx context.Context, cfg *OAuthConfig, account *models.Account) (*gmailapi.Service, error) {
	token := &oauth2.Token{
		AccessToken:  account.GoogleAccessToken,
		RefreshToken: account.GoogleRefreshToken,
	}
	if account.GoogleTokenExpiry != nil {
		token.Expiry = *account.GoogleTokenExpiry
	}

	tokenSource := OAuth2Config(cfg).TokenSource(ctx, token)
	return gmailapi.NewService(ctx, option.WithTokenSource(tokenSource))
}
