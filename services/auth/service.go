package auth

import (
	"context"
	"strings"

	"github.com/customeros/mailsherpa/mailvalidate"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
	googleoauth "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/flowmail/flowmail/interfaces"
	custom_errors "github.com/flowmail/flowmail/internal/errors"
	"github.com/flowmail/flowmail/internal/logger"
	"github.com/flowmail/flowmail/internal/models"
	"github.com/flowmail/flowmail/internal/tracing"
	"github.com/flowmail/flowmail/internal/utils"
	"github.com/flowmail/flowmail/services/gmail"
)

type authService struct {
	accounts interfaces.AccountRepository
	jwtCfg   *JWTConfig
	oauthCfg *gmail.OAuthConfig
	log      logger.Logger
}

func NewAuthService(accounts interfaces.AccountRepository, jwtCfg *JWTConfig, oauthCfg *gmail.OAuthConfig, log logger.Logger) interfaces.AuthService {
	return &authService{
		accounts: accounts,
		jwtCfg:   jwtCfg,
		oauthCfg: oauthCfg,
		log:      log,
	}
}

func (s *authService) Register(ctx context.Context, username, email, password string) (*models.Account, *models.TokenPair, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "authService.Register")
	defer span.Finish()
	tracing.TagComponentService(span)

	username = strings.TrimSpace(username)
	email = strings.TrimSpace(strings.ToLower(email))

	if username == "" || password == "" {
		return nil, nil, errors.Wrap(custom_errors.ErrBadRequest, "username and password are required")
	}
	if len(password) < 8 {
		return nil, nil, errors.Wrap(custom_errors.ErrBadRequest, "password must be at least 8 characters")
	}

	validation := mailvalidate.ValidateEmailSyntax(email)
	if !validation.IsValid {
		return nil, nil, errors.Wrap(custom_errors.ErrBadRequest, "invalid email address")
	}
	email = validation.CleanEmail

	if existing, err := s.accounts.GetByEmail(ctx, email); err != nil {
		tracing.TraceErr(span, err)
		return nil, nil, err
	} else if existing != nil {
		return nil, nil, errors.Wrap(custom_errors.ErrBadRequest, "email already registered")
	}
	if existing, err := s.accounts.GetByUsername(ctx, username); err != nil {
		tracing.TraceErr(span, err)
		return nil, nil, err
	} else if existing != nil {
		return nil, nil, errors.Wrap(custom_errors.ErrBadRequest, "username already taken")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, nil, errors.Wrap(err, "failed to hash password")
	}

	account := &models.Account{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
	}
	if _, err := s.accounts.Create(ctx, account); err != nil {
		tracing.TraceErr(span, err)
		return nil, nil, err
	}

	tokens, err := generateTokenPair(s.jwtCfg, account)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, nil, err
	}
	return account, tokens, nil
}

func (s *authService) Login(ctx context.Context, login, password string) (*models.Account, *models.TokenPair, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "authService.Login")
	defer span.Finish()
	tracing.TagComponentService(span)

	account, err := s.findByLogin(ctx, strings.TrimSpace(login))
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, nil, err
	}
	// Same failure for unknown account and wrong password.
	if account == nil || account.PasswordHash == "" {
		return nil, nil, errors.Wrap(custom_errors.ErrUnauthorized, "invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, nil, errors.Wrap(custom_errors.ErrUnauthorized, "invalid credentials")
	}

	tokens, err := generateTokenPair(s.jwtCfg, account)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, nil, err
	}
	return account, tokens, nil
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "authService.Refresh")
	defer span.Finish()
	tracing.TagComponentService(span)

	claims, err := parseToken(s.jwtCfg, refreshToken, tokenTypeRefresh)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	account, err := s.accounts.GetByID(ctx, claims.AccountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if account == nil {
		return nil, errors.Wrap(custom_errors.ErrUnauthorized, "account no longer exists")
	}

	return generateTokenPair(s.jwtCfg, account)
}

func (s *authService) GoogleAuthURL(state string) (string, error) {
	if !s.oauthCfg.IsConfigured() {
		return "", errors.Wrap(custom_errors.ErrUnavailable, "google oauth is not configured")
	}
	// Offline access with forced consent so a refresh token is issued.
	return gmail.OAuth2Config(s.oauthCfg).AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	), nil
}

func (s *authService) HandleGoogleCallback(ctx context.Context, code string) (*models.Account, *models.TokenPair, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "authService.HandleGoogleCallback")
	defer span.Finish()
	tracing.TagComponentService(span)

	if !s.oauthCfg.IsConfigured() {
		return nil, nil, errors.Wrap(custom_errors.ErrUnavailable, "google oauth is not configured")
	}
	if code == "" {
		return nil, nil, errors.Wrap(custom_errors.ErrBadRequest, "authorization code is required")
	}

	oauthConfig := gmail.OAuth2Config(s.oauthCfg)
	token, err := oauthConfig.Exchange(ctx, code)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, nil, custom_errors.NewUpstreamError("google.oauth.exchange", 0, err)
	}

	userinfo, err := s.fetchUserinfo(ctx, oauthConfig, token)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, nil, err
	}

	account, err := s.findOrCreateGoogleAccount(ctx, userinfo)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, nil, err
	}

	tokenExpiry := token.Expiry.UTC()
	err = s.accounts.UpdateGoogleCredential(ctx, account.ID, userinfo.Id, token.AccessToken, token.RefreshToken, &tokenExpiry)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, nil, err
	}

	tokens, err := generateTokenPair(s.jwtCfg, account)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, nil, err
	}
	return account, tokens, nil
}

func (s *authService) fetchUserinfo(ctx context.Context, oauthConfig *oauth2.Config, token *oauth2.Token) (*googleoauth.Userinfo, error) {
	service, err := googleoauth.NewService(ctx, option.WithTokenSource(oauthConfig.TokenSource(ctx, token)))
	if err != nil {
		return nil, custom_errors.NewUpstreamError("google.oauth.userinfo", 0, err)
	}

	userinfo, err := service.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, custom_errors.NewUpstreamError("google.oauth.userinfo", 0, err)
	}
	if userinfo.Email == "" {
		return nil, errors.Wrap(custom_errors.ErrBadRequest, "google account has no email")
	}
	return userinfo, nil
}

// findOrCreateGoogleAccount resolves the callback identity: match by Google
// id first, then by email (linking an existing local account), otherwise
// register a fresh account with no password.
func (s *authService) findOrCreateGoogleAccount(ctx context.Context, userinfo *googleoauth.Userinfo) (*models.Account, error) {
	account, err := s.accounts.GetByGoogleID(ctx, userinfo.Id)
	if err != nil {
		return nil, err
	}
	if account != nil {
		return account, nil
	}

	email := strings.ToLower(userinfo.Email)
	account, err = s.accounts.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if account != nil {
		return account, nil
	}

	account = &models.Account{
		Username: s.availableUsername(ctx, email),
		Email:    email,
		GoogleID: userinfo.Id,
	}
	if _, err := s.accounts.Create(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

func (s *authService) availableUsername(ctx context.Context, email string) string {
	base := email
	if at := strings.Index(email, "@"); at > 0 {
		base = email[:at]
	}

	existing, err := s.accounts.GetByUsername(ctx, base)
	if err == nil && existing == nil {
		return base
	}
	return utils.GenerateNanoIDWithPrefix(base, 6)
}

func (s *authService) findByLogin(ctx context.Context, login string) (*models.Account, error) {
	if strings.Contains(login, "@") {
		return s.accounts.GetByEmail(ctx, strings.ToLower(login))
	}
	return s.accounts.GetByUsername(ctx, login)
}
