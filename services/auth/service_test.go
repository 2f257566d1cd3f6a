package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	custom_errors "github.com/flowmail/flowmail/internal/errors"
	"github.com/flowmail/flowmail/internal/logger"
	"github.com/flowmail/flowmail/internal/models"
	"github.com/flowmail/flowmail/internal/utils"
	"github.com/flowmail/flowmail/services/gmail"
)

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

type fakeAccountRepo struct {
	accounts map[string]*models.Account
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{accounts: map[string]*models.Account{}}
}

func (r *fakeAccountRepo) Create(ctx context.Context, account *models.Account) (string, error) {
	if account.ID == "" {
		account.ID = utils.GenerateNanoIDWithPrefix("acct", 16)
	}
	r.accounts[account.ID] = account
	return account.ID, nil
}

func (r *fakeAccountRepo) GetByID(ctx context.Context, id string) (*models.Account, error) {
	return r.accounts[id], nil
}

func (r *fakeAccountRepo) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	for _, account := range r.accounts {
		if strings.EqualFold(account.Email, email) {
			return account, nil
		}
	}
	return nil, nil
}

func (r *fakeAccountRepo) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	for _, account := range r.accounts {
		if account.Username == username {
			return account, nil
		}
	}
	return nil, nil
}

func (r *fakeAccountRepo) GetByGoogleID(ctx context.Context, googleID string) (*models.Account, error) {
	for _, account := range r.accounts {
		if account.GoogleID != "" && account.GoogleID == googleID {
			return account, nil
		}
	}
	return nil, nil
}

func (r *fakeAccountRepo) Update(ctx context.Context, account *models.Account) error {
	r.accounts[account.ID] = account
	return nil
}

func (r *fakeAccountRepo) UpdateGoogleCredential(ctx context.Context, accountID, googleID, accessToken, refreshToken string, expiry *time.Time) error {
	account, ok := r.accounts[accountID]
	if !ok {
		return custom_errors.ErrNotFound
	}
	account.GoogleID = googleID
	account.GoogleAccessToken = accessToken
	if refreshToken != "" {
		account.GoogleRefreshToken = refreshToken
	}
	account.GoogleTokenExpiry = expiry
	return nil
}

func testJWTConfig() *JWTConfig {
	return &JWTConfig{Secret: "test-secret", Issuer: "flowmail-test"}
}

func newTestService(repo *fakeAccountRepo, oauthCfg *gmail.OAuthConfig) *authService {
	return NewAuthService(repo, testJWTConfig(), oauthCfg, getLogger()).(*authService)
}

func TestRegister_CreatesAccountWithHashedPassword(t *testing.T) {
	ctx := context.Background()
	repo := newFakeAccountRepo()
	service := newTestService(repo, &gmail.OAuthConfig{})

	account, tokens, err := service.Register(ctx, "alice", "Alice@FlowMail.dev", "supersecret")
	require.NoError(t, err)
	require.NotNil(t, tokens)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
	assert.Equal(t, int64(AccessTokenTTL.Seconds()), tokens.ExpiresIn)

	assert.Equal(t, "alice@flowmail.dev", account.Email)
	assert.NotEqual(t, "supersecret", account.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte("supersecret")))
}

func TestRegister_RejectsDuplicatesAndBadInput(t *testing.T) {
	ctx := context.Background()
	repo := newFakeAccountRepo()
	service := newTestService(repo, &gmail.OAuthConfig{})

	_, _, err := service.Register(ctx, "alice", "alice@flowmail.dev", "supersecret")
	require.NoError(t, err)

	_, _, err = service.Register(ctx, "alice2", "alice@flowmail.dev", "supersecret")
	assert.ErrorIs(t, err, custom_errors.ErrBadRequest)

	_, _, err = service.Register(ctx, "alice", "other@flowmail.dev", "supersecret")
	assert.ErrorIs(t, err, custom_errors.ErrBadRequest)

	_, _, err = service.Register(ctx, "bob", "not-an-email", "supersecret")
	assert.ErrorIs(t, err, custom_errors.ErrBadRequest)

	_, _, err = service.Register(ctx, "bob", "bob@flowmail.dev", "short")
	assert.ErrorIs(t, err, custom_errors.ErrBadRequest)
}

func TestLogin_ByUsernameAndEmail(t *testing.T) {
	ctx := context.Background()
	repo := newFakeAccountRepo()
	service := newTestService(repo, &gmail.OAuthConfig{})

	_, _, err := service.Register(ctx, "alice", "alice@flowmail.dev", "supersecret")
	require.NoError(t, err)

	account, tokens, err := service.Login(ctx, "alice", "supersecret")
	require.NoError(t, err)
	assert.Equal(t, "alice", account.Username)
	assert.NotEmpty(t, tokens.AccessToken)

	_, _, err = service.Login(ctx, "ALICE@flowmail.dev", "supersecret")
	require.NoError(t, err)
}

func TestLogin_WrongPassword(t *testing.T) {
	ctx := context.Background()
	repo := newFakeAccountRepo()
	service := newTestService(repo, &gmail.OAuthConfig{})

	_, _, err := service.Register(ctx, "alice", "alice@flowmail.dev", "supersecret")
	require.NoError(t, err)

	_, _, err = service.Login(ctx, "alice", "wrongpass")
	assert.ErrorIs(t, err, custom_errors.ErrUnauthorized)

	_, _, err = service.Login(ctx, "nobody", "supersecret")
	assert.ErrorIs(t, err, custom_errors.ErrUnauthorized)
}

func TestRefresh_IssuesNewPair(t *testing.T) {
	ctx := context.Background()
	repo := newFakeAccountRepo()
	service := newTestService(repo, &gmail.OAuthConfig{})

	_, tokens, err := service.Register(ctx, "alice", "alice@flowmail.dev", "supersecret")
	require.NoError(t, err)

	refreshed, err := service.Refresh(ctx, tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.NotEmpty(t, refreshed.RefreshToken)
}

// An access token must never be accepted where a refresh token is expected,
// and vice versa.
func TestTokenTypeDiscrimination(t *testing.T) {
	ctx := context.Background()
	repo := newFakeAccountRepo()
	service := newTestService(repo, &gmail.OAuthConfig{})

	_, tokens, err := service.Register(ctx, "alice", "alice@flowmail.dev", "supersecret")
	require.NoError(t, err)

	_, err = service.Refresh(ctx, tokens.AccessToken)
	assert.ErrorIs(t, err, custom_errors.ErrUnauthorized)

	_, err = ParseAccessToken(testJWTConfig(), tokens.RefreshToken)
	assert.ErrorIs(t, err, custom_errors.ErrUnauthorized)
}

func TestParseAccessToken_Claims(t *testing.T) {
	ctx := context.Background()
	repo := newFakeAccountRepo()
	service := newTestService(repo, &gmail.OAuthConfig{})

	account, tokens, err := service.Register(ctx, "alice", "alice@flowmail.dev", "supersecret")
	require.NoError(t, err)

	claims, err := ParseAccessToken(testJWTConfig(), tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, account.ID, claims.AccountID)
	assert.Equal(t, "alice@flowmail.dev", claims.Email)
}

func TestParseAccessToken_WrongSecret(t *testing.T) {
	ctx := context.Background()
	repo := newFakeAccountRepo()
	service := newTestService(repo, &gmail.OAuthConfig{})

	_, tokens, err := service.Register(ctx, "alice", "alice@flowmail.dev", "supersecret")
	require.NoError(t, err)

	_, err = ParseAccessToken(&JWTConfig{Secret: "other-secret"}, tokens.AccessToken)
	assert.ErrorIs(t, err, custom_errors.ErrUnauthorized)
}

func TestGoogleAuthURL_UnconfiguredIsUnavailable(t *testing.T) {
	service := newTestService(newFakeAccountRepo(), &gmail.OAuthConfig{})

	_, err := service.GoogleAuthURL("state123")
	assert.ErrorIs(t, err, custom_errors.ErrUnavailable)
}

func TestGoogleAuthURL_Configured(t *testing.T) {
	service := newTestService(newFakeAccountRepo(), &gmail.OAuthConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "https://flowmail.dev/callback",
	})

	url, err := service.GoogleAuthURL("state123")
	require.NoError(t, err)
	assert.Contains(t, url, "state=state123")
	assert.Contains(t, url, "access_type=offline")
}
