package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	custom_errors "github.com/flowmail/flowmail/internal/errors"
	"github.com/flowmail/flowmail/internal/models"
	"github.com/flowmail/flowmail/internal/utils"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"

	AccessTokenTTL  = 15 * time.Minute
	RefreshTokenTTL = 7 * 24 * time.Hour
)

type JWTConfig struct {
	Secret string `env:"JWT_SECRET,required"`
	Issuer string `env:"JWT_ISSUER" envDefault:"flowmail"`
}

// Claims carries the account identity plus a token type discriminator so a
// refresh token can never pass as an access token.
type Claims struct {
	AccountID string `json:"accountId"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

func generateTokenPair(cfg *JWTConfig, account *models.Account) (*models.TokenPair, error) {
	now := utils.Now()

	access, err := signToken(cfg, account, tokenTypeAccess, now, AccessTokenTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := signToken(cfg, account, tokenTypeRefresh, now, RefreshTokenTTL)
	if err != nil {
		return nil, err
	}

	return &models.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(AccessTokenTTL.Seconds()),
	}, nil
}

func signToken(cfg *JWTConfig, account *models.Account, tokenType string, now time.Time, ttl time.Duration) (string, error) {
	claims := Claims{
		AccountID: account.ID,
		Email:     account.Email,
		Role:      account.Role.String(),
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   account.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token")
	}
	return signed, nil
}

func parseToken(cfg *JWTConfig, tokenString, expectedType string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(cfg.Secret), nil
	})
	if err != nil || !token.Valid {
		return nil, errors.Wrap(custom_errors.ErrUnauthorized, "invalid token")
	}
	if claims.TokenType != expectedType {
		return nil, errors.Wrapf(custom_errors.ErrUnauthorized, "expected %s token", expectedType)
	}
	return claims, nil
}

// ParseAccessToken validates an access token and rejects refresh tokens.
func ParseAccessToken(cfg *JWTConfig, tokenString string) (*Claims, error) {
	return parseToken(cfg, tokenString, tokenTypeAccess)
}
