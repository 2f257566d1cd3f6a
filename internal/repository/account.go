package repository

import (
	"context"
	"errors"
	"time"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/flowmail/flowmail/interfaces"
	"github.com/flowmail/flowmail/internal/models"
	"github.com/flowmail/flowmail/internal/tracing"
	"github.com/flowmail/flowmail/internal/utils"
)

type accountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) interfaces.AccountRepository {
	return &accountRepository{
		db: db,
	}
}

func (r *accountRepository) Create(ctx context.Context, account *models.Account) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "accountRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if account == nil {
		return "", ErrInvalidInput
	}

	result := r.db.WithContext(ctx).Create(account)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return "", result.Error
	}

	return account.ID, nil
}

func (r *accountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "accountRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	return r.getOne(ctx, span, "id = ?", id)
}

func (r *accountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "accountRepository.GetByEmail")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	return r.getOne(ctx, span, "lower(email) = lower(?)", email)
}

func (r *accountRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "accountRepository.GetByUsername")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	return r.getOne(ctx, span, "username = ?", username)
}

func (r *accountRepository) GetByGoogleID(ctx context.Context, googleID string) (*models.Account, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "accountRepository.GetByGoogleID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	return r.getOne(ctx, span, "google_id = ?", googleID)
}

func (r *accountRepository) getOne(ctx context.Context, span opentracing.Span, query string, arg string) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).Where(query, arg).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) Update(ctx context.Context, account *models.Account) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "accountRepository.Update")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if account == nil || account.ID == "" {
		return ErrInvalidInput
	}

	account.UpdatedAt = utils.Now()
	if err := r.db.WithContext(ctx).Save(account).Error; err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *accountRepository) UpdateGoogleCredential(ctx context.Context, accountID, googleID, accessToken, refreshToken string, expiry *time.Time) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "accountRepository.UpdateGoogleCredential")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, accountID)

	if accountID == "" {
		return ErrInvalidInput
	}

	updates := map[string]interface{}{
		"google_id":           googleID,
		"google_access_token": accessToken,
		"google_token_expiry": expiry,
		"updated_at":          utils.Now(),
	}
	// A refresh token is only issued on first consent; never blank it out on
	// re-link.
	if refreshToken != "" {
		updates["google_refresh_token"] = refreshToken
	}

	result := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", accountID).
		Updates(updates)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}
