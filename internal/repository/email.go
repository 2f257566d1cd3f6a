package repository

import (
	"context"
	"errors"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/flowmail/flowmail/interfaces"
	"github.com/flowmail/flowmail/internal/enum"
	"github.com/flowmail/flowmail/internal/models"
	"github.com/flowmail/flowmail/internal/tracing"
	"github.com/flowmail/flowmail/internal/utils"
)

type emailRepository struct {
	db *gorm.DB
}

func NewEmailRepository(db *gorm.DB) interfaces.EmailRepository {
	return &emailRepository{
		db: db,
	}
}

func (r *emailRepository) Create(ctx context.Context, email *models.Email) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if email == nil {
		return "", ErrInvalidInput
	}

	result := r.db.WithContext(ctx).Create(email)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return "", result.Error
	}

	return email.ID, nil
}

func (r *emailRepository) GetByID(ctx context.Context, id string) (*models.Email, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var email models.Email
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &email, nil
}

// folderScope compiles a folder into its query predicate. Folder "starred"
// means "is_starred = true" regardless of the actual folder.
func folderScope(db *gorm.DB, accountID string, folder enum.Folder) *gorm.DB {
	query := db.Where("account_id = ?", accountID)
	if folder == enum.FolderStarred {
		return query.Where("is_starred = ?", true)
	}
	return query.Where("folder = ?", folder.String())
}

func (r *emailRepository) ListByFolder(ctx context.Context, accountID string, folder enum.Folder, limit, offset int) ([]*models.Email, int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.ListByFolder")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, accountID)

	var emails []*models.Email
	var count int64

	if err := folderScope(r.db.WithContext(ctx).Model(&models.Email{}), accountID, folder).
		Count(&count).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, 0, err
	}

	if err := folderScope(r.db.WithContext(ctx), accountID, folder).
		Order("sent_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&emails).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, 0, err
	}

	return emails, count, nil
}

func (r *emailRepository) CountByFolder(ctx context.Context, accountID string, folder enum.Folder) (int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.CountByFolder")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var count int64
	if err := folderScope(r.db.WithContext(ctx).Model(&models.Email{}), accountID, folder).
		Count(&count).Error; err != nil {
		tracing.TraceErr(span, err)
		return 0, err
	}
	return count, nil
}

func (r *emailRepository) CountUnread(ctx context.Context, accountID string, folder enum.Folder) (int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.CountUnread")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var count int64
	if err := folderScope(r.db.WithContext(ctx).Model(&models.Email{}), accountID, folder).
		Where("is_read = ?", false).
		Count(&count).Error; err != nil {
		tracing.TraceErr(span, err)
		return 0, err
	}
	return count, nil
}

func (r *emailRepository) Update(ctx context.Context, email *models.Email) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.Update")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if email == nil || email.ID == "" {
		return ErrInvalidInput
	}

	email.UpdatedAt = utils.Now()
	if err := r.db.WithContext(ctx).Save(email).Error; err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *emailRepository) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.UpdateFields")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)

	if id == "" || len(fields) == 0 {
		return ErrInvalidInput
	}

	fields["updated_at"] = utils.Now()

	result := r.db.WithContext(ctx).
		Model(&models.Email{}).
		Where("id = ?", id).
		Updates(fields)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrEmailNotFound
	}
	return nil
}

// Delete removes the row permanently. The trash-first lifecycle lives in the
// local provider; by the time this runs the message is already in trash.
func (r *emailRepository) Delete(ctx context.Context, id string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.Delete")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)

	if id == "" {
		return ErrInvalidInput
	}

	if err := r.db.WithContext(ctx).Delete(&models.Email{}, "id = ?", id).Error; err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}
