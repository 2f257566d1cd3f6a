package repository

import (
	"context"
	"errors"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/flowmail/flowmail/interfaces"
	"github.com/flowmail/flowmail/internal/models"
	"github.com/flowmail/flowmail/internal/tracing"
	"github.com/flowmail/flowmail/internal/utils"
)

type emailAttachmentRepository struct {
	db *gorm.DB
}

func NewEmailAttachmentRepository(db *gorm.DB) interfaces.EmailAttachmentRepository {
	return &emailAttachmentRepository{
		db: db,
	}
}

func (r *emailAttachmentRepository) Create(ctx context.Context, attachment *models.EmailAttachment) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAttachmentRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if attachment == nil {
		return "", ErrInvalidInput
	}

	if err := r.db.WithContext(ctx).Create(attachment).Error; err != nil {
		tracing.TraceErr(span, err)
		return "", err
	}
	return attachment.ID, nil
}

func (r *emailAttachmentRepository) GetByID(ctx context.Context, id string) (*models.EmailAttachment, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAttachmentRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var attachment models.EmailAttachment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&attachment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &attachment, nil
}

func (r *emailAttachmentRepository) ListByEmail(ctx context.Context, emailID string) ([]*models.EmailAttachment, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAttachmentRepository.ListByEmail")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, emailID)

	var attachments []*models.EmailAttachment
	err := r.db.WithContext(ctx).
		Where("? = ANY(emails)", emailID).
		Find(&attachments).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return attachments, nil
}

// LinkToEmail appends emailID to the attachment's email list. Appending
// rather than replacing keeps the sent and inbox copies of a dual-write both
// pointing at the same attachment row.
func (r *emailAttachmentRepository) LinkToEmail(ctx context.Context, attachmentID, emailID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAttachmentRepository.LinkToEmail")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, attachmentID)

	if attachmentID == "" || emailID == "" {
		return ErrInvalidInput
	}

	attachment, err := r.GetByID(ctx, attachmentID)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	if attachment == nil {
		return gorm.ErrRecordNotFound
	}

	for _, linked := range attachment.Emails {
		if linked == emailID {
			return nil
		}
	}

	attachment.Emails = append(attachment.Emails, emailID)
	attachment.UpdatedAt = utils.Now()
	if err := r.db.WithContext(ctx).Save(attachment).Error; err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *emailAttachmentRepository) Update(ctx context.Context, attachment *models.EmailAttachment) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAttachmentRepository.Update")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if attachment == nil || attachment.ID == "" {
		return ErrInvalidInput
	}

	attachment.UpdatedAt = utils.Now()
	if err := r.db.WithContext(ctx).Save(attachment).Error; err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *emailAttachmentRepository) Delete(ctx context.Context, id string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAttachmentRepository.Delete")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)

	if err := r.db.WithContext(ctx).Delete(&models.EmailAttachment{}, "id = ?", id).Error; err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}
