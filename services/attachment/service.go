package attachment

import (
	"context"
	"encoding/base64"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/flowmail/flowmail/interfaces"
	"github.com/flowmail/flowmail/internal/enum"
	custom_errors "github.com/flowmail/flowmail/internal/errors"
	"github.com/flowmail/flowmail/internal/logger"
	"github.com/flowmail/flowmail/internal/models"
	"github.com/flowmail/flowmail/internal/tracing"
	"github.com/flowmail/flowmail/services/storage"
)

// InlineSizeLimit caps attachments stored inline in the database when object
// storage is unconfigured.
const InlineSizeLimit = 5 * 1024 * 1024

type attachmentService struct {
	repository interfaces.EmailAttachmentRepository
	storage    interfaces.StorageService
	log        logger.Logger
}

func NewAttachmentService(repo interfaces.EmailAttachmentRepository, storageService interfaces.StorageService, log logger.Logger) interfaces.AttachmentService {
	if storageService == nil {
		storageService = storage.NewObjectStorageService(nil, "")
	}
	return &attachmentService{
		repository: repo,
		storage:    storageService,
		log:        log,
	}
}

func (s *attachmentService) Upload(ctx context.Context, content []byte, filename, contentType string) (*models.AttachmentRef, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "attachmentService.Upload")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	if len(content) == 0 {
		return nil, custom_errors.ErrEmptyAttachment
	}
	if filename == "" {
		return nil, errors.Wrap(custom_errors.ErrBadRequest, "filename is required")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	record := &models.EmailAttachment{
		Filename:         generateFilename(filename),
		OriginalFilename: filename,
		ContentType:      contentType,
		Size:             len(content),
	}

	// The capability probe decides the storage medium at point of use.
	if !s.storage.IsAvailable() {
		if len(content) > InlineSizeLimit {
			return nil, errors.Wrapf(custom_errors.ErrBadRequest,
				"attachment exceeds inline storage limit of %d bytes", InlineSizeLimit)
		}
		record.StorageKind = enum.StorageKindInline
		record.InlineContent = base64.StdEncoding.EncodeToString(content)
	} else {
		record.StorageKind = enum.StorageKindS3
		record.StorageBucket = s.storage.Bucket()
	}

	id, err := s.repository.Create(ctx, record)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	if record.StorageKind == enum.StorageKindS3 {
		record.StorageKey = fmt.Sprintf("attachments/%s/%s", id, record.Filename)
		if err := s.storage.Upload(ctx, record.StorageKey, content, contentType); err != nil {
			tracing.TraceErr(span, err)
			// Keep metadata and storage consistent: drop the orphaned record.
			if delErr := s.repository.Delete(ctx, id); delErr != nil {
				tracing.TraceErr(span, delErr)
			}
			return nil, errors.Wrap(err, "failed to upload attachment")
		}
		if err := s.repository.Update(ctx, record); err != nil {
			tracing.TraceErr(span, err)
			return nil, err
		}
	}

	return &models.AttachmentRef{
		ID:          id,
		Filename:    record.OriginalFilename,
		ContentType: record.ContentType,
		Size:        record.Size,
	}, nil
}

func (s *attachmentService) GetContent(ctx context.Context, attachmentID string) ([]byte, *models.EmailAttachment, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "attachmentService.GetContent")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, attachmentID)

	attachment, err := s.repository.GetByID(ctx, attachmentID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, nil, err
	}
	if attachment == nil {
		return nil, nil, custom_errors.ErrNotFound
	}

	switch attachment.StorageKind {
	case enum.StorageKindInline:
		content, err := base64.StdEncoding.DecodeString(attachment.InlineContent)
		if err != nil {
			tracing.TraceErr(span, err)
			return nil, nil, errors.Wrap(err, "failed to decode inline attachment")
		}
		return content, attachment, nil
	case enum.StorageKindS3:
		content, err := s.storage.Download(ctx, attachment.StorageKey)
		if err != nil {
			tracing.TraceErr(span, err)
			return nil, nil, errors.Wrap(err, "failed to download attachment")
		}
		return content, attachment, nil
	default:
		err := errors.Errorf("unknown storage kind %q", attachment.StorageKind)
		tracing.TraceErr(span, err)
		return nil, nil, err
	}
}

func (s *attachmentService) LinkToEmails(ctx context.Context, attachmentIDs []string, emailIDs []string) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "attachmentService.LinkToEmails")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	for _, attachmentID := range attachmentIDs {
		for _, emailID := range emailIDs {
			if err := s.repository.LinkToEmail(ctx, attachmentID, emailID); err != nil {
				tracing.TraceErr(span, err)
				s.log.Errorf("failed to link attachment %s to email %s: %v", attachmentID, emailID, err)
			}
		}
	}
}

func (s *attachmentService) Delete(ctx context.Context, attachmentID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "attachmentService.Delete")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, attachmentID)

	attachment, err := s.repository.GetByID(ctx, attachmentID)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	if attachment == nil {
		return nil // already deleted
	}

	if attachment.StorageKind == enum.StorageKindS3 && attachment.StorageKey != "" {
		if err := s.storage.Delete(ctx, attachment.StorageKey); err != nil {
			tracing.TraceErr(span, err)
			s.log.Errorf("failed to delete attachment %s from storage: %v", attachmentID, err)
		}
	}

	return s.repository.Delete(ctx, attachmentID)
}

// generateFilename keeps the original extension on a collision-resistant name.
func generateFilename(original string) string {
	ext := filepath.Ext(original)
	return uuid.NewString() + ext
}
