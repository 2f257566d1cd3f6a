package localmail

import (
	"context"
	"strings"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/flowmail/flowmail/interfaces"
	"github.com/flowmail/flowmail/internal/enum"
	custom_errors "github.com/flowmail/flowmail/internal/errors"
	"github.com/flowmail/flowmail/internal/logger"
	"github.com/flowmail/flowmail/internal/models"
	"github.com/flowmail/flowmail/internal/tracing"
	"github.com/flowmail/flowmail/internal/utils"
)

type localMailProvider struct {
	emails         interfaces.EmailRepository
	accounts       interfaces.AccountRepository
	attachmentRepo interfaces.EmailAttachmentRepository
	attachments    interfaces.AttachmentService
	events         interfaces.EventPublisher
	log            logger.Logger
}

// NewLocalMailProvider builds the database-backed mailbox provider. It is
// the unconditional fallback: IsAvailable always reports true.
func NewLocalMailProvider(
	emails interfaces.EmailRepository,
	accounts interfaces.AccountRepository,
	attachmentRepo interfaces.EmailAttachmentRepository,
	attachments interfaces.AttachmentService,
	events interfaces.EventPublisher,
	log logger.Logger,
) interfaces.EmailProvider {
	return &localMailProvider{
		emails:         emails,
		accounts:       accounts,
		attachmentRepo: attachmentRepo,
		attachments:    attachments,
		events:         events,
		log:            log,
	}
}

func (p *localMailProvider) Provider() enum.EmailProvider {
	return enum.EmailProviderLocal
}

func (p *localMailProvider) IsAvailable(ctx context.Context, accountID string) bool {
	return true
}

var folderIcons = map[enum.Folder]string{
	enum.FolderInbox:   "inbox",
	enum.FolderStarred: "star",
	enum.FolderSent:    "send",
	enum.FolderDrafts:  "file",
	enum.FolderArchive: "archive",
	enum.FolderTrash:   "trash",
}

// GetMailboxes reports the six fixed mailboxes. The inbox count is unread
// messages; every other folder reports its total. A failed count yields a
// zero-count entry rather than failing the listing.
func (p *localMailProvider) GetMailboxes(ctx context.Context, accountID string) ([]*models.MailboxInfo, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "localMailProvider.GetMailboxes")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, accountID)
	tracing.TagProvider(span, enum.EmailProviderLocal.String())

	mailboxes := make([]*models.MailboxInfo, 0, len(enum.AllFolders()))
	for _, folder := range enum.AllFolders() {
		var count int64
		var err error
		if folder == enum.FolderInbox {
			count, err = p.emails.CountUnread(ctx, accountID, folder)
		} else {
			count, err = p.emails.CountByFolder(ctx, accountID, folder)
		}
		if err != nil {
			tracing.TraceErr(span, err)
			p.log.Warnf("count failed for %s/%s: %v", accountID, folder, err)
			count = 0
		}

		mailboxes = append(mailboxes, &models.MailboxInfo{
			ID:    folder.String(),
			Name:  strings.Title(folder.String()),
			Count: count,
			Icon:  folderIcons[folder],
		})
	}

	return mailboxes, nil
}

func (p *localMailProvider) GetEmailsByFolder(ctx context.Context, accountID string, folder enum.Folder, page, limit int) (*models.EmailListResponse, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "localMailProvider.GetEmailsByFolder")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, accountID)
	tracing.TagProvider(span, enum.EmailProviderLocal.String())

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}

	emails, total, err := p.emails.ListByFolder(ctx, accountID, folder, limit, (page-1)*limit)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	previews := make([]*models.EmailPreview, 0, len(emails))
	for _, email := range emails {
		previews = append(previews, previewFromEmail(email))
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))

	return &models.EmailListResponse{
		Emails:     previews,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}, nil
}

// GetEmailByID returns the full message and marks it read on first open. The
// read stamp is written once; reopening never changes ReadAt.
func (p *localMailProvider) GetEmailByID(ctx context.Context, accountID, emailID string) (*models.EmailDetail, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "localMailProvider.GetEmailByID")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, accountID)
	tracing.TagEntity(span, emailID)

	if !models.IsLocalEmailID(emailID) {
		return nil, custom_errors.ErrNotFound
	}

	email, err := p.ownedEmail(ctx, accountID, emailID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	if !email.IsRead {
		now := utils.Now()
		err = p.emails.UpdateFields(ctx, emailID, map[string]interface{}{
			"is_read": true,
			"read_at": now,
		})
		if err != nil {
			tracing.TraceErr(span, err)
			return nil, err
		}
		email.IsRead = true
		email.ReadAt = &now
	}

	detail := detailFromEmail(email)
	detail.Attachments = p.attachmentRefs(ctx, span, email)
	detail.HasAttachment = len(detail.Attachments) > 0

	return detail, nil
}

// SendEmail writes the sender's sent copy, then an inbox copy for every
// recipient with a local account. The two writes are independent; a failed
// inbox delivery never rolls back the sent copy.
func (p *localMailProvider) SendEmail(ctx context.Context, accountID string, request interfaces.SendEmailRequest) (*models.SendResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "localMailProvider.SendEmail")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, accountID)

	to := utils.ValidEmails([]string{request.To})
	if len(to) == 0 {
		return nil, custom_errors.ErrNoValidRecipients
	}

	account, err := p.accounts.GetByID(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if account == nil {
		return nil, custom_errors.ErrNotFound
	}

	from := request.FromAddress
	if from == "" {
		from = account.Email
	}

	outgoing := &models.Email{
		AccountID:     accountID,
		MessageID:     utils.GenerateMessageID(utils.ExtractDomainFromEmail(from), ""),
		FromAddress:   from,
		ToAddresses:   to,
		CcAddresses:   utils.ValidEmails(request.Cc),
		BccAddresses:  utils.ValidEmails(request.Bcc),
		Subject:       request.Subject,
		BodyText:      request.BodyText,
		BodyHTML:      request.BodyHTML,
		AttachmentIDs: request.AttachmentIDs,
	}

	return p.deliver(ctx, span, outgoing)
}

func (p *localMailProvider) ReplyToEmail(ctx context.Context, accountID, emailID string, request interfaces.ReplyEmailRequest) (*models.SendResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "localMailProvider.ReplyToEmail")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, accountID)
	tracing.TagEntity(span, emailID)

	if !models.IsLocalEmailID(emailID) {
		return nil, custom_errors.ErrInvalidEmailID
	}

	original, err := p.ownedEmail(ctx, accountID, emailID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	account, err := p.accounts.GetByID(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if account == nil {
		return nil, custom_errors.ErrNotFound
	}

	from := request.FromAddress
	if from == "" {
		from = account.Email
	}

	recipients := resolveReplyRecipients(original, from, request.ReplyAll)
	if len(recipients) == 0 {
		return nil, custom_errors.ErrNoValidRecipients
	}

	outgoing := &models.Email{
		AccountID:     accountID,
		MessageID:     utils.GenerateMessageID(utils.ExtractDomainFromEmail(from), ""),
		InReplyTo:     original.MessageID,
		FromAddress:   from,
		ToAddresses:   recipients,
		Subject:       utils.EnsureReplySubject(original.Subject),
		BodyText:      request.BodyText,
		BodyHTML:      request.BodyHTML,
		AttachmentIDs: request.AttachmentIDs,
	}

	return p.deliver(ctx, span, outgoing)
}

// deliver performs the dual write. Delivery is at-least-once: if the sent
// copy persists but an inbox write fails, no compensation runs.
func (p *localMailProvider) deliver(ctx context.Context, span opentracing.Span, outgoing *models.Email) (*models.SendResult, error) {
	now := utils.Now()
	outgoing.Folder = enum.FolderSent
	outgoing.IsRead = true
	outgoing.ReadAt = &now
	outgoing.SentAt = &now

	sentID, err := p.emails.Create(ctx, outgoing)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	deliveredIDs := []string{sentID}
	for _, address := range recipientAddresses(outgoing) {
		recipient, err := p.accounts.GetByEmail(ctx, address)
		if err != nil {
			tracing.TraceErr(span, err)
			p.log.Errorf("recipient lookup failed for %s: %v", address, err)
			continue
		}
		if recipient == nil || recipient.ID == outgoing.AccountID {
			continue
		}

		inboxCopy := &models.Email{
			AccountID:     recipient.ID,
			MessageID:     outgoing.MessageID,
			InReplyTo:     outgoing.InReplyTo,
			FromAddress:   outgoing.FromAddress,
			ToAddresses:   outgoing.ToAddresses,
			CcAddresses:   outgoing.CcAddresses,
			Subject:       outgoing.Subject,
			BodyText:      outgoing.BodyText,
			BodyHTML:      outgoing.BodyHTML,
			Folder:        enum.FolderInbox,
			SentAt:        outgoing.SentAt,
			AttachmentIDs: outgoing.AttachmentIDs,
		}

		inboxID, err := p.emails.Create(ctx, inboxCopy)
		if err != nil {
			tracing.TraceErr(span, err)
			p.log.Errorf("inbox delivery to %s failed: %v", address, err)
			continue
		}
		deliveredIDs = append(deliveredIDs, inboxID)

		if p.events != nil {
			if err := p.events.PublishEmailReceived(ctx, inboxCopy); err != nil {
				tracing.TraceErr(span, err)
				p.log.Warnf("publish email.received failed: %v", err)
			}
		}
	}

	if len(outgoing.AttachmentIDs) > 0 {
		p.attachments.LinkToEmails(ctx, outgoing.AttachmentIDs, deliveredIDs)
	}

	if p.events != nil {
		if err := p.events.PublishEmailSent(ctx, outgoing); err != nil {
			tracing.TraceErr(span, err)
			p.log.Warnf("publish email.sent failed: %v", err)
		}
	}

	return &models.SendResult{Success: true, MessageID: outgoing.MessageID}, nil
}

func (p *localMailProvider) MarkAsRead(ctx context.Context, accountID, emailID string, isRead bool) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "localMailProvider.MarkAsRead")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, accountID)
	tracing.TagEntity(span, emailID)

	if !models.IsLocalEmailID(emailID) {
		return custom_errors.ErrInvalidEmailID
	}

	email, err := p.ownedEmail(ctx, accountID, emailID)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	fields := map[string]interface{}{"is_read": isRead}
	if isRead && email.ReadAt == nil {
		fields["read_at"] = utils.Now()
	}
	if !isRead {
		fields["read_at"] = nil
	}

	if err := p.emails.UpdateFields(ctx, emailID, fields); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (p *localMailProvider) ToggleStar(ctx context.Context, accountID, emailID string) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "localMailProvider.ToggleStar")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, accountID)
	tracing.TagEntity(span, emailID)

	if !models.IsLocalEmailID(emailID) {
		return false, custom_errors.ErrInvalidEmailID
	}

	email, err := p.ownedEmail(ctx, accountID, emailID)
	if err != nil {
		tracing.TraceErr(span, err)
		return false, err
	}

	starred := !email.IsStarred
	err = p.emails.UpdateFields(ctx, emailID, map[string]interface{}{"is_starred": starred})
	if err != nil {
		tracing.TraceErr(span, err)
		return false, err
	}
	return starred, nil
}

// DeleteEmail moves a message to trash, or removes it permanently when it is
// already there. The hard delete also drops attachments no other message
// references.
func (p *localMailProvider) DeleteEmail(ctx context.Context, accountID, emailID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "localMailProvider.DeleteEmail")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, accountID)
	tracing.TagEntity(span, emailID)

	if !models.IsLocalEmailID(emailID) {
		return custom_errors.ErrInvalidEmailID
	}

	email, err := p.ownedEmail(ctx, accountID, emailID)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	if email.Folder != enum.FolderTrash {
		err = p.emails.UpdateFields(ctx, emailID, map[string]interface{}{"folder": enum.FolderTrash})
		if err != nil {
			tracing.TraceErr(span, err)
			return err
		}
		return nil
	}

	if err := p.emails.Delete(ctx, emailID); err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	p.cleanupAttachments(ctx, span, email)
	return nil
}

func (p *localMailProvider) MoveToFolder(ctx context.Context, accountID, emailID string, folder enum.Folder) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "localMailProvider.MoveToFolder")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, accountID)
	tracing.TagEntity(span, emailID)

	if !models.IsLocalEmailID(emailID) {
		return custom_errors.ErrInvalidEmailID
	}
	// starred is a flag, not a destination
	if !folder.IsValid() || folder == enum.FolderStarred {
		return errors.Wrapf(custom_errors.ErrBadRequest, "cannot move to folder %q", folder)
	}

	if _, err := p.ownedEmail(ctx, accountID, emailID); err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	err := p.emails.UpdateFields(ctx, emailID, map[string]interface{}{"folder": folder})
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

// ownedEmail loads the message and enforces ownership. A message owned by a
// different account is reported as unauthorized, not hidden.
func (p *localMailProvider) ownedEmail(ctx context.Context, accountID, emailID string) (*models.Email, error) {
	email, err := p.emails.GetByID(ctx, emailID)
	if err != nil {
		return nil, err
	}
	if email == nil {
		return nil, custom_errors.ErrNotFound
	}
	if email.AccountID != accountID {
		return nil, custom_errors.ErrUnauthorized
	}
	return email, nil
}

// cleanupAttachments removes attachment records orphaned by a hard delete.
// Failures are logged; the delete already succeeded.
func (p *localMailProvider) cleanupAttachments(ctx context.Context, span opentracing.Span, email *models.Email) {
	for _, attachmentID := range email.AttachmentIDs {
		attachment, err := p.attachmentRepo.GetByID(ctx, attachmentID)
		if err != nil || attachment == nil {
			if err != nil {
				tracing.TraceErr(span, err)
			}
			continue
		}

		remaining := make([]string, 0, len(attachment.Emails))
		for _, linked := range attachment.Emails {
			if linked != email.ID {
				remaining = append(remaining, linked)
			}
		}

		if len(remaining) == 0 {
			if err := p.attachments.Delete(ctx, attachmentID); err != nil {
				tracing.TraceErr(span, err)
				p.log.Warnf("failed to delete orphaned attachment %s: %v", attachmentID, err)
			}
			continue
		}

		attachment.Emails = remaining
		if err := p.attachmentRepo.Update(ctx, attachment); err != nil {
			tracing.TraceErr(span, err)
			p.log.Warnf("failed to unlink attachment %s: %v", attachmentID, err)
		}
	}
}

func (p *localMailProvider) attachmentRefs(ctx context.Context, span opentracing.Span, email *models.Email) []models.AttachmentRef {
	if len(email.AttachmentIDs) == 0 {
		return nil
	}

	refs := make([]models.AttachmentRef, 0, len(email.AttachmentIDs))
	for _, attachmentID := range email.AttachmentIDs {
		attachment, err := p.attachmentRepo.GetByID(ctx, attachmentID)
		if err != nil || attachment == nil {
			if err != nil {
				tracing.TraceErr(span, err)
			}
			continue
		}
		refs = append(refs, models.AttachmentRef{
			ID:          attachment.ID,
			Filename:    attachment.OriginalFilename,
			ContentType: attachment.ContentType,
			Size:        attachment.Size,
		})
	}
	return refs
}

// resolveReplyRecipients computes the reply audience from the stored
// original. replyAll unions sender, To and Cc; the replying address is always
// excluded and duplicates collapse case-insensitively.
func resolveReplyRecipients(original *models.Email, self string, replyAll bool) []string {
	var candidates []string
	if replyAll {
		candidates = append(candidates, original.FromAddress)
		candidates = append(candidates, original.ToAddresses...)
		candidates = append(candidates, original.CcAddresses...)
	} else {
		candidates = []string{original.FromAddress}
	}

	return utils.RemoveEmail(utils.UniqueEmails(candidates), self)
}

func recipientAddresses(email *models.Email) []string {
	var addresses []string
	addresses = append(addresses, email.ToAddresses...)
	addresses = append(addresses, email.CcAddresses...)
	addresses = append(addresses, email.BccAddresses...)
	return utils.UniqueEmails(addresses)
}

func previewFromEmail(email *models.Email) *models.EmailPreview {
	return &models.EmailPreview{
		ID:            email.ID,
		From:          email.FromAddress,
		To:            email.ToAddresses,
		Subject:       email.Subject,
		Preview:       email.Preview,
		IsRead:        email.IsRead,
		IsStarred:     email.IsStarred,
		Folder:        email.Folder.String(),
		SentAt:        email.SentAt,
		HasAttachment: email.HasAttachment,
	}
}

func detailFromEmail(email *models.Email) *models.EmailDetail {
	return &models.EmailDetail{
		ID:            email.ID,
		From:          email.FromAddress,
		To:            email.ToAddresses,
		Cc:            email.CcAddresses,
		Bcc:           email.BccAddresses,
		Subject:       email.Subject,
		BodyText:      email.BodyText,
		BodyHTML:      email.BodyHTML,
		IsRead:        email.IsRead,
		IsStarred:     email.IsStarred,
		Folder:        email.Folder.String(),
		SentAt:        email.SentAt,
		InReplyTo:     email.InReplyTo,
		HasAttachment: email.HasAttachment,
	}
}
