package gmail

import (
	"context"
	"encoding/base64"
	"net/mail"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"

	"github.com/flowmail/flowmail/interfaces"
	"github.com/flowmail/flowmail/internal/enum"
	custom_errors "github.com/flowmail/flowmail/internal/errors"
	"github.com/flowmail/flowmail/internal/logger"
	"github.com/flowmail/flowmail/internal/models"
	"github.com/flowmail/flowmail/internal/tracing"
	"github.com/flowmail/flowmail/internal/utils"
)

const gmailUser = "me"

var metadataHeaders = []string{"From", "To", "Cc", "Subject", "Date", "Message-ID", "In-Reply-To", "References"}

type gmailProvider struct {
	cfg         *OAuthConfig
	accounts    interfaces.AccountRepository
	attachments interfaces.AttachmentService
	log         logger.Logger
}

// NewGmailProvider builds the remote mailbox provider. Every operation
// resolves the account's stored OAuth credential into a fresh API client;
// nothing is cached across requests.
func NewGmailProvider(cfg *OAuthConfig, accounts interfaces.AccountRepository, attachments interfaces.AttachmentService, log logger.Logger) interfaces.EmailProvider {
	return &gmailProvider{
		cfg:         cfg,
		accounts:    accounts,
		attachments: attachments,
		log:         log,
	}
}

func (p *gmailProvider) Provider() enum.EmailProvider {
	return enum.EmailProviderGmail
}

func (p *gmailProvider) IsAvailable(ctx context.Context, accountID string) bool {
	if !p.cfg.IsConfigured() {
		return false
	}
	account, err := p.accounts.GetByID(ctx, accountID)
	if err != nil || account == nil {
		return false
	}
	return account.HasGmailCredential()
}

func (p *gmailProvider) clientFor(ctx context.Context, accountID string) (*gmailapi.Service, *models.Account, error) {
	account, err := p.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}
	if account == nil {
		return nil, nil, custom_errors.ErrNotFound
	}
	if !p.cfg.IsConfigured() || !account.HasGmailCredential() {
		return nil, nil, errors.Wrap(custom_errors.ErrUnavailable, "no gmail credential on file")
	}

	client, err := newGmailClient(ctx, p.cfg, account)
	if err != nil {
		return nil, nil, translateErr("gmail.newClient", err)
	}
	return client, account, nil
}

// translateErr maps upstream failures into the provider error taxonomy:
// 404s become not-found, everything else an upstream error carrying the
// status when determinable.
func translateErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == 404 {
			return custom_errors.ErrNotFound
		}
		return custom_errors.NewUpstreamError(op, apiErr.Code, err)
	}
	return custom_errors.NewUpstreamError(op, 0, err)
}

var folderIcons = map[enum.Folder]string{
	enum.FolderInbox:   "inbox",
	enum.FolderStarred: "star",
	enum.FolderSent:    "send",
	enum.FolderDrafts:  "file",
	enum.FolderArchive: "archive",
	enum.FolderTrash:   "trash",
}

// GetMailboxes reports the six fixed mailboxes with live label counts. Count
// lookups are read-path fall-through: a failed label fetch yields a
// zero-count entry instead of failing the listing.
func (p *gmailProvider) GetMailboxes(ctx context.Context, accountID string) ([]*models.MailboxInfo, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "gmailProvider.GetMailboxes")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, accountID)
	tracing.TagProvider(span, enum.EmailProviderGmail.String())

	client, _, err := p.clientFor(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	mailboxes := make([]*models.MailboxInfo, 0, len(enum.AllFolders()))
	for _, folder := range enum.AllFolders() {
		info := &models.MailboxInfo{
			ID:   folder.String(),
			Name: strings.Title(folder.String()),
			Icon: folderIcons[folder],
		}

		label := FolderToLabel(folder)
		if label != "" {
			upstream, err := client.Users.Labels.Get(gmailUser, label).Context(ctx).Do()
			if err != nil {
				tracing.TraceErr(span, translateErr("gmail.labels.get", err))
				p.log.Warnf("gmail label count failed for %s/%s: %v", accountID, label, err)
			} else if folder == enum.FolderInbox {
				info.Count = upstream.MessagesUnread
			} else {
				info.Count = upstream.MessagesTotal
			}
		}

		mailboxes = append(mailboxes, info)
	}

	return mailboxes, nil
}

func (p *gmailProvider) GetEmailsByFolder(ctx context.Context, accountID string, folder enum.Folder, page, limit int) (*models.EmailListResponse, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "gmailProvider.GetEmailsByFolder")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, accountID)
	tracing.TagProvider(span, enum.EmailProviderGmail.String())

	client, _, err := p.clientFor(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}

	call := client.Users.Messages.List(gmailUser).
		MaxResults(int64(page * limit)).
		Context(ctx)
	if label := FolderToLabel(folder); label != "" {
		call = call.LabelIds(label)
	}

	listResponse, err := call.Do()
	if err != nil {
		err = translateErr("gmail.messages.list", err)
		tracing.TraceErr(span, err)
		return nil, err
	}

	// Offset pagination over the upstream id stream; ordering is whatever
	// the API returned.
	skip := (page - 1) * limit
	ids := listResponse.Messages
	if skip < len(ids) {
		ids = ids[skip:]
	} else {
		ids = nil
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}

	previews := make([]*models.EmailPreview, 0, len(ids))
	for _, ref := range ids {
		message, err := client.Users.Messages.Get(gmailUser, ref.Id).
			Format("metadata").
			MetadataHeaders(metadataHeaders...).
			Context(ctx).
			Do()
		if err != nil {
			// One unfetchable message does not abort the listing.
			tracing.TraceErr(span, translateErr("gmail.messages.get", err))
			continue
		}
		previews = append(previews, previewFromMessage(message))
	}

	total := listResponse.ResultSizeEstimate
	totalPages := int((total + int64(limit) - 1) / int64(limit))

	return &models.EmailListResponse{
		Emails:     previews,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}, nil
}

func (p *gmailProvider) GetEmailByID(ctx context.Context, accountID, emailID string) (*models.EmailDetail, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "gmailProvider.GetEmailByID")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, accountID)
	tracing.TagEntity(span, emailID)

	client, _, err := p.clientFor(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	message, err := client.Users.Messages.Get(gmailUser, emailID).Format("full").Context(ctx).Do()
	if err != nil {
		err = translateErr("gmail.messages.get", err)
		tracing.TraceErr(span, err)
		return nil, err
	}

	detail := detailFromMessage(message)

	// Opening a message marks it read upstream; the fetched copy reflects
	// the new state even if the label change lags.
	if hasLabel(message.LabelIds, labelUnread) {
		_, err = client.Users.Messages.Modify(gmailUser, emailID, &gmailapi.ModifyMessageRequest{
			RemoveLabelIds: []string{labelUnread},
		}).Context(ctx).Do()
		if err != nil {
			tracing.TraceErr(span, translateErr("gmail.messages.modify", err))
			p.log.Warnf("failed to mark gmail message %s read: %v", emailID, err)
		}
		detail.IsRead = true
	}

	return detail, nil
}

func (p *gmailProvider) SendEmail(ctx context.Context, accountID string, request interfaces.SendEmailRequest) (*models.SendResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "gmailProvider.SendEmail")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, accountID)

	client, account, err := p.clientFor(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	to := utils.ValidEmails([]string{request.To})
	if len(to) == 0 {
		return nil, custom_errors.ErrNoValidRecipients
	}

	attachments, err := p.loadAttachments(ctx, request.AttachmentIDs)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	from := request.FromAddress
	if from == "" {
		from = account.Email
	}

	raw, err := buildMIMEMessage(outgoingMessage{
		From:        from,
		To:          to,
		Cc:          utils.ValidEmails(request.Cc),
		Bcc:         utils.ValidEmails(request.Bcc),
		Subject:     request.Subject,
		BodyText:    request.BodyText,
		BodyHTML:    request.BodyHTML,
		MessageID:   utils.GenerateMessageID(utils.ExtractDomainFromEmail(from), ""),
		Attachments: attachments,
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	sent, err := client.Users.Messages.Send(gmailUser, &gmailapi.Message{
		Raw: base64.URLEncoding.EncodeToString(raw),
	}).Context(ctx).Do()
	if err != nil {
		err = translateErr("gmail.messages.send", err)
		tracing.TraceErr(span, err)
		return nil, err
	}

	return &models.SendResult{Success: true, MessageID: sent.Id}, nil
}

func (p *gmailProvider) ReplyToEmail(ctx context.Context, accountID, emailID string, request interfaces.ReplyEmailRequest) (*models.SendResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "gmailProvider.ReplyToEmail")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, accountID)
	tracing.TagEntity(span, emailID)

	client, account, err := p.clientFor(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	original, err := client.Users.Messages.Get(gmailUser, emailID).
		Format("metadata").
		MetadataHeaders(metadataHeaders...).
		Context(ctx).
		Do()
	if err != nil {
		err = translateErr("gmail.messages.get", err)
		tracing.TraceErr(span, err)
		return nil, err
	}

	from := request.FromAddress
	if from == "" {
		from = account.Email
	}

	originalFrom := headerValue(original.Payload, "From")
	recipients := resolveReplyRecipients(
		originalFrom,
		splitAddressList(headerValue(original.Payload, "To")),
		splitAddressList(headerValue(original.Payload, "Cc")),
		from,
		request.ReplyAll,
	)
	if len(recipients) == 0 {
		return nil, custom_errors.ErrNoValidRecipients
	}

	attachments, err := p.loadAttachments(ctx, request.AttachmentIDs)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	originalMessageID := headerValue(original.Payload, "Message-ID")
	references := strings.Fields(headerValue(original.Payload, "References"))
	if originalMessageID != "" {
		references = append(references, originalMessageID)
	}

	raw, err := buildMIMEMessage(outgoingMessage{
		From:        from,
		To:          recipients,
		Subject:     utils.EnsureReplySubject(headerValue(original.Payload, "Subject")),
		BodyText:    request.BodyText,
		BodyHTML:    request.BodyHTML,
		MessageID:   utils.GenerateMessageID(utils.ExtractDomainFromEmail(from), ""),
		InReplyTo:   originalMessageID,
		References:  references,
		Attachments: attachments,
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	sent, err := client.Users.Messages.Send(gmailUser, &gmailapi.Message{
		Raw:      base64.URLEncoding.EncodeToString(raw),
		ThreadId: original.ThreadId,
	}).Context(ctx).Do()
	if err != nil {
		err = translateErr("gmail.messages.send", err)
		tracing.TraceErr(span, err)
		return nil, err
	}

	return &models.SendResult{Success: true, MessageID: sent.Id}, nil
}

func (p *gmailProvider) MarkAsRead(ctx context.Context, accountID, emailID string, isRead bool) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "gmailProvider.MarkAsRead")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, accountID)
	tracing.TagEntity(span, emailID)

	client, _, err := p.clientFor(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	modify := &gmailapi.ModifyMessageRequest{}
	if isRead {
		modify.RemoveLabelIds = []string{labelUnread}
	} else {
		modify.AddLabelIds = []string{labelUnread}
	}

	_, err = client.Users.Messages.Modify(gmailUser, emailID, modify).Context(ctx).Do()
	if err != nil {
		err = translateErr("gmail.messages.modify", err)
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (p *gmailProvider) ToggleStar(ctx context.Context, accountID, emailID string) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "gmailProvider.ToggleStar")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, accountID)
	tracing.TagEntity(span, emailID)

	client, _, err := p.clientFor(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return false, err
	}

	message, err := client.Users.Messages.Get(gmailUser, emailID).Format("minimal").Context(ctx).Do()
	if err != nil {
		err = translateErr("gmail.messages.get", err)
		tracing.TraceErr(span, err)
		return false, err
	}

	modify := &gmailapi.ModifyMessageRequest{}
	starred := hasLabel(message.LabelIds, labelStarred)
	if starred {
		modify.RemoveLabelIds = []string{labelStarred}
	} else {
		modify.AddLabelIds = []string{labelStarred}
	}

	_, err = client.Users.Messages.Modify(gmailUser, emailID, modify).Context(ctx).Do()
	if err != nil {
		err = translateErr("gmail.messages.modify", err)
		tracing.TraceErr(span, err)
		return false, err
	}
	return !starred, nil
}

// DeleteEmail trashes the message on first delete and removes it permanently
// once it is already in trash.
func (p *gmailProvider) DeleteEmail(ctx context.Context, accountID, emailID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "gmailProvider.DeleteEmail")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, accountID)
	tracing.TagEntity(span, emailID)

	client, _, err := p.clientFor(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	message, err := client.Users.Messages.Get(gmailUser, emailID).Format("minimal").Context(ctx).Do()
	if err != nil {
		err = translateErr("gmail.messages.get", err)
		tracing.TraceErr(span, err)
		return err
	}

	if hasLabel(message.LabelIds, labelTrash) {
		err = client.Users.Messages.Delete(gmailUser, emailID).Context(ctx).Do()
	} else {
		_, err = client.Users.Messages.Trash(gmailUser, emailID).Context(ctx).Do()
	}
	if err != nil {
		err = translateErr("gmail.messages.delete", err)
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (p *gmailProvider) MoveToFolder(ctx context.Context, accountID, emailID string, folder enum.Folder) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "gmailProvider.MoveToFolder")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, accountID)
	tracing.TagEntity(span, emailID)

	client, _, err := p.clientFor(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	modify := &gmailapi.ModifyMessageRequest{
		RemoveLabelIds: []string{labelInbox, labelTrash},
	}
	if label := FolderToLabel(folder); label != "" {
		modify.AddLabelIds = []string{label}
		modify.RemoveLabelIds = removeString(modify.RemoveLabelIds, label)
	}

	_, err = client.Users.Messages.Modify(gmailUser, emailID, modify).Context(ctx).Do()
	if err != nil {
		err = translateErr("gmail.messages.modify", err)
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (p *gmailProvider) loadAttachments(ctx context.Context, attachmentIDs []string) ([]mimeAttachment, error) {
	if len(attachmentIDs) == 0 {
		return nil, nil
	}

	attachments := make([]mimeAttachment, 0, len(attachmentIDs))
	for _, id := range attachmentIDs {
		content, record, err := p.attachments.GetContent(ctx, id)
		if err != nil {
			return nil, errors.Wrapf(err, "attachment %s", id)
		}
		attachments = append(attachments, mimeAttachment{
			Filename:    record.OriginalFilename,
			ContentType: record.ContentType,
			Content:     content,
		})
	}
	return attachments, nil
}

func previewFromMessage(message *gmailapi.Message) *models.EmailPreview {
	sentAt := internalDate(message)
	return &models.EmailPreview{
		ID:            message.Id,
		From:          headerValue(message.Payload, "From"),
		To:            splitAddressList(headerValue(message.Payload, "To")),
		Subject:       headerValue(message.Payload, "Subject"),
		Preview:       message.Snippet,
		IsRead:        !hasLabel(message.LabelIds, labelUnread),
		IsStarred:     hasLabel(message.LabelIds, labelStarred),
		Folder:        folderFromLabels(message.LabelIds).String(),
		SentAt:        sentAt,
		HasAttachment: messageHasAttachment(message.Payload),
	}
}

func detailFromMessage(message *gmailapi.Message) *models.EmailDetail {
	bodyText, bodyHTML := extractBodies(message.Payload)
	attachments := extractAttachmentRefs(message.Payload)

	return &models.EmailDetail{
		ID:            message.Id,
		From:          headerValue(message.Payload, "From"),
		To:            splitAddressList(headerValue(message.Payload, "To")),
		Cc:            splitAddressList(headerValue(message.Payload, "Cc")),
		Subject:       headerValue(message.Payload, "Subject"),
		BodyText:      bodyText,
		BodyHTML:      bodyHTML,
		IsRead:        !hasLabel(message.LabelIds, labelUnread),
		IsStarred:     hasLabel(message.LabelIds, labelStarred),
		Folder:        folderFromLabels(message.LabelIds).String(),
		SentAt:        internalDate(message),
		InReplyTo:     headerValue(message.Payload, "In-Reply-To"),
		Attachments:   attachments,
		HasAttachment: len(attachments) > 0,
	}
}

func internalDate(message *gmailapi.Message) *time.Time {
	if message.InternalDate == 0 {
		return nil
	}
	return utils.TimePtr(time.UnixMilli(message.InternalDate).UTC())
}

func headerValue(payload *gmailapi.MessagePart, name string) string {
	if payload == nil {
		return ""
	}
	for _, header := range payload.Headers {
		if strings.EqualFold(header.Name, name) {
			return header.Value
		}
	}
	return ""
}

func splitAddressList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	addresses := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			addresses = append(addresses, trimmed)
		}
	}
	return addresses
}

// bareAddress extracts the addr-spec from a header value that may carry a
// display name ("Alice Smith <alice@x.com>"). Unparseable input falls back
// to the trimmed raw value.
func bareAddress(value string) string {
	if parsed, err := mail.ParseAddress(value); err == nil {
		return parsed.Address
	}
	return strings.TrimSpace(value)
}

// resolveReplyRecipients computes who receives a reply. replyAll unions the
// original sender, To and Cc lists; either way the caller's own address is
// excluded and duplicates collapse case-insensitively. Header values carry
// display names, so comparisons run on the parsed addr-spec.
func resolveReplyRecipients(originalFrom string, originalTo, originalCc []string, self string, replyAll bool) []string {
	var candidates []string
	if replyAll {
		candidates = append(candidates, originalFrom)
		candidates = append(candidates, originalTo...)
		candidates = append(candidates, originalCc...)
	} else {
		candidates = []string{originalFrom}
	}

	selfAddress := strings.ToLower(bareAddress(self))
	seen := make(map[string]struct{}, len(candidates))
	var recipients []string
	for _, candidate := range candidates {
		address := strings.ToLower(bareAddress(candidate))
		if address == "" || address == selfAddress {
			continue
		}
		if _, exists := seen[address]; exists {
			continue
		}
		seen[address] = struct{}{}
		recipients = append(recipients, candidate)
	}
	return recipients
}

// decodeBodyData decodes a message part body. The API returns unpadded
// base64url for most parts but padded data does occur, so both are accepted.
func decodeBodyData(data string) ([]byte, error) {
	if decoded, err := base64.RawURLEncoding.DecodeString(data); err == nil {
		return decoded, nil
	}
	return base64.URLEncoding.DecodeString(data)
}

func extractBodies(payload *gmailapi.MessagePart) (string, string) {
	var bodyText, bodyHTML string

	var walk func(part *gmailapi.MessagePart)
	walk = func(part *gmailapi.MessagePart) {
		if part == nil {
			return
		}
		if part.Body != nil && part.Body.Data != "" {
			decoded, err := decodeBodyData(part.Body.Data)
			if err == nil {
				switch part.MimeType {
				case "text/plain":
					if bodyText == "" {
						bodyText = string(decoded)
					}
				case "text/html":
					if bodyHTML == "" {
						bodyHTML = string(decoded)
					}
				}
			}
		}
		for _, child := range part.Parts {
			walk(child)
		}
	}
	walk(payload)

	return bodyText, bodyHTML
}

func extractAttachmentRefs(payload *gmailapi.MessagePart) []models.AttachmentRef {
	var refs []models.AttachmentRef

	var walk func(part *gmailapi.MessagePart)
	walk = func(part *gmailapi.MessagePart) {
		if part == nil {
			return
		}
		if part.Filename != "" && part.Body != nil && part.Body.AttachmentId != "" {
			refs = append(refs, models.AttachmentRef{
				ID:          part.Body.AttachmentId,
				Filename:    part.Filename,
				ContentType: part.MimeType,
				Size:        int(part.Body.Size),
			})
		}
		for _, child := range part.Parts {
			walk(child)
		}
	}
	walk(payload)

	return refs
}

func messageHasAttachment(payload *gmailapi.MessagePart) bool {
	return len(extractAttachmentRefs(payload)) > 0
}

func removeString(values []string, target string) []string {
	out := values[:0]
	for _, value := range values {
		if value != target {
			out = append(out, value)
		}
	}
	return out
}
