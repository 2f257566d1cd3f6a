package localmail

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmail/flowmail/interfaces"
	"github.com/flowmail/flowmail/internal/enum"
	custom_errors "github.com/flowmail/flowmail/internal/errors"
	"github.com/flowmail/flowmail/internal/logger"
	"github.com/flowmail/flowmail/internal/models"
	"github.com/flowmail/flowmail/internal/utils"
)

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

// in-memory repository fakes

type fakeEmailRepo struct {
	emails map[string]*models.Email
	seq    int
}

func newFakeEmailRepo() *fakeEmailRepo {
	return &fakeEmailRepo{emails: map[string]*models.Email{}}
}

func (r *fakeEmailRepo) Create(ctx context.Context, email *models.Email) (string, error) {
	if email.ID == "" {
		r.seq++
		email.ID = fmt.Sprintf("email_%024d", r.seq)
	}
	if email.Preview == "" {
		email.Preview = utils.EmailPreview(email.BodyText, email.BodyHTML)
	}
	if len(email.AttachmentIDs) > 0 {
		email.HasAttachment = true
	}
	copied := *email
	r.emails[email.ID] = &copied
	return email.ID, nil
}

func (r *fakeEmailRepo) GetByID(ctx context.Context, id string) (*models.Email, error) {
	email, ok := r.emails[id]
	if !ok {
		return nil, nil
	}
	copied := *email
	return &copied, nil
}

func (r *fakeEmailRepo) matches(email *models.Email, accountID string, folder enum.Folder) bool {
	if email.AccountID != accountID {
		return false
	}
	if folder == enum.FolderStarred {
		return email.IsStarred
	}
	return email.Folder == folder
}

func (r *fakeEmailRepo) ListByFolder(ctx context.Context, accountID string, folder enum.Folder, limit, offset int) ([]*models.Email, int64, error) {
	var matched []*models.Email
	for _, email := range r.emails {
		if r.matches(email, accountID, folder) {
			copied := *email
			matched = append(matched, &copied)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i].SentAt, matched[j].SentAt
		if a == nil || b == nil {
			return matched[i].ID > matched[j].ID
		}
		return a.After(*b)
	})

	total := int64(len(matched))
	if offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func (r *fakeEmailRepo) CountByFolder(ctx context.Context, accountID string, folder enum.Folder) (int64, error) {
	var count int64
	for _, email := range r.emails {
		if r.matches(email, accountID, folder) {
			count++
		}
	}
	return count, nil
}

func (r *fakeEmailRepo) CountUnread(ctx context.Context, accountID string, folder enum.Folder) (int64, error) {
	var count int64
	for _, email := range r.emails {
		if r.matches(email, accountID, folder) && !email.IsRead {
			count++
		}
	}
	return count, nil
}

func (r *fakeEmailRepo) Update(ctx context.Context, email *models.Email) error {
	if _, ok := r.emails[email.ID]; !ok {
		return custom_errors.ErrNotFound
	}
	copied := *email
	r.emails[email.ID] = &copied
	return nil
}

func (r *fakeEmailRepo) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	email, ok := r.emails[id]
	if !ok {
		return custom_errors.ErrNotFound
	}
	for key, value := range fields {
		switch key {
		case "is_read":
			email.IsRead = value.(bool)
		case "read_at":
			if value == nil {
				email.ReadAt = nil
			} else {
				at := value.(time.Time)
				email.ReadAt = &at
			}
		case "is_starred":
			email.IsStarred = value.(bool)
		case "folder":
			email.Folder = value.(enum.Folder)
		}
	}
	return nil
}

func (r *fakeEmailRepo) Delete(ctx context.Context, id string) error {
	if _, ok := r.emails[id]; !ok {
		return custom_errors.ErrNotFound
	}
	delete(r.emails, id)
	return nil
}

type fakeAccountRepo struct {
	accounts map[string]*models.Account
}

func newFakeAccountRepo(accounts ...*models.Account) *fakeAccountRepo {
	repo := &fakeAccountRepo{accounts: map[string]*models.Account{}}
	for _, account := range accounts {
		repo.accounts[account.ID] = account
	}
	return repo
}

func (r *fakeAccountRepo) Create(ctx context.Context, account *models.Account) (string, error) {
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
		if account.GoogleID == googleID {
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

type fakeAttachmentRepo struct {
	attachments map[string]*models.EmailAttachment
}

func newFakeAttachmentRepo() *fakeAttachmentRepo {
	return &fakeAttachmentRepo{attachments: map[string]*models.EmailAttachment{}}
}

func (r *fakeAttachmentRepo) Create(ctx context.Context, attachment *models.EmailAttachment) (string, error) {
	r.attachments[attachment.ID] = attachment
	return attachment.ID, nil
}

func (r *fakeAttachmentRepo) GetByID(ctx context.Context, id string) (*models.EmailAttachment, error) {
	return r.attachments[id], nil
}

func (r *fakeAttachmentRepo) ListByEmail(ctx context.Context, emailID string) ([]*models.EmailAttachment, error) {
	var out []*models.EmailAttachment
	for _, attachment := range r.attachments {
		for _, linked := range attachment.Emails {
			if linked == emailID {
				out = append(out, attachment)
				break
			}
		}
	}
	return out, nil
}

func (r *fakeAttachmentRepo) LinkToEmail(ctx context.Context, attachmentID, emailID string) error {
	attachment, ok := r.attachments[attachmentID]
	if !ok {
		return custom_errors.ErrNotFound
	}
	for _, linked := range attachment.Emails {
		if linked == emailID {
			return nil
		}
	}
	attachment.Emails = append(attachment.Emails, emailID)
	return nil
}

func (r *fakeAttachmentRepo) Update(ctx context.Context, attachment *models.EmailAttachment) error {
	r.attachments[attachment.ID] = attachment
	return nil
}

func (r *fakeAttachmentRepo) Delete(ctx context.Context, id string) error {
	delete(r.attachments, id)
	return nil
}

type fakeAttachmentService struct {
	linked  map[string][]string
	deleted []string
}

func newFakeAttachmentService() *fakeAttachmentService {
	return &fakeAttachmentService{linked: map[string][]string{}}
}

func (s *fakeAttachmentService) Upload(ctx context.Context, content []byte, filename, contentType string) (*models.AttachmentRef, error) {
	return nil, nil
}

func (s *fakeAttachmentService) GetContent(ctx context.Context, attachmentID string) ([]byte, *models.EmailAttachment, error) {
	return nil, nil, custom_errors.ErrNotFound
}

func (s *fakeAttachmentService) LinkToEmails(ctx context.Context, attachmentIDs []string, emailIDs []string) {
	for _, attachmentID := range attachmentIDs {
		s.linked[attachmentID] = append(s.linked[attachmentID], emailIDs...)
	}
}

func (s *fakeAttachmentService) Delete(ctx context.Context, attachmentID string) error {
	s.deleted = append(s.deleted, attachmentID)
	return nil
}

type fakeEventPublisher struct {
	sent     []*models.Email
	received []*models.Email
}

func (p *fakeEventPublisher) PublishEmailSent(ctx context.Context, email *models.Email) error {
	p.sent = append(p.sent, email)
	return nil
}

func (p *fakeEventPublisher) PublishEmailReceived(ctx context.Context, email *models.Email) error {
	p.received = append(p.received, email)
	return nil
}

func (p *fakeEventPublisher) Close() error { return nil }

type testEnv struct {
	provider    interfaces.EmailProvider
	emails      *fakeEmailRepo
	accounts    *fakeAccountRepo
	attachRepo  *fakeAttachmentRepo
	attachments *fakeAttachmentService
	events      *fakeEventPublisher
}

func newTestEnv(accounts ...*models.Account) *testEnv {
	env := &testEnv{
		emails:      newFakeEmailRepo(),
		accounts:    newFakeAccountRepo(accounts...),
		attachRepo:  newFakeAttachmentRepo(),
		attachments: newFakeAttachmentService(),
		events:      &fakeEventPublisher{},
	}
	env.provider = NewLocalMailProvider(
		env.emails,
		env.accounts,
		env.attachRepo,
		env.attachments,
		env.events,
		getLogger(),
	)
	return env
}

func aliceAndBob() (*models.Account, *models.Account) {
	alice := &models.Account{ID: "acct_alice", Username: "alice", Email: "alice@flowmail.dev"}
	bob := &models.Account{ID: "acct_bob", Username: "bob", Email: "bob@flowmail.dev"}
	return alice, bob
}

func seedEmail(env *testEnv, email *models.Email) string {
	id, _ := env.emails.Create(context.Background(), email)
	return id
}

func TestSendEmail_DualWrite(t *testing.T) {
	ctx := context.Background()
	alice, bob := aliceAndBob()
	env := newTestEnv(alice, bob)

	result, err := env.provider.SendEmail(ctx, alice.ID, interfaces.SendEmailRequest{
		To:       "bob@flowmail.dev",
		Subject:  "hello",
		BodyText: "hi bob",
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.NotEmpty(t, result.MessageID)

	sent, total, err := env.emails.ListByFolder(ctx, alice.ID, enum.FolderSent, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.True(t, sent[0].IsRead)
	assert.Equal(t, "alice@flowmail.dev", sent[0].FromAddress)

	inbox, total, err := env.emails.ListByFolder(ctx, bob.ID, enum.FolderInbox, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.False(t, inbox[0].IsRead)
	assert.Equal(t, sent[0].MessageID, inbox[0].MessageID)

	assert.Len(t, env.events.sent, 1)
	assert.Len(t, env.events.received, 1)
}

func TestSendEmail_ExternalRecipientGetsNoInboxCopy(t *testing.T) {
	ctx := context.Background()
	alice, _ := aliceAndBob()
	env := newTestEnv(alice)

	_, err := env.provider.SendEmail(ctx, alice.ID, interfaces.SendEmailRequest{
		To:       "someone@example.com",
		Subject:  "external",
		BodyText: "hi",
	})
	require.NoError(t, err)

	_, total, err := env.emails.ListByFolder(ctx, alice.ID, enum.FolderSent, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Empty(t, env.events.received)
}

func TestSendEmail_EmptyRecipient(t *testing.T) {
	ctx := context.Background()
	alice, _ := aliceAndBob()
	env := newTestEnv(alice)

	_, err := env.provider.SendEmail(ctx, alice.ID, interfaces.SendEmailRequest{To: "  "})
	assert.ErrorIs(t, err, custom_errors.ErrBadRequest)
}

func TestSendEmail_MalformedRecipient(t *testing.T) {
	ctx := context.Background()
	alice, _ := aliceAndBob()
	env := newTestEnv(alice)

	_, err := env.provider.SendEmail(ctx, alice.ID, interfaces.SendEmailRequest{To: "not-an-address"})
	assert.ErrorIs(t, err, custom_errors.ErrNoValidRecipients)
}

func TestSendEmail_DropsMalformedCc(t *testing.T) {
	ctx := context.Background()
	alice, bob := aliceAndBob()
	env := newTestEnv(alice, bob)

	_, err := env.provider.SendEmail(ctx, alice.ID, interfaces.SendEmailRequest{
		To:       "bob@flowmail.dev",
		Cc:       []string{"carol@example.com", "broken@"},
		Subject:  "cc check",
		BodyText: "hi",
	})
	require.NoError(t, err)

	sent, _, err := env.emails.ListByFolder(ctx, alice.ID, enum.FolderSent, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"carol@example.com"}, []string(sent[0].CcAddresses))
}

func TestSendEmail_LinksAttachments(t *testing.T) {
	ctx := context.Background()
	alice, bob := aliceAndBob()
	env := newTestEnv(alice, bob)

	_, err := env.provider.SendEmail(ctx, alice.ID, interfaces.SendEmailRequest{
		To:            "bob@flowmail.dev",
		Subject:       "with file",
		BodyText:      "see attached",
		AttachmentIDs: []string{"file_abc"},
	})
	require.NoError(t, err)

	// sent copy and inbox copy both linked
	assert.Len(t, env.attachments.linked["file_abc"], 2)
}

func TestReplyToEmail_RecipientResolution(t *testing.T) {
	ctx := context.Background()
	alice, bob := aliceAndBob()
	env := newTestEnv(alice, bob)

	originalID := seedEmail(env, &models.Email{
		AccountID:   alice.ID,
		MessageID:   "<orig@flowmail.dev>",
		FromAddress: "bob@flowmail.dev",
		ToAddresses: []string{"alice@flowmail.dev", "carol@example.com"},
		CcAddresses: []string{"Bob@flowmail.dev"},
		Subject:     "question",
		Folder:      enum.FolderInbox,
	})

	result, err := env.provider.ReplyToEmail(ctx, alice.ID, originalID, interfaces.ReplyEmailRequest{
		BodyText: "answer",
		ReplyAll: true,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)

	replies, _, err := env.emails.ListByFolder(ctx, alice.ID, enum.FolderSent, 10, 0)
	require.NoError(t, err)
	require.Len(t, replies, 1)

	// bob deduped case-insensitively, alice excluded as self
	assert.ElementsMatch(t, []string{"bob@flowmail.dev", "carol@example.com"}, []string(replies[0].ToAddresses))
	assert.Equal(t, "<orig@flowmail.dev>", replies[0].InReplyTo)
	assert.Equal(t, "Re: question", replies[0].Subject)
}

func TestReplyToEmail_SelfOnlyFails(t *testing.T) {
	ctx := context.Background()
	alice, _ := aliceAndBob()
	env := newTestEnv(alice)

	originalID := seedEmail(env, &models.Email{
		AccountID:   alice.ID,
		FromAddress: "alice@flowmail.dev",
		ToAddresses: []string{"alice@flowmail.dev"},
		Folder:      enum.FolderSent,
	})

	_, err := env.provider.ReplyToEmail(ctx, alice.ID, originalID, interfaces.ReplyEmailRequest{
		BodyText: "talking to myself",
		ReplyAll: true,
	})
	assert.ErrorIs(t, err, custom_errors.ErrBadRequest)

	_, total, _ := env.emails.ListByFolder(ctx, alice.ID, enum.FolderSent, 10, 0)
	assert.Equal(t, int64(1), total)
}

func TestGetEmailByID_MarksReadOnce(t *testing.T) {
	ctx := context.Background()
	alice, _ := aliceAndBob()
	env := newTestEnv(alice)

	id := seedEmail(env, &models.Email{
		AccountID:   alice.ID,
		FromAddress: "bob@flowmail.dev",
		Subject:     "unread",
		Folder:      enum.FolderInbox,
	})

	detail, err := env.provider.GetEmailByID(ctx, alice.ID, id)
	require.NoError(t, err)
	assert.True(t, detail.IsRead)

	stored, _ := env.emails.GetByID(ctx, id)
	require.NotNil(t, stored.ReadAt)
	firstReadAt := *stored.ReadAt

	_, err = env.provider.GetEmailByID(ctx, alice.ID, id)
	require.NoError(t, err)

	stored, _ = env.emails.GetByID(ctx, id)
	assert.Equal(t, firstReadAt, *stored.ReadAt)
}

func TestGetEmailByID_ForeignIDSpace(t *testing.T) {
	ctx := context.Background()
	alice, _ := aliceAndBob()
	env := newTestEnv(alice)

	_, err := env.provider.GetEmailByID(ctx, alice.ID, "18c8f0ab2d4e9f01")
	assert.ErrorIs(t, err, custom_errors.ErrNotFound)
}

func TestGetEmailByID_OwnershipEnforced(t *testing.T) {
	ctx := context.Background()
	alice, bob := aliceAndBob()
	env := newTestEnv(alice, bob)

	id := seedEmail(env, &models.Email{
		AccountID:   bob.ID,
		FromAddress: "carol@example.com",
		Folder:      enum.FolderInbox,
	})

	_, err := env.provider.GetEmailByID(ctx, alice.ID, id)
	assert.ErrorIs(t, err, custom_errors.ErrUnauthorized)
}

func TestDeleteEmail_TwoPhase(t *testing.T) {
	ctx := context.Background()
	alice, _ := aliceAndBob()
	env := newTestEnv(alice)

	id := seedEmail(env, &models.Email{
		AccountID:   alice.ID,
		FromAddress: "bob@flowmail.dev",
		Folder:      enum.FolderInbox,
	})

	require.NoError(t, env.provider.DeleteEmail(ctx, alice.ID, id))
	stored, _ := env.emails.GetByID(ctx, id)
	require.NotNil(t, stored)
	assert.Equal(t, enum.FolderTrash, stored.Folder)

	require.NoError(t, env.provider.DeleteEmail(ctx, alice.ID, id))
	stored, _ = env.emails.GetByID(ctx, id)
	assert.Nil(t, stored)
}

func TestDeleteEmail_CleansOrphanedAttachments(t *testing.T) {
	ctx := context.Background()
	alice, _ := aliceAndBob()
	env := newTestEnv(alice)

	id := seedEmail(env, &models.Email{
		AccountID:     alice.ID,
		FromAddress:   "bob@flowmail.dev",
		Folder:        enum.FolderTrash,
		AttachmentIDs: []string{"file_solo", "file_shared"},
	})
	env.attachRepo.Create(ctx, &models.EmailAttachment{ID: "file_solo", Emails: []string{id}})
	env.attachRepo.Create(ctx, &models.EmailAttachment{ID: "file_shared", Emails: []string{id, "email_other"}})

	require.NoError(t, env.provider.DeleteEmail(ctx, alice.ID, id))

	assert.Contains(t, env.attachments.deleted, "file_solo")
	shared, _ := env.attachRepo.GetByID(ctx, "file_shared")
	require.NotNil(t, shared)
	assert.Equal(t, []string{"email_other"}, []string(shared.Emails))
}

func TestToggleStar_RoundTripAndStarredFolder(t *testing.T) {
	ctx := context.Background()
	alice, _ := aliceAndBob()
	env := newTestEnv(alice)

	id := seedEmail(env, &models.Email{
		AccountID:   alice.ID,
		FromAddress: "bob@flowmail.dev",
		Folder:      enum.FolderArchive,
	})

	starred, err := env.provider.ToggleStar(ctx, alice.ID, id)
	require.NoError(t, err)
	assert.True(t, starred)

	// starred listing is a flag filter; the message stays in archive
	listing, err := env.provider.GetEmailsByFolder(ctx, alice.ID, enum.FolderStarred, 1, 10)
	require.NoError(t, err)
	require.Len(t, listing.Emails, 1)
	assert.Equal(t, enum.FolderArchive.String(), listing.Emails[0].Folder)

	starred, err = env.provider.ToggleStar(ctx, alice.ID, id)
	require.NoError(t, err)
	assert.False(t, starred)

	listing, err = env.provider.GetEmailsByFolder(ctx, alice.ID, enum.FolderStarred, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, listing.Emails)
}

func TestMoveToFolder_RejectsStarred(t *testing.T) {
	ctx := context.Background()
	alice, _ := aliceAndBob()
	env := newTestEnv(alice)

	id := seedEmail(env, &models.Email{
		AccountID:   alice.ID,
		FromAddress: "bob@flowmail.dev",
		Folder:      enum.FolderInbox,
	})

	err := env.provider.MoveToFolder(ctx, alice.ID, id, enum.FolderStarred)
	assert.ErrorIs(t, err, custom_errors.ErrBadRequest)

	require.NoError(t, env.provider.MoveToFolder(ctx, alice.ID, id, enum.FolderArchive))
	stored, _ := env.emails.GetByID(ctx, id)
	assert.Equal(t, enum.FolderArchive, stored.Folder)
}

func TestGetEmailsByFolder_Pagination(t *testing.T) {
	ctx := context.Background()
	alice, _ := aliceAndBob()
	env := newTestEnv(alice)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		seedEmail(env, &models.Email{
			AccountID:   alice.ID,
			FromAddress: "bob@flowmail.dev",
			Subject:     fmt.Sprintf("msg %d", i),
			Folder:      enum.FolderInbox,
			SentAt:      &at,
		})
	}

	page1, err := env.provider.GetEmailsByFolder(ctx, alice.ID, enum.FolderInbox, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), page1.Total)
	assert.Equal(t, 3, page1.TotalPages)
	require.Len(t, page1.Emails, 2)
	assert.Equal(t, "msg 4", page1.Emails[0].Subject)

	page3, err := env.provider.GetEmailsByFolder(ctx, alice.ID, enum.FolderInbox, 3, 2)
	require.NoError(t, err)
	require.Len(t, page3.Emails, 1)
	assert.Equal(t, "msg 0", page3.Emails[0].Subject)
}

func TestGetMailboxes_InboxCountsUnread(t *testing.T) {
	ctx := context.Background()
	alice, _ := aliceAndBob()
	env := newTestEnv(alice)

	seedEmail(env, &models.Email{AccountID: alice.ID, Folder: enum.FolderInbox})
	seedEmail(env, &models.Email{AccountID: alice.ID, Folder: enum.FolderInbox, IsRead: true})
	seedEmail(env, &models.Email{AccountID: alice.ID, Folder: enum.FolderSent, IsRead: true})

	mailboxes, err := env.provider.GetMailboxes(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, mailboxes, 6)

	counts := map[string]int64{}
	for _, mailbox := range mailboxes {
		counts[mailbox.ID] = mailbox.Count
	}
	assert.Equal(t, int64(1), counts["inbox"])
	assert.Equal(t, int64(1), counts["sent"])
	assert.Equal(t, int64(0), counts["starred"])
}
