package attachment

import (
	"context"
	"encoding/base64"
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmail/flowmail/internal/enum"
	custom_errors "github.com/flowmail/flowmail/internal/errors"
	"github.com/flowmail/flowmail/internal/logger"
	"github.com/flowmail/flowmail/internal/models"
)

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

type fakeAttachmentRepo struct {
	attachments map[string]*models.EmailAttachment
	seq         int
}

func newFakeAttachmentRepo() *fakeAttachmentRepo {
	return &fakeAttachmentRepo{attachments: map[string]*models.EmailAttachment{}}
}

func (r *fakeAttachmentRepo) Create(ctx context.Context, attachment *models.EmailAttachment) (string, error) {
	if attachment.ID == "" {
		r.seq++
		attachment.ID = fmt.Sprintf("file_%08d", r.seq)
	}
	copied := *attachment
	r.attachments[attachment.ID] = &copied
	return attachment.ID, nil
}

func (r *fakeAttachmentRepo) GetByID(ctx context.Context, id string) (*models.EmailAttachment, error) {
	attachment, ok := r.attachments[id]
	if !ok {
		return nil, nil
	}
	copied := *attachment
	return &copied, nil
}

func (r *fakeAttachmentRepo) ListByEmail(ctx context.Context, emailID string) ([]*models.EmailAttachment, error) {
	return nil, nil
}

func (r *fakeAttachmentRepo) LinkToEmail(ctx context.Context, attachmentID, emailID string) error {
	attachment, ok := r.attachments[attachmentID]
	if !ok {
		return custom_errors.ErrNotFound
	}
	attachment.Emails = append(attachment.Emails, emailID)
	return nil
}

func (r *fakeAttachmentRepo) Update(ctx context.Context, attachment *models.EmailAttachment) error {
	copied := *attachment
	r.attachments[attachment.ID] = &copied
	return nil
}

func (r *fakeAttachmentRepo) Delete(ctx context.Context, id string) error {
	delete(r.attachments, id)
	return nil
}

type fakeStorage struct {
	available  bool
	bucket     string
	objects    map[string][]byte
	failUpload bool
}

func newFakeStorage(available bool) *fakeStorage {
	return &fakeStorage{available: available, bucket: "test-bucket", objects: map[string][]byte{}}
}

func (s *fakeStorage) IsAvailable() bool { return s.available }
func (s *fakeStorage) Bucket() string    { return s.bucket }

func (s *fakeStorage) Upload(ctx context.Context, key string, content []byte, contentType string) error {
	if s.failUpload {
		return errors.New("upload failed")
	}
	s.objects[key] = content
	return nil
}

func (s *fakeStorage) Download(ctx context.Context, key string) ([]byte, error) {
	content, ok := s.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return content, nil
}

func (s *fakeStorage) Delete(ctx context.Context, key string) error {
	delete(s.objects, key)
	return nil
}

func (s *fakeStorage) GetSignedURL(ctx context.Context, key string, expiryMinutes int) (string, error) {
	return "https://signed.example/" + key, nil
}

func TestUpload_EmptyContent(t *testing.T) {
	service := NewAttachmentService(newFakeAttachmentRepo(), newFakeStorage(false), getLogger())

	_, err := service.Upload(context.Background(), nil, "file.txt", "text/plain")
	assert.ErrorIs(t, err, custom_errors.ErrBadRequest)
}

func TestUpload_MissingFilename(t *testing.T) {
	service := NewAttachmentService(newFakeAttachmentRepo(), newFakeStorage(false), getLogger())

	_, err := service.Upload(context.Background(), []byte("data"), "", "text/plain")
	assert.ErrorIs(t, err, custom_errors.ErrBadRequest)
}

func TestUpload_InlineRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newFakeAttachmentRepo()
	service := NewAttachmentService(repo, newFakeStorage(false), getLogger())

	content := []byte("hello attachment")
	ref, err := service.Upload(ctx, content, "note.txt", "")
	require.NoError(t, err)
	assert.Equal(t, "note.txt", ref.Filename)
	assert.Equal(t, "application/octet-stream", ref.ContentType)
	assert.Equal(t, len(content), ref.Size)

	stored, _ := repo.GetByID(ctx, ref.ID)
	assert.Equal(t, enum.StorageKindInline, stored.StorageKind)

	got, record, err := service.GetContent(ctx, ref.ID)
	require.NoError(t, err)
	assert.Equal(t, content, got)
	assert.Equal(t, "note.txt", record.OriginalFilename)
}

func TestUpload_InlineSizeCap(t *testing.T) {
	service := NewAttachmentService(newFakeAttachmentRepo(), newFakeStorage(false), getLogger())

	oversized := make([]byte, InlineSizeLimit+1)
	_, err := service.Upload(context.Background(), oversized, "big.bin", "application/octet-stream")
	assert.ErrorIs(t, err, custom_errors.ErrBadRequest)
}

func TestUpload_S3Path(t *testing.T) {
	ctx := context.Background()
	repo := newFakeAttachmentRepo()
	storage := newFakeStorage(true)
	service := NewAttachmentService(repo, storage, getLogger())

	content := []byte("object storage payload")
	ref, err := service.Upload(ctx, content, "report.pdf", "application/pdf")
	require.NoError(t, err)

	stored, _ := repo.GetByID(ctx, ref.ID)
	assert.Equal(t, enum.StorageKindS3, stored.StorageKind)
	assert.Equal(t, "test-bucket", stored.StorageBucket)
	assert.Contains(t, stored.StorageKey, "attachments/"+ref.ID+"/")
	assert.Empty(t, stored.InlineContent)

	got, _, err := service.GetContent(ctx, ref.ID)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

// A failed object upload must not leave an orphaned metadata record behind.
func TestUpload_S3FailureRollsBackRecord(t *testing.T) {
	ctx := context.Background()
	repo := newFakeAttachmentRepo()
	storage := newFakeStorage(true)
	storage.failUpload = true
	service := NewAttachmentService(repo, storage, getLogger())

	_, err := service.Upload(ctx, []byte("data"), "doc.txt", "text/plain")
	require.Error(t, err)
	assert.Empty(t, repo.attachments)
}

func TestGetContent_NotFound(t *testing.T) {
	service := NewAttachmentService(newFakeAttachmentRepo(), newFakeStorage(false), getLogger())

	_, _, err := service.GetContent(context.Background(), "file_missing")
	assert.ErrorIs(t, err, custom_errors.ErrNotFound)
}

func TestGetContent_InlineDecodes(t *testing.T) {
	ctx := context.Background()
	repo := newFakeAttachmentRepo()
	service := NewAttachmentService(repo, newFakeStorage(false), getLogger())

	repo.Create(ctx, &models.EmailAttachment{
		ID:               "file_inline",
		OriginalFilename: "a.txt",
		StorageKind:      enum.StorageKindInline,
		InlineContent:    base64.StdEncoding.EncodeToString([]byte("inline bytes")),
	})

	content, _, err := service.GetContent(ctx, "file_inline")
	require.NoError(t, err)
	assert.Equal(t, []byte("inline bytes"), content)
}

func TestDelete_RemovesObjectAndRecord(t *testing.T) {
	ctx := context.Background()
	repo := newFakeAttachmentRepo()
	storage := newFakeStorage(true)
	service := NewAttachmentService(repo, storage, getLogger())

	ref, err := service.Upload(ctx, []byte("payload"), "x.bin", "application/octet-stream")
	require.NoError(t, err)

	require.NoError(t, service.Delete(ctx, ref.ID))
	assert.Empty(t, storage.objects)
	stored, _ := repo.GetByID(ctx, ref.ID)
	assert.Nil(t, stored)
}

func TestDelete_MissingIsNoop(t *testing.T) {
	service := NewAttachmentService(newFakeAttachmentRepo(), newFakeStorage(false), getLogger())
	assert.NoError(t, service.Delete(context.Background(), "file_gone"))
}
