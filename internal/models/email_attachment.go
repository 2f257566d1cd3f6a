package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/flowmail/flowmail/internal/enum"
	"github.com/flowmail/flowmail/internal/utils"
)

const AttachmentIDPrefix = "file"

// EmailAttachment is attachment metadata plus a storage locator. Content
// lives in object storage, or inline as base64 when object storage is
// unconfigured. Emails stays empty until the owning message is sent.
type EmailAttachment struct {
	ID               string         `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	Emails           pq.StringArray `gorm:"column:emails;type:text[]" json:"emails,omitempty"`
	Filename         string         `gorm:"column:filename;type:varchar(500);not null" json:"filename"`
	OriginalFilename string         `gorm:"column:original_filename;type:varchar(500)" json:"originalFilename"`
	ContentType      string         `gorm:"column:content_type;type:varchar(255)" json:"contentType"`
	Size             int            `gorm:"column:size;default:0" json:"size"`

	StorageKind   enum.StorageKind `gorm:"column:storage_kind;type:varchar(50);not null" json:"-"`
	StorageBucket string           `gorm:"column:storage_bucket;type:varchar(255)" json:"-"`
	StorageKey    string           `gorm:"column:storage_key;type:varchar(1000)" json:"-"`
	InlineContent string           `gorm:"column:inline_content;type:text" json:"-"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (EmailAttachment) TableName() string {
	return "email_attachments"
}

func (e *EmailAttachment) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = utils.GenerateNanoIDWithPrefix(AttachmentIDPrefix, 12)
	}
	e.CreatedAt = utils.Now()
	return nil
}
