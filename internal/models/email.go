package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/flowmail/flowmail/internal/enum"
	"github.com/flowmail/flowmail/internal/utils"
)

const EmailIDPrefix = "email"

// Email is one locally stored message. Every Email belongs to exactly one
// Account and sits in exactly one folder; starred is an orthogonal flag.
type Email struct {
	ID        string `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	AccountID string `gorm:"column:account_id;type:varchar(50);index;not null" json:"accountId"`
	MessageID string `gorm:"column:message_id;type:varchar(255);index" json:"messageId"`
	InReplyTo string `gorm:"column:in_reply_to;type:varchar(255);index" json:"inReplyTo,omitempty"`

	FromAddress  string         `gorm:"column:from_address;type:varchar(255);index" json:"from"`
	ToAddresses  pq.StringArray `gorm:"column:to_addresses;type:text[]" json:"to"`
	CcAddresses  pq.StringArray `gorm:"column:cc_addresses;type:text[]" json:"cc,omitempty"`
	BccAddresses pq.StringArray `gorm:"column:bcc_addresses;type:text[]" json:"bcc,omitempty"`

	Subject  string `gorm:"column:subject;type:varchar(1000)" json:"subject"`
	BodyText string `gorm:"column:body_text;type:text" json:"bodyText"`
	BodyHTML string `gorm:"column:body_html;type:text" json:"bodyHtml,omitempty"`
	Preview  string `gorm:"column:preview;type:varchar(255)" json:"preview"`

	IsRead    bool        `gorm:"column:is_read;default:false;index" json:"isRead"`
	ReadAt    *time.Time  `gorm:"column:read_at;type:timestamp" json:"readAt,omitempty"`
	IsStarred bool        `gorm:"column:is_starred;default:false;index" json:"isStarred"`
	Folder    enum.Folder `gorm:"column:folder;type:varchar(50);index;not null" json:"folder"`
	SentAt    *time.Time  `gorm:"column:sent_at;type:timestamp;index" json:"sentAt"`

	AttachmentIDs pq.StringArray `gorm:"column:attachment_ids;type:text[]" json:"attachmentIds,omitempty"`
	HasAttachment bool           `gorm:"column:has_attachment;default:false" json:"hasAttachment"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (Email) TableName() string {
	return "emails"
}

func (e *Email) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = utils.GenerateNanoIDWithPrefix(EmailIDPrefix, 24)
	}
	if e.Preview == "" {
		e.Preview = utils.EmailPreview(e.BodyText, e.BodyHTML)
	}
	if len(e.AttachmentIDs) > 0 {
		e.HasAttachment = true
	}
	e.CreatedAt = utils.Now()
	return nil
}

// IsLocalEmailID reports whether id has the shape of a locally stored email
// id; anything else belongs to the remote provider's id space.
func IsLocalEmailID(id string) bool {
	return utils.HasIDPrefix(id, EmailIDPrefix)
}
