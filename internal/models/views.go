package models

import "time"

// Provider-agnostic response shapes. Callers never see provider-specific
// identifier structure, only opaque ids.

type MailboxInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Count int64  `json:"count"`
	Icon  string `json:"icon"`
}

type EmailPreview struct {
	ID            string     `json:"id"`
	From          string     `json:"from"`
	To            []string   `json:"to"`
	Subject       string     `json:"subject"`
	Preview       string     `json:"preview"`
	IsRead        bool       `json:"isRead"`
	IsStarred     bool       `json:"isStarred"`
	Folder        string     `json:"folder"`
	SentAt        *time.Time `json:"sentAt"`
	HasAttachment bool       `json:"hasAttachment"`
}

type EmailDetail struct {
	ID            string          `json:"id"`
	From          string          `json:"from"`
	To            []string        `json:"to"`
	Cc            []string        `json:"cc,omitempty"`
	Bcc           []string        `json:"bcc,omitempty"`
	Subject       string          `json:"subject"`
	BodyText      string          `json:"bodyText"`
	BodyHTML      string          `json:"bodyHtml,omitempty"`
	IsRead        bool            `json:"isRead"`
	IsStarred     bool            `json:"isStarred"`
	Folder        string          `json:"folder"`
	SentAt        *time.Time      `json:"sentAt"`
	InReplyTo     string          `json:"inReplyTo,omitempty"`
	Attachments   []AttachmentRef `json:"attachments,omitempty"`
	HasAttachment bool            `json:"hasAttachment"`
}

type EmailListResponse struct {
	Emails     []*EmailPreview `json:"emails"`
	Total      int64           `json:"total"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	TotalPages int             `json:"totalPages"`
}

type AttachmentRef struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int    `json:"size"`
}

type SendResult struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId,omitempty"`
}

type BulkResult struct {
	Requested int `json:"requested"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}
