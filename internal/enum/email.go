package enum

type EmailProvider string

const (
	EmailProviderGmail EmailProvider = "gmail"
	EmailProviderLocal EmailProvider = "local"
)

func (t EmailProvider) String() string {
	return string(t)
}

// Folder is one of the six logical mailbox partitions. Starred is a flag in
// storage; folder queries for it filter on the flag instead.
type Folder string

const (
	FolderInbox   Folder = "inbox"
	FolderSent    Folder = "sent"
	FolderDrafts  Folder = "drafts"
	FolderTrash   Folder = "trash"
	FolderArchive Folder = "archive"
	FolderStarred Folder = "starred"
)

func (t Folder) String() string {
	return string(t)
}

func (t Folder) IsValid() bool {
	switch t {
	case FolderInbox, FolderSent, FolderDrafts, FolderTrash, FolderArchive, FolderStarred:
		return true
	}
	return false
}

// AllFolders lists the folders in the order mailboxes are reported.
func AllFolders() []Folder {
	return []Folder{FolderInbox, FolderStarred, FolderSent, FolderDrafts, FolderArchive, FolderTrash}
}

type StorageKind string

const (
	StorageKindS3     StorageKind = "s3"
	StorageKindInline StorageKind = "inline"
)

func (t StorageKind) String() string {
	return string(t)
}
