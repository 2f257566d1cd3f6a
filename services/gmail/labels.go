package gmail

import "github.com/flowmail/flowmail/internal/enum"

// Gmail system label ids.
const (
	labelInbox   = "INBOX"
	labelSent    = "SENT"
	labelDraft   = "DRAFT"
	labelTrash   = "TRASH"
	labelStarred = "STARRED"
	labelUnread  = "UNREAD"
)

var folderToLabel = map[enum.Folder]string{
	enum.FolderInbox:   labelInbox,
	enum.FolderSent:    labelSent,
	enum.FolderDrafts:  labelDraft,
	enum.FolderTrash:   labelTrash,
	enum.FolderStarred: labelStarred,
	// archive has no Gmail label equivalent; it means "no label filter"
	enum.FolderArchive: "",
}

var labelToFolder = map[string]enum.Folder{
	labelInbox:   enum.FolderInbox,
	labelSent:    enum.FolderSent,
	labelDraft:   enum.FolderDrafts,
	labelTrash:   enum.FolderTrash,
	labelStarred: enum.FolderStarred,
}

// FolderToLabel maps an internal folder to the Gmail label used to query it.
// Unknown folders default to the inbox label; archive maps to the empty
// string, meaning no label filter.
func FolderToLabel(folder enum.Folder) string {
	label, ok := folderToLabel[folder]
	if !ok {
		return labelInbox
	}
	return label
}

// LabelToFolder maps a Gmail label back to the internal folder vocabulary.
func LabelToFolder(label string) (enum.Folder, bool) {
	folder, ok := labelToFolder[label]
	return folder, ok
}

// folderFromLabels derives the folder a remote message is reported under.
// A message with none of the mapped labels is archived.
func folderFromLabels(labelIds []string) enum.Folder {
	for _, label := range []string{labelTrash, labelDraft, labelSent, labelInbox} {
		for _, id := range labelIds {
			if id == label {
				folder, _ := LabelToFolder(label)
				return folder
			}
		}
	}
	return enum.FolderArchive
}

func hasLabel(labelIds []string, label string) bool {
	for _, id := range labelIds {
		if id == label {
			return true
		}
	}
	return false
}
