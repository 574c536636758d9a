package models

type DocumentStatus string

const (
	StatusDraft      DocumentStatus = "BROUILLON"
	StatusInProgress DocumentStatus = "EN_COURS"
	StatusValidated  DocumentStatus = "VALIDE"
)

func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusInProgress, StatusValidated:
		return true
	}
	return false
}

const (
	MetadataFolderID   = "folderId"
	MetadataFolderName = "folderName"
)

type Document struct {
	Model
	Title       string         `gorm:"size:255;not null;uniqueIndex:idx_documents_title,where:deleted_at IS NULL" json:"title"`
	Description string         `json:"description"`
	Status      DocumentStatus `gorm:"size:16;not null;index" json:"status"`
	Metadata    JSONMap        `gorm:"type:jsonb" json:"metadata"`
}
