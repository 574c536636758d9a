package models

import "time"

// Folder is a node of a plan's tree. ParentFolderID, when set, always points
// at a folder of the same plan.
type Folder struct {
	Model
	Name           string `gorm:"size:255;not null;uniqueIndex:idx_folders_name,where:deleted_at IS NULL" json:"name"`
	Description    string `json:"description"`
	PlanID         uint   `gorm:"not null;index" json:"planId"`
	ParentFolderID *uint  `gorm:"index" json:"parentFolderId,omitempty"`
}

// FolderContent is the folder <-> content type association. The composite
// primary key is what makes linking atomic.
type FolderContent struct {
	FolderID      uint      `gorm:"primaryKey;autoIncrement:false"`
	ContentTypeID uint      `gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt     time.Time
}

func (FolderContent) TableName() string {
	return "folder_contents"
}
