package services

import (
	"strings"

	"github.com/doc-capture/internal/db/models"
)

type PlanInput struct {
	Name        string `json:"name" validate:"required,min=5,max=255"`
	Description string `json:"description"`
}

type FolderInput struct {
	Name           string `json:"name" validate:"required,min=5,max=255"`
	Description    string `json:"description"`
	PlanID         uint   `json:"planId" validate:"required"`
	ParentFolderID *uint  `json:"parentFolderId"`
}

type FolderUpdate struct {
	Name        string `json:"name" validate:"required,min=5,max=255"`
	Description string `json:"description"`
}

type ContentInput struct {
	Name        string `json:"name" validate:"required,min=3,max=255"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

type DocumentInput struct {
	Title       string         `json:"title" validate:"required,min=3,max=255"`
	Description string         `json:"description"`
	FolderID    uint           `json:"folderId" validate:"required"`
	Metadata    models.JSONMap `json:"metadata"`
}

// DocumentUpdate changes only the fields that are set.
type DocumentUpdate struct {
	Title       *string        `json:"title" validate:"omitempty,min=3,max=255"`
	Description *string        `json:"description"`
	Metadata    models.JSONMap `json:"metadata"`
}

type StatusUpdate struct {
	Status models.DocumentStatus `json:"status" validate:"required,oneof=BROUILLON EN_COURS VALIDE"`
}

func (in *PlanInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
}

func (in *FolderInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
}

func (in *FolderUpdate) normalize() {
	in.Name = strings.TrimSpace(in.Name)
}

func (in *ContentInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
}

func (in *DocumentInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
}

func (in *DocumentUpdate) normalize() {
	if in.Title != nil {
		t := strings.TrimSpace(*in.Title)
		in.Title = &t
	}
}
