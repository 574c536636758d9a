package services

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/doc-capture/internal/db/models"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plan := f.plan(t, "Plan alpha")
	folder := f.folder(t, "Dossier A", plan.ID, nil)

	doc, err := f.documents.CreateDocument(ctx, DocumentInput{
		Title:    "Dossier Martin",
		FolderID: folder.ID,
		Metadata: models.JSONMap{"agence": "Lyon"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, doc.Status)

	detail, err := f.documents.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(folder.ID), detail.Metadata[models.MetadataFolderID])
	assert.Equal(t, "Dossier A", detail.Metadata[models.MetadataFolderName])
	assert.Equal(t, "Lyon", detail.Metadata["agence"])
	assert.Empty(t, detail.Pieces)

	_, err = f.documents.CreateDocument(ctx, DocumentInput{Title: "Dossier Martin", FolderID: folder.ID})
	assert.ErrorIs(t, err, ErrConflict)
	_, err = f.documents.CreateDocument(ctx, DocumentInput{Title: "Dossier Durand"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = f.documents.CreateDocument(ctx, DocumentInput{Title: "Dossier Durand", FolderID: 999})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestValidateDocument(t *testing.T) {
	s := newCaptureScene(t)
	ctx := context.Background()
	second := s.content(t, "Justificatif domicile", true)
	s.link(t, s.folder.ID, second.ID)

	result, err := s.documents.ValidateDocument(ctx, s.doc.ID)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, MessageMissingPieces, result.Message)
	require.Len(t, result.MissingContents, 2)
	assert.Equal(t, s.required.ID, result.MissingContents[0].ID)
	assert.Equal(t, second.ID, result.MissingContents[1].ID)

	_, err = s.capture.CapturePiece(ctx, s.doc.ID, s.symbolUpload(t, s.required.ID))
	require.NoError(t, err)
	result, err = s.documents.ValidateDocument(ctx, s.doc.ID)
	require.NoError(t, err)
	assert.False(t, result.Success)
	require.Len(t, result.MissingContents, 1)
	assert.Equal(t, second.ID, result.MissingContents[0].ID)
	assert.Equal(t, models.StatusInProgress, s.status(t))

	_, err = s.capture.CapturePiece(ctx, s.doc.ID, s.symbolUpload(t, second.ID))
	require.NoError(t, err)
	result, err = s.documents.ValidateDocument(ctx, s.doc.ID)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, MessageValidated, result.Message)
	assert.Empty(t, result.MissingContents)
	assert.Equal(t, models.StatusValidated, s.status(t))

	_, err = s.documents.ValidateDocument(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestValidateDocumentWithoutFolder(t *testing.T) {
	s := newCaptureScene(t)
	require.NoError(t, s.db.Model(&models.Document{}).Where("id = ?", s.doc.ID).
		Update("metadata", models.JSONMap{"agence": "Lyon"}).Error)

	_, err := s.documents.ValidateDocument(context.Background(), s.doc.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestUpdateDocumentKeepsFolderTarget(t *testing.T) {
	s := newCaptureScene(t)
	ctx := context.Background()
	title := "Dossier Martin 2"

	doc, err := s.documents.UpdateDocument(ctx, s.doc.ID, DocumentUpdate{
		Title:    &title,
		Metadata: models.JSONMap{models.MetadataFolderID: 999, "agence": "Lyon"},
	})
	require.NoError(t, err)
	assert.Equal(t, title, doc.Title)

	detail, err := s.documents.GetDocument(ctx, s.doc.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(s.folder.ID), detail.Metadata[models.MetadataFolderID])
	assert.Equal(t, "Lyon", detail.Metadata["agence"])

	other := s.document(t, "Dossier Durand", s.folder.ID)
	_, err = s.documents.UpdateDocument(ctx, other.ID, DocumentUpdate{Title: &title})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestUpdateDocumentStatus(t *testing.T) {
	s := newCaptureScene(t)
	ctx := context.Background()

	_, err := s.documents.UpdateDocumentStatus(ctx, s.doc.ID, models.StatusValidated)
	require.NoError(t, err)
	_, err = s.documents.UpdateDocumentStatus(ctx, s.doc.ID, models.StatusDraft)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, s.status(t))

	_, err = s.documents.UpdateDocumentStatus(ctx, s.doc.ID, "ARCHIVE")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestDeleteDocumentRemovesFiles(t *testing.T) {
	s := newCaptureScene(t)
	ctx := context.Background()

	view, err := s.capture.CapturePiece(ctx, s.doc.ID, s.symbolUpload(t, s.required.ID))
	require.NoError(t, err)
	name := filepath.Base(view.PieceURL)
	_, err = util.ReadFile(s.fs, name)
	require.NoError(t, err)

	require.NoError(t, s.documents.DeleteDocument(ctx, s.doc.ID))

	_, err = util.ReadFile(s.fs, name)
	assert.Error(t, err)
	_, err = s.documents.GetDocument(ctx, s.doc.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	var pieces int64
	require.NoError(t, s.db.Model(&models.Piece{}).Count(&pieces).Error)
	assert.Zero(t, pieces)
}

func TestDeletePiece(t *testing.T) {
	s := newCaptureScene(t)
	ctx := context.Background()

	view, err := s.capture.CapturePiece(ctx, s.doc.ID, s.symbolUpload(t, s.required.ID))
	require.NoError(t, err)

	other := s.document(t, "Dossier Durand", s.folder.ID)
	assert.ErrorIs(t, s.documents.DeletePiece(ctx, other.ID, view.ID), ErrNotFound)

	require.NoError(t, s.documents.DeletePiece(ctx, s.doc.ID, view.ID))
	_, err = util.ReadFile(s.fs, filepath.Base(view.PieceURL))
	assert.Error(t, err)

	detail, err := s.documents.GetDocument(ctx, s.doc.ID)
	require.NoError(t, err)
	assert.Empty(t, detail.Pieces)
}

func TestSearchAndStatistics(t *testing.T) {
	s := newCaptureScene(t)
	ctx := context.Background()
	s.document(t, "Contrat Durand", s.folder.ID)
	_, err := s.capture.CapturePiece(ctx, s.doc.ID, s.symbolUpload(t, s.required.ID))
	require.NoError(t, err)

	all, err := s.documents.SearchDocuments(ctx, "", nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byTitle, err := s.documents.SearchDocuments(ctx, "martin", nil)
	require.NoError(t, err)
	require.Len(t, byTitle, 1)
	assert.Equal(t, s.doc.ID, byTitle[0].ID)
	assert.Equal(t, int64(1), byTitle[0].PieceCount)

	draft := models.StatusDraft
	drafts, err := s.documents.SearchDocuments(ctx, "", &draft)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "Contrat Durand", drafts[0].Title)

	bogus := models.DocumentStatus("ARCHIVE")
	_, err = s.documents.SearchDocuments(ctx, "", &bogus)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	stats, err := s.documents.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.ByStatus[models.StatusDraft])
	assert.Equal(t, int64(1), stats.ByStatus[models.StatusInProgress])
	assert.Equal(t, int64(0), stats.ByStatus[models.StatusValidated])
	assert.Equal(t, int64(1), stats.TotalPieces)
}

func TestFolderIDFromMetadata(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  uint
		ok    bool
	}{
		{"float", float64(12), 12, true},
		{"int", 7, 7, true},
		{"json number", json.Number("3"), 3, true},
		{"numeric string", "42", 42, true},
		{"fraction", 1.5, 0, false},
		{"negative", float64(-1), 0, false},
		{"text", "abc", 0, false},
		{"nil", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := folderIDFromMetadata(models.JSONMap{models.MetadataFolderID: tt.value})
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := folderIDFromMetadata(models.JSONMap{})
	assert.False(t, ok)
}
