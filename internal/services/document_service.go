package services

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/doc-capture/internal/db/models"
	"github.com/doc-capture/internal/storage"
	"github.com/doc-capture/pkg/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	MessageMissingPieces = "some required pieces are missing"
	MessageValidated     = "document validated"
)

type DocumentService struct {
	db      *gorm.DB
	store   *storage.BlobStore
	logger  *zap.Logger
	metrics *metrics.MetricsCollector
}

type DocumentSummary struct {
	ID          uint                  `json:"id"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Status      models.DocumentStatus `json:"status"`
	Metadata    models.JSONMap        `json:"metadata"`
	PieceCount  int64                 `json:"pieceCount"`
	CreatedAt   time.Time             `json:"createdAt"`
	UpdatedAt   time.Time             `json:"updatedAt"`
}

type DocumentDetail struct {
	models.Document
	Pieces []PieceView `json:"pieces"`
}

type ValidationResult struct {
	Success         bool          `json:"success"`
	Message         string        `json:"message"`
	MissingContents []ContentNode `json:"missingContents"`
}

type DocumentStats struct {
	Total       int64                           `json:"totalDocuments"`
	ByStatus    map[models.DocumentStatus]int64 `json:"byStatus"`
	TotalPieces int64                           `json:"totalPieces"`
}

func NewDocumentService(db *gorm.DB, store *storage.BlobStore, logger *zap.Logger, metrics *metrics.MetricsCollector) *DocumentService {
	return &DocumentService{
		db:      db,
		store:   store,
		logger:  logger.With(zap.String("service", "document_service")),
		metrics: metrics,
	}
}

// CreateDocument opens a BROUILLON document targeting a folder. The folder id
// and name are written into the metadata.
func (ds *DocumentService) CreateDocument(ctx context.Context, in DocumentInput) (*models.Document, error) {
	in.normalize()
	if err := validateInput(in); err != nil {
		return nil, err
	}

	var doc *models.Document
	err := ds.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		folder, err := findByID[models.Folder](ctx, tx, in.FolderID, "folder")
		if err != nil {
			return err
		}
		if err := ensureUnique(ctx, tx, &models.Document{}, "title", in.Title, 0, "document"); err != nil {
			return err
		}

		metadata := make(models.JSONMap, len(in.Metadata)+2)
		for k, v := range in.Metadata {
			metadata[k] = v
		}
		metadata[models.MetadataFolderID] = folder.ID
		metadata[models.MetadataFolderName] = folder.Name

		doc = &models.Document{
			Title:       in.Title,
			Description: in.Description,
			Status:      models.StatusDraft,
			Metadata:    metadata,
		}
		return translateError(tx.Create(doc).Error, "document")
	})
	if err != nil {
		return nil, err
	}

	ds.metrics.IncrementCounter("documents_created", nil)
	ds.logger.Info("Document created",
		zap.Uint("document_id", doc.ID),
		zap.String("title", doc.Title),
		zap.Uint("folder_id", in.FolderID))
	return doc, nil
}

func (ds *DocumentService) GetDocument(ctx context.Context, id uint) (*DocumentDetail, error) {
	db := ds.db.WithContext(ctx)
	doc, err := findByID[models.Document](ctx, db, id, "document")
	if err != nil {
		return nil, err
	}

	var pieces []models.Piece
	if err := db.Where("document_id = ?", id).Order("id").Find(&pieces).Error; err != nil {
		return nil, err
	}

	contents := make(map[uint]*models.ContentType)
	if len(pieces) > 0 {
		ids := make([]uint, 0, len(pieces))
		for _, p := range pieces {
			ids = append(ids, p.ContentTypeID)
		}
		var rows []models.ContentType
		if err := db.Unscoped().Where("id IN ?", ids).Find(&rows).Error; err != nil {
			return nil, err
		}
		for i := range rows {
			contents[rows[i].ID] = &rows[i]
		}
	}

	detail := &DocumentDetail{Document: *doc, Pieces: make([]PieceView, 0, len(pieces))}
	for i := range pieces {
		detail.Pieces = append(detail.Pieces, *newPieceView(&pieces[i], contents[pieces[i].ContentTypeID]))
	}
	return detail, nil
}

// SearchDocuments filters on a case-insensitive title fragment and an
// optional status. Both filters are optional.
func (ds *DocumentService) SearchDocuments(ctx context.Context, title string, status *models.DocumentStatus) ([]DocumentSummary, error) {
	db := ds.db.WithContext(ctx)
	query := db.Model(&models.Document{})
	if title = strings.TrimSpace(title); title != "" {
		query = query.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(title)+"%")
	}
	if status != nil {
		if !status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, *status)
		}
		query = query.Where("status = ?", *status)
	}

	var docs []models.Document
	if err := query.Order("id").Find(&docs).Error; err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return []DocumentSummary{}, nil
	}

	ids := make([]uint, len(docs))
	for i := range docs {
		ids[i] = docs[i].ID
	}
	var counts []struct {
		DocumentID uint
		Count      int64
	}
	if err := db.Model(&models.Piece{}).
		Select("document_id, COUNT(*) AS count").
		Where("document_id IN ?", ids).
		Group("document_id").
		Scan(&counts).Error; err != nil {
		return nil, err
	}
	perDoc := make(map[uint]int64, len(counts))
	for _, c := range counts {
		perDoc[c.DocumentID] = c.Count
	}

	summaries := make([]DocumentSummary, 0, len(docs))
	for _, d := range docs {
		summaries = append(summaries, DocumentSummary{
			ID:          d.ID,
			Title:       d.Title,
			Description: d.Description,
			Status:      d.Status,
			Metadata:    d.Metadata,
			PieceCount:  perDoc[d.ID],
			CreatedAt:   d.CreatedAt,
			UpdatedAt:   d.UpdatedAt,
		})
	}
	return summaries, nil
}

// UpdateDocument merges metadata into the stored map; the folder target keys
// always keep their stored values.
func (ds *DocumentService) UpdateDocument(ctx context.Context, id uint, in DocumentUpdate) (*models.Document, error) {
	in.normalize()
	if err := validateInput(in); err != nil {
		return nil, err
	}

	var doc *models.Document
	err := ds.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		doc, err = findByID[models.Document](ctx, tx, id, "document")
		if err != nil {
			return err
		}

		updates := map[string]any{}
		if in.Title != nil {
			if err := ensureUnique(ctx, tx, &models.Document{}, "title", *in.Title, id, "document"); err != nil {
				return err
			}
			doc.Title = *in.Title
			updates["title"] = doc.Title
		}
		if in.Description != nil {
			doc.Description = *in.Description
			updates["description"] = doc.Description
		}
		if in.Metadata != nil {
			merged := make(models.JSONMap, len(doc.Metadata)+len(in.Metadata))
			for k, v := range doc.Metadata {
				merged[k] = v
			}
			for k, v := range in.Metadata {
				if k == models.MetadataFolderID || k == models.MetadataFolderName {
					continue
				}
				merged[k] = v
			}
			doc.Metadata = merged
			updates["metadata"] = merged
		}
		if len(updates) == 0 {
			return nil
		}
		return translateError(tx.Model(doc).Updates(updates).Error, "document")
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// UpdateDocumentStatus sets any of the three statuses without checking the
// current one.
func (ds *DocumentService) UpdateDocumentStatus(ctx context.Context, id uint, status models.DocumentStatus) (*models.Document, error) {
	if err := validateInput(StatusUpdate{Status: status}); err != nil {
		return nil, err
	}

	var doc *models.Document
	err := ds.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		doc, err = findByID[models.Document](ctx, tx, id, "document")
		if err != nil {
			return err
		}
		doc.Status = status
		return tx.Model(doc).Update("status", status).Error
	})
	if err != nil {
		return nil, err
	}

	ds.logger.Info("Document status overridden", zap.Uint("document_id", id), zap.String("status", string(status)))
	return doc, nil
}

// DeleteDocument removes the document, its pieces and their stored files.
func (ds *DocumentService) DeleteDocument(ctx context.Context, id uint) error {
	var paths []string
	err := ds.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		doc, err := findByID[models.Document](ctx, tx, id, "document")
		if err != nil {
			return err
		}
		if err := tx.Model(&models.Piece{}).Where("document_id = ?", id).Pluck("file_path", &paths).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("document_id = ?", id).Delete(&models.Piece{}).Error; err != nil {
			return err
		}
		return tx.Delete(doc).Error
	})
	if err != nil {
		return err
	}

	for _, p := range paths {
		ds.removeFile(p)
	}
	ds.logger.Info("Document deleted", zap.Uint("document_id", id), zap.Int("pieces_removed", len(paths)))
	return nil
}

func (ds *DocumentService) DeletePiece(ctx context.Context, documentID, pieceID uint) error {
	var piece models.Piece
	err := ds.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findByID[models.Document](ctx, tx, documentID, "document"); err != nil {
			return err
		}
		result := tx.Where("id = ? AND document_id = ?", pieceID, documentID).Limit(1).Find(&piece)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: piece %d of document %d", ErrNotFound, pieceID, documentID)
		}
		return tx.Unscoped().Delete(&piece).Error
	})
	if err != nil {
		return err
	}

	ds.removeFile(piece.FilePath)
	ds.logger.Info("Piece deleted", zap.Uint("document_id", documentID), zap.Uint("piece_id", pieceID))
	return nil
}

func (ds *DocumentService) removeFile(path string) {
	if path == "" {
		return
	}
	if err := ds.store.Remove(filepath.Base(path)); err != nil {
		ds.logger.Warn("Failed to remove stored file", zap.String("path", path), zap.Error(err))
	}
}

// ValidateDocument diffs the required content types of the target folder
// against the content types already captured. A complete document becomes
// VALIDE.
func (ds *DocumentService) ValidateDocument(ctx context.Context, id uint) (*ValidationResult, error) {
	start := time.Now()
	var result *ValidationResult
	err := ds.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		doc, err := findByID[models.Document](ctx, tx, id, "document")
		if err != nil {
			return err
		}
		folderID, ok := folderIDFromMetadata(doc.Metadata)
		if !ok {
			return fmt.Errorf("%w: document %d has no target folder", ErrInvalidState, id)
		}

		required, err := folderContents(tx, folderID, true)
		if err != nil {
			return err
		}
		var captured []uint
		if err := tx.Model(&models.Piece{}).Where("document_id = ?", id).Pluck("content_type_id", &captured).Error; err != nil {
			return err
		}
		have := make(map[uint]bool, len(captured))
		for _, c := range captured {
			have[c] = true
		}

		missing := []ContentNode{}
		for i := range required {
			if !have[required[i].ID] {
				missing = append(missing, contentNode(&required[i]))
			}
		}
		if len(missing) > 0 {
			result = &ValidationResult{Success: false, Message: MessageMissingPieces, MissingContents: missing}
			return nil
		}

		if err := tx.Model(doc).Update("status", models.StatusValidated).Error; err != nil {
			return err
		}
		result = &ValidationResult{Success: true, Message: MessageValidated, MissingContents: missing}
		return nil
	})
	if err != nil {
		return nil, err
	}

	outcome := "complete"
	if !result.Success {
		outcome = "incomplete"
	}
	ds.metrics.IncrementCounter("documents_validated", map[string]string{"result": outcome})
	ds.metrics.ObserveLatency("document_validation", time.Since(start))
	ds.logger.Info("Document validation",
		zap.Uint("document_id", id),
		zap.Bool("success", result.Success),
		zap.Int("missing", len(result.MissingContents)))
	return result, nil
}

// folderIDFromMetadata accepts the folder id as a JSON number or a numeric
// string.
func folderIDFromMetadata(meta models.JSONMap) (uint, bool) {
	raw, ok := meta[models.MetadataFolderID]
	if !ok || raw == nil {
		return 0, false
	}
	var n float64
	switch v := raw.(type) {
	case float64:
		n = v
	case int:
		n = float64(v)
	case int64:
		n = float64(v)
	case uint:
		n = float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		n = f
	case string:
		parsed, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, false
		}
		return uint(parsed), parsed > 0
	default:
		return 0, false
	}
	if n <= 0 || n != float64(uint64(n)) {
		return 0, false
	}
	return uint(n), true
}

func (ds *DocumentService) Statistics(ctx context.Context) (*DocumentStats, error) {
	db := ds.db.WithContext(ctx)
	stats := &DocumentStats{ByStatus: map[models.DocumentStatus]int64{
		models.StatusDraft:      0,
		models.StatusInProgress: 0,
		models.StatusValidated:  0,
	}}

	var rows []struct {
		Status models.DocumentStatus
		Count  int64
	}
	if err := db.Model(&models.Document{}).Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		stats.ByStatus[r.Status] = r.Count
		stats.Total += r.Count
	}
	if err := db.Model(&models.Piece{}).Count(&stats.TotalPieces).Error; err != nil {
		return nil, err
	}
	return stats, nil
}
