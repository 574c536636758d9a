package services

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"strings"
	"sync"
	"time"

	"github.com/doc-capture/internal/codec"
	"github.com/doc-capture/internal/config"
	"github.com/doc-capture/internal/db/models"
	"github.com/doc-capture/internal/storage"
	"github.com/doc-capture/pkg/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var allowedMimeTypes = map[string]models.FileType{
	"image/png":       models.FileTypePNG,
	"image/jpeg":      models.FileTypeJPG,
	"image/jpg":       models.FileTypeJPG,
	"image/webp":      models.FileTypeJPG,
	"application/pdf": models.FileTypePDF,
}

// Upload is one received file, already read into memory.
type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
}

type PieceView struct {
	ID          uint            `json:"id"`
	FileName    string          `json:"fileName"`
	FileSize    int64           `json:"fileSize"`
	FileType    models.FileType `json:"fileType"`
	PieceURL    string          `json:"pieceUrl"`
	QRCodeData  string          `json:"qrCodeData"`
	ContentID   uint            `json:"contentId"`
	ContentName string          `json:"contentName"`
	Required    bool            `json:"isRequired"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type CaptureResult struct {
	Index    int        `json:"index"`
	FileName string     `json:"fileName"`
	Piece    *PieceView `json:"piece,omitempty"`
	Error    string     `json:"error,omitempty"`
}

type CaptureService struct {
	db             *gorm.DB
	store          *storage.BlobStore
	codec          *codec.Codec
	classification *ClassificationService
	upload         config.UploadConfig
	logger         *zap.Logger
	metrics        *metrics.MetricsCollector
}

func NewCaptureService(
	db *gorm.DB,
	store *storage.BlobStore,
	qr *codec.Codec,
	classification *ClassificationService,
	upload config.UploadConfig,
	logger *zap.Logger,
	metrics *metrics.MetricsCollector,
) *CaptureService {
	return &CaptureService{
		db:             db,
		store:          store,
		codec:          qr,
		classification: classification,
		upload:         upload,
		logger:         logger.With(zap.String("service", "capture_service")),
		metrics:        metrics,
	}
}

// CapturePiece reads the identity symbol on the upload, stores the bytes and
// records a piece for the document. The first piece moves a BROUILLON
// document to EN_COURS.
func (cs *CaptureService) CapturePiece(ctx context.Context, documentID uint, up Upload) (*PieceView, error) {
	start := time.Now()
	log := cs.logger.With(zap.Uint("document_id", documentID), zap.String("file_name", up.FileName))

	view, err := cs.capture(ctx, log, documentID, up)
	cs.metrics.IncrementCounter("pieces_captured", map[string]string{"result": captureOutcome(err)})
	cs.metrics.ObserveLatency("piece_capture", time.Since(start))
	if err != nil {
		log.Warn("Capture rejected", zap.Error(err))
		return nil, err
	}

	cs.metrics.ObserveSize("piece_size", float64(view.FileSize))
	log.Info("Piece captured",
		zap.Uint("piece_id", view.ID),
		zap.Uint("content_id", view.ContentID),
		zap.Duration("duration", time.Since(start)))
	return view, nil
}

func (cs *CaptureService) capture(ctx context.Context, log *zap.Logger, documentID uint, up Upload) (*PieceView, error) {
	log.Debug("Upload received", zap.Int("size", len(up.Data)), zap.String("mime", up.ContentType))

	doc, err := findByID[models.Document](ctx, cs.db, documentID, "document")
	if err != nil {
		return nil, err
	}
	if doc.Status == models.StatusValidated {
		return nil, fmt.Errorf("%w: document %d is already validated", ErrInvalidState, documentID)
	}

	mimeType, fileType, err := cs.validateUpload(up)
	if err != nil {
		return nil, err
	}
	log.Debug("Upload validated", zap.String("mime", mimeType))

	img, err := codec.LoadImage(up.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidUpload, err)
	}
	log.Debug("Image decoded", zap.Int("width", img.Bounds().Dx()), zap.Int("height", img.Bounds().Dy()))

	contentID, payload, err := cs.codec.DecodeImage(img)
	if err != nil {
		return nil, err
	}
	log.Debug("Identity extracted", zap.String("payload", payload))

	content, err := cs.classification.GetContent(ctx, contentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown content type %d", ErrNotFound, contentID)
		}
		return nil, err
	}
	log.Debug("Content resolved", zap.Uint("content_id", content.ID), zap.String("content_name", content.Name))

	stored, err := cs.store.Store(up.Data, mimeType)
	if err != nil {
		return nil, err
	}
	log.Debug("File stored", zap.String("stored_name", stored.Name))

	piece := &models.Piece{
		FileName:      up.FileName,
		FilePath:      stored.Path,
		PieceURL:      stored.URL,
		FileSize:      stored.Size,
		FileType:      fileType,
		QRCodeData:    payload,
		DocumentID:    doc.ID,
		ContentTypeID: content.ID,
	}
	err = cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(piece).Error; err != nil {
			return err
		}
		return tx.Model(&models.Document{}).
			Where("id = ? AND status = ?", doc.ID, models.StatusDraft).
			Update("status", models.StatusInProgress).Error
	})
	if err != nil {
		if rmErr := cs.store.Remove(stored.Name); rmErr != nil {
			log.Error("Failed to remove orphaned file", zap.String("stored_name", stored.Name), zap.Error(rmErr))
		}
		return nil, fmt.Errorf("failed to record piece: %w", err)
	}
	log.Debug("Piece recorded", zap.Uint("piece_id", piece.ID))

	return newPieceView(piece, content), nil
}

func (cs *CaptureService) validateUpload(up Upload) (string, models.FileType, error) {
	if len(up.Data) == 0 {
		return "", "", fmt.Errorf("%w: file is empty", ErrInvalidUpload)
	}
	mimeType := normalizeMime(up.ContentType)
	fileType, ok := allowedMimeTypes[mimeType]
	if !ok {
		return "", "", fmt.Errorf("%w: file type %q is not allowed", ErrInvalidUpload, up.ContentType)
	}
	if int64(len(up.Data)) > cs.upload.MaxBytes {
		return "", "", fmt.Errorf("%w: file exceeds %d bytes", ErrInvalidUpload, cs.upload.MaxBytes)
	}
	return mimeType, fileType, nil
}

func normalizeMime(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mediaType
}

// CaptureBatch runs CapturePiece for every upload and reports each outcome
// at the upload's index. It fails only when no upload was captured.
func (cs *CaptureService) CaptureBatch(ctx context.Context, documentID uint, uploads []Upload) ([]CaptureResult, error) {
	if len(uploads) == 0 {
		return nil, fmt.Errorf("%w: no files provided", ErrInvalidUpload)
	}
	if cs.upload.MaxBatchLen > 0 && len(uploads) > cs.upload.MaxBatchLen {
		return nil, fmt.Errorf("%w: at most %d files per batch", ErrInvalidUpload, cs.upload.MaxBatchLen)
	}
	if _, err := findByID[models.Document](ctx, cs.db, documentID, "document"); err != nil {
		return nil, err
	}

	results := make([]CaptureResult, len(uploads))
	const maxWorkers = 4
	sem := make(chan struct{}, maxWorkers)
	var wg sync.WaitGroup

	for i, up := range uploads {
		results[i] = CaptureResult{Index: i, FileName: up.FileName}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, up Upload) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := ctx.Err(); err != nil {
				results[i].Error = err.Error()
				return
			}
			view, err := cs.CapturePiece(ctx, documentID, up)
			if err != nil {
				results[i].Error = err.Error()
				return
			}
			results[i].Piece = view
		}(i, up)
	}
	wg.Wait()

	var failures []string
	for _, r := range results {
		if r.Piece == nil {
			failures = append(failures, fmt.Sprintf("file %d: %s", r.Index+1, r.Error))
		}
	}
	if len(failures) == len(results) {
		return results, fmt.Errorf("%w: %s", ErrInvalidUpload, strings.Join(failures, "; "))
	}

	cs.logger.Info("Batch captured",
		zap.Uint("document_id", documentID),
		zap.Int("captured", len(results)-len(failures)),
		zap.Int("failed", len(failures)))
	return results, nil
}

func captureOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrInvalidUpload):
		return "invalid_upload"
	case errors.Is(err, codec.ErrSymbolNotFound):
		return "symbol_not_found"
	case errors.Is(err, codec.ErrMalformedPayload):
		return "malformed_payload"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	default:
		return "error"
	}
}

func newPieceView(p *models.Piece, c *models.ContentType) *PieceView {
	view := &PieceView{
		ID:         p.ID,
		FileName:   p.FileName,
		FileSize:   p.FileSize,
		FileType:   p.FileType,
		PieceURL:   p.PieceURL,
		QRCodeData: p.QRCodeData,
		ContentID:  p.ContentTypeID,
		CreatedAt:  p.CreatedAt,
	}
	if c != nil {
		view.ContentName = c.Name
		view.Required = c.Required
	}
	return view
}
