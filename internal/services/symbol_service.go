package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"time"

	"github.com/doc-capture/internal/codec"
	"github.com/doc-capture/internal/db/models"
	"github.com/doc-capture/pkg/metrics"
	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"
)

var unsafeEntryChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// SymbolService renders printable identity symbols for content types.
type SymbolService struct {
	classification *ClassificationService
	codec          *codec.Codec
	logger         *zap.Logger
	metrics        *metrics.MetricsCollector
}

func NewSymbolService(classification *ClassificationService, qr *codec.Codec, logger *zap.Logger, metrics *metrics.MetricsCollector) *SymbolService {
	return &SymbolService{
		classification: classification,
		codec:          qr,
		logger:         logger.With(zap.String("service", "symbol_service")),
		metrics:        metrics,
	}
}

func (ss *SymbolService) SymbolPNG(ctx context.Context, contentID uint) ([]byte, *models.ContentType, error) {
	content, err := ss.classification.GetContent(ctx, contentID)
	if err != nil {
		return nil, nil, err
	}
	png, err := ss.codec.Encode(content.ID)
	if err != nil {
		return nil, nil, err
	}
	ss.metrics.IncrementCounter("symbols_rendered", nil)
	return png, content, nil
}

func (ss *SymbolService) SymbolDataURI(ctx context.Context, contentID uint) (string, *models.ContentType, error) {
	png, content, err := ss.SymbolPNG(ctx, contentID)
	if err != nil {
		return "", nil, err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), content, nil
}

// ArchiveEntryName is the zip entry used for a content type's symbol.
func ArchiveEntryName(content *models.ContentType) string {
	return fmt.Sprintf("%s-%d.png", unsafeEntryChars.ReplaceAllString(content.Name, "_"), content.ID)
}

// FolderArchive zips one symbol per content type linked to the folder.
func (ss *SymbolService) FolderArchive(ctx context.Context, folderID uint) ([]byte, error) {
	contents, err := ss.classification.ListFolderContents(ctx, folderID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	now := time.Now()
	for i := range contents {
		png, err := ss.codec.Encode(contents[i].ID)
		if err != nil {
			return nil, err
		}
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     ArchiveEntryName(&contents[i]),
			Method:   zip.Deflate,
			Modified: now,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to add archive entry: %w", err)
		}
		if _, err := w.Write(png); err != nil {
			return nil, fmt.Errorf("failed to write archive entry: %w", err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish archive: %w", err)
	}

	ss.metrics.IncrementCounter("archives_built", nil)
	ss.logger.Info("Folder symbol archive built", zap.Uint("folder_id", folderID), zap.Int("entries", len(contents)))
	return buf.Bytes(), nil
}
