package services

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/doc-capture/internal/codec"
	"github.com/doc-capture/internal/config"
	"github.com/doc-capture/internal/db"
	"github.com/doc-capture/internal/db/models"
	"github.com/doc-capture/internal/storage"
	"github.com/doc-capture/pkg/metrics"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db             *gorm.DB
	fs             billy.Filesystem
	store          *storage.BlobStore
	codec          *codec.Codec
	metrics        *metrics.MetricsCollector
	classification *ClassificationService
	capture        *CaptureService
	documents      *DocumentService
	symbols        *SymbolService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	database, err := db.Open(config.DatabaseConfig{
		Driver:   config.DriverSQLite,
		DSN:      filepath.Join(t.TempDir(), "services.db"),
		LogLevel: "silent",
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(database, zap.NewNop()))
	t.Cleanup(func() { _ = db.Close(database) })

	logger := zap.NewNop()
	mc := metrics.NewMetricsCollector()
	fs := memfs.New()
	store := storage.NewBlobStore(fs, "http://files.test/")
	qr := codec.New(codec.DefaultWidth, codec.DefaultHeight)
	upload := config.InitializeDefaultConfig().Upload

	classification := NewClassificationService(database, logger, mc)
	return &fixture{
		db:             database,
		fs:             fs,
		store:          store,
		codec:          qr,
		metrics:        mc,
		classification: classification,
		capture:        NewCaptureService(database, store, qr, classification, upload, logger, mc),
		documents:      NewDocumentService(database, store, logger, mc),
		symbols:        NewSymbolService(classification, qr, logger, mc),
	}
}

func (f *fixture) plan(t *testing.T, name string) *models.ClassificationPlan {
	t.Helper()
	p, err := f.classification.CreatePlan(context.Background(), PlanInput{Name: name})
	require.NoError(t, err)
	return p
}

func (f *fixture) folder(t *testing.T, name string, planID uint, parent *uint) *models.Folder {
	t.Helper()
	fo, err := f.classification.CreateFolder(context.Background(), FolderInput{Name: name, PlanID: planID, ParentFolderID: parent})
	require.NoError(t, err)
	return fo
}

func (f *fixture) content(t *testing.T, name string, required bool) *models.ContentType {
	t.Helper()
	c, err := f.classification.CreateContent(context.Background(), ContentInput{Name: name, Required: required})
	require.NoError(t, err)
	return c
}

func (f *fixture) link(t *testing.T, folderID, contentID uint) {
	t.Helper()
	require.NoError(t, f.classification.LinkContent(context.Background(), folderID, contentID))
}

func (f *fixture) document(t *testing.T, title string, folderID uint) *models.Document {
	t.Helper()
	d, err := f.documents.CreateDocument(context.Background(), DocumentInput{Title: title, FolderID: folderID})
	require.NoError(t, err)
	return d
}

func (f *fixture) symbolUpload(t *testing.T, contentID uint) Upload {
	t.Helper()
	data, err := f.codec.Encode(contentID)
	require.NoError(t, err)
	return Upload{FileName: "scan.png", ContentType: "image/png", Data: data}
}

func blankPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func uintPtr(v uint) *uint { return &v }
