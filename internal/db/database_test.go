package db

import (
	"path/filepath"
	"testing"

	"github.com/doc-capture/internal/config"
	"github.com/doc-capture/internal/db/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func sqliteConfig(t *testing.T) *config.Configuration {
	cfg := config.InitializeDefaultConfig()
	cfg.Database.Driver = config.DriverSQLite
	cfg.Database.DSN = filepath.Join(t.TempDir(), "test.db")
	cfg.Database.LogLevel = "silent"
	return cfg
}

func TestInitializeMigratesSchema(t *testing.T) {
	database, err := Initialize(sqliteConfig(t), zap.NewNop())
	require.NoError(t, err)
	defer Close(database)

	for _, model := range []any{
		&models.ClassificationPlan{},
		&models.Folder{},
		&models.ContentType{},
		&models.FolderContent{},
		&models.Document{},
		&models.Piece{},
	} {
		assert.True(t, database.Migrator().HasTable(model), "%T", model)
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	database, err := Initialize(sqliteConfig(t), zap.NewNop())
	require.NoError(t, err)
	defer Close(database)

	doc := models.Document{
		Title:    "Dossier client",
		Status:   models.StatusDraft,
		Metadata: models.JSONMap{"folderId": 7, "owner": "ops"},
	}
	require.NoError(t, database.Create(&doc).Error)

	var loaded models.Document
	require.NoError(t, database.First(&loaded, doc.ID).Error)
	assert.Equal(t, float64(7), loaded.Metadata["folderId"])
	assert.Equal(t, "ops", loaded.Metadata["owner"])
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}
