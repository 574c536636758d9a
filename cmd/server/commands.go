package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/doc-capture/internal/api"
	"github.com/doc-capture/internal/codec"
	"github.com/doc-capture/internal/config"
	"github.com/doc-capture/internal/db"
	"github.com/doc-capture/internal/services"
	"github.com/doc-capture/internal/storage"
	"github.com/doc-capture/pkg/logger"
	"github.com/doc-capture/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	configPath string
	seed       bool
	contentID  uint
	outPath    string

	rootCmd = &cobra.Command{
		Use:           "doc-capture",
		Short:         "Document classification and QR piece capture service",
		SilenceUsage:  true,
		RunE:          runServe,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  runServe,
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE:  runMigrate,
	}

	qrcodeCmd = &cobra.Command{
		Use:   "qrcode",
		Short: "Write the identity symbol of a content type to a PNG file",
		RunE:  runQRCode,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML configuration file")

	rootCmd.Flags().BoolVar(&seed, "seed", false, "create a sample classification plan when the database is empty")
	serveCmd.Flags().BoolVar(&seed, "seed", false, "create a sample classification plan when the database is empty")

	qrcodeCmd.Flags().UintVar(&contentID, "content-id", 0, "content type id to encode")
	qrcodeCmd.Flags().StringVarP(&outPath, "out", "o", "", "output PNG path")
	_ = qrcodeCmd.MarkFlagRequired("content-id")
	_ = qrcodeCmd.MarkFlagRequired("out")

	rootCmd.AddCommand(serveCmd, migrateCmd, qrcodeCmd)
}

// bootstrap loads configuration and builds the logger every command needs.
func bootstrap() (*config.Configuration, *zap.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	zapLogger, err := logger.NewLogger(cfg.Logging.Environment, cfg.Logging.Level)
	if err != nil {
		log.Printf("Failed to initialize logger: %v", err)
		return nil, nil, err
	}
	zap.ReplaceGlobals(zapLogger)
	return cfg, zapLogger, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, zapLogger, err := bootstrap()
	if err != nil {
		return err
	}
	defer zapLogger.Sync()

	config.LogConfig(cfg, zapLogger)
	if cfg.Logging.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	database, err := db.Initialize(cfg, zapLogger)
	if err != nil {
		zapLogger.Error("Failed to initialize database", zap.Error(err))
		return err
	}
	defer db.Close(database)

	store, err := storage.NewOSBlobStore(cfg.Storage.Root, cfg.Storage.BaseURL)
	if err != nil {
		return err
	}

	metricsCollector := metrics.NewMetricsCollector()
	qr := codec.New(cfg.Codec.Width, cfg.Codec.Height)

	classificationService := services.NewClassificationService(database, zapLogger, metricsCollector)
	captureService := services.NewCaptureService(database, store, qr, classificationService, cfg.Upload, zapLogger, metricsCollector)
	documentService := services.NewDocumentService(database, store, zapLogger, metricsCollector)
	symbolService := services.NewSymbolService(classificationService, qr, zapLogger, metricsCollector)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if seed {
		if err := seedDatabase(ctx, database, classificationService, zapLogger); err != nil {
			zapLogger.Error("Failed to seed database", zap.Error(err))
			return err
		}
	}

	router := api.NewRouter(cfg, zapLogger, metricsCollector, api.Services{
		Classification: classificationService,
		Capture:        captureService,
		Documents:      documentService,
		Symbols:        symbolService,
		Store:          store,
	})
	router.SetupRoutes()

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		zapLogger.Info("Starting HTTP server", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			zapLogger.Error("Failed to start server", zap.Error(err))
			return err
		}
	case <-ctx.Done():
	}
	zapLogger.Info("Shutting down server...")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctxShutdown); err != nil {
		zapLogger.Error("Server shutdown failed", zap.Error(err))
		return err
	}
	zapLogger.Info("Server gracefully stopped")
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, zapLogger, err := bootstrap()
	if err != nil {
		return err
	}
	defer zapLogger.Sync()

	database, err := db.Initialize(cfg, zapLogger)
	if err != nil {
		return err
	}
	defer db.Close(database)

	zapLogger.Info("Database schema up to date", zap.String("driver", cfg.Database.Driver))
	return nil
}

func runQRCode(cmd *cobra.Command, args []string) error {
	cfg, zapLogger, err := bootstrap()
	if err != nil {
		return err
	}
	defer zapLogger.Sync()

	if contentID == 0 {
		return errors.New("--content-id must be positive")
	}
	png, err := codec.New(cfg.Codec.Width, cfg.Codec.Height).Encode(contentID)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, png, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", outPath, err)
	}
	zapLogger.Info("Identity symbol written",
		zap.Uint("content_id", contentID),
		zap.String("payload", codec.Payload(contentID)),
		zap.String("path", outPath))
	return nil
}

// seedDatabase creates a small sample plan the first time the service starts
// against an empty database.
func seedDatabase(ctx context.Context, database *gorm.DB, classification *services.ClassificationService, logger *zap.Logger) error {
	plans, err := classification.ListPlans(ctx)
	if err != nil {
		return err
	}
	if len(plans) > 0 {
		logger.Info("Database already seeded, skipping")
		return nil
	}
	logger.Info("Seeding database with initial data")

	plan, err := classification.CreatePlan(ctx, services.PlanInput{Name: "Dossiers clients", Description: "Pieces justificatives clients"})
	if err != nil {
		return err
	}
	root, err := classification.CreateFolder(ctx, services.FolderInput{Name: "Ouverture de compte", PlanID: plan.ID})
	if err != nil {
		return err
	}
	if _, err := classification.CreateFolder(ctx, services.FolderInput{Name: "Justificatifs complementaires", PlanID: plan.ID, ParentFolderID: &root.ID}); err != nil {
		return err
	}

	contents := []services.ContentInput{
		{Name: "Piece d'identite", Required: true},
		{Name: "Justificatif de domicile", Required: true},
		{Name: "RIB", Required: false},
	}
	for _, in := range contents {
		content, err := classification.CreateContent(ctx, in)
		if err != nil {
			return err
		}
		if err := classification.LinkContent(ctx, root.ID, content.ID); err != nil {
			return err
		}
		logger.Info("Seeded content type", zap.String("name", content.Name), zap.String("payload", content.IdentityPayload))
	}

	var count int64
	database.WithContext(ctx).Table("folder_contents").Count(&count)
	logger.Info("Database seeding completed successfully", zap.Int64("links", count))
	return nil
}
