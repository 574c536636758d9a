package api

import (
	"net/http"

	"github.com/doc-capture/internal/api/handlers"
	"github.com/doc-capture/internal/api/middleware"
	"github.com/doc-capture/internal/config"
	"github.com/doc-capture/internal/services"
	"github.com/doc-capture/internal/storage"
	"github.com/doc-capture/pkg/metrics"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Services struct {
	Classification *services.ClassificationService
	Capture        *services.CaptureService
	Documents      *services.DocumentService
	Symbols        *services.SymbolService
	Store          *storage.BlobStore
}

type Router struct {
	engine                *gin.Engine
	logger                *zap.Logger
	metrics               *metrics.MetricsCollector
	classificationHandler *handlers.ClassificationHandler
	docHandler            *handlers.DocumentHandler
	fileHandler           *handlers.FileHandler
}

func NewRouter(cfg *config.Configuration, logger *zap.Logger, metrics *metrics.MetricsCollector, svc Services) *Router {
	engine := gin.New()
	engine.MaxMultipartMemory = cfg.Upload.MaxMemory

	reqMiddleware := middleware.NewRequestMiddleware(logger)
	logMiddleware := middleware.NewLoggingMiddleware(logger, metrics)

	engine.Use(reqMiddleware.ProcessRequest())
	engine.Use(logMiddleware.LogRequest())
	engine.Use(reqMiddleware.RecoverPanic())

	return &Router{
		engine:                engine,
		logger:                logger,
		metrics:               metrics,
		classificationHandler: handlers.NewClassificationHandler(svc.Classification, svc.Symbols, logger),
		docHandler:            handlers.NewDocumentHandler(svc.Documents, svc.Capture, cfg.Upload.MaxBytes, logger),
		fileHandler:           handlers.NewFileHandler(svc.Store, logger),
	}
}

func (r *Router) SetupRoutes() {
	r.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "up", "name": "doc-capture"})
	})
	r.engine.GET("/metrics", gin.WrapH(r.metrics.Handler()))

	classification := r.engine.Group("/classification")
	{
		ch := r.classificationHandler

		classification.POST("/plans", ch.CreatePlan)
		classification.GET("/plans", ch.ListPlans)
		classification.GET("/plans/:id", ch.GetPlan)
		classification.DELETE("/plans/:id", ch.DeletePlan)
		classification.GET("/plans/:id/tree", ch.PlanTree)

		classification.POST("/folders", ch.CreateFolder)
		classification.GET("/folders/:id", ch.GetFolder)
		classification.PUT("/folders/:id", ch.UpdateFolder)
		classification.DELETE("/folders/:id", ch.DeleteFolder)
		classification.GET("/folders/:id/contents", ch.ListFolderContents)
		classification.POST("/folders/:id/contents/:contentId", ch.LinkContent)
		classification.DELETE("/folders/:id/contents/:contentId", ch.UnlinkContent)
		classification.GET("/folders/:id/qrcodes/download", ch.DownloadFolderSymbols)

		classification.POST("/contents", ch.CreateContent)
		classification.GET("/contents", ch.ListContents)
		classification.GET("/contents/:id", ch.GetContent)
		classification.PUT("/contents/:id", ch.UpdateContent)
		classification.DELETE("/contents/:id", ch.DeleteContent)
		classification.GET("/contents/:id/qrcode", ch.ContentSymbol)
		classification.GET("/contents/:id/qrcode/base64", ch.ContentSymbolBase64)
	}

	documents := r.engine.Group("/documents")
	{
		dh := r.docHandler

		documents.POST("", dh.CreateDocument)
		documents.GET("", dh.ListDocuments)
		documents.GET("/stats", dh.Statistics)
		documents.GET("/:id", dh.GetDocument)
		documents.PUT("/:id", dh.UpdateDocument)
		documents.DELETE("/:id", dh.DeleteDocument)
		documents.PATCH("/:id/status", dh.UpdateStatus)
		documents.POST("/:id/validate", dh.ValidateDocument)
		documents.POST("/:id/pieces", dh.UploadPiece)
		documents.POST("/:id/pieces/batch", dh.UploadPieces)
		documents.DELETE("/:id/pieces/:pieceId", dh.DeletePiece)
	}

	files := r.engine.Group("/files")
	{
		files.GET("/:filename", r.fileHandler.ServeFile)
		files.GET("/:filename/download", r.fileHandler.DownloadFile)
	}
}

func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}

func (r *Router) Handler() http.Handler {
	return r.engine
}
