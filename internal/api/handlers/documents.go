package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/doc-capture/internal/db/models"
	"github.com/doc-capture/internal/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type DocumentHandler struct {
	documents *services.DocumentService
	capture   *services.CaptureService
	maxBytes  int64
	logger    *zap.Logger
}

type BatchResponse struct {
	Captured int                      `json:"captured"`
	Failed   int                      `json:"failed"`
	Results  []services.CaptureResult `json:"results"`
}

func NewDocumentHandler(
	documents *services.DocumentService,
	capture *services.CaptureService,
	maxBytes int64,
	logger *zap.Logger,
) *DocumentHandler {
	return &DocumentHandler{
		documents: documents,
		capture:   capture,
		maxBytes:  maxBytes,
		logger:    logger.With(zap.String("handler", "document")),
	}
}

func (h *DocumentHandler) CreateDocument(c *gin.Context) {
	var in services.DocumentInput
	if !bindJSON(c, &in) {
		return
	}
	doc, err := h.documents.CreateDocument(c.Request.Context(), in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	var status *models.DocumentStatus
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		s := models.DocumentStatus(strings.ToUpper(raw))
		status = &s
	}
	docs, err := h.documents.SearchDocuments(c.Request.Context(), c.Query("title"), status)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, docs)
}

func (h *DocumentHandler) Statistics(c *gin.Context) {
	stats, err := h.documents.Statistics(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *DocumentHandler) GetDocument(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	doc, err := h.documents.GetDocument(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *DocumentHandler) UpdateDocument(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in services.DocumentUpdate
	if !bindJSON(c, &in) {
		return
	}
	doc, err := h.documents.UpdateDocument(c.Request.Context(), id, in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *DocumentHandler) UpdateStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in services.StatusUpdate
	if !bindJSON(c, &in) {
		return
	}
	doc, err := h.documents.UpdateDocumentStatus(c.Request.Context(), id, in.Status)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *DocumentHandler) DeleteDocument(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.documents.DeleteDocument(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "document deleted"})
}

func (h *DocumentHandler) ValidateDocument(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	result, err := h.documents.ValidateDocument(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *DocumentHandler) UploadPiece(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondBadRequest(c, "missing multipart file field \"file\"")
		return
	}
	up, err := h.readUpload(fileHeader)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	piece, err := h.capture.CapturePiece(c.Request.Context(), id, up)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, piece)
}

func (h *DocumentHandler) UploadPieces(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		respondBadRequest(c, "malformed multipart form")
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		respondBadRequest(c, "missing multipart file field \"files\"")
		return
	}

	uploads := make([]services.Upload, 0, len(headers))
	for _, fh := range headers {
		up, err := h.readUpload(fh)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		uploads = append(uploads, up)
	}

	results, err := h.capture.CaptureBatch(c.Request.Context(), id, uploads)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	resp := BatchResponse{Results: results}
	for _, r := range results {
		if r.Piece != nil {
			resp.Captured++
		} else {
			resp.Failed++
		}
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *DocumentHandler) DeletePiece(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	pieceID, ok := pathID(c, "pieceId")
	if !ok {
		return
	}
	if err := h.documents.DeletePiece(c.Request.Context(), id, pieceID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "piece deleted"})
}

// readUpload stops one byte past maxBytes; the capture pipeline rejects
// anything longer than maxBytes.
func (h *DocumentHandler) readUpload(fh *multipart.FileHeader) (services.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return services.Upload{}, fmt.Errorf("failed to open upload %q: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxBytes+1))
	if err != nil {
		return services.Upload{}, fmt.Errorf("failed to read upload %q: %w", fh.Filename, err)
	}
	return services.Upload{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
