package handlers

import (
	"fmt"
	"net/http"

	"github.com/doc-capture/internal/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ClassificationHandler struct {
	classification *services.ClassificationService
	symbols        *services.SymbolService
	logger         *zap.Logger
}

type SymbolResponse struct {
	ContentID    uint   `json:"contentId"`
	ContentName  string `json:"contentName"`
	QRCodeBase64 string `json:"qrCodeBase64"`
	QRCodeData   string `json:"qrCodeData"`
}

func NewClassificationHandler(classification *services.ClassificationService, symbols *services.SymbolService, logger *zap.Logger) *ClassificationHandler {
	return &ClassificationHandler{
		classification: classification,
		symbols:        symbols,
		logger:         logger.With(zap.String("handler", "classification")),
	}
}

func (h *ClassificationHandler) CreatePlan(c *gin.Context) {
	var in services.PlanInput
	if !bindJSON(c, &in) {
		return
	}
	plan, err := h.classification.CreatePlan(c.Request.Context(), in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, plan)
}

func (h *ClassificationHandler) ListPlans(c *gin.Context) {
	plans, err := h.classification.ListPlans(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, plans)
}

func (h *ClassificationHandler) GetPlan(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	plan, err := h.classification.GetPlan(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (h *ClassificationHandler) DeletePlan(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.classification.DeletePlan(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "plan deleted"})
}

func (h *ClassificationHandler) PlanTree(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	tree, err := h.classification.BuildTree(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, tree)
}

func (h *ClassificationHandler) CreateFolder(c *gin.Context) {
	var in services.FolderInput
	if !bindJSON(c, &in) {
		return
	}
	folder, err := h.classification.CreateFolder(c.Request.Context(), in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, folder)
}

func (h *ClassificationHandler) GetFolder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	folder, err := h.classification.GetFolder(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, folder)
}

func (h *ClassificationHandler) UpdateFolder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in services.FolderUpdate
	if !bindJSON(c, &in) {
		return
	}
	folder, err := h.classification.UpdateFolder(c.Request.Context(), id, in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, folder)
}

func (h *ClassificationHandler) DeleteFolder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.classification.DeleteFolder(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "folder deleted"})
}

func (h *ClassificationHandler) ListFolderContents(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	contents, err := h.classification.ListFolderContents(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, contents)
}

func (h *ClassificationHandler) LinkContent(c *gin.Context) {
	folderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	contentID, ok := pathID(c, "contentId")
	if !ok {
		return
	}
	if err := h.classification.LinkContent(c.Request.Context(), folderID, contentID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "content linked to folder"})
}

func (h *ClassificationHandler) UnlinkContent(c *gin.Context) {
	folderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	contentID, ok := pathID(c, "contentId")
	if !ok {
		return
	}
	if err := h.classification.UnlinkContent(c.Request.Context(), folderID, contentID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "content unlinked from folder"})
}

func (h *ClassificationHandler) DownloadFolderSymbols(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	archive, err := h.symbols.FolderArchive(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="qrcodes-folder-%d.zip"`, id))
	c.Data(http.StatusOK, "application/octet-stream", archive)
}

func (h *ClassificationHandler) CreateContent(c *gin.Context) {
	var in services.ContentInput
	if !bindJSON(c, &in) {
		return
	}
	content, err := h.classification.CreateContent(c.Request.Context(), in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, content)
}

func (h *ClassificationHandler) ListContents(c *gin.Context) {
	contents, err := h.classification.ListContents(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, contents)
}

func (h *ClassificationHandler) GetContent(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	content, err := h.classification.GetContent(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, content)
}

func (h *ClassificationHandler) UpdateContent(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in services.ContentInput
	if !bindJSON(c, &in) {
		return
	}
	content, err := h.classification.UpdateContent(c.Request.Context(), id, in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, content)
}

func (h *ClassificationHandler) DeleteContent(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.classification.DeleteContent(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "content type deleted"})
}

func (h *ClassificationHandler) ContentSymbol(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	png, _, err := h.symbols.SymbolPNG(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="qrcode-content-%d.png"`, id))
	c.Data(http.StatusOK, "image/png", png)
}

func (h *ClassificationHandler) ContentSymbolBase64(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	uri, content, err := h.symbols.SymbolDataURI(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, SymbolResponse{
		ContentID:    content.ID,
		ContentName:  content.Name,
		QRCodeBase64: uri,
		QRCodeData:   content.IdentityPayload,
	})
}
