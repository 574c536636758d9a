package handlers

import (
	"fmt"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/doc-capture/internal/storage"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// FileHandler serves stored piece files by name.
type FileHandler struct {
	store  *storage.BlobStore
	logger *zap.Logger
}

func NewFileHandler(store *storage.BlobStore, logger *zap.Logger) *FileHandler {
	return &FileHandler{
		store:  store,
		logger: logger.With(zap.String("handler", "files")),
	}
}

func (h *FileHandler) ServeFile(c *gin.Context) {
	h.serve(c, "inline")
}

func (h *FileHandler) DownloadFile(c *gin.Context) {
	h.serve(c, "attachment")
}

func (h *FileHandler) serve(c *gin.Context, disposition string) {
	name := c.Param("filename")
	data, err := h.store.Read(name)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	c.Header("Content-Disposition", fmt.Sprintf(`%s; filename="%s"`, disposition, filepath.Base(name)))
	c.Data(http.StatusOK, contentType, data)
}
