package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/doc-capture/internal/codec"
	"github.com/doc-capture/internal/services"
	"github.com/doc-capture/internal/storage"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error     string    `json:"error"`
	Status    int       `json:"status"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// StatusFor maps a service error onto an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound), errors.Is(err, storage.ErrFileNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrConflict), errors.Is(err, services.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, services.ErrInvalidArgument),
		errors.Is(err, services.ErrInvalidUpload),
		errors.Is(err, codec.ErrSymbolNotFound),
		errors.Is(err, codec.ErrMalformedPayload),
		errors.Is(err, codec.ErrInvalidImage):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrPathTraversal):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, logger *zap.Logger, err error) {
	status := StatusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
		message = "internal server error"
	} else {
		logger.Debug("request rejected",
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Error(err))
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:     message,
		Status:    status,
		Path:      c.Request.URL.Path,
		Timestamp: time.Now().UTC(),
	})
}

func respondBadRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
		Error:     message,
		Status:    http.StatusBadRequest,
		Path:      c.Request.URL.Path,
		Timestamp: time.Now().UTC(),
	})
}

// pathID reads a positive integer path parameter, answering 400 otherwise.
func pathID(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		respondBadRequest(c, "invalid "+name+": "+strconv.Quote(raw))
		return 0, false
	}
	return uint(id), true
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondBadRequest(c, "malformed request body: "+err.Error())
		return false
	}
	return true
}
