package middleware

import (
	"strconv"
	"time"

	"github.com/doc-capture/pkg/metrics"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type LoggingMiddleware struct {
	logger  *zap.Logger
	metrics *metrics.MetricsCollector
}

func NewLoggingMiddleware(logger *zap.Logger, metrics *metrics.MetricsCollector) *LoggingMiddleware {
	return &LoggingMiddleware{
		logger:  logger,
		metrics: metrics,
	}
}

func (lm *LoggingMiddleware) LogRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		lm.metrics.IncrementCounter("http_requests", map[string]string{
			"method": c.Request.Method,
			"route":  route,
			"status": strconv.Itoa(status),
		})
		lm.metrics.ObserveLatency("http_request", duration)

		if route == "/health" || route == "/metrics" {
			return
		}

		fields := []zap.Field{
			zap.String("request_id", RequestID(c.Request.Context())),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("duration", duration),
			zap.Int("size", c.Writer.Size()),
			zap.String("client_ip", c.ClientIP()),
		}
		if status >= 500 {
			lm.logger.Error("HTTP Request", fields...)
			return
		}
		lm.logger.Info("HTTP Request", fields...)
	}
}
