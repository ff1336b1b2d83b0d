package gateway

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DeBrosOfficial/scenestream/pkg/logging"
)

func (g *Gateway) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		srw := &statusResponseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(srw, r)
		dur := time.Since(start)

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", srw.status),
			zap.Int("bytes", srw.bytes),
			zap.String("duration", dur.String()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		}
		// Polling endpoints would drown everything else at info.
		if r.URL.Path == "/v1/status" || r.URL.Path == "/metrics" || r.URL.Path == "/health" {
			g.logger.ComponentDebug(logging.ComponentGateway, "request", fields...)
			return
		}
		g.logger.ComponentInfo(logging.ComponentGateway, "request", fields...)
	})
}
