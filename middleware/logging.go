package middleware

import (
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
)

// RequestLogger logs one structured line per request once it completes.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(log.Fields{
			"method":           c.Request.Method,
			"path":             c.Request.URL.Path,
			"status":           c.Writer.Status(),
			"latency_ms":       time.Since(start).Milliseconds(),
			"client_ip":        c.ClientIP(),
			"request_id":       c.GetString(RequestIDKey),
			"content_encoding": c.Writer.Header().Get("Content-Encoding"),
		})
		if c.Writer.Status() >= 500 {
			entry.Error("http.request")
			return
		}
		entry.Info("http.request")
	}
}
