package handlers

import (
	"net/http"

	"ai-question-service/apperr"
	"ai-question-service/version"

	"github.com/gin-gonic/gin"
)

const ServiceName = "ai-question-service"

// ConnectionChecker is implemented by publishers that hold a broker connection.
type ConnectionChecker interface {
	IsConnected() bool
}

// HealthCheck returns service health status. The events field reports the
// broker connection when publisher holds one.
func HealthCheck(publisher EventPublisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, events := "healthy", "disabled"
		if checker, ok := publisher.(ConnectionChecker); ok {
			events = "connected"
			if !checker.IsConnected() {
				status, events = "degraded", "disconnected"
			}
		} else if publisher != nil {
			events = "enabled"
		}

		c.JSON(http.StatusOK, gin.H{
			"status":  status,
			"service": ServiceName,
			"events":  events,
		})
	}
}

// Version returns build information
func Version(c *gin.Context) {
	c.JSON(http.StatusOK, version.Get(ServiceName))
}

// MethodNotAllowed answers any method a route does not register.
func MethodNotAllowed(c *gin.Context) {
	WriteFailure(c, apperr.MethodNotAllowed(c.Request.Method+" is not allowed on "+c.Request.URL.Path))
}
