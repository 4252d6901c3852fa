package handlers

import (
	"net/http"

	"ai-question-service/apperr"
	"ai-question-service/middleware"
	"ai-question-service/models"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
)

// WriteSuccess writes data in a success envelope.
func WriteSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, models.Success(status, data))
}

// WriteFailure maps err to its failure envelope. Errors that are not
// *apperr.Error become a 500.
func WriteFailure(c *gin.Context, err error) {
	e := apperr.From(err)
	c.AbortWithStatusJSON(e.Status, failureEnvelope(c, e))
}

func failureEnvelope(c *gin.Context, e *apperr.Error) models.Envelope {
	entry := log.WithFields(log.Fields{
		"status":     e.Status,
		"error_name": e.Name,
		"path":       c.FullPath(),
		"request_id": c.GetString(middleware.RequestIDKey),
	})
	if e.Err != nil {
		entry = entry.WithError(e.Err)
	}
	if e.Status >= http.StatusInternalServerError {
		entry.Error(e.Message)
	} else {
		entry.Warn(e.Message)
	}
	return models.Failure(e.Status, e.Name, e.Message, e.Details)
}
