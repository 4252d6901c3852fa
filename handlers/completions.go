package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"ai-question-service/apperr"
	"ai-question-service/metrics"
	"ai-question-service/middleware"
	"ai-question-service/models"
	"ai-question-service/pipeline"
	"ai-question-service/utils"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
)

// MaxRequestBytes bounds the completion request body.
const MaxRequestBytes = 2 << 20

type Generator interface {
	Model() string
	Generate(ctx context.Context, req models.CompletionRequest, onDelta pipeline.DeltaFunc) (*pipeline.Result, error)
}

// EventPublisher receives a QuestionSetGenerated event after each success.
type EventPublisher interface {
	Publish(message interface{}) error
}

type CompletionsHandler struct {
	generator Generator
	publisher EventPublisher
	// publishDone is called after each publish attempt; tests hook it.
	publishDone func()
}

// NewCompletionsHandler wires the generation pipeline to HTTP. publisher may be nil.
func NewCompletionsHandler(generator Generator, publisher EventPublisher) *CompletionsHandler {
	return &CompletionsHandler{generator: generator, publisher: publisher}
}

// Generate handles POST /api/ai/completions and answers with a single envelope.
func (h *CompletionsHandler) Generate(c *gin.Context) {
	req, err := bindCompletionRequest(c)
	if err != nil {
		WriteFailure(c, err)
		return
	}

	started := time.Now()
	res, err := h.generator.Generate(c.Request.Context(), req, nil)
	if err != nil {
		h.fail(c, err, started, func(e *apperr.Error) {
			c.AbortWithStatusJSON(e.Status, failureEnvelope(c, e))
		})
		return
	}

	h.succeed(c, res, started)
	WriteSuccess(c, http.StatusOK, res.Data())
}

// GenerateStream handles POST /api/ai/completions/stream. Deltas are relayed as
// "delta" events while the model writes; the envelope arrives last as a
// "result" event.
func (h *CompletionsHandler) GenerateStream(c *gin.Context) {
	req, err := bindCompletionRequest(c)
	if err != nil {
		WriteFailure(c, err)
		return
	}

	utils.SetStreamHeaders(c.Writer)
	c.Status(http.StatusOK)

	clientGone := false
	onDelta := func(delta string, total int) {
		if clientGone {
			return
		}
		if err := utils.WriteEvent(c.Writer, utils.EventDelta, models.StreamChunk{Content: delta, Bytes: total}); err != nil {
			log.WithError(err).Warn("completion.stream_write_failed")
			clientGone = true
		}
	}

	started := time.Now()
	res, err := h.generator.Generate(c.Request.Context(), req, onDelta)
	if err != nil {
		h.fail(c, err, started, func(e *apperr.Error) {
			_ = utils.WriteEvent(c.Writer, utils.EventResult, failureEnvelope(c, e))
		})
		return
	}

	h.succeed(c, res, started)
	_ = utils.WriteEvent(c.Writer, utils.EventResult, models.Success(http.StatusOK, res.Data()))
}

func bindCompletionRequest(c *gin.Context) (models.CompletionRequest, error) {
	var req models.CompletionRequest
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxRequestBytes)
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return req, apperr.PayloadTooLarge("request body is too large", err)
		}
		return req, apperr.BadRequest("invalid request format", err)
	}
	if strings.TrimSpace(req.Text) == "" {
		return req, apperr.BadRequest("text is required", nil)
	}

	log.WithFields(log.Fields{
		"user_id":    c.GetString(middleware.UserIDKey),
		"request_id": c.GetString(middleware.RequestIDKey),
		"text_bytes": len(req.Text),
		"has_prompt": strings.TrimSpace(req.Prompt) != "",
	}).Info("completion.request")
	return req, nil
}

// fail records the failure and hands its envelope to write. A caller that went
// away gets nothing.
func (h *CompletionsHandler) fail(c *gin.Context, err error, started time.Time, write func(*apperr.Error)) {
	if errors.Is(err, context.Canceled) && !isAppErr(err) {
		log.WithFields(log.Fields{
			"user_id":    c.GetString(middleware.UserIDKey),
			"request_id": c.GetString(middleware.RequestIDKey),
		}).Info("completion.canceled")
		observe("canceled", started)
		c.Abort()
		return
	}

	e := apperr.From(err)
	observe(e.Name, started)
	write(e)
}

func (h *CompletionsHandler) succeed(c *gin.Context, res *pipeline.Result, started time.Time) {
	observe("ok", started)

	event := models.QuestionSetGenerated{
		RequestID:     c.GetString(middleware.RequestIDKey),
		UserID:        c.GetString(middleware.UserIDKey),
		Model:         h.generator.Model(),
		QuestionCount: res.QuestionCount(),
		BufferBytes:   res.BufferBytes,
		Repaired:      res.Repaired,
		DurationMs:    time.Since(started).Milliseconds(),
		CreatedAt:     time.Now().UTC().Format(time.RFC3339),
	}

	log.WithFields(log.Fields{
		"request_id":     event.RequestID,
		"user_id":        event.UserID,
		"question_count": event.QuestionCount,
		"buffer_bytes":   event.BufferBytes,
		"repaired":       event.Repaired,
		"truncated":      res.Truncated,
		"events":         res.Events,
		"malformed":      res.Malformed,
		"duration_ms":    event.DurationMs,
	}).Info("completion.success")

	if h.publisher != nil {
		go h.publish(event)
	}
}

func (h *CompletionsHandler) publish(event models.QuestionSetGenerated) {
	if h.publishDone != nil {
		defer h.publishDone()
	}
	if err := h.publisher.Publish(event); err != nil {
		metrics.PublishErrorTotal.Inc()
		log.WithError(err).WithField("request_id", event.RequestID).Warn("completion.publish_failed")
	}
}

func observe(result string, started time.Time) {
	metrics.CompletionsTotal.WithLabelValues(result).Inc()
	metrics.CompletionDurationSeconds.WithLabelValues(result).Observe(time.Since(started).Seconds())
}

func isAppErr(err error) bool {
	var e *apperr.Error
	return errors.As(err, &e)
}
