// Package pipeline turns source material into a question set by streaming a
// chat completion from the AI provider and parsing what it wrote.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"ai-question-service/apperr"
	"ai-question-service/metrics"
	"ai-question-service/models"
	"ai-question-service/openai"
	"ai-question-service/parser"
	"ai-question-service/stream"

	"github.com/apex/log"
)

const defaultChunkSize = 4 << 10

// StreamOpener opens the upstream completion stream. *openai.Client implements it.
type StreamOpener interface {
	Model() string
	OpenStream(ctx context.Context, messages []openai.ChatMessage) (io.ReadCloser, error)
}

type Options struct {
	// Timeout bounds the whole upstream exchange.
	Timeout time.Duration
	// MaxBufferBytes bounds the accumulated model output.
	MaxBufferBytes int
	// StrictValidation rejects output that is valid JSON but not a valid question set.
	StrictValidation bool
	// ChunkSize is the read size used on the upstream body.
	ChunkSize int
}

// DeltaFunc observes every delta right after it is accumulated; total is the
// buffer size so far.
type DeltaFunc func(delta string, total int)

// Result is a successfully generated question set
type Result struct {
	// Questions is set when StrictValidation is on.
	Questions []models.Question
	// JSON is the parsed model output, repaired if needed.
	JSON json.RawMessage

	Repaired    bool
	Truncated   bool
	BufferBytes int
	// Events counts decoded stream events; Deltas only those carrying content.
	Events    int
	Deltas    int
	Malformed int
	Duration  time.Duration
}

// Data is the payload for the success envelope.
func (r *Result) Data() interface{} {
	if r.Questions != nil {
		return r.Questions
	}
	return r.JSON
}

// QuestionCount is the number of generated questions, or -1 if unknown.
func (r *Result) QuestionCount() int {
	if r.Questions != nil {
		return len(r.Questions)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(r.JSON, &items); err != nil {
		return -1
	}
	return len(items)
}

type Generator struct {
	opener StreamOpener
	opts   Options
	logger log.Interface
}

func NewGenerator(opener StreamOpener, opts Options, logger log.Interface) *Generator {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = defaultChunkSize
	}
	if logger == nil {
		logger = log.Log
	}
	return &Generator{opener: opener, opts: opts, logger: logger}
}

func (g *Generator) Model() string {
	return g.opener.Model()
}

// Generate runs one request through the pipeline. All decode state is local to
// the call. Failures are *apperr.Error values, except caller cancellation which
// is returned wrapping context.Canceled.
func (g *Generator) Generate(ctx context.Context, req models.CompletionRequest, onDelta DeltaFunc) (*Result, error) {
	started := time.Now()
	if g.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()
	}

	body, err := g.opener.OpenStream(ctx, openai.BuildMessages(req.Text, req.Prompt))
	if err != nil {
		return nil, g.contextFailure(ctx, err, apperr.Internal("failed to open AI stream", err))
	}
	defer body.Close()

	metrics.StreamsInFlight.Inc()
	defer metrics.StreamsInFlight.Dec()

	p := stream.NewParser(g.logger, lineLimit(g.opts.MaxBufferBytes))
	acc := stream.NewAccumulator(g.opts.MaxBufferBytes)
	deltas := 0
	appendDeltas := func(ds []string) error {
		for _, d := range ds {
			if err := acc.Append(d); err != nil {
				return apperr.PayloadTooLarge("AI output is too large", err)
			}
			deltas++
			if onDelta != nil {
				onDelta(d, acc.Len())
			}
		}
		return nil
	}

	truncated := false
	buf := make([]byte, g.opts.ChunkSize)
	for !p.Done() {
		n, readErr := body.Read(buf)
		if n > 0 {
			ds, feedErr := p.Feed(buf[:n])
			if err := appendDeltas(ds); err != nil {
				return nil, err
			}
			if feedErr != nil {
				return nil, apperr.PayloadTooLarge("AI stream line is too large", feedErr)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return nil, g.contextFailure(ctx, readErr, apperr.Internal("AI stream failed", readErr))
			}
			// Keep what arrived and let the parser decide if it is enough.
			g.logger.WithError(readErr).WithField("buffer_bytes", acc.Len()).Warn("stream.interrupted")
			truncated = true
			break
		}
	}
	if err := appendDeltas(p.Flush()); err != nil {
		return nil, err
	}

	metrics.DeltasTotal.Add(float64(deltas))
	metrics.MalformedLinesTotal.Add(float64(p.Malformed()))
	metrics.OutputBytes.Observe(float64(acc.Len()))

	parsed, err := parser.Parse(acc.String())
	if err != nil {
		g.logger.WithError(err).WithFields(log.Fields{
			"buffer_bytes": acc.Len(),
			"events":       p.Events(),
			"deltas":       deltas,
			"truncated":    truncated,
		}).Error("completion.parse_failed")
		return nil, apperr.Internal("failed to parse AI output", err)
	}
	if parsed.Repaired {
		metrics.RepairsTotal.Inc()
	}

	result := &Result{
		JSON:        parsed.JSON,
		Repaired:    parsed.Repaired,
		Truncated:   truncated,
		BufferBytes: acc.Len(),
		Events:      p.Events(),
		Deltas:      deltas,
		Malformed:   p.Malformed(),
	}

	if g.opts.StrictValidation {
		questions, violations := parser.ValidateQuestions(parsed.JSON)
		if len(violations) > 0 {
			g.logger.WithFields(log.Fields{
				"violations": len(violations),
				"repaired":   parsed.Repaired,
			}).Warn("completion.invalid_schema")
			return nil, apperr.Validation("AI output does not match the question schema", violations)
		}
		result.Questions = questions
	}

	result.Duration = time.Since(started)
	return result, nil
}

// contextFailure classifies err against ctx: deadline expiry is a gateway
// timeout, caller cancellation passes through, anything else is fallback.
func (g *Generator) contextFailure(ctx context.Context, err error, fallback *apperr.Error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return apperr.GatewayTimeout("AI provider did not finish in time", err)
	case errors.Is(ctx.Err(), context.Canceled):
		return fmt.Errorf("request canceled: %w", context.Canceled)
	}
	return fallback
}

// lineLimit allows one event line to carry the whole output plus its framing.
func lineLimit(maxBuffer int) int {
	if maxBuffer*2 > stream.DefaultMaxLineBytes {
		return maxBuffer * 2
	}
	return stream.DefaultMaxLineBytes
}
