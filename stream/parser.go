// Package stream decodes the incremental chat-completion event stream.
//
// The upstream sends newline-delimited events of the form
//
//	data: {"choices":[{"delta":{"content":"..."}}]}
//
// terminated by a "data: [DONE]" line. Chunks read off the wire may split an
// event, or a multi-byte character, anywhere; the Parser only decodes complete
// lines so the emitted deltas do not depend on where those splits fall.
package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/apex/log"
)

const (
	DataPrefix = "data: "
	Sentinel   = "[DONE]"

	// DefaultMaxLineBytes bounds a single unterminated line.
	DefaultMaxLineBytes = 1 << 20
)

var ErrLineTooLong = errors.New("stream line exceeds limit")

type chunkEvent struct {
	Choices []struct {
		Delta struct {
			Content *string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Parser holds the decode state of one stream. It is not safe for concurrent
// use; every request gets its own.
type Parser struct {
	logger       log.Interface
	maxLineBytes int
	pending      []byte
	done         bool
	events       int
	malformed    int
}

func NewParser(logger log.Interface, maxLineBytes int) *Parser {
	if logger == nil {
		logger = log.Log
	}
	if maxLineBytes <= 0 {
		maxLineBytes = DefaultMaxLineBytes
	}
	return &Parser{logger: logger, maxLineBytes: maxLineBytes}
}

// Feed consumes one chunk and returns the deltas completed by it, in order.
// Nothing is emitted once the sentinel has been seen.
func (p *Parser) Feed(chunk []byte) ([]string, error) {
	if p.done {
		return nil, nil
	}
	p.pending = append(p.pending, chunk...)

	var deltas []string
	rest := p.pending
	for !p.done {
		idx := bytes.IndexByte(rest, '\n')
		if idx < 0 {
			break
		}
		if delta, ok := p.handleLine(rest[:idx]); ok {
			deltas = append(deltas, delta)
		}
		rest = rest[idx+1:]
	}

	if p.done || len(rest) == 0 {
		p.pending = nil
		return deltas, nil
	}
	if len(rest) > p.maxLineBytes {
		p.pending = nil
		return deltas, fmt.Errorf("%w: %d bytes without newline", ErrLineTooLong, len(rest))
	}
	p.pending = append([]byte(nil), rest...)
	return deltas, nil
}

// Flush handles a final line that was not newline-terminated. Call it once the
// body is exhausted.
func (p *Parser) Flush() []string {
	if p.done || len(p.pending) == 0 {
		p.pending = nil
		return nil
	}
	line := p.pending
	p.pending = nil
	if delta, ok := p.handleLine(line); ok {
		return []string{delta}
	}
	return nil
}

// Done reports whether the sentinel has been seen.
func (p *Parser) Done() bool {
	return p.done
}

// Events is the number of data events decoded, excluding the sentinel.
func (p *Parser) Events() int {
	return p.events
}

// Malformed is the number of data lines that were not valid JSON.
func (p *Parser) Malformed() int {
	return p.malformed
}

func (p *Parser) handleLine(line []byte) (string, bool) {
	line = bytes.TrimSuffix(line, []byte("\r"))
	if len(bytes.TrimSpace(line)) == 0 {
		return "", false
	}
	if !bytes.HasPrefix(line, []byte(DataPrefix)) {
		return "", false
	}

	payload := line[len(DataPrefix):]
	if string(payload) == Sentinel {
		p.done = true
		return "", false
	}

	var event chunkEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		p.malformed++
		p.logger.WithError(err).WithField("line", truncate(string(payload), 200)).Warn("stream.malformed_line")
		return "", false
	}
	p.events++

	if len(event.Choices) == 0 || event.Choices[0].Delta.Content == nil {
		return "", false
	}
	content := *event.Choices[0].Delta.Content
	if content == "" {
		return "", false
	}
	return content, true
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
