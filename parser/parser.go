package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

var (
	// ErrNoJSON means the text has no JSON array or object to recover.
	ErrNoJSON = errors.New("no JSON value found in model output")
	// ErrUnparseable means the text stayed invalid after repair.
	ErrUnparseable = errors.New("model output is not valid JSON after repair")
)

// Result is a successfully parsed model output
type Result struct {
	JSON json.RawMessage
	// Repaired is set when the output needed extraction or repair to parse.
	Repaired bool
}

// Parse turns the accumulated model output into JSON. Valid JSON is used as
// is; anything else is cut down to its outermost array or object and repaired.
// Parsing is all-or-nothing.
func Parse(output string) (*Result, error) {
	trimmed := strings.TrimSpace(output)
	if trimmed != "" && json.Valid([]byte(trimmed)) {
		return &Result{JSON: json.RawMessage(trimmed)}, nil
	}

	candidate, prose, ok := extract(trimmed)
	if !ok {
		return nil, ErrNoJSON
	}
	// A reply that is mostly prose is a refusal or commentary, not a
	// question set with some chatter around it.
	if prose > len(candidate) {
		return nil, fmt.Errorf("%w: %d bytes of prose around %d bytes of JSON", ErrNoJSON, prose, len(candidate))
	}

	repaired, err := Repair(candidate)
	if err != nil {
		return nil, err
	}
	return &Result{JSON: json.RawMessage(repaired), Repaired: true}, nil
}

// Repair fixes common syntax defects in model generated JSON such as trailing
// commas, unterminated strings, missing brackets and single quotes. Valid
// input is returned unchanged.
func Repair(text string) (string, error) {
	if json.Valid([]byte(text)) {
		return text, nil
	}
	repaired, err := jsonrepair.JSONRepair(text)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	if !json.Valid([]byte(repaired)) {
		return "", ErrUnparseable
	}
	return repaired, nil
}

// ExtractJSON strips markdown code fences and surrounding prose, returning the
// text from the first '[' or '{' to its matching closer. When the closer is
// missing the rest of the text is returned so Repair can close it.
func ExtractJSON(text string) (string, bool) {
	candidate, _, ok := extract(text)
	return candidate, ok
}

// extract is ExtractJSON that also counts the non-space bytes left outside the
// candidate once fences are gone.
func extract(text string) (string, int, bool) {
	text = stripFences(text)

	start := strings.IndexAny(text, "[{")
	if start == -1 {
		return "", 0, false
	}
	end := len(text)
	if closer := matchingClose(text, start); closer != -1 {
		end = closer + 1
	}
	candidate := strings.TrimSpace(text[start:end])
	return candidate, visibleBytes(text[:start]) + visibleBytes(text[end:]), true
}

func visibleBytes(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\n', '\r':
		default:
			n++
		}
	}
	return n
}

// matchingClose returns the index of the bracket closing the one at start,
// skipping brackets inside string literals, or -1 when it is never closed.
func matchingClose(text string, start int) int {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func stripFences(text string) string {
	start := strings.Index(text, "```")
	if start == -1 {
		return strings.TrimSpace(text)
	}
	fragment := text[start+3:]
	// Drop the language tag, e.g. ```json
	if nl := strings.Index(fragment, "\n"); nl != -1 && !strings.ContainsAny(fragment[:nl], "[{") {
		fragment = fragment[nl+1:]
	}
	if end := strings.Index(fragment, "```"); end != -1 {
		fragment = fragment[:end]
	}
	return strings.TrimSpace(fragment)
}
