package models

// CompletionRequest is the body accepted by the completions endpoints
type CompletionRequest struct {
	Text   string `json:"text"`
	Prompt string `json:"prompt,omitempty"`
}

// Option is one answer choice of a question
type Option struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

// Question is a generated multiple-choice question. Text and Explanation hold HTML.
type Question struct {
	Text        string   `json:"text"`
	Options     []Option `json:"options"`
	Explanation string   `json:"explanation"`
	Type        string   `json:"type"`
}

// ErrorBody is the error part of a failure envelope
type ErrorBody struct {
	Name    string      `json:"name"`
	Message string      `json:"message"`
	Errors  interface{} `json:"errors,omitempty"`
}

// Envelope is the uniform response returned to callers.
// Exactly one of Data and Error is set.
type Envelope struct {
	Success    bool        `json:"success"`
	StatusCode int         `json:"status_code"`
	Data       interface{} `json:"data,omitempty"`
	Error      *ErrorBody  `json:"error,omitempty"`
}

// StreamChunk is a progress event relayed by the streaming endpoint
type StreamChunk struct {
	Content string `json:"content"`
	Bytes   int    `json:"bytes"`
}

// QuestionSetGenerated is published after a successful generation
type QuestionSetGenerated struct {
	RequestID     string `json:"request_id"`
	UserID        string `json:"user_id"`
	Model         string `json:"model"`
	QuestionCount int    `json:"question_count"`
	BufferBytes   int    `json:"buffer_bytes"`
	Repaired      bool   `json:"repaired"`
	DurationMs    int64  `json:"duration_ms"`
	CreatedAt     string `json:"created_at"`
}

// Success wraps data in a success envelope
func Success(status int, data interface{}) Envelope {
	return Envelope{Success: true, StatusCode: status, Data: data}
}

// Failure builds a failure envelope. details is omitted when nil.
func Failure(status int, name, message string, details interface{}) Envelope {
	return Envelope{
		Success:    false,
		StatusCode: status,
		Error:      &ErrorBody{Name: name, Message: message, Errors: details},
	}
}
