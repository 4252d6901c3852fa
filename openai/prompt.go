package openai

import "strings"

const systemInstruction = `You are an assistant that converts study material for pharmacy students into multiple-choice questions.

Output rules:
- Respond with a single JSON array and nothing else. No markdown, no commentary.
- Every element is an object with exactly these fields:
  {
    "text": "<p>question prompt</p>",
    "options": [
      {"text": "option A", "is_correct": false},
      {"text": "option B", "is_correct": true},
      {"text": "option C", "is_correct": false},
      {"text": "option D", "is_correct": false},
      {"text": "option E", "is_correct": false}
    ],
    "explanation": "<p>why the correct option is correct</p>",
    "type": "text"
  }
- Every question has exactly 5 options and exactly one option with "is_correct": true.
- "text" and "explanation" are wrapped in HTML paragraph tags.
- Keep the language of the source material.
- If the source already contains questions, convert them faithfully; otherwise write questions that cover its key facts.`

// BuildMessages returns the conversation sent to the provider: the fixed
// instruction, the source text and, when given, the caller's extra instruction.
func BuildMessages(text, prompt string) []ChatMessage {
	messages := []ChatMessage{
		{Role: "system", Content: systemInstruction},
		{Role: "user", Content: "Convert the following material into questions:\n\n" + text},
	}
	if prompt = strings.TrimSpace(prompt); prompt != "" {
		messages = append(messages, ChatMessage{Role: "user", Content: "Additional instruction: " + prompt})
	}
	return messages
}
