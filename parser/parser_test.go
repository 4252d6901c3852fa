package parser

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func questionJSON(text string) string {
	return fmt.Sprintf(`{"text":"<p>%s</p>","options":[`+
		`{"text":"A","is_correct":true},{"text":"B","is_correct":false},{"text":"C","is_correct":false},`+
		`{"text":"D","is_correct":false},{"text":"E","is_correct":false}],`+
		`"explanation":"<p>E1</p>","type":"text"}`, text)
}

func decode(t *testing.T, raw []byte) interface{} {
	t.Helper()
	var v interface{}
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestRepair_ValidInputIsUnchanged(t *testing.T) {
	inputs := []string{
		`[]`,
		`{}`,
		`"plain string"`,
		`42`,
		`[` + questionJSON("Q1") + `,` + questionJSON("Q2") + `]`,
		`{"nested":{"list":[1,2.5,true,null,"x"]},"unicode":"Obat ✓"}`,
	}

	for _, in := range inputs {
		t.Run(in[:min(len(in), 20)], func(t *testing.T) {
			repaired, err := Repair(in)
			require.NoError(t, err)
			assert.Equal(t, decode(t, []byte(in)), decode(t, []byte(repaired)))

			result, err := Parse(in)
			require.NoError(t, err)
			assert.False(t, result.Repaired)
			assert.Equal(t, decode(t, []byte(in)), decode(t, result.JSON))
		})
	}
}

func TestParse_RecoversCommonDefects(t *testing.T) {
	tests := []struct {
		name  string
		input string
		count int
	}{
		{
			name:  "trailing comma after last element",
			input: `[` + questionJSON("Q1") + `,]`,
			count: 1,
		},
		{
			name:  "markdown fenced",
			input: "```json\n[" + questionJSON("Q1") + "," + questionJSON("Q2") + "]\n```",
			count: 2,
		},
		{
			name:  "leading and trailing prose",
			input: "Berikut soalnya:\n[" + questionJSON("Q1") + "]\nSemoga membantu!",
			count: 1,
		},
		{
			name:  "truncated before closing bracket",
			input: `[` + questionJSON("Q1") + `,` + questionJSON("Q2"),
			count: 2,
		},
		{
			name:  "trailing comma inside object",
			input: `[{"text":"<p>Q</p>","options":[],"explanation":"<p>E</p>","type":"text",}]`,
			count: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Parse(tt.input)
			require.NoError(t, err)
			assert.True(t, result.Repaired)

			var items []map[string]interface{}
			require.NoError(t, json.Unmarshal(result.JSON, &items))
			assert.Len(t, items, tt.count)
			assert.NotEmpty(t, items[0]["text"])
		})
	}
}

func TestParse_TrailingCommaKeepsElements(t *testing.T) {
	direct := `[` + questionJSON("Q1") + `]`
	result, err := Parse(`[` + questionJSON("Q1") + `,]`)
	require.NoError(t, err)
	assert.Equal(t, decode(t, []byte(direct)), decode(t, result.JSON))
}

func TestParse_Unrecoverable(t *testing.T) {
	for _, in := range []string{
		"Sorry, I cannot help with that.",
		"Sorry, I cannot help with that [policy].",
		"I can't do that {reason: safety}, please send different material.",
		"Note [1]: this material is too short to build questions from.",
		"",
		"   \n  ",
	} {
		result, err := Parse(in)
		assert.ErrorIs(t, err, ErrNoJSON, in)
		assert.Nil(t, result, in)
	}
}

func TestParse_ShortChatterAroundJSONIsKept(t *testing.T) {
	result, err := Parse("Here you go: [" + questionJSON("Q1") + "] Enjoy.")
	require.NoError(t, err)
	assert.True(t, result.Repaired)

	fenced, err := Parse("Here:\n```json\n[" + questionJSON("Q1") + "]\n```\nbye")
	require.NoError(t, err)
	assert.Equal(t, decode(t, result.JSON), decode(t, fenced.JSON))
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{"array", `xx [1,2] yy`, `[1,2]`, true},
		{"object first", `note {"a":[1]} end`, `{"a":[1]}`, true},
		{"array of objects", `[{"a":1}]`, `[{"a":1}]`, true},
		{"fence without language", "```\n[1]\n```", `[1]`, true},
		{"fence with language", "Here:\n```json\n{\"a\":1}\n```\nbye", `{"a":1}`, true},
		{"unterminated", `start [{"a":1`, `[{"a":1`, true},
		{"nothing", `no json here`, ``, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSON(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
