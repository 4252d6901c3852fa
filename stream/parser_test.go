package stream

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/apex/log"
	"github.com/apex/log/handlers/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func event(content string) string {
	return `data: {"id":"chatcmpl-1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":` +
		quote(content) + `},"finish_reason":null}]}` + "\n\n"
}

func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	return `"` + r.Replace(s) + `"`
}

func testLogger() (*log.Logger, *memory.Handler) {
	h := memory.New()
	return &log.Logger{Handler: h, Level: log.DebugLevel}, h
}

// run feeds every chunk through a fresh parser and accumulator.
func run(t *testing.T, chunks [][]byte) ([]string, string) {
	t.Helper()
	logger, _ := testLogger()
	p := NewParser(logger, 0)
	acc := NewAccumulator(0)
	var all []string
	for _, c := range chunks {
		deltas, err := p.Feed(c)
		require.NoError(t, err)
		all = append(all, deltas...)
	}
	all = append(all, p.Flush()...)
	for _, d := range all {
		require.NoError(t, acc.Append(d))
	}
	return all, acc.String()
}

func splitEvery(b []byte, n int) [][]byte {
	var out [][]byte
	for len(b) > n {
		out = append(out, b[:n])
		b = b[n:]
	}
	return append(out, b)
}

func splitRandom(b []byte, rng *rand.Rand) [][]byte {
	var out [][]byte
	for len(b) > 0 {
		n := rng.Intn(len(b)) + 1
		if n > 17 {
			n = n%17 + 1
		}
		out = append(out, b[:n])
		b = b[n:]
	}
	return out
}

func TestParser_ChunkBoundaryIndependence(t *testing.T) {
	input := []byte(": keep-alive\n\n" +
		event(`[{"text":"<p>Apa itu obat?</p>",`) +
		event(`"options":[{"text":"Zat kimia ✓ ±","is_correct":true}],`) +
		"data: {broken\n" +
		event(`"explanation":"<p>Obat adalah 药物</p>","type":"text"}]`) +
		"data: [DONE]\n\n")

	wantDeltas, wantBuf := run(t, [][]byte{input})
	require.Len(t, wantDeltas, 3)

	assertSame := func(name string, chunks [][]byte) {
		deltas, buf := run(t, chunks)
		assert.Equal(t, wantDeltas, deltas, name)
		assert.Equal(t, wantBuf, buf, name)
	}

	assertSame("byte by byte", splitEvery(input, 1))
	assertSame("pairs", splitEvery(input, 2))
	assertSame("sevens", splitEvery(input, 7))
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		assertSame("random", splitRandom(input, rng))
	}
}

func TestParser_MultiByteSplitAcrossChunks(t *testing.T) {
	line := []byte(event("Obat ✓ 药"))
	idx := strings.Index(string(line), "✓") + 1 // inside the 3-byte rune

	deltas, buf := run(t, [][]byte{line[:idx], line[idx:]})

	assert.Equal(t, []string{"Obat ✓ 药"}, deltas)
	assert.Equal(t, "Obat ✓ 药", buf)
}

func TestParser_SentinelStopsEmission(t *testing.T) {
	logger, _ := testLogger()
	p := NewParser(logger, 0)

	deltas, err := p.Feed([]byte(event("a") + "data: [DONE]\n" + event("b")))
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, deltas)
	assert.True(t, p.Done())

	deltas, err = p.Feed([]byte(event("c")))
	require.NoError(t, err)
	assert.Empty(t, deltas)
	assert.Empty(t, p.Flush())
}

func TestParser_SentinelMustMatchExactly(t *testing.T) {
	logger, _ := testLogger()
	p := NewParser(logger, 0)

	deltas, err := p.Feed([]byte(event("a") + "data:  [DONE]\n" + "data: [DONE] \n" + event("b") + "data: [DONE]\r\n" + event("c")))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, deltas)
	assert.True(t, p.Done())
	assert.Equal(t, 2, p.Malformed())
}

func TestParser_SentinelSplitAcrossChunks(t *testing.T) {
	deltas, _ := run(t, [][]byte{[]byte(event("x") + "data: [DO"), []byte("NE]\n" + event("y"))})
	assert.Equal(t, []string{"x"}, deltas)
}

func TestParser_MalformedLineTolerance(t *testing.T) {
	logger, h := testLogger()
	p := NewParser(logger, 0)

	deltas, err := p.Feed([]byte("data: {not valid json\n" + event("one") + event("two")))
	require.NoError(t, err)

	assert.Equal(t, []string{"one", "two"}, deltas)
	assert.Equal(t, 1, p.Malformed())
	assert.Equal(t, 2, p.Events())
	require.Len(t, h.Entries, 1)
	assert.Equal(t, "stream.malformed_line", h.Entries[0].Message)
	assert.Equal(t, log.WarnLevel, h.Entries[0].Level)
}

func TestParser_IgnoresNonDataLines(t *testing.T) {
	input := "\n\n   \nevent: message\nid: 7\n: comment\ndata:{\"choices\":[{\"delta\":{\"content\":\"no space\"}}]}\n" +
		"DATA: " + strings.TrimPrefix(event("upper"), "data: ") +
		event("kept")

	deltas, buf := run(t, [][]byte{[]byte(input)})

	assert.Equal(t, []string{"kept"}, deltas)
	assert.Equal(t, "kept", buf)
}

func TestParser_SkipsEventsWithoutContent(t *testing.T) {
	input := `data: {"choices":[{"delta":{"role":"assistant"}}]}` + "\n" +
		`data: {"choices":[]}` + "\n" +
		`data: {"choices":[{"delta":{"content":""},"finish_reason":"stop"}]}` + "\n" +
		event("z")

	deltas, _ := run(t, [][]byte{[]byte(input)})
	assert.Equal(t, []string{"z"}, deltas)
}

func TestParser_CRLFAndUnterminatedTail(t *testing.T) {
	input := strings.ReplaceAll(event("first"), "\n", "\r\n") + strings.TrimRight(event("last"), "\n")

	deltas, _ := run(t, [][]byte{[]byte(input)})
	assert.Equal(t, []string{"first", "last"}, deltas)
}

func TestParser_LineTooLong(t *testing.T) {
	logger, _ := testLogger()
	p := NewParser(logger, 16)

	_, err := p.Feed([]byte("data: " + strings.Repeat("x", 32)))
	assert.ErrorIs(t, err, ErrLineTooLong)
}

func TestAccumulator_Limit(t *testing.T) {
	acc := NewAccumulator(5)

	require.NoError(t, acc.Append("abc"))
	err := acc.Append("def")
	assert.ErrorIs(t, err, ErrBufferLimit)
	assert.Equal(t, "abc", acc.String())
	require.NoError(t, acc.Append("de"))
	assert.Equal(t, 5, acc.Len())
}

func TestAccumulator_Unbounded(t *testing.T) {
	acc := NewAccumulator(0)
	for i := 0; i < 1000; i++ {
		require.NoError(t, acc.Append("ab"))
	}
	assert.Equal(t, 2000, acc.Len())
}
