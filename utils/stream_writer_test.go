package utils

import (
	"net/http/httptest"
	"testing"

	"ai-question-service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteEvent(t *testing.T) {
	w := httptest.NewRecorder()
	SetStreamHeaders(w)

	require.NoError(t, WriteEvent(w, EventDelta, models.StreamChunk{Content: "[{", Bytes: 2}))
	require.NoError(t, WriteEvent(w, EventResult, models.Success(200, []int{1})))

	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t,
		"event: delta\ndata: {\"content\":\"[{\",\"bytes\":2}\n\n"+
			"event: result\ndata: {\"success\":true,\"status_code\":200,\"data\":[1]}\n\n",
		w.Body.String())
	assert.True(t, w.Flushed)
}

func TestWriteEvent_UnencodablePayload(t *testing.T) {
	w := httptest.NewRecorder()
	assert.Error(t, WriteEvent(w, EventDelta, make(chan int)))
	assert.Empty(t, w.Body.String())
}
