package llm

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadEventStream(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantMsg  string
		wantID   string
		wantDone bool
	}{
		{
			name:     "accumulates_until_done",
			input:    "data: {\"action\":\"success\",\"id\":\"x1\",\"message\":\"Hel\",\"created\":10}\ndata: {\"action\":\"success\",\"id\":\"x2\",\"message\":\"lo\",\"created\":11}\ndata: [DONE]\ndata: {\"action\":\"success\",\"message\":\"ignored\"}\n",
			wantMsg:  "Hello",
			wantID:   "x1",
			wantDone: true,
		},
		{
			name:    "closed_without_terminator",
			input:   "data: {\"action\":\"success\",\"id\":\"x\",\"message\":\"partial\"}\n",
			wantMsg: "partial",
			wantID:  "x",
		},
		{
			name:     "skips_unparsable_and_foreign_lines",
			input:    ": keepalive\nevent: ping\ndata: {broken\ndata: {\"action\":\"success\",\"message\":\"ok\"}\ndata: [DONE]\n",
			wantMsg:  "ok",
			wantDone: true,
		},
		{
			name:     "ignores_non_success_actions",
			input:    "data: {\"action\":\"typing\",\"message\":\"nope\"}\ndata: {\"action\":\"success\",\"message\":\"yes\"}\ndata: [DONE]\n",
			wantMsg:  "yes",
			wantDone: true,
		},
		{
			name:  "empty_stream",
			input: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := zerolog.Nop()

			res, err := readEventStream(strings.NewReader(tt.input), &logger)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMsg, res.Message)
			assert.Equal(t, tt.wantID, res.ID)
			assert.Equal(t, tt.wantDone, res.Done)
		})
	}
}

func TestReadEventStream_ErrorEvent(t *testing.T) {
	logger := zerolog.Nop()

	res, err := readEventStream(strings.NewReader("data: {\"action\":\"error\",\"status\":429,\"type\":\"ERR_CONVERSATION_LIMIT\"}\n"), &logger)
	require.NoError(t, err)
	assert.Empty(t, res.Message)
	assert.Equal(t, 429, res.ErrStatus)
	assert.Equal(t, "ERR_CONVERSATION_LIMIT", res.ErrType)
}

type failingReader struct {
	data string
	read bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.read {
		r.read = true

		return copy(p, r.data), nil
	}

	return 0, errors.New("connection reset")
}

func TestReadEventStream_InterruptedKeepsPartial(t *testing.T) {
	logger := zerolog.Nop()

	res, err := readEventStream(&failingReader{data: "data: {\"action\":\"success\",\"message\":\"kept\"}\n"}, &logger)
	require.NoError(t, err)
	assert.Equal(t, "kept", res.Message)

	_, err = readEventStream(&failingReader{data: ""}, &logger)
	assert.Error(t, err)
}

func TestRawScalar(t *testing.T) {
	assert.Equal(t, "", rawScalar(nil))
	assert.Equal(t, "", rawScalar([]byte("null")))
	assert.Equal(t, "abc", rawScalar([]byte(`"abc"`)))
	assert.Equal(t, "123", rawScalar([]byte("123")))
}

var _ io.Reader = (*failingReader)(nil)
