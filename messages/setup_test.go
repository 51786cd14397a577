package messages

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeSetup(t *testing.T, p SetupParams) map[string]any {
	t.Helper()
	data, err := EncodeSetup(p)
	require.NoError(t, err)

	var frame map[string]any
	require.NoError(t, json.Unmarshal(data, &frame))
	setup, ok := frame["setup"].(map[string]any)
	require.True(t, ok, "setup object missing: %s", data)
	return setup
}

func TestSplitInstruction(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"blank line runs", "A\n\nB\n\n\nC", []string{"A", "B", "C"}},
		{"whitespace only lines", "  A  \n  \n B ", []string{"A", "B"}},
		{"single newline kept", "line one\nline two", []string{"line one\nline two"}},
		{"crlf", "A\r\n\r\nB", []string{"A", "B"}},
		{"empty", "  \n\n  ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitInstruction(tt.in))
		})
	}
}

func TestEncodeSetup_Fields(t *testing.T) {
	setup := decodeSetup(t, SetupParams{
		Model:             "gemini-live",
		SystemInstruction: "Translate.\n\nBe brief.",
		SilenceDurationMs: 800,
	})

	assert.Equal(t, "models/gemini-live", setup["model"])
	assert.Equal(t, map[string]any{"responseModalities": []any{"AUDIO"}}, setup["generationConfig"])
	assert.Equal(t, map[string]any{}, setup["inputAudioTranscription"])
	assert.Equal(t, map[string]any{}, setup["outputAudioTranscription"])
	assert.Equal(t, map[string]any{"slidingWindow": map[string]any{}}, setup["contextWindowCompression"])

	ric := setup["realtimeInputConfig"].(map[string]any)
	aad := ric["automaticActivityDetection"].(map[string]any)
	assert.Equal(t, float64(800), aad["silenceDurationMs"])

	instruction := setup["systemInstruction"].(map[string]any)
	parts := instruction["parts"].([]any)
	require.Len(t, parts, 2)
	assert.Equal(t, "Translate.", parts[0].(map[string]any)["text"])
	assert.Equal(t, "Be brief.", parts[1].(map[string]any)["text"])
}

func TestEncodeSetup_ResumptionHandle(t *testing.T) {
	withHandle := decodeSetup(t, SetupParams{Model: "m", SilenceDurationMs: 500, ResumptionHandle: "abc"})
	assert.Equal(t, map[string]any{"handle": "abc"}, withHandle["sessionResumption"])

	fresh := decodeSetup(t, SetupParams{Model: "m", SilenceDurationMs: 500})
	_, present := fresh["sessionResumption"]
	assert.False(t, present, "fresh sessions must not carry the resumption field")
}

func TestModelReference(t *testing.T) {
	assert.Equal(t, "models/x", ModelReference("x"))
	assert.Equal(t, "models/x", ModelReference("models/x"))
}
