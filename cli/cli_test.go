package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/room4-2/livetranslate/audio"
)

var upgrader = websocket.Upgrader{}

// fakeModel acknowledges setup and answers the first audio chunk with one
// exchange, then waits for the client to hang up.
func fakeModel(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"setupComplete":{}}`))

		if mt, _, err := conn.ReadMessage(); err != nil || mt != websocket.BinaryMessage {
			return
		}
		for _, reply := range []string{
			`{"serverContent":{"inputTranscription":{"text":"sawasdee"}}}`,
			`{"serverContent":{"outputTranscription":{"text":"hello"},"modelTurn":{"parts":[{"inlineData":{"mimeType":"audio/pcm;rate=24000","data":"AAEC"}}]}}}`,
			`{"sessionResumptionUpdate":{"newHandle":"handle-1","resumable":true}}`,
		} {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(reply)); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func setEnv(t *testing.T, mr *miniredis.Miniredis, model *httptest.Server) {
	t.Helper()
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("GEMINI_SCHEME", "ws")
	t.Setenv("GEMINI_HOST", strings.TrimPrefix(model.URL, "http://"))
	t.Setenv("REDIS_URL", mr.Addr())
	t.Setenv("RESUMPTION_PROFILE", "cli-test")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("WIRE_LOG_FILE", "")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	streamIn, streamOut, streamPlay = "", "", false
	streamPace, streamLinger = audio.ChunkInterval, 10*time.Second
	logsLimit, logsClear = 200, false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetOut(nil); rootCmd.SetErr(nil) })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// cobra only hands the context to subcommands whose own context is nil,
	// so replace what the previous run left behind.
	for _, c := range rootCmd.Commands() {
		c.SetContext(ctx)
		for _, sub := range c.Commands() {
			sub.SetContext(ctx)
		}
	}
	err := rootCmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestSubcommandsGetFreshContext(t *testing.T) {
	mr := miniredis.RunT(t)
	setEnv(t, mr, fakeModel(t))

	for i := 0; i < 2; i++ {
		_, err := execute(t, "logs", "export")
		require.NoError(t, err, "run %d", i)
	}
}

func TestStreamTranslatesFile(t *testing.T) {
	mr := miniredis.RunT(t)
	setEnv(t, mr, fakeModel(t))

	dir := t.TempDir()
	in := filepath.Join(dir, "in.pcm")
	outFile := filepath.Join(dir, "out.pcm")
	require.NoError(t, os.WriteFile(in, make([]byte, 3*3200), 0o600))

	out, err := execute(t, "stream", "--in", in, "--out", outFile, "--pace", "0", "--linger", "300ms")
	require.NoError(t, err)

	assert.Contains(t, out, "user: sawasdee")
	assert.Contains(t, out, "model: hello")

	pcm, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 2}, pcm)

	assert.Eventually(t, func() bool {
		return mr.HGet("resumption:cli-test", "handle") == "handle-1"
	}, 2*time.Second, 20*time.Millisecond)
}

func TestStreamRequiresInput(t *testing.T) {
	mr := miniredis.RunT(t)
	setEnv(t, mr, fakeModel(t))

	_, err := execute(t, "stream", "--in", filepath.Join(t.TempDir(), "missing.pcm"))
	assert.ErrorContains(t, err, "load input")
}

func TestLogsExport(t *testing.T) {
	mr := miniredis.RunT(t)
	setEnv(t, mr, fakeModel(t))

	dir := t.TempDir()
	in := filepath.Join(dir, "in.pcm")
	require.NoError(t, os.WriteFile(in, make([]byte, 3200), 0o600))
	_, err := execute(t, "stream", "--in", in, "--pace", "0", "--linger", "200ms")
	require.NoError(t, err)

	out, err := execute(t, "logs", "export", "--limit", "100", "--clear")
	require.NoError(t, err)
	assert.Contains(t, out, "SENT")
	assert.Contains(t, out, "key=REDACTED")
	assert.Contains(t, out, `"setup"`)
	assert.Contains(t, out, "[AUDIO DATA 3200 bytes]")
	assert.NotContains(t, out, "test-key")
	assert.False(t, mr.Exists(wireLogKey))
}

func TestLogsExportWithoutRedis(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("REDIS_URL", "127.0.0.1:1")
	t.Setenv("LOG_LEVEL", "error")

	_, err := execute(t, "logs", "export")
	assert.ErrorContains(t, err, "needs a reachable redis")
}
