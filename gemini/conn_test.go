package gemini

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/room4-2/livetranslate/logging"
	"github.com/room4-2/livetranslate/session"
)

const waitTimeout = 2 * time.Second

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

type callback struct {
	kind   string
	data   []byte
	code   int
	reason string
	err    error
}

// chanListener turns transport callbacks into a stream tests can wait on.
type chanListener struct {
	ch chan callback
}

func newChanListener() *chanListener {
	return &chanListener{ch: make(chan callback, 64)}
}

func (l *chanListener) OnOpen() { l.ch <- callback{kind: "open"} }
func (l *chanListener) OnMessage(data []byte) {
	l.ch <- callback{kind: "message", data: data}
}
func (l *chanListener) OnClosed(code int, reason string) {
	l.ch <- callback{kind: "closed", code: code, reason: reason}
}
func (l *chanListener) OnFailure(err error) { l.ch <- callback{kind: "failure", err: err} }

func (l *chanListener) next(t *testing.T) callback {
	t.Helper()
	select {
	case cb := <-l.ch:
		return cb
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for transport callback")
		return callback{}
	}
}

func (l *chanListener) quiet(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case cb := <-l.ch:
		t.Fatalf("unexpected callback %q", cb.kind)
	case <-time.After(d):
	}
}

func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestConnSendAndReceive(t *testing.T) {
	srv := echoServer(t)
	l := newChanListener()
	conn := NewDialer(logging.Discard()).Dial(context.Background(), wsURL(srv), l)
	defer conn.Close(session.CloseNormal, "done")

	require.Equal(t, "open", l.next(t).kind)
	require.NoError(t, conn.SendText([]byte(`{"hello":"world"}`)))
	cb := l.next(t)
	assert.Equal(t, "message", cb.kind)
	assert.JSONEq(t, `{"hello":"world"}`, string(cb.data))

	require.NoError(t, conn.SendBinary([]byte{1, 2, 3}))
	assert.Equal(t, []byte{1, 2, 3}, l.next(t).data)
}

func TestConnSendBeforeOpen(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(block) })

	l := newChanListener()
	conn := NewDialer(logging.Discard()).Dial(context.Background(), wsURL(srv), l)
	assert.ErrorIs(t, conn.SendText([]byte("x")), session.ErrNotConnected)

	// Closing during the handshake cancels it silently.
	require.NoError(t, conn.Close(session.CloseNormal, "abort"))
	l.quiet(t, 100*time.Millisecond)
}

func TestConnClientCloseSendsCloseFrame(t *testing.T) {
	got := make(chan int, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_, _, err = conn.ReadMessage()
		var ce *websocket.CloseError
		if assert.ErrorAs(t, err, &ce) {
			got <- ce.Code
		}
	}))
	t.Cleanup(srv.Close)

	l := newChanListener()
	conn := NewDialer(logging.Discard()).Dial(context.Background(), wsURL(srv), l)
	require.Equal(t, "open", l.next(t).kind)

	require.NoError(t, conn.Close(session.CloseNormal, "User disconnected"))
	require.NoError(t, conn.Close(session.CloseNormal, "again"))

	select {
	case code := <-got:
		assert.Equal(t, websocket.CloseNormalClosure, code)
	case <-time.After(waitTimeout):
		t.Fatal("server never saw a close frame")
	}
	l.quiet(t, 100*time.Millisecond)
	assert.ErrorIs(t, conn.SendBinary([]byte{1}), session.ErrNotConnected)
}

func TestConnServerClose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "maintenance")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_, _, _ = conn.ReadMessage()
	}))
	t.Cleanup(srv.Close)

	l := newChanListener()
	NewDialer(logging.Discard()).Dial(context.Background(), wsURL(srv), l)
	require.Equal(t, "open", l.next(t).kind)

	cb := l.next(t)
	require.Equal(t, "closed", cb.kind)
	assert.Equal(t, websocket.CloseGoingAway, cb.code)
	assert.Equal(t, "maintenance", cb.reason)
}

func TestConnDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	l := newChanListener()
	NewDialer(logging.Discard()).Dial(context.Background(), wsURL(srv), l)

	cb := l.next(t)
	require.Equal(t, "failure", cb.kind)
	assert.Contains(t, cb.err.Error(), "403")
}
