// Package gemini is the websocket transport to the Gemini Live endpoint.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/room4-2/livetranslate/logging"
	"github.com/room4-2/livetranslate/session"
)

const (
	// DefaultHandshakeTimeout bounds the websocket upgrade.
	DefaultHandshakeTimeout = 45 * time.Second

	writeQueueSize  = 256
	writeTimeout    = 10 * time.Second
	closeWait       = 5 * time.Second
	maxMessageSize  = 16 * 1024 * 1024
	readBufferSize  = 64 * 1024
	writeBufferSize = 64 * 1024
)

var errWriteQueueFull = errors.New("write queue full")

// Dialer opens Conns. The zero value is usable.
type Dialer struct {
	HandshakeTimeout time.Duration
	Header           http.Header
	Logger           *slog.Logger
}

func NewDialer(logger *slog.Logger) *Dialer {
	return &Dialer{
		HandshakeTimeout: DefaultHandshakeTimeout,
		Logger:           logger,
	}
}

// Dial starts connecting in the background and returns immediately.
func (d *Dialer) Dial(ctx context.Context, url string, listener session.TransportListener) session.Transport {
	timeout := d.HandshakeTimeout
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}
	dialCtx, cancel := context.WithCancel(ctx)
	c := &Conn{
		listener:  listener,
		logger:    logging.NewComponentLogger(d.Logger, "gemini"),
		writeChan: make(chan outbound, writeQueueSize),
		done:      make(chan struct{}),
		cancel:    cancel,
	}
	ws := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: timeout,
		ReadBufferSize:   readBufferSize,
		WriteBufferSize:  writeBufferSize,
	}
	go c.dial(dialCtx, ws, url, d.Header)
	return c
}

type outbound struct {
	messageType int
	data        []byte
}

// Conn is one websocket connection. Writes are queued and performed by a
// single pump goroutine; reads run on their own goroutine and are
// reported through the listener.
type Conn struct {
	listener  session.TransportListener
	logger    *slog.Logger
	writeChan chan outbound
	done      chan struct{}
	cancel    context.CancelFunc

	mu          sync.RWMutex
	ws          *websocket.Conn
	closed      bool
	closeCode   int
	closeReason string
}

func (c *Conn) dial(ctx context.Context, dialer *websocket.Dialer, url string, header http.Header) {
	ws, resp, err := dialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if c.isClosed() {
			return
		}
		c.markClosed()
		if resp != nil {
			err = fmt.Errorf("failed to connect (HTTP %d): %w", resp.StatusCode, err)
		} else {
			err = fmt.Errorf("failed to connect: %w", err)
		}
		c.logger.Error("dial failed", slog.Any("error", err))
		c.listener.OnFailure(err)
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = ws.Close()
		return
	}
	c.ws = ws
	c.mu.Unlock()

	ws.SetReadLimit(maxMessageSize)
	c.logger.Info("connected")
	go c.writePump(ws)
	c.listener.OnOpen()
	c.readLoop(ws)
}

func (c *Conn) readLoop(ws *websocket.Conn) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			c.handleReadError(ws, err)
			return
		}
		c.listener.OnMessage(data)
	}
}

func (c *Conn) handleReadError(ws *websocket.Conn, err error) {
	if c.isClosed() {
		return
	}
	c.markClosed()
	_ = ws.Close()

	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		c.logger.Info("closed by server", slog.Int("code", ce.Code), slog.String("reason", ce.Text))
		c.listener.OnClosed(ce.Code, ce.Text)
		return
	}
	c.logger.Error("read failed", slog.Any("error", err))
	c.listener.OnFailure(err)
}

// writePump serializes writes to the websocket.
func (c *Conn) writePump(ws *websocket.Conn) {
	for {
		select {
		case <-c.done:
			c.mu.RLock()
			code, reason := c.closeCode, c.closeReason
			c.mu.RUnlock()
			if code != 0 {
				msg := websocket.FormatCloseMessage(code, reason)
				_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWait))
			}
			_ = ws.Close()
			return
		case msg := <-c.writeChan:
			_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := ws.WriteMessage(msg.messageType, msg.data); err != nil {
				// The read loop observes the broken socket and reports it.
				c.logger.Warn("write failed", slog.Any("error", err))
				_ = ws.Close()
				return
			}
		}
	}
}

func (c *Conn) SendText(data []byte) error {
	return c.send(websocket.TextMessage, data)
}

func (c *Conn) SendBinary(data []byte) error {
	return c.send(websocket.BinaryMessage, data)
}

func (c *Conn) send(messageType int, data []byte) error {
	c.mu.RLock()
	ready := !c.closed && c.ws != nil
	c.mu.RUnlock()
	if !ready {
		return session.ErrNotConnected
	}
	select {
	case c.writeChan <- outbound{messageType: messageType, data: data}:
		return nil
	default:
		return errWriteQueueFull
	}
}

// Close sends a close frame with code and reason and releases the
// socket. It is safe to call before the dial completes and more than once.
// No listener callback follows a Close.
func (c *Conn) Close(code int, reason string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.closeCode = code
	c.closeReason = reason
	c.mu.Unlock()

	close(c.done)
	c.cancel()
	return nil
}

// markClosed records a connection that ended on its own.
func (c *Conn) markClosed() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	close(c.done)
	c.cancel()
}

func (c *Conn) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}
