package server

import (
	"context"
	"encoding/base64"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/room4-2/livetranslate/config"
	"github.com/room4-2/livetranslate/messages"
	"github.com/room4-2/livetranslate/metrics"
	"github.com/room4-2/livetranslate/session"
)

const (
	writeQueueSize = 256
	writeTimeout   = 10 * time.Second
	maxClientFrame = 512 * 1024
)

// Bridge connects one UI websocket to one translation session.
type Bridge struct {
	ID        string
	ClientID  string
	CreatedAt time.Time

	conn       *websocket.Conn
	session    *session.Session
	pump       *session.Pump
	transcript *session.Transcript
	cfg        *config.Config
	metrics    *metrics.Metrics
	logger     *slog.Logger

	writeChan chan *messages.ServerMessage

	mu           sync.RWMutex
	closed       bool
	lastActivity time.Time
	CloseChan    chan struct{}
	ctx          context.Context
	cancel       context.CancelFunc
}

type bridgeOptions struct {
	id       string
	clientID string
	conn     *websocket.Conn
	cfg      *config.Config
	session  session.Options
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func newBridge(opts bridgeOptions) (*Bridge, error) {
	ctx, cancel := context.WithCancel(context.Background())
	sess, err := session.New(ctx, opts.session)
	if err != nil {
		cancel()
		return nil, err
	}

	opts.conn.SetReadLimit(maxClientFrame)

	now := time.Now()
	b := &Bridge{
		ID:           opts.id,
		ClientID:     opts.clientID,
		CreatedAt:    now,
		conn:         opts.conn,
		session:      sess,
		transcript:   &session.Transcript{},
		cfg:          opts.cfg,
		metrics:      opts.metrics,
		logger:       opts.logger,
		writeChan:    make(chan *messages.ServerMessage, writeQueueSize),
		lastActivity: now,
		CloseChan:    make(chan struct{}),
		ctx:          ctx,
		cancel:       cancel,
	}
	b.pump = session.NewPump(sess, opts.cfg.MaxBufferSize, opts.metrics, opts.logger)
	return b, nil
}

// Start runs the bridge goroutines. The bridge closes itself when the UI
// socket goes away.
func (b *Bridge) Start() {
	go b.writePump()
	go b.forwardEvents()
	go b.pump.Run(b.ctx)
	b.queueMessage(messages.NewStatusMessage(b.ID, session.StateIdle.String(), "bridge established"))
	go b.readLoop()
}

func (b *Bridge) readLoop() {
	defer b.Close()
	for {
		mt, data, err := b.conn.ReadMessage()
		if err != nil {
			if !b.IsClosed() && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				b.logger.Warn("client read failed", slog.Any("error", err))
			}
			return
		}
		b.touch()

		if mt == websocket.BinaryMessage {
			b.pump.Push(data)
			continue
		}
		b.handleClientMessage(data)
	}
}

func (b *Bridge) handleClientMessage(data []byte) {
	var msg messages.ClientMessage
	if err := messages.DecodeInto(data, &msg); err != nil {
		b.queueMessage(messages.NewErrorMessage(b.ID, messages.ErrCodeInvalidMessage, "invalid JSON", false))
		return
	}

	switch msg.Type {
	case messages.TypeAudio:
		var payload messages.AudioPayload
		if err := messages.DecodeInto(msg.Payload, &payload); err != nil {
			b.queueMessage(messages.NewErrorMessage(b.ID, messages.ErrCodeInvalidMessage, "invalid audio payload", false))
			return
		}
		pcm, err := base64.StdEncoding.DecodeString(payload.Data)
		if err != nil {
			b.queueMessage(messages.NewErrorMessage(b.ID, messages.ErrCodeInvalidMessage, "audio is not base64", false))
			return
		}
		b.pump.Push(pcm)
	case messages.TypeControl:
		var payload messages.ControlPayload
		if err := messages.DecodeInto(msg.Payload, &payload); err != nil {
			b.queueMessage(messages.NewErrorMessage(b.ID, messages.ErrCodeInvalidMessage, "invalid control payload", false))
			return
		}
		b.handleControl(payload.Action)
	default:
		b.queueMessage(messages.NewErrorMessage(b.ID, messages.ErrCodeInvalidMessage, "unknown message type: "+msg.Type, false))
	}
}

func (b *Bridge) handleControl(action string) {
	switch action {
	case messages.ActionConnect:
		b.session.Connect(b.cfg.SessionConfig(session.Handle{}))
	case messages.ActionDisconnect:
		b.session.Disconnect()
	case messages.ActionPing:
		b.queueMessage(messages.NewStatusMessage(b.ID, "pong", ""))
	default:
		b.queueMessage(messages.NewErrorMessage(b.ID, messages.ErrCodeInvalidMessage, "unknown action: "+action, false))
	}
}

// forwardEvents turns session events into UI messages, in order.
func (b *Bridge) forwardEvents() {
	for ev := range b.session.Events() {
		switch ev := ev.(type) {
		case session.StateChangedEvent:
			b.queueMessage(messages.NewStatusMessage(b.ID, ev.To.String(), ev.Reason))
		case session.ReadyEvent:
			// Each connection starts a fresh transcript.
			b.transcript.Clear()
			b.queueMessage(messages.NewStatusMessage(b.ID, "ready", "setup complete"))
		case session.TranscriptEvent:
			replaced := b.transcript.Add(ev.Fragment)
			b.queueMessage(messages.NewTranscriptMessage(b.ID, ev.Fragment.Text, ev.Fragment.SourceIsUser, replaced))
		case session.AudioEvent:
			b.queueMessage(messages.NewAudioMessage(b.ID, ev.Data))
		case session.ResumptionEvent:
			b.queueMessage(messages.NewStatusMessage(b.ID, "resumption", ev.Status))
		case session.ErrorEvent:
			b.queueMessage(messages.NewErrorMessage(b.ID, errorCode(ev.Err), ev.Err.Error(), ev.Fatal))
		case session.DisconnectedEvent:
			b.queueMessage(messages.NewStatusMessage(b.ID, "disconnected", ev.Reason))
		}
	}
}

func errorCode(err error) string {
	switch session.KindOf(err) {
	case session.KindDecode:
		return messages.ErrCodeDecode
	case session.KindTransport:
		return messages.ErrCodeTransport
	case session.KindServerTerminated:
		return messages.ErrCodeServerTerminated
	case session.KindSetupTimeout:
		return messages.ErrCodeSetupTimeout
	case session.KindInvalidConfig:
		return messages.ErrCodeInvalidConfig
	default:
		return messages.ErrCodeSessionFailed
	}
}

// writePump handles all outgoing messages in a single goroutine.
func (b *Bridge) writePump() {
	defer func() {
		_ = b.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		_ = b.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		_ = b.conn.Close()
	}()

	for {
		select {
		case <-b.CloseChan:
			return
		case msg := <-b.writeChan:
			data, err := messages.Encode(msg)
			if err != nil {
				b.logger.Error("encode client message", slog.Any("error", err))
				continue
			}
			_ = b.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := b.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}

// queueMessage adds a message to the write queue without blocking.
func (b *Bridge) queueMessage(msg *messages.ServerMessage) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	select {
	case b.writeChan <- msg:
	default:
		b.logger.Warn("client write queue full, dropping message", slog.String("type", msg.Type))
	}
}

func (b *Bridge) touch() {
	b.mu.Lock()
	b.lastActivity = time.Now()
	b.mu.Unlock()
}

func (b *Bridge) LastActivity() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastActivity
}

func (b *Bridge) State() session.State {
	return b.session.State()
}

// Transcript returns the coalesced conversation so far.
func (b *Bridge) Transcript() []session.TranscriptFragment {
	return b.transcript.Entries()
}

func (b *Bridge) IsClosed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}

// Close stops the session and releases both sockets. Safe to call more than once.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.session.Close()
	b.cancel()
	close(b.CloseChan)
	return nil
}
