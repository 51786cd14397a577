package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/room4-2/livetranslate/messages"
	"github.com/room4-2/livetranslate/metrics"
	"github.com/room4-2/livetranslate/wirelog"
)

// machine is the session state machine. It is not safe for concurrent
// use; Session serializes every call onto one goroutine.
type machine struct {
	ctx    context.Context
	state  State
	cfg    SessionConfig
	gen    uint64
	dialer Dialer
	conn   Transport

	tracker    *Tracker
	dispatcher *Dispatcher
	emit       func(Event)
	onState    func(State)

	// listenerFor binds transport callbacks to one connection generation.
	listenerFor func(gen uint64) TransportListener
	// after schedules fn on the session loop once d has elapsed.
	after        func(d time.Duration, fn func(*machine)) *time.Timer
	setupTimeout time.Duration
	setupTimer   *time.Timer

	wire    wirelog.Recorder
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func (m *machine) connect(cfg SessionConfig) {
	if m.state != StateIdle && m.state != StateClosed {
		m.logger.Warn("connect ignored, session already active", slog.String("state", m.state.String()))
		return
	}
	if !cfg.Resumption.Usable() {
		if h, ok := m.tracker.Current(); ok {
			cfg.Resumption = h
		}
	}
	if err := cfg.Validate(); err != nil {
		m.logger.Error("invalid session config", slog.Any("error", err))
		m.reportError(Wrap(err, KindInvalidConfig), false)
		return
	}

	m.cfg = cfg
	m.gen++
	gen := m.gen
	m.transition(StateConnecting, "connecting")
	m.logger.Info("connecting",
		slog.String("url", cfg.RedactedURL()),
		slog.Bool("resuming", cfg.Resumption.Usable()),
	)
	m.conn = m.dialer.Dial(m.ctx, cfg.URL(), m.listenerFor(gen))
}

func (m *machine) onOpen(gen uint64) {
	if gen != m.gen || m.state != StateConnecting {
		return
	}
	payload, err := messages.EncodeSetup(m.cfg.SetupParams())
	if err != nil {
		m.fail(Wrap(fmt.Errorf("encode setup: %w", err), KindTransport))
		return
	}
	m.transition(StateAwaitingSetupAck, "connection open, setup sent")
	if err := m.conn.SendText(payload); err != nil {
		m.fail(Wrap(fmt.Errorf("send setup: %w", err), KindTransport))
		return
	}
	m.metrics.FrameSent("setup")
	m.record(wirelog.Sent, string(payload))
	m.armSetupTimer(gen)
}

func (m *machine) onMessage(gen uint64, data []byte) {
	if gen != m.gen {
		return
	}
	m.record(wirelog.Received, wirelog.RedactInbound(data))

	switch m.state {
	case StateAwaitingSetupAck:
		if !messages.IsSetupComplete(data) {
			m.logger.Warn("unexpected message while awaiting setup acknowledgement")
			m.metrics.Error(string(KindSetupViolation))
			return
		}
		m.stopSetupTimer()
		m.metrics.FrameReceived(messages.SetupAck{}.Kind())
		m.transition(StateReady, "setup complete")
		m.emit(ReadyEvent{})
	case StateReady:
		frames, err := messages.Decode(data)
		if err != nil {
			m.logger.Warn("failed to decode server message", slog.Any("error", err))
			m.reportError(Wrap(err, KindDecode), false)
			return
		}
		for _, f := range frames {
			m.metrics.FrameReceived(f.Kind())
		}
		m.dispatcher.Dispatch(frames)
	default:
		m.logger.Debug("message ignored", slog.String("state", m.state.String()))
	}
}

func (m *machine) onClosed(gen uint64, code int, reason string) {
	if gen != m.gen || m.conn == nil {
		return
	}
	m.conn = nil
	m.stopSetupTimer()
	m.logger.Info("connection closed by server", slog.Int("code", code), slog.String("reason", reason))
	m.transition(StateIdle, "connection closed")
	if code != CloseNormal {
		m.reportError(Wrap(fmt.Errorf("connection closed (%d): %s", code, reason), KindTransport), true)
	}
	m.emit(DisconnectedEvent{Reason: reason})
}

func (m *machine) onFailure(gen uint64, err error) {
	if gen != m.gen || m.conn == nil {
		return
	}
	m.conn = nil
	m.fail(Wrap(err, KindTransport))
}

func (m *machine) onSetupTimeout(gen uint64) {
	if gen != m.gen || m.state != StateAwaitingSetupAck {
		return
	}
	m.setupTimer = nil
	m.logger.Error("setup acknowledgement timed out", slog.Duration("timeout", m.setupTimeout))
	m.closeConn("setup timeout")
	m.fail(&Error{Kind: KindSetupTimeout, Err: ErrSetupTimeout})
}

func (m *machine) sendAudio(data []byte) {
	if m.state != StateReady || m.conn == nil {
		m.logger.Warn("audio dropped, session not ready", slog.String("state", m.state.String()))
		m.metrics.AudioDrop("not_ready")
		return
	}
	if err := m.conn.SendBinary(data); err != nil {
		m.logger.Warn("audio dropped, send failed", slog.Any("error", err))
		m.metrics.AudioDrop("send_failed")
		return
	}
	m.metrics.FrameSent("audio")
	m.record(wirelog.Sent, wirelog.AudioPlaceholder(len(data)))
}

// disconnect is idempotent. It invalidates the current connection so
// late callbacks from it are ignored.
func (m *machine) disconnect(reason string) {
	m.gen++
	m.closeConn(reason)
	if m.state == StateIdle {
		return
	}
	m.transition(StateIdle, reason)
	m.emit(DisconnectedEvent{Reason: reason})
}

func (m *machine) close() {
	if m.state == StateClosed {
		return
	}
	m.disconnect("session closed")
	m.transition(StateClosed, "session closed")
}

// fail tears the connection down after an unrecoverable error.
func (m *machine) fail(err error) {
	m.gen++
	m.stopSetupTimer()
	m.closeConn("error")
	m.logger.Error("session failed", slog.Any("error", err))
	if m.state != StateIdle {
		m.transition(StateIdle, string(KindOf(err)))
	}
	m.reportError(err, true)
}

func (m *machine) closeConn(reason string) {
	m.stopSetupTimer()
	if m.conn == nil {
		return
	}
	conn := m.conn
	m.conn = nil
	if err := conn.Close(CloseNormal, reason); err != nil {
		m.logger.Debug("close transport", slog.Any("error", err))
	}
}

func (m *machine) reportError(err error, fatal bool) {
	m.metrics.Error(string(KindOf(err)))
	m.wireError(err)
	m.emit(ErrorEvent{Err: err, Fatal: fatal})
}

func (m *machine) transition(to State, reason string) {
	from := m.state
	if !transitionValid(from, to) {
		m.logger.Error("rejected state change", slog.Any("error", &InvalidTransitionError{From: from, To: to}))
		return
	}
	m.state = to
	if m.onState != nil {
		m.onState(to)
	}
	m.logger.Info("state change",
		slog.String("from", from.String()),
		slog.String("to", to.String()),
		slog.String("reason", reason),
	)
	m.metrics.Transition(to.String())
	m.record(wirelog.Status, to.String()+": "+reason)
	m.emit(StateChangedEvent{From: from, To: to, Reason: reason, At: time.Now()})
}

func (m *machine) armSetupTimer(gen uint64) {
	if m.after == nil || m.setupTimeout <= 0 {
		return
	}
	m.setupTimer = m.after(m.setupTimeout, func(m *machine) { m.onSetupTimeout(gen) })
}

func (m *machine) stopSetupTimer() {
	if m.setupTimer != nil {
		m.setupTimer.Stop()
		m.setupTimer = nil
	}
}

func (m *machine) record(dir wirelog.Direction, message string) {
	m.wire.Record(wirelog.NewEntry(dir, m.wireURL(), message))
}

func (m *machine) wireError(err error) {
	m.wire.Record(wirelog.ErrorEntry(m.wireURL(), string(KindOf(err)), err))
}

func (m *machine) wireURL() string {
	if m.cfg.Host == "" {
		return ""
	}
	return m.cfg.RedactedURL()
}
