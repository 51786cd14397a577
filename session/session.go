// Package session implements the client side of a realtime speech
// translation connection: setup handshake, state machine, audio upload
// gating, inbound dispatch and session resumption.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/room4-2/livetranslate/logging"
	"github.com/room4-2/livetranslate/metrics"
	"github.com/room4-2/livetranslate/wirelog"
)

const (
	DefaultSetupTimeout = 15 * time.Second
	inboxSize           = 64
)

type Options struct {
	Dialer  Dialer
	Tracker *Tracker
	Logger  *slog.Logger
	WireLog wirelog.Recorder
	Metrics *metrics.Metrics
	// SetupTimeout bounds the wait for the setup acknowledgement. Zero
	// means DefaultSetupTimeout, negative disables the bound.
	SetupTimeout time.Duration
}

// Session owns one logical conversation with the translation service.
// All state changes happen on a single goroutine fed by an inbox; public
// methods only enqueue work and never block on network I/O.
type Session struct {
	ctx     context.Context
	inbox   chan func(*machine)
	events  *mailbox
	state   atomic.Int32
	tracker *Tracker
	done    chan struct{}
	m       *machine
}

// New starts a session loop that runs until ctx is cancelled.
func New(ctx context.Context, opts Options) (*Session, error) {
	if opts.Dialer == nil {
		return nil, errors.New("session: dialer is required")
	}
	s := &Session{
		ctx:    ctx,
		inbox:  make(chan func(*machine), inboxSize),
		events: newMailbox(ctx),
		done:   make(chan struct{}),
	}
	s.m = newMachine(ctx, opts, s.events.push)
	s.m.onState = func(st State) { s.state.Store(int32(st)) }
	s.m.listenerFor = func(gen uint64) TransportListener {
		return &listener{s: s, gen: gen}
	}
	s.m.after = func(d time.Duration, fn func(*machine)) *time.Timer {
		return time.AfterFunc(d, func() { s.post(fn) })
	}
	s.tracker = s.m.tracker

	go s.run()
	return s, nil
}

func newMachine(ctx context.Context, opts Options, emit func(Event)) *machine {
	logger := logging.NewComponentLogger(opts.Logger, "session")
	tracker := opts.Tracker
	if tracker == nil {
		tracker = NewTracker(nil, opts.Logger)
	}
	wire := opts.WireLog
	if wire == nil {
		wire = wirelog.Nop{}
	}
	timeout := opts.SetupTimeout
	if timeout == 0 {
		timeout = DefaultSetupTimeout
	}

	m := &machine{
		ctx:          ctx,
		state:        StateIdle,
		dialer:       opts.Dialer,
		tracker:      tracker,
		emit:         emit,
		setupTimeout: timeout,
		wire:         wire,
		metrics:      opts.Metrics,
		logger:       logger,
	}
	m.dispatcher = newDispatcher(tracker, emit, m.reportError, m.disconnect, logger)
	return m
}

// Connect opens a connection when the session is Idle or Closed.
func (s *Session) Connect(cfg SessionConfig) {
	s.post(func(m *machine) { m.connect(cfg) })
}

// Disconnect closes the connection and returns to Idle.
func (s *Session) Disconnect() {
	s.post(func(m *machine) { m.disconnect("user disconnected") })
}

// SendAudio forwards one PCM chunk when Ready and drops it otherwise.
// The caller must not modify data afterwards.
func (s *Session) SendAudio(data []byte) {
	s.post(func(m *machine) { m.sendAudio(data) })
}

// Close disconnects and moves to Closed. Connect may reopen the session.
func (s *Session) Close() {
	s.post(func(m *machine) { m.close() })
}

func (s *Session) State() State {
	return State(s.state.Load())
}

// Events delivers session events in order. The channel is closed after
// the session context is cancelled.
func (s *Session) Events() <-chan Event {
	return s.events.out
}

func (s *Session) Tracker() *Tracker {
	return s.tracker
}

// Done is closed once the loop has exited and the transport is released.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) post(fn func(*machine)) {
	select {
	case s.inbox <- fn:
	case <-s.ctx.Done():
	}
}

func (s *Session) run() {
	defer close(s.done)
	for {
		select {
		case fn := <-s.inbox:
			fn(s.m)
		case <-s.ctx.Done():
			s.m.disconnect("session stopped")
			return
		}
	}
}

// listener forwards transport callbacks of one connection onto the loop.
type listener struct {
	s   *Session
	gen uint64
}

func (l *listener) OnOpen() {
	l.s.post(func(m *machine) { m.onOpen(l.gen) })
}

func (l *listener) OnMessage(data []byte) {
	l.s.post(func(m *machine) { m.onMessage(l.gen, data) })
}

func (l *listener) OnClosed(code int, reason string) {
	l.s.post(func(m *machine) { m.onClosed(l.gen, code, reason) })
}

func (l *listener) OnFailure(err error) {
	l.s.post(func(m *machine) { m.onFailure(l.gen, err) })
}
