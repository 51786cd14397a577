package session

import (
	"context"
	"sync"
	"time"
)

// Event is delivered to session consumers in the order it was produced.
// The set of implementations is closed.
type Event interface {
	isEvent()
}

type StateChangedEvent struct {
	From   State
	To     State
	Reason string
	At     time.Time
}

// ReadyEvent fires once per connection when the setup acknowledgement arrives.
type ReadyEvent struct{}

type TranscriptEvent struct {
	Fragment TranscriptFragment
}

// AudioEvent carries base64 PCM for playback, in arrival order.
type AudioEvent struct {
	Data     string
	MimeType string
}

type ResumptionEvent struct {
	Handle Handle
	Status string
}

// ErrorEvent reports a failure. A fatal error ends the connection: a
// go-away is reported first and followed by the disconnect, every other
// fatal error is reported after the session has returned to Idle.
type ErrorEvent struct {
	Err   error
	Fatal bool
}

type DisconnectedEvent struct {
	Reason string
}

func (StateChangedEvent) isEvent() {}
func (ReadyEvent) isEvent()        {}
func (TranscriptEvent) isEvent()   {}
func (AudioEvent) isEvent()        {}
func (ResumptionEvent) isEvent()   {}
func (ErrorEvent) isEvent()        {}
func (DisconnectedEvent) isEvent() {}

// mailbox is an unbounded FIFO between the session loop and its consumer.
// push never blocks, so a slow consumer cannot stall the protocol.
type mailbox struct {
	mu     sync.Mutex
	queue  []Event
	notify chan struct{}
	out    chan Event
}

func newMailbox(ctx context.Context) *mailbox {
	m := &mailbox{
		notify: make(chan struct{}, 1),
		out:    make(chan Event),
	}
	go m.forward(ctx)
	return m
}

func (m *mailbox) push(ev Event) {
	m.mu.Lock()
	m.queue = append(m.queue, ev)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *mailbox) forward(ctx context.Context) {
	defer close(m.out)
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.mu.Unlock()
			select {
			case <-m.notify:
				continue
			case <-ctx.Done():
				return
			}
		}
		ev := m.queue[0]
		m.queue[0] = nil
		m.queue = m.queue[1:]
		m.mu.Unlock()

		select {
		case m.out <- ev:
		case <-ctx.Done():
			return
		}
	}
}
