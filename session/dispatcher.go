package session

import (
	"log/slog"
	"strings"
	"time"

	"github.com/room4-2/livetranslate/messages"
)

// Dispatcher routes decoded frames of a Ready connection to consumers.
type Dispatcher struct {
	tracker    *Tracker
	emit       func(Event)
	report     func(err error, fatal bool)
	disconnect func(reason string)
	logger     *slog.Logger
	now        func() time.Time
}

func newDispatcher(tracker *Tracker, emit func(Event), report func(error, bool), disconnect func(string), logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		tracker:    tracker,
		emit:       emit,
		report:     report,
		disconnect: disconnect,
		logger:     logger,
		now:        time.Now,
	}
}

// Dispatch handles frames in order. It returns true when a go-away ended
// the connection; remaining frames are not processed.
func (d *Dispatcher) Dispatch(frames []messages.InboundFrame) bool {
	for _, f := range frames {
		switch f := f.(type) {
		case messages.GoAway:
			d.logger.Warn("server sent goAway", slog.Duration("time_left", f.TimeLeft))
			d.report(&Error{Kind: KindServerTerminated, Err: ErrServerGoAway, TimeLeft: f.TimeLeft}, true)
			d.disconnect("server sent goAway")
			return true
		case messages.InputTranscript:
			d.transcript(f.Text, true)
		case messages.OutputTranscript:
			d.transcript(f.Text, false)
		case messages.AudioChunk:
			d.emit(AudioEvent{Data: f.Data, MimeType: f.MimeType})
		case messages.ResumptionUpdate:
			d.tracker.Update(f.Handle, f.Resumable)
			h, ok := d.tracker.Current()
			d.emit(ResumptionEvent{Handle: h, Status: ResumptionStatus(h, ok)})
		case messages.SetupAck:
			d.logger.Debug("duplicate setup acknowledgement ignored")
		case messages.Unrecognized:
			d.logger.Debug("unrecognized server message")
		}
	}
	return false
}

func (d *Dispatcher) transcript(text string, fromUser bool) {
	if strings.TrimSpace(text) == "" {
		return
	}
	d.emit(TranscriptEvent{Fragment: TranscriptFragment{
		Text:         text,
		SourceIsUser: fromUser,
		Timestamp:    d.now(),
	}})
}
