// Package wirelog records every frame and status change of a session
// connection for later export.
package wirelog

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Direction string

const (
	Sent     Direction = "SENT"
	Received Direction = "RECEIVED"
	Status   Direction = "STATUS"
	Error    Direction = "ERROR"
)

const timeLayout = "2006-01-02 15:04:05.000"

type Entry struct {
	ID           string    `json:"id"`
	Time         time.Time `json:"time"`
	Direction    Direction `json:"direction"`
	URL          string    `json:"url"`
	Message      string    `json:"message"`
	IsError      bool      `json:"isError"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
}

func NewEntry(dir Direction, url, message string) Entry {
	return Entry{
		ID:        uuid.NewString(),
		Time:      time.Now(),
		Direction: dir,
		URL:       url,
		Message:   message,
	}
}

func ErrorEntry(url, message string, err error) Entry {
	e := NewEntry(Error, url, message)
	e.IsError = true
	if err != nil {
		e.ErrorMessage = err.Error()
	}
	return e
}

// Recorder accepts entries. Implementations must not block the caller for long.
type Recorder interface {
	Record(e Entry)
}

type Nop struct{}

func (Nop) Record(Entry) {}

// Multi fans an entry out to every recorder.
type Multi []Recorder

func (m Multi) Record(e Entry) {
	for _, r := range m {
		if r != nil {
			r.Record(e)
		}
	}
}

// AudioPlaceholder replaces outbound audio bytes in the log.
func AudioPlaceholder(n int) string {
	return fmt.Sprintf("[AUDIO DATA %d bytes]", n)
}

const inboundAudioPlaceholder = "[AUDIO DATA]"

// RedactInbound hides payloads carrying inline audio.
func RedactInbound(payload []byte) string {
	if bytes.Contains(payload, []byte(`"inlineData"`)) {
		return inboundAudioPlaceholder
	}
	return string(payload)
}

// Export writes entries in the plain-text share format.
func Export(w io.Writer, entries []Entry) error {
	sep := strings.Repeat("=", 80)
	for _, e := range entries {
		var b strings.Builder
		fmt.Fprintf(&b, "[%s] %s %s\n", e.Time.Format(timeLayout), e.Direction, e.URL)
		if e.IsError {
			fmt.Fprintf(&b, "ERROR: %s\n", e.ErrorMessage)
		}
		b.WriteString(e.Message)
		b.WriteString("\n")
		b.WriteString(sep)
		b.WriteString("\n")
		if _, err := io.WriteString(w, b.String()); err != nil {
			return err
		}
	}
	return nil
}
