package messages

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrDecode marks a server payload that could not be decoded into known frames.
var ErrDecode = errors.New("malformed server payload")

// InboundFrame is one decoded unit of server content. The set of
// implementations is closed: SetupAck, InputTranscript, OutputTranscript,
// AudioChunk, ResumptionUpdate, GoAway and Unrecognized.
type InboundFrame interface {
	Kind() string
	isInboundFrame()
}

type SetupAck struct{}

type InputTranscript struct {
	Text string
}

type OutputTranscript struct {
	Text string
}

// AudioChunk carries base64 PCM exactly as received.
type AudioChunk struct {
	Data     string
	MimeType string
}

type ResumptionUpdate struct {
	Handle    string
	Resumable bool
}

type GoAway struct {
	TimeLeft time.Duration
}

type Unrecognized struct{}

func (SetupAck) Kind() string         { return "setup_ack" }
func (InputTranscript) Kind() string  { return "input_transcript" }
func (OutputTranscript) Kind() string { return "output_transcript" }
func (AudioChunk) Kind() string       { return "audio_chunk" }
func (ResumptionUpdate) Kind() string { return "resumption_update" }
func (GoAway) Kind() string           { return "go_away" }
func (Unrecognized) Kind() string     { return "unrecognized" }

func (SetupAck) isInboundFrame()         {}
func (InputTranscript) isInboundFrame()  {}
func (OutputTranscript) isInboundFrame() {}
func (AudioChunk) isInboundFrame()       {}
func (ResumptionUpdate) isInboundFrame() {}
func (GoAway) isInboundFrame()           {}
func (Unrecognized) isInboundFrame()     {}

// IsSetupComplete is the cheap pre-parse test for a setup acknowledgement.
func IsSetupComplete(payload []byte) bool {
	return bytes.Contains(payload, []byte(SetupCompleteMarker))
}

// Wire shapes of a server payload.
type serverMessage struct {
	SetupComplete           *Empty            `json:"setupComplete"`
	GoAway                  *goAway           `json:"goAway"`
	InputTranscription      *transcription    `json:"inputTranscription"`
	OutputTranscription     *transcription    `json:"outputTranscription"`
	ServerContent           *serverContent    `json:"serverContent"`
	SessionResumptionUpdate *resumptionUpdate `json:"sessionResumptionUpdate"`
}

type goAway struct {
	TimeLeft TimeLeft `json:"timeLeft"`
}

type transcription struct {
	Text string `json:"text"`
}

type serverContent struct {
	InputTranscription  *transcription `json:"inputTranscription"`
	OutputTranscription *transcription `json:"outputTranscription"`
	Parts               []part         `json:"parts"`
	ModelTurn           *modelTurn     `json:"modelTurn"`
	TurnComplete        bool           `json:"turnComplete"`
	Interrupted         bool           `json:"interrupted"`
}

type modelTurn struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text"`
	InlineData *inlineData `json:"inlineData"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type resumptionUpdate struct {
	NewHandle string `json:"newHandle"`
	Resumable *bool  `json:"resumable"`
}

// TimeLeft accepts either a duration string ("5s", "1.5s") or a number of seconds.
type TimeLeft time.Duration

func (t *TimeLeft) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*t = 0
		return nil
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		if d, err := time.ParseDuration(unquoted); err == nil {
			*t = TimeLeft(d)
			return nil
		}
		raw = unquoted
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid timeLeft %s", string(data))
	}
	*t = TimeLeft(time.Duration(secs * float64(time.Second)))
	return nil
}

// Decode turns a server payload into frames, ordered by handling precedence.
// A go-away frame is returned alone. Payloads with no known field decode to
// a single Unrecognized frame. Any structural mismatch, including audio that
// is not valid base64, fails the whole payload with ErrDecode.
func Decode(payload []byte) ([]InboundFrame, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrDecode)
	}

	var msg serverMessage
	if err := DecodeInto(payload, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	if msg.GoAway != nil {
		return []InboundFrame{GoAway{TimeLeft: time.Duration(msg.GoAway.TimeLeft)}}, nil
	}

	var frames []InboundFrame
	if msg.SetupComplete != nil {
		frames = append(frames, SetupAck{})
	}

	sc := msg.ServerContent
	if msg.InputTranscription != nil {
		frames = append(frames, InputTranscript{Text: msg.InputTranscription.Text})
	}
	if sc != nil && sc.InputTranscription != nil {
		frames = append(frames, InputTranscript{Text: sc.InputTranscription.Text})
	}
	if msg.OutputTranscription != nil {
		frames = append(frames, OutputTranscript{Text: msg.OutputTranscription.Text})
	}
	if sc != nil && sc.OutputTranscription != nil {
		frames = append(frames, OutputTranscript{Text: sc.OutputTranscription.Text})
	}

	if sc != nil {
		audio, err := firstInlineAudio(sc)
		if err != nil {
			return nil, err
		}
		if audio != nil {
			frames = append(frames, *audio)
		}
	}

	if u := msg.SessionResumptionUpdate; u != nil {
		frames = append(frames, ResumptionUpdate{
			Handle:    u.NewHandle,
			Resumable: u.Resumable != nil && *u.Resumable,
		})
	}

	if len(frames) == 0 {
		frames = append(frames, Unrecognized{})
	}
	return frames, nil
}

// firstInlineAudio looks in the flat parts list first, then the model turn.
func firstInlineAudio(sc *serverContent) (*AudioChunk, error) {
	candidates := sc.Parts
	if sc.ModelTurn != nil {
		candidates = append(candidates[:len(candidates):len(candidates)], sc.ModelTurn.Parts...)
	}
	for _, p := range candidates {
		if p.InlineData == nil || p.InlineData.Data == "" {
			continue
		}
		if _, err := base64.StdEncoding.DecodeString(p.InlineData.Data); err != nil {
			return nil, fmt.Errorf("%w: inline audio is not base64: %v", ErrDecode, err)
		}
		return &AudioChunk{Data: p.InlineData.Data, MimeType: p.InlineData.MimeType}, nil
	}
	return nil, nil
}
