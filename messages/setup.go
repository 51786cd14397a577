package messages

import (
	"regexp"
	"strings"

	"google.golang.org/genai"
)

// SetupCompleteMarker is the substring that identifies a setup acknowledgement.
const SetupCompleteMarker = `"setupComplete"`

var paragraphBreak = regexp.MustCompile(`(?:\r?\n[ \t]*){2,}`)

// SetupParams are the per-connection inputs of the handshake frame.
type SetupParams struct {
	Model             string
	SystemInstruction string
	SilenceDurationMs int
	// ResumptionHandle is offered only when non-empty.
	ResumptionHandle string
}

// Empty marshals as {} and is used for placeholder objects the server expects to be present.
type Empty struct{}

// SetupMessage is the first client frame on every connection.
type SetupMessage struct {
	Setup Setup `json:"setup"`
}

type Setup struct {
	Model                    string                   `json:"model"`
	GenerationConfig         GenerationConfig         `json:"generationConfig"`
	SystemInstruction        *genai.Content           `json:"systemInstruction,omitempty"`
	InputAudioTranscription  Empty                    `json:"inputAudioTranscription"`
	OutputAudioTranscription Empty                    `json:"outputAudioTranscription"`
	ContextWindowCompression ContextWindowCompression `json:"contextWindowCompression"`
	RealtimeInputConfig      RealtimeInputConfig      `json:"realtimeInputConfig"`
	SessionResumption        *SessionResumption       `json:"sessionResumption,omitempty"`
}

type GenerationConfig struct {
	ResponseModalities []genai.Modality `json:"responseModalities"`
}

type ContextWindowCompression struct {
	SlidingWindow Empty `json:"slidingWindow"`
}

type RealtimeInputConfig struct {
	AutomaticActivityDetection AutomaticActivityDetection `json:"automaticActivityDetection"`
}

type AutomaticActivityDetection struct {
	SilenceDurationMs int `json:"silenceDurationMs"`
}

type SessionResumption struct {
	Handle string `json:"handle"`
}

// NewSetupMessage builds the handshake frame. The resumption directive is
// left out entirely when there is no handle: the server reads absence, not
// null, as a fresh session.
func NewSetupMessage(p SetupParams) *SetupMessage {
	msg := &SetupMessage{
		Setup: Setup{
			Model: ModelReference(p.Model),
			GenerationConfig: GenerationConfig{
				ResponseModalities: []genai.Modality{genai.ModalityAudio},
			},
			RealtimeInputConfig: RealtimeInputConfig{
				AutomaticActivityDetection: AutomaticActivityDetection{
					SilenceDurationMs: p.SilenceDurationMs,
				},
			},
		},
	}

	if paragraphs := SplitInstruction(p.SystemInstruction); len(paragraphs) > 0 {
		parts := make([]*genai.Part, 0, len(paragraphs))
		for _, text := range paragraphs {
			parts = append(parts, genai.NewPartFromText(text))
		}
		msg.Setup.SystemInstruction = &genai.Content{Parts: parts}
	}

	if p.ResumptionHandle != "" {
		msg.Setup.SessionResumption = &SessionResumption{Handle: p.ResumptionHandle}
	}
	return msg
}

// EncodeSetup renders the handshake frame as JSON text.
func EncodeSetup(p SetupParams) ([]byte, error) {
	return Encode(NewSetupMessage(p))
}

// ModelReference returns the "models/<name>" form of a model identifier.
func ModelReference(model string) string {
	if strings.HasPrefix(model, "models/") {
		return model
	}
	return "models/" + model
}

// SplitInstruction splits text on blank lines into trimmed, non-empty paragraphs, in order.
func SplitInstruction(text string) []string {
	var out []string
	for _, p := range paragraphBreak.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
