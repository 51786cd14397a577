package messages

// Error codes
const (
	ErrCodeInvalidMessage   = "INVALID_MESSAGE"
	ErrCodeSessionFailed    = "SESSION_FAILED"
	ErrCodeDecode           = "DECODE_FAILURE"
	ErrCodeTransport        = "TRANSPORT_FAILURE"
	ErrCodeServerTerminated = "SERVER_TERMINATED"
	ErrCodeSetupTimeout     = "SETUP_TIMEOUT"
	ErrCodeInvalidConfig    = "INVALID_CONFIG"
)

// Message types
const (
	TypeAudio      = "audio"
	TypeTranscript = "transcript"
	TypeStatus     = "status"
	TypeError      = "error"
)

// PlaybackMimeType describes the model's audio output.
const PlaybackMimeType = "audio/pcm;rate=24000"

// ServerMessage is a frame sent to the UI front end.
type ServerMessage struct {
	Type      string `json:"type"` // "audio", "transcript", "status", "error"
	SessionID string `json:"sessionId,omitempty"`
	Payload   any    `json:"payload"`
}

// AudioResponsePayload contains audio for playback.
type AudioResponsePayload struct {
	Data     string `json:"data"` // Base64-encoded PCM
	MimeType string `json:"mimeType"`
}

// TranscriptPayload is one coalesced transcript update. Replace is true when
// the text supersedes the previous entry from the same speaker.
type TranscriptPayload struct {
	Text    string `json:"text"`
	IsUser  bool   `json:"isUser"`
	Replace bool   `json:"replace"`
}

// StatusPayload contains status updates
type StatusPayload struct {
	Status  string `json:"status"` // connection state name, "ready", "resumption", "pong"
	Message string `json:"message,omitempty"`
}

// ErrorPayload contains error information
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Fatal   bool   `json:"fatal"`
}

// NewAudioMessage creates an audio message
func NewAudioMessage(sessionID, data string) *ServerMessage {
	return &ServerMessage{
		Type:      TypeAudio,
		SessionID: sessionID,
		Payload: AudioResponsePayload{
			Data:     data,
			MimeType: PlaybackMimeType,
		},
	}
}

// NewTranscriptMessage creates a transcript message
func NewTranscriptMessage(sessionID, text string, isUser, replace bool) *ServerMessage {
	return &ServerMessage{
		Type:      TypeTranscript,
		SessionID: sessionID,
		Payload: TranscriptPayload{
			Text:    text,
			IsUser:  isUser,
			Replace: replace,
		},
	}
}

// NewStatusMessage creates a status message
func NewStatusMessage(sessionID, status, message string) *ServerMessage {
	return &ServerMessage{
		Type:      TypeStatus,
		SessionID: sessionID,
		Payload: StatusPayload{
			Status:  status,
			Message: message,
		},
	}
}

// NewErrorMessage creates an error message
func NewErrorMessage(sessionID, code, message string, fatal bool) *ServerMessage {
	return &ServerMessage{
		Type:      TypeError,
		SessionID: sessionID,
		Payload: ErrorPayload{
			Code:    code,
			Message: message,
			Fatal:   fatal,
		},
	}
}
