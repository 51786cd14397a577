package session

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/room4-2/livetranslate/messages"
)

const (
	DefaultScheme       = "wss"
	DefaultVADSilenceMs = 800
)

// SessionConfig is everything needed to open one connection.
type SessionConfig struct {
	Host              string
	Model             string
	APIVersion        string
	APIKey            string
	VADSilenceMs      int
	SystemInstruction string
	// Resumption is sent in the setup frame when usable. A zero handle
	// means the session's tracker is consulted at connect time.
	Resumption Handle
	// Scheme defaults to wss.
	Scheme string
}

// Validate rejects configs that cannot produce a usable endpoint or setup frame.
func (c SessionConfig) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Host) == "" {
		missing = append(missing, "host")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		missing = append(missing, "api key")
	}
	if strings.TrimSpace(c.Model) == "" {
		missing = append(missing, "model")
	}
	if strings.TrimSpace(c.APIVersion) == "" {
		missing = append(missing, "api version")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidConfig, strings.Join(missing, ", "))
	}
	if c.VADSilenceMs <= 0 {
		return fmt.Errorf("%w: vad silence must be positive, got %d", ErrInvalidConfig, c.VADSilenceMs)
	}
	return nil
}

// URL is the service endpoint, including the credential.
func (c SessionConfig) URL() string {
	return c.endpoint(c.APIKey)
}

// RedactedURL is URL with the credential masked, for logs.
func (c SessionConfig) RedactedURL() string {
	return c.endpoint("REDACTED")
}

func (c SessionConfig) endpoint(key string) string {
	scheme := c.Scheme
	if scheme == "" {
		scheme = DefaultScheme
	}
	model := strings.TrimPrefix(c.Model, "models/")
	u := url.URL{
		Scheme:   scheme,
		Host:     c.Host,
		Path:     "/" + c.APIVersion + "/models/" + model + ":generateAnswer",
		RawQuery: url.Values{"key": {key}}.Encode(),
	}
	return u.String()
}

// SetupParams derives the handshake frame parameters.
func (c SessionConfig) SetupParams() messages.SetupParams {
	p := messages.SetupParams{
		Model:             c.Model,
		SystemInstruction: c.SystemInstruction,
		SilenceDurationMs: c.VADSilenceMs,
	}
	if c.Resumption.Usable() {
		p.ResumptionHandle = c.Resumption.Value
	}
	return p
}
