package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionConfigValidate(t *testing.T) {
	assert.NoError(t, validConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*SessionConfig)
	}{
		{"host", func(c *SessionConfig) { c.Host = "" }},
		{"key", func(c *SessionConfig) { c.APIKey = " " }},
		{"model", func(c *SessionConfig) { c.Model = "" }},
		{"version", func(c *SessionConfig) { c.APIVersion = "" }},
		{"silence", func(c *SessionConfig) { c.VADSilenceMs = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestSessionConfigURL(t *testing.T) {
	cfg := validConfig()
	cfg.Model = "models/gemini-live"
	assert.Equal(t, "wss://example.test/v1alpha/models/gemini-live:generateAnswer?key=secret", cfg.URL())
	assert.NotContains(t, cfg.RedactedURL(), "secret")

	cfg.Scheme = "ws"
	cfg.Host = "127.0.0.1:9000"
	assert.Equal(t, "ws://127.0.0.1:9000/v1alpha/models/gemini-live:generateAnswer?key=secret", cfg.URL())
}

func TestSetupParamsOffersOnlyUsableHandle(t *testing.T) {
	cfg := validConfig()
	cfg.Resumption = Handle{Value: "abc", Resumable: false}
	assert.Empty(t, cfg.SetupParams().ResumptionHandle)

	cfg.Resumption.Resumable = true
	assert.Equal(t, "abc", cfg.SetupParams().ResumptionHandle)
}

func TestErrorKinds(t *testing.T) {
	err := Wrap(errBoom, KindTransport)
	assert.Equal(t, KindTransport, KindOf(err))
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, err, Wrap(err, KindDecode), "kind is not overwritten")
	assert.Nil(t, Wrap(nil, KindDecode))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.False(t, HasKind(nil, KindUnknown))

	goAway := &Error{Kind: KindServerTerminated, Err: ErrServerGoAway, TimeLeft: 5e9}
	assert.Equal(t, "server sent goAway. Time left: 5s", goAway.Error())
}

func TestStateTransitions(t *testing.T) {
	assert.True(t, transitionValid(StateIdle, StateConnecting))
	assert.True(t, transitionValid(StateClosed, StateConnecting))
	assert.False(t, transitionValid(StateIdle, StateReady))
	assert.False(t, transitionValid(StateConnecting, StateReady))
	assert.Equal(t, "AWAITING_SETUP_ACK", StateAwaitingSetupAck.String())
	assert.Equal(t, "UNKNOWN", State(42).String())
}
