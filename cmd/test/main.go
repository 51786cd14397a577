// Command test drives the bridge server the way a UI front end would:
// it asks for a session, waits until it is ready, streams a PCM or WAV file
// in real time and plays the translated audio back through sox.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/room4-2/livetranslate/audio"
	"github.com/room4-2/livetranslate/logging"
	"github.com/room4-2/livetranslate/messages"
)

func main() {
	serverURL := flag.String("server", "ws://localhost:8080/ws", "bridge WebSocket URL")
	audioFile := flag.String("file", "examples/user.pcm", "audio file to send (16 kHz PCM or WAV)")
	clientID := flag.String("client", "cmd-test", "client id used to key the resumption handle")
	noPlay := flag.Bool("mute", false, "do not play received audio")
	wait := flag.Duration("wait", 30*time.Second, "how long to wait for replies after sending")
	flag.Parse()

	logger := logging.InitLogger(slog.LevelInfo, "text")
	if err := run(logger, *serverURL, *audioFile, *clientID, !*noPlay, *wait); err != nil {
		logger.Error("test client failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(logger *slog.Logger, serverURL, file, clientID string, play bool, wait time.Duration) error {
	u, err := url.Parse(serverURL)
	if err != nil {
		return fmt.Errorf("parse server url: %w", err)
	}
	q := u.Query()
	q.Set("client", clientID)
	u.RawQuery = q.Encode()

	pcm, err := audio.LoadFile(file)
	if err != nil {
		return fmt.Errorf("load audio: %w", err)
	}

	var player *audio.Player
	if play {
		if player, err = audio.NewPlayer(audio.PlaybackSampleRate); err != nil {
			return err
		}
		defer player.Close()
	}

	logger.Info("connecting", slog.String("url", u.String()))
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial bridge: %w", err)
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ready := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		readReplies(logger, conn, player, ready)
	}()

	if err := sendControl(conn, messages.ActionConnect); err != nil {
		return err
	}

	select {
	case <-ready:
	case <-done:
		return fmt.Errorf("bridge closed before the session was ready")
	case <-ctx.Done():
		return nil
	case <-time.After(20 * time.Second):
		return fmt.Errorf("timed out waiting for the session to become ready")
	}

	logger.Info("streaming audio", slog.String("file", file), slog.Int("bytes", len(pcm)))
	chunks := 0
	err = audio.Stream(ctx, pcm, audio.ChunkSize, audio.ChunkInterval, func(chunk []byte) error {
		chunks++
		return conn.WriteMessage(websocket.BinaryMessage, chunk)
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("send audio: %w", err)
	}
	logger.Info("audio sent, waiting for replies", slog.Int("chunks", chunks))

	select {
	case <-done:
		logger.Info("connection closed")
	case <-ctx.Done():
		logger.Info("interrupted, closing")
	case <-time.After(wait):
		logger.Info("done waiting")
	}

	_ = sendControl(conn, messages.ActionDisconnect)
	return conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func sendControl(conn *websocket.Conn, action string) error {
	payload, err := messages.Encode(messages.ControlPayload{Action: action})
	if err != nil {
		return err
	}
	data, err := messages.Encode(messages.ClientMessage{Type: messages.TypeControl, Payload: payload})
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// inboundMessage defers payload decoding until the type is known.
type inboundMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Payload   json.RawMessage `json:"payload"`
}

func readReplies(logger *slog.Logger, conn *websocket.Conn, player *audio.Player, ready chan<- struct{}) {
	signalled := false
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				logger.Warn("read failed", slog.Any("error", err))
			}
			return
		}

		var msg inboundMessage
		if err := messages.DecodeInto(data, &msg); err != nil {
			logger.Warn("unparseable reply", slog.Any("error", err))
			continue
		}

		switch msg.Type {
		case messages.TypeAudio:
			var p messages.AudioResponsePayload
			if err := messages.DecodeInto(msg.Payload, &p); err != nil {
				continue
			}
			pcm, err := base64.StdEncoding.DecodeString(p.Data)
			if err != nil {
				continue
			}
			logger.Debug("audio", slog.Int("bytes", len(pcm)))
			if player != nil {
				player.Write(pcm)
			}

		case messages.TypeTranscript:
			var p messages.TranscriptPayload
			if err := messages.DecodeInto(msg.Payload, &p); err != nil {
				continue
			}
			speaker := "model"
			if p.IsUser {
				speaker = "user"
			}
			logger.Info("transcript", slog.String("speaker", speaker),
				slog.String("text", p.Text), slog.Bool("replace", p.Replace))

		case messages.TypeStatus:
			var p messages.StatusPayload
			if err := messages.DecodeInto(msg.Payload, &p); err != nil {
				continue
			}
			logger.Info("status", slog.String("status", p.Status), slog.String("message", p.Message))
			if p.Status == "ready" && !signalled {
				signalled = true
				close(ready)
			}

		case messages.TypeError:
			var p messages.ErrorPayload
			if err := messages.DecodeInto(msg.Payload, &p); err != nil {
				continue
			}
			logger.Error("bridge error", slog.String("code", p.Code),
				slog.String("message", p.Message), slog.Bool("fatal", p.Fatal))
		}
	}
}
