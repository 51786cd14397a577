package cli

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/room4-2/livetranslate/audio"
	"github.com/room4-2/livetranslate/gemini"
	"github.com/room4-2/livetranslate/metrics"
	"github.com/room4-2/livetranslate/session"
)

var (
	streamIn     string
	streamOut    string
	streamPlay   bool
	streamLinger time.Duration
	streamPace   time.Duration
)

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Translate a PCM or WAV file through a live session",
	Long: `Stream opens a session, waits for the setup acknowledgement and then
feeds the input file in real time, 3200 bytes every 100ms, as a microphone
would. Translated audio is written to --out as raw 24 kHz PCM and the
coalesced transcript is printed when the session ends.

The resumption handle is kept in redis under RESUMPTION_PROFILE, so a second
run continues the same conversation.`,
	Args: cobra.NoArgs,
	RunE: runStream,
}

func init() {
	streamCmd.Flags().StringVar(&streamIn, "in", "", "16 kHz mono PCM or WAV file to translate")
	streamCmd.Flags().StringVar(&streamOut, "out", "", "file for the translated 24 kHz PCM")
	streamCmd.Flags().BoolVar(&streamPlay, "play", false, "play translated audio through sox")
	streamCmd.Flags().DurationVar(&streamLinger, "linger", 10*time.Second, "how long to wait for replies after the input ends")
	streamCmd.Flags().DurationVar(&streamPace, "pace", audio.ChunkInterval, "delay between capture chunks")
	_ = streamCmd.MarkFlagRequired("in")
	rootCmd.AddCommand(streamCmd)
}

func runStream(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadEnvironment()
	if err != nil {
		return err
	}

	pcm, err := audio.LoadFile(streamIn)
	if err != nil {
		return fmt.Errorf("load input: %w", err)
	}

	var sinks []io.Writer
	if streamOut != "" {
		f, err := os.Create(streamOut)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		sinks = append(sinks, f)
	}
	if streamPlay {
		player, err := audio.NewPlayer(audio.PlaybackSampleRate)
		if err != nil {
			return err
		}
		defer player.Close()
		sinks = append(sinks, player)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := cfg.ConnectRedis(ctx)
	var store session.HandleStore
	if rdb != nil {
		defer rdb.Close()
		store = session.NewRedisHandleStore(rdb, cfg.ResumptionProfile, cfg.SessionTimeout)
	}
	tracker := session.NewTracker(store, logger)
	if err := tracker.Restore(ctx); err != nil {
		logger.Warn("could not restore resumption handle", slog.Any("error", err))
	}

	m := metrics.New()
	wire, closeWire, err := openWireLog(cfg, rdb, m, logger)
	if err != nil {
		return err
	}
	defer closeWire()

	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	sess, err := session.New(sessCtx, session.Options{
		Dialer:       gemini.NewDialer(logger),
		Tracker:      tracker,
		Logger:       logger,
		WireLog:      wire,
		Metrics:      m,
		SetupTimeout: cfg.SetupTimeout,
	})
	if err != nil {
		return err
	}

	pump := session.NewPump(sess, cfg.MaxBufferSize, m, logger)
	go pump.Run(sessCtx)

	var transcript session.Transcript
	sess.Connect(cfg.SessionConfig(session.Handle{}))
	runErr := translate(sessCtx, sess, pump, pcm, io.MultiWriter(sinks...), &transcript, logger)
	sess.Close()

	printTranscript(cmd.OutOrStdout(), transcript.Entries())
	if h, ok := tracker.Current(); ok {
		logger.Info("conversation can be resumed", slog.String("status", session.ResumptionStatus(h, ok)))
	}
	return runErr
}

// translate consumes session events until the input has been sent and
// replies have gone quiet for the linger period, or the session ends.
func translate(ctx context.Context, sess *session.Session, pump *session.Pump, pcm []byte, out io.Writer, transcript *session.Transcript, logger *slog.Logger) error {
	sent := make(chan error, 1)
	var linger <-chan time.Time
	streaming := false

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-sent:
			if err != nil {
				return fmt.Errorf("stream input: %w", err)
			}
			logger.Info("input sent, waiting for replies", slog.Duration("linger", streamLinger))
			linger = time.After(streamLinger)

		case <-linger:
			sess.Disconnect()
			linger = nil

		case ev, ok := <-sess.Events():
			if !ok {
				return nil
			}
			switch ev := ev.(type) {
			case session.ReadyEvent:
				if streaming {
					continue
				}
				streaming = true
				go func() {
					sent <- audio.Stream(ctx, pcm, audio.ChunkSize, streamPace, func(chunk []byte) error {
						pump.Push(chunk)
						return nil
					})
				}()

			case session.AudioEvent:
				data, err := base64.StdEncoding.DecodeString(ev.Data)
				if err != nil {
					continue
				}
				if _, err := out.Write(data); err != nil {
					return fmt.Errorf("write output: %w", err)
				}
				if linger != nil {
					linger = time.After(streamLinger)
				}

			case session.TranscriptEvent:
				transcript.Add(ev.Fragment)
				logger.Debug("transcript", slog.String("text", ev.Fragment.Text), slog.Bool("user", ev.Fragment.SourceIsUser))

			case session.ResumptionEvent:
				logger.Debug("resumption", slog.String("status", ev.Status))

			case session.ErrorEvent:
				if ev.Fatal {
					return ev.Err
				}
				logger.Warn("session error", slog.Any("error", ev.Err))

			case session.DisconnectedEvent:
				logger.Info("session disconnected", slog.String("reason", ev.Reason))
				return nil
			}
		}
	}
}

func printTranscript(w io.Writer, entries []session.TranscriptFragment) {
	for _, e := range entries {
		speaker := "model"
		if e.SourceIsUser {
			speaker = "user"
		}
		fmt.Fprintf(w, "[%s] %s: %s\n", e.Timestamp.Format("15:04:05"), speaker, e.Text)
	}
}
