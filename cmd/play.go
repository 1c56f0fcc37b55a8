package cmd

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/stream-session/configs"
	"github.com/RyanBlaney/stream-session/internal/app"
	"github.com/RyanBlaney/stream-session/internal/session"
)

var (
	playDuration time.Duration
	playOutput   string
	playStations string
)

var playCmd = &cobra.Command{
	Use:   "play [url or station name]",
	Short: "Play a stream, writing audio to a file or stdout",
	Long: `Resolve and play a Shoutcast/Icecast stream. Audio bytes are written
to the output file (or stdout with -) with ICY metadata stripped; stream
title changes are printed to stderr as they arrive.

The session reconnects automatically on transient failures with bounded
backoff. Interrupt (Ctrl-C) leaves the session cleanly.

With --stations, the argument may be a station name from the preset file
instead of a URL.

Examples:
  # Record 60 seconds of a stream
  stream-session play --duration 60s --output capture.mp3 http://stream.example.com:8000/stream

  # Pipe audio into another tool
  stream-session play --output - http://radio.example.com/listen.pls | ffplay -

  # Play a named preset
  stream-session play --stations stations.yaml "Jazz FM"`,
	Args: cobra.ExactArgs(1),
	RunE: runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().DurationVar(&playDuration, "duration", 0,
		"stop after this duration (0 plays until interrupted)")
	playCmd.Flags().StringVar(&playOutput, "output", "-",
		"output file for audio bytes, - for stdout")
	playCmd.Flags().StringVar(&playStations, "stations", "",
		"path to a YAML or JSON station preset file")
}

func runPlay(cmd *cobra.Command, args []string) error {
	target := args[0]

	appConfig, err := configs.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	streamURL, err := resolveTarget(target)
	if err != nil {
		return err
	}

	var sink io.Writer
	if playOutput == "-" {
		sink = os.Stdout
	} else {
		f, err := os.Create(playOutput)
		if err != nil {
			return fmt.Errorf("failed to open output: %w", err)
		}
		defer f.Close()
		sink = f
	}

	application, err := app.New(appConfig)
	if err != nil {
		return err
	}
	defer application.Shutdown()
	application.StartMetrics()

	s, err := application.Manager.Play("cli", streamURL, sink)
	if err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var deadline <-chan time.Time
	if playDuration > 0 {
		timer := time.NewTimer(playDuration)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		select {
		case <-sigCh:
			return application.Manager.Leave("cli")
		case <-deadline:
			return application.Manager.Leave("cli")
		case event, ok := <-s.Events():
			if !ok {
				return nil
			}
			switch event.Kind {
			case session.EventMetadata:
				fmt.Fprintf(os.Stderr, "now playing: %s\n", event.Metadata.StreamTitle)
			case session.EventReconnecting:
				fmt.Fprintf(os.Stderr, "reconnecting (attempt %d)\n", event.Attempt)
			case session.EventFailed:
				return event.Err
			case session.EventStopped:
				return nil
			}
		}
	}
}

// resolveTarget maps a station preset name to its URL when a preset file is
// configured; anything else is treated as a URL
func resolveTarget(target string) (string, error) {
	if playStations == "" {
		return target, nil
	}

	stations, err := app.LoadStations(playStations)
	if err != nil {
		return "", err
	}

	station, ok := stations.Lookup(target)
	if !ok {
		// Fall through to treating the argument as a URL.
		return target, nil
	}

	if station.Username == "" {
		return station.URL, nil
	}

	parsed, err := url.Parse(station.URL)
	if err != nil {
		return "", fmt.Errorf("station %q has an invalid URL: %w", station.Name, err)
	}
	parsed.User = url.UserPassword(station.Username, station.Password)
	return parsed.String(), nil
}
