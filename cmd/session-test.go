package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/RyanBlaney/stream-session/configs"
	"github.com/RyanBlaney/stream-session/internal/session"
)

var (
	sessionTestTimeout     time.Duration
	sessionTestRefreshAt   time.Duration
	sessionTestShowHealth  bool
	sessionTestShowMetrics bool
)

var sessionTestCmd = &cobra.Command{
	Use:   "session-test [url]",
	Short: "Drive a full session lifecycle against a live stream",
	Long: `Run a complete session against a stream and report every lifecycle
transition, health change, and metadata event. Audio bytes are counted
and discarded.

This command exercises the full pipeline:
- Playlist resolution and reachability probing
- ICY negotiation and metadata demultiplexing
- Health monitoring and stall detection
- Bounded-retry recovery on transient failures

Examples:
  # Observe a session for two minutes
  stream-session session-test --timeout 2m http://stream.example.com:8000/stream

  # Force a mid-session refresh after 30 seconds
  stream-session session-test --refresh-at 30s http://radio.example.com/listen.pls

  # Include a health snapshot and metrics dump at the end
  stream-session session-test --health --metrics http://stream.example.com/radio.mp3`,
	Args: cobra.ExactArgs(1),
	RunE: runSessionTest,
}

func init() {
	rootCmd.AddCommand(sessionTestCmd)

	sessionTestCmd.Flags().DurationVar(&sessionTestTimeout, "timeout", 60*time.Second,
		"how long to observe the session")
	sessionTestCmd.Flags().DurationVar(&sessionTestRefreshAt, "refresh-at", 0,
		"force a refresh after this much playback (0 disables)")
	sessionTestCmd.Flags().BoolVar(&sessionTestShowHealth, "health", false,
		"print a health snapshot at the end")
	sessionTestCmd.Flags().BoolVar(&sessionTestShowMetrics, "metrics", false,
		"print session metrics at the end")
}

func runSessionTest(cmd *cobra.Command, args []string) error {
	url := args[0]
	verbose := viper.GetBool("verbose")

	printHeader("Session Lifecycle Test", url)

	appConfig, err := configs.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := configs.ValidateConfig(appConfig); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	printStep(1, "Starting session")

	registry := prometheus.NewRegistry()
	manager := session.NewManager(appConfig.ToSessionConfig(), registry)
	defer manager.Shutdown()

	s, err := manager.Play("session-test", url, io.Discard)
	if err != nil {
		printError("Session start failed: %v", err)
		return err
	}
	printSuccess("Session started")

	printStep(2, "Observing lifecycle")

	deadline := time.NewTimer(sessionTestTimeout)
	defer deadline.Stop()

	var refreshCh <-chan time.Time
	if sessionTestRefreshAt > 0 {
		refreshTimer := time.NewTimer(sessionTestRefreshAt)
		defer refreshTimer.Stop()
		refreshCh = refreshTimer.C
	}

	poll := time.NewTicker(time.Second)
	defer poll.Stop()

	lastState := session.StateIdle

observe:
	for {
		select {
		case <-deadline.C:
			break observe

		case <-refreshCh:
			printInfo("Forcing refresh")
			if err := manager.Refresh("session-test"); err != nil {
				printWarning("Refresh rejected: %v", err)
			}

		case event, ok := <-s.Events():
			if !ok {
				break observe
			}
			switch event.Kind {
			case session.EventMetadata:
				printSuccess("Metadata: %s", event.Metadata.StreamTitle)
			case session.EventReconnecting:
				printWarning("Reconnecting, attempt %d: %v", event.Attempt, event.Err)
			case session.EventFailed:
				printError("Terminal failure: %v", event.Err)
				break observe
			case session.EventStopped:
				printInfo("Session stopped")
				break observe
			}

		case <-poll.C:
			status, err := manager.Status("session-test")
			if err != nil {
				break observe
			}
			if status.State != lastState {
				printInfo("State: %s -> %s", lastState, status.State)
				lastState = status.State
			}
			if verbose {
				printInfo("Health: %s, bytes: %d, retries: %d",
					status.Health.State, status.Health.BytesReceived, status.RetryCount)
			}
		}
	}

	printStep(3, "Final status")

	if status, err := manager.Status("session-test"); err == nil {
		printKeyValue("State", string(status.State))
		printKeyValue("Station", status.Station)
		if status.Bitrate > 0 {
			printKeyValue("Bitrate", fmt.Sprintf("%d kbps", status.Bitrate))
		}
		if sessionTestShowHealth {
			printKeyValue("Health", string(status.Health.State))
			printKeyValue("Bytes received", fmt.Sprintf("%d", status.Health.BytesReceived))
			printKeyValue("Retry count", fmt.Sprintf("%d", status.RetryCount))
		}
	}

	if sessionTestShowMetrics {
		dumpMetrics(registry)
	}

	return nil
}

// dumpMetrics writes a one-shot text exposition of the registry to stdout
func dumpMetrics(registry *prometheus.Registry) {
	families, err := registry.Gather()
	if err != nil {
		printWarning("Metrics gathering failed: %v", err)
		return
	}
	encoder := expfmt.NewEncoder(os.Stdout, expfmt.FmtText)
	for _, family := range families {
		if err := encoder.Encode(family); err != nil {
			printWarning("Metrics encoding failed: %v", err)
			return
		}
	}
}
