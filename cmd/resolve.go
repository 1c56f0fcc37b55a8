package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/RyanBlaney/stream-session/configs"
	"github.com/RyanBlaney/stream-session/pkg/stream/playlist"
)

var (
	resolveTimeout time.Duration
	resolveJSON    bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [url]",
	Short: "Resolve a stream or playlist URL to a concrete endpoint",
	Long: `Resolve a user-supplied URL to a connectable stream endpoint.

Direct audio URLs pass through unchanged. PLS and M3U playlists are
fetched and parsed, and their entries are probed in order; the first
reachable entry becomes the endpoint.

Examples:
  # Resolve a PLS playlist
  stream-session resolve http://radio.example.com/listen.pls

  # Resolve with JSON output
  stream-session resolve --json http://stream.example.com:8000/stream`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)

	resolveCmd.Flags().DurationVar(&resolveTimeout, "timeout", 30*time.Second,
		"resolution timeout")
	resolveCmd.Flags().BoolVar(&resolveJSON, "json", false,
		"emit the endpoint as JSON")
}

func runResolve(cmd *cobra.Command, args []string) error {
	url := args[0]

	appConfig, err := configs.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := configs.ValidateConfig(appConfig); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()

	resolver := playlist.NewResolver(appConfig.ToResolverConfig())
	endpoint, err := resolver.Resolve(ctx, url)
	if err != nil {
		return err
	}

	if resolveJSON || viper.GetString("output_format") == "json" {
		data, err := json.MarshalIndent(endpoint, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	printHeader("Stream Resolution", url)
	printKeyValue("Endpoint", endpoint.URL)
	printKeyValue("Type", string(endpoint.Type))
	if endpoint.Username != "" {
		printKeyValue("Username", endpoint.Username)
	}
	printSuccess("Resolved")
	return nil
}
