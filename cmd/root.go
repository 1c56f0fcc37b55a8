package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	configFile   string
	verbose      bool
	logLevel     string
	outputFormat string
	configDir    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stream-session",
	Short: "Shoutcast/Icecast stream session engine",
	Long: `A session engine for Shoutcast v1 and Icecast internet radio streams.
It resolves user-supplied URLs (including PLS and M3U playlists) to concrete
stream endpoints, negotiates ICY metadata, demultiplexes stream titles from
the live audio byte stream, and drives a health-monitored session lifecycle
with bounded-retry reconnection.

Key features:
- PLS/M3U playlist resolution with reachability probing
- ICY metadata negotiation and in-band title demultiplexing
- Stall detection decoupled from the blocking read path
- Bounded, monotonically backed-off reconnection per session
- Prometheus metrics for session health and throughput`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initializeConfig(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "",
		"config directory (default is $HOME/.config/stream-session)")

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file (default is $HOME/.config/stream-session/stream-session.yaml)")

	// Output and logging flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"verbose output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level (debug, info, error)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table",
		"output format (json, table, yaml)")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("output_format", rootCmd.PersistentFlags().Lookup("output"))
	viper.BindPFlag("config_dir", rootCmd.PersistentFlags().Lookup("config-dir"))
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if configFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(configFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			os.Exit(1)
		}

		// Search config in home directory and /etc
		viper.AddConfigPath(home)
		viper.AddConfigPath(filepath.Join(home, ".config", "stream-session"))
		viper.AddConfigPath("/etc/stream-session")
		viper.AddConfigPath("./configs")
		viper.SetConfigName("stream-session")
		viper.SetConfigType("yaml")
	}

	// Environment variable support
	viper.SetEnvPrefix("STREAM_SESSION")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	// Set default values
	setDefaults()

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
		}
	}
}

// initializeConfig initializes configuration after flags are parsed
func initializeConfig(cmd *cobra.Command) error {
	// Bind all flags to viper
	return bindFlags(cmd, viper.GetViper())
}

// bindFlags binds each cobra flag to its associated viper configuration
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	var lastErr error

	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		// Environment variable name
		envVarSuffix := strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))

		// Apply the viper config value to the flag when the flag is not set and viper has a value
		if !f.Changed && v.IsSet(f.Name) {
			val := v.Get(f.Name)
			if err := cmd.Flags().Set(f.Name, fmt.Sprintf("%v", val)); err != nil {
				lastErr = err
			}
		}

		// Bind the flag to viper
		if err := v.BindPFlag(f.Name, f); err != nil {
			lastErr = err
		}

		// Bind to environment variable
		if err := v.BindEnv(f.Name, "STREAM_SESSION_"+envVarSuffix); err != nil {
			lastErr = err
		}
	})

	return lastErr
}

// setDefaults sets default configuration values
func setDefaults() {
	// Application defaults
	viper.SetDefault("verbose", false)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("output_format", "table")

	// Directory defaults
	home, _ := os.UserHomeDir()
	viper.SetDefault("config_dir", filepath.Join(home, ".config", "stream-session"))

	// Resolver defaults
	viper.SetDefault("resolver.user_agent", "StreamSession/1.0")
	viper.SetDefault("resolver.fetch_timeout", "10s")
	viper.SetDefault("resolver.probe_timeout", "5s")

	// Stream negotiation defaults
	viper.SetDefault("stream.connection_timeout", "10s")
	viper.SetDefault("stream.response_timeout", "10s")
	viper.SetDefault("stream.buffer_size", 8192)
	viper.SetDefault("stream.user_agent", "StreamSession/1.0")
	viper.SetDefault("stream.request_icy_meta", true)

	// Health monitoring defaults
	viper.SetDefault("health.degraded_after", "5s")
	viper.SetDefault("health.stalled_after", "20s")
	viper.SetDefault("health.healthy_reset", "30s")
	viper.SetDefault("health.check_interval", "1s")

	// Session lifecycle defaults
	viper.SetDefault("session.max_retries", 3)
	viper.SetDefault("session.min_backoff", "5s")
	viper.SetDefault("session.max_backoff", "20s")
	viper.SetDefault("session.read_buffer_size", 8192)
	viper.SetDefault("session.event_buffer_size", 16)

	// Metrics defaults
	viper.SetDefault("metrics.enabled", false)
	viper.SetDefault("metrics.listen", "127.0.0.1:9090")
}

// GetConfig returns the current viper instance
func GetConfig() *viper.Viper {
	return viper.GetViper()
}
