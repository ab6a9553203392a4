// Package commands provides the CLI commands for the hackwave client.
package commands

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/hackwave/hackwave/internal/config"
	"github.com/hackwave/hackwave/internal/logging"
	"github.com/hackwave/hackwave/internal/session"
)

var (
	// Version information set at build time
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Global flags
var (
	logLevel       string
	baseURL        string
	bootstrapToken string
)

var rootCmd = &cobra.Command{
	Use:   "hackwave",
	Short: "Hackwave - hackathon platform client",
	Long: `Hackwave is the command-line client for the hackwave hackathon
platform: sign in, inspect your account, and tail live platform events.`,
	Version: Version,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (DEBUG|INFO|WARN|ERROR)")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Platform API origin (overrides config)")
	rootCmd.PersistentFlags().StringVar(&bootstrapToken, "bootstrap-token", "", "One-time bootstrap credential to adopt on start")

	rootCmd.SetVersionTemplate(fmt.Sprintf("hackwave %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(accountCmd)
	rootCmd.AddCommand(listenCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// newController loads configuration and wires a session controller for one
// command invocation.
func newController() (*session.Controller, error) {
	// A .env next to the invocation is a development convenience.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	logging.Setup(level, true, os.Stderr)

	return session.NewController(cfg)
}

// bootstrapFromEnv returns the one-time bootstrap credential, flag first.
func bootstrapFromEnv() string {
	if bootstrapToken != "" {
		return bootstrapToken
	}
	return os.Getenv("HACKWAVE_BOOTSTRAP_TOKEN")
}
