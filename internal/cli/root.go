// Package cli holds the querygate commands.
package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cortexai/querygate/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	cfg      *config.Config
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:           "querygate",
	Short:         "Admission and audit layer for natural-language warehouse queries",
	Long:          "Admits, reviews, runs and audits SQL produced by an untrusted generator.\nNo statement carrying a write or DDL keyword ever reaches the warehouse.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations["config"] == "none" {
			setupLogging("info", "production")
			return nil
		}
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		if logLevel != "" {
			c.LogLevel = logLevel
		}
		cfg = c
		setupLogging(cfg.LogLevel, cfg.Environment)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCode(err))
	}
}

// setupLogging sends every log line to stderr; stdout carries command
// output and, for the MCP server, the protocol stream.
func setupLogging(level, env string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if env == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
		return
	}
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// exitError carries a process exit code.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

func exitCode(err error) int {
	if e, ok := err.(*exitError); ok {
		return e.code
	}
	return 1
}
