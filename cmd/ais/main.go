package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Zuo-Peng/ai-session-index/internal/config"
	"github.com/Zuo-Peng/ai-session-index/internal/logger"
)

var version = "dev"

// cfg is loaded once before any subcommand runs.
var cfg *config.Config

func main() {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:           "ais",
		Short:         "AI Session Index - browse and search Codex and Claude Code session logs",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg = loaded
			level := cfg.LogLevel
			if logLevel != "" {
				level = logLevel
			}
			logger.Configure(level, term.IsTerminal(int(os.Stderr.Fd())))
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides config")

	rootCmd.AddCommand(indexCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(projectsCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(openCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(doctorCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
