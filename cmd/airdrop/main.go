package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ninja0404/solana-airdrop-api/pkg/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type globalOpts struct {
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &globalOpts{}

	root := &cobra.Command{
		Use:           "airdrop",
		Short:         "SPL token airdrop API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (trace|debug|info|warn|error|fatal|panic|disabled), overrides LOG_LEVEL")

	root.AddCommand(
		newServeCmd(opts),
		newConfigCmd(),
		newAccountCmd(opts),
		newKeygenCmd(),
	)

	return root
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the configuration read from the environment (secrets redacted)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			bz, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(bz))
			return nil
		},
	}
}

func newLogger(w io.Writer, opts *globalOpts, cfg config.ServiceConfig) zerolog.Logger {
	lvl := cfg.LogLevel
	if opts != nil && opts.logLevel != "" {
		lvl = opts.logLevel
	}
	level := parseLogLevel(lvl)
	// the global floor defaults to debug and would drop trace events
	if level < zerolog.GlobalLevel() {
		zerolog.SetGlobalLevel(level)
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// parseLogLevel accepts any zerolog level name and falls back to info.
func parseLogLevel(lvl string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(lvl))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}
