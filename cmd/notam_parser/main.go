// Command notam_parser extracts ATS-route closures from NOTAM files and
// manages the teaching store.
//
// Usage:
//
//	notam_parser extract [flags] [FILES...]
//	notam_parser teach --notam FILE --output LINES
//	notam_parser memory list|clear|export FILE|import FILE
//	notam_parser consume
//	notam_parser version
//
// Settings come from the environment (see internal/config) and, with
// --config, a YAML file.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"notam_parser/internal/app"
	"notam_parser/internal/config"
	"notam_parser/internal/logging"
)

const (
	Version   = "0.3.0"
	BuildTime = "dev"
	appName   = "notam_parser"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globals are the flags shared by every subcommand.
type globals struct {
	configPath string
	logLevel   string
	backend    string
}

func rootCmd() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Extract ATS-route closures from NOTAMs",
		Long: `notam_parser reads NOTAM text and prints one line per closed airway
segment in the form "AWY WP1-WP2 FLnnn-FLnnn".

NOTAMs the parser cannot read are tried against the teaching store and,
when configured, a completion service. Anything still unread is saved so
that the expected output can be taught later.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&g.backend, "memory", "", "Memory backend (mem, sqlite, postgres)")

	cmd.AddCommand(extractCmd(g))
	cmd.AddCommand(teachCmd(g))
	cmd.AddCommand(memoryCmd(g))
	cmd.AddCommand(consumeCmd(g))
	cmd.AddCommand(historyCmd(g))

	// Version command
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

// load reads the configuration and applies the global flag overrides.
func (g *globals) load() (*config.Config, *slog.Logger, error) {
	var cfg *config.Config
	var err error
	if g.configPath != "" {
		cfg, err = config.LoadFile(g.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, nil, err
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	if g.backend != "" {
		cfg.MemoryBackend = g.backend
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// open loads the configuration and opens the application.
func (g *globals) open(ctx context.Context, opts app.Options) (*app.App, error) {
	cfg, logger, err := g.load()
	if err != nil {
		return nil, err
	}
	return app.Open(ctx, cfg, logger, opts)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
