// Package main is the entry point for webedge.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/vyrodovalexey/webedge/internal/config"
	"github.com/vyrodovalexey/webedge/internal/observability"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags.
type cliFlags struct {
	showVersion bool
	validate    bool
	printSite   bool
}

func main() {
	settings, err := config.LoadSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read settings: %v\n", err)
		os.Exit(1)
	}

	flags, err := parseFlags(os.Args[1:], settings)
	if err != nil {
		os.Exit(2)
	}

	if flags.showVersion {
		printVersion(os.Stdout)
		return
	}

	if err := settings.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid settings: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(settings)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch {
	case flags.validate, flags.printSite:
		err = runOffline(ctx, settings, flags.printSite, os.Stdout, logger)
	default:
		err = run(ctx, settings, logger)
	}
	if err != nil {
		logger.Error("webedge failed", observability.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

// parseFlags parses command line flags. Flags override the settings read
// from the environment.
func parseFlags(args []string, s *config.Settings) (cliFlags, error) {
	var flags cliFlags

	fs := flag.NewFlagSet("webedge", flag.ContinueOnError)
	fs.StringVar(&s.ConfigPath, "config", s.ConfigPath, "Path to the site configuration file")
	fs.StringVar(&s.ListenAddr, "listen", s.ListenAddr, "HTTP listen address")
	fs.StringVar(&s.Upstream, "upstream", s.Upstream, "Upstream application URL")
	fs.StringVar(&s.LogLevel, "log-level", s.LogLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&s.LogFormat, "log-format", s.LogFormat, "Log format (json, console)")
	fs.BoolVar(&s.WatchConfig, "watch", s.WatchConfig, "Reload the site configuration on change")
	fs.BoolVar(&flags.validate, "validate", false, "Validate the site configuration and exit")
	fs.BoolVar(&flags.printSite, "print", false, "Print the composed site configuration and exit")
	fs.BoolVar(&flags.showVersion, "version", false, "Show version information")

	if err := fs.Parse(args); err != nil {
		return cliFlags{}, err
	}
	return flags, nil
}

// printVersion prints version information.
func printVersion(w io.Writer) {
	_, _ = fmt.Fprintf(w, "webedge version %s\n", version)
	_, _ = fmt.Fprintf(w, "  Build time: %s\n", buildTime)
	_, _ = fmt.Fprintf(w, "  Git commit: %s\n", gitCommit)
}

// initLogger initializes the global logger.
func initLogger(s *config.Settings) observability.Logger {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  s.LogLevel,
		Format: s.LogFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	observability.SetGlobalLogger(logger)
	return logger
}
