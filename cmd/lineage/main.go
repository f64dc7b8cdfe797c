// Command lineage runs a reference particle filter on top of the ancestry
// cache and works with the checkpoints it writes.
//
// Usage:
//
//	lineage run [--config file.yaml] [flags]
//	lineage inspect <checkpoint-dir>
//	lineage export <checkpoint-dir> [--out file] [--codec name] [--workers n]
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/hupe1980/lineage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage())
	}

	switch args[0] {
	case "run":
		return cmdRun(ctx, args[1:], stdout, stderr)
	case "inspect":
		return cmdInspect(ctx, args[1:], stdout, stderr)
	case "export":
		return cmdExport(ctx, args[1:], stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprintln(stdout, usage())
		return nil
	default:
		return fmt.Errorf("unknown command: %s\n%s", args[0], usage())
	}
}

func usage() string {
	return `usage: lineage <command> [flags]

Commands:
  run       Run the reference particle filter
  inspect   Print diagnostics of the latest checkpoint in a directory
  export    Write the trajectories of the latest checkpoint as JSON lines`
}

// parseRunFlags resolves the run configuration: defaults, then the YAML file
// named by --config, then explicitly set flags.
func parseRunFlags(args []string, stderr io.Writer) (Config, error) {
	var configPath string

	scratch := DefaultConfig()
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&configPath, "config", "c", "", "YAML config file")
	bindFlags(fs, &scratch)

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if fs.NArg() > 0 {
		return Config{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		return Config{}, err
	}

	overrides := flag.NewFlagSet("run", flag.ContinueOnError)
	bindFlags(overrides, &cfg)

	var setErr error
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "config" || setErr != nil {
			return
		}
		setErr = overrides.Set(f.Name, f.Value.String())
	})
	if setErr != nil {
		return Config{}, setErr
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

func newLogger(cfg LogConfig, w io.Writer) *lineage.Logger {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		return lineage.NewLogger(slog.NewJSONHandler(w, opts))
	}
	return lineage.NewLogger(slog.NewTextHandler(w, opts))
}
