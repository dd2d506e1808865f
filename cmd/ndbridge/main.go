// Package main provides the ndbridge CLI, a tool for inspecting and
// exercising conversions between strided arrays and matrices.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/born-ml/ndbridge/internal/bridge"
	"github.com/born-ml/ndbridge/internal/config"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

const version = "v0.1.0-dev"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// command is one ndbridge subcommand.
type command struct {
	name    string
	summary string
	flags   func() *pflag.FlagSet
	run     func(env *env, args []string) error
}

// env carries what every subcommand needs.
type env struct {
	stdout io.Writer
	cfg    *config.Config
	logger *zap.Logger
}

func commands() []*command {
	return []*command{
		{name: "version", summary: "Show version", run: runVersion},
		analyzeCommand(),
		roundTripCommand(),
		stressCommand(),
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	var configPath string

	flagSet := pflag.NewFlagSet("ndbridge", pflag.ContinueOnError)
	flagSet.SetInterspersed(false)
	flagSet.SetOutput(io.Discard)
	flagSet.StringVar(&configPath, "config", "", "path to ndbridge.yaml (default: $"+config.EnvVar+")")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(stderr, flagSet)
			return nil
		}
		return fmt.Errorf("%w\n\nRun 'ndbridge --help' for usage.", err)
	}
	if help, _ := flagSet.GetBool("help"); help || flagSet.NArg() == 0 {
		printHelp(stderr, flagSet)
		return nil
	}

	name, rest := flagSet.Arg(0), flagSet.Args()[1:]
	var cmd *command
	for _, c := range commands() {
		if c.name == name {
			cmd = c
			break
		}
	}
	if cmd == nil {
		return fmt.Errorf("unknown command %q\n\nRun 'ndbridge --help' for usage.", name)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	bridge.SetLogger(logger)
	defer bridge.SetLogger(nil)

	if cmd.flags != nil {
		fs := cmd.flags()
		fs.SetOutput(io.Discard)
		if err := fs.Parse(rest); err != nil {
			if errors.Is(err, pflag.ErrHelp) {
				fmt.Fprintf(stderr, "Usage:\n  ndbridge %s [flags]\n\n%s\n\nFlags:\n", cmd.name, cmd.summary)
				fs.SetOutput(stderr)
				fs.PrintDefaults()
				return nil
			}
			return fmt.Errorf("%s: %w\n\nRun 'ndbridge %s --help' for usage.", cmd.name, err, cmd.name)
		}
		rest = fs.Args()
	}

	return cmd.run(&env{stdout: stdout, cfg: cfg, logger: logger}, rest)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func runVersion(e *env, _ []string) error {
	fmt.Fprintf(e.stdout, "ndbridge %s\n", version)
	return nil
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	var b strings.Builder
	for _, c := range commands() {
		fmt.Fprintf(&b, "  %-10s %s\n", c.name, c.summary)
	}
	fmt.Fprintf(w, `ndbridge shares buffers between strided arrays and matrices.

Usage:
  ndbridge [--config FILE] <command> [flags]

Commands:
%s
Flags:
`, b.String())
	flagSet.SetOutput(w)
	flagSet.PrintDefaults()
}
