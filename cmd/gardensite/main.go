package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/gardensite/internal"
	"github.com/starford/gardensite/internal/apperr"
	pkgconfig "github.com/starford/gardensite/pkg/config"
)

const defaultConfigPath = "config/config.yaml"

func newApp(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "gardensite",
		Usage:     "Audience-filtered builds and leak checks for a Markdown digital garden",
		Writer:    stdout,
		ErrWriter: stderr,

		// Exit codes are mapped in run.
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: defaultConfigPath,
				Value:       defaultConfigPath,
				Sources:     cli.EnvVars("GARDENSITE_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override app.log_level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			filterCommand(),
			auditCommand(),
			lintCommand(),
			linkcheckCommand(),
			catalogCommand(),
			buildCommand(),
			watchCommand(),
		},
	}
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	err := newApp(stdout, stderr).Run(ctx, args)
	if err == nil {
		return 0
	}
	if msg := apperr.Message(err); msg != "" {
		fmt.Fprintf(stderr, "[FAIL] %s\n", msg)
	}
	return apperr.ExitCodeOf(err)
}

// loadConfig reads the configuration named by --config. The default path
// may be absent, in which case built-in defaults apply.
func loadConfig(cmd *cli.Command) (*internal.Config, *slog.Logger, error) {
	cfg := internal.NewDefaultConfig()
	path := cmd.String("config")

	if cmd.IsSet("config") {
		if err := pkgconfig.Load(path, cfg); err != nil {
			return nil, nil, fmt.Errorf("load config: %w", err)
		}
	} else if _, err := pkgconfig.LoadIfExists(path, cfg); err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	if lvl := cmd.String("log-level"); lvl != "" {
		if err := cfg.App.LogLevel.UnmarshalText([]byte(lvl)); err != nil {
			return nil, nil, fmt.Errorf("invalid --log-level: %w", err)
		}
	}
	return cfg, internal.NewLogger(cfg.App, cmd.Root().ErrWriter), nil
}

func main() {
	os.Exit(run(context.Background(), os.Args, os.Stdout, os.Stderr))
}
