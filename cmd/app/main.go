package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/attachsync/internal"
	pkgconfig "github.com/starford/attachsync/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	read, err := pkgconfig.LoadOptional(configPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if !read {
		slog.Warn("config file not found, using defaults", slog.String("path", configPath))
	}
	if v := cmd.String("vault"); v != "" {
		cfg.Vault.Path = v
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx,
		internal.WithConfig(cfg),
		internal.WithLogOutput(os.Stderr),
		internal.WithVersion(version),
	)
}

// oneShot runs fn against the engine and prints its result as JSON.
// Logs are discarded unless --verbose is set.
func oneShot(fn func(ctx context.Context, cmd *cli.Command, e *internal.Engine) (any, error)) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		// one-shot commands must not race the watcher for their own moves
		cfg.Vault.Watch = false
		logOut := io.Discard
		if cmd.Bool("verbose") {
			logOut = os.Stderr
		}
		return internal.Exec(ctx, func(ctx context.Context, e *internal.Engine) error {
			v, err := fn(ctx, cmd, e)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.Root().Writer)
			enc.SetIndent("", "  ")
			return enc.Encode(v)
		}, internal.WithConfig(cfg), internal.WithLogOutput(logOut))
	}
}

func resolve(_ context.Context, cmd *cli.Command, e *internal.Engine) (any, error) {
	if cmd.Args().Len() != 1 {
		return nil, fmt.Errorf("usage: resolve <note>")
	}
	return e.Service.Resolve(cmd.Args().First())
}

func renameNote(ctx context.Context, cmd *cli.Command, e *internal.Engine) (any, error) {
	if cmd.Args().Len() != 2 {
		return nil, fmt.Errorf("usage: rename <old> <new>")
	}
	out, err := e.Service.RenameNote(ctx, cmd.Args().Get(0), cmd.Args().Get(1))
	if err != nil {
		return nil, err
	}
	if out.Err != nil && !out.IsSkipped() {
		return nil, fmt.Errorf("note renamed, attachments not moved: %w", out.Err)
	}
	return out, nil
}

func verboseFlag() cli.Flag {
	return &cli.BoolFlag{Name: "verbose", Usage: "Log to stderr"}
}

func main() {
	root := &cli.Command{
		Name:    "attachsync",
		Usage:   "Keeps note attachments in template-derived folders and moves them along when notes are renamed",
		Version: version,
		Action:  serve,
		Writer:  os.Stdout,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "vault",
				Usage:   "Vault directory, overrides vault.path",
				Sources: cli.EnvVars("ATTACHSYNC_VAULT"),
			},
		},
	}

	root.Commands = []*cli.Command{
		{
			Name:   "serve",
			Usage:  "Run the HTTP API and the vault watcher",
			Action: serve,
		},
		{
			Name:   "mcp",
			Usage:  "Serve MCP tools on stdin/stdout",
			Action: serveMCP,
		},
		{
			Name:      "resolve",
			Usage:     "Print the attachment directory of a note",
			ArgsUsage: "<note>",
			Flags:     []cli.Flag{verboseFlag()},
			Action:    oneShot(resolve),
		},
		{
			Name:      "rename",
			Usage:     "Rename a note and move its attachments along",
			ArgsUsage: "<old> <new>",
			Flags:     []cli.Flag{verboseFlag()},
			Action:    oneShot(renameNote),
		},
	}

	if err := root.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
