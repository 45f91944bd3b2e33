package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/novelpress/internal"
	pkgconfig "github.com/starford/novelpress/pkg/config"
)

// loadConfig builds the configuration from defaults, the optional config
// file and flag/environment overrides, in that order.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cmd.IsSet("root") {
		cfg.Workspace.Root = cmd.String("root")
	}
	if cmd.IsSet("wp-url") {
		cfg.WordPress.URL = cmd.String("wp-url")
	}
	if cmd.IsSet("wp-user") {
		cfg.WordPress.User = cmd.String("wp-user")
	}
	if cmd.IsSet("wp-app-password") {
		cfg.WordPress.AppPassword = cmd.String("wp-app-password")
	}
	if cmd.IsSet("site-url") {
		cfg.Site.URL = cmd.String("site-url")
	}
	if cmd.IsSet("full-body") {
		cfg.Publish.FullBody = cmd.Bool("full-body")
	}
	if cmd.IsSet("port") {
		cfg.Preview.Port = int(cmd.Int("port"))
	}
	if cmd.IsSet("log-level") {
		if err := cfg.App.LogLevel.UnmarshalText([]byte(cmd.String("log-level"))); err != nil {
			return nil, fmt.Errorf("invalid log level: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func novelArg(cmd *cli.Command) string {
	if n := cmd.Args().First(); n != "" {
		return n
	}
	return internal.DefaultNovel
}

func options(cmd *cli.Command) ([]internal.Option, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return []internal.Option{internal.WithConfig(cfg)}, nil
}

func cleanCmd() *cli.Command {
	return &cli.Command{
		Name:      "clean",
		Usage:     "Strip authoring metadata from a novel's chapters in place",
		ArgsUsage: "[novel]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			opts, err := options(cmd)
			if err != nil {
				return err
			}
			return internal.RunClean(ctx, novelArg(cmd), opts...)
		},
	}
}

func syncCmd() *cli.Command {
	return &cli.Command{
		Name:      "sync",
		Usage:     "Regenerate site content and mirror image assets for a novel",
		ArgsUsage: "[novel]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "watch",
				Aliases: []string{"w"},
				Usage:   "Keep running and re-sync when chapters or assets change",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			opts, err := options(cmd)
			if err != nil {
				return err
			}
			return internal.RunSync(ctx, novelArg(cmd), cmd.Bool("watch"), opts...)
		},
	}
}

func publishCmd() *cli.Command {
	return &cli.Command{
		Name:      "publish",
		Usage:     "Create or update WordPress posts for chapter files",
		ArgsUsage: "<chapter.md>...",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Resolve slugs and titles without calling WordPress",
			},
			&cli.BoolFlag{
				Name:  "full-body",
				Usage: "Send the rendered chapter instead of the excerpt template",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() == 0 {
				return errors.New("publish: at least one chapter file is required")
			}
			opts, err := options(cmd)
			if err != nil {
				return err
			}
			return internal.RunPublish(ctx, cmd.Args().Slice(), cmd.Bool("dry-run"), opts...)
		},
	}
}

func statusCmd() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "List published chapters from the local ledger",
		ArgsUsage: "[novel]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			opts, err := options(cmd)
			if err != nil {
				return err
			}
			return internal.RunStatus(ctx, cmd.Args().First(), opts...)
		},
	}
}

func previewCmd() *cli.Command {
	return &cli.Command{
		Name:      "preview",
		Usage:     "Serve synced chapters locally with live reload",
		ArgsUsage: "[novel]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Preview server port",
				Sources: cli.EnvVars("NOVELPRESS_PREVIEW_PORT"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			opts, err := options(cmd)
			if err != nil {
				return err
			}
			return internal.RunPreview(ctx, novelArg(cmd), opts...)
		},
	}
}

func main() {
	cmd := &cli.Command{
		Name:  "novelpress",
		Usage: "Clean, sync and publish serialized novel chapters",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to an optional YAML config file",
				Value:   "novelpress.yaml",
				Sources: cli.EnvVars("NOVELPRESS_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "root",
				Usage:   "Workspace root holding projects/ and site/",
				Sources: cli.EnvVars("NOVELPRESS_ROOT"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Diagnostic log level (debug, info, warn, error)",
				Sources: cli.EnvVars("NOVELPRESS_LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "wp-url",
				Usage:   "WordPress site base URL",
				Sources: cli.EnvVars("WP_URL"),
			},
			&cli.StringFlag{
				Name:    "wp-user",
				Usage:   "WordPress user name",
				Sources: cli.EnvVars("WP_USER"),
			},
			&cli.StringFlag{
				Name:    "wp-app-password",
				Usage:   "WordPress application password",
				Sources: cli.EnvVars("WP_APP_PASSWORD"),
			},
			&cli.StringFlag{
				Name:    "site-url",
				Usage:   "Public novel site base URL",
				Sources: cli.EnvVars("NOVEL_SITE_URL"),
			},
		},
		Commands: []*cli.Command{
			cleanCmd(),
			syncCmd(),
			publishCmd(),
			statusCmd(),
			previewCmd(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
