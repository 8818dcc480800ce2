package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/ideshell/internal/app"
	"github.com/dshills/ideshell/internal/config"
	"github.com/dshills/ideshell/internal/workbench/render"
)

type rootFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:   "ideshell",
		Short: "Plugin host for a web IDE workbench",
		Long: `ideshell hosts IDE plugins against a workbench model: an activity bar,
sidebar, editor tabs, status bar and notifications.

Two hosts run side by side. The primary host loads native and Lua plugins
through the capability API; the Obsidian host runs plugins written against
the Obsidian plugin surface.

Quick Start:
  ideshell run              # enable plugins and draw the workbench
  ideshell plugins          # list plugins and their status
  ideshell screen           # print the workbench once`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", config.DefaultPath(), "Path to configuration file")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	root.AddCommand(
		newRunCmd(flags),
		newPluginsCmd(flags),
		newScreenCmd(flags),
		newVersionCmd(),
	)
	return root
}

// boot loads the config and builds the application with every plugin
// enabled that the config allows. Load failures are reported but not fatal.
func boot(ctx context.Context, flags *rootFlags, opts app.Options, out io.Writer, adjust func(*config.Config)) (*app.Application, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if adjust != nil {
		adjust(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		lc := app.DefaultLoggerConfig()
		lc.Level = app.ParseLogLevel(cfg.Log.Level)
		lc.Output = out
		opts.Logger = app.NewLogger(lc)
	}
	opts.ConfigPath = flags.configPath

	application, err := app.New(cfg, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize: %w", err)
	}
	// Failures are already logged and shown as notifications.
	_ = application.EnableAll(ctx)
	return application, nil
}

func newRunCmd(flags *rootFlags) *cobra.Command {
	var (
		noWatch  bool
		httpAddr string
		headless bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Enable plugins and run until interrupted",
		Long: `Enable every allowed plugin, then draw the workbench in the terminal and
serve the inspection endpoint when configured. The config file is watched and
plugin lists are re-applied when it changes.

Keys:
  1-9        click the nth activity-bar item
  Ctrl-C/Q   quit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// Terminal rendering owns stdout, so logs go to stderr.
			application, err := boot(ctx, flags, app.Options{Watch: !noWatch}, cmd.ErrOrStderr(), func(cfg *config.Config) {
				if httpAddr != "" {
					cfg.UI.HTTPAddr = httpAddr
				}
				cfg.UI.Render = !headless
			})
			if err != nil {
				return err
			}
			defer func() {
				if err := application.Shutdown(context.Background()); err != nil {
					application.Logger().Warn("shutdown: %v", err)
				}
			}()
			return application.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Do not watch the config file")
	cmd.Flags().StringVar(&httpAddr, "http", "", "Serve the inspection endpoint on this address")
	cmd.Flags().BoolVar(&headless, "headless", false, "Do not draw the terminal workbench")
	return cmd
}

func newPluginsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "plugins",
		Short: "List plugins and their status",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := boot(cmd.Context(), flags, app.Options{}, cmd.ErrOrStderr(), nil)
			if err != nil {
				return err
			}
			defer application.Shutdown(context.Background())
			return printPlugins(cmd.OutOrStdout(), application.Plugins())
		},
	}
}

func printPlugins(w io.Writer, infos []app.PluginInfo) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tHOST\tVERSION\tSTATUS\tERROR")
	for _, p := range infos {
		errText := ""
		if p.Err != nil {
			errText = p.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Host, p.Version, p.Status, errText)
	}
	return tw.Flush()
}

func newScreenCmd(flags *rootFlags) *cobra.Command {
	var width, height int
	cmd := &cobra.Command{
		Use:   "screen",
		Short: "Print the workbench once as text",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := boot(cmd.Context(), flags, app.Options{}, cmd.ErrOrStderr(), func(cfg *config.Config) {
				// Entries must be in place before the single snapshot.
				cfg.Plugins.StartupDelay = config.Duration{}
			})
			if err != nil {
				return err
			}
			defer application.Shutdown(context.Background())

			cfg := application.Config()
			if width <= 0 {
				width = cfg.UI.Width
			}
			if height <= 0 {
				height = cfg.UI.Height
			}
			text, err := render.Snapshot(application.Workbench(), width, height)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
			return err
		},
	}
	cmd.Flags().IntVar(&width, "width", 0, "Screen width (default from config)")
	cmd.Flags().IntVar(&height, "height", 0, "Screen height (default from config)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ideshell %s\n", version)
			fmt.Fprintf(out, "Commit: %s\n", commit)
			fmt.Fprintf(out, "Built: %s\n", date)
		},
	}
}
