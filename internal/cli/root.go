// Package cli wires the reeder commands onto the app service.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/glabrego/reeder/internal/app"
	"github.com/glabrego/reeder/internal/config"
	"github.com/glabrego/reeder/internal/logging"
	"github.com/glabrego/reeder/internal/storage"
	"github.com/glabrego/reeder/internal/theme"
)

type App struct {
	DBPath string
	JSON   bool

	cfg    config.Config
	logger *slog.Logger
	theme  theme.Theme
}

func NewRootCmd() *cobra.Command {
	a := &App{theme: theme.Default()}

	cmd := &cobra.Command{
		Use:   "reeder",
		Short: "Local feed tree manager with OPML import and message search",
		Example: strings.TrimSpace(`
  # Merge an OPML file into the local tree
  reeder import subscriptions.opml

  # Show the tree
  reeder tree

  # Find messages whose title starts with "go"
  reeder search go --column title --mode starts
`),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("config error: %w", err)
		}
		if a.DBPath != "" {
			cfg.DBPath = a.DBPath
		}
		logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: cmd.ErrOrStderr()})
		if err != nil {
			return err
		}
		a.cfg = cfg
		a.logger = logger
		return nil
	}

	cmd.PersistentFlags().StringVar(&a.DBPath, "db", "", "Path to database file (overrides REEDER_DB_PATH)")
	cmd.PersistentFlags().BoolVar(&a.JSON, "json", false, "Print JSON instead of text")

	cmd.AddCommand(newImportCmd(a))
	cmd.AddCommand(newExportCmd(a))
	cmd.AddCommand(newTreeCmd(a))
	cmd.AddCommand(newAddCategoryCmd(a))
	cmd.AddCommand(newAddFeedCmd(a))
	cmd.AddCommand(newDeleteCmd(a))
	cmd.AddCommand(newRunsCmd(a))
	cmd.AddCommand(newSearchCmd(a))
	cmd.AddCommand(newCleanupCmd(a))
	cmd.AddCommand(newAddMessagesCmd(a))
	cmd.AddCommand(newShowCmd(a))

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// withService opens the configured database for the duration of fn.
func (a *App) withService(cmd *cobra.Command, fn func(ctx context.Context, svc *app.Service) error) error {
	repo, err := storage.NewRepository(a.cfg.DBPath)
	if err != nil {
		return fmt.Errorf("storage init error: %w", err)
	}
	defer repo.Close()

	initCtx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()
	if err := repo.Init(initCtx); err != nil {
		return fmt.Errorf("storage schema error: %w", err)
	}

	tag, err := a.cfg.Language()
	if err != nil {
		return err
	}
	svc := app.NewService(repo, app.WithLogger(a.logger), app.WithLocale(tag))
	return fn(cmd.Context(), svc)
}

func (a *App) writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
