package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/glabrego/reeder/internal/actions"
	"github.com/glabrego/reeder/internal/app"
	"github.com/glabrego/reeder/internal/item"
)

type failureJSON struct {
	Kind  item.Kind `json:"kind"`
	Title string    `json:"title"`
	Error string    `json:"error"`
}

type importJSON struct {
	RunID    string        `json:"run_id"`
	OK       bool          `json:"ok"`
	Message  string        `json:"message"`
	Added    int           `json:"added"`
	Failed   []failureJSON `json:"failed"`
	Duration string        `json:"duration"`
}

func newImportCmd(a *App) *cobra.Command {
	var only []string
	var progress bool

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Merge an OPML file into the local feed tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var selection func(*item.Node) bool
			if len(only) > 0 {
				selection = app.OnlyTopLevel(only...)
			}
			return a.withService(cmd, func(ctx context.Context, svc *app.Service) error {
				var msg tea.Msg
				if progress {
					m, err := runImportProgress(ctx, cmd, a, svc, args[0], selection)
					if err != nil {
						return err
					}
					msg = m
				} else {
					msg = actions.ImportCmd(ctx, svc, args[0], selection)()
				}

				switch msg := msg.(type) {
				case actions.ImportErrorMsg:
					return msg.Err
				case actions.ImportSuccessMsg:
					return a.printImport(cmd.OutOrStdout(), msg)
				default:
					return fmt.Errorf("unexpected import result %T", msg)
				}
			})
		},
	}
	cmd.Flags().StringSliceVar(&only, "only", nil, "Import only the named top-level outlines")
	cmd.Flags().BoolVar(&progress, "progress", false, "Show lock state while importing")
	return cmd
}

func (a *App) printImport(w io.Writer, msg actions.ImportSuccessMsg) error {
	report := msg.Report
	failed := make([]failureJSON, 0, len(report.Failed))
	for _, f := range report.Failed {
		failed = append(failed, failureJSON{Kind: f.Source.Kind, Title: f.Source.Title, Error: f.Err.Error()})
	}
	if a.JSON {
		return a.writeJSON(w, importJSON{
			RunID:    report.RunID,
			OK:       report.OK,
			Message:  report.Message,
			Added:    len(report.Added),
			Failed:   failed,
			Duration: msg.Duration.Round(time.Millisecond).String(),
		})
	}

	fmt.Fprintln(w, a.theme.ImportSummary(report.OK, report.Message))
	fmt.Fprintln(w, a.theme.Meta("Run", report.RunID))
	fmt.Fprintln(w, a.theme.Meta("Added", strconv.Itoa(len(report.Added))))
	fmt.Fprintln(w, a.theme.Meta("Failed", strconv.Itoa(len(failed))))
	for _, f := range failed {
		fmt.Fprintf(w, "  - %s %q: %s\n", f.Kind, f.Title, f.Error)
	}
	return nil
}

func newExportCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "export FILE",
		Short: "Write the local feed tree as OPML (- for stdout)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, func(ctx context.Context, svc *app.Service) error {
				if args[0] == "-" {
					return svc.Export(ctx, cmd.OutOrStdout())
				}
				f, err := os.Create(args[0])
				if err != nil {
					return fmt.Errorf("create export file: %w", err)
				}
				if err := svc.Export(ctx, f); err != nil {
					_ = f.Close()
					return err
				}
				return f.Close()
			})
		},
	}
}

type nodeJSON struct {
	ID          int64      `json:"id"`
	Kind        item.Kind  `json:"kind"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	URL         string     `json:"url,omitempty"`
	Children    []nodeJSON `json:"children,omitempty"`
}

func toNodeJSON(n *item.Node, showBin bool) nodeJSON {
	out := nodeJSON{ID: n.ID, Kind: n.Kind, Title: n.Title, Description: n.Description, URL: n.URL}
	for _, child := range n.Children {
		if !showBin && child.Kind == item.KindRecycleBin {
			continue
		}
		out.Children = append(out.Children, toNodeJSON(child, showBin))
	}
	return out
}

func newTreeCmd(a *App) *cobra.Command {
	var showBin bool
	var storeOrder bool

	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Show the local feed tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, func(ctx context.Context, svc *app.Service) error {
				root, err := svc.Tree(ctx)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if a.JSON {
					return a.writeJSON(w, toNodeJSON(root, showBin))
				}

				fmt.Fprintln(w, a.theme.Title.Render(root.Title))
				rows := item.BuildRows(root, item.BuildOptions{Sorted: !storeOrder, HideBin: !showBin})
				for _, row := range rows {
					line := a.theme.TreeLabel(row)
					if row.Kind != item.KindRecycleBin {
						line += " " + a.theme.MetaLabel.Render(fmt.Sprintf("#%d", row.Node.ID))
					}
					fmt.Fprintln(w, line)
				}
				summary := fmt.Sprintf("%d categories, %d feeds", root.Count(item.KindCategory), root.Count(item.KindFeed))
				fmt.Fprintln(w, a.theme.Count.Render(summary))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&showBin, "show-bin", false, "Include the recycle bin")
	cmd.Flags().BoolVar(&storeOrder, "store-order", false, "Keep stored order instead of sorting by title")
	return cmd
}

func (a *App) printNode(w io.Writer, verb string, n *item.Node) error {
	if a.JSON {
		return a.writeJSON(w, toNodeJSON(n, false))
	}
	fmt.Fprintf(w, "%s %s %q (#%d)\n", verb, n.Kind, n.Title, n.ID)
	return nil
}

func newAddCategoryCmd(a *App) *cobra.Command {
	var parent int64
	var description string

	cmd := &cobra.Command{
		Use:   "add-category TITLE",
		Short: "Create a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, func(ctx context.Context, svc *app.Service) error {
				n, err := svc.AddCategory(ctx, parent, args[0], description)
				if err != nil {
					return err
				}
				return a.printNode(cmd.OutOrStdout(), "Added", n)
			})
		},
	}
	cmd.Flags().Int64Var(&parent, "parent", 0, "Parent category id (0 is the root)")
	cmd.Flags().StringVar(&description, "description", "", "Category description")
	return cmd
}

func newAddFeedCmd(a *App) *cobra.Command {
	var parent int64
	var title string

	cmd := &cobra.Command{
		Use:   "add-feed URL",
		Short: "Subscribe to a feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, func(ctx context.Context, svc *app.Service) error {
				n, err := svc.AddFeed(ctx, parent, title, args[0])
				if err != nil {
					return err
				}
				return a.printNode(cmd.OutOrStdout(), "Added", n)
			})
		},
	}
	cmd.Flags().Int64Var(&parent, "parent", 0, "Parent category id (0 is the root)")
	cmd.Flags().StringVar(&title, "title", "", "Feed title")
	return cmd
}

func newDeleteCmd(a *App) *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a category subtree or a feed with its messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid item id %q", args[0])
			}
			k, err := item.ParseKind(kind)
			if err != nil {
				return err
			}
			if k != item.KindCategory && k != item.KindFeed {
				return fmt.Errorf("cannot delete %s items", k)
			}
			return a.withService(cmd, func(ctx context.Context, svc *app.Service) error {
				if err := svc.DeleteItem(ctx, id, k); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s #%d\n", k, id)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "Item kind: category or feed")
	_ = cmd.MarkFlagRequired("kind")
	return cmd
}

type runJSON struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	OK         bool      `json:"ok"`
	Message    string    `json:"message"`
	Added      int       `json:"added"`
	Failed     int       `json:"failed"`
}

func newRunsCmd(a *App) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent imports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return errors.New("--limit must be positive")
			}
			return a.withService(cmd, func(ctx context.Context, svc *app.Service) error {
				runs, err := svc.ImportRuns(ctx, limit)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if a.JSON {
					out := make([]runJSON, 0, len(runs))
					for _, r := range runs {
						out = append(out, runJSON(r))
					}
					return a.writeJSON(w, out)
				}
				if len(runs) == 0 {
					fmt.Fprintln(w, "No imports yet")
					return nil
				}
				for _, r := range runs {
					fmt.Fprintf(w, "%s  %s  %s  added=%d failed=%d\n",
						r.StartedAt.Local().Format("2006-01-02 15:04:05"),
						r.ID,
						a.theme.ImportSummary(r.OK, r.Message),
						r.Added, r.Failed)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of runs to show")
	return cmd
}
