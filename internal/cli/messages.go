package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/glabrego/reeder/internal/actions"
	"github.com/glabrego/reeder/internal/app"
	"github.com/glabrego/reeder/internal/message"
	"github.com/glabrego/reeder/internal/msglist"
	"github.com/glabrego/reeder/internal/storage"
)

type messageJSON struct {
	ID        int64     `json:"id"`
	FeedID    int64     `json:"feed_id"`
	FeedTitle string    `json:"feed_title,omitempty"`
	Title     string    `json:"title"`
	URL       string    `json:"url,omitempty"`
	Author    string    `json:"author,omitempty"`
	Contents  string    `json:"contents,omitempty"`
	Created   time.Time `json:"created"`
	Read      bool      `json:"read"`
	Important bool      `json:"important"`
	Deleted   bool      `json:"deleted"`
}

func (m messageJSON) message() message.Message {
	return message.Message{
		ID:        m.ID,
		FeedID:    m.FeedID,
		Title:     m.Title,
		URL:       m.URL,
		Author:    m.Author,
		Contents:  m.Contents,
		Created:   m.Created,
		Read:      m.Read,
		Important: m.Important,
		Deleted:   m.Deleted,
	}
}

type hitJSON struct {
	Row     int         `json:"row"`
	Message messageJSON `json:"message"`
}

func toMessageJSON(m message.Message) messageJSON {
	return messageJSON{
		ID:        m.ID,
		FeedID:    m.FeedID,
		FeedTitle: m.FeedTitle,
		Title:     m.Title,
		URL:       m.URL,
		Author:    m.Author,
		Created:   m.Created,
		Read:      m.Read,
		Important: m.Important,
		Deleted:   m.Deleted,
	}
}

func newSearchCmd(a *App) *cobra.Command {
	var (
		mode           string
		column         string
		role           string
		from           int
		wrap           bool
		limit          int
		sortColumn     string
		desc           bool
		filter         string
		filterColumn   string
		feedIDs        []int64
		includeDeleted bool
	)

	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Find messages in the sorted, filtered message list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := buildSearchRequest(args[0], mode, column, role, sortColumn, filter, filterColumn, desc)
			if err != nil {
				return err
			}
			req.From = from
			req.Match.Wrap = wrap
			req.View.FeedIDs = feedIDs
			req.View.IncludeDeleted = includeDeleted
			req.Limit = a.cfg.SearchLimit
			if cmd.Flags().Changed("limit") {
				req.Limit = limit
			}

			return a.withService(cmd, func(ctx context.Context, svc *app.Service) error {
				switch msg := actions.SearchCmd(ctx, svc, req)().(type) {
				case actions.SearchErrorMsg:
					return msg.Err
				case actions.SearchSuccessMsg:
					return a.printHits(cmd.OutOrStdout(), msg.Hits)
				default:
					return fmt.Errorf("unexpected search result %T", msg)
				}
			})
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "contains", "Match mode: contains, exact, regexp, wildcard, starts, ends or fixed")
	cmd.Flags().StringVar(&column, "column", "title", "Column to search")
	cmd.Flags().StringVar(&role, "role", "display", "Cell representation to match: display or sort")
	cmd.Flags().IntVar(&from, "from", 0, "View row to start the scan at")
	cmd.Flags().BoolVar(&wrap, "wrap", false, "Continue from the first row after the last")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum hits, -1 for all (default from config)")
	cmd.Flags().StringVar(&sortColumn, "sort", "", "Sort the list by this column before searching")
	cmd.Flags().BoolVar(&desc, "desc", false, "Sort descending")
	cmd.Flags().StringVar(&filter, "filter", "", "Only keep messages containing this text")
	cmd.Flags().StringVar(&filterColumn, "filter-column", "any", "Column the filter text is tested against")
	cmd.Flags().Int64SliceVar(&feedIDs, "feed", nil, "Restrict to these feed ids")
	cmd.Flags().BoolVar(&includeDeleted, "include-deleted", false, "Include messages in the recycle bin")
	return cmd
}

func buildSearchRequest(query, mode, column, role, sortColumn, filter, filterColumn string, desc bool) (app.SearchRequest, error) {
	req := app.SearchRequest{Query: query}

	m, err := msglist.ParseMatchMode(mode)
	if err != nil {
		return req, err
	}
	req.Match.Mode = m

	switch strings.ToLower(strings.TrimSpace(role)) {
	case "", "display":
		req.Match.Role = msglist.RoleDisplay
	case "sort":
		req.Match.Role = msglist.RoleSort
	default:
		return req, fmt.Errorf("unknown role: %s", role)
	}

	col, err := message.ParseColumn(column)
	if err != nil {
		return req, err
	}
	if col == msglist.AnyColumn {
		return req, errors.New("search needs a single column")
	}
	req.Column = col

	req.View.SortColumn = msglist.Unsorted
	if sortColumn != "" {
		sc, err := message.ParseColumn(sortColumn)
		if err != nil {
			return req, err
		}
		req.View.SortColumn = sc
	}
	if desc {
		req.View.Order = msglist.Descending
	}

	fc, err := message.ParseColumn(filterColumn)
	if err != nil {
		return req, err
	}
	req.View.Filter = msglist.Filter{Text: filter, Column: fc, Role: msglist.RoleDisplay}
	return req, nil
}

func (a *App) printHits(w io.Writer, hits []app.SearchHit) error {
	if a.JSON {
		out := make([]hitJSON, 0, len(hits))
		for _, h := range hits {
			out = append(out, hitJSON{Row: h.Row, Message: toMessageJSON(h.Message)})
		}
		return a.writeJSON(w, out)
	}
	if len(hits) == 0 {
		fmt.Fprintln(w, "No matches")
		return nil
	}
	for _, h := range hits {
		created := ""
		if !h.Message.Created.IsZero() {
			created = h.Message.Created.Local().Format(message.CreatedLayout)
		}
		fmt.Fprintf(w, "%4d  %s  %s  %s\n",
			h.Row,
			a.theme.MetaLabel.Render(fmt.Sprintf("#%d", h.Message.ID)),
			a.theme.MetaValue.Render(created),
			a.theme.Match.Render(h.Message.Title))
	}
	fmt.Fprintln(w, a.theme.Count.Render(fmt.Sprintf("%d matches", len(hits))))
	return nil
}

func newCleanupCmd(a *App) *cobra.Command {
	var (
		olderThan    time.Duration
		onlyRead     bool
		purgeDeleted bool
		vacuum       bool
	)

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove old or deleted messages from the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan < 0 {
				return errors.New("--older-than must not be negative")
			}
			opts := storage.CleanupOptions{OnlyRead: onlyRead, PurgeDeleted: purgeDeleted, Vacuum: vacuum}
			if olderThan > 0 {
				opts.OlderThan = time.Now().Add(-olderThan)
			}
			return a.withService(cmd, func(ctx context.Context, svc *app.Service) error {
				switch msg := actions.CleanupCmd(ctx, svc, opts)().(type) {
				case actions.CleanupErrorMsg:
					return msg.Err
				case actions.CleanupSuccessMsg:
					if a.JSON {
						return a.writeJSON(cmd.OutOrStdout(), map[string]any{"removed": msg.Removed, "status": msg.Status})
					}
					fmt.Fprintln(cmd.OutOrStdout(), a.theme.StateIdle.Render(msg.Status))
					return nil
				default:
					return fmt.Errorf("unexpected cleanup result %T", msg)
				}
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Remove messages created longer ago than this, e.g. 720h")
	cmd.Flags().BoolVar(&onlyRead, "read-only", false, "Only remove read messages when applying --older-than")
	cmd.Flags().BoolVar(&purgeDeleted, "purge-deleted", false, "Remove messages in the recycle bin")
	cmd.Flags().BoolVar(&vacuum, "vacuum", false, "Shrink the database file afterwards")
	return cmd
}

func newAddMessagesCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "add-messages FILE",
		Short: "Store messages from a JSON array (- for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("read messages: %w", err)
			}

			var in []messageJSON
			if err := json.Unmarshal(data, &in); err != nil {
				return fmt.Errorf("decode messages: %w", err)
			}
			messages := make([]message.Message, 0, len(in))
			for _, m := range in {
				if m.ID <= 0 {
					return fmt.Errorf("message %q has no id", m.Title)
				}
				if m.FeedID == 0 {
					return fmt.Errorf("message %d has no feed_id", m.ID)
				}
				messages = append(messages, m.message())
			}

			return a.withService(cmd, func(ctx context.Context, svc *app.Service) error {
				if err := svc.StoreMessages(ctx, messages); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Stored %d messages\n", len(messages))
				return nil
			})
		},
	}
}

func (a *App) printDetail(w io.Writer, m message.Message) {
	fmt.Fprintln(w, a.theme.Title.Render(m.Title))
	fmt.Fprintln(w, strings.Repeat("=", max(1, len([]rune(m.Title)))))
	if m.FeedTitle != "" {
		fmt.Fprintln(w, a.theme.Meta("Feed", m.FeedTitle))
	}
	if !m.Created.IsZero() {
		fmt.Fprintln(w, a.theme.Meta("Date", m.Created.UTC().Format(time.RFC3339)))
	}
	if m.Author != "" {
		fmt.Fprintln(w, a.theme.Meta("Author", m.Author))
	}
	if m.URL != "" {
		fmt.Fprintln(w, a.theme.Meta("URL", m.URL))
	}
	fmt.Fprintln(w, a.theme.Meta("Read", yesNo(m.Read)))
	fmt.Fprintln(w, a.theme.Meta("Important", yesNo(m.Important)))
	if body := message.PlainText(m.Contents); body != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, body)
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func newShowCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Print one message as plain text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid message id %q", args[0])
			}
			return a.withService(cmd, func(ctx context.Context, svc *app.Service) error {
				view, err := svc.OpenMessages(ctx, app.ViewOptions{IncludeDeleted: true, SortColumn: msglist.Unsorted})
				if err != nil {
					return err
				}
				for _, m := range view.Table.Messages() {
					if m.ID != id {
						continue
					}
					if a.JSON {
						out := toMessageJSON(m)
						out.Contents = message.PlainText(m.Contents)
						return a.writeJSON(cmd.OutOrStdout(), out)
					}
					a.printDetail(cmd.OutOrStdout(), m)
					return nil
				}
				return fmt.Errorf("message %d: %w", id, storage.ErrNotFound)
			})
		},
	}
}
