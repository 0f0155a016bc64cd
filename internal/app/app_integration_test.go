package app

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/glabrego/reeder/internal/item"
	"github.com/glabrego/reeder/internal/message"
	"github.com/glabrego/reeder/internal/msglist"
	"github.com/glabrego/reeder/internal/storage"
)

func newStoredService(t *testing.T) (*Service, *storage.Repository) {
	t.Helper()
	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "reeder-integration.db"))
	if err != nil {
		t.Fatalf("NewRepository returned error: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := repo.Init(ctx); err != nil {
		t.Fatalf("Init returned error: %v", err)
	}
	return NewService(repo), repo
}

func TestIntegration_ImportReplayAndExport(t *testing.T) {
	svc, _ := newStoredService(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		report, err := svc.Import(ctx, strings.NewReader(payload), nil)
		if err != nil {
			t.Fatalf("Import #%d returned error: %v", i+1, err)
		}
		if !report.OK {
			t.Fatalf("Import #%d was partial: %+v", i+1, report.Failed)
		}
	}

	root, err := svc.Tree(ctx)
	if err != nil {
		t.Fatalf("Tree returned error: %v", err)
	}
	if got := root.Count(item.KindCategory); got != 2 {
		t.Fatalf("replaying an import must not duplicate categories, got %d", got)
	}
	if got := root.Count(item.KindFeed); got != 6 {
		t.Fatalf("replaying an import appends feeds again, got %d", got)
	}

	runs, err := svc.ImportRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ImportRuns returned error: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 recorded runs, got %d", len(runs))
	}

	var buf bytes.Buffer
	if err := svc.Export(ctx, &buf); err != nil {
		t.Fatalf("Export returned error: %v", err)
	}
	if got := strings.Count(buf.String(), `xmlUrl="https://example.com/f1"`); got != 2 {
		t.Fatalf("expected both copies of F1 exported, got %d:\n%s", got, buf.String())
	}

	other, _ := newStoredService(t)
	report, err := other.Import(ctx, &buf, nil)
	if err != nil || !report.OK {
		t.Fatalf("re-import of export failed: err=%v report=%+v", err, report.Result)
	}
	if len(report.Added) != 8 {
		t.Fatalf("expected 2 categories and 6 feeds, got %d", len(report.Added))
	}
}

func TestIntegration_MessagesSearchAndCleanup(t *testing.T) {
	svc, _ := newStoredService(t)
	ctx := context.Background()

	feed, err := svc.AddFeed(ctx, 0, "Daily", "https://example.com/daily")
	if err != nil {
		t.Fatalf("AddFeed returned error: %v", err)
	}
	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	if err := svc.StoreMessages(ctx, []message.Message{
		{ID: 1, FeedID: feed.ID, Title: "Zebra crossing", Created: base, Read: true},
		{ID: 2, FeedID: feed.ID, Title: "apple harvest", Created: base.Add(time.Hour)},
		{ID: 3, FeedID: feed.ID, Title: "Apple pie", Created: base.Add(2 * time.Hour)},
	}); err != nil {
		t.Fatalf("StoreMessages returned error: %v", err)
	}

	view, err := svc.OpenMessages(ctx, ViewOptions{
		Filter:     msglist.Filter{Text: "apple", Column: message.ColumnTitle},
		SortColumn: message.ColumnTitle,
	})
	if err != nil {
		t.Fatalf("OpenMessages returned error: %v", err)
	}
	if view.Projection.RowCount() != 2 {
		t.Fatalf("expected 2 filtered messages, got %d", view.Projection.RowCount())
	}
	first, _ := view.Message(0)
	if first.ID != 2 || first.FeedTitle != "Daily" {
		t.Fatalf("expected lowercase apple first, got %+v", first)
	}

	removed, err := svc.Cleanup(ctx, storage.CleanupOptions{OlderThan: base.Add(30 * time.Minute), OnlyRead: true})
	if err != nil {
		t.Fatalf("Cleanup returned error: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected one message removed, got %d", removed)
	}

	hits, err := svc.Search(ctx, SearchRequest{Query: "*crossing", Column: message.ColumnTitle, Limit: msglist.Unbounded, Match: msglist.MatchOptions{Mode: msglist.MatchWildcard}})
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected cleaned message to be gone, got %+v", hits)
	}
}
