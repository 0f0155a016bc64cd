package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/glabrego/reeder/internal/item"
	"github.com/glabrego/reeder/internal/message"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "reeder.db")
	repo, err := NewRepository(dbPath)
	if err != nil {
		t.Fatalf("NewRepository returned error: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	if err := repo.Init(context.Background()); err != nil {
		t.Fatalf("Init returned error: %v", err)
	}
	return repo
}

func attachAndInsert(t *testing.T, repo *Repository, parent, node *item.Node) {
	t.Helper()
	if err := node.AttachTo(parent); err != nil {
		t.Fatalf("AttachTo returned error: %v", err)
	}
	if err := repo.InsertItem(context.Background(), parent, node); err != nil {
		t.Fatalf("InsertItem returned error: %v", err)
	}
}

func TestRepository_InsertAndLoadTree(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	root, err := repo.LoadTree(ctx)
	if err != nil {
		t.Fatalf("LoadTree returned error: %v", err)
	}
	if len(root.Children) != 1 || root.Children[0].Kind != item.KindRecycleBin {
		t.Fatalf("expected empty tree with recycle bin, got %d children", len(root.Children))
	}

	root = item.NewServiceRoot(RootTitle)
	news := item.NewCategory("News")
	attachAndInsert(t, repo, root, news)
	attachAndInsert(t, repo, news, item.NewFeed("Daily", "https://example.com/daily"))
	world := item.NewCategory("World")
	attachAndInsert(t, repo, news, world)
	attachAndInsert(t, repo, root, item.NewFeed("Loose", "https://example.com/loose"))
	if news.ID == 0 || world.ID == 0 {
		t.Fatalf("expected ids to be assigned, got news=%d world=%d", news.ID, world.ID)
	}

	loaded, err := repo.LoadTree(ctx)
	if err != nil {
		t.Fatalf("LoadTree returned error: %v", err)
	}
	if len(loaded.Children) != 3 {
		t.Fatalf("expected News, Loose and recycle bin, got %d children", len(loaded.Children))
	}
	gotNews := loaded.Children[0]
	if gotNews.Title != "News" || gotNews.ID != news.ID {
		t.Fatalf("unexpected first child: %v", gotNews)
	}
	if len(gotNews.Children) != 2 || gotNews.Children[0].Kind != item.KindCategory || gotNews.Children[1].Kind != item.KindFeed {
		t.Fatalf("expected categories before feeds under News, got %+v", gotNews.Children)
	}
	if loaded.Children[1].URL != "https://example.com/loose" {
		t.Fatalf("unexpected top-level feed: %+v", loaded.Children[1])
	}
	if loaded.Children[2].Kind != item.KindRecycleBin {
		t.Fatalf("expected recycle bin last, got %v", loaded.Children[2])
	}
}

func TestRepository_InsertItem_RejectsDuplicateCategory(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	attachAndInsert(t, repo, item.NewServiceRoot(RootTitle), item.NewCategory("News"))

	// A separate in-memory root does not know about the stored sibling.
	other := item.NewServiceRoot(RootTitle)
	dup := item.NewCategory("News")
	_ = dup.AttachTo(other)
	err := repo.InsertItem(ctx, other, dup)
	if !errors.Is(err, item.ErrDuplicateCategory) {
		t.Fatalf("expected ErrDuplicateCategory, got %v", err)
	}

	unsaved := item.NewCategory("Unsaved")
	if err := repo.InsertItem(ctx, unsaved, item.NewFeed("x", "https://example.com")); err == nil {
		t.Fatal("expected error for parent without id")
	}
	if err := repo.InsertItem(ctx, item.NewFeed("f", "u"), item.NewFeed("x", "u")); !errors.Is(err, item.ErrNotContainer) {
		t.Fatalf("expected ErrNotContainer, got %v", err)
	}
}

func TestRepository_DeleteItem_RemovesSubtreeAndMessages(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	root := item.NewServiceRoot(RootTitle)
	news := item.NewCategory("News")
	attachAndInsert(t, repo, root, news)
	world := item.NewCategory("World")
	attachAndInsert(t, repo, news, world)
	feed := item.NewFeed("Globe", "https://example.com/globe")
	attachAndInsert(t, repo, world, feed)
	keep := item.NewFeed("Keep", "https://example.com/keep")
	attachAndInsert(t, repo, root, keep)

	created := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	if err := repo.SaveMessages(ctx, []message.Message{
		{ID: 1, FeedID: feed.ID, Title: "gone", Created: created},
		{ID: 2, FeedID: keep.ID, Title: "kept", Created: created},
	}); err != nil {
		t.Fatalf("SaveMessages returned error: %v", err)
	}

	if err := repo.DeleteItem(ctx, news.ID, item.KindCategory); err != nil {
		t.Fatalf("DeleteItem returned error: %v", err)
	}

	loaded, err := repo.LoadTree(ctx)
	if err != nil {
		t.Fatalf("LoadTree returned error: %v", err)
	}
	if got := loaded.Count(item.KindCategory); got != 0 {
		t.Fatalf("expected categories removed, got %d", got)
	}
	if got := loaded.Count(item.KindFeed); got != 1 {
		t.Fatalf("expected one feed left, got %d", got)
	}
	messages, err := repo.ListMessages(ctx, MessageQuery{})
	if err != nil {
		t.Fatalf("ListMessages returned error: %v", err)
	}
	if len(messages) != 1 || messages[0].ID != 2 {
		t.Fatalf("expected only the kept message, got %+v", messages)
	}

	if err := repo.DeleteItem(ctx, news.ID, item.KindCategory); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	if err := repo.DeleteItem(ctx, 999, item.KindFeed); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown feed, got %v", err)
	}
}

func TestRepository_SaveAndListMessages(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	feed := item.NewFeed("Daily", "https://example.com/daily")
	attachAndInsert(t, repo, item.NewServiceRoot(RootTitle), feed)

	created := time.Date(2026, 2, 1, 10, 0, 0, 123, time.UTC)
	msgs := []message.Message{
		{ID: 20, FeedID: feed.ID, Title: "Second", Created: created.Add(time.Hour), Read: true},
		{ID: 10, FeedID: feed.ID, Title: "First", Author: "Ann", Contents: "<p>x</p>", Created: created, Important: true},
		{ID: 30, FeedID: 77, Title: "Binned", Created: created, Deleted: true},
	}
	if err := repo.SaveMessages(ctx, msgs); err != nil {
		t.Fatalf("SaveMessages returned error: %v", err)
	}

	listed, err := repo.ListMessages(ctx, MessageQuery{})
	if err != nil {
		t.Fatalf("ListMessages returned error: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected deleted message hidden, got %d", len(listed))
	}
	first := listed[0]
	if first.ID != 10 || first.FeedTitle != "Daily" || !first.Important || first.Read {
		t.Fatalf("unexpected first message: %+v", first)
	}
	if !first.Created.Equal(created) {
		t.Fatalf("expected created %v, got %v", created, first.Created)
	}

	all, err := repo.ListMessages(ctx, MessageQuery{IncludeDeleted: true, FeedIDs: []int64{77}})
	if err != nil {
		t.Fatalf("ListMessages returned error: %v", err)
	}
	if len(all) != 1 || all[0].FeedTitle != "" || !all[0].Deleted {
		t.Fatalf("unexpected filtered messages: %+v", all)
	}

	msgs[0].Title = "Updated"
	if err := repo.SaveMessages(ctx, msgs[:1]); err != nil {
		t.Fatalf("second SaveMessages returned error: %v", err)
	}
	listed, err = repo.ListMessages(ctx, MessageQuery{Limit: 1, FeedIDs: []int64{feed.ID, 5}})
	if err != nil {
		t.Fatalf("ListMessages returned error: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != 10 {
		t.Fatalf("expected limit to apply in id order, got %+v", listed)
	}
}

func TestRepository_CleanupMessages(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if err := repo.SaveMessages(ctx, []message.Message{
		{ID: 1, FeedID: 1, Title: "old read", Created: now.AddDate(0, 0, -30), Read: true},
		{ID: 2, FeedID: 1, Title: "old unread", Created: now.AddDate(0, 0, -30)},
		{ID: 3, FeedID: 1, Title: "fresh", Created: now},
		{ID: 4, FeedID: 1, Title: "binned", Created: now, Deleted: true},
	}); err != nil {
		t.Fatalf("SaveMessages returned error: %v", err)
	}

	removed, err := repo.CleanupMessages(ctx, CleanupOptions{OlderThan: now.AddDate(0, 0, -7), OnlyRead: true})
	if err != nil {
		t.Fatalf("CleanupMessages returned error: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected only the old read message removed, got %d", removed)
	}

	removed, err = repo.CleanupMessages(ctx, CleanupOptions{OlderThan: now.AddDate(0, 0, -7), PurgeDeleted: true, Vacuum: true})
	if err != nil {
		t.Fatalf("CleanupMessages returned error: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected old unread and binned messages removed, got %d", removed)
	}

	left, err := repo.ListMessages(ctx, MessageQuery{IncludeDeleted: true})
	if err != nil {
		t.Fatalf("ListMessages returned error: %v", err)
	}
	if len(left) != 1 || left[0].ID != 3 {
		t.Fatalf("unexpected messages left: %+v", left)
	}
}

func TestRepository_ImportRuns(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	started := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-a", "run-b"} {
		run := ImportRun{
			ID:         id,
			StartedAt:  started.Add(time.Duration(i) * time.Minute),
			FinishedAt: started.Add(time.Duration(i)*time.Minute + time.Second),
			OK:         i == 0,
			Message:    "done",
			Added:      3,
			Failed:     i,
		}
		if err := repo.RecordImportRun(ctx, run); err != nil {
			t.Fatalf("RecordImportRun returned error: %v", err)
		}
	}

	runs, err := repo.ListImportRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListImportRuns returned error: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-b" || runs[0].OK || runs[0].Failed != 1 {
		t.Fatalf("unexpected runs: %+v", runs)
	}
	if !runs[1].OK || runs[1].Added != 3 {
		t.Fatalf("unexpected first run: %+v", runs[1])
	}
}
