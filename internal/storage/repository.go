package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/glabrego/reeder/internal/item"
	"github.com/glabrego/reeder/internal/message"
)

var ErrNotFound = errors.New("item not found")

// RootTitle names the service root returned by LoadTree.
const RootTitle = "Local feeds"

// timeLayout is fixed width so stored timestamps order lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type Repository struct {
	db *sql.DB
}

func NewRepository(path string) (*Repository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Repository) Init(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS categories (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  parent_id INTEGER NOT NULL DEFAULT 0,
  title TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  icon TEXT NOT NULL DEFAULT '',
  UNIQUE(parent_id, title)
);
CREATE TABLE IF NOT EXISTS feeds (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  category_id INTEGER NOT NULL DEFAULT 0,
  title TEXT NOT NULL,
  url TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  icon TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS messages (
  id INTEGER PRIMARY KEY,
  feed_id INTEGER NOT NULL,
  title TEXT NOT NULL,
  url TEXT NOT NULL DEFAULT '',
  author TEXT NOT NULL DEFAULT '',
  contents TEXT NOT NULL DEFAULT '',
  created_at TEXT NOT NULL,
  is_read INTEGER NOT NULL DEFAULT 0,
  is_important INTEGER NOT NULL DEFAULT 0,
  is_deleted INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_messages_feed_id ON messages(feed_id);
CREATE TABLE IF NOT EXISTS import_runs (
  id TEXT PRIMARY KEY,
  started_at TEXT NOT NULL,
  finished_at TEXT NOT NULL,
  ok INTEGER NOT NULL,
  message TEXT NOT NULL,
  added INTEGER NOT NULL DEFAULT 0,
  failed INTEGER NOT NULL DEFAULT 0
);
`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// LoadTree assembles the stored categories and feeds under a service root.
// Categories come before feeds among siblings; the recycle bin is last.
func (r *Repository) LoadTree(ctx context.Context) (*item.Node, error) {
	root := item.NewServiceRoot(RootTitle)
	categories := map[int64]*item.Node{0: root}

	type pending struct {
		node     *item.Node
		parentID int64
	}
	var ordered []pending

	rows, err := r.db.QueryContext(ctx, `
SELECT id, parent_id, title, description, icon
FROM categories
ORDER BY id
`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	for rows.Next() {
		node := &item.Node{Kind: item.KindCategory}
		var parentID int64
		if err := rows.Scan(&node.ID, &parentID, &node.Title, &node.Description, &node.Icon); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories[node.ID] = node
		ordered = append(ordered, pending{node: node, parentID: parentID})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	rows.Close()

	for _, p := range ordered {
		parent, ok := categories[p.parentID]
		if !ok {
			return nil, fmt.Errorf("category %d references missing parent %d", p.node.ID, p.parentID)
		}
		if err := p.node.AttachTo(parent); err != nil {
			return nil, fmt.Errorf("attach category %d: %w", p.node.ID, err)
		}
	}

	rows, err = r.db.QueryContext(ctx, `
SELECT id, category_id, title, url, description, icon
FROM feeds
ORDER BY id
`)
	if err != nil {
		return nil, fmt.Errorf("query feeds: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		node := &item.Node{Kind: item.KindFeed}
		var categoryID int64
		if err := rows.Scan(&node.ID, &categoryID, &node.Title, &node.URL, &node.Description, &node.Icon); err != nil {
			return nil, fmt.Errorf("scan feed: %w", err)
		}
		parent, ok := categories[categoryID]
		if !ok {
			return nil, fmt.Errorf("feed %d references missing category %d", node.ID, categoryID)
		}
		if err := node.AttachTo(parent); err != nil {
			return nil, fmt.Errorf("attach feed %d: %w", node.ID, err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	if err := item.NewRecycleBin().AttachTo(root); err != nil {
		return nil, fmt.Errorf("attach recycle bin: %w", err)
	}
	return root, nil
}

// InsertItem persists node, already attached under parent, and sets its ID.
func (r *Repository) InsertItem(ctx context.Context, parent, node *item.Node) error {
	parentID, err := containerID(parent)
	if err != nil {
		return err
	}

	switch node.Kind {
	case item.KindCategory:
		var existing int64
		err := r.db.QueryRowContext(ctx, `SELECT id FROM categories WHERE parent_id = ? AND title = ?`, parentID, node.Title).Scan(&existing)
		switch {
		case err == nil:
			return fmt.Errorf("insert category %q: %w", node.Title, item.ErrDuplicateCategory)
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("lookup category %q: %w", node.Title, err)
		}
		res, err := r.db.ExecContext(ctx, `
INSERT INTO categories (parent_id, title, description, icon)
VALUES (?, ?, ?, ?)
`, parentID, node.Title, node.Description, node.Icon)
		if err != nil {
			return fmt.Errorf("insert category %q: %w", node.Title, err)
		}
		node.ID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("read category id: %w", err)
		}
	case item.KindFeed:
		res, err := r.db.ExecContext(ctx, `
INSERT INTO feeds (category_id, title, url, description, icon)
VALUES (?, ?, ?, ?, ?)
`, parentID, node.Title, node.URL, node.Description, node.Icon)
		if err != nil {
			return fmt.Errorf("insert feed %q: %w", node.Title, err)
		}
		node.ID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("read feed id: %w", err)
		}
	default:
		return fmt.Errorf("insert %s: %w", node.Kind, item.ErrUnsupportedKind)
	}
	return nil
}

func containerID(parent *item.Node) (int64, error) {
	switch {
	case parent == nil:
		return 0, fmt.Errorf("insert item: parent is nil")
	case parent.Kind == item.KindServiceRoot:
		return 0, nil
	case parent.Kind == item.KindCategory && parent.ID > 0:
		return parent.ID, nil
	case parent.Kind == item.KindCategory:
		return 0, fmt.Errorf("insert item: parent category %q is not stored", parent.Title)
	}
	return 0, fmt.Errorf("insert item under %s: %w", parent.Kind, item.ErrNotContainer)
}

// DeleteItem removes a category with its whole subtree, or a single feed,
// together with their messages.
func (r *Repository) DeleteItem(ctx context.Context, id int64, kind item.Kind) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	switch kind {
	case item.KindCategory:
		const subtree = `
WITH RECURSIVE sub(id) AS (
  SELECT id FROM categories WHERE id = ?
  UNION ALL
  SELECT c.id FROM categories c JOIN sub ON c.parent_id = sub.id
)`
		if _, err := tx.ExecContext(ctx, subtree+`
DELETE FROM messages WHERE feed_id IN (SELECT id FROM feeds WHERE category_id IN (SELECT id FROM sub))`, id); err != nil {
			return fmt.Errorf("delete category messages: %w", err)
		}
		if _, err := tx.ExecContext(ctx, subtree+`
DELETE FROM feeds WHERE category_id IN (SELECT id FROM sub)`, id); err != nil {
			return fmt.Errorf("delete category feeds: %w", err)
		}
		res, err := tx.ExecContext(ctx, subtree+`
DELETE FROM categories WHERE id IN (SELECT id FROM sub)`, id)
		if err != nil {
			return fmt.Errorf("delete categories: %w", err)
		}
		if err := requireAffected(res, kind, id); err != nil {
			return err
		}
	case item.KindFeed:
		if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE feed_id = ?`, id); err != nil {
			return fmt.Errorf("delete feed messages: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM feeds WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete feed: %w", err)
		}
		if err := requireAffected(res, kind, id); err != nil {
			return err
		}
	default:
		return fmt.Errorf("delete %s: %w", kind, item.ErrUnsupportedKind)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func requireAffected(res sql.Result, kind item.Kind, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete %s %d: %w", kind, id, ErrNotFound)
	}
	return nil
}

func (r *Repository) SaveMessages(ctx context.Context, messages []message.Message) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO messages (id, feed_id, title, url, author, contents, created_at, is_read, is_important, is_deleted)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  feed_id=excluded.feed_id,
  title=excluded.title,
  url=excluded.url,
  author=excluded.author,
  contents=excluded.contents,
  created_at=excluded.created_at,
  is_read=excluded.is_read,
  is_important=excluded.is_important,
  is_deleted=excluded.is_deleted
`)
	if err != nil {
		return fmt.Errorf("prepare save statement: %w", err)
	}
	defer stmt.Close()

	for _, m := range messages {
		_, err := stmt.ExecContext(
			ctx,
			m.ID,
			m.FeedID,
			m.Title,
			m.URL,
			m.Author,
			m.Contents,
			m.Created.UTC().Format(timeLayout),
			m.Read,
			m.Important,
			m.Deleted,
		)
		if err != nil {
			return fmt.Errorf("save message %d: %w", m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type MessageQuery struct {
	FeedIDs        []int64
	IncludeDeleted bool
	Limit          int
}

// ListMessages returns messages in storage order, which is the logical row
// order of a message table.
func (r *Repository) ListMessages(ctx context.Context, q MessageQuery) ([]message.Message, error) {
	var (
		where []string
		args  []any
	)
	if !q.IncludeDeleted {
		where = append(where, "m.is_deleted = 0")
	}
	if len(q.FeedIDs) > 0 {
		marks := strings.TrimSuffix(strings.Repeat("?,", len(q.FeedIDs)), ",")
		where = append(where, "m.feed_id IN ("+marks+")")
		for _, id := range q.FeedIDs {
			args = append(args, id)
		}
	}

	query := `
SELECT m.id, m.feed_id, COALESCE(f.title, ''), m.title, m.url, m.author, m.contents, m.created_at,
  m.is_read, m.is_important, m.is_deleted
FROM messages m
LEFT JOIN feeds f ON f.id = m.feed_id`
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	query += "\nORDER BY m.id"
	if q.Limit > 0 {
		query += "\nLIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []message.Message
	for rows.Next() {
		var m message.Message
		var createdAt string
		if err := rows.Scan(
			&m.ID,
			&m.FeedID,
			&m.FeedTitle,
			&m.Title,
			&m.URL,
			&m.Author,
			&m.Contents,
			&createdAt,
			&m.Read,
			&m.Important,
			&m.Deleted,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Created, err = time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse message created_at %q: %w", createdAt, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

type CleanupOptions struct {
	// OlderThan removes messages created before it. Zero disables the age rule.
	OlderThan time.Time
	// OnlyRead restricts the age rule to read messages.
	OnlyRead bool
	// PurgeDeleted removes messages already moved to the recycle bin.
	PurgeDeleted bool
	// Vacuum shrinks the database file afterwards.
	Vacuum bool
}

// CleanupMessages deletes messages per opts and returns how many were removed.
func (r *Repository) CleanupMessages(ctx context.Context, opts CleanupOptions) (int64, error) {
	var removed int64
	if !opts.OlderThan.IsZero() {
		res, err := r.db.ExecContext(ctx, `
DELETE FROM messages
WHERE created_at < ? AND (? = 0 OR is_read = 1)
`, opts.OlderThan.UTC().Format(timeLayout), opts.OnlyRead)
		if err != nil {
			return 0, fmt.Errorf("delete old messages: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		removed += n
	}
	if opts.PurgeDeleted {
		res, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE is_deleted = 1`)
		if err != nil {
			return removed, fmt.Errorf("purge deleted messages: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return removed, fmt.Errorf("rows affected: %w", err)
		}
		removed += n
	}
	if opts.Vacuum {
		if _, err := r.db.ExecContext(ctx, `VACUUM`); err != nil {
			return removed, fmt.Errorf("vacuum database: %w", err)
		}
	}
	return removed, nil
}

type ImportRun struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	OK         bool
	Message    string
	Added      int
	Failed     int
}

func (r *Repository) RecordImportRun(ctx context.Context, run ImportRun) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO import_runs (id, started_at, finished_at, ok, message, added, failed)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, run.ID, run.StartedAt.UTC().Format(timeLayout), run.FinishedAt.UTC().Format(timeLayout), run.OK, run.Message, run.Added, run.Failed)
	if err != nil {
		return fmt.Errorf("record import run %s: %w", run.ID, err)
	}
	return nil
}

// ListImportRuns returns recorded runs, newest first.
func (r *Repository) ListImportRuns(ctx context.Context, limit int) ([]ImportRun, error) {
	if limit < 1 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, started_at, finished_at, ok, message, added, failed
FROM import_runs
ORDER BY started_at DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query import runs: %w", err)
	}
	defer rows.Close()

	var out []ImportRun
	for rows.Next() {
		var run ImportRun
		var startedAt, finishedAt string
		if err := rows.Scan(&run.ID, &startedAt, &finishedAt, &run.OK, &run.Message, &run.Added, &run.Failed); err != nil {
			return nil, fmt.Errorf("scan import run: %w", err)
		}
		if run.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
			return nil, fmt.Errorf("parse import run started_at %q: %w", startedAt, err)
		}
		if run.FinishedAt, err = time.Parse(timeLayout, finishedAt); err != nil {
			return nil, fmt.Errorf("parse import run finished_at %q: %w", finishedAt, err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}
