package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"

	"github.com/glabrego/reeder/internal/feedurl"
	"github.com/glabrego/reeder/internal/item"
	"github.com/glabrego/reeder/internal/lock"
	"github.com/glabrego/reeder/internal/logging"
	"github.com/glabrego/reeder/internal/merge"
	"github.com/glabrego/reeder/internal/message"
	"github.com/glabrego/reeder/internal/msglist"
	"github.com/glabrego/reeder/internal/opml"
	"github.com/glabrego/reeder/internal/storage"
)

// Critical operation names, reported by lock.Mutex.Holder.
const (
	OpImport      = "import"
	OpAddCategory = "add category"
	OpAddFeed     = "add feed"
	OpDelete      = "delete item"
	OpCleanup     = "database cleanup"
	OpStore       = "feed update"
)

const exportTitle = "reeder export"

type Repository interface {
	LoadTree(ctx context.Context) (*item.Node, error)
	InsertItem(ctx context.Context, parent, node *item.Node) error
	DeleteItem(ctx context.Context, id int64, kind item.Kind) error
	SaveMessages(ctx context.Context, messages []message.Message) error
	ListMessages(ctx context.Context, q storage.MessageQuery) ([]message.Message, error)
	CleanupMessages(ctx context.Context, opts storage.CleanupOptions) (int64, error)
	RecordImportRun(ctx context.Context, run storage.ImportRun) error
	ListImportRuns(ctx context.Context, limit int) ([]storage.ImportRun, error)
}

type Service struct {
	repo   Repository
	lock   *lock.Mutex
	logger *slog.Logger
	locale language.Tag
	now    func() time.Time
	newID  func() string
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLock shares m with other holders of critical operations.
func WithLock(m *lock.Mutex) Option {
	return func(s *Service) {
		if m != nil {
			s.lock = m
		}
	}
}

func WithLocale(tag language.Tag) Option {
	return func(s *Service) {
		s.locale = tag
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		lock:   lock.New(),
		logger: logging.Discard(),
		locale: language.AmericanEnglish,
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Lock() *lock.Mutex {
	return s.lock
}

func (s *Service) acquire(op string) (*lock.Guard, error) {
	guard, err := s.lock.TryAcquire(op)
	if err != nil {
		holder, _ := s.lock.Holder()
		s.logger.Warn("critical operation refused", "op", op, "holder", holder)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.logger.Debug("critical operation started", "op", op)
	return guard, nil
}

// storeAttacher attaches in memory and persists the node. A node that could
// not be stored is detached again.
func (s *Service) storeAttacher(ctx context.Context) merge.Attacher {
	return merge.AttacherFunc(func(parent, child *item.Node) error {
		if err := child.AttachTo(parent); err != nil {
			return err
		}
		if err := s.repo.InsertItem(ctx, parent, child); err != nil {
			child.Detach()
			return fmt.Errorf("store %s %q: %w", child.Kind, child.Title, err)
		}
		return nil
	})
}

type ImportReport struct {
	RunID string
	merge.Result
}

// Import parses an OPML payload and merges the selected items into the stored
// tree. A nil selection imports everything. An item left out by selection
// also leaves out its descendants.
func (s *Service) Import(ctx context.Context, r io.Reader, selection func(*item.Node) bool) (ImportReport, error) {
	guard, err := s.acquire(OpImport)
	if err != nil {
		return ImportReport{}, err
	}
	defer guard.Release()

	started := s.now()
	payload, err := opml.Parse(r)
	if err != nil {
		return ImportReport{}, fmt.Errorf("parse import payload: %w", err)
	}

	var checked *item.CheckedSet
	if selection == nil {
		checked = item.CheckAll(payload)
	} else {
		checked = item.CheckWhere(payload, selection)
	}

	destination, err := s.repo.LoadTree(ctx)
	if err != nil {
		return ImportReport{}, fmt.Errorf("load feed tree: %w", err)
	}

	res := merge.Merge(payload, destination, checked, merge.WithAttacher(s.storeAttacher(ctx)))
	report := ImportReport{RunID: s.newID(), Result: res}
	for _, f := range res.Failed {
		s.logger.Warn("import item failed", "run_id", report.RunID, "kind", f.Source.Kind, "title", f.Source.Title, "err", f.Err)
	}

	run := storage.ImportRun{
		ID:         report.RunID,
		StartedAt:  started,
		FinishedAt: s.now(),
		OK:         res.OK,
		Message:    res.Message,
		Added:      len(res.Added),
		Failed:     len(res.Failed),
	}
	if err := s.repo.RecordImportRun(ctx, run); err != nil {
		return report, fmt.Errorf("record import run: %w", err)
	}
	s.logger.Info("import finished", "op", OpImport, "run_id", report.RunID, "ok", res.OK, "added", run.Added, "failed", run.Failed)
	return report, nil
}

// OnlyTopLevel selects the payload items under the named top-level entries.
func OnlyTopLevel(titles ...string) func(*item.Node) bool {
	keep := make(map[string]struct{}, len(titles))
	for _, t := range titles {
		keep[strings.TrimSpace(t)] = struct{}{}
	}
	return func(n *item.Node) bool {
		path := n.Path()
		if len(path) == 0 {
			return false
		}
		_, ok := keep[path[0]]
		return ok
	}
}

func (s *Service) AddCategory(ctx context.Context, parentID int64, title, description string) (*item.Node, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("category title is required")
	}
	guard, err := s.acquire(OpAddCategory)
	if err != nil {
		return nil, err
	}
	defer guard.Release()

	node := item.NewCategory(title)
	node.Description = strings.TrimSpace(description)
	if err := s.addItem(ctx, parentID, node); err != nil {
		return nil, err
	}
	s.logger.Info("category added", "op", OpAddCategory, "id", node.ID, "title", node.Title)
	return node, nil
}

// AddFeed stores a feed under the category parentID, or at the top level for
// parentID 0. The URL may use the feed: scheme. An empty title falls back to
// the URL.
func (s *Service) AddFeed(ctx context.Context, parentID int64, title, rawURL string) (*item.Node, error) {
	url, err := feedurl.Validate(rawURL)
	if err != nil {
		return nil, fmt.Errorf("validate feed url: %w", err)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = url
	}

	guard, err := s.acquire(OpAddFeed)
	if err != nil {
		return nil, err
	}
	defer guard.Release()

	node := item.NewFeed(title, url)
	if err := s.addItem(ctx, parentID, node); err != nil {
		return nil, err
	}
	s.logger.Info("feed added", "op", OpAddFeed, "id", node.ID, "url", node.URL)
	return node, nil
}

func (s *Service) addItem(ctx context.Context, parentID int64, node *item.Node) error {
	root, err := s.repo.LoadTree(ctx)
	if err != nil {
		return fmt.Errorf("load feed tree: %w", err)
	}
	parent := root
	if parentID != 0 {
		parent = root.Find(parentID, item.KindCategory)
		if parent == nil {
			return fmt.Errorf("find category %d: %w", parentID, storage.ErrNotFound)
		}
	}
	if err := s.storeAttacher(ctx).Attach(parent, node); err != nil {
		return fmt.Errorf("add %s %q: %w", node.Kind, node.Title, err)
	}
	return nil
}

func (s *Service) DeleteItem(ctx context.Context, id int64, kind item.Kind) error {
	guard, err := s.acquire(OpDelete)
	if err != nil {
		return err
	}
	defer guard.Release()

	if err := s.repo.DeleteItem(ctx, id, kind); err != nil {
		return fmt.Errorf("delete %s %d: %w", kind, id, err)
	}
	s.logger.Info("item deleted", "op", OpDelete, "id", id, "kind", kind)
	return nil
}

func (s *Service) Cleanup(ctx context.Context, opts storage.CleanupOptions) (int64, error) {
	guard, err := s.acquire(OpCleanup)
	if err != nil {
		return 0, err
	}
	defer guard.Release()

	removed, err := s.repo.CleanupMessages(ctx, opts)
	if err != nil {
		return removed, fmt.Errorf("cleanup messages: %w", err)
	}
	s.logger.Info("database cleaned", "op", OpCleanup, "removed", removed)
	return removed, nil
}

// StoreMessages saves fetched messages. It counts as a feed update and is
// refused while another critical operation runs.
func (s *Service) StoreMessages(ctx context.Context, messages []message.Message) error {
	guard, err := s.acquire(OpStore)
	if err != nil {
		return err
	}
	defer guard.Release()

	if err := s.repo.SaveMessages(ctx, messages); err != nil {
		return fmt.Errorf("save messages: %w", err)
	}
	s.logger.Info("messages stored", "op", OpStore, "count", len(messages))
	return nil
}

func (s *Service) Tree(ctx context.Context) (*item.Node, error) {
	root, err := s.repo.LoadTree(ctx)
	if err != nil {
		return nil, fmt.Errorf("load feed tree: %w", err)
	}
	return root, nil
}

func (s *Service) Export(ctx context.Context, w io.Writer) error {
	root, err := s.Tree(ctx)
	if err != nil {
		return err
	}
	if err := opml.Write(w, root, exportTitle, s.now()); err != nil {
		return fmt.Errorf("export feed tree: %w", err)
	}
	return nil
}

func (s *Service) ImportRuns(ctx context.Context, limit int) ([]storage.ImportRun, error) {
	runs, err := s.repo.ListImportRuns(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("load import runs: %w", err)
	}
	return runs, nil
}

type ViewOptions struct {
	FeedIDs        []int64
	IncludeDeleted bool
	Filter         msglist.Filter
	// SortColumn is a message column or msglist.Unsorted.
	SortColumn int
	Order      msglist.Order
}

// MessageView pairs the loaded messages with a projection over them.
type MessageView struct {
	Table      *message.Table
	Projection *msglist.Projection
}

// Message returns the message shown at view row v.
func (v *MessageView) Message(row int) (message.Message, bool) {
	l, ok := v.Projection.LogicalRow(row)
	if !ok {
		return message.Message{}, false
	}
	return v.Table.Message(l)
}

func (s *Service) OpenMessages(ctx context.Context, opts ViewOptions) (*MessageView, error) {
	messages, err := s.repo.ListMessages(ctx, storage.MessageQuery{FeedIDs: opts.FeedIDs, IncludeDeleted: opts.IncludeDeleted})
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	table := message.NewTable(messages)
	p := table.Projection(s.locale)
	p.SetFilter(opts.Filter)
	p.Sort(opts.SortColumn, opts.Order)
	return &MessageView{Table: table, Projection: p}, nil
}

type SearchRequest struct {
	View   ViewOptions
	Query  string
	Column int
	From   int
	// Limit caps the hits; msglist.Unbounded returns all of them.
	Limit int
	Match msglist.MatchOptions
}

type SearchHit struct {
	Row     int
	Message message.Message
}

func (s *Service) Search(ctx context.Context, req SearchRequest) ([]SearchHit, error) {
	if req.Column < 0 || req.Column >= message.ColumnCount {
		return nil, fmt.Errorf("search column %d out of range", req.Column)
	}
	var value any = req.Query
	if req.Match.Mode == msglist.MatchExactly {
		typed, err := message.ExactValue(req.Column, req.Match.Role, req.Query)
		if err != nil {
			return nil, fmt.Errorf("exact search: %w", err)
		}
		value = typed
	}
	view, err := s.OpenMessages(ctx, req.View)
	if err != nil {
		return nil, err
	}

	rows := view.Projection.Match(req.From, req.Column, value, req.Limit, req.Match)
	hits := make([]SearchHit, 0, len(rows))
	for _, row := range rows {
		m, ok := view.Message(row)
		if !ok {
			continue
		}
		hits = append(hits, SearchHit{Row: row, Message: m})
	}
	s.logger.Debug("search finished", "query", req.Query, "mode", req.Match.Mode, "hits", len(hits))
	return hits, nil
}
