package actions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/glabrego/reeder/internal/app"
	"github.com/glabrego/reeder/internal/item"
	"github.com/glabrego/reeder/internal/lock"
	"github.com/glabrego/reeder/internal/storage"
)

type Service interface {
	Import(ctx context.Context, r io.Reader, selection func(*item.Node) bool) (app.ImportReport, error)
	Cleanup(ctx context.Context, opts storage.CleanupOptions) (int64, error)
	Search(ctx context.Context, req app.SearchRequest) ([]app.SearchHit, error)
}

type ImportSuccessMsg struct {
	Report   app.ImportReport
	Duration time.Duration
}

type ImportErrorMsg struct {
	Err      error
	Busy     bool
	Duration time.Duration
}

type CleanupSuccessMsg struct {
	Removed int64
	Status  string
}

type CleanupErrorMsg struct {
	Err  error
	Busy bool
}

type SearchSuccessMsg struct {
	Query string
	Hits  []app.SearchHit
}

type SearchErrorMsg struct {
	Err error
}

// LockChangedMsg reports that a critical operation started or finished.
type LockChangedMsg struct {
	Locked bool
}

// ImportCmd runs an import bounded by parent and a 60 second timeout.
func ImportCmd(parent context.Context, service Service, path string, selection func(*item.Node) bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, 60*time.Second)
		defer cancel()
		start := time.Now()

		f, err := os.Open(path)
		if err != nil {
			return ImportErrorMsg{Err: fmt.Errorf("open import file: %w", err), Duration: time.Since(start)}
		}
		defer f.Close()

		report, err := service.Import(ctx, f, selection)
		if err != nil {
			return ImportErrorMsg{Err: err, Busy: errors.Is(err, lock.ErrBusy), Duration: time.Since(start)}
		}
		return ImportSuccessMsg{Report: report, Duration: time.Since(start)}
	}
}

func CleanupCmd(parent context.Context, service Service, opts storage.CleanupOptions) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, 30*time.Second)
		defer cancel()

		removed, err := service.Cleanup(ctx, opts)
		if err != nil {
			return CleanupErrorMsg{Err: err, Busy: errors.Is(err, lock.ErrBusy)}
		}
		status := "Database is clean"
		if removed > 0 {
			status = fmt.Sprintf("Removed %d messages", removed)
		}
		return CleanupSuccessMsg{Removed: removed, Status: status}
	}
}

func SearchCmd(parent context.Context, service Service, req app.SearchRequest) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, 10*time.Second)
		defer cancel()

		hits, err := service.Search(ctx, req)
		if err != nil {
			return SearchErrorMsg{Err: err}
		}
		return SearchSuccessMsg{Query: req.Query, Hits: hits}
	}
}

// LockWatcher turns lock transitions into LockChangedMsg values.
type LockWatcher struct {
	ch     chan bool
	done   chan struct{}
	cancel func()
	once   sync.Once
}

func WatchLock(m *lock.Mutex) *LockWatcher {
	w := &LockWatcher{ch: make(chan bool, 16), done: make(chan struct{})}
	w.cancel = m.Subscribe(func(locked bool) {
		select {
		case w.ch <- locked:
		case <-w.done:
		}
	})
	return w
}

// Next waits for the following transition. It returns nil after Close.
func (w *LockWatcher) Next() tea.Cmd {
	return func() tea.Msg {
		select {
		case locked := <-w.ch:
			return LockChangedMsg{Locked: locked}
		case <-w.done:
			return nil
		}
	}
}

func (w *LockWatcher) Close() {
	w.once.Do(func() {
		w.cancel()
		close(w.done)
	})
}
