package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/glabrego/reeder/internal/actions"
	"github.com/glabrego/reeder/internal/app"
	"github.com/glabrego/reeder/internal/item"
	"github.com/glabrego/reeder/internal/lock"
	"github.com/glabrego/reeder/internal/theme"
)

// importModel shows the lock state while an import command runs and quits
// with the import result.
type importModel struct {
	theme   theme.Theme
	mutex   *lock.Mutex
	watcher *actions.LockWatcher
	run     tea.Cmd
	path    string

	locked bool
	holder string
	result tea.Msg
}

func newImportModel(ctx context.Context, th theme.Theme, svc *app.Service, path string, selection func(*item.Node) bool) *importModel {
	return &importModel{
		theme:   th,
		mutex:   svc.Lock(),
		watcher: actions.WatchLock(svc.Lock()),
		run:     actions.ImportCmd(ctx, svc, path, selection),
		path:    path,
	}
}

func (m *importModel) Init() tea.Cmd {
	return tea.Batch(m.watcher.Next(), m.run)
}

func (m *importModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case actions.LockChangedMsg:
		m.locked = msg.Locked
		// The holder may already be gone; keep the last one seen.
		if holder, ok := m.mutex.Holder(); msg.Locked && ok {
			m.holder = holder
		}
		return m, m.watcher.Next()
	case actions.ImportSuccessMsg, actions.ImportErrorMsg:
		m.result = msg
		m.locked = false
		m.watcher.Close()
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.watcher.Close()
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *importModel) View() string {
	var b strings.Builder
	b.WriteString(m.theme.Section.Render("Importing " + m.path))
	b.WriteString("\n")
	b.WriteString(m.theme.Meta("Lock", m.theme.LockState(m.locked, m.holder)))
	b.WriteString("\n")
	switch res := m.result.(type) {
	case actions.ImportSuccessMsg:
		b.WriteString(m.theme.ImportSummary(res.Report.OK, res.Report.Message))
		b.WriteString("\n")
	case actions.ImportErrorMsg:
		b.WriteString(m.theme.StateWarn.Render(res.Err.Error()))
		b.WriteString("\n")
	}
	return b.String()
}

func runImportProgress(ctx context.Context, cmd *cobra.Command, a *App, svc *app.Service, path string, selection func(*item.Node) bool) (tea.Msg, error) {
	m := newImportModel(ctx, a.theme, svc, path, selection)
	p := tea.NewProgram(m,
		tea.WithContext(ctx),
		tea.WithInput(nil),
		tea.WithOutput(cmd.ErrOrStderr()),
	)
	if _, err := p.Run(); err != nil {
		m.watcher.Close()
		return nil, fmt.Errorf("run import progress: %w", err)
	}
	if m.result == nil {
		return nil, errors.New("import interrupted")
	}
	return m.result, nil
}
