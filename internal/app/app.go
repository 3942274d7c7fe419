// Package app is the root Bubble Tea model of the terminal client.
package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/todopro/internal/keys"
	"github.com/nhle/todopro/internal/session"
	tasksync "github.com/nhle/todopro/internal/sync"
	"github.com/nhle/todopro/internal/taskstore"
	"github.com/nhle/todopro/internal/theme"
	"github.com/nhle/todopro/internal/ui"
	"github.com/nhle/todopro/internal/ui/account"
	"github.com/nhle/todopro/internal/ui/authform"
	"github.com/nhle/todopro/internal/ui/command"
	"github.com/nhle/todopro/internal/ui/detail"
	helpview "github.com/nhle/todopro/internal/ui/help"
	"github.com/nhle/todopro/internal/ui/stats"
	"github.com/nhle/todopro/internal/ui/taskform"
	"github.com/nhle/todopro/internal/ui/tasklist"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewLoading ViewState = iota
	ViewAuth
	ViewList
	ViewForm
	ViewDetail
	ViewAccount
	ViewStats
	ViewHelp
	ViewCommand
)

// Options wires the model to the client core.
type Options struct {
	Session *session.Manager
	Tasks   *taskstore.Store
	Logger  *zap.SugaredLogger
	Clock   func() time.Time
}

// Model is the root Bubble Tea model that manages view routing,
// layout and the session flows.
type Model struct {
	view      ViewState
	layout    ui.Layout
	session   *session.Manager
	tasks     *taskstore.Store
	logger    *zap.SugaredLogger
	now       func() time.Time
	keys      *keys.KeyMap
	events    *bridge
	toggles   *toggleGate
	ready     bool
	busy      bool
	notice    *notice
	noticeSeq int

	authView    authform.Model
	taskList    tasklist.Model
	formView    taskform.Model
	detailView  detail.Model
	accountView account.Model
	statsView   stats.Model
	helpView    helpview.Model
	commandView command.Model
}

// New creates the root model. Call Close after the program exits.
func New(opts Options) Model {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	k := keys.DefaultKeyMap()

	return Model{
		view:        ViewLoading,
		session:     opts.Session,
		tasks:       opts.Tasks,
		logger:      opts.Logger,
		now:         opts.Clock,
		keys:        k,
		events:      newBridge(opts.Tasks, opts.Session),
		toggles:     newToggleGate(toggleDebounce),
		authView:    authform.New(80, 24),
		taskList:    tasklist.New(opts.Tasks, k, opts.Clock, 80, 22),
		formView:    taskform.New(80, 22),
		detailView:  detail.New(k, 80, 22),
		accountView: account.New(80, 22),
		statsView:   stats.New(80, 22),
		helpView:    helpview.New(k, 80, 22),
		commandView: command.New(80, 22),
	}
}

// Close detaches the model from the store and the session manager.
func (m Model) Close() {
	m.events.close()
}

// Init restores the persisted session and starts listening for
// background events.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.restore(),
		m.events.next(),
		m.session.Pusher().Results(),
		tasklist.Tick(),
	)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.authView.SetSize(w, h)
		m.taskList.SetSize(w, h)
		m.formView.SetSize(w, h)
		m.detailView.SetSize(w, h)
		m.accountView.SetSize(w, h)
		m.statsView.SetSize(w, h)
		m.helpView.SetSize(w, h)
		m.commandView.SetSize(w, h)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case storeChangedMsg:
		cmd := m.taskList.Refresh()
		switch m.view {
		case ViewStats:
			m.statsView.SetStats(m.tasks.Stats())
		case ViewDetail:
			m.refreshDetail()
		}
		return m, tea.Batch(cmd, m.events.next())

	case tasklist.TickMsg:
		cmd := m.taskList.Refresh()
		switch m.view {
		case ViewStats:
			m.statsView.SetStats(m.tasks.Stats())
		case ViewDetail:
			m.refreshDetail()
		}
		return m, tea.Batch(cmd, tasklist.Tick())

	case stateChangedMsg:
		cmd := m.onStateChange(msg.state)
		return m, tea.Batch(cmd, m.events.next())

	case tasksync.PushResultMsg:
		if msg.Err != nil {
			m.logger.Debugw("push result", "error", msg.Err)
		}
		return m, m.session.Pusher().Results()

	case noticeExpiredMsg:
		m.expire(msg.id)
		return m, nil

	case restoredMsg:
		if msg.err != nil {
			m.logger.Warnw("restoring session failed", "error", msg.err)
		}
		if msg.ok {
			return m, m.enterList()
		}
		return m, m.enterAuth(authform.ModeMenu, "")

	case authDoneMsg:
		return m, m.onAuthDone(msg)

	case registeredMsg:
		m.busy = false
		if msg.err != nil {
			m.authView.SetError(errorText(msg.err))
			return m, nil
		}
		cmd := m.authView.Start(authform.ModeVerify)
		m.authView.SetInfo(fmt.Sprintf("Код подтверждения отправлен на %s", msg.email))
		return m, cmd

	case messageDoneMsg:
		return m, m.onMessageDone(msg)

	case loggedOutMsg:
		m.busy = false
		if msg.err != nil {
			m.logger.Warnw("logout failed", "error", msg.err)
		}
		return m, m.enterAuth(authform.ModeMenu, "Вы вышли из системы")

	case hydratedMsg:
		if msg.err != nil {
			// Background failure: only the sync indicator reflects it.
			return m, nil
		}
		return m, m.notify("Задачи обновлены", false)

	case authform.LoginMsg:
		m.busy = true
		return m, m.login(msg)
	case authform.RegisterMsg:
		m.busy = true
		return m, m.register(msg)
	case authform.VerifyMsg:
		m.busy = true
		return m, m.verify(msg)
	case authform.ForgotMsg:
		m.busy = true
		return m, m.forgot(msg)
	case authform.ResetMsg:
		m.busy = true
		return m, m.reset(msg)
	case authform.QuitMsg:
		return m, tea.Quit

	case taskform.SubmitMsg:
		m.view = ViewList
		return m, m.saveForm(msg)
	case taskform.CancelMsg:
		m.view = ViewList
		return m, nil

	case detail.BackMsg:
		m.view = ViewList
		return m, nil
	case detail.ActionMsg:
		return m, m.detailAction(msg)

	case account.RenameMsg:
		return m, m.rename(msg)
	case account.PasswordMsg:
		return m, m.changePassword(msg)
	case account.LogoutMsg:
		m.busy = true
		return m, m.logout()
	case account.DoneMsg:
		m.view = ViewList
		return m, nil
	case accountDoneMsg:
		if msg.err != nil {
			return m, m.accountView.SetResult(errorText(msg.err), true)
		}
		if msg.user != nil {
			m.accountView.SetUser(*msg.user)
		}
		return m, m.accountView.SetResult(msg.text, false)

	case command.CommandMsg:
		m.view = ViewList
		return m, m.executeCommand(msg)
	case command.CancelMsg:
		m.view = ViewList
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.view == ViewList && !m.taskList.Searching() {
			if handled, cmd := m.handleListKeys(msg); handled {
				return m, cmd
			}
		}
		if m.view == ViewHelp || m.view == ViewStats {
			switch {
			case key.Matches(msg, m.keys.Back), key.Matches(msg, m.keys.Quit),
				key.Matches(msg, m.keys.Help), key.Matches(msg, m.keys.Stats):
				m.view = ViewList
				return m, nil
			}
		}
	}

	return m.updateActiveView(msg)
}

// handleListKeys processes keys of the task list that act on the store
// or open another view.
func (m *Model) handleListKeys(msg tea.KeyMsg) (bool, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return true, tea.Quit
	case key.Matches(msg, m.keys.New):
		m.view = ViewForm
		return true, m.formView.StartCreate()
	case key.Matches(msg, m.keys.Edit):
		task, ok := m.taskList.Selected()
		if !ok {
			return true, nil
		}
		m.view = ViewForm
		return true, m.formView.StartEdit(task)
	case key.Matches(msg, m.keys.Toggle):
		return true, m.toggleSelected()
	case key.Matches(msg, m.keys.Delete):
		return true, m.deleteSelected()
	case key.Matches(msg, m.keys.Duplicate):
		return true, m.duplicateSelected()
	case key.Matches(msg, m.keys.CycleFilter):
		return true, m.cycleFilter()
	case key.Matches(msg, m.keys.CycleSort):
		return true, m.cycleSort()
	case key.Matches(msg, m.keys.Detail):
		task, ok := m.taskList.Selected()
		if !ok {
			return true, nil
		}
		m.detailView.SetTask(task, m.tasks.IsOverdue(task))
		m.open(ViewDetail)
		return true, nil
	case key.Matches(msg, m.keys.Account):
		return true, m.openAccount()
	case key.Matches(msg, m.keys.Stats):
		m.openStats()
		return true, nil
	case key.Matches(msg, m.keys.Help):
		m.open(ViewHelp)
		return true, nil
	case key.Matches(msg, m.keys.Command):
		m.view = ViewCommand
		return true, m.commandView.Focus()
	}
	return false, nil
}

func (m *Model) open(v ViewState) {
	m.view = v
}

func (m *Model) openStats() {
	m.statsView.SetStats(m.tasks.Stats())
	m.open(ViewStats)
}

func (m *Model) openAccount() tea.Cmd {
	cur, ok := m.session.Current()
	if !ok {
		return nil
	}
	m.open(ViewAccount)
	return m.accountView.Open(cur.User)
}

// refreshDetail re-reads the shown task after a store change and leaves
// the view when the task is gone.
func (m *Model) refreshDetail() {
	task, ok := m.tasks.Get(m.detailView.TaskID())
	if !ok {
		m.detailView.Clear()
		m.view = ViewList
		return
	}
	m.detailView.SetTask(task, m.tasks.IsOverdue(task))
}

func (m *Model) detailAction(msg detail.ActionMsg) tea.Cmd {
	switch msg.Action {
	case detail.ActionEdit:
		task, ok := m.tasks.Get(msg.TaskID)
		if !ok {
			return m.taskError(taskstore.ErrNotFound)
		}
		m.view = ViewForm
		return m.formView.StartEdit(task)
	case detail.ActionToggle:
		cmd := m.toggleTask(msg.TaskID)
		m.refreshDetail()
		return cmd
	case detail.ActionDelete:
		cmd := m.deleteTask(msg.TaskID)
		m.detailView.Clear()
		m.view = ViewList
		return cmd
	}
	return nil
}

func (m *Model) enterList() tea.Cmd {
	m.busy = false
	m.view = ViewList
	return m.taskList.Refresh()
}

func (m *Model) enterAuth(mode authform.Mode, info string) tea.Cmd {
	m.busy = false
	m.view = ViewAuth
	cmd := m.authView.Start(mode)
	m.authView.SetInfo(info)
	return cmd
}

// onStateChange follows transitions started elsewhere, such as a stored
// session being rejected or a login finishing.
func (m *Model) onStateChange(s session.State) tea.Cmd {
	switch s {
	case session.Authenticated:
		if m.view == ViewAuth || m.view == ViewLoading {
			return m.enterList()
		}
	case session.Anonymous:
		if m.view != ViewAuth && m.view != ViewLoading {
			return m.enterAuth(authform.ModeMenu, "")
		}
	}
	return nil
}

func (m *Model) onAuthDone(msg authDoneMsg) tea.Cmd {
	m.busy = false
	if msg.err != nil {
		m.authView.SetError(errorText(msg.err))
		return nil
	}

	if m.session.State() == session.Authenticated {
		list := m.enterList()
		return tea.Batch(list, m.notify(fmt.Sprintf("Добро пожаловать, %s!", msg.user.Username), false))
	}
	// Verified without remembered credentials: sign in by hand.
	return m.enterAuth(authform.ModeLogin, "Email успешно подтвержден! Войдите в систему.")
}

func (m *Model) onMessageDone(msg messageDoneMsg) tea.Cmd {
	m.busy = false
	if msg.err != nil {
		m.authView.SetError(errorText(msg.err))
		return nil
	}

	switch msg.op {
	case "forgot":
		m.authView.SetEmail(msg.email)
		return m.enterAuth(authform.ModeReset, msg.text)
	default:
		return m.enterAuth(authform.ModeLogin, msg.text)
	}
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.view {
	case ViewAuth:
		m.authView, cmd = m.authView.Update(msg)
	case ViewList:
		m.taskList, cmd = m.taskList.Update(msg)
	case ViewForm:
		m.formView, cmd = m.formView.Update(msg)
	case ViewDetail:
		m.detailView, cmd = m.detailView.Update(msg)
	case ViewAccount:
		m.accountView, cmd = m.accountView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Загрузка..."
	}

	header := m.layout.RenderHeader(m.title(), m.userLabel())
	statusBar := m.layout.RenderStatusBar(m.statusText(), m.syncLabel())

	return m.layout.RenderWithFrame(header, m.renderContent(), statusBar)
}

func (m Model) renderContent() string {
	switch m.view {
	case ViewLoading:
		return theme.HelpStyle.Render("  Восстановление сессии...")
	case ViewAuth:
		return m.authView.View()
	case ViewList:
		return m.taskList.View()
	case ViewForm:
		return m.formView.View()
	case ViewDetail:
		return m.detailView.View()
	case ViewAccount:
		return m.accountView.View()
	case ViewStats:
		return m.statsView.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	default:
		return ""
	}
}

func (m Model) title() string {
	if m.session.State() != session.Authenticated {
		return "To-Do Pro"
	}
	st := m.tasks.Stats()
	return fmt.Sprintf("To-Do Pro  %d/%d", st.Completed, st.Total)
}

func (m Model) userLabel() string {
	if cur, ok := m.session.Current(); ok {
		return cur.User.Username
	}
	return ""
}

// statusText shows the active notice, or the view state of the list.
func (m Model) statusText() string {
	if m.notice != nil {
		if m.notice.isErr {
			return theme.NoticeErrorStyle.Render(m.notice.text)
		}
		return theme.NoticeInfoStyle.Render(m.notice.text)
	}
	if m.busy {
		return "Подождите..."
	}

	switch m.view {
	case ViewList:
		parts := []string{m.tasks.Filter().Label(), m.tasks.Sort().Label()}
		if q := m.tasks.SearchQuery(); q != "" {
			parts = append(parts, fmt.Sprintf("поиск: %q", q))
		}
		return strings.Join(parts, " · ") + "  |  ? справка"
	case ViewForm:
		return "enter: сохранить | esc: отмена"
	case ViewStats, ViewHelp, ViewAccount:
		return "esc: назад"
	case ViewDetail:
		return "e: изменить | x: выполнить | d: удалить | esc: назад"
	case ViewCommand:
		return "enter: выполнить | esc: закрыть"
	default:
		return ""
	}
}

// syncLabel is the dim indicator of remote persistence. Failures never
// raise a notice; they only show here.
func (m Model) syncLabel() string {
	if m.session.State() != session.Authenticated {
		return ""
	}

	st := m.session.Pusher().Status()
	var label string
	switch st.State {
	case tasksync.PushPending:
		label = "◌ ожидает"
	case tasksync.PushRunning:
		label = "↻ сохранение"
	case tasksync.PushFailed:
		label = "○ не сохранено"
	default:
		label = "● синхронизировано"
		if st.Pushes == 0 && m.session.LastSyncError() != nil {
			label = "○ офлайн"
		}
	}
	return theme.SyncStyle(st.State.String()).Render(label)
}
