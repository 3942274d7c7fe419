// Package account is the settings screen of the signed-in user: profile
// details, username and password changes, and logout.
package account

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/todopro/internal/model"
	"github.com/nhle/todopro/internal/theme"
)

// Mode represents the current state of the account screen.
type Mode int

const (
	ModeOverview Mode = iota // Profile and action menu
	ModeRename               // Username form
	ModePassword             // Password form
	ModeSaving               // Waiting for the server
)

type (
	// RenameMsg asks the parent to change the username.
	RenameMsg struct {
		Username string
	}
	// PasswordMsg asks the parent to change the password.
	PasswordMsg struct {
		Current string
		New     string
	}
	// LogoutMsg asks the parent to end the session.
	LogoutMsg struct{}
	// DoneMsg signals the account screen should close.
	DoneMsg struct{}
)

const (
	actionRename   = "rename"
	actionPassword = "password"
	actionLogout   = "logout"
	actionBack     = "back"
)

type formBindings struct {
	action   string
	username string
	current  string
	next     string
	confirm  string
}

// Model is the account screen.
type Model struct {
	mode    Mode
	user    model.User
	form    *huh.Form
	fb      *formBindings
	spinner spinner.Model
	status  string
	isErr   bool
	width   int
	height  int
}

func New(width, height int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.ColorBlue)

	return Model{
		fb:      &formBindings{},
		spinner: sp,
		width:   width,
		height:  height,
	}
}

// Open shows the overview for user and clears any earlier status.
func (m *Model) Open(user model.User) tea.Cmd {
	m.user = user
	m.status, m.isErr = "", false
	return m.start(ModeOverview)
}

// Mode returns the current state of the screen.
func (m Model) Mode() Mode {
	return m.mode
}

// SetResult ends a pending request and returns to the overview with the
// outcome shown above the menu.
func (m *Model) SetResult(text string, isErr bool) tea.Cmd {
	m.status, m.isErr = text, isErr
	return m.start(ModeOverview)
}

// SetUser updates the profile shown, for example after a rename.
func (m *Model) SetUser(user model.User) {
	m.user = user
}

func (m *Model) start(mode Mode) tea.Cmd {
	m.mode = mode
	*m.fb = formBindings{username: m.user.Username}
	m.form = m.buildForm(mode)
	if m.form == nil {
		return nil
	}
	return m.form.Init()
}

// Update handles messages for the account screen.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(spinner.TickMsg); ok {
		if m.mode != ModeSaving {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		return m.completed()
	case huh.StateAborted:
		if m.mode == ModeOverview {
			return m, func() tea.Msg { return DoneMsg{} }
		}
		cmd := m.start(ModeOverview)
		return m, cmd
	}
	return m, cmd
}

func (m Model) completed() (Model, tea.Cmd) {
	if m.mode == ModeOverview {
		switch m.fb.action {
		case actionRename:
			cmd := m.start(ModeRename)
			return m, cmd
		case actionPassword:
			cmd := m.start(ModePassword)
			return m, cmd
		case actionLogout:
			return m, func() tea.Msg { return LogoutMsg{} }
		default:
			return m, func() tea.Msg { return DoneMsg{} }
		}
	}

	out := m.submission()
	m.mode = ModeSaving
	m.form = nil
	m.status = ""
	return m, tea.Batch(m.spinner.Tick, func() tea.Msg { return out })
}

// submission builds the message for the completed form.
func (m Model) submission() tea.Msg {
	switch m.mode {
	case ModeRename:
		return RenameMsg{Username: strings.TrimSpace(m.fb.username)}
	case ModePassword:
		return PasswordMsg{Current: m.fb.current, New: m.fb.next}
	}
	return nil
}

func (m *Model) buildForm(mode Mode) *huh.Form {
	var fields []huh.Field

	switch mode {
	case ModeOverview:
		fields = append(fields, huh.NewSelect[string]().
			Title("Действие").
			Options(
				huh.NewOption("Изменить имя пользователя", actionRename),
				huh.NewOption("Изменить пароль", actionPassword),
				huh.NewOption("Выйти из аккаунта", actionLogout),
				huh.NewOption("Назад к задачам", actionBack),
			).
			Value(&m.fb.action))

	case ModeRename:
		fields = append(fields, huh.NewInput().
			Title("Новое имя пользователя").
			CharLimit(30).
			Value(&m.fb.username).
			Validate(m.validateUsername))

	case ModePassword:
		fields = append(fields,
			huh.NewInput().
				Title("Текущий пароль").
				EchoMode(huh.EchoModePassword).
				Value(&m.fb.current).
				Validate(validateRequired("текущий пароль")),
			huh.NewInput().
				Title("Новый пароль").
				EchoMode(huh.EchoModePassword).
				Value(&m.fb.next).
				Validate(validatePassword),
			huh.NewInput().
				Title("Повторите пароль").
				EchoMode(huh.EchoModePassword).
				Value(&m.fb.confirm).
				Validate(func(s string) error {
					if s != m.fb.next {
						return errors.New("пароли не совпадают")
					}
					return nil
				}),
		)

	default:
		return nil
	}

	return huh.NewForm(huh.NewGroup(fields...)).
		WithWidth(m.formWidth()).
		WithShowHelp(true)
}

// --- Validators ---

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("введите %s", fieldName)
		}
		return nil
	}
}

func (m *Model) validateUsername(s string) error {
	name := strings.TrimSpace(s)
	n := utf8.RuneCountInString(name)
	switch {
	case n < 3 || n > 30:
		return errors.New("от 3 до 30 символов")
	case name == m.user.Username:
		return errors.New("имя не изменилось")
	}
	return nil
}

func validatePassword(s string) error {
	if len(s) < 6 {
		return errors.New("не менее 6 символов")
	}
	return nil
}

var titles = map[Mode]string{
	ModeOverview: "Аккаунт",
	ModeRename:   "Имя пользователя",
	ModePassword: "Смена пароля",
	ModeSaving:   "Аккаунт",
}

// View renders the profile, the status line and the active form.
func (m Model) View() string {
	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray).Width(18)

	parts := []string{
		theme.TitleStyle.Render(titles[m.mode]),
		metaStyle.Render("Пользователь:") + m.user.Username,
		metaStyle.Render("Email:") + m.user.Email,
		"",
	}

	if m.status != "" {
		style := theme.NoticeInfoStyle
		if m.isErr {
			style = theme.NoticeErrorStyle
		}
		parts = append(parts, style.Render(m.status))
	}

	if m.mode == ModeSaving {
		parts = append(parts, m.spinner.View()+" Сохранение...")
	} else if m.form != nil {
		parts = append(parts, m.form.View())
	}

	if m.mode == ModeOverview {
		parts = append(parts, theme.HelpStyle.Render("esc: назад"))
	} else if m.mode != ModeSaving {
		parts = append(parts, theme.HelpStyle.Render("esc: отмена"))
	}

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// SetSize updates the screen dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) formWidth() int {
	return min(max(m.width-4, 40), 70)
}
