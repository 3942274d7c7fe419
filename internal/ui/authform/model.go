// Package authform renders the sign-in, registration, e-mail verification
// and password reset forms shown while no session is active.
package authform

import (
	"errors"
	"regexp"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/todopro/internal/theme"
)

// Mode selects which form is shown.
type Mode int

const (
	ModeMenu Mode = iota
	ModeLogin
	ModeRegister
	ModeVerify
	ModeForgot
	ModeReset
)

// Submitted forms are reported with one of these messages.
type (
	LoginMsg struct {
		Username string
		Password string
	}
	RegisterMsg struct {
		Username string
		Email    string
		Password string
	}
	VerifyMsg struct {
		Code string
	}
	ForgotMsg struct {
		Email string
	}
	ResetMsg struct {
		Email       string
		Code        string
		NewPassword string
	}
	// QuitMsg is sent when the user leaves from the menu.
	QuitMsg struct{}
)

const menuQuit = "quit"

var codePattern = regexp.MustCompile(`^\d{6}$`)

type formBindings struct {
	choice   string
	username string
	email    string
	password string
	confirm  string
	code     string
}

// Model is the Bubble Tea model for the authentication screen.
type Model struct {
	form   *huh.Form
	fb     *formBindings
	mode   Mode
	err    string
	info   string
	width  int
	height int
}

// New creates the authentication screen.
func New(width, height int) Model {
	return Model{fb: &formBindings{}, width: width, height: height}
}

// Mode returns the form currently shown.
func (m Model) Mode() Mode {
	return m.mode
}

// Start shows the form for mode. Values typed earlier, such as the e-mail
// address, are kept so that the next form can reuse them.
func (m *Model) Start(mode Mode) tea.Cmd {
	m.mode = mode
	m.fb.password = ""
	m.fb.confirm = ""
	m.fb.code = ""
	m.fb.choice = ""
	m.form = m.buildForm(mode)
	return m.form.Init()
}

// SetError shows msg above the form and clears any info line.
func (m *Model) SetError(msg string) {
	m.err = msg
	m.info = ""
}

// SetInfo shows msg above the form and clears any error line.
func (m *Model) SetInfo(msg string) {
	m.info = msg
	m.err = ""
}

// SetEmail prefills the e-mail fields.
func (m *Model) SetEmail(email string) {
	m.fb.email = email
}

// Update handles messages for the active form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
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
		if m.mode == ModeMenu {
			return m, func() tea.Msg { return QuitMsg{} }
		}
		m.err, m.info = "", ""
		cmd := m.Start(ModeMenu)
		return m, cmd
	}
	return m, cmd
}

func (m Model) completed() (Model, tea.Cmd) {
	if m.mode == ModeMenu {
		if m.fb.choice == menuQuit {
			return m, func() tea.Msg { return QuitMsg{} }
		}
		m.err, m.info = "", ""
		cmd := m.Start(menuModes[m.fb.choice])
		return m, cmd
	}

	out := m.submission()
	// Keep the form visible while the request runs; the caller restarts
	// it with the outcome.
	m.form = m.buildForm(m.mode)
	init := m.form.Init()
	return m, tea.Batch(init, func() tea.Msg { return out })
}

// submission builds the message for the completed form.
func (m Model) submission() tea.Msg {
	fb := *m.fb

	switch m.mode {
	case ModeLogin:
		return LoginMsg{Username: strings.TrimSpace(fb.username), Password: fb.password}
	case ModeRegister:
		return RegisterMsg{
			Username: strings.TrimSpace(fb.username),
			Email:    strings.TrimSpace(fb.email),
			Password: fb.password,
		}
	case ModeVerify:
		return VerifyMsg{Code: strings.TrimSpace(fb.code)}
	case ModeForgot:
		return ForgotMsg{Email: strings.TrimSpace(fb.email)}
	case ModeReset:
		return ResetMsg{
			Email:       strings.TrimSpace(fb.email),
			Code:        strings.TrimSpace(fb.code),
			NewPassword: fb.password,
		}
	}
	return nil
}

var menuModes = map[string]Mode{
	"login":    ModeLogin,
	"register": ModeRegister,
	"verify":   ModeVerify,
	"forgot":   ModeForgot,
	"reset":    ModeReset,
}

func (m *Model) buildForm(mode Mode) *huh.Form {
	var fields []huh.Field

	switch mode {
	case ModeMenu:
		fields = append(fields, huh.NewSelect[string]().
			Title("To-Do Pro").
			Options(
				huh.NewOption("Войти", "login"),
				huh.NewOption("Регистрация", "register"),
				huh.NewOption("Подтвердить email", "verify"),
				huh.NewOption("Забыли пароль?", "forgot"),
				huh.NewOption("Ввести код сброса", "reset"),
				huh.NewOption("Выход", menuQuit),
			).
			Value(&m.fb.choice))

	case ModeLogin:
		fields = append(fields,
			m.usernameField(),
			m.passwordField("Пароль", &m.fb.password),
		)

	case ModeRegister:
		fields = append(fields,
			m.usernameField(),
			m.emailField(),
			m.passwordField("Пароль", &m.fb.password),
			huh.NewInput().
				Title("Повторите пароль").
				EchoMode(huh.EchoModePassword).
				Value(&m.fb.confirm).
				Validate(func(s string) error {
					if s != m.fb.password {
						return errors.New("пароли не совпадают")
					}
					return nil
				}),
		)

	case ModeVerify:
		fields = append(fields, m.codeField("Код из письма"))

	case ModeForgot:
		fields = append(fields, m.emailField())

	case ModeReset:
		fields = append(fields,
			m.emailField(),
			m.codeField("Код сброса"),
			m.passwordField("Новый пароль", &m.fb.password),
		)
	}

	return huh.NewForm(huh.NewGroup(fields...)).
		WithWidth(m.formWidth()).
		WithShowHelp(true)
}

func (m *Model) usernameField() huh.Field {
	return huh.NewInput().
		Title("Имя пользователя").
		Value(&m.fb.username).
		Validate(required)
}

func (m *Model) emailField() huh.Field {
	return huh.NewInput().
		Title("Email").
		Value(&m.fb.email).
		Validate(required)
}

func (m *Model) passwordField(title string, value *string) huh.Field {
	return huh.NewInput().
		Title(title).
		EchoMode(huh.EchoModePassword).
		Value(value).
		Validate(required)
}

func (m *Model) codeField(title string) huh.Field {
	return huh.NewInput().
		Title(title).
		Placeholder("123456").
		CharLimit(6).
		Value(&m.fb.code).
		Validate(validateCode)
}

func required(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("обязательное поле")
	}
	return nil
}

func validateCode(s string) error {
	if !codePattern.MatchString(strings.TrimSpace(s)) {
		return errors.New("введите 6 цифр")
	}
	return nil
}

var titles = map[Mode]string{
	ModeLogin:    "Вход",
	ModeRegister: "Регистрация",
	ModeVerify:   "Подтверждение email",
	ModeForgot:   "Восстановление пароля",
	ModeReset:    "Сброс пароля",
}

// View renders the active form with the status line above it.
func (m Model) View() string {
	var parts []string
	if title, ok := titles[m.mode]; ok {
		parts = append(parts, theme.TitleStyle.Render(title))
	}
	if m.err != "" {
		parts = append(parts, theme.NoticeErrorStyle.Render(m.err))
	}
	if m.info != "" {
		parts = append(parts, theme.NoticeInfoStyle.Render(m.info))
	}
	if m.form != nil {
		parts = append(parts, m.form.View())
	}
	if m.mode != ModeMenu {
		parts = append(parts, theme.HelpStyle.Render("esc: назад в меню"))
	}

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 70 {
		w = 70
	}
	return w
}
