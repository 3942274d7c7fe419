package app

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/todopro/internal/api"
	"github.com/nhle/todopro/internal/model"
	"github.com/nhle/todopro/internal/session"
	"github.com/nhle/todopro/internal/ui/account"
	"github.com/nhle/todopro/internal/ui/authform"
)

// requestTimeout bounds each auth request made from the UI.
const requestTimeout = 30 * time.Second

type restoredMsg struct {
	ok  bool
	err error
}

// authDoneMsg is the outcome of login and e-mail verification.
type authDoneMsg struct {
	op   string
	user model.User
	err  error
}

type registeredMsg struct {
	email string
	err   error
}

// messageDoneMsg is the outcome of a request that only returns a server
// message, such as forgot_password.
type messageDoneMsg struct {
	op    string
	email string
	text  string
	err   error
}

type loggedOutMsg struct {
	err error
}

type hydratedMsg struct {
	err error
}

// accountDoneMsg is the outcome of a username or password change.
type accountDoneMsg struct {
	user *model.User
	text string
	err  error
}

func (m *Model) restore() tea.Cmd {
	sess := m.session
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		ok, err := sess.RestoreSession(ctx)
		return restoredMsg{ok: ok, err: err}
	}
}

func (m *Model) login(msg authform.LoginMsg) tea.Cmd {
	sess := m.session
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		user, err := sess.Login(ctx, msg.Username, msg.Password)
		return authDoneMsg{op: "login", user: user, err: err}
	}
}

func (m *Model) register(msg authform.RegisterMsg) tea.Cmd {
	sess := m.session
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		_, err := sess.Register(ctx, msg.Username, msg.Email, msg.Password)
		return registeredMsg{email: msg.Email, err: err}
	}
}

func (m *Model) verify(msg authform.VerifyMsg) tea.Cmd {
	sess := m.session
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		user, err := sess.VerifyEmail(ctx, msg.Code, "")
		return authDoneMsg{op: "verify", user: user, err: err}
	}
}

func (m *Model) forgot(msg authform.ForgotMsg) tea.Cmd {
	sess := m.session
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		text, err := sess.ForgotPassword(ctx, msg.Email)
		return messageDoneMsg{op: "forgot", email: msg.Email, text: text, err: err}
	}
}

func (m *Model) reset(msg authform.ResetMsg) tea.Cmd {
	sess := m.session
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		text, err := sess.ResetPassword(ctx, msg.Email, msg.Code, msg.NewPassword)
		return messageDoneMsg{op: "reset", email: msg.Email, text: text, err: err}
	}
}

func (m *Model) logout() tea.Cmd {
	sess := m.session
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return loggedOutMsg{err: sess.Logout(ctx)}
	}
}

func (m *Model) rename(msg account.RenameMsg) tea.Cmd {
	sess := m.session
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		user, err := sess.ChangeUsername(ctx, msg.Username)
		if err != nil {
			return accountDoneMsg{err: err}
		}
		return accountDoneMsg{user: &user, text: "Имя пользователя изменено"}
	}
}

func (m *Model) changePassword(msg account.PasswordMsg) tea.Cmd {
	sess := m.session
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		text, err := sess.ChangePassword(ctx, msg.Current, msg.New)
		return accountDoneMsg{text: text, err: err}
	}
}

func (m *Model) hydrate() tea.Cmd {
	sess := m.session
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return hydratedMsg{err: sess.Hydrate(ctx)}
	}
}

// errorText turns an operation error into a user-facing sentence.
func errorText(err error) string {
	switch {
	case errors.Is(err, session.ErrNoPendingVerification):
		return "Нет регистрации, ожидающей подтверждения"
	case errors.Is(err, session.ErrAlreadyAuthenticated):
		return "Вы уже вошли в систему"
	case errors.Is(err, session.ErrNotAuthenticated):
		return "Войдите в систему"
	case errors.Is(err, session.ErrStaleResponse):
		return "Сессия была изменена, повторите попытку"
	}
	return api.Message(err)
}
