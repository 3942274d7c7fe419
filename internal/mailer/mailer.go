// Package mailer sends the account e-mails of the server: verification
// codes after registration and password reset codes.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-message/mail"
	"go.uber.org/zap"

	"github.com/nhle/todopro/internal/model"
)

// Message is a plain-text e-mail to a single recipient.
type Message struct {
	To      string
	ToName  string
	Subject string
	Text    string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

const (
	VerificationSubject = "Подтверждение регистрации в To-Do Pro"
	ResetSubject        = "Восстановление пароля в To-Do Pro"
	senderName          = "To-Do Pro"
)

// VerificationMessage is mailed after registration. It carries both the
// 6-digit code and the confirmation link.
func VerificationMessage(user model.User, code, url string) Message {
	return Message{
		To:      user.Email,
		ToName:  user.Username,
		Subject: VerificationSubject,
		Text: fmt.Sprintf(`Здравствуйте, %s!

Спасибо за регистрацию в To-Do Pro.
Код подтверждения: %s

Или перейдите по ссылке, чтобы подтвердить аккаунт:
%s

Эта ссылка действительна в течение 24 часов.
Если вы не регистрировались в To-Do Pro, просто проигнорируйте это письмо.
`, user.Username, code, url),
	}
}

// ResetMessage is mailed by forgot_password.
func ResetMessage(user model.User, code string) Message {
	return Message{
		To:      user.Email,
		ToName:  user.Username,
		Subject: ResetSubject,
		Text: fmt.Sprintf(`Здравствуйте, %s!

Вы запросили восстановление пароля для вашего аккаунта в To-Do Pro.
Код для сброса пароля: %s

Важно: этот код действителен в течение 15 минут. Если вы не запрашивали
восстановление пароля, проигнорируйте это письмо.
`, user.Username, code),
	}
}

// Compose renders msg as an RFC 5322 message from the given address.
func Compose(from string, msg Message, now time.Time) ([]byte, error) {
	var h mail.Header
	h.SetDate(now)
	h.SetSubject(msg.Subject)
	h.SetAddressList("From", []*mail.Address{{Name: senderName, Address: from}})
	h.SetAddressList("To", []*mail.Address{{Name: msg.ToName, Address: msg.To}})
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generating message id: %w", err)
	}
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	h.Set("Content-Transfer-Encoding", "quoted-printable")

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating message writer: %w", err)
	}
	if _, err := io.WriteString(w, msg.Text); err != nil {
		return nil, fmt.Errorf("writing message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing message body: %w", err)
	}
	return buf.Bytes(), nil
}

// LogMailer only logs what it would send. It stands in when no SMTP host
// is configured, so codes can be read from the server log.
type LogMailer struct {
	logger *zap.SugaredLogger
}

func NewLogMailer(logger *zap.SugaredLogger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Infow("mail not sent, SMTP disabled",
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Text,
	)
	return nil
}
