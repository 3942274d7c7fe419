package server

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"regexp"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

const (
	minPasswordLength = 6
	maxPasswordBytes  = 72
	minUsernameLength = 3
	maxUsernameLength = 30
)

var (
	usernamePattern = regexp.MustCompile(`^[а-яёА-ЯЁa-zA-Z0-9_-]+$`)
	codePattern     = regexp.MustCompile(`^\d{6}$`)
	validate        = validator.New()
)

// Validation messages shared by several endpoints.
const (
	msgAllFieldsRequired = "Все поля обязательны"
	msgBadEmail          = "Неверный формат email"
	msgShortPassword     = "Пароль должен содержать минимум 6 символов"
	msgLongPassword      = "Пароль не должен превышать 72 байта"
	msgUsernameChars     = "Имя пользователя может содержать только буквы, цифры, дефисы и подчеркивания"
	msgUsernameLength    = "Имя пользователя должно содержать от 3 до 30 символов"
	msgBadCodeFormat     = "Неверный формат кода"
)

func validEmail(email string) bool {
	return validate.Var(email, "required,email") == nil
}

// checkUsername returns the message for an unacceptable username, or "".
func checkUsername(name string) string {
	if !usernamePattern.MatchString(name) {
		return msgUsernameChars
	}
	if n := utf8.RuneCountInString(name); n < minUsernameLength || n > maxUsernameLength {
		return msgUsernameLength
	}
	return ""
}

// checkPassword returns the message for an unacceptable password, or "".
// short is the message used for passwords under the minimum length.
func checkPassword(password, short string) string {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return short
	}
	if len(password) > maxPasswordBytes {
		return msgLongPassword
	}
	return ""
}

// newCode returns a random 6-digit code, zero padded.
func newCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generating code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// newVerificationToken returns 32 random bytes as hex.
func newVerificationToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating verification token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
