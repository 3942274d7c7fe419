package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nhle/todopro/internal/api"
	"github.com/nhle/todopro/internal/mailer"
	"github.com/nhle/todopro/internal/model"
	"github.com/nhle/todopro/internal/store"
	"github.com/nhle/todopro/internal/token"
)

const mailTimeout = 15 * time.Second

const (
	msgUserExists         = "Пользователь уже существует"
	msgBadCredentials     = "Неверные учетные данные"
	msgNotActivated       = "Аккаунт не активирован. Проверьте email и нажмите на ссылку подтверждения."
	msgBadVerifyCode      = "Неверный или истекший код подтверждения"
	msgBadVerifyLink      = "Неверная или истекшая ссылка подтверждения"
	msgEmailVerified      = "Email успешно подтвержден!"
	msgResetSent          = "Если email зарегистрирован, инструкции по восстановлению пароля отправлены на указанный адрес"
	msgUserNotFound       = "Пользователь не найден"
	msgResetNotFound      = "Код сброса пароля не найден или истек"
	msgResetMismatch      = "Неверный код сброса пароля"
	msgPasswordReset      = "Пароль успешно изменен! Теперь вы можете войти в систему с новым паролем."
	msgUsernameTaken      = "Это имя пользователя уже занято"
	msgUsernameRequired   = "Новое имя пользователя обязательно"
	msgUsernameChanged    = "Имя пользователя успешно изменено"
	msgCurrentRequired    = "Текущий пароль обязателен"
	msgNewRequired        = "Новый пароль обязателен"
	msgShortNewPassword   = "Новый пароль должен содержать минимум 6 символов"
	msgWrongCurrent       = "Неверный текущий пароль"
	msgPasswordChanged    = "Пароль успешно изменен"
	msgRegisteredMailed   = "Пользователь зарегистрирован. Ссылка подтверждения отправлена на email."
	msgRegisteredUnmailed = "Пользователь зарегистрирован. Проверьте email или используйте ссылку подтверждения."
)

func (s *Server) register(c *gin.Context) {
	var req api.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)

	if req.Username == "" || req.Email == "" || req.Password == "" {
		refuse(c, msgAllFieldsRequired)
		return
	}
	if !validEmail(req.Email) {
		refuse(c, msgBadEmail)
		return
	}
	if msg := checkPassword(req.Password, msgShortPassword); msg != "" {
		refuse(c, msg)
		return
	}
	if msg := checkUsername(req.Username); msg != "" {
		refuse(c, msg)
		return
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		s.internalError(c, "hash password", err)
		return
	}
	vtok, err := newVerificationToken()
	if err != nil {
		s.internalError(c, "verification token", err)
		return
	}
	code, err := newCode()
	if err != nil {
		s.internalError(c, "verification code", err)
		return
	}

	user := model.User{Username: req.Username, Email: req.Email}
	id, err := s.store.CreateAccount(c.Request.Context(), model.Account{
		User:              user,
		PasswordHash:      hash,
		VerificationToken: vtok,
		VerificationCode:  code,
		CreatedAt:         s.now(),
	})
	if errors.Is(err, store.ErrDuplicate) {
		refuse(c, msgUserExists)
		return
	}
	if err != nil {
		s.internalError(c, "create account", err)
		return
	}
	user.ID = id

	url := s.verificationURL(vtok)
	message := msgRegisteredMailed
	if err := s.send(c.Request.Context(), mailer.VerificationMessage(user, code, url)); err != nil {
		s.logger.Warnw("verification mail not sent", "user_id", id, "error", err)
		message = msgRegisteredUnmailed
	}

	s.logger.Infow("account registered", "user_id", id, "username", user.Username)
	ok(c, gin.H{
		"message":            message,
		"verification_token": vtok,
		"verification_url":   url,
	})
}

func (s *Server) login(c *gin.Context) {
	var req api.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	acc, err := s.store.GetAccountByUsername(c.Request.Context(), req.Username)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.internalError(c, "login", err)
		return
	}
	if acc == nil || !s.hasher.Verify(req.Password, acc.PasswordHash) {
		refuse(c, msgBadCredentials)
		return
	}
	if !acc.EmailVerified {
		refuse(c, msgNotActivated)
		return
	}

	tok, err := token.Encode(token.New(acc.ID, acc.Username, s.now(), model.SessionTTL))
	if err != nil {
		s.internalError(c, "issue token", err)
		return
	}

	s.logger.Infow("login", "user_id", acc.ID)
	ok(c, gin.H{"token": tok, "user": acc.User})
}

func (s *Server) verify(c *gin.Context) {
	var req api.VerifyRequest
	if !bindJSON(c, &req) {
		return
	}
	claims, err := token.Decode(req.Token)
	if err != nil {
		refuse(c, "Invalid token")
		return
	}
	if claims.Expired(s.now()) {
		refuse(c, "Token expired")
		return
	}

	if _, err := s.store.GetAccountByID(c.Request.Context(), claims.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			refuse(c, msgUserNotFound)
			return
		}
		s.internalError(c, "verify", err)
		return
	}

	ok(c, gin.H{"user_id": claims.UserID})
}

func (s *Server) verifyEmail(c *gin.Context) {
	var req api.VerifyEmailRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.VerificationCode == "" {
		fail(c, http.StatusBadRequest, msgMissingFields)
		return
	}

	acc, found := s.pendingAccount(c, req.VerificationToken, msgBadVerifyCode)
	if !found {
		return
	}
	if !codePattern.MatchString(req.VerificationCode) {
		refuse(c, msgBadCodeFormat)
		return
	}
	// Accounts created before codes were stored have none to compare.
	if acc.VerificationCode != "" && acc.VerificationCode != req.VerificationCode {
		refuse(c, msgBadVerifyCode)
		return
	}

	s.confirm(c, acc)
}

func (s *Server) verifyEmailLink(c *gin.Context) {
	var req api.VerifyEmailRequest
	if !bindJSON(c, &req) {
		return
	}
	acc, found := s.pendingAccount(c, req.VerificationToken, msgBadVerifyLink)
	if !found {
		return
	}
	s.confirm(c, acc)
}

func (s *Server) pendingAccount(c *gin.Context, vtok, notFound string) (*model.Account, bool) {
	acc, err := s.store.GetAccountByVerificationToken(c.Request.Context(), vtok)
	if errors.Is(err, store.ErrNotFound) {
		refuse(c, notFound)
		return nil, false
	}
	if err != nil {
		s.internalError(c, "find verification token", err)
		return nil, false
	}
	return acc, true
}

func (s *Server) confirm(c *gin.Context, acc *model.Account) {
	if err := s.store.MarkEmailVerified(c.Request.Context(), acc.ID); err != nil {
		s.internalError(c, "mark verified", err)
		return
	}
	s.logger.Infow("email verified", "user_id", acc.ID)
	ok(c, gin.H{"message": msgEmailVerified, "user": acc.User})
}

func (s *Server) forgotPassword(c *gin.Context) {
	var req api.ForgotPasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if !validEmail(req.Email) {
		refuse(c, msgBadEmail)
		return
	}

	acc, err := s.store.GetAccountByEmail(c.Request.Context(), req.Email)
	if errors.Is(err, store.ErrNotFound) {
		ok(c, gin.H{"message": msgResetSent})
		return
	}
	if err != nil {
		s.internalError(c, "forgot password", err)
		return
	}

	code, err := newCode()
	if err != nil {
		s.internalError(c, "reset code", err)
		return
	}
	now := s.now()
	err = s.store.UpsertPasswordReset(c.Request.Context(), model.PasswordReset{
		Email:     acc.Email,
		Code:      code,
		ExpiresAt: now.Add(resetCodeTTL),
		CreatedAt: now,
	})
	if err != nil {
		s.internalError(c, "store reset code", err)
		return
	}

	if err := s.send(c.Request.Context(), mailer.ResetMessage(acc.User, code)); err != nil {
		s.logger.Warnw("reset mail not sent", "user_id", acc.ID, "error", err)
	}
	ok(c, gin.H{"message": msgResetSent})
}

func (s *Server) resetPassword(c *gin.Context) {
	var req api.ResetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if msg := checkPassword(req.NewPassword, msgShortPassword); msg != "" {
		refuse(c, msg)
		return
	}
	if !codePattern.MatchString(req.ResetCode) {
		refuse(c, msgBadCodeFormat)
		return
	}

	acc, err := s.store.GetAccountByEmail(c.Request.Context(), req.Email)
	if errors.Is(err, store.ErrNotFound) {
		refuse(c, msgUserNotFound)
		return
	}
	if err != nil {
		s.internalError(c, "reset password", err)
		return
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		s.internalError(c, "hash password", err)
		return
	}

	err = s.store.ConsumePasswordReset(c.Request.Context(), acc.Email, req.ResetCode, hash, s.now())
	switch {
	case errors.Is(err, store.ErrResetNotFound):
		refuse(c, msgResetNotFound)
		return
	case errors.Is(err, store.ErrResetCodeMismatch):
		refuse(c, msgResetMismatch)
		return
	case err != nil:
		s.internalError(c, "consume reset code", err)
		return
	}

	s.logger.Infow("password reset", "user_id", acc.ID)
	ok(c, gin.H{"message": msgPasswordReset, "user": acc.User})
}

func (s *Server) updateUsername(c *gin.Context) {
	var req api.UpdateUsernameRequest
	if !bindJSON(c, &req) {
		return
	}
	name := strings.TrimSpace(req.NewUsername)
	if name == "" {
		refuse(c, msgUsernameRequired)
		return
	}
	if msg := checkUsername(name); msg != "" {
		refuse(c, msg)
		return
	}

	userID := claimsFrom(c).UserID
	err := s.store.UpdateUsername(c.Request.Context(), userID, name)
	switch {
	case errors.Is(err, store.ErrDuplicate):
		refuse(c, msgUsernameTaken)
		return
	case errors.Is(err, store.ErrNotFound):
		refuse(c, msgUserNotFound)
		return
	case err != nil:
		s.internalError(c, "update username", err)
		return
	}

	acc, err := s.store.GetAccountByID(c.Request.Context(), userID)
	if err != nil {
		s.internalError(c, "reload account", err)
		return
	}
	ok(c, gin.H{"message": msgUsernameChanged, "user": acc.User})
}

func (s *Server) updatePassword(c *gin.Context) {
	var req api.UpdatePasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	current := strings.TrimSpace(req.CurrentPassword)
	next := strings.TrimSpace(req.NewPassword)
	if current == "" {
		refuse(c, msgCurrentRequired)
		return
	}
	if next == "" {
		refuse(c, msgNewRequired)
		return
	}
	if msg := checkPassword(next, msgShortNewPassword); msg != "" {
		refuse(c, msg)
		return
	}

	userID := claimsFrom(c).UserID
	acc, err := s.store.GetAccountByID(c.Request.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		refuse(c, msgUserNotFound)
		return
	}
	if err != nil {
		s.internalError(c, "update password", err)
		return
	}
	if !s.hasher.Verify(current, acc.PasswordHash) {
		refuse(c, msgWrongCurrent)
		return
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		s.internalError(c, "hash password", err)
		return
	}
	if err := s.store.UpdatePasswordHash(c.Request.Context(), userID, hash); err != nil {
		s.internalError(c, "store password", err)
		return
	}
	ok(c, gin.H{"message": msgPasswordChanged})
}

func (s *Server) send(ctx context.Context, msg mailer.Message) error {
	ctx, cancel := context.WithTimeout(ctx, mailTimeout)
	defer cancel()
	return s.mailer.Send(ctx, msg)
}
