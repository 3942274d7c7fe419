package api

import (
	"context"

	"github.com/nhle/todopro/internal/model"
)

// Auth endpoint paths.
const (
	PathRegister        = "/api/auth/register"
	PathLogin           = "/api/auth/login"
	PathVerify          = "/api/auth/verify"
	PathVerifyEmail     = "/api/auth/verify_email"
	PathVerifyEmailLink = "/api/auth/verify_email_link"
	PathForgotPassword  = "/api/auth/forgot_password"
	PathResetPassword   = "/api/auth/reset_password"
	PathUpdateUsername  = "/api/auth/update_username"
	PathUpdatePassword  = "/api/auth/update_password"
)

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterResponse struct {
	Message           string `json:"message,omitempty"`
	VerificationToken string `json:"verification_token"`
	VerificationURL   string `json:"verification_url"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

type VerifyRequest struct {
	Token string `json:"token" binding:"required"`
}

type VerifyResponse struct {
	UserID int64 `json:"user_id"`
}

// VerifyEmailRequest serves both verify_email, which also needs the code,
// and verify_email_link.
type VerifyEmailRequest struct {
	VerificationCode  string `json:"verification_code,omitempty"`
	VerificationToken string `json:"verification_token" binding:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" binding:"required"`
	ResetCode   string `json:"reset_code" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

type UpdateUsernameRequest struct {
	NewUsername string `json:"new_username"`
}

type UpdatePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// UserResponse is returned by endpoints that echo the affected account.
type UserResponse struct {
	Message string      `json:"message,omitempty"`
	User    *model.User `json:"user,omitempty"`
}

// MessageResponse is returned by endpoints that only confirm success.
type MessageResponse struct {
	Message string `json:"message,omitempty"`
}

// Register creates an account that must be verified before login.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	var resp RegisterResponse
	if err := c.post(ctx, PathRegister, "", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	var resp LoginResponse
	err := c.post(ctx, PathLogin, "", LoginRequest{Username: username, Password: password}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Verify checks that tok is still accepted and returns its user id.
func (c *Client) Verify(ctx context.Context, tok string) (int64, error) {
	var resp VerifyResponse
	if err := c.post(ctx, PathVerify, "", VerifyRequest{Token: tok}, &resp); err != nil {
		return 0, err
	}
	return resp.UserID, nil
}

// VerifyEmail confirms an account with the mailed code.
func (c *Client) VerifyEmail(ctx context.Context, code, verificationToken string) (*UserResponse, error) {
	var resp UserResponse
	req := VerifyEmailRequest{VerificationCode: code, VerificationToken: verificationToken}
	if err := c.post(ctx, PathVerifyEmail, "", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VerifyEmailLink confirms an account with the token from the mailed link.
func (c *Client) VerifyEmailLink(ctx context.Context, verificationToken string) (*UserResponse, error) {
	var resp UserResponse
	req := VerifyEmailRequest{VerificationToken: verificationToken}
	if err := c.post(ctx, PathVerifyEmailLink, "", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ForgotPassword requests a reset code. The server answers success whether
// or not the address is registered.
func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	var resp MessageResponse
	if err := c.post(ctx, PathForgotPassword, "", ForgotPasswordRequest{Email: email}, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// ResetPassword sets a new password using a one-time reset code.
func (c *Client) ResetPassword(ctx context.Context, req ResetPasswordRequest) (*UserResponse, error) {
	var resp UserResponse
	if err := c.post(ctx, PathResetPassword, "", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateUsername renames the account that owns bearer.
func (c *Client) UpdateUsername(ctx context.Context, bearer, newUsername string) (*UserResponse, error) {
	var resp UserResponse
	req := UpdateUsernameRequest{NewUsername: newUsername}
	if err := c.post(ctx, PathUpdateUsername, bearer, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdatePassword changes the password of the account that owns bearer.
func (c *Client) UpdatePassword(ctx context.Context, bearer, current, next string) (string, error) {
	var resp MessageResponse
	req := UpdatePasswordRequest{CurrentPassword: current, NewPassword: next}
	if err := c.post(ctx, PathUpdatePassword, bearer, req, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}
