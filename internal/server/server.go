// Package server implements the remote collaborators of the client: the
// auth endpoints and the per-user task collection, served by gin.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nhle/todopro/internal/mailer"
	"github.com/nhle/todopro/internal/store"
)

const (
	shutdownTimeout = 5 * time.Second
	resetCodeTTL    = 15 * time.Minute
	rateWindow      = time.Minute
)

// Config wires a Server. Store is required.
type Config struct {
	Store   store.Store
	Mailer  mailer.Mailer
	Hasher  *PasswordHasher
	Logger  *zap.SugaredLogger
	Clock   func() time.Time
	BaseURL string

	// Limiter rate-limits login and password reset by client IP. Nil
	// disables rate limiting.
	Limiter   Limiter
	RateLimit int

	// Release puts gin in release mode.
	Release bool
}

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	store     store.Store
	mailer    mailer.Mailer
	hasher    *PasswordHasher
	logger    *zap.SugaredLogger
	now       func() time.Time
	baseURL   string
	limiter   Limiter
	rateLimit int
	release   bool
}

func New(cfg Config) *Server {
	s := &Server{
		store:     cfg.Store,
		mailer:    cfg.Mailer,
		hasher:    cfg.Hasher,
		logger:    cfg.Logger,
		now:       cfg.Clock,
		baseURL:   cfg.BaseURL,
		limiter:   cfg.Limiter,
		rateLimit: cfg.RateLimit,
		release:   cfg.Release,
	}
	if s.logger == nil {
		s.logger = zap.NewNop().Sugar()
	}
	if s.mailer == nil {
		s.mailer = mailer.NewLogMailer(s.logger)
	}
	if s.hasher == nil {
		s.hasher = NewPasswordHasher(DefaultBcryptCost)
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.rateLimit <= 0 {
		s.rateLimit = 10
	}
	return s
}

// Router builds the gin engine with middleware and routes.
func (s *Server) Router() *gin.Engine {
	if s.release {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())
	r.Use(s.requestLogger())

	auth := r.Group("/api/auth")
	limited := auth.Group("", s.rateLimited())
	{
		auth.POST("/register", s.register)
		limited.POST("/login", s.login)
		auth.POST("/verify", s.verify)
		auth.POST("/verify_email", s.verifyEmail)
		auth.POST("/verify_email_link", s.verifyEmailLink)
		limited.POST("/forgot_password", s.forgotPassword)
		limited.POST("/reset_password", s.resetPassword)
		auth.POST("/update_username", s.requireToken(), s.updateUsername)
		auth.POST("/update_password", s.requireToken(), s.updatePassword)
	}

	tasks := r.Group("/api/tasks", s.requireToken())
	{
		tasks.POST("/get", s.getTasks)
		tasks.POST("/save", s.saveTasks)
	}

	r.NoRoute(func(c *gin.Context) {
		fail(c, http.StatusNotFound, "Not found")
	})
	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		fail(c, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infow("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serving on %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Infow("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	s.logger.Infow("server stopped")
	return nil
}

func (s *Server) verificationURL(token string) string {
	return s.baseURL + "/verify?token=" + token
}
