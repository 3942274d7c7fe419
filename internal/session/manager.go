// Package session owns the client's authentication state and binds the
// task store to the remote collection of the signed-in user.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/todopro/internal/api"
	"github.com/nhle/todopro/internal/credential"
	"github.com/nhle/todopro/internal/model"
	"github.com/nhle/todopro/internal/store"
	tasksync "github.com/nhle/todopro/internal/sync"
	"github.com/nhle/todopro/internal/taskstore"
)

// State is the authentication state of the client.
type State int

const (
	Anonymous State = iota
	Authenticating
	Unverified
	Authenticated
)

func (s State) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case Unverified:
		return "unverified"
	case Authenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

var (
	// ErrNotAuthenticated is returned by operations that need a session.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrAlreadyAuthenticated is returned by Login and Register while a
	// session is active. Log out first.
	ErrAlreadyAuthenticated = errors.New("already authenticated")

	// ErrNoPendingVerification is returned by VerifyEmail when no
	// verification token was given and none is remembered.
	ErrNoPendingVerification = errors.New("no pending e-mail verification")

	// ErrStaleResponse is returned when a response arrived after the
	// session it belonged to was replaced or ended.
	ErrStaleResponse = errors.New("response belongs to an ended session")
)

// AuthAPI is the remote authentication service.
type AuthAPI interface {
	Register(ctx context.Context, req api.RegisterRequest) (*api.RegisterResponse, error)
	Login(ctx context.Context, username, password string) (*api.LoginResponse, error)
	Verify(ctx context.Context, token string) (int64, error)
	VerifyEmail(ctx context.Context, code, verificationToken string) (*api.UserResponse, error)
	VerifyEmailLink(ctx context.Context, verificationToken string) (*api.UserResponse, error)
	ForgotPassword(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, req api.ResetPasswordRequest) (*api.UserResponse, error)
	UpdateUsername(ctx context.Context, bearer, newUsername string) (*api.UserResponse, error)
	UpdatePassword(ctx context.Context, bearer, current, next string) (string, error)
}

// TaskAPI is the remote task collection service.
type TaskAPI interface {
	GetTasks(ctx context.Context, bearer string) ([]api.RemoteTask, error)
	SaveTasks(ctx context.Context, bearer string, tasks []model.Task) error
}

// Config wires a Manager to its collaborators. Auth, Tasks, Vault and Store
// are required.
type Config struct {
	Auth  AuthAPI
	Tasks TaskAPI
	Vault credential.Vault

	// Cache keeps the last known collection per user. Optional.
	Cache store.TaskStore

	Store  *taskstore.Store
	Logger *zap.SugaredLogger
	Clock  func() time.Time

	// TTL is the local lifetime of a session. Defaults to model.SessionTTL.
	TTL time.Duration

	PushDebounce time.Duration
	PushTimeout  time.Duration
}

// Verification is what the client needs to confirm a fresh account.
type Verification struct {
	Token string
	URL   string
}

// SyncError records a failed background operation.
type SyncError struct {
	Op  string
	Err error
	At  time.Time
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

type pendingRegistration struct {
	username string
	password string
	email    string
	token    string
}

// Manager drives the authentication state machine. All methods are safe for
// concurrent use.
type Manager struct {
	auth   AuthAPI
	tasks  TaskAPI
	vault  credential.Vault
	cache  store.TaskStore
	store  *taskstore.Store
	logger *zap.SugaredLogger
	now    func() time.Time
	ttl    time.Duration

	pusher      *tasksync.Pusher
	unsubscribe func()

	// transition serializes state changes against applying hydration results.
	transition sync.Mutex

	mu          sync.Mutex
	state       State
	session     model.Session
	gen         uint64
	pending     *pendingRegistration
	lastSyncErr error
	listeners   map[int]func(State)
	nextID      int
}

// NewManager creates a Manager in the Anonymous state and subscribes it to
// the task store.
func NewManager(cfg Config) *Manager {
	m := &Manager{
		auth:      cfg.Auth,
		tasks:     cfg.Tasks,
		vault:     cfg.Vault,
		cache:     cfg.Cache,
		store:     cfg.Store,
		logger:    cfg.Logger,
		now:       cfg.Clock,
		ttl:       cfg.TTL,
		listeners: make(map[int]func(State)),
	}
	if m.logger == nil {
		m.logger = zap.NewNop().Sugar()
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.ttl <= 0 {
		m.ttl = model.SessionTTL
	}

	m.pusher = tasksync.NewPusher(tasksync.SaverFunc(m.saveTasks), tasksync.PusherConfig{
		Debounce: cfg.PushDebounce,
		Timeout:  cfg.PushTimeout,
		Logger:   m.logger,
	})
	m.pusher.Start()
	m.unsubscribe = m.store.OnChange(m.onTasksChanged)
	return m
}

// Close pushes any pending changes and stops background work.
func (m *Manager) Close(ctx context.Context) error {
	err := m.pusher.Flush(ctx)
	m.pusher.Stop()
	m.unsubscribe()
	if err != nil && !errors.Is(err, tasksync.ErrPusherStopped) {
		return fmt.Errorf("flushing tasks: %w", err)
	}
	return nil
}

// Pusher returns the pusher persisting the collection remotely.
func (m *Manager) Pusher() *tasksync.Pusher {
	return m.pusher
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Current returns the active session, if any.
func (m *Manager) Current() (model.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Authenticated {
		return model.Session{}, false
	}
	return m.session, true
}

// PendingEmail returns the address of a registration awaiting verification.
func (m *Manager) PendingEmail() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return ""
	}
	return m.pending.email
}

// LastSyncError returns the most recent background failure, or nil.
func (m *Manager) LastSyncError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSyncErr
}

// OnStateChange registers fn to be called after every state transition.
// The returned function unregisters it.
func (m *Manager) OnStateChange(fn func(State)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// Register creates an account. On success the manager is Unverified and
// remembers the credentials so that a later verification can sign in.
func (m *Manager) Register(ctx context.Context, username, email, password string) (Verification, error) {
	gen, prev, err := m.beginAuth()
	if err != nil {
		return Verification{}, err
	}

	resp, err := m.auth.Register(ctx, api.RegisterRequest{
		Username: username,
		Email:    email,
		Password: password,
	})
	if err != nil {
		m.abortAuth(gen, prev)
		return Verification{}, err
	}

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return Verification{}, ErrStaleResponse
	}
	m.pending = &pendingRegistration{
		username: username,
		password: password,
		email:    email,
		token:    resp.VerificationToken,
	}
	m.state = Unverified
	m.mu.Unlock()
	m.notify(Unverified)

	m.logger.Infow("account registered", "username", username)
	return Verification{Token: resp.VerificationToken, URL: resp.VerificationURL}, nil
}

// Login signs in, persists the session and hydrates the task store.
// A failed hydration does not fail the login.
func (m *Manager) Login(ctx context.Context, username, password string) (model.User, error) {
	gen, prev, err := m.beginAuth()
	if err != nil {
		return model.User{}, err
	}

	resp, err := m.auth.Login(ctx, username, password)
	if err == nil && resp.Token == "" {
		err = &api.TransportError{Op: api.PathLogin, Err: errors.New("response carries no token")}
	}
	if err != nil {
		m.abortAuth(gen, prev)
		return model.User{}, err
	}

	sess := model.Session{Token: resp.Token, User: resp.User, Expiry: m.now().Add(m.ttl)}
	if !m.establish(gen, sess) {
		return model.User{}, ErrStaleResponse
	}

	m.logger.Infow("logged in", "user_id", sess.User.ID, "username", sess.User.Username)
	_ = m.Hydrate(ctx)
	return sess.User, nil
}

// Logout pushes pending changes with the ending session, then discards the
// session and the in-memory collection. The server keeps no session state,
// so nothing is revoked remotely.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.pusher.Flush(ctx); err != nil && !errors.Is(err, tasksync.ErrPusherStopped) {
		m.logger.Warnw("pushing before logout failed", "error", err)
	}

	m.transition.Lock()
	defer m.transition.Unlock()

	m.mu.Lock()
	m.gen++
	m.state = Anonymous
	m.session = model.Session{}
	m.pending = nil
	m.mu.Unlock()

	m.pusher.Cancel()
	m.store.Reset()
	m.notify(Anonymous)

	if err := m.vault.Clear(); err != nil {
		return fmt.Errorf("clearing stored session: %w", err)
	}
	m.logger.Infow("logged out")
	return nil
}

// RestoreSession resumes a persisted session. It reports whether the
// manager ended up Authenticated.
//
// An expired session is discarded without contacting the server. A session
// the server rejects is discarded. When the server cannot be reached the
// session is trusted as stored.
func (m *Manager) RestoreSession(ctx context.Context) (bool, error) {
	sess, ok, err := m.vault.Load()
	if err != nil {
		m.backgroundFailure("restore", err)
		return false, nil
	}
	if !ok {
		return false, nil
	}
	if !sess.Valid(m.now()) {
		m.logger.Infow("stored session expired", "user_id", sess.User.ID)
		return false, m.discard()
	}

	gen, prev, err := m.beginAuth()
	if err != nil {
		return false, err
	}

	userID, err := m.auth.Verify(ctx, sess.Token)
	switch {
	case err == nil && userID != 0 && sess.User.ID != 0 && userID != sess.User.ID:
		m.logger.Warnw("stored session belongs to another user", "stored", sess.User.ID, "verified", userID)
		m.abortAuth(gen, prev)
		return false, m.discard()
	case err == nil:
		sess.Expiry = m.now().Add(m.ttl)
	case api.IsTransportError(err):
		m.backgroundFailure("verify", err)
	default:
		m.logger.Infow("stored session rejected", "user_id", sess.User.ID, "error", err)
		m.abortAuth(gen, prev)
		return false, m.discard()
	}

	if !m.establish(gen, sess) {
		return false, ErrStaleResponse
	}
	_ = m.Hydrate(ctx)
	return true, nil
}

// VerifyEmail confirms an account with the mailed 6-digit code. An empty
// token means the one remembered from Register. When the registration
// credentials are remembered the manager signs in afterwards.
func (m *Manager) VerifyEmail(ctx context.Context, code, token string) (model.User, error) {
	p, token, err := m.verificationTarget(token)
	if err != nil {
		return model.User{}, err
	}

	resp, err := m.auth.VerifyEmail(ctx, code, token)
	if err != nil {
		return model.User{}, err
	}
	return m.afterVerification(ctx, p, resp)
}

// VerifyEmailLink confirms an account with the token from the mailed link.
func (m *Manager) VerifyEmailLink(ctx context.Context, token string) (model.User, error) {
	p, token, err := m.verificationTarget(token)
	if err != nil {
		return model.User{}, err
	}

	resp, err := m.auth.VerifyEmailLink(ctx, token)
	if err != nil {
		return model.User{}, err
	}
	return m.afterVerification(ctx, p, resp)
}

// ForgotPassword asks the server to mail a reset code and returns its
// confirmation message.
func (m *Manager) ForgotPassword(ctx context.Context, email string) (string, error) {
	return m.auth.ForgotPassword(ctx, email)
}

// ResetPassword sets a new password using a mailed reset code.
func (m *Manager) ResetPassword(ctx context.Context, email, code, newPassword string) (string, error) {
	resp, err := m.auth.ResetPassword(ctx, api.ResetPasswordRequest{
		Email:       email,
		ResetCode:   code,
		NewPassword: newPassword,
	})
	if err != nil {
		return "", err
	}
	return resp.Message, nil
}

// ChangeUsername renames the signed-in user and updates the stored session.
func (m *Manager) ChangeUsername(ctx context.Context, newUsername string) (model.User, error) {
	sess, gen, ok := m.active()
	if !ok {
		return model.User{}, ErrNotAuthenticated
	}

	resp, err := m.auth.UpdateUsername(ctx, sess.Token, newUsername)
	if err != nil {
		return model.User{}, err
	}

	user := sess.User
	user.Username = newUsername
	if resp.User != nil {
		user = *resp.User
	}

	m.mu.Lock()
	if m.gen != gen || m.state != Authenticated {
		m.mu.Unlock()
		return user, ErrStaleResponse
	}
	m.session.User = user
	sess = m.session
	m.mu.Unlock()

	if err := m.vault.Save(sess); err != nil {
		m.backgroundFailure("save session", err)
	}
	return user, nil
}

// ChangePassword changes the password of the signed-in user.
func (m *Manager) ChangePassword(ctx context.Context, current, next string) (string, error) {
	sess, _, ok := m.active()
	if !ok {
		return "", ErrNotAuthenticated
	}
	return m.auth.UpdatePassword(ctx, sess.Token, current, next)
}

// Hydrate replaces the task store with the remote collection of the
// signed-in user. A fetch failure leaves the store as it was and is
// recorded as a background failure.
func (m *Manager) Hydrate(ctx context.Context) error {
	sess, gen, ok := m.active()
	if !ok {
		return ErrNotAuthenticated
	}

	remote, err := m.tasks.GetTasks(ctx, sess.Token)
	if err != nil {
		m.backgroundFailure("hydrate", err)
		return err
	}
	tasks := NormalizeTasks(remote, m.now())

	m.transition.Lock()
	defer m.transition.Unlock()

	m.mu.Lock()
	current := m.gen == gen && m.state == Authenticated
	m.mu.Unlock()
	if !current {
		m.logger.Debugw("dropping late hydration", "tasks", len(tasks))
		return ErrStaleResponse
	}

	m.store.SetTasks(tasks)
	m.logger.Debugw("tasks hydrated", "tasks", len(tasks))
	return nil
}

func (m *Manager) verificationTarget(token string) (*pendingRegistration, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.pending
	if token == "" {
		if p == nil {
			return nil, "", ErrNoPendingVerification
		}
		token = p.token
	}
	if p != nil && p.token != token {
		p = nil
	}
	return p, token, nil
}

func (m *Manager) afterVerification(ctx context.Context, p *pendingRegistration, resp *api.UserResponse) (model.User, error) {
	var user model.User
	if resp != nil && resp.User != nil {
		user = *resp.User
	}

	m.mu.Lock()
	if m.pending == p && p != nil {
		m.pending = nil
		if m.state == Unverified {
			m.state = Anonymous
		}
	}
	state := m.state
	m.mu.Unlock()
	m.notify(state)

	if p == nil || p.password == "" {
		return user, nil
	}

	loggedIn, err := m.Login(ctx, p.username, p.password)
	if err != nil {
		m.logger.Warnw("automatic login after verification failed", "username", p.username, "error", err)
		return user, nil
	}
	return loggedIn, nil
}

// beginAuth moves to Authenticating and returns the generation the caller
// must still hold when the response arrives.
func (m *Manager) beginAuth() (uint64, State, error) {
	m.mu.Lock()
	if m.state == Authenticated {
		m.mu.Unlock()
		return 0, Authenticated, ErrAlreadyAuthenticated
	}
	m.gen++
	gen := m.gen
	prev := m.state
	if prev == Authenticating {
		prev = Anonymous
	}
	m.state = Authenticating
	m.mu.Unlock()

	m.notify(Authenticating)
	return gen, prev, nil
}

func (m *Manager) abortAuth(gen uint64, prev State) {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	m.state = prev
	m.mu.Unlock()
	m.notify(prev)
}

// establish makes sess the active session if gen is still current, then
// persists it and seeds the store from the cache.
func (m *Manager) establish(gen uint64, sess model.Session) bool {
	m.transition.Lock()
	defer m.transition.Unlock()

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return false
	}
	m.session = sess
	m.state = Authenticated
	m.pending = nil
	m.mu.Unlock()

	m.notify(Authenticated)

	if err := m.vault.Save(sess); err != nil {
		m.backgroundFailure("save session", err)
	}
	m.seedFromCache(sess.User.ID)
	return true
}

func (m *Manager) seedFromCache(userID int64) {
	if m.cache == nil {
		return
	}
	cached, err := m.cache.GetTasks(context.Background(), userID)
	if err != nil {
		m.backgroundFailure("read cache", err)
		return
	}
	if len(cached) > 0 {
		m.store.SetTasks(cached)
	}
}

func (m *Manager) discard() error {
	m.mu.Lock()
	m.session = model.Session{}
	m.mu.Unlock()

	if err := m.vault.Clear(); err != nil {
		return fmt.Errorf("clearing stored session: %w", err)
	}
	return nil
}

func (m *Manager) active() (model.Session, uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Authenticated {
		return model.Session{}, 0, false
	}
	return m.session, m.gen, true
}

func (m *Manager) onTasksChanged(ev taskstore.ChangeEvent) {
	if ev.Reason == taskstore.ReasonReset {
		return
	}
	sess, _, ok := m.active()
	if !ok {
		return
	}

	if m.cache != nil {
		if err := m.cache.ReplaceTasks(context.Background(), sess.User.ID, ev.Tasks); err != nil {
			m.backgroundFailure("write cache", err)
		}
	}
	if ev.Reason == taskstore.ReasonMutation {
		m.pusher.MarkDirty(sess.Token, ev.Tasks)
	}
}

func (m *Manager) saveTasks(ctx context.Context, token string, tasks []model.Task) error {
	err := m.tasks.SaveTasks(ctx, token, tasks)
	if err != nil {
		m.backgroundFailure("push", err)
	}
	return err
}

// backgroundFailure records a failure of work the user did not wait for.
// Local state is left untouched.
func (m *Manager) backgroundFailure(op string, err error) {
	m.logger.Warnw("background operation failed", "op", op, "error", err)

	m.mu.Lock()
	m.lastSyncErr = &SyncError{Op: op, Err: err, At: m.now()}
	m.mu.Unlock()
}

func (m *Manager) notify(s State) {
	m.mu.Lock()
	fns := make([]func(State), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}
