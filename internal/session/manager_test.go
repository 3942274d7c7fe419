package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/todopro/internal/api"
	"github.com/nhle/todopro/internal/credential"
	"github.com/nhle/todopro/internal/model"
	"github.com/nhle/todopro/internal/taskstore"
	"github.com/nhle/todopro/tests/testutil"
)

var alice = model.User{ID: 7, Username: "alice", Email: "alice@example.com"}

// fakeRemote implements AuthAPI and TaskAPI in memory.
type fakeRemote struct {
	mu sync.Mutex

	loginErr   error
	verifyID   int64
	verifyErr  error
	getErr     error
	saveErr    error
	remote     []api.RemoteTask
	getGate    chan struct{}
	verifyCode string

	logins   int
	verifies int
	saves    [][]model.Task
	tokens   []string
}

func (f *fakeRemote) Register(_ context.Context, req api.RegisterRequest) (*api.RegisterResponse, error) {
	if req.Username == "taken" {
		return nil, &api.AuthError{Status: 400, Message: "Пользователь уже существует"}
	}
	return &api.RegisterResponse{VerificationToken: "vtok", VerificationURL: "http://x/verify?token=vtok"}, nil
}

func (f *fakeRemote) Login(_ context.Context, username, password string) (*api.LoginResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logins++
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	if password != "secret1" {
		return nil, &api.AuthError{Status: 200, Message: "Неверные учетные данные"}
	}
	u := alice
	u.Username = username
	return &api.LoginResponse{Token: "tok-" + username, User: u}, nil
}

func (f *fakeRemote) Verify(_ context.Context, _ string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifies++
	return f.verifyID, f.verifyErr
}

func (f *fakeRemote) VerifyEmail(_ context.Context, code, token string) (*api.UserResponse, error) {
	if code != f.verifyCode || token != "vtok" {
		return nil, &api.AuthError{Status: 400, Message: "Неверный или истекший код подтверждения"}
	}
	u := alice
	return &api.UserResponse{Message: "Email успешно подтвержден!", User: &u}, nil
}

func (f *fakeRemote) VerifyEmailLink(_ context.Context, token string) (*api.UserResponse, error) {
	if token != "vtok" {
		return nil, &api.AuthError{Status: 400, Message: "Неверная или истекшая ссылка подтверждения"}
	}
	u := alice
	return &api.UserResponse{User: &u}, nil
}

func (f *fakeRemote) ForgotPassword(_ context.Context, _ string) (string, error) {
	return "sent", nil
}

func (f *fakeRemote) ResetPassword(_ context.Context, req api.ResetPasswordRequest) (*api.UserResponse, error) {
	if req.ResetCode != "123456" {
		return nil, &api.AuthError{Status: 400, Message: "Неверный код сброса пароля"}
	}
	return &api.UserResponse{Message: "ok"}, nil
}

func (f *fakeRemote) UpdateUsername(_ context.Context, bearer, name string) (*api.UserResponse, error) {
	if bearer == "" {
		return nil, &api.AuthError{Status: 401, Message: "Token required"}
	}
	u := alice
	u.Username = name
	return &api.UserResponse{User: &u}, nil
}

func (f *fakeRemote) UpdatePassword(_ context.Context, _, current, _ string) (string, error) {
	if current != "secret1" {
		return "", &api.AuthError{Status: 400, Message: "Неверный текущий пароль"}
	}
	return "Пароль успешно изменен", nil
}

func (f *fakeRemote) GetTasks(ctx context.Context, _ string) ([]api.RemoteTask, error) {
	f.mu.Lock()
	gate := f.getGate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	return append([]api.RemoteTask(nil), f.remote...), nil
}

func (f *fakeRemote) SaveTasks(_ context.Context, bearer string, tasks []model.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves = append(f.saves, tasks)
	f.tokens = append(f.tokens, bearer)
	return f.saveErr
}

func (f *fakeRemote) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves)
}

type harness struct {
	m      *Manager
	remote *fakeRemote
	vault  *credential.KeyringVault
	tasks  *taskstore.Store
	now    time.Time
}

func newHarness(t *testing.T, remote *fakeRemote) *harness {
	t.Helper()

	h := &harness{
		remote: remote,
		vault:  credential.NewKeyringVault(keyring.NewArrayKeyring(nil)),
		tasks:  taskstore.New(taskstore.WithClock(func() time.Time { return testutil.Epoch })),
		now:    testutil.Epoch,
	}
	h.m = NewManager(Config{
		Auth:  remote,
		Tasks: remote,
		Vault: h.vault,
		Cache: testutil.NewTestStore(t),
		Store: h.tasks,
		Clock: func() time.Time { return h.now },

		// Tests push explicitly through Flush.
		PushDebounce: time.Hour,
	})
	t.Cleanup(func() { _ = h.m.Close(context.Background()) })
	return h
}

func TestLoginHydratesStore(t *testing.T) {
	remote := &fakeRemote{remote: []api.RemoteTask{
		{ID: "1", Text: "from server", Priority: "high", CreatedAt: "2025-03-01 10:00:00"},
	}}
	h := newHarness(t, remote)

	user, err := h.m.Login(context.Background(), "alice", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, Authenticated, h.m.State())

	sess, ok := h.m.Current()
	require.True(t, ok)
	assert.Equal(t, "tok-alice", sess.Token)
	assert.Equal(t, testutil.Epoch.Add(model.SessionTTL), sess.Expiry)

	stored, found, err := h.vault.Load()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "tok-alice", stored.Token)

	tasks := h.tasks.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, model.PriorityHigh, tasks[0].Priority)
	assert.Equal(t, 0, remote.saveCount(), "hydration is not pushed back")
}

func TestLoginFailureKeepsAnonymous(t *testing.T) {
	h := newHarness(t, &fakeRemote{})

	_, err := h.m.Login(context.Background(), "alice", "wrong")
	require.Error(t, err)
	assert.Equal(t, "Неверные учетные данные", api.Message(err))
	assert.Equal(t, Anonymous, h.m.State())

	_, found, err := h.vault.Load()
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLoginTransportError(t *testing.T) {
	h := newHarness(t, &fakeRemote{loginErr: &api.TransportError{Op: api.PathLogin, Err: errors.New("refused")}})

	_, err := h.m.Login(context.Background(), "alice", "secret1")
	require.Error(t, err)
	assert.Equal(t, api.NetworkErrorMessage, api.Message(err))
	assert.Equal(t, Anonymous, h.m.State())
}

func TestLoginWhileAuthenticated(t *testing.T) {
	h := newHarness(t, &fakeRemote{})
	_, err := h.m.Login(context.Background(), "alice", "secret1")
	require.NoError(t, err)

	_, err = h.m.Login(context.Background(), "bob", "secret1")
	assert.ErrorIs(t, err, ErrAlreadyAuthenticated)
}

func TestHydrateFailureKeepsLocalTasks(t *testing.T) {
	remote := &fakeRemote{getErr: &api.TransportError{Op: api.PathTasksGet, Err: errors.New("down")}}
	h := newHarness(t, remote)

	_, err := h.m.Login(context.Background(), "alice", "secret1")
	require.NoError(t, err, "a failed hydration does not fail login")
	assert.Equal(t, Authenticated, h.m.State())

	var syncErr *SyncError
	require.ErrorAs(t, h.m.LastSyncError(), &syncErr)
	assert.Equal(t, "hydrate", syncErr.Op)
}

func TestMutationsArePushed(t *testing.T) {
	remote := &fakeRemote{}
	h := newHarness(t, remote)
	_, err := h.m.Login(context.Background(), "alice", "secret1")
	require.NoError(t, err)

	_, err = h.tasks.AddTask(taskstore.NewTask{Text: "buy milk"})
	require.NoError(t, err)
	require.NoError(t, h.m.Pusher().Flush(context.Background()))

	require.Equal(t, 1, remote.saveCount())
	assert.Equal(t, "tok-alice", remote.tokens[0])
	assert.Equal(t, "buy milk", remote.saves[0][0].Text)
}

func TestMutationsWhileAnonymousAreNotPushed(t *testing.T) {
	remote := &fakeRemote{}
	h := newHarness(t, remote)

	_, err := h.tasks.AddTask(taskstore.NewTask{Text: "local only"})
	require.NoError(t, err)
	require.NoError(t, h.m.Pusher().Flush(context.Background()))

	assert.Equal(t, 0, remote.saveCount())
}

func TestPushFailureIsBackgroundFailure(t *testing.T) {
	remote := &fakeRemote{saveErr: &api.AuthError{Status: 401, Message: "Token expired"}}
	h := newHarness(t, remote)
	_, err := h.m.Login(context.Background(), "alice", "secret1")
	require.NoError(t, err)

	_, err = h.tasks.AddTask(taskstore.NewTask{Text: "x"})
	require.NoError(t, err)
	require.Error(t, h.m.Pusher().Flush(context.Background()))

	assert.Equal(t, Authenticated, h.m.State(), "local state is untouched")
	assert.Equal(t, 1, h.tasks.Len())
	var syncErr *SyncError
	require.ErrorAs(t, h.m.LastSyncError(), &syncErr)
	assert.Equal(t, "push", syncErr.Op)
}

func TestLogoutClearsEverything(t *testing.T) {
	remote := &fakeRemote{}
	h := newHarness(t, remote)
	_, err := h.m.Login(context.Background(), "alice", "secret1")
	require.NoError(t, err)
	_, err = h.tasks.AddTask(taskstore.NewTask{Text: "pending push"})
	require.NoError(t, err)

	require.NoError(t, h.m.Logout(context.Background()))

	assert.Equal(t, Anonymous, h.m.State())
	assert.Equal(t, 0, h.tasks.Len())
	_, ok := h.m.Current()
	assert.False(t, ok)
	_, found, err := h.vault.Load()
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 1, remote.saveCount(), "pending changes are pushed before the session ends")
}

func TestLateHydrationAfterLogoutIsDropped(t *testing.T) {
	remote := &fakeRemote{getGate: make(chan struct{})}
	h := newHarness(t, remote)

	// Log in without waiting on the gated hydration.
	done := make(chan error, 1)
	go func() {
		_, err := h.m.Login(context.Background(), "alice", "secret1")
		done <- err
	}()
	require.Eventually(t, func() bool { return h.m.State() == Authenticated }, time.Second, time.Millisecond)

	remote.mu.Lock()
	remote.remote = []api.RemoteTask{{ID: "late", Text: "late"}}
	remote.mu.Unlock()

	require.NoError(t, h.m.Logout(context.Background()))
	close(remote.getGate)
	require.NoError(t, <-done)

	assert.Equal(t, 0, h.tasks.Len(), "a response for an ended session is dropped")
	assert.Equal(t, Anonymous, h.m.State())
}

func TestRestoreSessionValid(t *testing.T) {
	remote := &fakeRemote{verifyID: alice.ID, remote: []api.RemoteTask{{ID: "r", Text: "remote"}}}
	h := newHarness(t, remote)
	require.NoError(t, h.vault.Save(model.Session{Token: "stored", User: alice, Expiry: h.now.Add(time.Hour)}))

	ok, err := h.m.RestoreSession(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, Authenticated, h.m.State())

	sess, _ := h.m.Current()
	assert.Equal(t, h.now.Add(model.SessionTTL), sess.Expiry, "expiry is refreshed")
	assert.Equal(t, 1, h.tasks.Len())
}

func TestRestoreSessionExpiredSkipsNetwork(t *testing.T) {
	remote := &fakeRemote{verifyID: alice.ID}
	h := newHarness(t, remote)
	require.NoError(t, h.vault.Save(model.Session{Token: "stored", User: alice, Expiry: h.now.Add(-time.Second)}))

	ok, err := h.m.RestoreSession(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, Anonymous, h.m.State())
	assert.Equal(t, 0, remote.verifies)

	_, found, err := h.vault.Load()
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRestoreSessionRejected(t *testing.T) {
	remote := &fakeRemote{verifyErr: &api.AuthError{Status: 401, Message: "Invalid token"}}
	h := newHarness(t, remote)
	require.NoError(t, h.vault.Save(model.Session{Token: "stored", User: alice, Expiry: h.now.Add(time.Hour)}))

	ok, err := h.m.RestoreSession(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, Anonymous, h.m.State())

	_, found, err := h.vault.Load()
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRestoreSessionOfflineTrustsCache(t *testing.T) {
	offline := &api.TransportError{Op: api.PathVerify, Err: errors.New("offline")}
	remote := &fakeRemote{verifyErr: offline, getErr: offline}
	h := newHarness(t, remote)

	expiry := h.now.Add(time.Hour)
	require.NoError(t, h.vault.Save(model.Session{Token: "stored", User: alice, Expiry: expiry}))
	require.NoError(t, h.m.cache.ReplaceTasks(context.Background(), alice.ID, []model.Task{testutil.Task("c", "cached", time.Hour)}))

	ok, err := h.m.RestoreSession(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	sess, _ := h.m.Current()
	assert.True(t, expiry.Equal(sess.Expiry), "expiry is not refreshed without the server")
	tasks := h.tasks.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "cached", tasks[0].Text)
	assert.Error(t, h.m.LastSyncError())
}

func TestRestoreSessionNothingStored(t *testing.T) {
	h := newHarness(t, &fakeRemote{})

	ok, err := h.m.RestoreSession(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, h.remote.verifies)
}

func TestRegisterThenVerifyLogsIn(t *testing.T) {
	remote := &fakeRemote{verifyCode: "123456"}
	h := newHarness(t, remote)

	v, err := h.m.Register(context.Background(), "alice", "alice@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "vtok", v.Token)
	assert.Equal(t, Unverified, h.m.State())
	assert.Equal(t, "alice@example.com", h.m.PendingEmail())

	_, err = h.m.VerifyEmail(context.Background(), "000000", "")
	require.Error(t, err)
	assert.Equal(t, Unverified, h.m.State(), "a wrong code keeps the registration pending")

	user, err := h.m.VerifyEmail(context.Background(), "123456", "")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, Authenticated, h.m.State())
	assert.Empty(t, h.m.PendingEmail())
}

func TestRegisterFailureRestoresState(t *testing.T) {
	h := newHarness(t, &fakeRemote{})

	_, err := h.m.Register(context.Background(), "taken", "t@example.com", "secret1")
	require.Error(t, err)
	assert.Equal(t, "Пользователь уже существует", api.Message(err))
	assert.Equal(t, Anonymous, h.m.State())
}

func TestVerifyEmailLinkWithoutPending(t *testing.T) {
	h := newHarness(t, &fakeRemote{})

	_, err := h.m.VerifyEmailLink(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoPendingVerification)

	user, err := h.m.VerifyEmailLink(context.Background(), "vtok")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, user.ID)
	assert.Equal(t, Anonymous, h.m.State(), "no remembered credentials, no login")
}

func TestChangeUsernameUpdatesSession(t *testing.T) {
	h := newHarness(t, &fakeRemote{})

	_, err := h.m.ChangeUsername(context.Background(), "alicia")
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = h.m.Login(context.Background(), "alice", "secret1")
	require.NoError(t, err)

	user, err := h.m.ChangeUsername(context.Background(), "alicia")
	require.NoError(t, err)
	assert.Equal(t, "alicia", user.Username)

	sess, _ := h.m.Current()
	assert.Equal(t, "alicia", sess.User.Username)
	stored, _, err := h.vault.Load()
	require.NoError(t, err)
	assert.Equal(t, "alicia", stored.User.Username)
}

func TestChangePassword(t *testing.T) {
	h := newHarness(t, &fakeRemote{})

	_, err := h.m.ChangePassword(context.Background(), "secret1", "secret2")
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = h.m.Login(context.Background(), "alice", "secret1")
	require.NoError(t, err)

	_, err = h.m.ChangePassword(context.Background(), "nope", "secret2")
	assert.Equal(t, "Неверный текущий пароль", api.Message(err))

	msg, err := h.m.ChangePassword(context.Background(), "secret1", "secret2")
	require.NoError(t, err)
	assert.Equal(t, "Пароль успешно изменен", msg)
}

func TestResetPasswordPassThrough(t *testing.T) {
	h := newHarness(t, &fakeRemote{})

	msg, err := h.m.ForgotPassword(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "sent", msg)

	_, err = h.m.ResetPassword(context.Background(), "alice@example.com", "999999", "secret2")
	assert.Equal(t, "Неверный код сброса пароля", api.Message(err))

	msg, err = h.m.ResetPassword(context.Background(), "alice@example.com", "123456", "secret2")
	require.NoError(t, err)
	assert.Equal(t, "ok", msg)
}

func TestOnStateChange(t *testing.T) {
	h := newHarness(t, &fakeRemote{})

	var mu sync.Mutex
	var seen []State
	stop := h.m.OnStateChange(func(s State) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	_, err := h.m.Login(context.Background(), "alice", "secret1")
	require.NoError(t, err)
	stop()
	require.NoError(t, h.m.Logout(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{Authenticating, Authenticated}, seen)
}
