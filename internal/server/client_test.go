package server

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/todopro/internal/api"
	"github.com/nhle/todopro/internal/inbox"
	"github.com/nhle/todopro/internal/model"
	"github.com/nhle/todopro/tests/testutil"
)

func TestClientAgainstServer(t *testing.T) {
	env := newTestEnv(t, nil)
	ts := httptest.NewServer(env.router)
	defer ts.Close()

	ctx := context.Background()
	client := api.NewClient(ts.URL)

	reg, err := client.Register(ctx, api.RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "http://todo.test/verify?token="+reg.VerificationToken, reg.VerificationURL)

	_, err = client.Login(ctx, "alice", "secret1")
	require.Error(t, err)
	assert.True(t, api.IsAuthError(err))
	assert.Equal(t, msgNotActivated, api.Message(err))

	v, err := inbox.ExtractVerification(env.mail.last(t).Text)
	require.NoError(t, err)
	verified, err := client.VerifyEmail(ctx, v.Code, reg.VerificationToken)
	require.NoError(t, err)
	require.NotNil(t, verified.User)
	assert.Equal(t, "alice", verified.User.Username)

	login, err := client.Login(ctx, "alice", "secret1")
	require.NoError(t, err)
	id, err := client.Verify(ctx, login.Token)
	require.NoError(t, err)
	assert.Equal(t, login.User.ID, id)

	due := testutil.Epoch.Add(48 * time.Hour)
	tasks := []model.Task{
		testutil.Task("t1", "first", time.Hour),
		testutil.Task("t2", "second", 2*time.Hour),
	}
	tasks[0].DueDate = &due
	tasks[1].Completed = true
	tasks[1].CompletedAt = model.TimePtr(testutil.Epoch)
	require.NoError(t, client.SaveTasks(ctx, login.Token, tasks))

	remote, err := client.GetTasks(ctx, login.Token)
	require.NoError(t, err)
	require.Len(t, remote, 2)
	assert.Equal(t, "t1", remote[0].ID)
	assert.Equal(t, "first", remote[0].Text)
	got, err := api.ParseTime(remote[0].DueDate)
	require.NoError(t, err)
	assert.True(t, got.Equal(due))
	assert.True(t, remote[1].Completed)

	_, err = client.GetTasks(ctx, "not-a-token")
	require.Error(t, err)
	assert.True(t, api.IsAuthError(err))

	renamed, err := client.UpdateUsername(ctx, login.Token, "alicia")
	require.NoError(t, err)
	assert.Equal(t, "alicia", renamed.User.Username)
}

func TestClientBodyToken(t *testing.T) {
	env := newTestEnv(t, nil)
	ts := httptest.NewServer(env.router)
	defer ts.Close()

	tok := env.registerVerified(t, "alice", "alice@example.com", "secret1")
	client := api.NewClient(ts.URL, api.WithBodyToken())

	require.NoError(t, client.SaveTasks(context.Background(), tok, []model.Task{testutil.Task("x", "via body", 0)}))
	remote, err := client.GetTasks(context.Background(), tok)
	require.NoError(t, err)
	assert.Len(t, remote, 1)
}
