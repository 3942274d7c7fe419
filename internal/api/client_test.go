package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/todopro/internal/model"
)

// captured records the last request seen by a test server.
type captured struct {
	path   string
	auth   string
	method string
	body   map[string]interface{}
}

func newServer(t *testing.T, status int, response string) (*httptest.Server, *captured) {
	t.Helper()
	c := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.path = r.URL.Path
		c.auth = r.Header.Get("Authorization")
		c.method = r.Method
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &c.body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

func TestLoginSuccess(t *testing.T) {
	srv, got := newServer(t, http.StatusOK,
		`{"success":true,"token":"abc","user":{"id":5,"username":"alice","email":"a@example.com"}}`)

	resp, err := NewClient(srv.URL+"/").Login(context.Background(), "alice", "secret")
	require.NoError(t, err)

	assert.Equal(t, PathLogin, got.path)
	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "", got.auth)
	assert.Equal(t, "alice", got.body["username"])
	assert.Equal(t, "abc", resp.Token)
	assert.Equal(t, model.User{ID: 5, Username: "alice", Email: "a@example.com"}, resp.User)
}

func TestFailureEnvelopeIsAuthError(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `{"success":false,"message":"Неверные учетные данные"}`)

	_, err := NewClient(srv.URL).Login(context.Background(), "alice", "wrong")

	require.Error(t, err)
	assert.True(t, IsAuthError(err))
	assert.False(t, IsTransportError(err))
	assert.Equal(t, "Неверные учетные данные", Message(err))
}

func TestUnauthorizedWithoutMessage(t *testing.T) {
	srv, _ := newServer(t, http.StatusUnauthorized, `{"success":false}`)

	_, err := NewClient(srv.URL).Verify(context.Background(), "tok")

	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, http.StatusUnauthorized, authErr.Status)
	assert.Equal(t, "Unauthorized", authErr.Message)
}

func TestServerErrorIsTransportError(t *testing.T) {
	srv, _ := newServer(t, http.StatusInternalServerError, `{"success":false,"message":"db down"}`)

	_, err := NewClient(srv.URL).GetTasks(context.Background(), "tok")

	assert.True(t, IsTransportError(err))
	assert.Equal(t, NetworkErrorMessage, Message(err))
}

func TestGarbageBodyIsTransportError(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `<html>proxy error</html>`)

	_, err := NewClient(srv.URL).Verify(context.Background(), "tok")
	assert.True(t, IsTransportError(err))
}

func TestConnectionRefusedIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url).Verify(context.Background(), "tok")
	assert.True(t, IsTransportError(err))
}

func TestTimeoutIsTransportError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	c := NewClient(srv.URL, WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}))
	_, err := c.Verify(context.Background(), "tok")
	assert.True(t, IsTransportError(err))
}

func TestBearerHeaderAndBodyFallback(t *testing.T) {
	srv, got := newServer(t, http.StatusOK, `{"success":true,"user":{"id":1,"username":"neo","email":"n@example.com"}}`)

	c := NewClient(srv.URL, WithBodyToken())
	resp, err := c.UpdateUsername(context.Background(), "tok-1", "neo")
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok-1", got.auth)
	assert.Equal(t, "tok-1", got.body["token"])
	assert.Equal(t, "neo", got.body["new_username"])
	require.NotNil(t, resp.User)
	assert.Equal(t, "neo", resp.User.Username)
}

func TestSaveTasksSendsCamelCase(t *testing.T) {
	srv, got := newServer(t, http.StatusOK, `{"success":true}`)

	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	err := NewClient(srv.URL).SaveTasks(context.Background(), "tok", []model.Task{
		{ID: "t1", Text: "A", Category: "work", Priority: model.PriorityHigh, CreatedAt: created},
	})
	require.NoError(t, err)

	assert.Equal(t, PathTasksSave, got.path)
	tasks := got.body["tasks"].([]interface{})
	require.Len(t, tasks, 1)
	first := tasks[0].(map[string]interface{})
	assert.Equal(t, "t1", first["id"])
	assert.Equal(t, "2025-01-02T03:04:05Z", first["createdAt"])
	_, hasDue := first["dueDate"]
	assert.False(t, hasDue)
}

func TestSaveEmptyCollectionSendsEmptyArray(t *testing.T) {
	srv, got := newServer(t, http.StatusOK, `{"success":true}`)

	require.NoError(t, NewClient(srv.URL).SaveTasks(context.Background(), "tok", nil))
	assert.Equal(t, []interface{}{}, got.body["tasks"])
}

func TestGetTasksDecodesDatabaseRows(t *testing.T) {
	srv, got := newServer(t, http.StatusOK, `{"success":true,"tasks":[
		{"id":"a","user_id":3,"text":"Row","completed":"1","category":"home","priority":"low",
		 "due_date":null,"created_at":"2025-01-02 10:00:00","updated_at":"2025-01-03 11:00:00","completed_at":"2025-01-03 11:00:00"},
		{"id":17,"text":"Client","completed":false,"category":"work","priority":"high","createdAt":"2025-01-01T00:00:00Z"}
	]}`)

	tasks, err := NewClient(srv.URL).GetTasks(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", got.auth)

	require.Len(t, tasks, 2)
	assert.Equal(t, "a", tasks[0].ID)
	assert.True(t, tasks[0].Completed)
	assert.Equal(t, "", tasks[0].DueDate)
	assert.Equal(t, "2025-01-02 10:00:00", tasks[0].CreatedAt)
	assert.Equal(t, "2025-01-03 11:00:00", tasks[0].CompletedAt)
	assert.Equal(t, "17", tasks[1].ID)
	assert.False(t, tasks[1].Completed)
	assert.Equal(t, "2025-01-01T00:00:00Z", tasks[1].CreatedAt)
}

func TestParseTime(t *testing.T) {
	cases := map[string]time.Time{
		"2025-01-02T03:04:05Z":      time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		"2025-01-02T03:04:05.5Z":    time.Date(2025, 1, 2, 3, 4, 5, 500_000_000, time.UTC),
		"2025-01-02 03:04:05":       time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		"2025-01-02T03:04":          time.Date(2025, 1, 2, 3, 4, 0, 0, time.UTC),
		"2025-01-02":                time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
		"2025-01-02T03:04:05+03:00": time.Date(2025, 1, 2, 0, 4, 5, 0, time.UTC),
	}
	for in, want := range cases {
		got, err := ParseTime(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), "%s parsed as %s", in, got)
	}

	_, err := ParseTime("yesterday")
	assert.Error(t, err)
}

func TestRemoteTaskLooseBool(t *testing.T) {
	for raw, want := range map[string]bool{`1`: true, `0`: false, `"1"`: true, `"0"`: false, `true`: true, `false`: false} {
		var rt RemoteTask
		require.NoError(t, json.Unmarshal([]byte(`{"completed":`+raw+`}`), &rt), raw)
		assert.Equal(t, want, rt.Completed, raw)
	}
}
