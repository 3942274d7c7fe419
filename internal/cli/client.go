package cli

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/todopro/internal/api"
	"github.com/nhle/todopro/internal/credential"
	"github.com/nhle/todopro/internal/logging"
	"github.com/nhle/todopro/internal/model"
	"github.com/nhle/todopro/internal/session"
	"github.com/nhle/todopro/internal/store"
	"github.com/nhle/todopro/internal/taskstore"
)

// closeTimeout bounds the final push when a client shuts down.
const closeTimeout = 10 * time.Second

// clientEnv is the client core assembled from the configuration.
type clientEnv struct {
	logger  *zap.SugaredLogger
	cache   *store.SQLiteStore
	tasks   *taskstore.Store
	manager *session.Manager
}

// openClient wires the task store, the session manager and their
// collaborators. The client logs to file only.
func openClient(c *model.AppConfig) (*clientEnv, error) {
	logger, err := logging.New(logging.Options{File: c.Client.LogFile})
	if err != nil {
		return nil, err
	}

	vault, err := credential.OpenKeyring(model.ConfigDir())
	if err != nil {
		return nil, err
	}

	cache, err := store.NewSQLiteStore(c.Client.CachePath)
	if err != nil {
		return nil, fmt.Errorf("opening task cache: %w", err)
	}

	remote := api.NewClient(c.Client.ServerURL)
	tasks := taskstore.New()
	manager := session.NewManager(session.Config{
		Auth:         remote,
		Tasks:        remote,
		Vault:        vault,
		Cache:        cache,
		Store:        tasks,
		Logger:       logger,
		PushDebounce: time.Duration(c.Client.PushDebounceMs) * time.Millisecond,
	})

	return &clientEnv{logger: logger, cache: cache, tasks: tasks, manager: manager}, nil
}

// close pushes pending changes and releases the cache.
func (e *clientEnv) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	err := e.manager.Close(ctx)
	if cerr := e.cache.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("closing task cache: %w", cerr)
	}
	_ = e.logger.Sync()
	return err
}

// requireSession resumes the stored session or fails with a hint to log in.
func (e *clientEnv) requireSession(ctx context.Context) (model.Session, error) {
	ok, err := e.manager.RestoreSession(ctx)
	if err != nil {
		e.logger.Warnw("restoring session", "error", err)
	}
	if !ok {
		return model.Session{}, fmt.Errorf("not logged in, run 'todopro login' first")
	}
	sess, _ := e.manager.Current()
	return sess, nil
}
