package sync

import (
	"context"
	"errors"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/todopro/internal/model"
)

// PushState is the state of the remote persistence loop.
type PushState int

const (
	PushIdle PushState = iota
	PushPending
	PushRunning
	PushFailed
)

func (s PushState) String() string {
	switch s {
	case PushPending:
		return "pending"
	case PushRunning:
		return "pushing"
	case PushFailed:
		return "failed"
	default:
		return "synced"
	}
}

// PushStatus describes the last known state of the pusher.
type PushStatus struct {
	State     PushState
	LastPush  time.Time
	LastError error
	Pushes    int
}

// PushResultMsg is a tea.Msg sent after every push attempt.
type PushResultMsg struct {
	Count int
	Err   error
	At    time.Time
}

// Saver persists a whole task collection.
type Saver interface {
	SaveTasks(ctx context.Context, token string, tasks []model.Task) error
}

// SaverFunc adapts a function to the Saver interface.
type SaverFunc func(ctx context.Context, token string, tasks []model.Task) error

func (f SaverFunc) SaveTasks(ctx context.Context, token string, tasks []model.Task) error {
	return f(ctx, token, tasks)
}

// PusherConfig tunes a Pusher.
type PusherConfig struct {
	// Debounce is how long the pusher waits after the last MarkDirty before
	// pushing. Zero pushes as soon as the worker wakes up.
	Debounce time.Duration

	// Timeout bounds a single push.
	Timeout time.Duration

	Logger *zap.SugaredLogger
}

// defaultPushTimeout is used when PusherConfig.Timeout is zero.
const defaultPushTimeout = 30 * time.Second

type snapshot struct {
	token string
	tasks []model.Task
}

// ErrPusherStopped is returned by Flush after Stop.
var ErrPusherStopped = errors.New("pusher stopped")

// Pusher sends the latest task collection to the server. Changes are marked
// dirty and coalesced; only the newest snapshot is ever pushed, and pushes
// never overlap. Failed pushes are not retried.
type Pusher struct {
	saver  Saver
	cfg    PusherConfig
	logger *zap.SugaredLogger

	mu       gosync.Mutex
	pending  *snapshot
	status   PushStatus
	running  bool
	stopped  bool
	wakeCh   chan struct{}
	stopCh   chan struct{}
	resultCh chan PushResultMsg

	// pushMu serializes pushes from the worker and from Flush.
	pushMu gosync.Mutex
}

// NewPusher creates a stopped Pusher. Call Start to run the worker.
func NewPusher(saver Saver, cfg PusherConfig) *Pusher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultPushTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Pusher{
		saver:    saver,
		cfg:      cfg,
		logger:   logger,
		wakeCh:   make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		resultCh: make(chan PushResultMsg, 16),
	}
}

// Start launches the worker goroutine. Calling it again is a no-op.
func (p *Pusher) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running || p.stopped {
		return
	}
	p.running = true
	go p.run()
}

// Stop halts the worker. A pending snapshot is not pushed; call Flush
// first to push it.
func (p *Pusher) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return
	}
	p.stopped = true
	close(p.stopCh)
}

// MarkDirty records tasks as the collection to push with token. It
// replaces any snapshot not yet pushed.
func (p *Pusher) MarkDirty(token string, tasks []model.Task) {
	snap := &snapshot{token: token, tasks: make([]model.Task, len(tasks))}
	for i, t := range tasks {
		snap.tasks[i] = t.Clone()
	}

	p.mu.Lock()
	p.pending = snap
	if p.status.State != PushRunning {
		p.status.State = PushPending
	}
	p.mu.Unlock()

	select {
	case p.wakeCh <- struct{}{}:
	default:
		// A wake-up is already queued.
	}
}

// Cancel drops the snapshot waiting to be pushed, if any.
func (p *Pusher) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pending = nil
	if p.status.State == PushPending {
		p.status.State = PushIdle
	}
}

// Flush pushes the pending snapshot now and returns the push error.
// It returns nil when nothing is pending.
func (p *Pusher) Flush(ctx context.Context) error {
	p.mu.Lock()
	stopped := p.stopped
	p.mu.Unlock()
	if stopped {
		return ErrPusherStopped
	}
	return p.push(ctx)
}

// Status returns a copy of the current status.
func (p *Pusher) Status() PushStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Results returns a tea.Cmd that waits for the next push result. Issue it
// again after every PushResultMsg to keep listening.
func (p *Pusher) Results() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-p.resultCh:
			return msg
		case <-p.stopCh:
			return nil
		}
	}
}

func (p *Pusher) run() {
	for {
		select {
		case <-p.stopCh:
			return
		case <-p.wakeCh:
		}

		if p.cfg.Debounce > 0 && !p.settle() {
			return
		}

		_ = p.push(context.Background())
	}
}

// settle waits until no MarkDirty has happened for the debounce window.
// It reports false if the pusher was stopped meanwhile.
func (p *Pusher) settle() bool {
	timer := time.NewTimer(p.cfg.Debounce)
	defer timer.Stop()

	for {
		select {
		case <-p.stopCh:
			return false
		case <-p.wakeCh:
			timer.Reset(p.cfg.Debounce)
		case <-timer.C:
			return true
		}
	}
}

func (p *Pusher) push(ctx context.Context) error {
	p.pushMu.Lock()
	defer p.pushMu.Unlock()

	p.mu.Lock()
	snap := p.pending
	p.pending = nil
	if snap == nil {
		p.mu.Unlock()
		return nil
	}
	p.status.State = PushRunning
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	err := p.saver.SaveTasks(ctx, snap.token, snap.tasks)
	now := time.Now()

	p.mu.Lock()
	p.status.Pushes++
	switch {
	case err != nil:
		p.status.State = PushFailed
		p.status.LastError = err
	case p.pending != nil:
		p.status.State = PushPending
		p.status.LastPush = now
		p.status.LastError = nil
	default:
		p.status.State = PushIdle
		p.status.LastPush = now
		p.status.LastError = nil
	}
	p.mu.Unlock()

	if err != nil {
		p.logger.Warnw("task push failed", "tasks", len(snap.tasks), "error", err)
	} else {
		p.logger.Debugw("tasks pushed", "tasks", len(snap.tasks))
	}

	p.sendResult(PushResultMsg{Count: len(snap.tasks), Err: err, At: now})
	return err
}

// sendResult sends a PushResultMsg on the result channel without blocking.
func (p *Pusher) sendResult(msg PushResultMsg) {
	select {
	case p.resultCh <- msg:
	default:
		// Drop if nobody is listening.
	}
}
