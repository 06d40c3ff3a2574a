// Package orchestrator runs at most one background loop per account and loop
// kind, and stops them cooperatively.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"grouplock/internal/logging"
	"grouplock/internal/runstate"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Kind names a loop type.
type Kind string

const (
	KindAutomation Kind = "automation"
	KindLock       Kind = "lock"
)

// Key identifies one loop slot.
type Key struct {
	Account int64
	Kind    Kind
}

func (k Key) String() string { return fmt.Sprintf("%d/%s", k.Account, k.Kind) }

func (k Kind) category() logging.Category {
	if k == KindLock {
		return logging.CategoryWatchdog
	}
	return logging.CategoryDispatch
}

// Runner is the body of a loop. It returns nil when stopped and the failure
// otherwise; st is already Running when it is called.
type Runner func(ctx context.Context, st *runstate.State) error

// Hooks are notified on task start and exit, from the task goroutine.
type Hooks struct {
	Started  func(Key)
	Finished func(Key, error)
}

// Task is a handle on one spawned loop.
type Task struct {
	ID      string
	Key     Key
	State   *runstate.State
	Started time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// Done is closed once the loop has exited and its session is closed.
func (t *Task) Done() <-chan struct{} { return t.done }

// Orchestrator tracks the task per Key. The zero value is not usable; use New.
type Orchestrator struct {
	mu    sync.Mutex
	tasks map[Key]*Task
	hooks Hooks
	base  context.Context
}

// New returns an empty orchestrator.
func New(h Hooks) *Orchestrator {
	return &Orchestrator{
		tasks: make(map[Key]*Task),
		hooks: h,
		base:  context.Background(),
	}
}

// Start spawns run for key unless a loop for key is already running, in which
// case it returns the running task and false. Each spawned run gets a fresh
// State. When the previous run of key is still shutting down, the new run
// waits for it first so two sessions never overlap.
func (o *Orchestrator) Start(key Key, run Runner) (*Task, bool) {
	log := logging.Get(logging.CategoryOrchestrator)

	o.mu.Lock()
	prev := o.tasks[key]
	if prev != nil && prev.State.Running() {
		o.mu.Unlock()
		log.Debug("start ignored, already running", zap.Stringer("key", key), zap.String("task", prev.ID))
		return prev, false
	}

	ctx, cancel := context.WithCancel(o.base)
	st := runstate.New(logging.Get(key.Kind.category()).With(
		zap.Int64("account", key.Account),
		zap.String("kind", string(key.Kind)),
	))
	st.Begin()
	t := &Task{
		ID:      uuid.NewString(),
		Key:     key,
		State:   st,
		Started: time.Now(),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	o.tasks[key] = t
	o.mu.Unlock()

	log.Info("task started", zap.Stringer("key", key), zap.String("task", t.ID))
	go o.run(ctx, t, prev, run)
	return t, true
}

func (o *Orchestrator) run(ctx context.Context, t *Task, prev *Task, run Runner) {
	defer close(t.done)
	defer t.cancel()

	if prev != nil {
		select {
		case <-prev.done:
		case <-ctx.Done():
		}
	}
	if o.hooks.Started != nil {
		o.hooks.Started(t.Key)
	}

	var err error
	if ctx.Err() == nil {
		err = o.invoke(ctx, t, run)
	}
	t.State.Finish(err)

	logging.Get(logging.CategoryOrchestrator).Info("task finished",
		zap.Stringer("key", t.Key),
		zap.String("task", t.ID),
		zap.Stringer("phase", t.State.Phase()),
		zap.Duration("elapsed", time.Since(t.Started)),
		zap.Error(err))
	if o.hooks.Finished != nil {
		o.hooks.Finished(t.Key, err)
	}
}

func (o *Orchestrator) invoke(ctx context.Context, t *Task, run Runner) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s loop: %v", t.Key.Kind, r)
			t.State.Logf("Internal error: %v", r)
		}
	}()
	return run(ctx, t.State)
}

// Stop clears the running flag of key's loop and cancels its token. It
// reports whether a running loop was signalled.
func (o *Orchestrator) Stop(key Key) bool {
	o.mu.Lock()
	t := o.tasks[key]
	o.mu.Unlock()
	if t == nil || !t.State.Running() {
		return false
	}
	t.State.RequestStop()
	t.cancel()
	logging.Get(logging.CategoryOrchestrator).Info("task stop requested", zap.Stringer("key", key), zap.String("task", t.ID))
	return true
}

// Task returns the current or most recent task for key.
func (o *Orchestrator) Task(key Key) (*Task, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	t, ok := o.tasks[key]
	return t, ok
}

// State returns the run state of key's current or most recent task, or nil.
func (o *Orchestrator) State(key Key) *runstate.State {
	if t, ok := o.Task(key); ok {
		return t.State
	}
	return nil
}

// Running reports whether key has a running loop.
func (o *Orchestrator) Running(key Key) bool {
	st := o.State(key)
	return st != nil && st.Running()
}

// Wait blocks until key's current task has exited or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context, key Key) error {
	t, ok := o.Task(key)
	if !ok {
		return nil
	}
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Active lists the keys with running loops.
func (o *Orchestrator) Active() []Key {
	o.mu.Lock()
	defer o.mu.Unlock()
	var keys []Key
	for k, t := range o.tasks {
		if t.State.Running() {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Account != keys[j].Account {
			return keys[i].Account < keys[j].Account
		}
		return keys[i].Kind < keys[j].Kind
	})
	return keys
}

// Shutdown stops every task and waits for all of them to exit, bounded by ctx.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	tasks := make([]*Task, 0, len(o.tasks))
	for _, t := range o.tasks {
		tasks = append(tasks, t)
	}
	o.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range tasks {
		t := t
		t.State.RequestStop()
		t.cancel()
		g.Go(func() error {
			select {
			case <-t.done:
				return nil
			case <-gctx.Done():
				return fmt.Errorf("waiting for %s: %w", t.Key, gctx.Err())
			}
		})
	}
	return g.Wait()
}
