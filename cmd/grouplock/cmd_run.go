package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"grouplock/internal/app"
	"grouplock/internal/orchestrator"
	"grouplock/internal/runstate"
	"grouplock/internal/store"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the selected loops in the foreground",
	Long: `Starts the message loop (--send), the group name lock (--lock) or both
and streams their logs to stdout. Interrupt to stop; the browsers are closed
before the command exits.`,
	RunE: runLoops,
}

var (
	runSend bool
	runLock bool

	shutdownTimeout = 60 * time.Second
)

func init() {
	runCmd.Flags().BoolVar(&runSend, "send", false, "Run the message loop")
	runCmd.Flags().BoolVar(&runLock, "lock", false, "Run the group name lock")
}

func runLoops(cmd *cobra.Command, args []string) error {
	if !runSend && !runLock {
		return errors.New("nothing to run: pass --send, --lock or both")
	}
	return withAccount(cmd, func(ctx context.Context, a *application, acct store.Account) error {
		sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		var kinds []orchestrator.Kind
		if runLock {
			if _, err := a.svc.StartLock(ctx, acct.ID); err != nil {
				return err
			}
			kinds = append(kinds, orchestrator.KindLock)
		}
		if runSend {
			if _, err := a.svc.StartAutomation(ctx, acct.ID); err != nil {
				if serr := shutdown(a.svc); serr != nil {
					return errors.Join(err, serr)
				}
				return err
			}
			kinds = append(kinds, orchestrator.KindAutomation)
		}

		out := &lockedWriter{w: cmd.OutOrStdout()}
		var g errgroup.Group
		for _, kind := range kinds {
			kind := kind
			g.Go(func() error {
				return follow(a.svc, acct.ID, kind, out)
			})
		}
		done := make(chan error, 1)
		go func() { done <- g.Wait() }()

		select {
		case err := <-done:
			return finalStatus(a.svc, acct.ID, kinds, err)
		case <-sigCtx.Done():
		}

		fmt.Fprintln(out, "Stopping...")
		if err := shutdown(a.svc); err != nil {
			return err
		}
		return <-done
	})
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// shutdown stops every loop, waiting at most shutdownTimeout for the browsers
// to close.
func shutdown(svc shutdowner) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := svc.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// follow streams one loop's log until the loop exits.
func follow(svc *app.Service, id int64, kind orchestrator.Kind, w io.Writer) error {
	ch, unsub := svc.Subscribe(id, kind)
	defer unsub()

	exited := make(chan struct{})
	go func() {
		_ = svc.Wait(context.Background(), id, kind)
		close(exited)
	}()

	var backlog []runstate.Entry
	if snap := snapshotOf(svc.Status(id, math.MaxInt), kind); snap != nil {
		backlog = snap.Tail
	}
	streamLog(w, labelOf(kind), backlog, ch, exited)
	return nil
}

// streamLog prints backlog and then everything received on ch, skipping
// entries already printed. It returns once done is closed and ch is drained.
func streamLog(w io.Writer, label string, backlog []runstate.Entry, ch <-chan runstate.Entry, done <-chan struct{}) {
	var last uint64
	emit := func(e runstate.Entry) {
		if e.Seq <= last {
			return
		}
		last = e.Seq
		fmt.Fprintf(w, "%-6s %s\n", label, e)
	}
	for _, e := range backlog {
		emit(e)
	}
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return
			}
			emit(e)
		case <-done:
			for {
				select {
				case e, ok := <-ch:
					if !ok {
						return
					}
					emit(e)
				default:
					return
				}
			}
		}
	}
}

// finalStatus turns a loop that ended by itself into the command result.
func finalStatus(svc *app.Service, id int64, kinds []orchestrator.Kind, err error) error {
	if err != nil {
		return err
	}
	st := svc.Status(id, 0)
	for _, k := range kinds {
		if snap := snapshotOf(st, k); snap != nil && snap.Phase == runstate.Failed {
			return fmt.Errorf("%s loop failed", k)
		}
	}
	return nil
}

func snapshotOf(st app.Status, kind orchestrator.Kind) *runstate.Snapshot {
	if kind == orchestrator.KindLock {
		return st.Lock
	}
	return st.Automation
}

func labelOf(kind orchestrator.Kind) string {
	if kind == orchestrator.KindLock {
		return "[lock]"
	}
	return "[send]"
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
