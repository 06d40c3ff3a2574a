// Package runstate holds the live record of one automation or lock run: the
// running flag, the phase, counters and an append-only log. The owning loop
// writes it; the UI reads it concurrently.
package runstate

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Phase is where a run is in its lifecycle.
type Phase int32

const (
	Idle Phase = iota
	Running
	Stopped
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

// Entry is one timestamped log line.
type Entry struct {
	Seq  uint64
	Time time.Time
	Text string
}

// String renders the entry as "[HH:MM:SS] text" in local time.
func (e Entry) String() string {
	return "[" + e.Time.Local().Format("15:04:05") + "] " + e.Text
}

// State is the shared record of a single run. A new State is created for every
// start, so counters and the log always begin empty.
type State struct {
	running atomic.Bool
	phase   atomic.Int32

	messages atomic.Uint64
	rotation atomic.Uint64
	checks   atomic.Uint64
	reverts  atomic.Uint64
	seq      atomic.Uint64

	mu      sync.RWMutex
	entries []Entry
	subs    []chan Entry
	lastErr error

	logger *zap.Logger
	now    func() time.Time
}

// New returns an Idle state. Entries are mirrored to logger at debug level
// when it is non-nil; the log itself is the user-facing stream.
func New(logger *zap.Logger) *State {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &State{logger: logger, now: time.Now}
}

// Begin marks the run as Running.
func (s *State) Begin() {
	s.running.Store(true)
	s.phase.Store(int32(Running))
}

// Finish ends the run: Failed when err is non-nil, Stopped otherwise. The
// running flag is cleared either way.
func (s *State) Finish(err error) {
	s.running.Store(false)
	if err != nil {
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
		s.phase.Store(int32(Failed))
		return
	}
	s.phase.Store(int32(Stopped))
}

// RequestStop clears the running flag. The loop observes it at its next
// iteration boundary.
func (s *State) RequestStop() { s.running.Store(false) }

// Running reports the running flag.
func (s *State) Running() bool { return s.running.Load() }

// Phase returns the lifecycle phase.
func (s *State) Phase() Phase { return Phase(s.phase.Load()) }

// Err returns the error that failed the run, if any.
func (s *State) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// AddMessage counts one send attempt and returns the new total.
func (s *State) AddMessage() uint64 { return s.messages.Add(1) }

// Messages returns the number of send attempts.
func (s *State) Messages() uint64 { return s.messages.Load() }

// NextRotation returns the current rotation index and advances it.
func (s *State) NextRotation() uint64 { return s.rotation.Add(1) - 1 }

// Rotation returns the rotation index of the next message.
func (s *State) Rotation() uint64 { return s.rotation.Load() }

// AddCheck counts one watchdog tick and returns the new total.
func (s *State) AddCheck() uint64 { return s.checks.Add(1) }

// Checks returns the number of watchdog ticks.
func (s *State) Checks() uint64 { return s.checks.Load() }

// AddRevert counts one remediation attempt.
func (s *State) AddRevert() uint64 { return s.reverts.Add(1) }

// Reverts returns the number of remediation attempts.
func (s *State) Reverts() uint64 { return s.reverts.Load() }

// Logf appends a formatted entry.
func (s *State) Logf(format string, args ...any) {
	s.Log(fmt.Sprintf(format, args...))
}

// Log appends an entry and broadcasts it. Subscribers that are not keeping up
// miss entries; the loop never blocks on them.
func (s *State) Log(text string) {
	e := Entry{Seq: s.seq.Add(1), Time: s.now(), Text: text}

	s.mu.Lock()
	s.entries = append(s.entries, e)
	for _, ch := range s.subs {
		select {
		case ch <- e:
		default:
		}
	}
	s.mu.Unlock()

	s.logger.Debug(text, zap.Uint64("seq", e.Seq))
}

// Entries returns a copy of the whole log.
func (s *State) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Entry(nil), s.entries...)
}

// Window returns a copy of the last n entries.
func (s *State) Window(n int) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 {
		return nil
	}
	start := len(s.entries) - n
	if start < 0 {
		start = 0
	}
	return append([]Entry(nil), s.entries[start:]...)
}

// Len returns the number of entries.
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Subscribe returns a buffered channel receiving entries logged from now on.
func (s *State) Subscribe() <-chan Entry {
	ch := make(chan Entry, 64)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a subscriber channel.
func (s *State) Unsubscribe(ch <-chan Entry) {
	if ch == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sub := range s.subs {
		if (<-chan Entry)(sub) == ch {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			close(sub)
			return
		}
	}
}

// Snapshot is a point-in-time copy for display.
type Snapshot struct {
	Phase    Phase
	Running  bool
	Messages uint64
	Rotation uint64
	Checks   uint64
	Reverts  uint64
	Tail     []Entry
}

// Snapshot captures counters and the last tail entries.
func (s *State) Snapshot(tail int) Snapshot {
	return Snapshot{
		Phase:    s.Phase(),
		Running:  s.Running(),
		Messages: s.Messages(),
		Rotation: s.Rotation(),
		Checks:   s.Checks(),
		Reverts:  s.Reverts(),
		Tail:     s.Window(tail),
	}
}
