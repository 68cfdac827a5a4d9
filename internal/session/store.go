package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/srggs/ttywebd/internal/terminal"
	"github.com/srggs/ttywebd/internal/xgoroutine"
)

// Store creates, looks up, and reaps sessions. One goroutine sweeps the
// table on a fixed interval, evicting sessions that have been orphaned for
// longer than orphanTimeout or whose shell has exited on its own.
type Store struct {
	shellPath      string
	orphanTimeout  time.Duration
	reaperInterval time.Duration
	maxSessions    int
	log            *logrus.Logger

	mu       sync.RWMutex
	sessions map[string]*Session

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewStore builds a Store and starts its reaper goroutine.
func NewStore(shellPath string, orphanTimeout, reaperInterval time.Duration, maxSessions int, log *logrus.Logger) *Store {
	if log == nil {
		log = logrus.StandardLogger()
	}

	st := &Store{
		shellPath:      shellPath,
		orphanTimeout:  orphanTimeout,
		reaperInterval: reaperInterval,
		maxSessions:    maxSessions,
		log:            log,
		sessions:       make(map[string]*Session),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}

	xgoroutine.Go(context.Background(), "session-reaper", func(_ context.Context) {
		st.reapLoop()
	})

	return st
}

// Create spawns a new shell and registers a session for it.
func (st *Store) Create() (*Session, error) {
	st.mu.RLock()
	count := len(st.sessions)
	st.mu.RUnlock()

	if st.maxSessions > 0 && count >= st.maxSessions {
		return nil, fmt.Errorf("session store: at capacity (%d sessions)", st.maxSessions)
	}

	id := uuid.New().String()
	log := st.log.WithField("session_id", id)

	term, primary, err := terminal.Spawn(st.shellPath, log)
	if err != nil {
		return nil, fmt.Errorf("session store: create %s: %w", id, err)
	}

	sess := New(id, term, primary, st.orphanTimeout, log)

	st.mu.Lock()
	st.sessions[id] = sess
	st.mu.Unlock()

	return sess, nil
}

// Get returns the session with the given id, if any.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	sess, ok := st.sessions[id]
	return sess, ok
}

// Stop halts the reaper goroutine and blocks until it has exited. It does
// not destroy any live sessions; callers that want a clean shutdown should
// do that separately.
func (st *Store) Stop() {
	st.stopOnce.Do(func() { close(st.stop) })
	<-st.done
}

func (st *Store) reapLoop() {
	defer close(st.done)

	ticker := time.NewTicker(st.reaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-st.stop:
			return
		case <-ticker.C:
			st.sweep()
		}
	}
}

// sweep evicts dead or long-orphaned sessions. Candidate selection and
// table mutation happen under lock; the actual teardown (which signals and
// waits on a child process) always happens after the lock is released, so
// the table lock is never held across I/O.
func (st *Store) sweep() {
	now := time.Now()

	st.mu.RLock()
	var candidates []string
	for id, sess := range st.sessions {
		if sess.IsOrphaned(now) || !sess.IsAlive() {
			candidates = append(candidates, id)
		}
	}
	st.mu.RUnlock()

	if len(candidates) == 0 {
		return
	}

	st.mu.Lock()
	var doomed []*Session
	for _, id := range candidates {
		sess, ok := st.sessions[id]
		if !ok {
			continue
		}
		// Re-validate: a client may have reattached since the scan above.
		if sess.IsOrphaned(now) || !sess.IsAlive() {
			delete(st.sessions, id)
			doomed = append(doomed, sess)
		}
	}
	st.mu.Unlock()

	for _, sess := range doomed {
		sess.destroy()
	}
}
