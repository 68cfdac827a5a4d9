// Package session wraps a terminal with scrollback, attach/detach tracking,
// and orphan expiry, and provides the store that creates and reaps them.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srggs/ttywebd/internal/broadcast"
	"github.com/srggs/ttywebd/internal/terminal"
	"github.com/srggs/ttywebd/internal/xgoroutine"
)

// maxScrollback bounds how many trailing output bytes a session retains for
// replay to newly attached clients. Older bytes are simply dropped; no
// attempt is made to avoid trimming mid escape-sequence.
const maxScrollback = 64 * 1024

// Session pairs a terminal with scrollback and attach/detach bookkeeping.
type Session struct {
	ID string

	term *terminal.Terminal
	log  *logrus.Entry

	orphanTimeout time.Duration

	mu          sync.Mutex
	scrollback  []byte
	attached    int
	detachedAt  time.Time
	hasDetached bool
}

// New wraps an already-spawned terminal as a session and starts the
// scrollback collector that consumes primary's feed for the session's
// lifetime.
func New(id string, term *terminal.Terminal, primary *broadcast.Subscription[[]byte], orphanTimeout time.Duration, log *logrus.Entry) *Session {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	s := &Session{
		ID:            id,
		term:          term,
		log:           log.WithField("session_id", id),
		orphanTimeout: orphanTimeout,
	}

	xgoroutine.Go(context.Background(), "session-collector", func(_ context.Context) {
		s.collect(primary)
	})

	return s
}

// collect appends every chunk published on sub to the scrollback buffer,
// trimming from the front once the buffer exceeds maxScrollback. It exits
// once sub's channel is closed or the terminal's reader has given up.
func (s *Session) collect(sub *broadcast.Subscription[[]byte]) {
	defer sub.Close()
	for {
		select {
		case chunk, ok := <-sub.C():
			if !ok {
				return
			}
			s.mu.Lock()
			s.scrollback = append(s.scrollback, chunk...)
			if len(s.scrollback) > maxScrollback {
				s.scrollback = s.scrollback[len(s.scrollback)-maxScrollback:]
			}
			s.mu.Unlock()
		case <-s.term.Closed():
			return
		}
	}
}

// Attach marks the session as having a live client and returns a snapshot
// of its scrollback plus a fresh output subscription. The two are taken
// atomically with respect to the collector so nothing published between the
// snapshot and the subscription is lost or duplicated.
func (s *Session) Attach() ([]byte, *broadcast.Subscription[[]byte]) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub := s.term.Subscribe()
	snapshot := make([]byte, len(s.scrollback))
	copy(snapshot, s.scrollback)

	s.attached++
	s.hasDetached = false

	return snapshot, sub
}

// Detach marks one client as gone. Once the attach count reaches zero the
// session becomes eligible for reaping after orphanTimeout elapses.
func (s *Session) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attached > 0 {
		s.attached--
	}
	if s.attached == 0 {
		s.hasDetached = true
		s.detachedAt = time.Now()
	}
}

// IsOrphaned reports whether this session has had zero attached clients for
// at least orphanTimeout.
func (s *Session) IsOrphaned(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attached > 0 || !s.hasDetached {
		return false
	}
	return now.Sub(s.detachedAt) >= s.orphanTimeout
}

// HasClients reports whether any client is currently attached.
func (s *Session) HasClients() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attached > 0
}

// Write sends client input to the underlying shell.
func (s *Session) Write(data []byte) error { return s.term.Write(data) }

// Resize updates the underlying pty's window size.
func (s *Session) Resize(rows, cols uint16) error { return s.term.Resize(rows, cols) }

// Closed reports the terminal's shell-exited signal.
func (s *Session) Closed() <-chan struct{} { return s.term.Closed() }

// IsAlive reports whether the underlying shell is still running.
func (s *Session) IsAlive() bool { return !s.term.IsClosed() }

// destroy tears down the underlying terminal. It performs process
// signalling and waiting, so callers must never hold the store's lock while
// calling it.
func (s *Session) destroy() {
	s.log.Info("destroying session")
	s.term.Close()
}
