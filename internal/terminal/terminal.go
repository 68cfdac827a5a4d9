// Package terminal drives a single pty's non-blocking I/O and fans its
// output out to any number of subscribers.
package terminal

import (
	"context"
	"errors"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/srggs/ttywebd/internal/broadcast"
	"github.com/srggs/ttywebd/internal/ptyproc"
	"github.com/srggs/ttywebd/internal/xgoroutine"
)

const (
	outputHubCapacity = 64
	inputChanCapacity = 256
	readBufSize       = 4096
)

// Terminal owns a pty-backed process and pumps bytes between it and its
// subscribers. Input (client keystrokes) is serialized through a single
// channel; output is broadcast to every current subscriber and lost to
// anyone not currently subscribed or too far behind.
type Terminal struct {
	proc *ptyproc.PtyProcess
	hub  *broadcast.Hub[[]byte]
	log  *logrus.Entry

	input chan []byte

	closeInputOnce sync.Once
	closedOnce     sync.Once
	closed         chan struct{}
}

// Spawn starts shellPath behind a pty and begins pumping its I/O. The
// returned subscription is the "primary" feed a caller should keep around
// before any other subscriber can attach, so no output is lost between
// spawn and first attach.
func Spawn(shellPath string, log *logrus.Entry) (*Terminal, *broadcast.Subscription[[]byte], error) {
	proc, err := ptyproc.Spawn(shellPath)
	if err != nil {
		return nil, nil, err
	}

	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	t := &Terminal{
		proc:   proc,
		hub:    broadcast.NewHub[[]byte](outputHubCapacity),
		log:    log,
		input:  make(chan []byte, inputChanCapacity),
		closed: make(chan struct{}),
	}

	primary := t.hub.Subscribe()

	xgoroutine.Go(context.Background(), "terminal-reader", func(_ context.Context) { t.readLoop() })
	xgoroutine.Go(context.Background(), "terminal-writer", func(_ context.Context) { t.writeLoop() })

	return t, primary, nil
}

// Subscribe returns a new feed of this terminal's output, starting from
// whatever is published after the call returns.
func (t *Terminal) Subscribe() *broadcast.Subscription[[]byte] {
	return t.hub.Subscribe()
}

// Write queues data to be sent to the pty. It never blocks on pty readiness;
// it only blocks if the internal input queue itself is full.
func (t *Terminal) Write(data []byte) error {
	select {
	case <-t.closed:
		return errors.New("terminal: closed")
	default:
	}

	buf := make([]byte, len(data))
	copy(buf, data)

	select {
	case t.input <- buf:
		return nil
	case <-t.closed:
		return errors.New("terminal: closed")
	}
}

// Resize updates the pty's window size.
func (t *Terminal) Resize(rows, cols uint16) error {
	return t.proc.SetWindowSize(rows, cols)
}

// Closed returns a channel that is closed once the reader loop has exited or
// Close has been called, whichever happens first.
func (t *Terminal) Closed() <-chan struct{} { return t.closed }

// IsClosed reports whether Closed's channel has already fired.
func (t *Terminal) IsClosed() bool {
	select {
	case <-t.closed:
		return true
	default:
		return false
	}
}

// Close tears the terminal down: it closes the input queue, so the writer
// loop exits once it reaches the end of the queue or a write fails, and then
// destroys the pty process without waiting for the writer to finish, which
// forces the reader loop to observe an error and exit too if it hasn't
// already. Safe to call more than once, and safe to call after the
// reader has already latched closed on its own.
func (t *Terminal) Close() {
	t.closeInputOnce.Do(func() { close(t.input) })
	t.proc.Destroy()
	t.latchClosed()
}

// latchClosed marks the terminal closed. Idempotent: the reader loop calls
// this on every exit path, and an explicit Close() calls it too, so whoever
// gets there first wins.
func (t *Terminal) latchClosed() {
	t.closedOnce.Do(func() { close(t.closed) })
}

// readLoop pumps pty output to the broadcast hub until the pty goes away or
// there are no subscribers left to receive it. The closed flag is latched
// on every exit path, independent of whether Close was ever called, so a
// shell that exits on its own (not just one that was explicitly destroyed)
// is observable via Closed()/IsClosed().
func (t *Terminal) readLoop() {
	defer t.latchClosed()

	fd := int(t.proc.Master().Fd())
	buf := make([]byte, readBufSize)

	for {
		n, err := unix.Read(fd, buf)
		if err != nil {
			if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK {
				if !t.pollReadable(fd) {
					return
				}
				continue
			}
			if err == syscall.EINTR {
				continue
			}
			t.log.WithError(err).Debug("terminal: pty read ended")
			return
		}
		if n == 0 {
			t.log.Debug("terminal: pty read returned EOF")
			return
		}

		chunk := make([]byte, n)
		copy(chunk, buf[:n])
		if !t.hub.Publish(chunk) {
			t.log.Debug("terminal: no subscribers left, stopping reader")
			return
		}
	}
}

// writeLoop drains queued input to the pty until the input channel is
// closed, then exits. Writes are non-blocking with poll-based backpressure
// so a stalled pty never wedges the whole daemon.
func (t *Terminal) writeLoop() {
	fd := int(t.proc.Master().Fd())

	for data := range t.input {
		for len(data) > 0 {
			n, err := unix.Write(fd, data)
			if err != nil {
				if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK {
					if !t.pollWritable(fd) {
						return
					}
					continue
				}
				if err == syscall.EINTR {
					continue
				}
				t.log.WithError(err).Debug("terminal: pty write ended")
				return
			}
			data = data[n:]
		}
	}
}

// pollReadable blocks until fd is readable or erred. It returns false if
// polling itself failed, which the caller should treat as terminal.
func (t *Terminal) pollReadable(fd int) bool {
	return t.poll(fd, unix.POLLIN)
}

func (t *Terminal) pollWritable(fd int) bool {
	return t.poll(fd, unix.POLLOUT)
}

func (t *Terminal) poll(fd int, events int16) bool {
	fds := []unix.PollFd{{Fd: int32(fd), Events: events}}
	for {
		_, err := unix.Poll(fds, -1)
		if err == nil {
			return true
		}
		if err == syscall.EINTR {
			continue
		}
		t.log.WithError(err).Debug("terminal: poll failed")
		return false
	}
}
