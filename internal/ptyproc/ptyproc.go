// Package ptyproc spawns a shell behind a pseudoterminal and owns its
// lifecycle: the master file descriptor, window-size updates, and the
// signal-then-wait teardown that avoids leaving a zombie behind.
package ptyproc

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

// PtyProcess owns a shell process running behind a pseudoterminal.
type PtyProcess struct {
	master *os.File
	cmd    *exec.Cmd
	pid    int

	destroyOnce sync.Once
}

// Spawn opens a pty pair and starts shellPath as a session leader with the
// pty slave as its controlling terminal. The child inherits the parent's
// environment plus TERM/COLORTERM so full-color interactive programs work.
//
// On any failure after the child has started, the child is killed and
// reaped before the error is returned.
func Spawn(shellPath string) (*PtyProcess, error) {
	cmd := exec.Command(shellPath)
	cmd.Env = append(os.Environ(), "TERM=xterm-256color", "COLORTERM=truecolor")

	// pty.Start sets Setsid (and, on platforms that need it, Setctty) on the
	// child for us. Setting SysProcAttr ourselves on top of that is how you
	// end up with "operation not permitted" from a conflicting setsid/setpgid
	// pair, so leave it alone.
	master, err := pty.Start(cmd)
	if err != nil {
		return nil, fmt.Errorf("ptyproc: spawn %s: %w", shellPath, err)
	}

	if err := unix.SetNonblock(int(master.Fd()), true); err != nil {
		killAndReap(cmd, master)
		return nil, fmt.Errorf("ptyproc: spawn %s: set nonblocking: %w", shellPath, err)
	}

	return &PtyProcess{
		master: master,
		cmd:    cmd,
		pid:    cmd.Process.Pid,
	}, nil
}

func killAndReap(cmd *exec.Cmd, master *os.File) {
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
		_, _ = cmd.Process.Wait()
	}
	if master != nil {
		_ = master.Close()
	}
}

// Master returns the pty master file descriptor. Valid for as long as the
// PtyProcess has not been destroyed.
func (p *PtyProcess) Master() *os.File { return p.master }

// Pid returns the child process's PID.
func (p *PtyProcess) Pid() int { return p.pid }

// SetWindowSize issues a TIOCSWINSZ update against the master. Zero values
// are permitted and passed through unmodified.
func (p *PtyProcess) SetWindowSize(rows, cols uint16) error {
	if err := pty.Setsize(p.master, &pty.Winsize{Rows: rows, Cols: cols}); err != nil {
		return fmt.Errorf("ptyproc: set window size: %w", err)
	}
	return nil
}

// Destroy sends SIGHUP to the child's process group and blocks until the
// child is reaped, then closes the master. Safe to call more than once;
// only the first call has effect. If the child has already exited on its
// own, the signal is a harmless no-op and Wait reaps the zombie.
func (p *PtyProcess) Destroy() {
	p.destroyOnce.Do(func() {
		pgid, err := syscall.Getpgid(p.pid)
		if err == nil && pgid > 0 {
			_ = syscall.Kill(-pgid, syscall.SIGHUP)
		} else {
			_ = syscall.Kill(p.pid, syscall.SIGHUP)
		}
		_, _ = p.cmd.Process.Wait()
		_ = p.master.Close()
	})
}
