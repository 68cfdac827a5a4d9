package main

import (
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/srggs/ttywebd/internal/wire"
)

var connectCmd = &cobra.Command{
	Use:   "connect <url>",
	Short: "Attach to a ttywebd session",
	Args:  cobra.ExactArgs(1),
	RunE:  runConnect,
}

func runConnect(cmd *cobra.Command, args []string) error {
	target, err := toWebSocketURL(args[0])
	if err != nil {
		return err
	}

	sessionID, _ := cmd.Flags().GetString("session")
	if sessionID != "" {
		q := target.Query()
		q.Set("sid", sessionID)
		target.RawQuery = q.Encode()
	}

	conn, _, err := websocket.DefaultDialer.Dial(target.String(), nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", target, err)
	}
	defer conn.Close()

	stdinFd := int(os.Stdin.Fd())
	if term.IsTerminal(stdinFd) {
		oldState, err := term.MakeRaw(stdinFd)
		if err != nil {
			return fmt.Errorf("set raw mode: %w", err)
		}
		defer func() {
			_ = term.Restore(stdinFd, oldState)
			fmt.Println()
		}()
	}

	sendInitialSize(conn, stdinFd)
	watchResize(conn, stdinFd)

	errCh := make(chan error, 2)
	go pumpStdinToConn(conn, errCh)
	go pumpConnToStdout(conn, errCh)

	return <-errCh
}

func toWebSocketURL(raw string) (*url.URL, error) {
	if !strings.Contains(raw, "://") {
		raw = "ws://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", raw, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	if u.Path == "" {
		u.Path = "/ws"
	}
	return u, nil
}

func sendInitialSize(conn *websocket.Conn, stdinFd int) {
	if !term.IsTerminal(stdinFd) {
		return
	}
	w, h, err := term.GetSize(stdinFd)
	if err != nil {
		return
	}
	_ = conn.WriteMessage(websocket.BinaryMessage, wire.EncodeResize(uint16(h), uint16(w)))
}

func watchResize(conn *websocket.Conn, stdinFd int) {
	winch := make(chan os.Signal, 1)
	signal.Notify(winch, syscall.SIGWINCH)
	go func() {
		for range winch {
			sendInitialSize(conn, stdinFd)
		}
	}()
}

func pumpStdinToConn(conn *websocket.Conn, errCh chan<- error) {
	buf := make([]byte, 4096)
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			if werr := conn.WriteMessage(websocket.BinaryMessage, wire.Encode(wire.CmdInput, buf[:n])); werr != nil {
				errCh <- werr
				return
			}
		}
		if err != nil {
			errCh <- err
			return
		}
	}
}

func pumpConnToStdout(conn *websocket.Conn, errCh chan<- error) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			errCh <- err
			return
		}
		cmd, payload, err := wire.Decode(data)
		if err != nil {
			continue
		}
		switch cmd {
		case wire.CmdOutput:
			_, _ = os.Stdout.Write(payload)
		case wire.CmdShellExit:
			errCh <- nil
			return
		case wire.CmdSessionID, wire.CmdScrollback:
			if cmd == wire.CmdScrollback {
				_, _ = os.Stdout.Write(payload)
			} else {
				fmt.Fprintf(os.Stderr, "\r\nsession: %s\r\n", payload)
			}
		}
	}
}
