// Package bridge connects a WebSocket connection to a session: it resolves
// or creates the session, replays scrollback, and pumps frames in both
// directions until the client disconnects or the shell exits.
package bridge

import (
	"context"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/srggs/ttywebd/internal/session"
	"github.com/srggs/ttywebd/internal/wire"
	"github.com/srggs/ttywebd/internal/xgoroutine"
)

// Bridge wires a session.Store to WebSocket connections.
type Bridge struct {
	store *session.Store
	log   *logrus.Logger
}

// New returns a Bridge backed by store.
func New(store *session.Store, log *logrus.Logger) *Bridge {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Bridge{store: store, log: log}
}

// Serve resolves or creates a session for requestedID (a new one is created
// when requestedID is empty or unknown), then pumps frames between conn and
// that session until either side is done. It blocks until the connection
// closes and always closes conn before returning.
func (b *Bridge) Serve(conn *websocket.Conn, requestedID string) {
	defer conn.Close()

	sess, err := b.resolveOrCreate(requestedID)
	if err != nil {
		b.log.WithError(err).Error("bridge: failed to resolve session")
		return
	}
	defer sess.Detach()

	log := b.log.WithField("session_id", sess.ID)

	scrollback, sub := sess.Attach()
	defer sub.Close()

	if err := conn.WriteMessage(websocket.BinaryMessage, wire.EncodeSessionID(sess.ID)); err != nil {
		log.WithError(err).Debug("bridge: failed to send session id")
		return
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, wire.EncodeScrollback(scrollback)); err != nil {
		log.WithError(err).Debug("bridge: failed to send scrollback")
		return
	}

	b.pump(conn, sess, sub, log)
}

func (b *Bridge) resolveOrCreate(requestedID string) (*session.Session, error) {
	if requestedID != "" {
		if sess, ok := b.store.Get(requestedID); ok {
			return sess, nil
		}
	}
	return b.store.Create()
}

// pump is the connection's main loop: a dedicated reader goroutine feeds
// inbound client frames into a channel, and this select loop fans them out
// to the session while also forwarding the session's output subscription
// and watching for shell exit.
func (b *Bridge) pump(conn *websocket.Conn, sess *session.Session, sub subscription, log *logrus.Entry) {
	inbound := make(chan []byte)
	stop := make(chan struct{})
	defer close(stop)

	xgoroutine.Go(context.Background(), "bridge-reader", func(_ context.Context) {
		defer close(inbound)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			select {
			case inbound <- data:
			case <-stop:
				return
			}
		}
	})

	for {
		select {
		case <-sess.Closed():
			b.drainAndExit(conn, sub, log)
			return

		case data, ok := <-inbound:
			if !ok {
				return
			}
			if !b.handleInbound(sess, data, log) {
				return
			}

		case chunk, ok := <-sub.C():
			if !ok {
				return
			}
			if lagged := sub.SwapLagged(); lagged > 0 {
				log.WithField("lagged", lagged).Warn("bridge: client fell behind session output")
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, wire.EncodeOutput(chunk)); err != nil {
				log.WithError(err).Debug("bridge: write failed")
				return
			}
		}
	}
}

func (b *Bridge) handleInbound(sess *session.Session, data []byte, log *logrus.Entry) bool {
	cmd, payload, err := wire.Decode(data)
	if err != nil {
		log.WithError(err).Debug("bridge: dropping malformed frame")
		return true
	}

	switch cmd {
	case wire.CmdInput:
		if err := sess.Write(payload); err != nil {
			log.WithError(err).Debug("bridge: write to session failed, dropping input")
		}
	case wire.CmdResize:
		rows, cols, err := wire.DecodeResize(payload)
		if err != nil {
			log.WithError(err).Debug("bridge: dropping malformed resize frame")
			return true
		}
		if err := sess.Resize(rows, cols); err != nil {
			log.WithError(err).Debug("bridge: resize failed")
		}
	default:
		log.WithField("cmd", cmd).Debug("bridge: dropping unexpected frame from client")
	}
	return true
}

// drainAndExit flushes whatever output was already queued on sub before
// sending exactly one ShellExit frame, so the client sees the tail of the
// shell's final output ahead of the exit notice.
func (b *Bridge) drainAndExit(conn *websocket.Conn, sub subscription, log *logrus.Entry) {
	for {
		select {
		case chunk, ok := <-sub.C():
			if !ok {
				goto done
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, wire.EncodeOutput(chunk)); err != nil {
				return
			}
		default:
			goto done
		}
	}
done:
	if err := conn.WriteMessage(websocket.BinaryMessage, wire.EncodeShellExit()); err != nil {
		log.WithError(err).Debug("bridge: failed to send shell exit frame")
	}
}

// subscription is the minimal view of broadcast.Subscription[[]byte] that
// this package needs, so it does not have to import the generic directly
// in exported signatures.
type subscription interface {
	C() <-chan []byte
	SwapLagged() int64
}
