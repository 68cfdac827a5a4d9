package bridge

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srggs/ttywebd/internal/session"
	"github.com/srggs/ttywebd/internal/wire"
)

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(logrusDiscard{})
	return l
}

type logrusDiscard struct{}

func (logrusDiscard) Write(p []byte) (int, error) { return len(p), nil }

func newTestServer(t *testing.T) (*httptest.Server, *Bridge) {
	t.Helper()
	store := session.NewStore("/bin/cat", time.Minute, time.Second, 0, discardLogger())
	t.Cleanup(store.Stop)

	b := New(store, discardLogger())
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		b.Serve(conn, r.URL.Query().Get("sid"))
	}))
	t.Cleanup(srv.Close)
	return srv, b
}

func dial(t *testing.T, srv *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	if sessionID != "" {
		url += "?sid=" + sessionID
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) (wire.Cmd, []byte) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	cmd, payload, err := wire.Decode(data)
	require.NoError(t, err)
	return cmd, payload
}

func TestNewConnectionGetsSessionIDThenScrollback(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv, "")
	defer conn.Close()

	cmd, payload := readFrame(t, conn)
	assert.Equal(t, wire.CmdSessionID, cmd)
	assert.NotEmpty(t, payload)

	cmd, _ = readFrame(t, conn)
	assert.Equal(t, wire.CmdScrollback, cmd)
}

func TestInputIsEchoedBack(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv, "")
	defer conn.Close()

	readFrame(t, conn) // session id
	readFrame(t, conn) // scrollback

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, wire.Encode(wire.CmdInput, []byte("echo-me\n"))))

	var collected string
	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(collected, "echo-me") && time.Now().Before(deadline) {
		cmd, payload := readFrame(t, conn)
		if cmd == wire.CmdOutput {
			collected += string(payload)
		}
	}
	assert.Contains(t, collected, "echo-me")
}

func TestReattachToExistingSessionReplaysScrollback(t *testing.T) {
	srv, _ := newTestServer(t)

	first := dial(t, srv, "")
	_, sessionID := readFrame(t, first)
	readFrame(t, first) // scrollback

	require.NoError(t, first.WriteMessage(websocket.BinaryMessage, wire.Encode(wire.CmdInput, []byte("persisted\n"))))
	time.Sleep(200 * time.Millisecond)
	first.Close()

	second := dial(t, srv, string(sessionID))
	defer second.Close()

	cmd, payload := readFrame(t, second)
	require.Equal(t, wire.CmdSessionID, cmd)
	assert.Equal(t, string(sessionID), string(payload))

	cmd, payload = readFrame(t, second)
	require.Equal(t, wire.CmdScrollback, cmd)
	assert.Contains(t, string(payload), "persisted")
}

func TestUnknownSessionIDCreatesNewSession(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv, "does-not-exist")
	defer conn.Close()

	cmd, payload := readFrame(t, conn)
	assert.Equal(t, wire.CmdSessionID, cmd)
	assert.NotEqual(t, "does-not-exist", string(payload))
}
