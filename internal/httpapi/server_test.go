package httpapi

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

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := session.NewStore("/bin/cat", time.Minute, time.Second, 0, discardLogger())
	t.Cleanup(store.Stop)

	s := New(store, discardLogger())
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)
	return srv
}

func TestHealthzReturnsOK(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestIndexServesHTML(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
}

func TestWebSocketSeedScenario(t *testing.T) {
	srv := newTestServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	cmd, sessionID, err := wire.Decode(data)
	require.NoError(t, err)
	require.Equal(t, wire.CmdSessionID, cmd)
	require.NotEmpty(t, sessionID)

	_, data, err = conn.ReadMessage()
	require.NoError(t, err)
	cmd, _, err = wire.Decode(data)
	require.NoError(t, err)
	require.Equal(t, wire.CmdScrollback, cmd)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, wire.Encode(wire.CmdInput, []byte("seed\n"))))

	var collected string
	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(collected, "seed") && time.Now().Before(deadline) {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		cmd, payload, err := wire.Decode(data)
		require.NoError(t, err)
		if cmd == wire.CmdOutput {
			collected += string(payload)
		}
	}
	assert.Contains(t, collected, "seed")
}

func TestWebSocketReattachAfterReconnect(t *testing.T) {
	srv := newTestServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	first, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	first.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := first.ReadMessage()
	require.NoError(t, err)
	_, sessionID, err := wire.Decode(data)
	require.NoError(t, err)

	first.Close()

	second, _, err := websocket.DefaultDialer.Dial(url+"?sid="+string(sessionID), nil)
	require.NoError(t, err)
	defer second.Close()

	second.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err = second.ReadMessage()
	require.NoError(t, err)
	cmd, payload, err := wire.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, wire.CmdSessionID, cmd)
	assert.Equal(t, string(sessionID), string(payload))
}
