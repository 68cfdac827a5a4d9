// Package httpapi exposes ttywebd's HTTP surface: a health check, the
// WebSocket upgrade endpoint that bridges into a session, and a small
// static page documenting the wire protocol.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/srggs/ttywebd/internal/bridge"
	"github.com/srggs/ttywebd/internal/session"
)

// Server bundles the chi router with its dependencies.
type Server struct {
	router *chi.Mux
	bridge *bridge.Bridge
	store  *session.Store
	log    *logrus.Logger
}

// New builds a Server backed by store.
func New(store *session.Store, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}

	s := &Server{
		bridge: bridge.New(store, log),
		store:  store,
		log:    log,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/ws", s.handleWebSocket)
	r.Get("/", s.handleIndex)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	s.router = r
	return s
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

func requestLogger(log *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   ww.Status(),
				"duration": time.Since(start).String(),
			}).Debug("http request")
		})
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The daemon is meant to sit behind a reverse proxy or be dialed
	// directly by a trusted client; it does not itself implement
	// same-origin checks or authentication. See Non-goals.
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Debug("httpapi: websocket upgrade failed")
		return
	}
	s.bridge.Serve(conn, r.URL.Query().Get("sid"))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}
