// Package web provides the HTTP status page, JSON endpoints, the start/stop
// control and the live report stream of the lock-feedback daemon.
package web

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strconv"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/sweeney/lock-feedback/internal/history"
	"github.com/sweeney/lock-feedback/internal/logic"
	"github.com/sweeney/lock-feedback/internal/status"
)

// Loop is the part of the feedback loop the server exposes.
type Loop interface {
	SetActive(active bool)
	Active() bool
	Samples() []history.Sample
	Band() logic.Band
}

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	loop       Loop
	hub        *Hub
}

// New creates a Server that reads state from the tracker and the loop.
// A nil hub disables the /ws stream.
func New(addr string, tracker *status.Tracker, loop Loop, hub *Hub) *Server {
	s := &Server{tracker: tracker, loop: loop, hub: hub}

	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/index.html", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/index.json", s.handleJSON).Methods(http.MethodGet)
	r.HandleFunc("/history.json", s.handleHistory).Methods(http.MethodGet)
	r.HandleFunc("/active", s.handleActive).Methods(http.MethodPost)
	if hub != nil {
		r.Handle("/ws", hub)
	}

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: handlers.LoggingHandler(log.Writer(), r),
	}
	return s
}

// Handler returns the root handler. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) snapshot() status.Snapshot {
	snap := s.tracker.Snapshot()
	snap.Active = s.loop.Active()
	return snap
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, s.snapshot(), s.loop.Samples())
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(s.snapshot()))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(formatHistory(s.loop.Band(), s.loop.Samples()))
}

// handleActive sets the loop running or paused. The form value "active" is
// parsed with strconv.ParseBool; without it the state is toggled. Form posts
// from the status page are redirected back to it.
func (s *Server) handleActive(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form: "+err.Error(), http.StatusBadRequest)
		return
	}

	want := !s.loop.Active()
	if v := r.Form.Get("active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			http.Error(w, "active must be a boolean", http.StatusBadRequest)
			return
		}
		want = b
	}
	s.loop.SetActive(want)
	s.tracker.SetActive(want)
	log.Printf("web: active=%v requested by %s", want, r.RemoteAddr)

	if r.Form.Get("redirect") != "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"active": want})
}
