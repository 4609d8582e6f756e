// Package server exposes the workbench over HTTP: session lifecycle,
// experiment generation, canvas editing, layout checking, chat and the
// WebSocket event feed.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/chembench/server/internal/dispatcher"
	"github.com/chembench/server/internal/judge"
	"github.com/chembench/server/internal/oracle"
	"github.com/chembench/server/internal/session"
	"github.com/chembench/server/internal/stream"
)

// Dependencies holds everything the handlers need.
type Dependencies struct {
	Sessions *session.Manager
	Oracle   oracle.Oracle
	Judge    *judge.Judge
	Hub      *stream.Hub
	// Events is optional; registered handlers receive every published
	// state-change event (metrics, audit fan-out).
	Events *dispatcher.Dispatcher
	Logger *slog.Logger
}

// Server is the HTTP API surface.
type Server struct {
	deps Dependencies
	log  *slog.Logger
}

// New creates a Server from its dependencies.
func New(deps Dependencies) *Server {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Server{deps: deps, log: log}
}

// Routes builds the request mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthcheck", s.Healthcheck)

	mux.HandleFunc("POST /api/v1/sessions", s.CreateSession)
	mux.HandleFunc("GET /api/v1/sessions/{id}", s.GetSession)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", s.DeleteSession)

	mux.HandleFunc("POST /api/v1/sessions/{id}/experiment", s.LoadExperiment)

	mux.HandleFunc("POST /api/v1/sessions/{id}/canvas/items", s.InsertItem)
	mux.HandleFunc("PUT /api/v1/sessions/{id}/canvas/items/{itemID}/position", s.RepositionItem)
	mux.HandleFunc("POST /api/v1/sessions/{id}/canvas/size", s.ReportCanvasSize)
	mux.HandleFunc("POST /api/v1/sessions/{id}/canvas/check", s.CheckLayout)
	mux.HandleFunc("POST /api/v1/sessions/{id}/canvas/reset", s.ResetCanvas)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}/canvas", s.ClearCanvas)

	mux.HandleFunc("POST /api/v1/sessions/{id}/chat", s.ExperimentChat)
	mux.HandleFunc("POST /api/v1/sessions/{id}/generalchat", s.GeneralChat)

	mux.HandleFunc("POST /api/v1/images/edit", s.EditImage)

	mux.Handle("GET /api/v1/sessions/{id}/events", s.deps.Hub)

	return mux
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("Failed to encode JSON response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, msg, details string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: msg, Details: details}); err != nil {
		s.log.Error("Failed to encode error response", "error", err)
	}
}

// getSession resolves the {id} path value to a live session and touches its
// idle timer. Writes a 404 and returns nil when the session is unknown.
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) *session.Session {
	id := r.PathValue("id")
	sess, ok := s.deps.Sessions.Get(id)
	if !ok {
		s.writeError(w, "Session not found", "", http.StatusNotFound)
		return nil
	}
	sess.Touch()
	return sess
}

// publish broadcasts a state change to WebSocket viewers and hands it to
// the event dispatcher when a handler is registered for it.
func (s *Server) publish(msgType, sessionID string, payload any) {
	if s.deps.Hub != nil {
		s.deps.Hub.Broadcast(msgType, sessionID, payload)
	}
	if s.deps.Events != nil && s.deps.Events.HasHandler(msgType) {
		if _, err := s.deps.Events.Dispatch(dispatcher.Event{
			Name:      msgType,
			SessionID: sessionID,
			Payload:   payload,
			Timestamp: time.Now(),
		}); err != nil {
			s.log.Warn("Event dispatch failed", "event", msgType, "error", err)
		}
	}
}
