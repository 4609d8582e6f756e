package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chembench/server/internal/geo"
	"github.com/chembench/server/internal/i18n"
	"github.com/chembench/server/internal/oracle"
	"github.com/chembench/server/internal/session"
	"github.com/chembench/server/pkg/lab"
	"github.com/chembench/server/pkg/streaming"
)

// SessionView is the API representation of a session.
type SessionView struct {
	ID         string                   `json:"id"`
	Role       lab.Role                 `json:"role"`
	Language   lab.Language             `json:"language"`
	Experiment *lab.Experiment          `json:"experiment,omitempty"`
	Prototypes []lab.EquipmentPrototype `json:"prototypes,omitempty"`
	Items      []lab.PlacedItem         `json:"items"`
	Verdict    *lab.Verdict             `json:"verdict,omitempty"`
}

func sessionView(sess *session.Session) SessionView {
	view := SessionView{
		ID:       sess.ID,
		Role:     sess.Role(),
		Language: sess.Language(),
		Items:    sess.Canvas.Items(),
		Verdict:  sess.Canvas.Verdict(),
	}
	if exp := sess.Experiment(); exp != nil {
		view.Experiment = exp
		view.Prototypes = exp.Prototypes()
	}
	return view
}

// Healthcheck reports liveness and a few cheap counters.
func (s *Server) Healthcheck(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":   "ok",
		"sessions": s.deps.Sessions.Count(),
	}
	if s.deps.Hub != nil {
		status["viewers"] = s.deps.Hub.ClientCount()
	}
	s.writeJSON(w, status, http.StatusOK)
}

// CreateSessionRequest opens a new workbench session.
type CreateSessionRequest struct {
	Role     lab.Role     `json:"role"`
	Language lab.Language `json:"language"`
}

// CreateSession opens a session. Role defaults to student, language to
// English; unknown values are rejected.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	if req.Role == "" {
		req.Role = lab.RoleStudent
	}
	if req.Language == "" {
		req.Language = lab.LanguageEnglish
	}
	if !req.Role.Valid() {
		s.writeError(w, "Unknown role", string(req.Role), http.StatusBadRequest)
		return
	}
	if !req.Language.Valid() {
		s.writeError(w, "Unknown language", string(req.Language), http.StatusBadRequest)
		return
	}

	sess := s.deps.Sessions.Create(req.Language, req.Role)
	s.log.Info("Session created", "session", sess.ID, "role", req.Role, "language", req.Language)
	s.writeJSON(w, sessionView(sess), http.StatusCreated)
}

// GetSession returns the full session state.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	sess := s.getSession(w, r)
	if sess == nil {
		return
	}
	s.writeJSON(w, sessionView(sess), http.StatusOK)
}

// DeleteSession discards a session and its canvas.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sess := s.getSession(w, r)
	if sess == nil {
		return
	}
	s.deps.Sessions.Delete(sess.ID)
	s.log.Info("Session deleted", "session", sess.ID)
	w.WriteHeader(http.StatusNoContent)
}

// LoadExperimentRequest asks the oracle for an experiment guide on a topic.
// Width and height are the client's measured canvas size; zero falls back
// to the default canvas.
type LoadExperimentRequest struct {
	Topic  string  `json:"topic"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// LoadExperiment generates an experiment for the session and seeds the
// canvas from its initial assembly.
func (s *Server) LoadExperiment(w http.ResponseWriter, r *http.Request) {
	sess := s.getSession(w, r)
	if sess == nil {
		return
	}

	var req LoadExperimentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}
	if req.Topic == "" {
		s.writeError(w, "Topic is required", "", http.StatusBadRequest)
		return
	}

	exp, err := s.deps.Oracle.GenerateExperiment(r.Context(), oracle.ExperimentRequest{
		Topic:    req.Topic,
		Role:     sess.Role(),
		Language: sess.Language(),
	})
	if err != nil {
		s.log.Error("Experiment generation failed", "session", sess.ID, "topic", req.Topic, "error", err)
		s.writeError(w, i18n.ServiceUnavailable(sess.Language()), "", http.StatusBadGateway)
		return
	}

	sess.SetExperiment(exp, geo.CanvasSize{Width: req.Width, Height: req.Height})
	s.log.Info("Experiment loaded", "session", sess.ID, "title", exp.Title)

	s.publish(streaming.TypeExperimentLoaded, sess.ID, streaming.ExperimentLoadedPayload{
		Experiment: exp,
		Prototypes: exp.Prototypes(),
	})
	s.publish(streaming.TypeCanvasState, sess.ID, streaming.CanvasStatePayload{
		Items: sess.Canvas.Items(),
	})

	s.writeJSON(w, sessionView(sess), http.StatusOK)
}

// InsertItemRequest places a palette item on the canvas.
type InsertItemRequest struct {
	Name string  `json:"name"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// InsertItem drops a new item onto the canvas.
func (s *Server) InsertItem(w http.ResponseWriter, r *http.Request) {
	sess := s.getSession(w, r)
	if sess == nil {
		return
	}

	var req InsertItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		s.writeError(w, "Item name is required", "", http.StatusBadRequest)
		return
	}

	item := sess.Canvas.Insert(req.Name, lab.Position{X: req.X, Y: req.Y})
	s.publish(streaming.TypeItemInserted, sess.ID, item)
	s.writeJSON(w, item, http.StatusCreated)
}

// RepositionRequest moves an existing item.
type RepositionRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// RepositionItem moves an item to a new position. The verdict, if any,
// stays until the next layout check.
func (s *Server) RepositionItem(w http.ResponseWriter, r *http.Request) {
	sess := s.getSession(w, r)
	if sess == nil {
		return
	}

	itemID := r.PathValue("itemID")
	var req RepositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	pos := lab.Position{X: req.X, Y: req.Y}
	if !sess.Canvas.Reposition(itemID, pos) {
		s.writeError(w, "Item not found", itemID, http.StatusNotFound)
		return
	}

	s.publish(streaming.TypeItemMoved, sess.ID, streaming.ItemMovedPayload{ID: itemID, Position: pos})
	s.writeJSON(w, streaming.ItemMovedPayload{ID: itemID, Position: pos}, http.StatusOK)
}

// CanvasSizeRequest reports the client's measured canvas dimensions.
type CanvasSizeRequest struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ReportCanvasSize records the client's measured canvas dimensions. An
// empty canvas picks up its seed placements at the measured size; one that
// already has items is left untouched.
func (s *Server) ReportCanvasSize(w http.ResponseWriter, r *http.Request) {
	sess := s.getSession(w, r)
	if sess == nil {
		return
	}

	var req CanvasSizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	sess.ReseedCanvas(geo.CanvasSize{Width: req.Width, Height: req.Height})
	s.writeJSON(w, streaming.CanvasStatePayload{
		Items:   sess.Canvas.Items(),
		Verdict: sess.Canvas.Verdict(),
	}, http.StatusOK)
}

// CheckLayout asks the judge for a verdict on the layout exactly as it
// stands, empty included. The verdict is stored on the canvas and pushed
// to viewers. Judge failures surface as a fallback verdict, never as an
// HTTP error.
func (s *Server) CheckLayout(w http.ResponseWriter, r *http.Request) {
	sess := s.getSession(w, r)
	if sess == nil {
		return
	}

	var req CanvasSizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	size := geo.CanvasSize{Width: req.Width, Height: req.Height}
	verdict := s.deps.Judge.Evaluate(r.Context(), sess.ExperimentTitle(), sess.Canvas.Items(), size, sess.Language())
	sess.Canvas.SetVerdict(verdict)

	s.publish(streaming.TypeVerdict, sess.ID, verdict)
	s.writeJSON(w, verdict, http.StatusOK)
}

// ResetCanvas discards all placements and re-seeds from the experiment's
// initial assembly.
func (s *Server) ResetCanvas(w http.ResponseWriter, r *http.Request) {
	sess := s.getSession(w, r)
	if sess == nil {
		return
	}

	var req CanvasSizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	sess.ResetCanvas(geo.CanvasSize{Width: req.Width, Height: req.Height})
	state := streaming.CanvasStatePayload{Items: sess.Canvas.Items()}
	s.publish(streaming.TypeCanvasReset, sess.ID, state)
	s.writeJSON(w, state, http.StatusOK)
}

// ClearCanvas removes every item and the verdict.
func (s *Server) ClearCanvas(w http.ResponseWriter, r *http.Request) {
	sess := s.getSession(w, r)
	if sess == nil {
		return
	}

	sess.Canvas.Clear()
	s.publish(streaming.TypeCanvasCleared, sess.ID, streaming.CanvasStatePayload{Items: sess.Canvas.Items()})
	w.WriteHeader(http.StatusNoContent)
}

// ChatRequest carries one user message to either assistant.
type ChatRequest struct {
	Message string `json:"message"`
}

// ExperimentChat relays a message to the lab assistant, primed with the
// current experiment context.
func (s *Server) ExperimentChat(w http.ResponseWriter, r *http.Request) {
	s.chat(w, r, true)
}

// GeneralChat relays a message to the general chemistry assistant.
func (s *Server) GeneralChat(w http.ResponseWriter, r *http.Request) {
	s.chat(w, r, false)
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request, experiment bool) {
	sess := s.getSession(w, r)
	if sess == nil {
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		s.writeError(w, "Message is required", "", http.StatusBadRequest)
		return
	}

	history := sess.GeneralChat()
	primer := ""
	if experiment {
		history = sess.LabChat()
		primer = sess.ExperimentContext()
	}

	turns := make([]oracle.ChatTurn, 0, len(history))
	for _, msg := range history {
		turns = append(turns, oracle.ChatTurn{Role: msg.Role, Text: msg.Text})
	}

	reply, err := s.deps.Oracle.Chat(r.Context(), oracle.ChatRequest{
		History:           turns,
		Message:           req.Message,
		ExperimentContext: primer,
		Role:              sess.Role(),
		Language:          sess.Language(),
	})
	if err != nil {
		s.log.Error("Chat failed", "session", sess.ID, "error", err)
		s.writeError(w, i18n.AssistantUnreachable(sess.Language()), "", http.StatusBadGateway)
		return
	}
	if strings.TrimSpace(reply) == "" {
		reply = i18n.NoResponse(sess.Language())
	}

	now := time.Now().UTC()
	userMsg := lab.ChatMessage{ID: uuid.NewString(), Role: lab.ChatRoleUser, Text: req.Message, Timestamp: now}
	modelMsg := lab.ChatMessage{ID: uuid.NewString(), Role: lab.ChatRoleModel, Text: reply, Timestamp: now}
	if experiment {
		sess.AppendLabChat(userMsg)
		sess.AppendLabChat(modelMsg)
	} else {
		sess.AppendGeneralChat(userMsg)
		sess.AppendGeneralChat(modelMsg)
	}

	s.publish(streaming.TypeChatMessage, sess.ID, modelMsg)
	s.writeJSON(w, modelMsg, http.StatusOK)
}

// EditImageRequest asks for a generative edit of an uploaded image.
type EditImageRequest struct {
	ImageBase64 string `json:"imageBase64"`
	MimeType    string `json:"mimeType"`
	Prompt      string `json:"prompt"`
}

// EditImageResponse carries the edited image as a data URI.
type EditImageResponse struct {
	Image string `json:"image"`
}

// EditImage sends an image and edit prompt to the oracle.
func (s *Server) EditImage(w http.ResponseWriter, r *http.Request) {
	var req EditImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}
	if req.ImageBase64 == "" || req.Prompt == "" {
		s.writeError(w, "Image and prompt are required", "", http.StatusBadRequest)
		return
	}
	if req.MimeType == "" {
		req.MimeType = "image/png"
	}

	image, err := s.deps.Oracle.EditImage(r.Context(), oracle.ImageEditRequest{
		ImageBase64: req.ImageBase64,
		MimeType:    req.MimeType,
		Prompt:      req.Prompt,
	})
	if err != nil {
		s.log.Error("Image edit failed", "error", err)
		s.writeError(w, "Image edit failed", "", http.StatusBadGateway)
		return
	}

	s.writeJSON(w, EditImageResponse{Image: image}, http.StatusOK)
}
