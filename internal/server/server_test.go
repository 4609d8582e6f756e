package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/chembench/server/internal/judge"
	"github.com/chembench/server/internal/oracle"
	"github.com/chembench/server/internal/session"
	"github.com/chembench/server/internal/stream"
	"github.com/chembench/server/pkg/lab"
)

type stubOracle struct {
	experiment *lab.Experiment
	verdict    lab.Verdict
	reply      string
	image      string
	err        error

	lastChat   oracle.ChatRequest
	lastLayout oracle.LayoutRequest
}

func (s *stubOracle) GenerateExperiment(_ context.Context, req oracle.ExperimentRequest) (*lab.Experiment, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.experiment, nil
}

func (s *stubOracle) JudgeLayout(_ context.Context, req oracle.LayoutRequest) (lab.Verdict, error) {
	s.lastLayout = req
	if s.err != nil {
		return lab.Verdict{}, s.err
	}
	return s.verdict, nil
}

func (s *stubOracle) Chat(_ context.Context, req oracle.ChatRequest) (string, error) {
	s.lastChat = req
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func (s *stubOracle) EditImage(_ context.Context, req oracle.ImageEditRequest) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.image, nil
}

func newTestServer(t *testing.T) (*Server, *stubOracle) {
	t.Helper()

	stub := &stubOracle{
		experiment: &lab.Experiment{
			Title:     "Acid-Base Titration",
			Objective: "Determine the concentration of an unknown acid.",
			Equipment: []string{"Burette", "Flask"},
			Steps:     []string{"Rinse the burette.", "Titrate to the endpoint."},
			InitialAssembly: []lab.SeedPlacement{
				{Name: "Burette", X: 50, Y: 20},
			},
		},
		verdict: lab.Verdict{IsCorrect: true, Feedback: "Looks right."},
		reply:   "Start by rinsing the burette.",
		image:   "data:image/png;base64,aW1n",
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(Dependencies{
		Sessions: session.NewManager(nil),
		Oracle:   stub,
		Judge:    judge.New(stub, log),
		Hub:      stream.NewHub(log),
		Logger:   log,
	})
	return srv, stub
}

func doRequest(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	} else {
		buf.WriteString("{}")
	}

	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func createSession(t *testing.T, srv *Server, body any) SessionView {
	t.Helper()
	rec := doRequest(t, srv, http.MethodPost, "/api/v1/sessions", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: status = %d, body %s", rec.Code, rec.Body.String())
	}
	return decodeBody[SessionView](t, rec)
}

func TestHealthcheck(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/healthcheck", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	status := decodeBody[map[string]any](t, rec)
	if status["status"] != "ok" {
		t.Errorf("status field = %v, want ok", status["status"])
	}
}

func TestCreateSession_Defaults(t *testing.T) {
	srv, _ := newTestServer(t)

	view := createSession(t, srv, nil)
	if view.ID == "" {
		t.Error("expected a session id")
	}
	if view.Role != lab.RoleStudent {
		t.Errorf("role = %q, want student", view.Role)
	}
	if view.Language != lab.LanguageEnglish {
		t.Errorf("language = %q, want en", view.Language)
	}
}

func TestCreateSession_UnknownLanguage(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/sessions",
		CreateSessionRequest{Language: "zz"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGetSession_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/sessions/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestLoadExperiment_SeedsCanvas(t *testing.T) {
	srv, _ := newTestServer(t)
	sess := createSession(t, srv, nil)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/sessions/"+sess.ID+"/experiment",
		LoadExperimentRequest{Topic: "titration", Width: 200, Height: 200})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	view := decodeBody[SessionView](t, rec)
	if view.Experiment == nil || view.Experiment.Title != "Acid-Base Titration" {
		t.Fatalf("unexpected experiment: %+v", view.Experiment)
	}
	if len(view.Items) != 1 {
		t.Fatalf("items = %d, want 1 seeded item", len(view.Items))
	}
	// Seed percentages resolve against the reported 200x200 canvas.
	if got := view.Items[0].Position; got.X != 100 || got.Y != 40 {
		t.Errorf("seed position = %+v, want {100 40}", got)
	}
	if len(view.Prototypes) != 2 {
		t.Errorf("prototypes = %d, want 2", len(view.Prototypes))
	}
}

func TestLoadExperiment_EmptyTopic(t *testing.T) {
	srv, _ := newTestServer(t)
	sess := createSession(t, srv, nil)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/sessions/"+sess.ID+"/experiment",
		LoadExperimentRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestLoadExperiment_OracleFailure(t *testing.T) {
	srv, stub := newTestServer(t)
	sess := createSession(t, srv, CreateSessionRequest{Language: lab.LanguageRussian})
	stub.err = errors.New("oracle returned status 503")

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/sessions/"+sess.ID+"/experiment",
		LoadExperimentRequest{Topic: "titration"})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	resp := decodeBody[ErrorResponse](t, rec)
	if !strings.Contains(resp.Error, "недоступен") {
		t.Errorf("expected localized message, got %q", resp.Error)
	}
}

func TestInsertAndRepositionItem(t *testing.T) {
	srv, _ := newTestServer(t)
	sess := createSession(t, srv, nil)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/sessions/"+sess.ID+"/canvas/items",
		InsertItemRequest{Name: "Flask", X: 10, Y: 20})
	if rec.Code != http.StatusCreated {
		t.Fatalf("insert status = %d, body %s", rec.Code, rec.Body.String())
	}
	item := decodeBody[lab.PlacedItem](t, rec)
	if item.ID == "" || item.Name != "Flask" {
		t.Fatalf("unexpected item: %+v", item)
	}

	rec = doRequest(t, srv, http.MethodPut,
		"/api/v1/sessions/"+sess.ID+"/canvas/items/"+item.ID+"/position",
		RepositionRequest{X: 30, Y: 40})
	if rec.Code != http.StatusOK {
		t.Fatalf("reposition status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/sessions/"+sess.ID, nil)
	view := decodeBody[SessionView](t, rec)
	if len(view.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(view.Items))
	}
	if got := view.Items[0].Position; got.X != 30 || got.Y != 40 {
		t.Errorf("position = %+v, want {30 40}", got)
	}
}

func TestRepositionItem_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	sess := createSession(t, srv, nil)

	rec := doRequest(t, srv, http.MethodPut,
		"/api/v1/sessions/"+sess.ID+"/canvas/items/ghost/position",
		RepositionRequest{X: 1, Y: 2})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestCheckLayout_StoresVerdict(t *testing.T) {
	srv, _ := newTestServer(t)
	sess := createSession(t, srv, nil)

	doRequest(t, srv, http.MethodPost, "/api/v1/sessions/"+sess.ID+"/canvas/items",
		InsertItemRequest{Name: "Flask", X: 100, Y: 100})

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/sessions/"+sess.ID+"/canvas/check",
		CanvasSizeRequest{Width: 800, Height: 600})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	verdict := decodeBody[lab.Verdict](t, rec)
	if !verdict.IsCorrect || verdict.Feedback != "Looks right." {
		t.Fatalf("unexpected verdict: %+v", verdict)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/sessions/"+sess.ID, nil)
	view := decodeBody[SessionView](t, rec)
	if view.Verdict == nil || !view.Verdict.IsCorrect {
		t.Errorf("verdict not stored on session: %+v", view.Verdict)
	}
}

func TestCheckLayout_OracleFailureFallsBack(t *testing.T) {
	srv, stub := newTestServer(t)
	sess := createSession(t, srv, nil)
	stub.err = errors.New("oracle returned status 429")

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/sessions/"+sess.ID+"/canvas/check",
		CanvasSizeRequest{Width: 800, Height: 600})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 with fallback verdict", rec.Code)
	}
	verdict := decodeBody[lab.Verdict](t, rec)
	if verdict.IsCorrect {
		t.Error("fallback verdict should not be correct")
	}
	if verdict.Feedback == "" {
		t.Error("fallback verdict should carry feedback")
	}
}

func TestCheckLayout_ClearedCanvasStaysEmpty(t *testing.T) {
	srv, stub := newTestServer(t)
	sess := createSession(t, srv, nil)

	doRequest(t, srv, http.MethodPost, "/api/v1/sessions/"+sess.ID+"/experiment",
		LoadExperimentRequest{Topic: "titration", Width: 200, Height: 200})
	doRequest(t, srv, http.MethodDelete, "/api/v1/sessions/"+sess.ID+"/canvas", nil)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/sessions/"+sess.ID+"/canvas/check",
		CanvasSizeRequest{Width: 200, Height: 200})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	// The judge sees the canvas exactly as the user left it.
	if len(stub.lastLayout.Items) != 0 {
		t.Errorf("judged %d items, want 0 for a cleared canvas", len(stub.lastLayout.Items))
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/sessions/"+sess.ID, nil)
	view := decodeBody[SessionView](t, rec)
	if len(view.Items) != 0 {
		t.Errorf("items after check = %d, cleared items must not reappear", len(view.Items))
	}
}

func TestReportCanvasSize(t *testing.T) {
	srv, _ := newTestServer(t)
	sess := createSession(t, srv, nil)

	// Load with no measured size, then report the real dimensions: the
	// empty canvas reseeds at the measured size.
	doRequest(t, srv, http.MethodPost, "/api/v1/sessions/"+sess.ID+"/experiment",
		LoadExperimentRequest{Topic: "titration"})
	doRequest(t, srv, http.MethodDelete, "/api/v1/sessions/"+sess.ID+"/canvas", nil)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/sessions/"+sess.ID+"/canvas/size",
		CanvasSizeRequest{Width: 200, Height: 200})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	state := decodeBody[struct {
		Items []lab.PlacedItem `json:"items"`
	}](t, rec)
	if len(state.Items) != 1 {
		t.Fatalf("items = %d, want reseeded seed layout", len(state.Items))
	}
	if got := state.Items[0].Position; got.X != 100 || got.Y != 40 {
		t.Errorf("seed position = %+v, want {100 40}", got)
	}

	// A populated canvas is left alone by a size report.
	doRequest(t, srv, http.MethodPost, "/api/v1/sessions/"+sess.ID+"/canvas/items",
		InsertItemRequest{Name: "Flask", X: 5, Y: 5})
	rec = doRequest(t, srv, http.MethodPost, "/api/v1/sessions/"+sess.ID+"/canvas/size",
		CanvasSizeRequest{Width: 400, Height: 400})
	state = decodeBody[struct {
		Items []lab.PlacedItem `json:"items"`
	}](t, rec)
	if len(state.Items) != 2 {
		t.Errorf("items = %d, size report must not disturb placed items", len(state.Items))
	}
}

func TestResetCanvas_Reseeds(t *testing.T) {
	srv, _ := newTestServer(t)
	sess := createSession(t, srv, nil)

	doRequest(t, srv, http.MethodPost, "/api/v1/sessions/"+sess.ID+"/experiment",
		LoadExperimentRequest{Topic: "titration", Width: 200, Height: 200})
	doRequest(t, srv, http.MethodPost, "/api/v1/sessions/"+sess.ID+"/canvas/items",
		InsertItemRequest{Name: "Flask", X: 5, Y: 5})

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/sessions/"+sess.ID+"/canvas/reset",
		CanvasSizeRequest{Width: 200, Height: 200})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	state := decodeBody[struct {
		Items []lab.PlacedItem `json:"items"`
	}](t, rec)
	if len(state.Items) != 1 || state.Items[0].Name != "Burette" {
		t.Fatalf("reset should restore the seed layout, got %+v", state.Items)
	}
}

func TestClearCanvas(t *testing.T) {
	srv, _ := newTestServer(t)
	sess := createSession(t, srv, nil)

	doRequest(t, srv, http.MethodPost, "/api/v1/sessions/"+sess.ID+"/canvas/items",
		InsertItemRequest{Name: "Flask", X: 5, Y: 5})

	rec := doRequest(t, srv, http.MethodDelete, "/api/v1/sessions/"+sess.ID+"/canvas", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/sessions/"+sess.ID, nil)
	view := decodeBody[SessionView](t, rec)
	if len(view.Items) != 0 {
		t.Errorf("items = %d, want empty canvas", len(view.Items))
	}
}

func TestExperimentChat_PrimesContextAndRecordsTranscript(t *testing.T) {
	srv, stub := newTestServer(t)
	sess := createSession(t, srv, nil)

	doRequest(t, srv, http.MethodPost, "/api/v1/sessions/"+sess.ID+"/experiment",
		LoadExperimentRequest{Topic: "titration"})

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/sessions/"+sess.ID+"/chat",
		ChatRequest{Message: "What do I do first?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	msg := decodeBody[lab.ChatMessage](t, rec)
	if msg.Role != lab.ChatRoleModel || msg.Text != "Start by rinsing the burette." {
		t.Fatalf("unexpected reply: %+v", msg)
	}

	if !strings.Contains(stub.lastChat.ExperimentContext, "Acid-Base Titration") {
		t.Errorf("chat was not primed with the experiment, context %q", stub.lastChat.ExperimentContext)
	}

	// A second message carries the first exchange as history.
	doRequest(t, srv, http.MethodPost, "/api/v1/sessions/"+sess.ID+"/chat",
		ChatRequest{Message: "And then?"})
	if len(stub.lastChat.History) != 2 {
		t.Errorf("history = %d turns, want 2", len(stub.lastChat.History))
	}
}

func TestGeneralChat_HasNoExperimentContext(t *testing.T) {
	srv, stub := newTestServer(t)
	sess := createSession(t, srv, nil)

	doRequest(t, srv, http.MethodPost, "/api/v1/sessions/"+sess.ID+"/experiment",
		LoadExperimentRequest{Topic: "titration"})

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/sessions/"+sess.ID+"/generalchat",
		ChatRequest{Message: "What is molarity?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if stub.lastChat.ExperimentContext != "" {
		t.Errorf("general chat must not carry experiment context, got %q", stub.lastChat.ExperimentContext)
	}
}

func TestChat_EmptyReplyFallsBack(t *testing.T) {
	srv, stub := newTestServer(t)
	sess := createSession(t, srv, nil)
	stub.reply = ""

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/sessions/"+sess.ID+"/generalchat",
		ChatRequest{Message: "hello"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	msg := decodeBody[lab.ChatMessage](t, rec)
	if msg.Text != "No response received." {
		t.Errorf("reply = %q, want the no-response fallback", msg.Text)
	}
}

func TestChat_EmptyReplyFallsBackLocalized(t *testing.T) {
	srv, stub := newTestServer(t)
	sess := createSession(t, srv, CreateSessionRequest{Language: lab.LanguageRussian})
	stub.reply = "   "

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/sessions/"+sess.ID+"/chat",
		ChatRequest{Message: "привет"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	msg := decodeBody[lab.ChatMessage](t, rec)
	if msg.Text != "Ответ не получен." {
		t.Errorf("reply = %q, want the localized no-response fallback", msg.Text)
	}
}

func TestChat_OracleFailure(t *testing.T) {
	srv, stub := newTestServer(t)
	sess := createSession(t, srv, nil)
	stub.err = errors.New("oracle returned status 500")

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/sessions/"+sess.ID+"/chat",
		ChatRequest{Message: "hello"})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestEditImage(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/images/edit",
		EditImageRequest{ImageBase64: "aW1n", Prompt: "add a flame"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[EditImageResponse](t, rec)
	if resp.Image != "data:image/png;base64,aW1n" {
		t.Errorf("image = %q", resp.Image)
	}
}

func TestEditImage_MissingPrompt(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/images/edit",
		EditImageRequest{ImageBase64: "aW1n"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestDeleteSession(t *testing.T) {
	srv, _ := newTestServer(t)
	sess := createSession(t, srv, nil)

	rec := doRequest(t, srv, http.MethodDelete, "/api/v1/sessions/"+sess.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	rec = doRequest(t, srv, http.MethodGet, "/api/v1/sessions/"+sess.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 after delete", rec.Code)
	}
}
