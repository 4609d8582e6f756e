package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chembench/server/pkg/lab"
)

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(ClientConfig{
		BaseURL:    srv.URL,
		APIKey:     "test-key",
		ProModel:   "gemini-pro-test",
		FlashModel: "gemini-flash-test",
		ImageModel: "gemini-image-test",
	})
}

// textResponse writes a generateContent response whose first candidate
// carries a single text part.
func textResponse(w http.ResponseWriter, text string) {
	resp := map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]any{{"text": text}}}},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func TestGenerateExperiment(t *testing.T) {
	experimentJSON := `{
		"title": "Acid-Base Titration",
		"objective": "Determine the concentration of an unknown acid.",
		"equipment": ["Burette", "Flask"],
		"reagents": ["NaOH", "HCl"],
		"steps": ["Fill the burette.", "Titrate to the endpoint."],
		"safety": ["Wear goggles."],
		"errors": ["Overshooting the endpoint."],
		"initialAssembly": [{"name": "Burette", "x": 50, "y": 20}]
	}`

	var gotPath, gotKey string
	var gotBody genRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		textResponse(w, experimentJSON)
	}))
	defer srv.Close()

	client := newTestClient(srv)
	exp, err := client.GenerateExperiment(context.Background(), ExperimentRequest{
		Topic:    "titration",
		Role:     lab.RoleStudent,
		Language: lab.LanguageEnglish,
	})
	require.NoError(t, err)

	assert.Equal(t, "/models/gemini-flash-test:generateContent", gotPath)
	assert.Equal(t, "test-key", gotKey)
	require.NotNil(t, gotBody.SystemInstruction)
	assert.Equal(t, "application/json", gotBody.GenerationConfig.ResponseMimeType)

	assert.Equal(t, "Acid-Base Titration", exp.Title)
	assert.Equal(t, []string{"Burette", "Flask"}, exp.Equipment)
	require.Len(t, exp.InitialAssembly, 1)
	assert.Equal(t, lab.SeedPlacement{Name: "Burette", X: 50, Y: 20}, exp.InitialAssembly[0])
}

func TestGenerateExperiment_TeacherUsesProModel(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		textResponse(w, `{"title": "Electrolysis", "objective": "o", "equipment": [], "reagents": [], "steps": [], "safety": [], "errors": [], "initialAssembly": []}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).GenerateExperiment(context.Background(), ExperimentRequest{
		Topic:    "electrolysis",
		Role:     lab.RoleTeacher,
		Language: lab.LanguageEnglish,
	})
	require.NoError(t, err)
	assert.Equal(t, "/models/gemini-pro-test:generateContent", gotPath)
}

func TestGenerateExperiment_EmptyTitleRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		textResponse(w, `{"title": "", "objective": "o", "equipment": [], "reagents": [], "steps": [], "safety": [], "errors": [], "initialAssembly": []}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).GenerateExperiment(context.Background(), ExperimentRequest{
		Topic: "x", Role: lab.RoleStudent, Language: lab.LanguageEnglish,
	})
	assert.ErrorContains(t, err, "empty title")
}

func TestJudgeLayout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// fenced output still parses
		textResponse(w, "```json\n{\"isCorrect\": true, \"feedback\": \"Looks right.\"}\n```")
	}))
	defer srv.Close()

	verdict, err := newTestClient(srv).JudgeLayout(context.Background(), LayoutRequest{
		ExperimentTitle: "Distillation",
		CanvasWidth:     800,
		CanvasHeight:    600,
		Language:        lab.LanguageEnglish,
		Items:           []LayoutItem{{Name: "Flask", X: 100, Y: 150}},
	})
	require.NoError(t, err)
	assert.True(t, verdict.IsCorrect)
	assert.Equal(t, "Looks right.", verdict.Feedback)
}

func TestJudgeLayout_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).JudgeLayout(context.Background(), LayoutRequest{
		ExperimentTitle: "Distillation",
	})
	assert.ErrorContains(t, err, fmt.Sprint(http.StatusTooManyRequests))
}

func TestJudgeLayout_MalformedVerdict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		textResponse(w, `{"isCorrect": true, "unexpected": 1}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).JudgeLayout(context.Background(), LayoutRequest{})
	assert.ErrorContains(t, err, "parse verdict")
}

func TestChat_ContentOrdering(t *testing.T) {
	var gotBody genRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		textResponse(w, "The endpoint is reached when the indicator changes color.")
	}))
	defer srv.Close()

	reply, err := newTestClient(srv).Chat(context.Background(), ChatRequest{
		ExperimentContext: "Acid-Base Titration",
		History: []ChatTurn{
			{Role: lab.ChatRoleUser, Text: "What is a burette?"},
			{Role: lab.ChatRoleModel, Text: "A graduated glass tube."},
		},
		Message:  "When do I stop?",
		Role:     lab.RoleStudent,
		Language: lab.LanguageEnglish,
	})
	require.NoError(t, err)
	assert.Equal(t, "The endpoint is reached when the indicator changes color.", reply)

	require.Len(t, gotBody.Contents, 4)
	assert.Equal(t, "Context: Acid-Base Titration", gotBody.Contents[0].Parts[0].Text)
	assert.Equal(t, "user", gotBody.Contents[1].Role)
	assert.Equal(t, "model", gotBody.Contents[2].Role)
	assert.Equal(t, "When do I stop?", gotBody.Contents[3].Parts[0].Text)
}

func TestEditImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{
					{"text": "Here is the edited image."},
					{"inlineData": map[string]any{"mimeType": "image/png", "data": "aW1n"}},
				}}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	uri, err := newTestClient(srv).EditImage(context.Background(), ImageEditRequest{
		ImageBase64: "b3JpZw==",
		MimeType:    "image/png",
		Prompt:      "Add a safety shield",
	})
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,aW1n", uri)
}

func TestEditImage_TextOnlyResponseFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		textResponse(w, "I cannot edit this image.")
	}))
	defer srv.Close()

	_, err := newTestClient(srv).EditImage(context.Background(), ImageEditRequest{
		ImageBase64: "b3JpZw==",
		Prompt:      "Add a safety shield",
	})
	assert.ErrorContains(t, err, "no image data")
}
