package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chembench/server/pkg/lab"
)

// ClientConfig holds the Gemini API settings.
type ClientConfig struct {
	BaseURL    string // e.g. https://generativelanguage.googleapis.com/v1beta
	APIKey     string
	ProModel   string // used for teachers, judging and chat
	FlashModel string // used for student experiment guides
	ImageModel string // used for image editing
}

// Client implements Oracle against the Generative Language REST API.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
}

// NewClient creates a Gemini API client.
func NewClient(cfg ClientConfig) *Client {
	return &Client{
		cfg:        ClientConfig{
			BaseURL:    strings.TrimRight(cfg.BaseURL, "/"),
			APIKey:     cfg.APIKey,
			ProModel:   cfg.ProModel,
			FlashModel: cfg.FlashModel,
			ImageModel: cfg.ImageModel,
		},
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Wire types for the generateContent endpoint.

type genRequest struct {
	SystemInstruction *genContent  `json:"systemInstruction,omitempty"`
	Contents          []genContent `json:"contents"`
	GenerationConfig  *genConfig   `json:"generationConfig,omitempty"`
}

type genContent struct {
	Role  string    `json:"role,omitempty"`
	Parts []genPart `json:"parts"`
}

type genPart struct {
	Text       string         `json:"text,omitempty"`
	InlineData *genInlineData `json:"inlineData,omitempty"`
}

type genInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type genConfig struct {
	ResponseMimeType string         `json:"responseMimeType,omitempty"`
	ResponseSchema   map[string]any `json:"responseSchema,omitempty"`
}

type genResponse struct {
	Candidates []struct {
		Content genContent `json:"content"`
	} `json:"candidates"`
}

// generate POSTs a generateContent request and returns the decoded response.
func (c *Client) generate(ctx context.Context, model string, reqBody genRequest) (*genResponse, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.cfg.BaseURL, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oracle request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oracle returned status %d", resp.StatusCode)
	}

	var decoded genResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &decoded, nil
}

// text returns the concatenated text parts of the first candidate.
func (r *genResponse) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, part := range r.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	return b.String()
}

// modelForRole selects the model tier: teachers get the rigorous pro model,
// students the faster flash model.
func (c *Client) modelForRole(role lab.Role) string {
	if role == lab.RoleTeacher {
		return c.cfg.ProModel
	}
	return c.cfg.FlashModel
}

// GenerateExperiment implements Oracle.
func (c *Client) GenerateExperiment(ctx context.Context, req ExperimentRequest) (*lab.Experiment, error) {
	body := genRequest{
		SystemInstruction: &genContent{Parts: []genPart{{Text: experimentSystemPrompt(req.Role, req.Language)}}},
		Contents: []genContent{
			{Role: "user", Parts: []genPart{{Text: experimentPrompt(req.Topic, req.Language)}}},
		},
		GenerationConfig: &genConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   experimentSchema,
		},
	}

	resp, err := c.generate(ctx, c.modelForRole(req.Role), body)
	if err != nil {
		return nil, fmt.Errorf("generate experiment: %w", err)
	}

	var exp lab.Experiment
	if err := decodeStrict(resp.text(), &exp); err != nil {
		return nil, fmt.Errorf("parse experiment: %w", err)
	}
	if exp.Title == "" {
		return nil, fmt.Errorf("parse experiment: empty title")
	}
	return &exp, nil
}

// JudgeLayout implements Oracle.
func (c *Client) JudgeLayout(ctx context.Context, req LayoutRequest) (lab.Verdict, error) {
	body := genRequest{
		Contents: []genContent{
			{Role: "user", Parts: []genPart{{Text: layoutPrompt(req)}}},
		},
		GenerationConfig: &genConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   verdictSchema,
		},
	}

	resp, err := c.generate(ctx, c.cfg.ProModel, body)
	if err != nil {
		return lab.Verdict{}, fmt.Errorf("judge layout: %w", err)
	}

	var verdict lab.Verdict
	if err := decodeStrict(resp.text(), &verdict); err != nil {
		return lab.Verdict{}, fmt.Errorf("parse verdict: %w", err)
	}
	return verdict, nil
}

// Chat implements Oracle.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (string, error) {
	contents := make([]genContent, 0, len(req.History)+2)
	if req.ExperimentContext != "" {
		// prime the conversation with the current experiment
		contents = append(contents, genContent{
			Role:  "user",
			Parts: []genPart{{Text: "Context: " + req.ExperimentContext}},
		})
	}
	for _, turn := range req.History {
		role := "model"
		if turn.Role == lab.ChatRoleUser {
			role = "user"
		}
		contents = append(contents, genContent{Role: role, Parts: []genPart{{Text: turn.Text}}})
	}
	contents = append(contents, genContent{Role: "user", Parts: []genPart{{Text: req.Message}}})

	body := genRequest{
		SystemInstruction: &genContent{Parts: []genPart{{Text: chatSystemPrompt(req)}}},
		Contents:          contents,
	}

	resp, err := c.generate(ctx, c.cfg.ProModel, body)
	if err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}
	return resp.text(), nil
}

// EditImage implements Oracle. The response parts are walked for inline
// image data; a text-only response is treated as failure.
func (c *Client) EditImage(ctx context.Context, req ImageEditRequest) (string, error) {
	mime := req.MimeType
	if mime == "" {
		mime = "image/png"
	}

	body := genRequest{
		Contents: []genContent{
			{Parts: []genPart{
				{InlineData: &genInlineData{MimeType: mime, Data: req.ImageBase64}},
				{Text: req.Prompt},
			}},
		},
	}

	resp, err := c.generate(ctx, c.cfg.ImageModel, body)
	if err != nil {
		return "", fmt.Errorf("edit image: %w", err)
	}

	if len(resp.Candidates) > 0 {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part.InlineData != nil && part.InlineData.Data != "" {
				return fmt.Sprintf("data:%s;base64,%s", part.InlineData.MimeType, part.InlineData.Data), nil
			}
		}
	}
	return "", fmt.Errorf("edit image: no image data in response")
}
