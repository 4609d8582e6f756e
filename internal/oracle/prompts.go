package oracle

import (
	"fmt"
	"strings"

	"github.com/chembench/server/internal/i18n"
	"github.com/chembench/server/pkg/lab"
)

func experimentSystemPrompt(role lab.Role, lang lab.Language) string {
	langName := i18n.LanguageName(lang)
	if role == lab.RoleTeacher {
		return fmt.Sprintf("You are a senior chemistry methodology expert aiding university professors. Provide detailed, rigorous academic content with pedagogical notes. Output in %s.", langName)
	}
	return fmt.Sprintf("You are a helpful chemistry tutor for students. Provide clear, simplified, safety-first step-by-step instructions. Output in %s.", langName)
}

func experimentPrompt(topic string, lang lab.Language) string {
	langName := i18n.LanguageName(lang)
	var b strings.Builder
	fmt.Fprintf(&b, "Generate a chemistry experiment guide for: %q.\n", topic)
	fmt.Fprintf(&b, "The content MUST be in %s language.\n\n", langName)
	b.WriteString("Crucially, provide an 'initialAssembly' list representing the correct setup of the equipment.\n")
	b.WriteString("For 'initialAssembly', provide 'x' and 'y' coordinates as percentages (0-100) of a 2D canvas (0,0 is top-left).\n")
	b.WriteString("Position the items logically to form a proper diagram (e.g., Bunsen burner at the bottom (y~80), Flask above it (y~60), Stand holding them).\n\n")
	fmt.Fprintf(&b, "Return a strictly valid JSON object matching the response schema (keys in English, values in %s).", langName)
	return b.String()
}

func layoutPrompt(req LayoutRequest) string {
	langName := i18n.LanguageName(req.Language)
	var b strings.Builder
	fmt.Fprintf(&b, "I am simulating a 2D lab assembly check for the experiment: %q.\n", req.ExperimentTitle)
	fmt.Fprintf(&b, "The canvas size is %dx%d. Origin (0,0) is top-left.\n\n", req.CanvasWidth, req.CanvasHeight)
	b.WriteString("The user has placed the following items:\n")
	for _, item := range req.Items {
		fmt.Fprintf(&b, "- %s at position (x: %d, y: %d)\n", item.Name, item.X, item.Y)
	}
	if len(req.Hints) > 0 {
		b.WriteString("\nObserved spatial relations:\n")
		for _, hint := range req.Hints {
			fmt.Fprintf(&b, "- %s\n", hint)
		}
	}
	b.WriteString("\nAnalyze if this spatial arrangement makes sense for the experiment.\n")
	b.WriteString("For example, a burner should be below a flask. A funnel should be above a container.\n\n")
	b.WriteString("If it looks correct, return specific praise.\n")
	b.WriteString("If incorrect, explain why (e.g., \"The burner is above the flask, which is dangerous\").\n\n")
	fmt.Fprintf(&b, "Provide the feedback in %s.\n", langName)
	b.WriteString("Output strictly JSON: {\"isCorrect\": boolean, \"feedback\": \"string message\"}")
	return b.String()
}

func chatSystemPrompt(req ChatRequest) string {
	langName := i18n.LanguageName(req.Language)
	if req.ExperimentContext == "" {
		return fmt.Sprintf("You are a helpful chemistry AI assistant. Answer general chemistry questions in %s.", langName)
	}
	if req.Role == lab.RoleTeacher {
		return fmt.Sprintf("You are a methodology expert. Answer questions about the current experiment with academic rigour. Answer in %s.", langName)
	}
	return fmt.Sprintf("You are a lab tutor. Answer questions simply and safely, focusing on the current experiment. Answer in %s.", langName)
}

// Response schemas for structured calls, in the REST API's OpenAPI-subset
// format.

var experimentSchema = map[string]any{
	"type": "OBJECT",
	"properties": map[string]any{
		"title":     map[string]any{"type": "STRING"},
		"objective": map[string]any{"type": "STRING"},
		"equipment": map[string]any{"type": "ARRAY", "items": map[string]any{"type": "STRING"}},
		"reagents":  map[string]any{"type": "ARRAY", "items": map[string]any{"type": "STRING"}},
		"steps":     map[string]any{"type": "ARRAY", "items": map[string]any{"type": "STRING"}},
		"safety":    map[string]any{"type": "ARRAY", "items": map[string]any{"type": "STRING"}},
		"errors":    map[string]any{"type": "ARRAY", "items": map[string]any{"type": "STRING"}},
		"initialAssembly": map[string]any{
			"type": "ARRAY",
			"items": map[string]any{
				"type": "OBJECT",
				"properties": map[string]any{
					"name": map[string]any{"type": "STRING"},
					"x":    map[string]any{"type": "NUMBER"},
					"y":    map[string]any{"type": "NUMBER"},
				},
				"required": []string{"name", "x", "y"},
			},
		},
	},
	"required": []string{"title", "objective", "equipment", "reagents", "steps", "safety", "errors", "initialAssembly"},
}

var verdictSchema = map[string]any{
	"type": "OBJECT",
	"properties": map[string]any{
		"isCorrect": map[string]any{"type": "BOOLEAN"},
		"feedback":  map[string]any{"type": "STRING"},
	},
	"required": []string{"isCorrect", "feedback"},
}
