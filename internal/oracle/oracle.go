// Package oracle defines the contract to the external generative service
// and its Gemini HTTP implementation. The rest of the codebase only sees
// the Oracle interface; tests substitute deterministic stubs.
package oracle

import (
	"context"

	"github.com/chembench/server/pkg/lab"
)

// ExperimentRequest asks for a full experiment guide on a topic.
type ExperimentRequest struct {
	Topic    string
	Role     lab.Role
	Language lab.Language
}

// LayoutItem is one placed item with coordinates rounded to integer pixels.
type LayoutItem struct {
	Name string
	X    int
	Y    int
}

// LayoutRequest asks for a correctness judgment of a canvas layout.
// Items preserve placement order. Hints are pre-computed spatial relation
// sentences ("Flask is above Burner") appended to the layout description.
type LayoutRequest struct {
	ExperimentTitle string
	CanvasWidth     int
	CanvasHeight    int
	Language        lab.Language
	Items           []LayoutItem
	Hints           []string
}

// ChatTurn is one prior exchange of a transcript.
type ChatTurn struct {
	Role lab.ChatRole
	Text string
}

// ChatRequest asks for a conversational reply. ExperimentContext is empty
// for the general assistant; when set, the reply is primed with it and the
// system instruction focuses on the current experiment.
type ChatRequest struct {
	History           []ChatTurn
	Message           string
	ExperimentContext string
	Role              lab.Role
	Language          lab.Language
}

// ImageEditRequest asks for a generative edit of an uploaded image.
type ImageEditRequest struct {
	ImageBase64 string
	MimeType    string
	Prompt      string
}

// Oracle is the external generative collaborator. All substantive
// intelligence lives behind this interface; implementations construct
// prompts and parse structured responses, nothing more.
type Oracle interface {
	// GenerateExperiment returns a structured experiment guide. Errors are
	// propagated; the caller surfaces a generic retry message.
	GenerateExperiment(ctx context.Context, req ExperimentRequest) (*lab.Experiment, error)

	// JudgeLayout returns the oracle's verdict for a layout. Errors are
	// propagated here; the judge adapter absorbs them into a fallback verdict.
	JudgeLayout(ctx context.Context, req LayoutRequest) (lab.Verdict, error)

	// Chat returns a plain-text reply to the newest message.
	Chat(ctx context.Context, req ChatRequest) (string, error)

	// EditImage returns the edited image as a data URI. A response without
	// image data is an error.
	EditImage(ctx context.Context, req ImageEditRequest) (string, error)
}
