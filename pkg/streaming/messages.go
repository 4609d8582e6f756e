// Package streaming defines the wire envelope pushed to workbench viewers
// over WebSocket.
package streaming

import (
	"encoding/json"
	"fmt"

	"github.com/chembench/server/pkg/lab"
)

// Message type constants matching the streaming protocol.
const (
	TypeExperimentLoaded = "experiment_loaded"
	TypeItemInserted     = "item_inserted"
	TypeItemMoved        = "item_moved"
	TypeCanvasReset      = "canvas_reset"
	TypeCanvasCleared    = "canvas_cleared"
	TypeCanvasState      = "canvas_state"
	TypeVerdict          = "verdict"
	TypeChatMessage      = "chat_message"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Session string          `json:"session"`
	Payload json.RawMessage `json:"payload"`
}

// Marshal builds a JSON-encoded Envelope from a message type, session and
// payload.
func Marshal(msgType, session string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(Envelope{Type: msgType, Session: session, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// ExperimentLoadedPayload carries a freshly generated experiment and its
// derived equipment palette.
type ExperimentLoadedPayload struct {
	Experiment *lab.Experiment          `json:"experiment"`
	Prototypes []lab.EquipmentPrototype `json:"prototypes"`
}

// ItemMovedPayload identifies a repositioned item and its new location.
type ItemMovedPayload struct {
	ID       string       `json:"id"`
	Position lab.Position `json:"position"`
}

// CanvasStatePayload carries the full canvas snapshot.
type CanvasStatePayload struct {
	Items   []lab.PlacedItem `json:"items"`
	Verdict *lab.Verdict     `json:"verdict,omitempty"`
}
