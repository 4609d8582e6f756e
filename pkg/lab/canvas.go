package lab

// Position is a point in canvas pixel coordinates, origin top-left.
// No bounds are enforced; items may sit outside the visible rectangle.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PlacedItem is one equipment piece on the assembly canvas. ID is opaque,
// unique within the active set and stable for the item's lifetime. Name is
// copied verbatim from a palette prototype or a seed entry and may repeat
// (multiple identical pieces are legal).
type PlacedItem struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Position Position `json:"position"`
}

// Verdict is the oracle's judgment of a submitted layout. It is ephemeral:
// the next layout mutation or judge call replaces or clears it.
type Verdict struct {
	IsCorrect bool   `json:"isCorrect"`
	Feedback  string `json:"feedback"`
}
