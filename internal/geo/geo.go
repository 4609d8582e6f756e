// Package geo provides the canvas coordinate math: percent-to-pixel seeding,
// coordinate rounding for oracle requests, and pairwise spatial relations
// between placed items used to enrich the judge prompt.
package geo

import (
	"fmt"
	"math"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/chembench/server/pkg/lab"
)

// Fallback canvas dimensions used when the rendering surface has not been
// measured yet. Seeding must never block on a missing measurement.
const (
	FallbackWidth  = 800.0
	FallbackHeight = 600.0
)

// ItemFootprint is the rendered edge length of a canvas item in pixels.
// Items are drawn centered on their position.
const ItemFootprint = 64.0

// CanvasSize is the measured pixel size of the rendering surface.
type CanvasSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// OrFallback substitutes the fixed fallback dimensions for missing or
// non-positive measurements.
func (s CanvasSize) OrFallback() CanvasSize {
	if s.Width <= 0 {
		s.Width = FallbackWidth
	}
	if s.Height <= 0 {
		s.Height = FallbackHeight
	}
	return s
}

// PixelFromPercent converts a seed coordinate pair (percent of canvas
// dimensions, 0-100) into a pixel position on the given canvas.
func PixelFromPercent(xPct, yPct float64, size CanvasSize) lab.Position {
	size = size.OrFallback()
	return lab.Position{
		X: xPct / 100 * size.Width,
		Y: yPct / 100 * size.Height,
	}
}

// RoundedXY returns the position rounded to integer pixel coordinates, as
// sent to the oracle.
func RoundedXY(p lab.Position) geom.XY {
	return geom.XY{X: math.Round(p.X), Y: math.Round(p.Y)}
}

// Relation describes how one item sits relative to another.
type Relation string

const (
	RelationAbove       Relation = "above"
	RelationBelow       Relation = "below"
	RelationOverlapping Relation = "overlapping"
)

// ItemRelation is a spatial relation between two named items.
type ItemRelation struct {
	A        string
	B        string
	Relation Relation
}

func (r ItemRelation) String() string {
	return fmt.Sprintf("%s is %s %s", r.A, r.Relation, r.B)
}

// Relations computes the notable pairwise relations between placed items:
// overlap, and above/below for vertically stacked items whose footprints
// share a horizontal span. Pairs with no notable relation are omitted.
func Relations(items []lab.PlacedItem) []ItemRelation {
	var rels []ItemRelation
	for i := 0; i < len(items); i++ {
		for j := i + 1; j < len(items); j++ {
			a, b := items[i], items[j]
			d := geom.XY{X: a.Position.X, Y: a.Position.Y}.
				Sub(geom.XY{X: b.Position.X, Y: b.Position.Y})

			alignedX := math.Abs(d.X) < ItemFootprint
			alignedY := math.Abs(d.Y) < ItemFootprint

			switch {
			case alignedX && alignedY:
				rels = append(rels, ItemRelation{A: a.Name, B: b.Name, Relation: RelationOverlapping})
			case alignedX && d.Y < 0:
				rels = append(rels, ItemRelation{A: a.Name, B: b.Name, Relation: RelationAbove})
			case alignedX:
				rels = append(rels, ItemRelation{A: a.Name, B: b.Name, Relation: RelationBelow})
			}
		}
	}
	return rels
}
