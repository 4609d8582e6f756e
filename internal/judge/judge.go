// Package judge turns the current canvas layout into an oracle request and
// resolves it to a verdict. Evaluation is best-effort: any failure along the
// way degrades to a local fallback verdict rather than an error.
package judge

import (
	"context"
	"log/slog"
	"math"

	"github.com/chembench/server/internal/geo"
	"github.com/chembench/server/internal/i18n"
	"github.com/chembench/server/internal/oracle"
	"github.com/chembench/server/pkg/lab"
)

// Judge evaluates assembled layouts against an experiment.
type Judge struct {
	oracle oracle.Oracle
	log    *slog.Logger
}

// New creates a Judge on the given oracle.
func New(o oracle.Oracle, log *slog.Logger) *Judge {
	return &Judge{oracle: o, log: log}
}

// Evaluate submits the placed items for judging and returns a verdict. Item
// order is preserved and coordinates are rounded to whole pixels before
// submission. If the oracle fails for any reason the returned verdict is a
// negative one carrying a localized unavailability message; Evaluate never
// returns an error.
func (j *Judge) Evaluate(ctx context.Context, experimentTitle string, items []lab.PlacedItem, size geo.CanvasSize, lang lab.Language) lab.Verdict {
	size = size.OrFallback()

	req := oracle.LayoutRequest{
		ExperimentTitle: experimentTitle,
		CanvasWidth:     int(math.Round(size.Width)),
		CanvasHeight:    int(math.Round(size.Height)),
		Language:        lang,
		Items:           make([]oracle.LayoutItem, 0, len(items)),
	}
	for _, rel := range geo.Relations(items) {
		req.Hints = append(req.Hints, rel.String())
	}
	for _, item := range items {
		xy := geo.RoundedXY(item.Position)
		req.Items = append(req.Items, oracle.LayoutItem{
			Name: item.Name,
			X:    int(xy.X),
			Y:    int(xy.Y),
		})
	}

	verdict, err := j.oracle.JudgeLayout(ctx, req)
	if err != nil {
		j.log.Warn("layout judging failed, using fallback verdict",
			"experiment", experimentTitle, "items", len(items), "error", err)
		return lab.Verdict{IsCorrect: false, Feedback: i18n.AnalysisUnavailable(lang)}
	}
	return verdict
}
