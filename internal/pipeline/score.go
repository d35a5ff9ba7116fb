package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/logger"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/quote"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/scoring"
)

// Result file names under the results directory.
const (
	ItemsFile     = "items.json"
	ScorecardFile = "scorecard.json"
)

type scoreStep struct {
	toggle
	resultsDir string
	formula    *scoring.Formula
}

// NewScore enriches the items with the collected bids, scores them and
// persists the scorecard.
func NewScore() Step { return &scoreStep{} }

func (s *scoreStep) Name() string { return StepScore }

func (s *scoreStep) Validate(cfg *Config) error {
	s.resultsDir = cfg.ResultsDir
	s.formula = nil
	if cfg.Formula != nil {
		if err := cfg.Formula.Validate(); err != nil {
			return fmt.Errorf("injected formula: %w", err)
		}
		s.formula = cfg.Formula.Clone()
	}
	return nil
}

func (s *scoreStep) Apply(ctx context.Context, deps Deps, st *State) (Report, error) {
	if deps.Engine == nil {
		return Report{}, errors.New("scoring engine is not configured")
	}

	res := deps.Engine.Run(ctx, st.Items, st.Bids, s.formula)
	st.Result = res

	for _, d := range res.Diagnostics {
		deps.Logger.Warn("bid diagnostic",
			zap.String("kind", string(d.Kind)),
			zap.String(logger.FieldSKU, d.SKUID),
			zap.String(logger.FieldSupplier, d.Supplier),
			zap.String("component", d.Component),
			zap.String("message", d.Message),
		)
	}

	if s.resultsDir != "" {
		written, err := WriteResults(s.resultsDir, st.Items, res.Scorecard)
		st.Outputs = append(st.Outputs, written...)
		if err != nil {
			return Report{}, err
		}
	}

	if deps.Scorecards != nil {
		if err := deps.Scorecards.SaveScorecard(ctx, res.Scorecard); err != nil {
			deps.Logger.Warn("storing scorecard failed", zap.String("session_id", res.Scorecard.SessionID()), zap.Error(err))
		}
	}

	for _, w := range res.Scorecard.Winners() {
		deps.Logger.Info("winner",
			zap.String(logger.FieldSKU, w.SKUID),
			zap.String("supplier_name", w.SupplierName),
			zap.Float64("score", w.TotalScore),
		)
	}

	scores := res.Scorecard.Scores()
	return Report{Input: len(st.Bids), Output: len(scores), Skipped: len(res.Diagnostics)}, nil
}

// WriteResults writes the quote schemas and the scorecard as indented JSON
// and returns the paths written.
func WriteResults(dir string, items []*quote.Item, card *scoring.Scorecard) ([]string, error) {
	if card == nil {
		return nil, errors.New("scorecard is nil")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}

	files := []struct {
		name  string
		value any
	}{
		{ItemsFile, items},
		{ScorecardFile, card},
	}

	var written []string
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		data, err := json.MarshalIndent(f.value, "", "  ")
		if err != nil {
			return written, fmt.Errorf("marshal %s: %w", f.name, err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}
