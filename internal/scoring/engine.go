package scoring

import (
	"context"

	"go.uber.org/zap"

	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/bids"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/quote"
)

// Result is everything one scoring run produced.
type Result struct {
	Items       []*quote.Item
	Scorecard   *Scorecard
	Resolution  Resolution
	Diagnostics []bids.Diagnostic
}

// Engine chains bid aggregation, formula resolution and scoring.
// Each call works on its own copy of the items.
type Engine struct {
	aggregator *bids.Aggregator
	resolver   *Resolver
	logger     *zap.Logger
}

func NewEngine(aggregator *bids.Aggregator, resolver *Resolver, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if aggregator == nil {
		aggregator = bids.NewAggregator(logger, bids.Options{})
	}
	if resolver == nil {
		resolver = NewResolver(nil, ResolverConfig{Skip: true}, logger)
	}
	return &Engine{aggregator: aggregator, resolver: resolver, logger: logger}
}

// Run enriches items with bids and scores them. A non-nil formula is used as
// given and the resolver is not consulted.
func (e *Engine) Run(ctx context.Context, items []*quote.Item, collected []bids.Bid, formula *Formula) *Result {
	enriched, diagnostics := e.aggregator.Enrich(items, collected)

	var res Resolution
	if formula != nil {
		res = Resolution{
			Formula:    formula.Clone(),
			Source:     SourceInjected,
			Components: quote.ComponentNames(enriched),
		}
	} else {
		res = e.resolver.Resolve(ctx, enriched)
	}

	scores := ScoreItems(enriched, res.Formula)
	card := NewScorecard(scores, res.Formula)

	e.logger.Info("scorecard assembled",
		zap.String("session_id", card.SessionID()),
		zap.String("formula_source", string(res.Source)),
		zap.Int("items", len(enriched)),
		zap.Int("scores", len(scores)),
		zap.Int("diagnostics", len(diagnostics)),
	)

	return &Result{
		Items:       enriched,
		Scorecard:   card,
		Resolution:  res,
		Diagnostics: diagnostics,
	}
}
