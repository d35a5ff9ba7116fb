package scoring

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/quote"
)

// DefaultSuggestTimeout bounds a single formula suggestion request.
const DefaultSuggestTimeout = 30 * time.Second

// Suggestion is a formula proposed by an external collaborator. Any field may
// be missing or partially filled.
type Suggestion struct {
	Weights    map[string]float64
	Directions map[string]string
	MinValues  map[string]float64
	MaxValues  map[string]float64
}

// Suggester proposes a formula for the given sorted component names.
type Suggester interface {
	SuggestFormula(ctx context.Context, components []string) (*Suggestion, error)
}

// ResolverConfig is built once and injected into the resolver.
type ResolverConfig struct {
	// Timeout for the suggestion request. Zero means DefaultSuggestTimeout.
	Timeout time.Duration
	// Skip bypasses the suggester and always uses Default.
	Skip bool
	// Default is the fallback formula. Nil means DefaultFormula().
	Default *Formula
}

// FormulaSource tells where a resolved formula came from.
type FormulaSource string

const (
	SourceInjected  FormulaSource = "injected"
	SourceSuggested FormulaSource = "suggested"
	SourcePartial   FormulaSource = "partial"
	SourceDefault   FormulaSource = "default"
)

// Resolution is the outcome of resolving a formula.
type Resolution struct {
	Formula    *Formula
	Source     FormulaSource
	Components []string
	// Fallbacks lists the fields taken from the default formula.
	Fallbacks []string
}

// Resolver picks the scoring formula for a set of items. It never fails:
// suggestion errors and unusable data fall back to the default per field.
type Resolver struct {
	suggester Suggester
	cfg       ResolverConfig
	logger    *zap.Logger
}

func NewResolver(suggester Suggester, cfg ResolverConfig, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSuggestTimeout
	}
	if cfg.Default == nil {
		cfg.Default = DefaultFormula()
	}
	return &Resolver{suggester: suggester, cfg: cfg, logger: logger}
}

func (r *Resolver) Resolve(ctx context.Context, items []*quote.Item) Resolution {
	components := quote.ComponentNames(items)

	if r.cfg.Skip || r.suggester == nil {
		r.logger.Info("formula suggestion skipped; using default formula",
			zap.Strings("components", components),
		)
		return Resolution{
			Formula:    r.cfg.Default.Clone(),
			Source:     SourceDefault,
			Components: components,
			Fallbacks:  []string{"weights", "directions"},
		}
	}

	suggestCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	suggestion, err := r.suggester.SuggestFormula(suggestCtx, components)
	if err != nil {
		r.logger.Warn("formula suggestion failed; using default formula",
			zap.Strings("components", components),
			zap.Duration("timeout", r.cfg.Timeout),
			zap.Error(err),
		)
		return Resolution{
			Formula:    r.cfg.Default.Clone(),
			Source:     SourceDefault,
			Components: components,
			Fallbacks:  []string{"weights", "directions"},
		}
	}

	res := r.merge(suggestion)
	res.Components = components

	r.logger.Info("formula resolved",
		zap.String("source", string(res.Source)),
		zap.Strings("components", components),
		zap.Strings("fallbacks", res.Fallbacks),
		zap.Float64("weight_sum", res.Formula.WeightSum()),
	)
	return res
}

func (r *Resolver) merge(s *Suggestion) Resolution {
	def := r.cfg.Default.Clone()
	out := &Formula{}
	var fallbacks []string

	var weights, mins, maxs map[string]float64
	var rawDirections map[string]string
	if s != nil {
		weights, rawDirections, mins, maxs = s.Weights, s.Directions, s.MinValues, s.MaxValues
	}

	out.Weights = usableNumbers(weights, r.logger, "weights", true)
	if len(out.Weights) == 0 {
		out.Weights = def.Weights
		fallbacks = append(fallbacks, "weights")
	}

	out.Directions = make(map[string]Direction, len(rawDirections))
	for name, raw := range rawDirections {
		d, ok := ParseDirection(raw)
		if !ok || name == "" {
			r.logger.Warn("dropping unusable direction from suggestion",
				zap.String("component", name),
				zap.String("direction", raw),
			)
			continue
		}
		out.Directions[name] = d
	}
	if len(out.Directions) == 0 {
		out.Directions = def.Directions
		fallbacks = append(fallbacks, "directions")
	}

	out.MinValues = usableNumbers(mins, r.logger, "min_values", false)
	out.MaxValues = usableNumbers(maxs, r.logger, "max_values", false)
	for name, lo := range out.MinValues {
		if hi, ok := out.MaxValues[name]; ok && lo > hi {
			r.logger.Warn("dropping inverted bounds from suggestion",
				zap.String("component", name),
				zap.Float64("min", lo),
				zap.Float64("max", hi),
			)
			delete(out.MinValues, name)
			delete(out.MaxValues, name)
		}
	}
	if len(out.MinValues) == 0 {
		out.MinValues = def.MinValues
	}
	if len(out.MaxValues) == 0 {
		out.MaxValues = def.MaxValues
	}

	source := SourceSuggested
	switch len(fallbacks) {
	case 0:
	case 2:
		source = SourceDefault
	default:
		source = SourcePartial
	}

	return Resolution{Formula: out, Source: source, Fallbacks: fallbacks}
}

func usableNumbers(in map[string]float64, logger *zap.Logger, field string, nonNegative bool) map[string]float64 {
	out := make(map[string]float64, len(in))
	for name, v := range in {
		if name == "" || math.IsNaN(v) || math.IsInf(v, 0) || (nonNegative && v < 0) {
			logger.Warn("dropping unusable entry from suggestion",
				zap.String("field", field),
				zap.String("component", name),
				zap.String("value", fmt.Sprint(v)),
			)
			continue
		}
		out[name] = v
	}
	return out
}
