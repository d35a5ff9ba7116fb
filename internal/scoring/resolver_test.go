package scoring

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/bids"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/quote"
)

type stubSuggester struct {
	suggestion *Suggestion
	err        error
	wait       bool
	calls      int
	components []string
}

func (s *stubSuggester) SuggestFormula(ctx context.Context, components []string) (*Suggestion, error) {
	s.calls++
	s.components = components
	if s.wait {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.suggestion, s.err
}

func TestResolverPassesSortedComponents(t *testing.T) {
	items := []*quote.Item{
		quote.NewItem("SKU-001", ""),
		{SKUID: "SKU-002", Components: map[string]*quote.ComponentEntry{"warranty": {}}},
	}
	s := &stubSuggester{suggestion: &Suggestion{
		Weights:    map[string]float64{"price": 1},
		Directions: map[string]string{"price": "LOWER"},
	}}

	res := NewResolver(s, ResolverConfig{}, nil).Resolve(context.Background(), items)

	assert.Equal(t, []string{"OTIF", "payment_timeline", "price", "specification", "warranty"}, s.components)
	assert.Equal(t, SourceSuggested, res.Source)
	assert.Empty(t, res.Fallbacks)
	assert.Equal(t, Lower, res.Formula.DirectionOf("price"))
}

func TestResolverFallsBackOnError(t *testing.T) {
	core, observed := observer.New(zapcore.WarnLevel)
	s := &stubSuggester{err: errors.New("boom")}

	res := NewResolver(s, ResolverConfig{}, zap.New(core)).Resolve(context.Background(), nil)

	assert.Equal(t, SourceDefault, res.Source)
	assert.Equal(t, DefaultFormula(), res.Formula)
	assert.Equal(t, 1, observed.FilterMessage("formula suggestion failed; using default formula").Len())
}

func TestResolverFallsBackPerField(t *testing.T) {
	s := &stubSuggester{suggestion: &Suggestion{
		Weights:    map[string]float64{"price": 0.7, "OTIF": math.NaN(), "bad": -1, "OTIF2": 0.3},
		Directions: map[string]string{"price": "sideways"},
		MinValues:  map[string]float64{"price": 10},
		MaxValues:  map[string]float64{"price": 5},
	}}

	res := NewResolver(s, ResolverConfig{}, nil).Resolve(context.Background(), nil)

	assert.Equal(t, SourcePartial, res.Source)
	assert.Equal(t, []string{"directions"}, res.Fallbacks)
	assert.Equal(t, map[string]float64{"price": 0.7, "OTIF2": 0.3}, res.Formula.Weights)
	assert.Equal(t, DefaultFormula().Directions, res.Formula.Directions)
	assert.Empty(t, res.Formula.MinValues, "inverted bounds are dropped")
	assert.Empty(t, res.Formula.MaxValues)
}

func TestResolverNilSuggestion(t *testing.T) {
	res := NewResolver(&stubSuggester{}, ResolverConfig{}, nil).Resolve(context.Background(), nil)
	assert.Equal(t, SourceDefault, res.Source)
	assert.Equal(t, DefaultFormula().Weights, res.Formula.Weights)
}

func TestResolverSkip(t *testing.T) {
	s := &stubSuggester{}
	custom := &Formula{Weights: map[string]float64{"price": 1}}

	res := NewResolver(s, ResolverConfig{Skip: true, Default: custom}, nil).Resolve(context.Background(), nil)

	assert.Zero(t, s.calls)
	assert.Equal(t, custom.Weights, res.Formula.Weights)

	res.Formula.Weights["price"] = 0
	assert.Equal(t, 1.0, custom.Weights["price"], "resolved formula must be a copy")
}

func TestResolverTimeout(t *testing.T) {
	s := &stubSuggester{wait: true}
	start := time.Now()

	res := NewResolver(s, ResolverConfig{Timeout: 20 * time.Millisecond}, nil).Resolve(context.Background(), nil)

	assert.Equal(t, SourceDefault, res.Source)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestDefaultFormulaIsFresh(t *testing.T) {
	f := DefaultFormula()
	f.Weights["price"] = 0.9
	assert.Equal(t, 0.5, DefaultFormula().Weights["price"])
	assert.InDelta(t, 1.0, DefaultFormula().WeightSum(), 1e-9)
	assert.Equal(t, Higher, f.DirectionOf("unknown"))
}

func TestParseFormula(t *testing.T) {
	f, err := ParseFormula([]byte(`
weights:
  price: 0.6
  OTIF: 0.4
directions:
  price: Lower
min_values:
  price: 50
`))
	require.NoError(t, err)
	assert.Equal(t, Lower, f.Directions["price"])
	assert.Equal(t, 50.0, f.MinValues["price"])

	_, err = ParseFormula([]byte("weights:\n  price: 1\ndirections:\n  price: sideways\n"))
	assert.Error(t, err)

	_, err = ParseFormula([]byte("weights:\n  price: -1\n"))
	assert.Error(t, err)

	_, err = ParseFormula([]byte("weights:\n  price: 1\nextra: true\n"))
	assert.Error(t, err, "unknown keys are rejected")

	_, err = ParseFormula([]byte("weights:\n  price: 1\nmin_values:\n  price: 9\nmax_values:\n  price: 1\n"))
	assert.Error(t, err)

	_, err = ParseFormula(nil)
	assert.Error(t, err)
}

func TestLoadFormulaFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "formula.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`{"weights": {"price": 1}, "directions": {"price": "lower"}}`), 0o600))

	f, err := LoadFormulaFile(path)
	require.NoError(t, err)
	assert.Equal(t, Lower, f.DirectionOf("price"))

	_, err = LoadFormulaFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestScorecardIsImmutable(t *testing.T) {
	scores := ScoreItems(workedExampleItems(), workedExampleFormula())
	card := NewScorecard(scores, workedExampleFormula())

	scores[0].TotalScore = 42
	got := card.Scores()
	got[0].ComponentScores["price"] = 42
	card.Formula().Weights["price"] = 42

	assert.NotEqual(t, 42.0, card.Scores()[0].TotalScore)
	assert.NotEqual(t, 42.0, card.Scores()[0].ComponentScores["price"])
	assert.Equal(t, 0.6, card.Formula().Weights["price"])

	other := NewScorecard(scores, workedExampleFormula())
	assert.NotEqual(t, card.SessionID(), other.SessionID())
}

func TestScorecardRankingAndJSON(t *testing.T) {
	card := NewScorecard(ScoreItems(workedExampleItems(), workedExampleFormula()), workedExampleFormula())

	ranking := card.Ranking("SKU-001")
	require.Len(t, ranking, 2)
	assert.Equal(t, "A", ranking[0].SupplierID)

	winners := card.Winners()
	require.Len(t, winners, 1)
	assert.Equal(t, "A", winners[0].SupplierID)

	data, err := card.MarshalJSON()
	require.NoError(t, err)

	decoded, err := DecodeScorecard(data)
	require.NoError(t, err)
	assert.Equal(t, card.SessionID(), decoded.SessionID())
	assert.Equal(t, card.Scores(), decoded.Scores())
	assert.Equal(t, card.Formula(), decoded.Formula())

	_, err = DecodeScorecard([]byte(`{}`))
	assert.Error(t, err)
}

func TestEngineEndToEnd(t *testing.T) {
	items := []*quote.Item{quote.NewItem("SKU-001", "Bolts")}
	replies := map[string]any{
		"A": map[string]any{"SKU-001": map[string]any{"components": map[string]any{"price": 100.0, "OTIF": 0.9}}},
		"B": map[string]any{
			"SKU-001": map[string]any{"components": map[string]any{"price": []any{150.0, 250.0}, "OTIF": 0.95}},
			"SKU-999": map[string]any{"components": map[string]any{"price": 1.0}},
		},
	}

	collected, problems := bids.Collect(replies)
	require.Empty(t, problems)

	s := &stubSuggester{}
	engine := NewEngine(nil, NewResolver(s, ResolverConfig{}, nil), nil)
	result := engine.Run(context.Background(), items, collected, workedExampleFormula())

	assert.Zero(t, s.calls, "an injected formula bypasses suggestion")
	assert.Equal(t, SourceInjected, result.Resolution.Source)
	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, "SKU-999", result.Diagnostics[0].SKUID)

	winners := result.Scorecard.Winners()
	require.Len(t, winners, 1)
	assert.Equal(t, "A", winners[0].SupplierID)
	assert.Equal(t, 0.6, winners[0].TotalScore)

	price := result.Items[0].Components["price"].SupplierBids
	require.Len(t, price, 2)
	assert.Equal(t, quote.SourceRangeAvg, price[1].Source)
}
