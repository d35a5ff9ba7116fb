package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/ai"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/quote"
)

type stubGenerator struct {
	response    string
	err         error
	lastRequest Request
}

func (s *stubGenerator) Generate(_ context.Context, req Request) (string, error) {
	s.lastRequest = req
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func (s *stubGenerator) Model() string {
	return "stub-model"
}

func TestGenerateSchema(t *testing.T) {
	stub := &stubGenerator{response: "```json\n" +
		`{"title": "M8 hex bolts", "components": {"price": {"ideal_value": 0.12, "floor_value": "0.2"}, "warranty": {"ideal_value": null}}}` +
		"\n```"}
	assistant := NewAssistant(stub, 0, zap.NewNop())

	spec := quote.SpecItem{
		SKUID:   "SKU-001",
		Title:   "bolts",
		RawText: strings.Repeat("x", 5000),
		Images:  []quote.Image{{Name: "a.png", MIMEType: "image/png", Data: []byte{1}}},
	}

	item, err := assistant.GenerateSchema(context.Background(), spec)
	require.NoError(t, err)

	assert.Equal(t, "SKU-001", item.SKUID, "sku id comes from the spec")
	assert.Equal(t, "M8 hex bolts", item.Title)
	for _, name := range quote.DefaultComponents() {
		assert.Contains(t, item.Components, name)
	}

	price := item.Components["price"]
	require.NotNil(t, price.IdealValue)
	assert.Equal(t, 0.12, *price.IdealValue)
	require.NotNil(t, price.FloorValue)
	assert.Equal(t, 0.2, *price.FloorValue)
	assert.Nil(t, item.Components["warranty"].IdealValue)

	assert.True(t, stub.lastRequest.JSON)
	assert.Len(t, stub.lastRequest.Images, 1)

	var sent map[string]any
	require.NoError(t, json.Unmarshal([]byte(stub.lastRequest.Prompt), &sent))
	assert.Len(t, []rune(sent["raw_text_excerpt"].(string)), specExcerptLength)
}

func TestGenerateSchemaPropagatesErrors(t *testing.T) {
	assistant := NewAssistant(&stubGenerator{err: errors.New("boom")}, 0, nil)
	_, err := assistant.GenerateSchema(context.Background(), quote.SpecItem{SKUID: "x"})
	assert.Error(t, err)

	assistant = NewAssistant(&stubGenerator{response: "no json here"}, 0, nil)
	_, err = assistant.GenerateSchema(context.Background(), quote.SpecItem{SKUID: "x"})
	assert.Error(t, err)
}

func TestCategorizeDefaults(t *testing.T) {
	stub := &stubGenerator{response: `Sure! {"category": "", "confidence": "high"}`}
	assistant := NewAssistant(stub, 0, zap.NewNop())

	cat, err := assistant.Categorize(context.Background(), quote.NewItem("SKU-001", "bolts"))
	require.NoError(t, err)

	assert.Equal(t, quote.Uncategorized, cat.Category)
	assert.Equal(t, ai.DefaultConfidence, cat.Confidence)
	assert.Empty(t, cat.Rationale)
}

func TestCategorize(t *testing.T) {
	stub := &stubGenerator{response: `{"category": "Fasteners", "confidence": 1.7, "rationale": "bolts",}`}
	assistant := NewAssistant(stub, 0, zap.NewNop())

	cat, err := assistant.Categorize(context.Background(), quote.NewItem("SKU-001", "bolts"))
	require.NoError(t, err)
	assert.Equal(t, "Fasteners", cat.Category)
	assert.Equal(t, "bolts", cat.Rationale)
	assert.Equal(t, 1.0, cat.Confidence, "confidence is clamped to 1")
}

func TestDraftEmailFallbacks(t *testing.T) {
	stub := &stubGenerator{response: `{"subject": "  ", "body": ""}`}
	assistant := NewAssistant(stub, 0, zap.NewNop())

	req := ai.EmailRequest{
		SupplierName: "Acme",
		ToEmail:      "sales@acme.test",
		Category:     "Fasteners",
		Items:        []ai.EmailItem{{SKUID: "SKU-001", Title: "bolts"}},
	}

	draft, err := assistant.DraftEmail(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "RFQ for Fasteners items", draft.Subject)
	assert.Equal(t, "Hello Acme,\nPlease quote for attached items.\nThanks.", draft.Body)
	assert.Contains(t, stub.lastRequest.Prompt, "SKU-001")
}

func TestSuggestFormula(t *testing.T) {
	stub := &stubGenerator{response: `{"weights": {"price": "0.6", "OTIF": 0.4, "bad": "n/a"}, "directions": {"price": "lower"}, "min_values": {"OTIF": 0}, "max_values": {"OTIF": 1}}`}
	assistant := NewAssistant(stub, 0, zap.NewNop())

	s, err := assistant.SuggestFormula(context.Background(), []string{"OTIF", "price"})
	require.NoError(t, err)

	assert.Equal(t, map[string]float64{"price": 0.6, "OTIF": 0.4}, s.Weights)
	assert.Equal(t, "lower", s.Directions["price"])
	assert.Equal(t, 0.0, s.MinValues["OTIF"])
	assert.Equal(t, 1.0, s.MaxValues["OTIF"])
	assert.Contains(t, stub.lastRequest.Prompt, `"components":["OTIF","price"]`)
}

func TestParseObject(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		ok   bool
	}{
		{name: "plain", raw: `{"a": 1}`, ok: true},
		{name: "fenced", raw: "```json\n{\"a\": 1}\n```", ok: true},
		{name: "prose around", raw: `Here you go: {"a": 1} hope it helps`, ok: true},
		{name: "trailing comma", raw: `{"a": [1, 2,], }`, ok: true},
		{name: "empty", raw: "   ", ok: false},
		{name: "array", raw: `[1, 2]`, ok: false},
		{name: "garbage", raw: `not json`, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseObject(tt.raw)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
