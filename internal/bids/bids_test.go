package bids

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/quote"
)

func decodeReplies(t *testing.T, raw string) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	return out
}

func TestCollectOrdersBySupplierThenSKU(t *testing.T) {
	replies := decodeReplies(t, `{
		"Zeta": {"SKU-002": {"components": {"price": 5}, "raw_reply": "z2"},
		         "SKU-001": {"components": {"price": 4}, "raw_reply": "z1"}},
		"Acme": {"SKU-001": {"components": {"price": 3, "OTIF": 0.9}, "raw_reply": "a1"}}
	}`)

	got, problems := Collect(replies)
	require.Empty(t, problems)
	require.Len(t, got, 3)

	assert.Equal(t, "Acme", got[0].SupplierID)
	assert.Equal(t, "SKU-001", got[0].SKUID)
	assert.Equal(t, "Zeta", got[1].SupplierID)
	assert.Equal(t, "SKU-001", got[1].SKUID)
	assert.Equal(t, "SKU-002", got[2].SKUID)

	price, ok := got[0].Components["price"].Float()
	require.True(t, ok)
	assert.Equal(t, 3.0, price)
	assert.Equal(t, "a1", got[0].RawReply)
	assert.Equal(t, []string{"OTIF", "price"}, got[0].ComponentNames())
}

func TestCollectReportsMalformedPayloads(t *testing.T) {
	replies := decodeReplies(t, `{
		"Acme": "not an object",
		"Bolt": {
			"SKU-001": {"components": {"price": 10}},
			"SKU-002": {"components": "oops"},
			"SKU-003": null,
			"SKU-004": {}
		}
	}`)

	got, problems := Collect(replies)

	require.Len(t, got, 2)
	assert.Equal(t, "SKU-001", got[0].SKUID)
	assert.Equal(t, "SKU-004", got[1].SKUID)
	assert.Empty(t, got[1].Components)

	require.Len(t, problems, 3)
	assert.Equal(t, "Acme", problems[0].Supplier)
	assert.Empty(t, problems[0].SKU)
	assert.Equal(t, "SKU-002", problems[1].SKU)
	assert.Equal(t, "SKU-003", problems[2].SKU)

	var target *MalformedReplyError
	assert.True(t, errors.As(problems[1], &target))
	assert.Contains(t, problems[1].Error(), "SKU-002")
}

func TestEnrichAveragesRanges(t *testing.T) {
	items := []*quote.Item{quote.NewItem("SKU-001", "Bolts")}
	bids := []Bid{{
		SKUID:        "SKU-001",
		SupplierID:   "A",
		SupplierName: "A",
		Components:   map[string]quote.Value{"price": quote.Numbers(10, 20, 30), "OTIF": quote.Number(0.9)},
		RawReply:     "raw",
	}}

	out, diags := NewAggregator(zap.NewNop(), Options{}).Enrich(items, bids)
	require.Empty(t, diags)

	price := out[0].Components["price"].SupplierBids
	require.Len(t, price, 1)
	f, ok := price[0].Value.Float()
	require.True(t, ok)
	assert.Equal(t, 20.0, f)
	assert.Equal(t, quote.SourceRangeAvg, price[0].Source)
	assert.Equal(t, "raw", price[0].Raw)

	otif := out[0].Components["OTIF"].SupplierBids
	require.Len(t, otif, 1)
	assert.Equal(t, quote.SourceQuoted, otif[0].Source)

	assert.Empty(t, items[0].Components["price"].SupplierBids, "input items must not be modified")
}

func TestEnrichSkipsUnknownSKU(t *testing.T) {
	core, observed := observer.New(zapcore.WarnLevel)
	items := []*quote.Item{quote.NewItem("SKU-001", "Bolts")}
	bids := []Bid{{
		SKUID:        "SKU-999",
		SupplierName: "A",
		Components:   map[string]quote.Value{"price": quote.Number(1)},
	}}

	out, diags := NewAggregator(zap.New(core), Options{}).Enrich(items, bids)

	require.Len(t, diags, 1)
	assert.Equal(t, DiagnosticUnknownSKU, diags[0].Kind)
	assert.Equal(t, "SKU-999", diags[0].SKUID)
	assert.Contains(t, diags[0].Message, "SKU-999")

	for _, entry := range out[0].Components {
		assert.Empty(t, entry.SupplierBids)
	}

	entries := observed.FilterMessage("skipping bid for unknown sku").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "SKU-999", entries[0].ContextMap()["sku_id"])
}

func TestEnrichAppendsDuplicatesByDefault(t *testing.T) {
	items := []*quote.Item{quote.NewItem("SKU-001", "Bolts")}
	bids := []Bid{{SKUID: "SKU-001", SupplierName: "A", Components: map[string]quote.Value{"price": quote.Number(1)}}}

	agg := NewAggregator(nil, Options{})
	once, _ := agg.Enrich(items, bids)
	twice, _ := agg.Enrich(once, bids)

	assert.Len(t, twice[0].Components["price"].SupplierBids, 2)
}

func TestEnrichReplaceExisting(t *testing.T) {
	items := []*quote.Item{quote.NewItem("SKU-001", "Bolts")}
	first := []Bid{
		{SKUID: "SKU-001", SupplierName: "A", Components: map[string]quote.Value{"price": quote.Number(1)}},
		{SKUID: "SKU-001", SupplierName: "B", Components: map[string]quote.Value{"price": quote.Number(2)}},
	}
	second := []Bid{{SKUID: "SKU-001", SupplierName: "A", Components: map[string]quote.Value{"price": quote.Number(3)}}}

	agg := NewAggregator(nil, Options{ReplaceExisting: true})
	once, _ := agg.Enrich(items, first)
	twice, _ := agg.Enrich(once, second)

	price := twice[0].Components["price"].SupplierBids
	require.Len(t, price, 2)
	assert.Equal(t, "B", price[0].Supplier)
	assert.Equal(t, "A", price[1].Supplier)
	f, _ := price[1].Value.Float()
	assert.Equal(t, 3.0, f)

	assert.Len(t, once[0].Components["price"].SupplierBids, 2, "earlier result must be untouched")
}

func TestEnrichRejectsNonNumericRange(t *testing.T) {
	items := []*quote.Item{quote.NewItem("SKU-001", "Bolts")}
	bids := []Bid{{
		SKUID:        "SKU-001",
		SupplierName: "A",
		Components:   map[string]quote.Value{"price": quote.Sequence(quote.Number(1), quote.Text("two"))},
	}}

	out, diags := NewAggregator(nil, Options{}).Enrich(items, bids)

	require.Len(t, diags, 1)
	assert.Equal(t, DiagnosticUnaveragedRange, diags[0].Kind)

	price := out[0].Components["price"].SupplierBids
	require.Len(t, price, 1)
	assert.True(t, price[0].Rejected)
	assert.Equal(t, quote.KindSequence, price[0].Value.Kind())
}

func TestEnrichCreatesMissingComponent(t *testing.T) {
	items := []*quote.Item{{SKUID: "SKU-001"}}
	bids := []Bid{{SKUID: "SKU-001", SupplierID: "supplier-a", Components: map[string]quote.Value{"warranty": quote.Number(24)}}}

	out, _ := NewAggregator(nil, Options{}).Enrich(items, bids)

	entry := out[0].Components["warranty"]
	require.NotNil(t, entry)
	assert.Nil(t, entry.IdealValue)
	assert.Nil(t, entry.FloorValue)
	require.Len(t, entry.SupplierBids, 1)
	assert.Equal(t, "supplier-a", entry.SupplierBids[0].Supplier)
}
