package bids

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/quote"
)

// DiagnosticKind classifies aggregation problems.
type DiagnosticKind string

const (
	DiagnosticUnknownSKU      DiagnosticKind = "unknown_sku"
	DiagnosticUnaveragedRange DiagnosticKind = "unaveraged_range"
)

// Diagnostic records a bid that was skipped or could not be normalized.
type Diagnostic struct {
	Kind      DiagnosticKind `json:"kind"`
	SKUID     string         `json:"sku_id"`
	Supplier  string         `json:"supplier"`
	Component string         `json:"component,omitempty"`
	Message   string         `json:"message"`
}

func (d Diagnostic) String() string { return d.Message }

// Options controls how bids are merged.
type Options struct {
	// ReplaceExisting drops a supplier's earlier bids on a component before
	// adding the new one. When false bids are appended, so enriching the same
	// items twice duplicates them.
	ReplaceExisting bool
}

// Aggregator merges collected bids into quote items.
type Aggregator struct {
	logger *zap.Logger
	opts   Options
}

func NewAggregator(logger *zap.Logger, opts Options) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{logger: logger, opts: opts}
}

// Enrich returns deep copies of items with the bids attached. The input items
// are not modified. Bids for SKUs that are not among the items are skipped
// and reported. Items keep their input order.
func (a *Aggregator) Enrich(items []*quote.Item, bids []Bid) ([]*quote.Item, []Diagnostic) {
	out := quote.CloneItems(items)

	bySKU := make(map[string]*quote.Item, len(out))
	for _, item := range out {
		if _, exists := bySKU[item.SKUID]; exists {
			a.logger.Warn("duplicate sku in items; bids go to the first occurrence",
				zap.String("sku_id", item.SKUID),
			)
			continue
		}
		bySKU[item.SKUID] = item
	}

	var diagnostics []Diagnostic
	added := 0

	for _, bid := range bids {
		supplier := supplierLabel(bid)

		item, ok := bySKU[bid.SKUID]
		if !ok {
			d := Diagnostic{
				Kind:     DiagnosticUnknownSKU,
				SKUID:    bid.SKUID,
				Supplier: supplier,
				Message:  fmt.Sprintf("skipping bid for unknown sku %s", bid.SKUID),
			}
			diagnostics = append(diagnostics, d)
			a.logger.Warn("skipping bid for unknown sku",
				zap.String("sku_id", bid.SKUID),
				zap.String("supplier", supplier),
			)
			continue
		}

		for _, name := range bid.ComponentNames() {
			entry := item.Component(name)
			supplierBid, diag := normalize(supplier, bid, name)
			if diag != nil {
				diagnostics = append(diagnostics, *diag)
				a.logger.Warn("range could not be averaged",
					zap.String("sku_id", bid.SKUID),
					zap.String("supplier", supplier),
					zap.String("component", name),
				)
			}

			if a.opts.ReplaceExisting {
				entry.SupplierBids = withoutSupplier(entry.SupplierBids, supplier)
			}
			entry.SupplierBids = append(entry.SupplierBids, supplierBid)
			added++
		}
	}

	a.logger.Info("bids aggregated",
		zap.Int("items", len(out)),
		zap.Int("bids", len(bids)),
		zap.Int("component_bids_added", added),
		zap.Int("diagnostics", len(diagnostics)),
		zap.Bool("replace_existing", a.opts.ReplaceExisting),
	)

	return out, diagnostics
}

func normalize(supplier string, bid Bid, component string) (quote.SupplierBid, *Diagnostic) {
	value := bid.Components[component]
	sb := quote.SupplierBid{
		Supplier: supplier,
		Value:    value,
		Source:   quote.SourceQuoted,
		Raw:      bid.RawReply,
	}

	if value.Kind() != quote.KindSequence {
		return sb, nil
	}

	sb.Source = quote.SourceRangeAvg
	mean, ok := value.Mean()
	if !ok {
		sb.Rejected = true
		return sb, &Diagnostic{
			Kind:      DiagnosticUnaveragedRange,
			SKUID:     bid.SKUID,
			Supplier:  supplier,
			Component: component,
			Message:   fmt.Sprintf("range %s for %s/%s has no numeric mean", value, bid.SKUID, component),
		}
	}
	sb.Value = quote.Number(mean)
	return sb, nil
}

func withoutSupplier(in []quote.SupplierBid, supplier string) []quote.SupplierBid {
	out := in[:0]
	for _, b := range in {
		if b.Supplier != supplier {
			out = append(out, b)
		}
	}
	return out
}

func supplierLabel(b Bid) string {
	if b.SupplierName != "" {
		return b.SupplierName
	}
	if b.SupplierID != "" {
		return b.SupplierID
	}
	return "unknown"
}
