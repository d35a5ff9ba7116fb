package scoring

import (
	"math"

	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/quote"
)

// Score is one supplier's result for one SKU.
type Score struct {
	SKUID           string             `json:"sku_id"`
	SupplierID      string             `json:"supplier_id"`
	SupplierName    string             `json:"supplier_name"`
	TotalScore      float64            `json:"total_score"`
	ComponentScores map[string]float64 `json:"component_scores"`
}

func (s Score) clone() Score {
	cp := s
	cp.ComponentScores = make(map[string]float64, len(s.ComponentScores))
	for k, v := range s.ComponentScores {
		cp.ComponentScores[k] = v
	}
	return cp
}

type row struct {
	skuID    string
	supplier string
	values   map[string]float64
}

type bounds struct {
	lo, hi float64
}

// ScoreItems normalizes every (item, supplier) pair against the formula.
//
// Suppliers are discovered per item, so a supplier with no numeric bids still
// gets a zero row. Components missing from a row are skipped without
// renormalizing the remaining weights: such a row cannot earn that share of
// the total. Component scores and totals are rounded to 4 decimal places.
func ScoreItems(items []*quote.Item, formula *Formula) []Score {
	if formula == nil {
		formula = DefaultFormula()
	}

	rows := buildRows(items)
	observed := observedBounds(rows)

	scores := make([]Score, 0, len(rows))
	for _, r := range rows {
		componentScores := make(map[string]float64)
		var total float64

		for _, name := range formula.WeightNames() {
			raw, ok := r.values[name]
			if !ok {
				continue
			}

			b := resolveBounds(formula, observed, name, raw)
			cs := round4(normalize(raw, b, formula.DirectionOf(name)))
			componentScores[name] = cs
			total += formula.Weights[name] * cs
		}

		scores = append(scores, Score{
			SKUID:           r.skuID,
			SupplierID:      r.supplier,
			SupplierName:    r.supplier,
			TotalScore:      round4(total),
			ComponentScores: componentScores,
		})
	}

	return scores
}

// buildRows keeps the supplier's first bid per component and only numeric values.
func buildRows(items []*quote.Item) []row {
	var rows []row
	for _, item := range items {
		if item == nil {
			continue
		}
		names := item.ComponentNames()

		for _, supplier := range suppliersOf(item, names) {
			values := make(map[string]float64)
			for _, name := range names {
				bid, ok := item.Components[name].FirstBid(supplier)
				if !ok || bid.Rejected {
					continue
				}
				if f, ok := bid.Value.Float(); ok {
					values[name] = f
				}
			}
			rows = append(rows, row{skuID: item.SKUID, supplier: supplier, values: values})
		}
	}
	return rows
}

func suppliersOf(item *quote.Item, names []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, name := range names {
		entry := item.Components[name]
		if entry == nil {
			continue
		}
		for _, bid := range entry.SupplierBids {
			if _, ok := seen[bid.Supplier]; ok {
				continue
			}
			seen[bid.Supplier] = struct{}{}
			out = append(out, bid.Supplier)
		}
	}
	return out
}

func observedBounds(rows []row) map[string]bounds {
	out := make(map[string]bounds)
	for _, r := range rows {
		for name, v := range r.values {
			b, ok := out[name]
			if !ok {
				out[name] = bounds{lo: v, hi: v}
				continue
			}
			b.lo = math.Min(b.lo, v)
			b.hi = math.Max(b.hi, v)
			out[name] = b
		}
	}
	return out
}

// resolveBounds prefers explicit formula bounds, then observed ones, then the raw value.
func resolveBounds(f *Formula, observed map[string]bounds, name string, raw float64) bounds {
	b := bounds{lo: raw, hi: raw}
	if o, ok := observed[name]; ok {
		b = o
	}
	if lo, ok := f.MinValues[name]; ok {
		b.lo = lo
	}
	if hi, ok := f.MaxValues[name]; ok {
		b.hi = hi
	}
	return b
}

func normalize(raw float64, b bounds, dir Direction) float64 {
	if b.hi == b.lo {
		return 1.0
	}
	t := (raw - b.lo) / (b.hi - b.lo)
	t = math.Max(0, math.Min(1, t))
	if dir == Lower {
		t = 1 - t
	}
	return t
}

// round4 rounds half away from zero.
func round4(x float64) float64 {
	return math.Round(x*1e4) / 1e4
}
