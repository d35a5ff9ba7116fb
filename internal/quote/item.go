// Package quote holds the sourcing data model shared by ingestion, bid
// aggregation and scoring.
package quote

import (
	"sort"
)

// Standard quote components every generated schema carries.
const (
	ComponentSpecification   = "specification"
	ComponentOTIF            = "OTIF"
	ComponentPaymentTimeline = "payment_timeline"
	ComponentPrice           = "price"
)

// Bid sources.
const (
	SourceQuoted   = "quoted"
	SourceRangeAvg = "range_avg"
)

// Uncategorized is used when an item has no category assigned.
const Uncategorized = "Uncategorized"

// DefaultComponents lists the components a quote schema always exposes.
func DefaultComponents() []string {
	return []string{ComponentSpecification, ComponentOTIF, ComponentPaymentTimeline, ComponentPrice}
}

// Image is a picture attached to a spec document.
type Image struct {
	Name     string `json:"name"`
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"-"`
}

// SpecItem is one SKU or service as read from the spec archive.
type SpecItem struct {
	SKUID    string            `json:"sku_id"`
	Title    string            `json:"title"`
	RawText  string            `json:"raw_text,omitempty"`
	Images   []Image           `json:"images,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// SupplierBid is one supplier's value for one component.
type SupplierBid struct {
	Supplier string `json:"supplier"`
	Value    Value  `json:"value"`
	Source   string `json:"source"`
	Raw      string `json:"raw"`
	// Rejected marks a range that could not be averaged; its value never scores.
	Rejected bool `json:"rejected,omitempty"`
}

// ComponentEntry collects the bids for one component of an item.
// IdealValue and FloorValue are informational only.
type ComponentEntry struct {
	IdealValue   *float64      `json:"ideal_value"`
	FloorValue   *float64      `json:"floor_value"`
	SupplierBids []SupplierBid `json:"supplier_bids"`
}

// FirstBid returns the first bid in bid order from the given supplier.
func (c *ComponentEntry) FirstBid(supplier string) (SupplierBid, bool) {
	if c == nil {
		return SupplierBid{}, false
	}
	for _, bid := range c.SupplierBids {
		if bid.Supplier == supplier {
			return bid, true
		}
	}
	return SupplierBid{}, false
}

func (c *ComponentEntry) clone() *ComponentEntry {
	if c == nil {
		return &ComponentEntry{SupplierBids: []SupplierBid{}}
	}
	cp := &ComponentEntry{
		IdealValue:   cloneFloat(c.IdealValue),
		FloorValue:   cloneFloat(c.FloorValue),
		SupplierBids: make([]SupplierBid, len(c.SupplierBids)),
	}
	copy(cp.SupplierBids, c.SupplierBids)
	return cp
}

// Item is the quote schema for one SKU/service. Category, Confidence and
// Rationale come from categorization and are kept for display only.
type Item struct {
	SKUID      string                     `json:"sku_id"`
	Title      string                     `json:"title"`
	Category   string                     `json:"category,omitempty"`
	Confidence *float64                   `json:"confidence,omitempty"`
	Rationale  string                     `json:"rationale,omitempty"`
	Components map[string]*ComponentEntry `json:"components"`
}

// NewItem returns an item carrying the default components with no bids.
func NewItem(skuID, title string) *Item {
	item := &Item{SKUID: skuID, Title: title, Components: make(map[string]*ComponentEntry)}
	item.EnsureComponents(DefaultComponents()...)
	return item
}

// EnsureComponents adds empty entries for the named components when absent.
func (i *Item) EnsureComponents(names ...string) {
	if i.Components == nil {
		i.Components = make(map[string]*ComponentEntry, len(names))
	}
	for _, name := range names {
		if _, ok := i.Components[name]; !ok {
			i.Components[name] = &ComponentEntry{SupplierBids: []SupplierBid{}}
		}
	}
}

// Component returns the entry for name, creating it with ideal/floor unset.
func (i *Item) Component(name string) *ComponentEntry {
	i.EnsureComponents(name)
	return i.Components[name]
}

// ComponentNames returns the item's component names in sorted order.
func (i *Item) ComponentNames() []string {
	names := make([]string, 0, len(i.Components))
	for name := range i.Components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CategoryOrDefault returns the item's category or Uncategorized.
func (i *Item) CategoryOrDefault() string {
	if i.Category == "" {
		return Uncategorized
	}
	return i.Category
}

// Clone deep-copies the item.
func (i *Item) Clone() *Item {
	if i == nil {
		return nil
	}
	cp := &Item{
		SKUID:      i.SKUID,
		Title:      i.Title,
		Category:   i.Category,
		Confidence: cloneFloat(i.Confidence),
		Rationale:  i.Rationale,
		Components: make(map[string]*ComponentEntry, len(i.Components)),
	}
	for name, entry := range i.Components {
		cp.Components[name] = entry.clone()
	}
	return cp
}

// CloneItems deep-copies a list of items.
func CloneItems(items []*Item) []*Item {
	out := make([]*Item, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		out = append(out, item.Clone())
	}
	return out
}

// ComponentNames returns the sorted, de-duplicated component names present across items.
func ComponentNames(items []*Item) []string {
	seen := make(map[string]struct{})
	for _, item := range items {
		if item == nil {
			continue
		}
		for name := range item.Components {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
