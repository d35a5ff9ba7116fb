// Package bids turns supplier replies into bid records and merges them into
// quote items.
package bids

import (
	"fmt"
	"sort"

	"github.com/mitchellh/mapstructure"

	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/quote"
)

// Bid is one supplier's reply for one SKU.
type Bid struct {
	SKUID        string                 `json:"sku_id"`
	SupplierID   string                 `json:"supplier_id"`
	SupplierName string                 `json:"supplier_name"`
	Components   map[string]quote.Value `json:"components"`
	RawReply     string                 `json:"raw_reply"`
}

// ComponentNames returns the bid's component names in sorted order.
func (b Bid) ComponentNames() []string {
	names := make([]string, 0, len(b.Components))
	for name := range b.Components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MalformedReplyError reports a reply payload that could not be read.
// SKU is empty when the whole supplier entry is unusable.
type MalformedReplyError struct {
	Supplier string
	SKU      string
	Err      error
}

func (e *MalformedReplyError) Error() string {
	if e.SKU == "" {
		return fmt.Sprintf("malformed reply from supplier %q: %v", e.Supplier, e.Err)
	}
	return fmt.Sprintf("malformed reply from supplier %q for sku %q: %v", e.Supplier, e.SKU, e.Err)
}

func (e *MalformedReplyError) Unwrap() error { return e.Err }

type replyPayload struct {
	Components map[string]any `mapstructure:"components"`
	RawReply   string         `mapstructure:"raw_reply"`
}

// Collect flattens replies shaped supplier -> sku -> {components, raw_reply}
// into bids ordered by supplier key and then SKU id. Payloads that cannot be
// decoded are reported and skipped; the rest are still collected.
func Collect(replies map[string]any) ([]Bid, []*MalformedReplyError) {
	var (
		out      []Bid
		problems []*MalformedReplyError
	)

	for _, supplier := range sortedKeys(replies) {
		perSKU, ok := replies[supplier].(map[string]any)
		if !ok {
			problems = append(problems, &MalformedReplyError{
				Supplier: supplier,
				Err:      fmt.Errorf("expected an object keyed by sku, got %T", replies[supplier]),
			})
			continue
		}

		for _, sku := range sortedKeys(perSKU) {
			payload, err := decodePayload(perSKU[sku])
			if err != nil {
				problems = append(problems, &MalformedReplyError{Supplier: supplier, SKU: sku, Err: err})
				continue
			}

			components := make(map[string]quote.Value, len(payload.Components))
			for name, raw := range payload.Components {
				components[name] = quote.ValueOf(raw)
			}

			out = append(out, Bid{
				SKUID:        sku,
				SupplierID:   supplier,
				SupplierName: supplier,
				Components:   components,
				RawReply:     payload.RawReply,
			})
		}
	}

	return out, problems
}

func decodePayload(raw any) (*replyPayload, error) {
	if raw == nil {
		return nil, fmt.Errorf("reply payload is empty")
	}

	var payload replyPayload
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &payload,
		TagName: "mapstructure",
	})
	if err != nil {
		return nil, err
	}

	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("decode reply payload: %w", err)
	}

	return &payload, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
