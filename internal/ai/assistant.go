// Package ai declares the language-model collaborators used by the sourcing run.
package ai

import (
	"context"
	"fmt"

	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/quote"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/scoring"
)

// DefaultConfidence is assumed when categorization omits a confidence.
const DefaultConfidence = 0.5

// Categorization is display-only metadata; it never feeds scoring.
type Categorization struct {
	Category   string
	Confidence float64
	Rationale  string
	Raw        string
}

// EmailRequest describes one RFQ email to draft.
type EmailRequest struct {
	SupplierName string
	ToEmail      string
	Category     string
	Items        []EmailItem
}

type EmailItem struct {
	SKUID string `json:"sku_id"`
	Title string `json:"title"`
}

type EmailDraft struct {
	Subject string
	Body    string
}

// SchemaGenerator builds the quote schema for one spec item.
type SchemaGenerator interface {
	GenerateSchema(ctx context.Context, spec quote.SpecItem) (*quote.Item, error)
}

type Categorizer interface {
	Categorize(ctx context.Context, item *quote.Item) (*Categorization, error)
}

type EmailDrafter interface {
	DraftEmail(ctx context.Context, req EmailRequest) (*EmailDraft, error)
}

// Assistant bundles every model-backed capability of a run.
type Assistant interface {
	SchemaGenerator
	Categorizer
	EmailDrafter
	scoring.Suggester
}

// DefaultDraft is used when the model returns no usable subject or body.
func DefaultDraft(req EmailRequest) EmailDraft {
	return EmailDraft{
		Subject: fmt.Sprintf("RFQ for %s items", req.Category),
		Body:    fmt.Sprintf("Hello %s,\nPlease quote for attached items.\nThanks.", req.SupplierName),
	}
}
