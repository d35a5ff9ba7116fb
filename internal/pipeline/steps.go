package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/ai"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/bids"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/ingest"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/logger"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/mail"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/quote"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/suppliers"
)

// Step names.
const (
	StepIngest     = "ingest"
	StepSchemas    = "schemas"
	StepCategorize = "categorize"
	StepDiscover   = "suppliers"
	StepDraft      = "emails"
	StepSend       = "send"
	StepReplies    = "replies"
	StepScore      = "score"

	defaultConcurrency = 4
)

type ingestStep struct {
	toggle
	path string
}

// NewIngest reads the spec archive.
func NewIngest() Step { return &ingestStep{} }

func (s *ingestStep) Name() string { return StepIngest }

func (s *ingestStep) Validate(cfg *Config) error {
	s.path = strings.TrimSpace(cfg.SpecsPath)
	if s.path == "" {
		return errors.New("specs archive path is required")
	}
	return nil
}

func (s *ingestStep) Apply(_ context.Context, deps Deps, st *State) (Report, error) {
	specs, err := ingest.ParseArchive(s.path, deps.Logger)
	if err != nil {
		return Report{}, err
	}
	st.Specs = specs
	return Report{Output: len(specs)}, nil
}

type schemasStep struct {
	toggle
	concurrency int
}

// NewSchemas generates one quote schema per spec concurrently. Failed
// generations fall back to the default schema.
func NewSchemas() Step { return &schemasStep{} }

func (s *schemasStep) Name() string { return StepSchemas }

func (s *schemasStep) Validate(cfg *Config) error {
	if cfg.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative, got %d", cfg.Concurrency)
	}
	s.concurrency = cfg.Concurrency
	if s.concurrency == 0 {
		s.concurrency = defaultConcurrency
	}
	return nil
}

func (s *schemasStep) Apply(ctx context.Context, deps Deps, st *State) (Report, error) {
	items := make([]*quote.Item, len(st.Specs))
	fallbacks := make([]bool, len(st.Specs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, spec := range st.Specs {
		g.Go(func() error {
			item, err := generateSchema(gctx, deps.Schemas, spec)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				deps.Logger.Warn("schema generation failed; using default schema",
					append(logger.ItemFields(spec.SKUID, ""), zap.Error(err))...)
				item = quote.NewItem(spec.SKUID, spec.Title)
				fallbacks[i] = true
			}
			items[i] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	skipped := 0
	for _, fb := range fallbacks {
		if fb {
			skipped++
		}
	}
	st.Items = items
	return Report{Input: len(st.Specs), Output: len(items), Skipped: skipped}, nil
}

func generateSchema(ctx context.Context, gen ai.SchemaGenerator, spec quote.SpecItem) (*quote.Item, error) {
	if gen == nil {
		return quote.NewItem(spec.SKUID, spec.Title), nil
	}
	item, err := gen.GenerateSchema(ctx, spec)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, errors.New("empty schema")
	}
	if item.SKUID == "" {
		item.SKUID = spec.SKUID
	}
	if item.Title == "" {
		item.Title = spec.Title
	}
	item.EnsureComponents(quote.DefaultComponents()...)
	return item, nil
}

type categorizeStep struct{ toggle }

// NewCategorize assigns a category to every item. Failures leave the item
// Uncategorized with the default confidence.
func NewCategorize() Step { return &categorizeStep{} }

func (s *categorizeStep) Name() string { return StepCategorize }

func (s *categorizeStep) Validate(*Config) error { return nil }

func (s *categorizeStep) Apply(ctx context.Context, deps Deps, st *State) (Report, error) {
	skipped := 0
	for _, item := range st.Items {
		c := categorize(ctx, deps, item)
		if c == nil {
			skipped++
			c = &ai.Categorization{Category: quote.Uncategorized, Confidence: ai.DefaultConfidence}
		}
		item.Category = c.Category
		confidence := c.Confidence
		item.Confidence = &confidence
		item.Rationale = c.Rationale
	}
	return Report{Input: len(st.Items), Output: len(st.Items), Skipped: skipped}, nil
}

func categorize(ctx context.Context, deps Deps, item *quote.Item) *ai.Categorization {
	if deps.Categorizer == nil {
		return nil
	}
	c, err := deps.Categorizer.Categorize(ctx, item)
	if err != nil {
		deps.Logger.Warn("categorization failed; item left uncategorized",
			append(logger.ItemFields(item.SKUID, ""), zap.Error(err))...)
		return nil
	}
	if c == nil || strings.TrimSpace(c.Category) == "" {
		return nil
	}
	return c
}

type discoverStep struct{ toggle }

// NewDiscover looks up suppliers for the item categories and groups them.
func NewDiscover() Step { return &discoverStep{} }

func (s *discoverStep) Name() string { return StepDiscover }

func (s *discoverStep) Validate(*Config) error { return nil }

func (s *discoverStep) Apply(ctx context.Context, deps Deps, st *State) (Report, error) {
	if deps.Directory == nil {
		return Report{}, errors.New("supplier directory is not configured")
	}
	categories := suppliers.Categories(st.Items)
	found, err := deps.Directory.ByCategories(ctx, categories)
	if err != nil {
		return Report{}, fmt.Errorf("find suppliers: %w", err)
	}

	st.Groups = suppliers.GroupByCategory(st.Items, found)
	uncovered := 0
	for _, g := range st.Groups {
		if len(g.Suppliers) == 0 {
			uncovered++
			deps.Logger.Warn("no suppliers for category", zap.String(logger.FieldCategory, g.Category))
		}
	}
	return Report{Input: len(categories), Output: len(found), Skipped: uncovered}, nil
}

type draftStep struct{ toggle }

// NewDraft writes one RFQ email per category and supplier.
func NewDraft() Step { return &draftStep{} }

func (s *draftStep) Name() string { return StepDraft }

func (s *draftStep) Validate(*Config) error { return nil }

func (s *draftStep) Apply(ctx context.Context, deps Deps, st *State) (Report, error) {
	var emails []mail.Email
	skipped := 0
	for _, g := range st.Groups {
		items := make([]ai.EmailItem, 0, len(g.Items))
		for _, item := range g.Items {
			items = append(items, ai.EmailItem{SKUID: item.SKUID, Title: item.Title})
		}

		for _, sup := range g.Suppliers {
			if strings.TrimSpace(sup.Email) == "" {
				skipped++
				deps.Logger.Warn("supplier has no email address", logger.SupplierFields(sup.ID, g.Category)...)
				continue
			}
			req := ai.EmailRequest{SupplierName: sup.Name, ToEmail: sup.Email, Category: g.Category, Items: items}
			draft := draftEmail(ctx, deps, req, sup.ID)
			emails = append(emails, mail.Email{
				ToEmail: sup.Email,
				ToName:  sup.Name,
				Subject: draft.Subject,
				Body:    draft.Body,
				Meta:    mail.Meta{Category: g.Category, SupplierID: sup.ID},
			})
		}
	}
	st.Emails = emails
	return Report{Input: len(st.Groups), Output: len(emails), Skipped: skipped}, nil
}

func draftEmail(ctx context.Context, deps Deps, req ai.EmailRequest, supplierID string) ai.EmailDraft {
	fallback := ai.DefaultDraft(req)
	if deps.Drafter == nil {
		return fallback
	}
	draft, err := deps.Drafter.DraftEmail(ctx, req)
	if err != nil || draft == nil {
		deps.Logger.Warn("email drafting failed; using default email",
			append(logger.SupplierFields(supplierID, req.Category), zap.Error(err))...)
		return fallback
	}
	if strings.TrimSpace(draft.Subject) == "" {
		draft.Subject = fallback.Subject
	}
	if strings.TrimSpace(draft.Body) == "" {
		draft.Body = fallback.Body
	}
	return *draft
}

type sendStep struct{ toggle }

// NewSend dispatches the drafted emails after confirmation.
func NewSend() Step { return &sendStep{} }

func (s *sendStep) Name() string { return StepSend }

func (s *sendStep) Validate(*Config) error { return nil }

func (s *sendStep) Apply(ctx context.Context, deps Deps, st *State) (Report, error) {
	if len(st.Emails) == 0 {
		deps.Logger.Info("no emails to send")
		return Report{}, nil
	}
	if deps.Sender == nil {
		return Report{}, errors.New("email sender is not configured")
	}

	if deps.Confirm != nil {
		ok, err := deps.Confirm(ctx, st.Emails)
		if err != nil {
			return Report{}, fmt.Errorf("confirm sending: %w", err)
		}
		if !ok {
			deps.Logger.Info("sending skipped", zap.String("reason", "not confirmed"))
			return Report{Input: len(st.Emails), Skipped: len(st.Emails)}, nil
		}
	}

	results, err := deps.Sender.Send(ctx, st.Emails)
	if err != nil {
		return Report{}, fmt.Errorf("send emails: %w", err)
	}
	st.SendResults = results

	summary := mail.Summary(results)
	return Report{Input: len(st.Emails), Output: len(results) - summary[mail.StatusFailed], Skipped: summary[mail.StatusFailed]}, nil
}

type repliesStep struct {
	toggle
	path string
}

// NewReplies loads supplier replies and flattens them into bids.
func NewReplies() Step { return &repliesStep{} }

func (s *repliesStep) Name() string { return StepReplies }

func (s *repliesStep) Validate(cfg *Config) error {
	s.path = strings.TrimSpace(cfg.RepliesPath)
	if s.path == "" {
		return errors.New("replies path is required")
	}
	return nil
}

func (s *repliesStep) Apply(_ context.Context, deps Deps, st *State) (Report, error) {
	replies, err := mail.LoadReplies(s.path)
	if err != nil {
		return Report{}, err
	}
	st.Replies = replies

	collected, malformed := bids.Collect(replies)
	for _, m := range malformed {
		deps.Logger.Warn("skipping malformed reply",
			zap.String(logger.FieldSupplier, m.Supplier),
			zap.String(logger.FieldSKU, m.SKU),
			zap.Error(m.Err),
		)
	}
	st.Bids = collected
	st.Malformed = malformed
	return Report{Input: len(replies), Output: len(collected), Skipped: len(malformed)}, nil
}
