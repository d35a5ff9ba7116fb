package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/ai"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/logger"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/quote"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/scoring"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/utils"
)

type textGenerator interface {
	Generate(ctx context.Context, req Request) (string, error)
	Model() string
}

var (
	//go:embed prompts/quote_schema.md
	quoteSchemaPrompt string
	//go:embed prompts/categorize.md
	categorizePrompt string
	//go:embed prompts/rfq_email.md
	emailPrompt string
	//go:embed prompts/scoring_formula.md
	formulaPrompt string
)

const (
	defaultMaxLogLength = 200
	// Spec text sent to the model is clipped to this many runes.
	specExcerptLength = 2000
)

var _ ai.Assistant = (*Assistant)(nil)

// Assistant implements every model-backed step of a sourcing run on Gemini.
type Assistant struct {
	generator textGenerator
	logger    *zap.Logger
	maxLogLen int
}

func NewAssistant(generator textGenerator, maxLogLength int, log *zap.Logger) *Assistant {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	model := ""
	if generator != nil {
		model = generator.Model()
	}

	return &Assistant{
		generator: generator,
		logger:    logger.WithCommonFields(log, "gemini", model),
		maxLogLen: maxLogLength,
	}
}

// GenerateSchema asks for the quote schema of one spec item. The default
// components are always present in the result.
func (a *Assistant) GenerateSchema(ctx context.Context, spec quote.SpecItem) (*quote.Item, error) {
	payload := map[string]any{
		"instruction":         "Generate initial quote schema for this SKU/service.",
		"sku_id":              spec.SKUID,
		"title":               spec.Title,
		"raw_text_excerpt":    utils.Clip(spec.RawText, specExcerptLength),
		"expected_components": quote.DefaultComponents(),
		"notes":               "If any component is missing in spec, infer reasonable defaults; leave supplier_bids empty.",
	}

	data, _, err := a.generateJSON(ctx, "quote_schema", spec.SKUID, quoteSchemaPrompt, payload, spec.Images)
	if err != nil {
		return nil, err
	}

	skuID := coerceString(data["sku_id"])
	if skuID == "" {
		skuID = spec.SKUID
	}
	title := coerceString(data["title"])
	if title == "" {
		title = spec.Title
	}

	item := quote.NewItem(skuID, title)
	if components, ok := data["components"].(map[string]any); ok {
		for name, raw := range components {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			entry := item.Component(name)
			if fields, ok := raw.(map[string]any); ok {
				entry.IdealValue = optionalFloat(fields["ideal_value"])
				entry.FloorValue = optionalFloat(fields["floor_value"])
			}
		}
	}

	return item, nil
}

// Categorize assigns a purchasing category. Missing fields get defaults.
func (a *Assistant) Categorize(ctx context.Context, item *quote.Item) (*ai.Categorization, error) {
	if item == nil {
		return nil, fmt.Errorf("item is required")
	}

	payload := map[string]any{
		"sku_id":     item.SKUID,
		"title":      item.Title,
		"components": item.ComponentNames(),
	}

	data, raw, err := a.generateJSON(ctx, "categorize", item.SKUID, categorizePrompt, payload, nil)
	if err != nil {
		return nil, err
	}

	category := coerceString(data["category"])
	if category == "" {
		category = quote.Uncategorized
	}

	confidence := coerceFloat(data["confidence"])
	if math.IsNaN(confidence) {
		confidence = ai.DefaultConfidence
	}
	confidence = math.Max(0, math.Min(1, confidence))

	return &ai.Categorization{
		Category:   category,
		Confidence: confidence,
		Rationale:  coerceString(data["rationale"]),
		Raw:        raw,
	}, nil
}

// DraftEmail composes one RFQ email. Empty subject or body fall back to a plain template.
func (a *Assistant) DraftEmail(ctx context.Context, req ai.EmailRequest) (*ai.EmailDraft, error) {
	payload := map[string]any{
		"supplier_name": req.SupplierName,
		"to_email":      req.ToEmail,
		"category":      req.Category,
		"skus":          req.Items,
	}

	data, _, err := a.generateJSON(ctx, "rfq_email", req.SupplierName, emailPrompt, payload, nil)
	if err != nil {
		return nil, err
	}

	fallback := ai.DefaultDraft(req)
	draft := &ai.EmailDraft{
		Subject: coerceString(data["subject"]),
		Body:    coerceString(data["body"]),
	}
	if draft.Subject == "" {
		draft.Subject = fallback.Subject
	}
	if draft.Body == "" {
		draft.Body = fallback.Body
	}

	return draft, nil
}

// SuggestFormula proposes weights and directions. Entries that cannot be
// read as numbers are left out; the resolver fills gaps from its default.
func (a *Assistant) SuggestFormula(ctx context.Context, components []string) (*scoring.Suggestion, error) {
	payload := map[string]any{
		"components": components,
	}

	data, _, err := a.generateJSON(ctx, "scoring_formula", "", formulaPrompt, payload, nil)
	if err != nil {
		return nil, err
	}

	suggestion := &scoring.Suggestion{
		Weights:    floatMap(data["weights"]),
		Directions: stringMap(data["directions"]),
		MinValues:  floatMap(data["min_values"]),
		MaxValues:  floatMap(data["max_values"]),
	}

	return suggestion, nil
}

func (a *Assistant) generateJSON(ctx context.Context, operation, subject, system string, payload any, images []quote.Image) (map[string]any, string, error) {
	if a.generator == nil {
		return nil, "", fmt.Errorf("gemini generator is not configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, "", fmt.Errorf("marshal %s payload: %w", operation, err)
	}
	prompt := string(body)

	a.logger.Debug("gemini generate content request",
		zap.String("operation", operation),
		zap.String("subject", subject),
		zap.Int("images", len(images)),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, a.maxLogLen)),
	)

	raw, err := a.generator.Generate(ctx, Request{
		System: system,
		Prompt: prompt,
		Images: images,
		JSON:   true,
	})
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", operation, err)
	}

	a.logger.Debug("gemini generate content response",
		zap.String("operation", operation),
		zap.String("subject", subject),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, a.maxLogLen)),
	)

	data, err := parseObject(raw)
	if err != nil {
		return nil, raw, fmt.Errorf("%s: %w", operation, err)
	}

	return data, raw, nil
}

var (
	fencedJSON     = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	trailingCommas = regexp.MustCompile(`,(\s*[}\]])`)
)

// parseObject reads a JSON object from model output, tolerating code fences,
// surrounding prose and trailing commas.
func parseObject(raw string) (map[string]any, error) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("parse gemini response: empty output")
	}

	candidates := []string{cleaned, extractJSON(cleaned)}
	if m := fencedJSON.FindStringSubmatch(cleaned); m != nil {
		candidates = append(candidates, m[1])
	}
	if start, end := strings.Index(cleaned, "{"), strings.LastIndex(cleaned, "}"); start != -1 && end > start {
		span := cleaned[start : end+1]
		candidates = append(candidates, span, trailingCommas.ReplaceAllString(span, "$1"))
	}

	var lastErr error
	for _, candidate := range candidates {
		var data map[string]any
		if err := json.Unmarshal([]byte(candidate), &data); err != nil {
			lastErr = err
			continue
		}
		if data != nil {
			return data, nil
		}
	}

	return nil, fmt.Errorf("parse gemini response: %w", lastErr)
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func optionalFloat(v any) *float64 {
	f := coerceFloat(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}

func floatMap(v any) map[string]float64 {
	raw, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]float64, len(raw))
	for name, value := range raw {
		f := coerceFloat(value)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		out[name] = f
	}
	return out
}

func stringMap(v any) map[string]string {
	raw, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for name, value := range raw {
		if s := coerceString(value); s != "" {
			out[name] = s
		}
	}
	return out
}
