// Package pipeline runs the end-to-end sourcing flow as a sequence of steps:
// ingest specs, generate quote schemas, categorize, find suppliers, draft and
// send RFQs, collect replies and score them.
package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/ai"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/bids"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/logger"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/mail"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/quote"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/scoring"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/suppliers"
)

// Step is a single stage of the sourcing run.
type Step interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate(cfg *Config) error
	Apply(ctx context.Context, deps Deps, st *State) (Report, error)
}

// ScorecardSaver persists finished scorecards.
type ScorecardSaver interface {
	SaveScorecard(ctx context.Context, card *scoring.Scorecard) error
}

// ConfirmFunc asks whether the drafted emails may be sent.
type ConfirmFunc func(ctx context.Context, emails []mail.Email) (bool, error)

// Deps aggregates the collaborators shared across all steps. Nil model
// collaborators make their steps fall back to defaults.
type Deps struct {
	Logger      *zap.Logger
	Schemas     ai.SchemaGenerator
	Categorizer ai.Categorizer
	Drafter     ai.EmailDrafter
	Directory   suppliers.Directory
	Sender      mail.Sender
	Confirm     ConfirmFunc
	Engine      *scoring.Engine
	Scorecards  ScorecardSaver
}

// Config holds the settings consumed by the steps.
type Config struct {
	SpecsPath   string
	RepliesPath string
	ResultsDir  string
	// Concurrency bounds parallel schema generation.
	Concurrency int
	// Formula, when set, is used as is and no formula is suggested.
	Formula *scoring.Formula
}

// State is what the steps have produced so far.
type State struct {
	Specs       []quote.SpecItem
	Items       []*quote.Item
	Groups      []suppliers.Group
	Emails      []mail.Email
	SendResults []mail.Result
	Replies     map[string]any
	Bids        []bids.Bid
	Malformed   []*bids.MalformedReplyError
	Result      *scoring.Result
	// Files written to the results directory.
	Outputs []string
}

// Report describes the result of executing a step.
type Report struct {
	Input   int
	Output  int
	Skipped int
}

// Status represents runtime information about a step.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
}

// DisableByName marks the step with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Step, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// DefaultSteps returns every step in run order.
func DefaultSteps() []Step {
	return []Step{
		NewIngest(),
		NewSchemas(),
		NewCategorize(),
		NewDiscover(),
		NewDraft(),
		NewSend(),
		NewReplies(),
		NewScore(),
	}
}

// Run validates the enabled steps and executes them in order. Each step is
// logged as a span with start, end or error events.
func Run(ctx context.Context, cfg *Config, deps Deps, steps []Step, st *State) (*State, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if st == nil {
		st = &State{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(cfg); err != nil {
			return st, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			deps.Logger.Info("step disabled", zap.String("name", step.Name()))
			continue
		}
		if err := ctx.Err(); err != nil {
			return st, err
		}

		span := logger.StartSpan(deps.Logger, step.Name())
		report, err := step.Apply(ctx, deps, st)
		span.End(err,
			zap.Int("input", report.Input),
			zap.Int("output", report.Output),
			zap.Int("skipped", report.Skipped),
		)
		if err != nil {
			return st, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	return st, nil
}

// Describe returns status entries for the provided steps.
func Describe(steps []Step) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		s := Status{Name: step.Name(), Enabled: step.IsEnabled()}
		if r, ok := step.(interface{ DisabledReason() string }); ok {
			s.Reason = r.DisabledReason()
		}
		statuses = append(statuses, s)
	}
	return statuses
}

// toggle carries the enable/disable state every step shares.
type toggle struct {
	disabled bool
	reason   string
}

func (t *toggle) Disable(reason string) {
	t.disabled = true
	t.reason = reason
}

func (t *toggle) IsEnabled() bool { return !t.disabled }

func (t *toggle) DisabledReason() string { return t.reason }
