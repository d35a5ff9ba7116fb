package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/ai"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/ai/gemini"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/bids"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/mail"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/scoring"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/secrets"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/store"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/suppliers"
)

const outboxDir = "outbox"

// newAssistant returns nil when AI is disabled; callers fall back to defaults.
func newAssistant(ctx context.Context, cfg AIConfig, logger *zap.Logger) (ai.Assistant, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		File:  cfg.Gemini.APIKeyFile,
		Env:   []string{"GEMINI_API_KEY"},
		Value: cfg.Gemini.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
	}

	generator, err := gemini.NewGenerator(ctx, gemini.Config{
		APIKey:            apiKey,
		Model:             cfg.Gemini.Model,
		Temperature:       cfg.Gemini.Temperature,
		MaxOutputTokens:   cfg.Gemini.MaxOutputTokens,
		MaxRetries:        cfg.Gemini.MaxRetries,
		RequestsPerSecond: cfg.Gemini.RequestsPerSecond,
	}, logger.With(zap.Int("ai_retry_attempts", cfg.Gemini.MaxRetries)))
	if err != nil {
		return nil, err
	}

	return gemini.NewAssistant(generator, cfg.Gemini.MaxLogLength, logger), nil
}

// openStore returns nil when no store path is configured.
func openStore(ctx context.Context, cfg StoreConfig) (*store.SQLiteStore, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, nil
	}
	st, err := store.NewSQLite(path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// newDirectory prefers the store and seeds it from the CSV when it is empty.
// Without a store the CSV seed is used directly.
func newDirectory(ctx context.Context, cfg SuppliersConfig, st *store.SQLiteStore, logger *zap.Logger) (suppliers.Directory, error) {
	seed, err := suppliers.LoadSeedFile(cfg.SeedFile)
	if err != nil {
		return nil, err
	}
	if st == nil {
		logger.Info("using supplier seed file", zap.String("path", cfg.SeedFile), zap.Int("suppliers", len(seed)))
		return suppliers.NewStaticDirectory(seed), nil
	}

	existing, err := st.ListSuppliers(ctx, "")
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 && len(seed) > 0 {
		imported, err := importSuppliers(ctx, st, seed, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("seeded supplier store", zap.Int("suppliers", imported))
	}
	return st, nil
}

func importSuppliers(ctx context.Context, st *store.SQLiteStore, list []suppliers.Supplier, logger *zap.Logger) (int, error) {
	imported := 0
	for _, sup := range list {
		if err := sup.Validate(); err != nil {
			logger.Warn("skipping supplier", zap.String("name", sup.Name), zap.Error(err))
			continue
		}
		if err := st.UpsertSupplier(ctx, sup); err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}

// newSender writes to the outbox in demo mode or when SMTP is not configured.
func newSender(config *Config, logger *zap.Logger) (mail.Sender, error) {
	smtpCfg := config.Mail.SMTP
	if config.DemoMode || strings.TrimSpace(smtpCfg.Host) == "" {
		return mail.NewOutbox(filepath.Join(config.ResultsDir, outboxDir), logger), nil
	}

	password := ""
	if smtpCfg.Username != "" {
		var err error
		password, err = secrets.Load(secrets.Source{
			Name:  "smtp password",
			File:  smtpCfg.PasswordFile,
			Env:   []string{"SMTP_PASSWORD"},
			Value: smtpCfg.Password,
		})
		if err != nil {
			return nil, err
		}
	}

	return mail.NewSMTPSender(mail.SMTPConfig{
		Host:     smtpCfg.Host,
		Port:     smtpCfg.Port,
		Username: smtpCfg.Username,
		Password: password,
		From:     config.Mail.FromEmail,
		FromName: config.Mail.FromName,
	}, logger)
}

// newEngine wires the scoring engine. The returned formula is non-nil when a
// formula file is configured; it then bypasses the suggester.
func newEngine(cfg ScoringConfig, suggester scoring.Suggester, logger *zap.Logger) (*scoring.Engine, *scoring.Formula, error) {
	var formula *scoring.Formula
	if path := strings.TrimSpace(cfg.FormulaFile); path != "" {
		f, err := scoring.LoadFormulaFile(path)
		if err != nil {
			return nil, nil, err
		}
		formula = f
	}

	aggregator := bids.NewAggregator(logger, bids.Options{ReplaceExisting: cfg.ReplaceExistingBids})
	resolver := scoring.NewResolver(suggester, scoring.ResolverConfig{
		Timeout: cfg.SuggestTimeout,
		Skip:    !cfg.Suggest,
	}, logger)

	return scoring.NewEngine(aggregator, resolver, logger), formula, nil
}
