package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/mail"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/pipeline"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/utils"
)

const (
	PromptYes        = "Yes"
	PromptNo         = "No"
	PromptShowEmails = "Show drafted emails"

	eventLogFile   = "events.jsonl"
	previewLength  = 200
	autoApproveKey = "auto-approve"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full sourcing flow: specs, RFQs, replies and scoring",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("specs", "s", "", "zip archive with spec documents")
	runCmd.Flags().StringP("replies", "r", "", "supplier replies json")
	runCmd.Flags().BoolP(autoApproveKey, "y", false, "send emails without asking for confirmation")
	runCmd.Flags().Bool("dry-run", false, "draft emails but do not send them")

	viper.BindPFlag("specs", runCmd.Flags().Lookup("specs"))
	viper.BindPFlag("replies", runCmd.Flags().Lookup("replies"))
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()
	config, err := getConfig()
	if err != nil {
		newLogger(runID, "").Fatal("getting a config", zap.Error(err))
	}

	logger := newLogger(runID, filepath.Join(config.ResultsDir, eventLogFile))
	defer logger.Sync() //nolint:errcheck

	logger.Info("starting the sourcing run", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(redacted(config), "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	assistant, err := newAssistant(ctx, config.AI, logger)
	if err != nil {
		logger.Warn("ai assistant is not available; using defaults", zap.Error(err))
	}

	st, err := openStore(ctx, config.Store)
	if err != nil {
		logger.Fatal("opening the store", zap.Error(err))
	}
	if st != nil {
		defer st.Close() //nolint:errcheck
	}

	directory, err := newDirectory(ctx, config.Suppliers, st, logger)
	if err != nil {
		logger.Fatal("loading suppliers", zap.Error(err))
	}

	sender, err := newSender(config, logger)
	if err != nil {
		logger.Fatal("configuring email delivery", zap.Error(err))
	}

	engine, formula, err := newEngine(config.Scoring, assistant, logger)
	if err != nil {
		logger.Fatal("configuring scoring", zap.Error(err))
	}

	deps := pipeline.Deps{
		Logger:    logger,
		Directory: directory,
		Sender:    sender,
		Engine:    engine,
	}
	if assistant != nil {
		deps.Schemas = assistant
		deps.Categorizer = assistant
		deps.Drafter = assistant
	}
	if st != nil {
		deps.Scorecards = st
	}
	if cmd.Flag(autoApproveKey).Value.String() == "false" {
		deps.Confirm = confirmSend(logger)
	}

	steps := pipeline.DefaultSteps()
	if cmd.Flag("dry-run").Value.String() == "true" {
		pipeline.DisableByName(steps, pipeline.StepSend, "dry run requested via flag")
	}

	state, err := pipeline.Run(ctx, &pipeline.Config{
		SpecsPath:   config.Specs,
		RepliesPath: config.Replies,
		ResultsDir:  config.ResultsDir,
		Concurrency: config.AI.Gemini.Concurrency,
		Formula:     formula,
	}, deps, steps, nil)
	if err != nil {
		logger.Fatal("sourcing run failed", zap.Error(err))
	}

	logger.Info("sourcing run finished",
		zap.Int("emails", len(state.Emails)),
		zap.Any("delivery", mail.Summary(state.SendResults)),
		zap.Strings("outputs", state.Outputs),
		zap.String("session_id", state.Result.Scorecard.SessionID()),
	)
}

// confirmSend asks before emails go out. Showing the drafts loops back to the question.
func confirmSend(logger *zap.Logger) pipeline.ConfirmFunc {
	return func(_ context.Context, emails []mail.Email) (bool, error) {
		prompt := promptui.Select{
			Label: fmt.Sprintf("Send %d RFQ emails?", len(emails)),
			Items: []string{PromptYes, PromptNo, PromptShowEmails},
		}
		for {
			_, action, err := prompt.Run()
			if err != nil {
				return false, err
			}

			switch action {
			case PromptYes:
				return true, nil
			case PromptNo:
				logger.Info("not sending", zap.String("reason", "got no from prompt"))
				return false, nil
			case PromptShowEmails:
				for _, e := range emails {
					logger.Info("drafted email",
						zap.String("to", e.ToEmail),
						zap.String("category", e.Meta.Category),
						zap.String("subject", e.Subject),
						zap.String("body", utils.TruncateForLog(e.Body, previewLength)),
					)
				}
			default:
				return false, fmt.Errorf("invalid action: %s", action)
			}
		}
	}
}

// redacted returns a copy of the config safe to log.
func redacted(config *Config) Config {
	cp := *config
	if cp.AI.Gemini.APIKey != "" {
		cp.AI.Gemini.APIKey = "***"
	}
	if cp.Mail.SMTP.Password != "" {
		cp.Mail.SMTP.Password = "***"
	}
	return cp
}
