package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/pipeline"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/quote"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score supplier replies against previously generated quote schemas",
	Run: func(cmd *cobra.Command, _ []string) {
		score(cmd)
	},
}

func init() {
	rootCmd.AddCommand(scoreCmd)

	scoreCmd.Flags().StringP("items", "i", "", "quote schemas json (default is items.json in the results dir)")
	scoreCmd.Flags().StringP("replies", "r", "", "supplier replies json")
	scoreCmd.Flags().StringP("formula", "f", "", "yaml scoring formula; skips formula suggestion")

	viper.BindPFlag("scoring.formula-file", scoreCmd.Flags().Lookup("formula"))
}

func score(cmd *cobra.Command) {
	ctx := context.Background()

	logger := newLogger(uuid.NewString(), "")
	defer logger.Sync() //nolint:errcheck
	config := mustConfig(logger)

	itemsPath := cmd.Flag("items").Value.String()
	if itemsPath == "" {
		itemsPath = filepath.Join(config.ResultsDir, pipeline.ItemsFile)
	}
	repliesPath := cmd.Flag("replies").Value.String()
	if repliesPath == "" {
		repliesPath = config.Replies
	}

	items, err := loadItems(itemsPath)
	if err != nil {
		logger.Fatal("loading quote schemas", zap.Error(err))
	}

	assistant, err := newAssistant(ctx, config.AI, logger)
	if err != nil {
		logger.Warn("ai assistant is not available; using the default formula", zap.Error(err))
	}

	engine, formula, err := newEngine(config.Scoring, assistant, logger)
	if err != nil {
		logger.Fatal("configuring scoring", zap.Error(err))
	}

	st, err := openStore(ctx, config.Store)
	if err != nil {
		logger.Fatal("opening the store", zap.Error(err))
	}
	deps := pipeline.Deps{Logger: logger, Engine: engine}
	if st != nil {
		defer st.Close() //nolint:errcheck
		deps.Scorecards = st
	}

	state, err := pipeline.Run(ctx, &pipeline.Config{
		RepliesPath: repliesPath,
		ResultsDir:  config.ResultsDir,
		Formula:     formula,
	}, deps, []pipeline.Step{pipeline.NewReplies(), pipeline.NewScore()}, &pipeline.State{Items: items})
	if err != nil {
		logger.Fatal("scoring failed", zap.Error(err))
	}

	logger.Info("scoring finished",
		zap.String("session_id", state.Result.Scorecard.SessionID()),
		zap.String("formula_source", string(state.Result.Resolution.Source)),
		zap.Strings("outputs", state.Outputs),
	)
}

func loadItems(path string) ([]*quote.Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var items []*quote.Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return items, nil
}
