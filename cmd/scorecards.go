package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/store"
)

var scorecardsCmd = &cobra.Command{
	Use:   "scorecards",
	Short: "Inspect stored scorecards",
}

var scorecardsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored scorecards, newest first",
	Run: func(cmd *cobra.Command, _ []string) {
		limit, _ := cmd.Flags().GetInt("limit")
		listScorecards(limit)
	},
}

var scorecardsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show a scorecard and the winner per SKU",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		showScorecard(args[0])
	},
}

func init() {
	rootCmd.AddCommand(scorecardsCmd)
	scorecardsCmd.AddCommand(scorecardsListCmd, scorecardsShowCmd)

	scorecardsListCmd.Flags().IntP("limit", "n", 20, "maximum scorecards to list; 0 lists all")
}

func withStore(fn func(ctx context.Context, st *store.SQLiteStore, logger *zap.Logger)) {
	ctx := context.Background()
	logger := newLogger(uuid.NewString(), "")
	defer logger.Sync() //nolint:errcheck
	config := mustConfig(logger)

	st, err := openStore(ctx, config.Store)
	if err != nil {
		logger.Fatal("opening the store", zap.Error(err))
	}
	if st == nil {
		logger.Fatal("store is not configured", zap.String("hint", "set store.path or SOURCER_STORE_PATH"))
	}
	defer st.Close() //nolint:errcheck

	fn(ctx, st, logger)
}

func listScorecards(limit int) {
	withStore(func(ctx context.Context, st *store.SQLiteStore, logger *zap.Logger) {
		cards, err := st.ListScorecards(ctx, limit)
		if err != nil {
			logger.Fatal("listing scorecards", zap.Error(err))
		}
		for _, c := range cards {
			fmt.Printf("%s\t%s\t%d skus\t%d scores\n",
				c.SessionID(), c.CreatedAt().Format("2006-01-02 15:04:05"), len(c.SKUs()), len(c.Scores()))
		}
	})
}

func showScorecard(sessionID string) {
	withStore(func(ctx context.Context, st *store.SQLiteStore, logger *zap.Logger) {
		card, err := st.GetScorecard(ctx, sessionID)
		if err != nil {
			logger.Fatal("getting scorecard", zap.Error(err))
		}

		pretty, _ := json.MarshalIndent(card, "", "  ")
		fmt.Println(string(pretty))

		for _, w := range card.Winners() {
			fmt.Printf("SKU %s: winner -> %s (score=%v)\n", w.SKUID, w.SupplierName, w.TotalScore)
		}
	})
}
