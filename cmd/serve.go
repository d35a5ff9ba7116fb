package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve suppliers and stored scorecards over HTTP",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default :8080)")
	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	if _, err := newDirectory(ctx, config.Suppliers, st, logger); err != nil {
		logger.Warn("seeding suppliers failed", zap.Error(err))
	}

	srv := server.New(server.Config{
		Addr:    config.Server.Addr,
		Store:   st,
		Logger:  logger,
		Version: version,
	})
	if err := srv.Run(ctx); err != nil {
		logger.Fatal("serving", zap.Error(err))
	}
}
