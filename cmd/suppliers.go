package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/suppliers"
)

var suppliersCmd = &cobra.Command{
	Use:   "suppliers",
	Short: "Manage the supplier directory",
}

var suppliersImportCmd = &cobra.Command{
	Use:   "import [seed.csv]",
	Short: "Import suppliers from a CSV seed file into the store",
	Args:  cobra.MaximumNArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		importSuppliersCmd(args)
	},
}

var suppliersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List suppliers, optionally by category",
	Run: func(cmd *cobra.Command, _ []string) {
		listSuppliers(cmd.Flag("category").Value.String())
	},
}

func init() {
	rootCmd.AddCommand(suppliersCmd)
	suppliersCmd.AddCommand(suppliersImportCmd, suppliersListCmd)

	suppliersListCmd.Flags().StringP("category", "c", "", "only suppliers serving this category")
}

func importSuppliersCmd(args []string) {
	ctx := context.Background()
	logger := newLogger(uuid.NewString(), "")
	defer logger.Sync() //nolint:errcheck
	config := mustConfig(logger)

	path := config.Suppliers.SeedFile
	if len(args) > 0 {
		path = args[0]
	}

	st, err := openStore(ctx, config.Store)
	if err != nil {
		logger.Fatal("opening the store", zap.Error(err))
	}
	if st == nil {
		logger.Fatal("store is not configured", zap.String("hint", "set store.path or SOURCER_STORE_PATH"))
	}
	defer st.Close() //nolint:errcheck

	seed, err := suppliers.LoadSeedFile(path)
	if err != nil {
		logger.Fatal("reading supplier seed", zap.Error(err))
	}

	imported, err := importSuppliers(ctx, st, seed, logger)
	if err != nil {
		logger.Fatal("importing suppliers", zap.Error(err))
	}
	logger.Info("suppliers imported", zap.String("path", path), zap.Int("count", imported), zap.Int("rows", len(seed)))
}

func listSuppliers(category string) {
	ctx := context.Background()
	logger := newLogger(uuid.NewString(), "")
	defer logger.Sync() //nolint:errcheck
	config := mustConfig(logger)

	st, err := openStore(ctx, config.Store)
	if err != nil {
		logger.Fatal("opening the store", zap.Error(err))
	}

	var list []suppliers.Supplier
	if st != nil {
		defer st.Close() //nolint:errcheck
		list, err = st.ListSuppliers(ctx, category)
	} else {
		var seed []suppliers.Supplier
		seed, err = suppliers.LoadSeedFile(config.Suppliers.SeedFile)
		if category != "" {
			seed = suppliers.FilterByCategories(seed, []string{category})
		}
		list = seed
	}
	if err != nil {
		logger.Fatal("listing suppliers", zap.Error(err))
	}

	pretty, _ := json.MarshalIndent(list, "", "  ")
	fmt.Println(string(pretty))
}
