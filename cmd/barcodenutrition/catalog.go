package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/franckalain/barcodenutrition/internal/database"
	"github.com/franckalain/barcodenutrition/internal/models"
	"github.com/franckalain/barcodenutrition/internal/nutrition"
)

// catalogEntry is one product in an import file.
type catalogEntry struct {
	UPC                  string `yaml:"upc"`
	models.NutritionItem `yaml:",inline"`
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the local product catalog",
}

var catalogImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import products from a YAML or JSON list",
	Long: `Reads a list of products and stores them in the SQLite catalog used by
the "catalog" and "chain" lookup types. Existing products are replaced.

  - upc: "012345678905"
    brand_name: Acme
    item_name: Granola Bar
    calories: 190
    protein: 4
    total_carbohydrate: 29
    total_fat: 7`,
	Args: cobra.ExactArgs(1),
	RunE: runCatalogImport,
}

func init() {
	catalogCmd.AddCommand(catalogImportCmd)
	rootCmd.AddCommand(catalogCmd)
}

func runCatalogImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	// JSON is a subset of YAML, so one decoder handles both.
	var entries []catalogEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to parse %s: %w", args[0], err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := database.NewSQLiteCatalog(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	for i, e := range entries {
		if !nutrition.ValidCode(e.UPC) {
			return fmt.Errorf("entry %d: invalid upc %q", i, e.UPC)
		}
		if err := db.SaveProduct(ctx, e.UPC, &e.NutritionItem); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
	}

	total, err := db.CountProducts(ctx)
	if err != nil {
		return err
	}
	logger.Info("catalog imported", zap.Int("imported", len(entries)), zap.Int("total", total))
	cmd.Printf("Imported %d products (%d in catalog)\n", len(entries), total)
	return nil
}
