package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/franckalain/barcodenutrition/internal/models"
	"github.com/franckalain/barcodenutrition/internal/nutrition"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup [code]",
	Short: "Print the nutrition facts for a barcode",
	Args:  cobra.ExactArgs(1),
	RunE:  runLookup,
}

func init() {
	rootCmd.AddCommand(lookupCmd)
}

func runLookup(cmd *cobra.Command, args []string) error {
	code := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	lookup, catalog, err := newLookup(cfg)
	if err != nil {
		return err
	}
	defer lookup.Close()
	if catalog != nil {
		defer catalog.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.LookupTimeout())
	defer cancel()

	item, err := lookup.Lookup(ctx, code)
	switch {
	case errors.Is(err, nutrition.ErrNotFound):
		return fmt.Errorf("no nutrition facts for %s", code)
	case errors.Is(err, nutrition.ErrMalformedCode):
		return fmt.Errorf("malformed barcode %s", code)
	case err != nil:
		return fmt.Errorf("lookup failed: %w", err)
	}

	printItem(cmd, code, item)
	return nil
}

func printItem(cmd *cobra.Command, code string, item *models.NutritionItem) {
	cmd.Printf("%s %s (barcode: %s)\n", item.BrandName, item.ProductName, code)
	cmd.Printf("  Calories:           %s\n", value(item.Calories, ""))
	cmd.Printf("  Protein:            %s\n", value(item.Protein, "g"))
	cmd.Printf("  Total carbohydrate: %s\n", value(item.TotalCarbohydrate, "g"))
	cmd.Printf("  Total fat:          %s\n", value(item.TotalFat, "g"))
}

func value(v *float64, unit string) string {
	if v == nil {
		return "n/a"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64) + unit
}
