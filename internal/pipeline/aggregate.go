package pipeline

import (
	"fmt"
	"slices"

	"github.com/franckalain/barcodenutrition/internal/models"
)

// nutrient names one numeric field of an item.
type nutrient struct {
	name  string
	value func(*models.NutritionItem) *float64
}

var (
	calories = nutrient{"calories", func(i *models.NutritionItem) *float64 { return i.Calories }}
	protein  = nutrient{"protein", func(i *models.NutritionItem) *float64 { return i.Protein }}
	carbs    = nutrient{"total carbohydrate", func(i *models.NutritionItem) *float64 { return i.TotalCarbohydrate }}
	fat      = nutrient{"total fat", func(i *models.NutritionItem) *float64 { return i.TotalFat }}
)

// Aggregate computes the answer text for cmd. items and codes must be
// index-aligned. A missing nutrient yields a *MissingFieldError.
func Aggregate(cmd Command, items []*models.NutritionItem, codes []string) (string, error) {
	if cmd.Kind == CommandInvalid {
		return InvalidKeywordText(cmd.Keyword), nil
	}
	if len(items) == 0 {
		return "", fmt.Errorf("no items to aggregate")
	}
	if len(items) != len(codes) {
		return "", fmt.Errorf("%d items but %d codes", len(items), len(codes))
	}

	switch cmd.Kind {
	case CommandSingleItem:
		return SingleItem(items[0], codes[0])
	case CommandTotals:
		return Totals(items, codes)
	case CommandCompare:
		return Compare(items, codes)
	default:
		return "", fmt.Errorf("unknown command %v", cmd.Kind)
	}
}

// SingleItem describes one item.
func SingleItem(item *models.NutritionItem, code string) (string, error) {
	values, err := nutrientValues(item, code, calories, protein, carbs, fat)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Here are the totals for %s %s: %s calories, %sg protein, %sg total carbohydrates, %sg total fat.",
		item.BrandName, item.ProductName,
		formatNumber(values[0]), formatNumber(values[1]), formatNumber(values[2]), formatNumber(values[3]),
	), nil
}

// Totals sums each nutrient across all items.
func Totals(items []*models.NutritionItem, codes []string) (string, error) {
	var sums [4]float64
	for i, item := range items {
		values, err := nutrientValues(item, codes[i], calories, protein, carbs, fat)
		if err != nil {
			return "", err
		}
		for j, v := range values {
			sums[j] += v
		}
	}
	return fmt.Sprintf("Here are the totals for the items you requested: %s calories, %sg protein, %sg carbohydrates and %sg total fat.",
		formatNumber(sums[0]), formatNumber(sums[1]), formatNumber(sums[2]), formatNumber(sums[3]),
	), nil
}

// extreme is the winner of one comparison.
type extreme struct {
	item  *models.NutritionItem
	code  string
	value float64
}

// Compare reports the lowest calories, highest protein, lowest carbohydrate
// and lowest fat items.
func Compare(items []*models.NutritionItem, codes []string) (string, error) {
	for i, item := range items {
		if _, err := nutrientValues(item, codes[i], calories, protein, carbs, fat); err != nil {
			return "", err
		}
	}

	lowest := func(cur, next float64) bool { return cur < next }
	highest := func(cur, next float64) bool { return cur > next }

	c := reduceExtreme(items, codes, calories, lowest)
	p := reduceExtreme(items, codes, protein, highest)
	cb := reduceExtreme(items, codes, carbs, lowest)
	f := reduceExtreme(items, codes, fat, lowest)

	return fmt.Sprintf("Lowest calories: %s %s (barcode: %s) with %s calories. "+
		"Highest protein: %s %s (barcode: %s) with %sg of protein. "+
		"Lowest total carbs: %s %s (barcode: %s) with %sg carbs. "+
		"Lowest total fat: %s %s (barcode: %s) with %sg fat.",
		c.item.BrandName, c.item.ProductName, c.code, formatNumber(c.value),
		p.item.BrandName, p.item.ProductName, p.code, formatNumber(p.value),
		cb.item.BrandName, cb.item.ProductName, cb.code, formatNumber(cb.value),
		f.item.BrandName, f.item.ProductName, f.code, formatNumber(f.value),
	), nil
}

// reduceExtreme folds items left to right. The running winner is kept only
// while keep(current, next) holds, so on a tie the later item takes over.
// The code reported is that of the winner's first position in items.
func reduceExtreme(items []*models.NutritionItem, codes []string, n nutrient, keep func(cur, next float64) bool) extreme {
	best := items[0]
	for _, next := range items[1:] {
		if !keep(*n.value(best), *n.value(next)) {
			best = next
		}
	}
	return extreme{
		item:  best,
		code:  codes[slices.Index(items, best)],
		value: *n.value(best),
	}
}

// nutrientValues returns the values of the given nutrients, or a
// *MissingFieldError for the first one item lacks.
func nutrientValues(item *models.NutritionItem, code string, nutrients ...nutrient) ([]float64, error) {
	values := make([]float64, len(nutrients))
	for i, n := range nutrients {
		v := n.value(item)
		if v == nil {
			return nil, &MissingFieldError{Code: code, Field: n.name}
		}
		values[i] = *v
	}
	return values, nil
}
