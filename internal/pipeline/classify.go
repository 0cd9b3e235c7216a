package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/franckalain/barcodenutrition/internal/models"
	"github.com/franckalain/barcodenutrition/internal/nutrition"
)

// ResolveItems looks up every code in order. Codes the source reports as
// not found or malformed are collected in skipped and the scan continues
// with the next code, so skipped names every unresolvable code. When skipped
// is empty, items is index-aligned with codes.
//
// Any other lookup failure aborts with a *LookupError.
func ResolveItems(ctx context.Context, lookup nutrition.Lookup, codes []string, timeout time.Duration) ([]*models.NutritionItem, []models.SkippedCode, error) {
	items := make([]*models.NutritionItem, 0, len(codes))
	var skipped []models.SkippedCode

	for _, code := range codes {
		item, err := lookupOne(ctx, lookup, code, timeout)
		switch {
		case err == nil && item != nil:
			items = append(items, item)
		case err == nil, errors.Is(err, nutrition.ErrNotFound):
			skipped = append(skipped, models.SkippedCode{Code: code, Reason: models.SkipNotFound})
		case errors.Is(err, nutrition.ErrMalformedCode):
			skipped = append(skipped, models.SkippedCode{Code: code, Reason: models.SkipMalformed})
		default:
			return nil, nil, &LookupError{Code: code, Err: err}
		}
	}
	return items, skipped, nil
}

func lookupOne(ctx context.Context, lookup nutrition.Lookup, code string, timeout time.Duration) (*models.NutritionItem, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return lookup.Lookup(ctx, code)
}
