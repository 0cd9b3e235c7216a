package nutrition

import (
	"context"
	"errors"

	"github.com/franckalain/barcodenutrition/internal/models"
)

// Chain consults several sources in order. The first item found wins; a
// malformed-code answer from any source is final.
type Chain struct {
	sources []Lookup
}

// NewChain returns a lookup over sources, consulted in the given order.
func NewChain(sources ...Lookup) *Chain {
	return &Chain{sources: sources}
}

// Lookup returns the first item any source resolves for code.
func (c *Chain) Lookup(ctx context.Context, code string) (*models.NutritionItem, error) {
	for _, source := range c.sources {
		item, err := source.Lookup(ctx, code)
		switch {
		case err == nil:
			return item, nil
		case errors.Is(err, ErrNotFound):
			continue
		default:
			return nil, err
		}
	}
	return nil, ErrNotFound
}

// Close closes every source.
func (c *Chain) Close() error {
	var errs []error
	for _, source := range c.sources {
		if err := source.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
