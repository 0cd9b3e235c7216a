package nutrition

import (
	"context"
	"fmt"

	"github.com/franckalain/barcodenutrition/internal/database"
	"github.com/franckalain/barcodenutrition/internal/models"
)

// Ensure CatalogLookup implements the interface.
var _ Lookup = (*CatalogLookup)(nil)

// CatalogLookup resolves codes against the local SQLite product catalog.
type CatalogLookup struct {
	db database.Catalog
}

// NewCatalogLookup wraps db. Closing the lookup does not close db.
func NewCatalogLookup(db database.Catalog) *CatalogLookup {
	return &CatalogLookup{db: db}
}

// Lookup returns the catalog entry for code.
func (c *CatalogLookup) Lookup(ctx context.Context, code string) (*models.NutritionItem, error) {
	if !ValidCode(code) {
		return nil, fmt.Errorf("%w: %q", ErrMalformedCode, code)
	}
	item, err := c.db.GetProduct(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("catalog lookup: %w", err)
	}
	if item == nil {
		return nil, ErrNotFound
	}
	return item, nil
}

// Close is a no-op; the catalog database is closed by its owner.
func (c *CatalogLookup) Close() error {
	return nil
}
