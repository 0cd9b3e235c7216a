// Package nutrition resolves product codes into nutrition facts.
package nutrition

import (
	"context"
	"errors"
	"fmt"

	"github.com/franckalain/barcodenutrition/internal/config"
	"github.com/franckalain/barcodenutrition/internal/database"
	"github.com/franckalain/barcodenutrition/internal/models"
)

var (
	// ErrNotFound indicates the source has no record for the code.
	ErrNotFound = errors.New("product not found")

	// ErrMalformedCode indicates the source rejected the code itself.
	ErrMalformedCode = errors.New("malformed product code")
)

// Lookup resolves one product code into a nutrition item. Implementations
// return ErrNotFound or ErrMalformedCode (possibly wrapped) for codes they
// cannot resolve; any other error is a failure of the source itself.
type Lookup interface {
	Lookup(ctx context.Context, code string) (*models.NutritionItem, error)
	Close() error
}

// ValidCode reports whether code has the shape of an EAN-8, UPC-A, EAN-13
// or GTIN-14 payload.
func ValidCode(code string) bool {
	switch len(code) {
	case 8, 12, 13, 14:
	default:
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// New builds the lookup selected by cfg.Type. Catalog-backed lookups use db,
// which stays owned by the caller.
func New(cfg config.LookupConfig, db database.Catalog) (Lookup, error) {
	switch cfg.Type {
	case "nutritionix":
		return NewNutritionixClient(nutritionixConfig(cfg.Nutritionix))
	case "catalog":
		if db == nil {
			return nil, fmt.Errorf("catalog lookup requires a database")
		}
		return NewCatalogLookup(db), nil
	case "chain":
		if db == nil {
			return nil, fmt.Errorf("chain lookup requires a database")
		}
		remote, err := NewNutritionixClient(nutritionixConfig(cfg.Nutritionix))
		if err != nil {
			return nil, err
		}
		return NewChain(NewCatalogLookup(db), remote), nil
	default:
		return nil, fmt.Errorf("unsupported lookup type: %s", cfg.Type)
	}
}

func nutritionixConfig(c config.NutritionixConfig) NutritionixConfig {
	return NutritionixConfig{
		BaseURL:           c.BaseURL,
		AppID:             c.AppID,
		AppKey:            c.AppKey,
		RequestsPerSecond: c.RequestsPerSecond,
		Burst:             c.Burst,
	}
}
