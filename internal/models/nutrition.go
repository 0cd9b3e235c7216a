package models

// NutritionItem is the nutrition-facts record resolved for one product code.
// Numeric fields are nil when the source did not report them.
type NutritionItem struct {
	BrandName         string   `json:"brand_name" yaml:"brand_name"`
	ProductName       string   `json:"item_name" yaml:"item_name"`
	Calories          *float64 `json:"calories" yaml:"calories"`                     // kcal
	Protein           *float64 `json:"protein" yaml:"protein"`                       // grams
	TotalCarbohydrate *float64 `json:"total_carbohydrate" yaml:"total_carbohydrate"` // grams
	TotalFat          *float64 `json:"total_fat" yaml:"total_fat"`                   // grams
}

// Float returns a pointer to v, for building items with known values.
func Float(v float64) *float64 {
	return &v
}

// SkipReason tells why a product code could not be resolved.
type SkipReason string

const (
	SkipNotFound  SkipReason = "not-found"
	SkipMalformed SkipReason = "malformed"
)

// SkippedCode is a product code the lookup source could not resolve.
type SkippedCode struct {
	Code   string     `json:"code"`
	Reason SkipReason `json:"reason"`
}
