package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/franckalain/barcodenutrition/internal/models"
)

const (
	usageHint = "Please send in well-focused and zoomed in barcodes with the word 'total' to get total nutrition values or 'compare' to get a comparison of the items."

	NoMediaText       = "You didn't send any barcodes! " + usageHint
	DecodeFailureText = "One of your barcodes was not recognized. Please try cropping your image or taking the picture again closer to the barcode."
	UnavailableText   = "Sorry, we couldn't process your barcodes right now. Please try again in a few minutes."

	skipReportPrefix = "Sorry but we couldn't find one or more of your items. Please try again without the following EANs which were not found in the Nutritionix database: "
)

// SkipReportText lists every skipped code, each followed by a space.
func SkipReportText(skipped []models.SkippedCode) string {
	var b strings.Builder
	b.WriteString(skipReportPrefix)
	for _, s := range skipped {
		b.WriteString(s.Code)
		b.WriteString(" ")
	}
	return b.String()
}

// InvalidKeywordText echoes the rejected keyword.
func InvalidKeywordText(keyword string) string {
	return fmt.Sprintf("You sent in '%s' which is not a valid keyword. %s", keyword, usageHint)
}

// IncompleteText explains which nutrient was missing.
func IncompleteText(missing *MissingFieldError) string {
	return fmt.Sprintf("Sorry but the nutrition facts for barcode %s are missing its %s value, so we couldn't compute your answer.", missing.Code, missing.Field)
}

// formatNumber renders v in its shortest decimal form: 250, 2.5.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
