package barcode

import (
	"context"
	"errors"
	"fmt"

	"github.com/franckalain/barcodenutrition/internal/config"
)

// ErrNoBarcode is returned when an image holds no readable product code.
var ErrNoBarcode = errors.New("no barcode found")

// Decoder reads a product code out of a photographed barcode.
type Decoder interface {
	// Load initializes the decoder with its configuration
	Load(ctx context.Context) error
	// Decode returns the product code in imageData, or ErrNoBarcode
	Decode(ctx context.Context, imageData []byte) (string, error)
	// Close releases whatever Load acquired
	Close() error
}

// DecoderFactory creates a new decoder instance based on configuration
type DecoderFactory interface {
	CreateDecoder() (Decoder, error)
}

// NewDecoder creates a decoder for cfg.Type. The caller must Load it.
func NewDecoder(cfg config.DecoderConfig) (Decoder, error) {
	var factory DecoderFactory

	switch cfg.Type {
	case "google":
		factory = NewGoogleDecoderFactory(cfg.Google)
	case "local", "":
		factory = NewLocalDecoderFactory(LocalConfig{TryHarder: cfg.TryHarder})
	default:
		return nil, fmt.Errorf("unsupported decoder type: %s", cfg.Type)
	}
	return factory.CreateDecoder()
}

// looksLikeProductCode reports whether s is an all-digit EAN/UPC payload.
func looksLikeProductCode(s string) bool {
	if len(s) < 8 || len(s) > 14 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
