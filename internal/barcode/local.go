package barcode

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
)

// LocalConfig holds configuration for the in-process decoder
type LocalConfig struct {
	// TryHarder spends more time looking for a barcode in each image.
	TryHarder bool `json:"try_harder"`
}

// LocalDecoder decodes EAN and UPC barcodes in-process with ZXing.
type LocalDecoder struct {
	config LocalConfig
	hints  map[gozxing.DecodeHintType]interface{}
}

// LocalDecoderFactory implements DecoderFactory for local decoders
type LocalDecoderFactory struct {
	config LocalConfig
}

// NewLocalDecoderFactory creates a new local decoder factory
func NewLocalDecoderFactory(config LocalConfig) *LocalDecoderFactory {
	return &LocalDecoderFactory{config: config}
}

// CreateDecoder creates a new local decoder instance
func (f *LocalDecoderFactory) CreateDecoder() (Decoder, error) {
	return &LocalDecoder{config: f.config}, nil
}

// Load prepares the decode hints.
func (d *LocalDecoder) Load(ctx context.Context) error {
	d.hints = map[gozxing.DecodeHintType]interface{}{}
	if d.config.TryHarder {
		d.hints[gozxing.DecodeHintType_TRY_HARDER] = true
	}
	return nil
}

// Decode scans imageData for an EAN-13, EAN-8, UPC-A or UPC-E barcode.
// Images that cannot be parsed as GIF, JPEG or PNG count as holding no barcode.
func (d *LocalDecoder) Decode(ctx context.Context, imageData []byte) (string, error) {
	if d.hints == nil {
		return "", fmt.Errorf("decoder not loaded")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return "", fmt.Errorf("%w: unreadable image: %v", ErrNoBarcode, err)
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoBarcode, err)
	}

	// Readers keep per-decode state, so each call gets its own.
	reader := oned.NewMultiFormatUPCEANReader(d.hints)
	result, err := reader.Decode(bmp, d.hints)
	if err != nil {
		return "", ErrNoBarcode
	}
	return result.GetText(), nil
}

// Close is a no-op for the local decoder.
func (d *LocalDecoder) Close() error {
	return nil
}
