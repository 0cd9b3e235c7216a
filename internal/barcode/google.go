package barcode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/option"

	"github.com/franckalain/barcodenutrition/internal/config"
)

const googlePrompt = `Find the product barcode (EAN-13, EAN-8, UPC-A or UPC-E) in this photo and
read the digits printed under it.

Format the response as a JSON object:
{
	"barcode": "string of digits, or empty if no barcode is readable"
}
Do not guess digits that are not legible.`

// GoogleDecoder implements the Decoder interface with a Vertex AI vision model
type GoogleDecoder struct {
	config config.GoogleConfig
	client *genai.Client
	model  *genai.GenerativeModel
}

// GoogleDecoderFactory implements DecoderFactory for Google decoders
type GoogleDecoderFactory struct {
	config config.GoogleConfig
}

// NewGoogleDecoderFactory creates a new Google decoder factory
func NewGoogleDecoderFactory(config config.GoogleConfig) *GoogleDecoderFactory {
	return &GoogleDecoderFactory{config: config}
}

// CreateDecoder creates a new Google decoder instance
func (f *GoogleDecoderFactory) CreateDecoder() (Decoder, error) {
	return &GoogleDecoder{
		config: f.config,
	}, nil
}

// Load creates the Vertex AI client
func (d *GoogleDecoder) Load(ctx context.Context) error {
	opts := []option.ClientOption{}

	if d.config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(d.config.CredentialsFile))
	}

	client, err := genai.NewClient(ctx, d.config.ProjectID, d.config.Location, opts...)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	d.client = client
	d.model = client.GenerativeModel(d.config.Model)
	d.model.SetTemperature(0)
	d.model.ResponseMIMEType = "application/json"
	return nil
}

// Decode asks the model to read the barcode digits in imageData
func (d *GoogleDecoder) Decode(ctx context.Context, imageData []byte) (string, error) {
	if d.model == nil {
		return "", fmt.Errorf("decoder not loaded")
	}

	mimeType := http.DetectContentType(imageData)
	if !strings.HasPrefix(mimeType, "image/") {
		return "", fmt.Errorf("%w: unsupported content type %s", ErrNoBarcode, mimeType)
	}

	img := genai.Blob{MIMEType: mimeType, Data: imageData}
	resp, err := d.model.GenerateContent(ctx, genai.Text(googlePrompt), img)
	if err != nil {
		return "", fmt.Errorf("failed to call ai: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no response generated")
	}
	candidate := resp.Candidates[0]
	if len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	text, ok := candidate.Content.Parts[0].(genai.Text)
	if !ok {
		return "", fmt.Errorf("unexpected response part %T", candidate.Content.Parts[0])
	}
	return parseGoogleResponse(string(text))
}

// parseGoogleResponse extracts the barcode from the model's JSON answer,
// tolerating a surrounding markdown code fence.
func parseGoogleResponse(textContent string) (string, error) {
	textContent = strings.TrimSpace(textContent)
	textContent = strings.TrimPrefix(textContent, "```json")
	textContent = strings.TrimSuffix(textContent, "```")

	var output struct {
		Barcode string `json:"barcode"`
	}
	if err := json.Unmarshal([]byte(textContent), &output); err != nil {
		return "", fmt.Errorf("failed to parse model response: %w while parsing %s", err, textContent)
	}

	code := strings.ReplaceAll(strings.TrimSpace(output.Barcode), " ", "")
	if !looksLikeProductCode(code) {
		return "", ErrNoBarcode
	}
	return code, nil
}

// Close releases the Vertex AI client
func (d *GoogleDecoder) Close() error {
	if d.client == nil {
		return nil
	}
	return d.client.Close()
}
