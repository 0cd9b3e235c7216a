package nutrition

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/franckalain/barcodenutrition/internal/models"
)

// Ensure NutritionixClient implements the interface.
var _ Lookup = (*NutritionixClient)(nil)

// Default configuration values.
const (
	DefaultNutritionixURL     = "https://api.nutritionix.com/v1_1"
	DefaultNutritionixTimeout = 30 * time.Second
)

// NutritionixConfig holds configuration for the Nutritionix client.
type NutritionixConfig struct {
	// BaseURL is the API base URL (default: https://api.nutritionix.com/v1_1).
	BaseURL string

	// AppID and AppKey are the Nutritionix application credentials (required).
	AppID  string
	AppKey string

	// RequestsPerSecond and Burst bound the outgoing request rate.
	// Zero disables limiting.
	RequestsPerSecond float64
	Burst             int

	// Timeout is the HTTP client timeout (default: 30s).
	Timeout time.Duration
}

// NutritionixClient looks up packaged foods by UPC on the Nutritionix API.
type NutritionixClient struct {
	client  *http.Client
	baseURL string
	appID   string
	appKey  string
	limiter *rate.Limiter
}

// itemResponse is the /item response. Nutrient fields are null when the
// product label does not state them.
type itemResponse struct {
	ItemID              string   `json:"item_id"`
	ItemName            string   `json:"item_name"`
	BrandName           string   `json:"brand_name"`
	Calories            *float64 `json:"nf_calories"`
	Protein             *float64 `json:"nf_protein"`
	TotalCarbohydrate   *float64 `json:"nf_total_carbohydrate"`
	TotalFat            *float64 `json:"nf_total_fat"`
	ServingSizeQuantity *float64 `json:"nf_serving_size_qty"`
	ServingSizeUnit     string   `json:"nf_serving_size_unit"`
}

// errorResponse is the body Nutritionix returns alongside non-200 statuses.
type errorResponse struct {
	StatusCode   int    `json:"status_code"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// NewNutritionixClient creates a new Nutritionix client.
func NewNutritionixClient(cfg NutritionixConfig) (*NutritionixClient, error) {
	if cfg.AppID == "" || cfg.AppKey == "" {
		return nil, fmt.Errorf("nutritionix: app id and app key are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultNutritionixURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultNutritionixTimeout
	}

	c := &NutritionixClient{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		appID:   cfg.AppID,
		appKey:  cfg.AppKey,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return c, nil
}

// Lookup retrieves the item with the given UPC.
func (c *NutritionixClient) Lookup(ctx context.Context, code string) (*models.NutritionItem, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	q := url.Values{}
	q.Set("upc", code)
	q.Set("appId", c.appID)
	q.Set("appKey", c.appKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/item?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode, body)
	}

	var item itemResponse
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &models.NutritionItem{
		BrandName:         item.BrandName,
		ProductName:       item.ItemName,
		Calories:          item.Calories,
		Protein:           item.Protein,
		TotalCarbohydrate: item.TotalCarbohydrate,
		TotalFat:          item.TotalFat,
	}, nil
}

// classifyStatus maps a non-200 response onto ErrNotFound, ErrMalformedCode
// or a plain API error.
func classifyStatus(status int, body []byte) error {
	var apiErr errorResponse
	_ = json.Unmarshal(body, &apiErr)
	invalid := strings.Contains(strings.ToLower(apiErr.ErrorCode), "invalid")

	switch {
	case status == http.StatusNotFound && invalid:
		return fmt.Errorf("%w: %s", ErrMalformedCode, apiErr.ErrorMessage)
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", ErrMalformedCode, apiErr.ErrorMessage)
	default:
		if apiErr.ErrorMessage != "" {
			return fmt.Errorf("nutritionix error (status %d): %s", status, apiErr.ErrorMessage)
		}
		return fmt.Errorf("nutritionix error (status %d): %s", status, string(body))
	}
}

// Close releases idle connections.
func (c *NutritionixClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
