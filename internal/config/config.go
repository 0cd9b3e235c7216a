package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `json:"server" yaml:"server" toml:"server"`
	Media    MediaConfig    `json:"media" yaml:"media" toml:"media"`
	Decoder  DecoderConfig  `json:"decoder" yaml:"decoder" toml:"decoder"`
	Lookup   LookupConfig   `json:"lookup" yaml:"lookup" toml:"lookup"`
	Database DatabaseConfig `json:"database" yaml:"database" toml:"database"`
}

// ServerConfig configures the inbound webhook and websocket transport.
type ServerConfig struct {
	Port        string `json:"port" yaml:"port" toml:"port"`
	Debug       bool   `json:"debug" yaml:"debug" toml:"debug"`
	WebhookPath string `json:"webhook_path" yaml:"webhook_path" toml:"webhook_path"`

	// PublicURL is the externally visible base URL Twilio posts to. Request
	// signatures are computed over PublicURL + WebhookPath.
	PublicURL         string `json:"public_url" yaml:"public_url" toml:"public_url"`
	ValidateSignature bool   `json:"validate_signature" yaml:"validate_signature" toml:"validate_signature"`
	ReplyFooter       string `json:"reply_footer" yaml:"reply_footer" toml:"reply_footer"`
}

// MediaConfig configures retrieval of attached images.
type MediaConfig struct {
	FetchTimeout string `json:"fetch_timeout" yaml:"fetch_timeout" toml:"fetch_timeout"`
	MaxBytes     int64  `json:"max_bytes" yaml:"max_bytes" toml:"max_bytes"`
	Concurrency  int    `json:"concurrency" yaml:"concurrency" toml:"concurrency"`

	// Twilio media URLs require basic auth when media protection is enabled.
	AccountSID string `json:"account_sid" yaml:"account_sid" toml:"account_sid"`
	AuthToken  string `json:"auth_token" yaml:"auth_token" toml:"auth_token"`
}

// DecoderConfig selects the barcode decoder.
type DecoderConfig struct {
	Type      string       `json:"type" yaml:"type" toml:"type"` // "local" or "google"
	TryHarder bool         `json:"try_harder" yaml:"try_harder" toml:"try_harder"`
	Google    GoogleConfig `json:"google" yaml:"google" toml:"google"`
}

// GoogleConfig holds Vertex AI settings for the google decoder.
type GoogleConfig struct {
	ProjectID       string `json:"project_id" yaml:"project_id" toml:"project_id"`
	Location        string `json:"location" yaml:"location" toml:"location"`
	CredentialsFile string `json:"credentials_file" yaml:"credentials_file" toml:"credentials_file"`
	Model           string `json:"model" yaml:"model" toml:"model"`
}

// LookupConfig selects and configures the nutrition-facts source.
type LookupConfig struct {
	Type        string            `json:"type" yaml:"type" toml:"type"` // "nutritionix", "catalog" or "chain"
	Timeout     string            `json:"timeout" yaml:"timeout" toml:"timeout"`
	Nutritionix NutritionixConfig `json:"nutritionix" yaml:"nutritionix" toml:"nutritionix"`
}

// NutritionixConfig holds the Nutritionix API credentials and limits.
type NutritionixConfig struct {
	BaseURL           string  `json:"base_url" yaml:"base_url" toml:"base_url"`
	AppID             string  `json:"app_id" yaml:"app_id" toml:"app_id"`
	AppKey            string  `json:"app_key" yaml:"app_key" toml:"app_key"`
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" toml:"requests_per_second"`
	Burst             int     `json:"burst" yaml:"burst" toml:"burst"`
}

// DatabaseConfig locates the SQLite product catalog.
type DatabaseConfig struct {
	Path string `json:"path" yaml:"path" toml:"path"`
}

const (
	DefaultPort           = "8080"
	DefaultWebhookPath    = "/sms"
	DefaultReplyFooter    = "Powered by Twilio."
	DefaultFetchTimeout   = "15s"
	DefaultMaxBytes       = 10 << 20
	DefaultLookupTimeout  = "10s"
	DefaultNutritionixURL = "https://api.nutritionix.com/v1_1"
	DefaultGoogleModel    = "gemini-1.5-flash"
)

// LoadConfig loads configuration from a JSON, YAML or TOML file, chosen by
// extension. An empty path yields defaults plus environment overrides.
func LoadConfig(configPath string) (*Config, error) {
	var config Config

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := unmarshal(configPath, data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.applyEnv()
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func unmarshal(path string, data []byte, v any) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, v)
	case ".toml":
		return toml.Unmarshal(data, v)
	default:
		return json.Unmarshal(data, v)
	}
}

// applyEnv lets secrets come from the environment instead of the file.
func (c *Config) applyEnv() {
	setFromEnv(&c.Lookup.Nutritionix.AppID, "NUTRITIONIX_APP_ID")
	setFromEnv(&c.Lookup.Nutritionix.AppKey, "NUTRITIONIX_APP_KEY")
	setFromEnv(&c.Media.AccountSID, "TWILIO_ACCOUNT_SID")
	setFromEnv(&c.Media.AuthToken, "TWILIO_AUTH_TOKEN")
	setFromEnv(&c.Decoder.Google.ProjectID, "GOOGLE_PROJECT_ID")
	setFromEnv(&c.Decoder.Google.Location, "GOOGLE_LOCATION")
	setFromEnv(&c.Decoder.Google.CredentialsFile, "GOOGLE_CREDENTIALS_FILE")
	setFromEnv(&c.Server.Port, "PORT")
}

func setFromEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = DefaultPort
	}
	if c.Server.WebhookPath == "" {
		c.Server.WebhookPath = DefaultWebhookPath
	}
	if c.Server.ReplyFooter == "" {
		c.Server.ReplyFooter = DefaultReplyFooter
	}
	if c.Media.FetchTimeout == "" {
		c.Media.FetchTimeout = DefaultFetchTimeout
	}
	if c.Media.MaxBytes <= 0 {
		c.Media.MaxBytes = DefaultMaxBytes
	}
	if c.Media.Concurrency <= 0 {
		c.Media.Concurrency = 1
	}
	if c.Decoder.Type == "" {
		c.Decoder.Type = "local"
	}
	if c.Decoder.Google.Model == "" {
		c.Decoder.Google.Model = DefaultGoogleModel
	}
	if c.Lookup.Type == "" {
		c.Lookup.Type = "nutritionix"
	}
	if c.Lookup.Timeout == "" {
		c.Lookup.Timeout = DefaultLookupTimeout
	}
	if c.Lookup.Nutritionix.BaseURL == "" {
		c.Lookup.Nutritionix.BaseURL = DefaultNutritionixURL
	}
	if c.Lookup.Nutritionix.RequestsPerSecond <= 0 {
		c.Lookup.Nutritionix.RequestsPerSecond = 5
	}
	if c.Lookup.Nutritionix.Burst <= 0 {
		c.Lookup.Nutritionix.Burst = 5
	}
	if c.Database.Path == "" {
		c.Database.Path = "catalog.db"
	}
}

// Validate reports configuration that cannot work.
func (c *Config) Validate() error {
	if _, err := time.ParseDuration(c.Media.FetchTimeout); err != nil {
		return fmt.Errorf("invalid media.fetch_timeout %q: %w", c.Media.FetchTimeout, err)
	}
	if _, err := time.ParseDuration(c.Lookup.Timeout); err != nil {
		return fmt.Errorf("invalid lookup.timeout %q: %w", c.Lookup.Timeout, err)
	}

	switch c.Decoder.Type {
	case "local":
	case "google":
		if c.Decoder.Google.ProjectID == "" || c.Decoder.Google.Location == "" {
			return fmt.Errorf("google decoder requires project_id and location")
		}
	default:
		return fmt.Errorf("unsupported decoder type: %s", c.Decoder.Type)
	}

	switch c.Lookup.Type {
	case "nutritionix", "chain":
		if c.Lookup.Nutritionix.AppID == "" || c.Lookup.Nutritionix.AppKey == "" {
			return fmt.Errorf("nutritionix app_id and app_key are required for lookup type %s", c.Lookup.Type)
		}
	case "catalog":
	default:
		return fmt.Errorf("unsupported lookup type: %s", c.Lookup.Type)
	}

	if c.Server.ValidateSignature {
		if c.Media.AuthToken == "" {
			return fmt.Errorf("signature validation requires the Twilio auth token")
		}
		if c.Server.PublicURL == "" {
			return fmt.Errorf("signature validation requires server.public_url")
		}
	}
	return nil
}

// FetchTimeout returns the per-image fetch timeout.
func (c *Config) FetchTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Media.FetchTimeout)
	return d
}

// LookupTimeout returns the per-code lookup timeout.
func (c *Config) LookupTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Lookup.Timeout)
	return d
}

// GetConfigPath returns the path to the configuration file
func GetConfigPath() string {
	// First try environment variable
	if path := os.Getenv("BARCODE_NUTRITION_CONFIG"); path != "" {
		return path
	}

	// Then try config directory
	configDir := "config"
	if _, err := os.Stat(configDir); err == nil {
		return filepath.Join(configDir, "config.json")
	}

	// Finally, try current directory
	if _, err := os.Stat("config.json"); err == nil {
		return "config.json"
	}
	return ""
}
