// Package config loads service configuration from YAML with environment
// overrides and explicit defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jonesrussell/discount-agent/internal/domain"
	"github.com/jonesrussell/discount-agent/internal/llm"
	"github.com/jonesrussell/discount-agent/internal/logging"
)

// Default configuration values.
const (
	defaultServiceName    = "discount-agent"
	defaultServiceVersion = "1.0.0"
	defaultServicePort    = 8080
	defaultDBDSN          = "file:discount_agent.db?_fk=1"
	defaultCampaignPath   = "config/campaign.yaml"
	defaultTemplatesPath  = "config/templates.yaml"
	defaultRateLimitRPS   = 20
	defaultRateLimitBurst = 40
)

// Config holds all configuration for the discount-agent service.
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Database DatabaseConfig `yaml:"database"`
	Logging  logging.Config `yaml:"logging"`
	LLM      llm.Config     `yaml:"llm"`

	// CampaignPath and TemplatesPath point at the campaign registry and
	// reply templates consumed at startup and on /admin/reload.
	CampaignPath  string `yaml:"campaign_path"`
	TemplatesPath string `yaml:"templates_path"`

	// GeminiAPIKey comes from the environment only, never from YAML.
	GeminiAPIKey string `yaml:"-"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Name           string        `yaml:"name"`
	Version        string        `yaml:"version"`
	Port           int           `yaml:"port"`
	Debug          bool          `yaml:"debug"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RateLimitRPS   int           `yaml:"rate_limit_rps"`
	RateLimitBurst int           `yaml:"rate_limit_burst"`
}

// DatabaseConfig holds the interaction store configuration.
type DatabaseConfig struct {
	// DSN is a sqlite connection string; ":memory:" for ephemeral runs.
	DSN string `yaml:"dsn"`
}

// Load reads configuration from path (optional), then applies environment
// overrides and defaults. A missing file is not an error; env and defaults
// carry a minimal deployment.
func Load(path string) (*Config, error) {
	// .env is a development convenience; absence is fine
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// fall through to env + defaults
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	setDefaults(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("GOOGLE_API_KEY"); v != "" {
		cfg.GeminiAPIKey = v
	}
	if v := os.Getenv("AGENT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Service.Port = port
		}
	}
	if v := os.Getenv("APP_DEBUG"); v == "true" {
		cfg.Service.Debug = true
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("CAMPAIGN_CONFIG_PATH"); v != "" {
		cfg.CampaignPath = v
	}
	if v := os.Getenv("TEMPLATES_PATH"); v != "" {
		cfg.TemplatesPath = v
	}
}

func setDefaults(cfg *Config) {
	if cfg.Service.Name == "" {
		cfg.Service.Name = defaultServiceName
	}
	if cfg.Service.Version == "" {
		cfg.Service.Version = defaultServiceVersion
	}
	if cfg.Service.Port == 0 {
		cfg.Service.Port = defaultServicePort
	}
	if cfg.Service.RateLimitRPS == 0 {
		cfg.Service.RateLimitRPS = defaultRateLimitRPS
	}
	if cfg.Service.RateLimitBurst == 0 {
		cfg.Service.RateLimitBurst = defaultRateLimitBurst
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = defaultDBDSN
	}
	if cfg.CampaignPath == "" {
		cfg.CampaignPath = defaultCampaignPath
	}
	if cfg.TemplatesPath == "" {
		cfg.TemplatesPath = defaultTemplatesPath
	}
	cfg.LLM.SetDefaults()
}

// campaignFile mirrors domain.Campaign with pointer flag fields so an
// omitted flag defaults to enabled instead of the bool zero value.
type campaignFile struct {
	Creators   []domain.Creator  `yaml:"creators"`
	Thresholds domain.Thresholds `yaml:"thresholds"`
	Flags      struct {
		EnableFuzzyMatching *bool `yaml:"enable_fuzzy_matching"`
		EnableLLMFallback   *bool `yaml:"enable_llm_fallback"`
	} `yaml:"flags"`
}

// LoadCampaign reads and validates the campaign registry. Malformed
// configuration is fatal for the instance being constructed. Both feature
// flags default to true when absent; disabling a stage takes an explicit
// false.
func LoadCampaign(path string) (*domain.Campaign, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read campaign: %w", err)
	}
	var file campaignFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse campaign: %w", err)
	}
	campaign := &domain.Campaign{
		Creators:   file.Creators,
		Thresholds: file.Thresholds,
		Flags: domain.Flags{
			EnableFuzzyMatching: boolOr(file.Flags.EnableFuzzyMatching, true),
			EnableLLMFallback:   boolOr(file.Flags.EnableLLMFallback, true),
		},
	}
	if err := campaign.Validate(); err != nil {
		return nil, fmt.Errorf("invalid campaign: %w", err)
	}
	return campaign, nil
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
