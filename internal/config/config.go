package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/seseseee/discourse-insight/internal/llm"
)

// Config holds the application's configuration.
type Config struct {
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Auth struct {
		JWTSecret   string `yaml:"jwt_secret"`
		TokenTTLHrs int    `yaml:"token_ttl_hours"`
		AllowSignup bool   `yaml:"allow_signup"`
	} `yaml:"auth"`
	Classifier struct {
		ModelThreshold      float64 `yaml:"model_threshold"`
		ModelTimeoutSeconds int64   `yaml:"model_timeout_seconds"`
		MaxModelCalls       int     `yaml:"max_model_calls"`
	} `yaml:"classifier"`
	LLM struct {
		Enabled     bool                 `yaml:"enabled"`
		MaxFailures int                  `yaml:"max_failures"`
		Providers   []llm.ProviderConfig `yaml:"providers"`
	} `yaml:"llm"`
	Feedback struct {
		MaxLabelsPerGrant int      `yaml:"max_labels_per_grant"`
		WeightDelta       float64  `yaml:"weight_delta"`
		MaxWeight         float64  `yaml:"max_weight"`
		TrustedUsers      []string `yaml:"trusted_users"`
	} `yaml:"feedback"`
	Lexicon struct {
		WindowDays             int     `yaml:"window_days"`
		MinCount               int     `yaml:"min_count"`
		MinPurity              float64 `yaml:"min_purity"`
		RebuildIntervalMinutes int64   `yaml:"rebuild_interval_minutes"`
	} `yaml:"lexicon"`
	Activation struct {
		SaturationPerMinute float64 `yaml:"saturation_per_minute"`
		BucketMinutes       int64   `yaml:"bucket_minutes"`
	} `yaml:"activation"`
	AccessControl struct {
		Enabled          bool   `yaml:"enabled"`
		TelegramBotToken string `yaml:"telegram_bot_token"`
	} `yaml:"access_control"`
}

// LoadConfig reads configuration from the specified YAML file.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	return config, nil
}
