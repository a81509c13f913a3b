package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"storyloom/pkg/ai"
)

// ConfigPath is the default config file location.
const ConfigPath = "config.yaml"

// CandidateConfig is one fallback-chain entry.
type CandidateConfig struct {
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
}

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port        string `yaml:"port"`
	DatabaseURL string `yaml:"databaseURL"`
	LogLevel    string `yaml:"logLevel"`

	GeminiAPIKey    string            `yaml:"geminiAPIKey"`
	Candidates      []CandidateConfig `yaml:"candidates"`
	ImageCandidates []CandidateConfig `yaml:"imageCandidates"`

	AuthJWKSURL string `yaml:"authJWKSURL"`
	JWTIssuer   string `yaml:"jwtIssuer"`
	JWTAudience string `yaml:"jwtAudience"`

	BillingServiceURL         string `yaml:"billingServiceURL"`
	InternalJWTPrivateKeyPath string `yaml:"internalJWTPrivateKeyPath"`

	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	CacheTTLHours int    `yaml:"cacheTTLHours"`

	RateLimit      int `yaml:"rateLimit"`
	RateWindowSecs int `yaml:"rateWindowSeconds"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`

	AssetStream string `yaml:"assetStream"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.GeminiAPIKey = v
	}
	if v := os.Getenv("AUTH_JWKS_URL"); v != "" {
		cfg.AuthJWKSURL = v
	}
	if v := os.Getenv("BILLING_SERVICE_URL"); v != "" {
		cfg.BillingServiceURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if cfg.AssetStream == "" {
		cfg.AssetStream = "storyloom:asset-writes"
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 30
	}
	if cfg.RateWindowSecs <= 0 {
		cfg.RateWindowSecs = 60
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ChainCandidates converts the configured fallback chain.
func (c FileConfig) ChainCandidates() []ai.Candidate {
	return toCandidates(c.Candidates)
}

// ImageChainCandidates converts the image fallback chain; an empty list
// falls back to the text chain.
func (c FileConfig) ImageChainCandidates() []ai.Candidate {
	return toCandidates(c.ImageCandidates)
}

func toCandidates(configs []CandidateConfig) []ai.Candidate {
	out := make([]ai.Candidate, 0, len(configs))
	for _, cc := range configs {
		out = append(out, ai.Candidate{
			Model:   cc.Model,
			Timeout: time.Duration(cc.TimeoutSeconds) * time.Second,
		})
	}
	return out
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if cfg.GeminiAPIKey == "" {
		return errors.New("config: geminiAPIKey is required (set in config.yaml or GEMINI_API_KEY)")
	}
	if len(cfg.Candidates) == 0 {
		return errors.New("config: at least one fallback candidate is required")
	}
	for _, candidate := range cfg.Candidates {
		if candidate.Model == "" {
			return errors.New("config: candidate model must not be empty")
		}
	}
	if cfg.AuthJWKSURL == "" {
		return errors.New("config: authJWKSURL is required (set in config.yaml or AUTH_JWKS_URL)")
	}
	if cfg.BillingServiceURL == "" {
		return errors.New("config: billingServiceURL is required (set in config.yaml or BILLING_SERVICE_URL)")
	}
	if cfg.InternalJWTPrivateKeyPath == "" {
		return errors.New("config: internalJWTPrivateKeyPath is required (set in config.yaml)")
	}
	if cfg.RedisAddr == "" {
		return errors.New("config: redisAddr is required (set in config.yaml or REDIS_ADDR)")
	}
	if cfg.MinioEndpoint == "" || cfg.MinioBucket == "" {
		return errors.New("config: minioEndpoint and minioBucket are required (set in config.yaml)")
	}
	return nil
}
