package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the triage engine.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Enhance   EnhanceConfig   `yaml:"enhance"`
	Rules     RulesConfig     `yaml:"rules"`
	Cache     CacheConfig     `yaml:"cache"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig controls HTTP listener behaviour.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// StorageConfig selects the ledger store backend.
type StorageConfig struct {
	// Backend is "memory" or "redis".
	Backend  string `yaml:"backend"`
	Addr     string `yaml:"addr"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// RetrievalConfig controls evidence retrieval.
type RetrievalConfig struct {
	// Mode is "keyword" or "vector".
	Mode         string        `yaml:"mode"`
	TopK         int           `yaml:"topK"`
	MinScore     float64       `yaml:"minScore"`
	EmbedBaseURL string        `yaml:"embedBaseURL"`
	EmbedPath    string        `yaml:"embedPath"`
	EmbedTimeout time.Duration `yaml:"embedTimeout"`
}

// EnhanceConfig configures the optional LLM enhancement backend.
type EnhanceConfig struct {
	Enabled bool          `yaml:"enabled"`
	BaseURL string        `yaml:"baseURL"`
	Path    string        `yaml:"path"`
	APIKey  string        `yaml:"apiKey"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// RulesConfig controls rule-pack loading for the classifier.
type RulesConfig struct {
	Path string `yaml:"path"`
	// ClassifierFallback lets the enhancement backend break low-confidence
	// classification ties.
	ClassifierFallback bool `yaml:"classifierFallback"`
}

// CacheConfig controls Redis-backed caching of embedding lookups.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	EmbeddingTTL time.Duration `yaml:"embeddingTTL"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Load initialises Config from an optional .env file, a YAML file and
// environment overrides, in that order.
func Load(path string) (*Config, error) {
	// Missing .env is fine; explicit config errors are not.
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv("TRIAGE_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8080",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{Backend: "memory"},
		Retrieval: RetrievalConfig{
			Mode:         "keyword",
			TopK:         3,
			MinScore:     0.35,
			EmbedPath:    "/v1/embed",
			EmbedTimeout: 5 * time.Second,
		},
		Enhance: EnhanceConfig{
			Path:    "/v1/enhance",
			Model:   "gpt-4o-mini",
			Timeout: 10 * time.Second,
		},
		Rules:   RulesConfig{Path: "configs/rules/classifier.yaml"},
		Cache:   CacheConfig{EmbeddingTTL: 10 * time.Minute},
		Logging: LoggingConfig{Level: "info", JSON: false},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TRIAGE_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("TRIAGE_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("TRIAGE_STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("TRIAGE_STORAGE_ADDR"); v != "" {
		cfg.Storage.Addr = v
	}
	if v := os.Getenv("TRIAGE_STORAGE_USERNAME"); v != "" {
		cfg.Storage.Username = v
	}
	if v := os.Getenv("TRIAGE_STORAGE_PASSWORD"); v != "" {
		cfg.Storage.Password = v
	}
	if v := os.Getenv("TRIAGE_STORAGE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Storage.DB = db
		}
	}
	if v := os.Getenv("TRIAGE_RETRIEVAL_MODE"); v != "" {
		cfg.Retrieval.Mode = v
	}
	if v := os.Getenv("TRIAGE_RETRIEVAL_TOP_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			cfg.Retrieval.TopK = k
		}
	}
	if v := os.Getenv("TRIAGE_RETRIEVAL_MIN_SCORE"); v != "" {
		if s, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Retrieval.MinScore = s
		}
	}
	if v := os.Getenv("TRIAGE_EMBED_BASE_URL"); v != "" {
		cfg.Retrieval.EmbedBaseURL = v
	}
	if v := os.Getenv("TRIAGE_EMBED_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Retrieval.EmbedTimeout = d
		}
	}
	if v := os.Getenv("TRIAGE_LLM_ENABLED"); v != "" {
		cfg.Enhance.Enabled = parseBool(v)
	}
	if v := os.Getenv("TRIAGE_LLM_BASE_URL"); v != "" {
		cfg.Enhance.BaseURL = v
	}
	if v := os.Getenv("TRIAGE_LLM_API_KEY"); v != "" {
		cfg.Enhance.APIKey = v
	}
	if v := os.Getenv("TRIAGE_LLM_MODEL"); v != "" {
		cfg.Enhance.Model = v
	}
	if v := os.Getenv("TRIAGE_LLM_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Enhance.Timeout = d
		}
	}
	if v := os.Getenv("TRIAGE_RULES_PATH"); v != "" {
		cfg.Rules.Path = v
	}
	if v := os.Getenv("TRIAGE_CLASSIFIER_LLM_FALLBACK"); v != "" {
		cfg.Rules.ClassifierFallback = parseBool(v)
	}
	if v := os.Getenv("TRIAGE_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = parseBool(v)
	}
	if v := os.Getenv("TRIAGE_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("TRIAGE_CACHE_EMBEDDING_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.EmbeddingTTL = d
		}
	}
	if v := os.Getenv("TRIAGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TRIAGE_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
}

func parseBool(v string) bool {
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}
