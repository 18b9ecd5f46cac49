// Package config loads ecobot settings from .ecobot.yml and ECOBOT_*
// environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override. A double underscore
// separates nested keys: ECOBOT_KNOWLEDGE__TOP_K sets knowledge.top_k.
const EnvPrefix = "ECOBOT_"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (ECOBOT_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// envKey maps ECOBOT_SESSION__REDIS_ADDR to session.redis_addr.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// validProviders is the set of recognized provider values.
var validProviders = map[ProviderType]bool{
	ProviderAnthropic:  true,
	ProviderOpenAI:     true,
	ProviderOllama:     true,
	ProviderOpenRouter: true,
}

// validEmbeddingProviders are the providers with an embeddings API.
var validEmbeddingProviders = map[ProviderType]bool{
	ProviderOpenAI: true,
	ProviderOllama: true,
}

// validQualityTiers is the set of recognized quality tier values.
var validQualityTiers = map[QualityTier]bool{
	QualityLite:   true,
	QualityNormal: true,
	QualityMax:    true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if !validProviders[c.Provider] {
		return fmt.Errorf("invalid provider %q: must be one of anthropic, openai, ollama, openrouter", c.Provider)
	}

	if c.Model == "" {
		return fmt.Errorf("model is required")
	}

	if c.EmbeddingProvider != "" && !validEmbeddingProviders[c.EmbeddingProvider] {
		return fmt.Errorf("invalid embedding_provider %q: must be openai or ollama", c.EmbeddingProvider)
	}

	if c.Quality != "" && !validQualityTiers[c.Quality] {
		return fmt.Errorf("invalid quality %q: must be one of lite, normal, max", c.Quality)
	}

	if c.LLM.RateLimitRPM < 0 {
		return fmt.Errorf("llm.rate_limit_rpm must be non-negative")
	}

	if c.Knowledge.Enabled {
		if c.Knowledge.TopK <= 0 {
			return fmt.Errorf("knowledge.top_k must be positive")
		}
		if c.Knowledge.ChunkSize <= 0 {
			return fmt.Errorf("knowledge.chunk_size must be positive")
		}
		if c.Knowledge.ChunkOverlap < 0 || c.Knowledge.ChunkOverlap >= c.Knowledge.ChunkSize {
			return fmt.Errorf("knowledge.chunk_overlap must be between 0 and chunk_size")
		}
		if c.Knowledge.PersistDir == "" {
			return fmt.Errorf("knowledge.persist_dir is required")
		}
	}

	if c.Returns.WindowDays <= 0 {
		return fmt.Errorf("returns.window_days must be positive")
	}
	if _, err := c.Returns.Location(); err != nil {
		return fmt.Errorf("invalid returns.timezone %q: %w", c.Returns.Timezone, err)
	}
	if _, err := c.Returns.Today(); err != nil {
		return fmt.Errorf("invalid returns.as_of %q: must be YYYY-MM-DD", c.Returns.AsOf)
	}

	switch c.Classifier.Mode {
	case ClassifierHeuristic, ClassifierLLM:
	default:
		return fmt.Errorf("invalid classifier.mode %q: must be heuristic or llm", c.Classifier.Mode)
	}

	switch c.Session.Backend {
	case SessionMemory:
	case SessionRedis:
		if c.Session.RedisAddr == "" {
			return fmt.Errorf("session.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("invalid session.backend %q: must be memory or redis", c.Session.Backend)
	}
	if c.Session.TTL < 0 {
		return fmt.Errorf("session.ttl must be non-negative")
	}

	switch c.Log.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("invalid log.format %q: must be console or json", c.Log.Format)
	}

	if c.Audit.Enabled && c.Audit.Path == "" {
		return fmt.Errorf("audit.path is required when audit is enabled")
	}

	return nil
}

// Location returns the time zone delivery dates are read in. An empty
// timezone means the local zone.
func (r ReturnsConfig) Location() (*time.Location, error) {
	if r.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(r.Timezone)
}

// asOfLayout is the date format of ReturnsConfig.AsOf.
const asOfLayout = "2006-01-02"

// Today returns the pinned date at noon in the returns time zone, or the
// zero time when AsOf is empty.
func (r ReturnsConfig) Today() (time.Time, error) {
	if r.AsOf == "" {
		return time.Time{}, nil
	}
	loc, err := r.Location()
	if err != nil {
		return time.Time{}, err
	}
	day, err := time.ParseInLocation(asOfLayout, r.AsOf, loc)
	if err != nil {
		return time.Time{}, err
	}
	return day.Add(12 * time.Hour), nil
}

// APIKeyEnvVar returns the conventional environment variable name for
// the API key of the given provider.
func APIKeyEnvVar(provider ProviderType) string {
	switch provider {
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderOpenRouter:
		return "OPENROUTER_API_KEY"
	default:
		return ""
	}
}
