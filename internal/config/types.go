package config

import "time"

// QualityTier controls the model selection and trade-off between speed/cost and quality.
type QualityTier string

const (
	QualityLite   QualityTier = "lite"
	QualityNormal QualityTier = "normal"
	QualityMax    QualityTier = "max"
)

// ProviderType identifies an LLM or embedding provider.
type ProviderType string

const (
	ProviderAnthropic  ProviderType = "anthropic"
	ProviderOpenAI     ProviderType = "openai"
	ProviderOllama     ProviderType = "ollama"
	ProviderOpenRouter ProviderType = "openrouter"
)

// ClassifierMode selects how messages are routed.
type ClassifierMode string

const (
	ClassifierHeuristic ClassifierMode = "heuristic"
	ClassifierLLM       ClassifierMode = "llm"
)

// SessionBackend selects where conversation state lives.
type SessionBackend string

const (
	SessionMemory SessionBackend = "memory"
	SessionRedis  SessionBackend = "redis"
)

// Config is the top-level ecobot configuration, corresponding to .ecobot.yml.
type Config struct {
	Provider          ProviderType     `yaml:"provider" koanf:"provider"`
	Model             string           `yaml:"model" koanf:"model"`
	EmbeddingProvider ProviderType     `yaml:"embedding_provider" koanf:"embedding_provider"`
	EmbeddingModel    string           `yaml:"embedding_model" koanf:"embedding_model"`
	Quality           QualityTier      `yaml:"quality" koanf:"quality"`
	Catalog           string           `yaml:"catalog" koanf:"catalog"` // JSON catalog file; empty uses the built-in one
	LLM               LLMConfig        `yaml:"llm" koanf:"llm"`
	Knowledge         KnowledgeConfig  `yaml:"knowledge" koanf:"knowledge"`
	Returns           ReturnsConfig    `yaml:"returns" koanf:"returns"`
	Classifier        ClassifierConfig `yaml:"classifier" koanf:"classifier"`
	Session           SessionConfig    `yaml:"session" koanf:"session"`
	Server            ServerConfig     `yaml:"server" koanf:"server"`
	Log               LogConfig        `yaml:"log" koanf:"log"`
	Audit             AuditConfig      `yaml:"audit" koanf:"audit"`
	Bots              BotsConfig       `yaml:"bots" koanf:"bots"`
}

// LLMConfig wraps every provider call.
type LLMConfig struct {
	RateLimitRPM int           `yaml:"rate_limit_rpm" koanf:"rate_limit_rpm"`
	MaxAttempts  int           `yaml:"max_attempts" koanf:"max_attempts"`
	RetryBackoff time.Duration `yaml:"retry_backoff" koanf:"retry_backoff"`
}

// KnowledgeConfig controls the document index behind free-text questions.
type KnowledgeConfig struct {
	Enabled      bool     `yaml:"enabled" koanf:"enabled"`
	BaseURL      string   `yaml:"base_url" koanf:"base_url"`
	Sources      []string `yaml:"sources" koanf:"sources"`
	DownloadDir  string   `yaml:"download_dir" koanf:"download_dir"`
	PersistDir   string   `yaml:"persist_dir" koanf:"persist_dir"`
	Collection   string   `yaml:"collection" koanf:"collection"`
	LocalDir     string   `yaml:"local_dir" koanf:"local_dir"`
	Include      []string `yaml:"include" koanf:"include"`
	Exclude      []string `yaml:"exclude" koanf:"exclude"`
	TopK         int      `yaml:"top_k" koanf:"top_k"`
	ChunkSize    int      `yaml:"chunk_size" koanf:"chunk_size"`
	ChunkOverlap int      `yaml:"chunk_overlap" koanf:"chunk_overlap"`
	ForceRebuild bool     `yaml:"force_rebuild" koanf:"force_rebuild"`
}

// ReturnsConfig holds the return policy.
type ReturnsConfig struct {
	WindowDays   int    `yaml:"window_days" koanf:"window_days"`
	Timezone     string `yaml:"timezone" koanf:"timezone"`
	LabelBaseURL string `yaml:"label_base_url" koanf:"label_base_url"`
	// AsOf pins "today" (YYYY-MM-DD) for return window checks. Empty means
	// the current date.
	AsOf string `yaml:"as_of,omitempty" koanf:"as_of"`
}

// ClassifierConfig selects the message router.
type ClassifierConfig struct {
	Mode ClassifierMode `yaml:"mode" koanf:"mode"`
}

// SessionConfig selects where conversation state is kept.
type SessionConfig struct {
	Backend       SessionBackend `yaml:"backend" koanf:"backend"`
	TTL           time.Duration  `yaml:"ttl" koanf:"ttl"`
	RedisAddr     string         `yaml:"redis_addr" koanf:"redis_addr"`
	RedisPassword string         `yaml:"redis_password" koanf:"redis_password"`
	RedisDB       int            `yaml:"redis_db" koanf:"redis_db"`
	KeyPrefix     string         `yaml:"key_prefix" koanf:"key_prefix"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr           string   `yaml:"addr" koanf:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins" koanf:"allowed_origins"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level" koanf:"level"`
	Format string `yaml:"format" koanf:"format"`
}

// AuditConfig controls the return audit trail.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled" koanf:"enabled"`
	Path    string `yaml:"path" koanf:"path"`
}

// BotsConfig enables chat platform webhooks.
type BotsConfig struct {
	Slack SlackConfig `yaml:"slack" koanf:"slack"`
	Teams TeamsConfig `yaml:"teams" koanf:"teams"`
}

type SlackConfig struct {
	Enabled       bool   `yaml:"enabled" koanf:"enabled"`
	SigningSecret string `yaml:"signing_secret" koanf:"signing_secret"`
}

type TeamsConfig struct {
	Enabled bool `yaml:"enabled" koanf:"enabled"`
}
